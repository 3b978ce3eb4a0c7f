package bulk

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/p2p/internal/failures"
)

// invariantRunner checks every snapshot the runner produces.
type invariantRunner struct {
	inner   Runner
	manager *Manager

	mu         sync.Mutex
	violations []string
}

func (r *invariantRunner) Run(ctx context.Context, jobID string, records []Record, progress Progress) {
	r.inner.Run(ctx, jobID, records, &checkingProgress{Progress: progress, check: func() { r.check(jobID) }})
}

func (r *invariantRunner) check(jobID string) {
	job, err := r.manager.Status(jobID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.violations = append(r.violations, err.Error())
		return
	}
	if job.SuccessCount+job.FailedCount+job.PendingCount+job.CancelledCount != job.Total {
		r.violations = append(r.violations, fmt.Sprintf("counts do not add up: %+v", job))
	}
	if job.Status.Terminal() && job.PendingCount > 0 {
		r.violations = append(r.violations, "terminal job with pending items")
	}
}

type checkingProgress struct {
	Progress
	check func()
}

func (p *checkingProgress) Succeed(index int, resultID string) {
	p.Progress.Succeed(index, resultID)
	p.check()
}

func (p *checkingProgress) Fail(index int, msg failures.Message, raw string) {
	p.Progress.Fail(index, msg, raw)
	p.check()
}

func (p *checkingProgress) Finish(cancelled bool) {
	p.Progress.Finish(cancelled)
	p.check()
}

func waitTerminal(t *testing.T, m *Manager, jobID string) Job {
	t.Helper()
	var job Job
	require.Eventually(t, func() bool {
		snapshot, err := m.Status(jobID)
		if err != nil {
			return false
		}
		job = snapshot
		return job.Status.Terminal()
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func newHistory(t *testing.T) *HistoryStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewHistoryStore(client, "", 10)
}

func TestManagerBatchWithOneFailure(t *testing.T) {
	sess := newFakeSession()
	sess.failFor["MAT-B"] = "Error: Document does not contain any selectable items"
	engine, _ := newTestEngine(t, fakeOpener{session: sess}, nil)
	history := newHistory(t)
	runner := &invariantRunner{inner: engine}
	m := NewManager(runner, history, nil)
	runner.manager = m

	jobID, err := m.Submit(testRecords("MAT-A", "MAT-B", "MAT-C"))
	require.NoError(t, err)

	job := waitTerminal(t, m, jobID)
	require.NoError(t, m.Shutdown(context.Background()))

	require.Equal(t, JobStatusCompleted, job.Status)
	require.Equal(t, 2, job.SuccessCount)
	require.Equal(t, 1, job.FailedCount)
	require.Equal(t, 3, job.Completed)
	require.Equal(t, 1.0, job.Progress)
	require.NotNil(t, job.FinishedAt)

	failed := job.Results[1]
	require.Equal(t, ResultFailed, failed.Status)
	require.NotNil(t, failed.Failure)
	require.Equal(t, failures.CauseGoodsReceiptAlreadyExists, failed.Failure.Cause)
	require.Equal(t, failed.Failure.Text, failed.Error)
	require.Equal(t, "4500000101", job.Results[0].ResultID)
	require.Equal(t, "4500000102", job.Results[2].ResultID)
	require.Empty(t, runner.violations)

	records, err := history.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, jobID, records[0].JobID)
	require.Equal(t, 1, records[0].FailedCount)
	require.Len(t, records[0].Failures, 1)
}

func TestManagerAllFailedIsFailed(t *testing.T) {
	sess := newFakeSession()
	sess.failFor["MAT-A"] = "net::ERR_CONNECTION_REFUSED"
	engine, _ := newTestEngine(t, fakeOpener{session: sess}, nil)
	m := NewManager(engine, nil, nil)

	jobID, err := m.Submit(testRecords("MAT-A"))
	require.NoError(t, err)
	job := waitTerminal(t, m, jobID)
	require.Equal(t, JobStatusFailed, job.Status)
	require.Equal(t, failures.CauseNetwork, job.Results[0].Failure.Cause)
}

func TestManagerCancelKeepsCompletedItems(t *testing.T) {
	sess := newFakeSession()
	sess.blockOn = "MAT-B"
	engine, _ := newTestEngine(t, fakeOpener{session: sess}, nil)
	runner := &invariantRunner{inner: engine}
	m := NewManager(runner, nil, nil)
	runner.manager = m

	jobID, err := m.Submit(testRecords("MAT-A", "MAT-B", "MAT-C"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return sess.callCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Cancel(jobID))
	job, err := m.Status(jobID)
	require.NoError(t, err)
	require.Equal(t, JobStatusCancelled, job.Status)
	require.Equal(t, ResultSuccess, job.Results[0].Status)
	require.Equal(t, ResultCancelled, job.Results[1].Status)
	require.Equal(t, ResultCancelled, job.Results[2].Status)
	require.Equal(t, 2, job.CancelledCount)

	require.NoError(t, m.Shutdown(context.Background()))
	after, err := m.Status(jobID)
	require.NoError(t, err)
	require.Equal(t, job.Status, after.Status)
	require.Equal(t, 1, after.SuccessCount)
	require.Equal(t, 2, sess.callCount())
	require.ErrorIs(t, m.Cancel(jobID), ErrJobFinished)
	require.Empty(t, runner.violations)
}

func TestManagerUnknownJob(t *testing.T) {
	m := NewManager(nil, nil, nil)
	_, err := m.Status("nope")
	require.ErrorIs(t, err, ErrJobNotFound)
	require.ErrorIs(t, m.Cancel("nope"), ErrJobNotFound)
	_, err = m.Submit(nil)
	require.ErrorIs(t, err, ErrNoRecords)
}

func TestManagerSnapshotsAreCopies(t *testing.T) {
	sess := newFakeSession()
	engine, _ := newTestEngine(t, fakeOpener{session: sess}, nil)
	m := NewManager(engine, nil, nil)

	jobID, err := m.Submit(testRecords("MAT-A"))
	require.NoError(t, err)
	job := waitTerminal(t, m, jobID)
	job.Results[0].Status = ResultPending

	again, err := m.Status(jobID)
	require.NoError(t, err)
	require.Equal(t, ResultSuccess, again.Results[0].Status)
	require.Len(t, m.List(), 1)
}

func TestManagerWatchSignalsChanges(t *testing.T) {
	sess := newFakeSession()
	sess.blockOn = "MAT-A"
	engine, _ := newTestEngine(t, fakeOpener{session: sess}, nil)
	m := NewManager(engine, nil, nil)

	jobID, err := m.Submit(testRecords("MAT-A"))
	require.NoError(t, err)
	job, changed, err := m.Watch(jobID)
	require.NoError(t, err)
	require.Equal(t, JobStatusRunning, job.Status)

	close(sess.release)
	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("no change signalled")
	}
	waitTerminal(t, m, jobID)
}

func TestHistoryPrune(t *testing.T) {
	history := newHistory(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-48 * time.Hour)
	recent := now.Add(-time.Hour)

	require.NoError(t, history.Save(ctx, HistoryRecord{JobID: "old", Status: JobStatusCompleted, StartedAt: old, FinishedAt: &old}))
	require.NoError(t, history.Save(ctx, HistoryRecord{JobID: "recent", Status: JobStatusFailed, StartedAt: recent, FinishedAt: &recent}))

	removed, err := history.Prune(ctx, 24*time.Hour, now)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	records, err := history.List(ctx, 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "recent", records[0].JobID)
}

func TestHistoryTrimsToLimit(t *testing.T) {
	history := newHistory(t)
	ctx := context.Background()
	for i := 0; i < 15; i++ {
		require.NoError(t, history.Save(ctx, HistoryRecord{JobID: fmt.Sprintf("job-%02d", i)}))
	}
	records, err := history.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 10)
	require.Equal(t, "job-14", records[0].JobID)
}
