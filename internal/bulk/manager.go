package bulk

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/p2p/internal/failures"
)

// Runner processes the records of one job.
type Runner interface {
	Run(ctx context.Context, jobID string, records []Record, progress Progress)
}

// HistoryRecorder persists terminal jobs.
type HistoryRecorder interface {
	Save(ctx context.Context, record HistoryRecord) error
}

type jobState struct {
	job     Job
	cancel  context.CancelFunc
	changed chan struct{}
}

// Manager owns the state of every bulk job in this process.
type Manager struct {
	mu      sync.RWMutex
	jobs    map[string]*jobState
	runner  Runner
	history HistoryRecorder
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
	base    context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager builds a manager. history may be nil.
func NewManager(runner Runner, history HistoryRecorder, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	base, stop := context.WithCancel(context.Background())
	return &Manager{
		jobs:    make(map[string]*jobState),
		runner:  runner,
		history: history,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
		base:    base,
		stop:    stop,
	}
}

// Submit creates a job with one pending result per record and starts it in the background.
func (m *Manager) Submit(records []Record) (string, error) {
	if len(records) == 0 {
		return "", ErrNoRecords
	}
	id := m.newID()
	job := Job{ID: id, Status: JobStatusRunning, StartedAt: m.now().UTC(), Results: make([]Result, len(records))}
	own := make([]Record, len(records))
	for i, rec := range records {
		rec.Index = i
		own[i] = rec
		job.Results[i] = Result{Index: i, Material: rec.Material, Quantity: rec.Quantity, Price: rec.Price, Status: ResultPending}
	}
	job.recount()

	ctx, cancel := context.WithCancel(m.base)
	m.mu.Lock()
	m.jobs[id] = &jobState{job: job, cancel: cancel, changed: make(chan struct{})}
	m.mu.Unlock()

	m.logger.Info("bulk job submitted", slog.String("job_id", id), slog.Int("records", len(records)))
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.runner.Run(ctx, id, own, &jobProgress{manager: m, jobID: id})
	}()
	return id, nil
}

// Status returns a deep-copied snapshot.
func (m *Manager) Status(jobID string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.jobs[jobID]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return st.job.clone(), nil
}

// Watch returns a snapshot and a channel closed on the next change of the job.
func (m *Manager) Watch(jobID string) (Job, <-chan struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.jobs[jobID]
	if !ok {
		return Job{}, nil, ErrJobNotFound
	}
	return st.job.clone(), st.changed, nil
}

// List returns snapshots of all jobs, newest first.
func (m *Manager) List() []Job {
	m.mu.RLock()
	out := make([]Job, 0, len(m.jobs))
	for _, st := range m.jobs {
		out = append(out, st.job.clone())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// Cancel flips a running job to cancelled, marks its pending results cancelled and
// stops the in-flight automation step. Completed results are kept.
func (m *Manager) Cancel(jobID string) error {
	m.mu.Lock()
	st, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return ErrJobNotFound
	}
	if st.job.Status.Terminal() {
		m.mu.Unlock()
		return ErrJobFinished
	}
	now := m.now().UTC()
	for i := range st.job.Results {
		if st.job.Results[i].Status == ResultPending {
			st.job.Results[i].Status = ResultCancelled
			st.job.Results[i].CompletedAt = &now
		}
	}
	m.terminate(st, JobStatusCancelled, now)
	snapshot := st.job.clone()
	st.cancel()
	m.mu.Unlock()

	m.logger.Info("bulk job cancelled", slog.String("job_id", jobID))
	m.archive(snapshot)
	return nil
}

// Shutdown cancels running jobs and waits for their runners to return.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stop()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// update applies fn to a running job under the lock and notifies watchers.
func (m *Manager) update(jobID string, fn func(st *jobState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.jobs[jobID]
	if !ok {
		return
	}
	fn(st)
	st.job.recount()
	close(st.changed)
	st.changed = make(chan struct{})
}

// terminate must be called with the lock held.
func (m *Manager) terminate(st *jobState, status JobStatus, at time.Time) {
	st.job.Status = status
	st.job.FinishedAt = &at
	st.job.DurationMS = at.Sub(st.job.StartedAt).Milliseconds()
	st.job.recount()
	close(st.changed)
	st.changed = make(chan struct{})
}

func (m *Manager) archive(job Job) {
	if m.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.history.Save(ctx, NewHistoryRecord(job)); err != nil {
		m.logger.Warn("save bulk history", slog.String("job_id", job.ID), slog.Any("error", err))
	}
}

// jobProgress is the engine's write handle for one job. Only pending results change.
type jobProgress struct {
	manager *Manager
	jobID   string
}

func (p *jobProgress) Succeed(index int, resultID string) {
	now := p.manager.now().UTC()
	p.manager.update(p.jobID, func(st *jobState) {
		if index < 0 || index >= len(st.job.Results) || st.job.Results[index].Status != ResultPending {
			return
		}
		r := &st.job.Results[index]
		r.Status = ResultSuccess
		r.ResultID = resultID
		r.CompletedAt = &now
	})
}

func (p *jobProgress) Fail(index int, msg failures.Message, raw string) {
	now := p.manager.now().UTC()
	p.manager.update(p.jobID, func(st *jobState) {
		if index < 0 || index >= len(st.job.Results) || st.job.Results[index].Status != ResultPending {
			return
		}
		r := &st.job.Results[index]
		r.Status = ResultFailed
		r.Error = msg.Text
		m := msg
		r.Failure = &m
		r.CompletedAt = &now
	})
	if raw != "" {
		p.manager.logger.Debug("bulk record diagnostic", slog.String("job_id", p.jobID), slog.Int("index", index), slog.String("output", failures.Preview(raw)))
	}
}

// Finish settles the job. Cancellation already settled it; otherwise any still
// pending result is cancelled so the job is terminal only with terminal items.
func (p *jobProgress) Finish(cancelled bool) {
	m := p.manager
	now := m.now().UTC()
	m.mu.Lock()
	st, ok := m.jobs[p.jobID]
	if !ok || st.job.Status.Terminal() {
		m.mu.Unlock()
		return
	}
	for i := range st.job.Results {
		if st.job.Results[i].Status == ResultPending {
			st.job.Results[i].Status = ResultCancelled
			st.job.Results[i].CompletedAt = &now
		}
	}
	st.job.recount()
	status := JobStatusCompleted
	switch {
	case cancelled:
		status = JobStatusCancelled
	case st.job.SuccessCount == 0 && st.job.FailedCount > 0:
		status = JobStatusFailed
	}
	m.terminate(st, status, now)
	snapshot := st.job.clone()
	m.mu.Unlock()

	m.logger.Info("bulk job finished",
		slog.String("job_id", p.jobID),
		slog.String("status", string(status)),
		slog.Int("success", snapshot.SuccessCount),
		slog.Int("failed", snapshot.FailedCount))
	m.archive(snapshot)
}
