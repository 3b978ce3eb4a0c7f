package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/p2p/internal/jobs"
)

// HistoryPruner removes bulk summaries older than maxAge.
type HistoryPruner interface {
	Prune(ctx context.Context, maxAge time.Duration, now time.Time) (int, error)
}

// HistoryPruneJob keeps the bulk history bounded in age.
type HistoryPruneJob struct {
	Pruner  HistoryPruner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	MaxAge  time.Duration
	clock   func() time.Time
}

// NewHistoryPruneJob initialises the prune handler with a default age.
func NewHistoryPruneJob(pruner HistoryPruner, maxAge time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *HistoryPruneJob {
	return &HistoryPruneJob{
		Pruner:  pruner,
		Logger:  logger,
		Metrics: metrics,
		MaxAge:  maxAge,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one prune pass.
func (j *HistoryPruneJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Pruner == nil {
		return errors.New("history prune: handler not configured")
	}
	var payload HistoryPrunePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	maxAge := payload.MaxAge
	if maxAge <= 0 {
		maxAge = j.MaxAge
	}
	if maxAge <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskHistoryPrune)
	defer func() {
		err = tracker.End(err)
	}()

	removed, err := j.Pruner.Prune(ctx, maxAge, j.clock())
	if err != nil {
		return err
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("bulk history pruned", slog.Int("removed", removed), slog.Duration("max_age", maxAge))
	return nil
}
