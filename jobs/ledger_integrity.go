package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/p2p/internal/jobs"
	"github.com/odyssey-erp/p2p/internal/ledger"
)

// ErrLedgerCorrupt is returned when the scan finds malformed lines and the payload asks to fail.
var ErrLedgerCorrupt = errors.New("ledger integrity: malformed lines found")

// LedgerVerifier scans the ledger without modifying it.
type LedgerVerifier interface {
	Verify(ctx context.Context) (ledger.Report, error)
}

// LedgerIntegrityJob reports malformed ledger lines. The ledger is append-only, so it never repairs.
type LedgerIntegrityJob struct {
	Verifier LedgerVerifier
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewLedgerIntegrityJob initialises the integrity handler.
func NewLedgerIntegrityJob(verifier LedgerVerifier, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Verifier: verifier, Logger: logger, Metrics: metrics}
}

// Handle executes the scan.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Verifier == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.Metrics.Track(TaskLedgerIntegrity)
	defer func() {
		err = tracker.End(err)
	}()

	start := time.Now()
	report, err := j.Verifier.Verify(ctx)
	if err != nil {
		j.logger().Error("ledger integrity scan failed", slog.Any("error", err))
		return fmt.Errorf("ledger integrity: %w", err)
	}
	for _, p := range report.Problems {
		j.logger().Warn("malformed ledger line",
			slog.String("file", p.File),
			slog.Int("line", p.Line),
			slog.String("reason", p.Reason))
	}
	j.logger().Info("ledger integrity scan completed",
		slog.Any("rows", report.Rows),
		slog.Int("problems", len(report.Problems)),
		slog.Duration("duration", time.Since(start)))

	if payload.FailOnProblems && !report.Healthy() {
		return fmt.Errorf("%w: %d", ErrLedgerCorrupt, len(report.Problems))
	}
	return nil
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
