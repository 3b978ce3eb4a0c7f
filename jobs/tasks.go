package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity scans the document ledger for malformed lines.
	TaskLedgerIntegrity = "ledger:verify"
	// TaskHistoryPrune drops old bulk job summaries.
	TaskHistoryPrune = "bulk:history_prune"
)

// LedgerIntegrityPayload contains options for the integrity scan.
type LedgerIntegrityPayload struct {
	FailOnProblems bool `json:"failOnProblems"`
}

// HistoryPrunePayload bounds the age of kept bulk history.
type HistoryPrunePayload struct {
	MaxAge time.Duration `json:"maxAge"`
}

// NewLedgerIntegrityTask builds a ledger integrity task.
func NewLedgerIntegrityTask(payload LedgerIntegrityPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}

// NewHistoryPruneTask builds a history prune task.
func NewHistoryPruneTask(maxAge time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(HistoryPrunePayload{MaxAge: maxAge})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHistoryPrune, body, asynq.Queue(QueueDefault)), nil
}
