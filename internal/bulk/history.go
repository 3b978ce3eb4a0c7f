package bulk

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultHistoryKey = "p2p:bulk:history"

// HistoryRecord is the archived summary of a terminal job.
type HistoryRecord struct {
	JobID          string     `json:"jobId"`
	Status         JobStatus  `json:"status"`
	Total          int        `json:"totalItems"`
	SuccessCount   int        `json:"successCount"`
	FailedCount    int        `json:"failedCount"`
	CancelledCount int        `json:"cancelledCount"`
	StartedAt      time.Time  `json:"startedAt"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
	DurationMS     int64      `json:"durationMs"`
	Failures       []Result   `json:"failures,omitempty"`
}

// NewHistoryRecord summarises a job. Only failed results are kept in full.
func NewHistoryRecord(job Job) HistoryRecord {
	rec := HistoryRecord{
		JobID:          job.ID,
		Status:         job.Status,
		Total:          job.Total,
		SuccessCount:   job.SuccessCount,
		FailedCount:    job.FailedCount,
		CancelledCount: job.CancelledCount,
		StartedAt:      job.StartedAt,
		FinishedAt:     job.FinishedAt,
		DurationMS:     job.DurationMS,
	}
	for _, r := range job.Results {
		if r.Status == ResultFailed {
			rec.Failures = append(rec.Failures, r)
		}
	}
	return rec
}

// HistoryStore keeps the most recent job summaries in a Redis list, newest first.
type HistoryStore struct {
	client *redis.Client
	key    string
	limit  int64
}

// NewHistoryStore builds a store bounded to limit entries.
func NewHistoryStore(client *redis.Client, key string, limit int) *HistoryStore {
	if key == "" {
		key = defaultHistoryKey
	}
	if limit <= 0 {
		limit = 100
	}
	return &HistoryStore{client: client, key: key, limit: int64(limit)}
}

// Save prepends record and trims the list.
func (s *HistoryStore) Save(ctx context.Context, record HistoryRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("bulk: marshal history: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key, payload)
	pipe.LTrim(ctx, s.key, 0, s.limit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("bulk: save history: %w", err)
	}
	return nil
}

// List returns up to limit records, newest first. Undecodable entries are skipped.
func (s *HistoryStore) List(ctx context.Context, limit int) ([]HistoryRecord, error) {
	if limit <= 0 || int64(limit) > s.limit {
		limit = int(s.limit)
	}
	raw, err := s.client.LRange(ctx, s.key, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("bulk: list history: %w", err)
	}
	out := make([]HistoryRecord, 0, len(raw))
	for _, item := range raw {
		var rec HistoryRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Prune drops records that finished before now minus maxAge and returns how many were removed.
func (s *HistoryStore) Prune(ctx context.Context, maxAge time.Duration, now time.Time) (int, error) {
	raw, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("bulk: prune history: %w", err)
	}
	cutoff := now.Add(-maxAge)
	removed := 0
	for _, item := range raw {
		var rec HistoryRecord
		stale := json.Unmarshal([]byte(item), &rec) != nil
		if !stale {
			finished := rec.StartedAt
			if rec.FinishedAt != nil {
				finished = *rec.FinishedAt
			}
			stale = finished.Before(cutoff)
		}
		if !stale {
			continue
		}
		n, err := s.client.LRem(ctx, s.key, 1, item).Result()
		if err != nil {
			return removed, fmt.Errorf("bulk: prune history: %w", err)
		}
		removed += int(n)
	}
	return removed, nil
}
