package bulk

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/p2p/internal/failures"
)

// JobStatus is the lifecycle state of a bulk job. Running is the only non-terminal state.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the job will not change anymore.
func (s JobStatus) Terminal() bool {
	return s != JobStatusRunning
}

// ResultStatus is the outcome of one record.
type ResultStatus string

const (
	ResultPending   ResultStatus = "pending"
	ResultSuccess   ResultStatus = "success"
	ResultFailed    ResultStatus = "failed"
	ResultCancelled ResultStatus = "cancelled"
)

// Record is one normalised purchase order line of an upload.
type Record struct {
	Index       int             `json:"index"`
	Material    string          `json:"material" validate:"required,max=40"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Supplier    string          `json:"supplier,omitempty" validate:"max=20"`
	PurchOrg    string          `json:"purchOrg" validate:"required,max=10"`
	PurchGroup  string          `json:"purchGroup" validate:"required,max=10"`
	CompanyCode string          `json:"companyCode" validate:"required,max=10"`
	Plant       string          `json:"plant" validate:"required,max=10"`
	Unit        string          `json:"unit" validate:"required,max=6"`
	GLAccount   string          `json:"glAccount" validate:"required,max=20"`
	CostCenter  string          `json:"costCenter" validate:"required,max=20"`
	Date        time.Time       `json:"date,omitempty"`
}

// Result tracks one record within a job.
type Result struct {
	Index       int               `json:"index"`
	Material    string            `json:"material"`
	Quantity    decimal.Decimal   `json:"quantity"`
	Price       decimal.Decimal   `json:"price"`
	Status      ResultStatus      `json:"status"`
	ResultID    string            `json:"resultId,omitempty"`
	Error       string            `json:"error,omitempty"`
	Failure     *failures.Message `json:"failure,omitempty"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

// Job is a snapshot of a bulk run.
type Job struct {
	ID             string     `json:"jobId"`
	Status         JobStatus  `json:"status"`
	Results        []Result   `json:"results"`
	Total          int        `json:"totalItems"`
	Completed      int        `json:"completedItems"`
	SuccessCount   int        `json:"successCount"`
	FailedCount    int        `json:"failedCount"`
	CancelledCount int        `json:"cancelledCount"`
	PendingCount   int        `json:"pendingCount"`
	Progress       float64    `json:"progress"`
	StartedAt      time.Time  `json:"startedAt"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
	DurationMS     int64      `json:"durationMs"`
}

// recount derives every counter from the results.
func (j *Job) recount() {
	j.Total = len(j.Results)
	j.SuccessCount, j.FailedCount, j.CancelledCount, j.PendingCount = 0, 0, 0, 0
	for _, r := range j.Results {
		switch r.Status {
		case ResultSuccess:
			j.SuccessCount++
		case ResultFailed:
			j.FailedCount++
		case ResultCancelled:
			j.CancelledCount++
		default:
			j.PendingCount++
		}
	}
	j.Completed = j.SuccessCount + j.FailedCount
	if j.Total > 0 {
		j.Progress = float64(j.Completed) / float64(j.Total)
	}
}

// clone returns a deep copy safe to hand to readers.
func (j Job) clone() Job {
	out := j
	out.Results = make([]Result, len(j.Results))
	for i, r := range j.Results {
		if r.Failure != nil {
			f := *r.Failure
			r.Failure = &f
		}
		if r.CompletedAt != nil {
			t := *r.CompletedAt
			r.CompletedAt = &t
		}
		out.Results[i] = r
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

var (
	// ErrJobNotFound indicates an unknown job id.
	ErrJobNotFound = errors.New("bulk: job not found")
	// ErrJobFinished is returned when cancelling a terminal job.
	ErrJobFinished = errors.New("bulk: job already finished")
	// ErrNoRecords rejects empty uploads.
	ErrNoRecords = errors.New("bulk: no records")
	// ErrUnsupportedFormat rejects uploads that are not CSV, XLSX or JSON.
	ErrUnsupportedFormat = errors.New("bulk: unsupported file format")
	// ErrInvalidRecord wraps per-row validation failures.
	ErrInvalidRecord = errors.New("bulk: invalid record")
)
