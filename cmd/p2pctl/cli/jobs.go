package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/p2p/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// TriggerOptions tune the payload of manually triggered jobs.
type TriggerOptions struct {
	Strict bool
	MaxAge time.Duration
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, opts TriggerOptions) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	task, err := buildTask(name, opts)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
}

func buildTask(name string, opts TriggerOptions) (*asynq.Task, error) {
	switch name {
	case jobs.TaskLedgerIntegrity:
		return jobs.NewLedgerIntegrityTask(jobs.LedgerIntegrityPayload{FailOnProblems: opts.Strict})
	case jobs.TaskHistoryPrune:
		return jobs.NewHistoryPruneTask(opts.MaxAge)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Failed    int    `json:"failed"`
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			return QueueStats{Queue: jobs.QueueDefault}, nil
		}
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Failed = info.Failed
	}
	return stats, nil
}

// NewJobsCommand groups background job commands.
func NewJobsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}

	var trigger TriggerOptions
	triggerCmd := &cobra.Command{
		Use:       "trigger <task>",
		Short:     "Enqueue a maintenance task",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.TaskLedgerIntegrity, jobs.TaskHistoryPrune},
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := buildTask(args[0], trigger); err != nil {
				return err
			}
			c := NewJobsCLI(opts.RedisAddr)
			defer c.Close()
			info, err := c.Trigger(cmd.Context(), args[0], trigger)
			if err != nil {
				return err
			}
			out := map[string]string{"id": info.ID, "type": info.Type, "queue": info.Queue}
			return opts.emit(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintf(w, "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
			})
		},
	}
	triggerCmd.Flags().BoolVar(&trigger.Strict, "strict", false, "fail the ledger scan when problems are found")
	triggerCmd.Flags().DurationVar(&trigger.MaxAge, "max-age", 0, "history retention for the prune task (0 uses the worker default)")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewJobsCLI(opts.RedisAddr)
			defer c.Close()
			stats, err := c.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), stats, func(w io.Writer) {
				fmt.Fprintf(w, "queue %s: pending=%d active=%d scheduled=%d retry=%d failed=%d\n",
					stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Failed)
			})
		},
	}

	cmd.AddCommand(triggerCmd, statsCmd)
	return cmd
}
