package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config describes how steps are launched.
type Config struct {
	Command     string
	Args        []string
	WorkDir     string
	StepTimeout time.Duration
	Scripts     map[Step]string
	Env         []string
}

// ExecRunner launches the configured command once per step and waits for it to exit.
type ExecRunner struct {
	cfg    Config
	logger *slog.Logger
}

// NewExecRunner validates cfg and builds a runner.
func NewExecRunner(cfg Config, logger *slog.Logger) (*ExecRunner, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, errors.New("automation: command required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{cfg: cfg, logger: logger}, nil
}

// Run executes step with inputs exported as environment variables. A non-zero exit,
// a launch error or a cancelled context is returned as *StepError.
func (r *ExecRunner) Run(ctx context.Context, step Step, inputs Inputs) (Output, error) {
	script, ok := r.cfg.Scripts[step]
	if !ok || script == "" {
		return Output{Step: step}, &StepError{Step: step, Err: fmt.Errorf("no script configured for %s", step)}
	}
	if r.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.StepTimeout)
		defer cancel()
	}

	args := append(append([]string(nil), r.cfg.Args...), script)
	cmd := exec.CommandContext(ctx, r.cfg.Command, args...)
	cmd.Dir = r.cfg.WorkDir
	cmd.Env = append(append(os.Environ(), r.cfg.Env...), inputs.environ()...)
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	raw, err := cmd.CombinedOutput()
	out := Output{Step: step, Text: strings.TrimSpace(string(raw)), Duration: time.Since(start)}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}
	logger := r.logger.With(slog.String("step", string(step)), slog.Duration("duration", out.Duration))
	if err != nil {
		switch ctxErr := ctx.Err(); {
		case errors.Is(ctxErr, context.DeadlineExceeded):
			err = fmt.Errorf("timeout waiting for %s step: %w", step, ctxErr)
		case errors.Is(ctxErr, context.Canceled):
			err = ctxErr
		}
		logger.Warn("automation step failed", slog.Int("exit_code", out.ExitCode), slog.Any("error", err))
		return out, &StepError{Step: step, Output: out.Text, Err: err}
	}
	logger.Info("automation step finished")
	return out, nil
}

// OpenSession starts a batch session. Every step of the session shares one SESSION_ID.
func (r *ExecRunner) OpenSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &execSession{runner: r, id: uuid.NewString()}, nil
}

type execSession struct {
	runner *ExecRunner
	id     string
}

func (s *execSession) ID() string {
	return s.id
}

func (s *execSession) CreatePurchaseOrder(ctx context.Context, inputs Inputs) (Output, error) {
	return s.runner.Run(ctx, StepPurchaseOrder, s.withSession(inputs))
}

func (s *execSession) Recover(ctx context.Context) error {
	_, err := s.runner.Run(ctx, StepSessionRecover, s.withSession(nil))
	return err
}

func (s *execSession) Reset(ctx context.Context) error {
	_, err := s.runner.Run(ctx, StepSessionReset, s.withSession(nil))
	return err
}

func (s *execSession) Close() error {
	return nil
}

func (s *execSession) withSession(inputs Inputs) Inputs {
	merged := make(Inputs, len(inputs)+1)
	for k, v := range inputs {
		merged[k] = v
	}
	merged[InputSessionID] = s.id
	return merged
}

// environ renders inputs as sorted KEY=VALUE pairs, skipping empty values.
func (in Inputs) environ() []string {
	keys := make([]string, 0, len(in))
	for k, v := range in {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+in[k])
	}
	return env
}
