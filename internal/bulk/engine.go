package bulk

import (
	"context"
	"errors"
	"log/slog"

	"github.com/odyssey-erp/p2p/internal/automation"
	"github.com/odyssey-erp/p2p/internal/docid"
	"github.com/odyssey-erp/p2p/internal/failures"
	jobmetrics "github.com/odyssey-erp/p2p/internal/jobs"
	"github.com/odyssey-erp/p2p/internal/ledger"
)

// LedgerPort is the part of the ledger the engine appends to.
type LedgerPort interface {
	RecordCompletion(ctx context.Context, stage ledger.Stage, id, parentID, reference string) (ledger.Entry, error)
	RecordDetail(ctx context.Context, d ledger.Detail) error
}

// Progress receives per-record outcomes of one run.
type Progress interface {
	Succeed(index int, resultID string)
	Fail(index int, msg failures.Message, raw string)
	Finish(cancelled bool)
}

// Engine runs purchase order creation over records inside one automation session.
type Engine struct {
	sessions  automation.SessionOpener
	ledger    LedgerPort
	extractor *automation.Extractor
	excluded  Windows
	metrics   *jobmetrics.Metrics
	logger    *slog.Logger
}

// NewEngine builds an engine.
func NewEngine(sessions automation.SessionOpener, ledger LedgerPort, table docid.Table, excluded Windows, metrics *jobmetrics.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		sessions:  sessions,
		ledger:    ledger,
		extractor: automation.NewExtractor(table),
		excluded:  excluded,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run processes records strictly one at a time. A failed record triggers a session
// recovery, and a failed recovery a full reset, before the next record starts.
func (e *Engine) Run(ctx context.Context, jobID string, records []Record, progress Progress) {
	logger := e.logger.With(slog.String("job_id", jobID))
	sess, err := e.sessions.OpenSession(ctx)
	if err != nil {
		msg := failures.Classify(diagnostic(err))
		logger.Error("open automation session", slog.Any("error", err))
		for _, rec := range records {
			progress.Fail(rec.Index, msg, err.Error())
		}
		progress.Finish(ctx.Err() != nil)
		return
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("close automation session", slog.Any("error", err))
		}
	}()
	logger = logger.With(slog.String("session_id", sess.ID()))

	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		if e.excluded.Contains(rec.Date) {
			progress.Fail(rec.Index, failures.Classify(excludedMessage(rec)), "")
			e.metrics.ObserveItem("skipped")
			continue
		}
		tracker := e.metrics.Track("bulk_purchase_order")
		id, raw, err := e.createOne(ctx, sess, rec)
		_ = tracker.End(err)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			msg := failures.Classify(raw)
			logger.Warn("bulk record failed", slog.Int("index", rec.Index), slog.String("cause", string(msg.Cause)))
			progress.Fail(rec.Index, msg, raw)
			e.metrics.ObserveItem("failed")
			e.restore(ctx, sess, logger)
			continue
		}
		e.record(ctx, rec, id, logger)
		progress.Succeed(rec.Index, id)
		e.metrics.ObserveItem("success")
	}
	progress.Finish(ctx.Err() != nil)
}

func (e *Engine) createOne(ctx context.Context, sess automation.Session, rec Record) (string, string, error) {
	out, err := sess.CreatePurchaseOrder(ctx, rec.inputs())
	if err != nil {
		return "", diagnostic(err), err
	}
	id, ok := e.extractor.Extract(automation.StepPurchaseOrder, out.Text)
	if !ok {
		return "", "po number not generated", errors.New("bulk: po number not generated")
	}
	return id, out.Text, nil
}

func (e *Engine) restore(ctx context.Context, sess automation.Session, logger *slog.Logger) {
	err := sess.Recover(ctx)
	if err == nil || ctx.Err() != nil {
		return
	}
	logger.Warn("session recovery failed, resetting", slog.Any("error", err))
	if err := sess.Reset(ctx); err != nil {
		logger.Error("session reset failed", slog.Any("error", err))
	}
}

func (e *Engine) record(ctx context.Context, rec Record, id string, logger *slog.Logger) {
	// The order exists once the session reported it; cancellation must not drop the entry.
	ctx = context.WithoutCancel(ctx)
	if _, err := e.ledger.RecordCompletion(ctx, ledger.StagePurchaseOrder, id, "", ""); err != nil {
		logger.Error("record purchase order", slog.String("po", id), slog.Any("error", err))
	}
	detail := ledger.Detail{PONumber: id, Material: rec.Material, Quantity: rec.Quantity, Price: rec.Price}
	if err := e.ledger.RecordDetail(ctx, detail); err != nil {
		logger.Error("record purchase order detail", slog.String("po", id), slog.Any("error", err))
	}
}

func (r Record) inputs() automation.Inputs {
	return automation.Inputs{
		automation.InputMaterial:    r.Material,
		automation.InputQuantity:    r.Quantity.String(),
		automation.InputPrice:       r.Price.String(),
		automation.InputSupplier:    r.Supplier,
		automation.InputPurchOrg:    r.PurchOrg,
		automation.InputPurchGroup:  r.PurchGroup,
		automation.InputCompanyCode: r.CompanyCode,
		automation.InputPlant:       r.Plant,
		automation.InputUnit:        r.Unit,
		automation.InputGLAccount:   r.GLAccount,
		automation.InputCostCenter:  r.CostCenter,
	}
}

func excludedMessage(rec Record) string {
	return "Skipped because " + rec.Date.Format("2006-01-02") + " falls in an excluded posting window."
}

func diagnostic(err error) string {
	var stepErr *automation.StepError
	if errors.As(err, &stepErr) {
		return stepErr.Diagnostic()
	}
	return err.Error()
}
