package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/p2p/internal/automation"
	"github.com/odyssey-erp/p2p/internal/command"
	"github.com/odyssey-erp/p2p/internal/docid"
	"github.com/odyssey-erp/p2p/internal/failures"
	jobmetrics "github.com/odyssey-erp/p2p/internal/jobs"
	"github.com/odyssey-erp/p2p/internal/ledger"
)

// LedgerPort describes ledger operations used by Service.
type LedgerPort interface {
	RecordCompletion(ctx context.Context, stage ledger.Stage, id, parentID, reference string) (ledger.Entry, error)
	RecordDetail(ctx context.Context, d ledger.Detail) error
	Detail(ctx context.Context, poNumber string) (ledger.Detail, error)
	Entries(ctx context.Context, stage ledger.Stage) ([]ledger.Entry, error)
	ProgressOf(ctx context.Context, poNumber string) (ledger.Progress, error)
	ListPurchaseOrders(ctx context.Context) ([]ledger.Entry, error)
}

// Service orchestrates procurement flows against the external automation.
type Service struct {
	runner     automation.Runner
	ledger     LedgerPort
	identifier *docid.Identifier
	extractor  *automation.Extractor
	defaults   Defaults
	metrics    *jobmetrics.Metrics
	inflight   *Tracker
	logger     *slog.Logger
	statuses   singleflight.Group
}

// NewService constructs the orchestrator.
func NewService(runner automation.Runner, ledger LedgerPort, identifier *docid.Identifier, defaults Defaults, metrics *jobmetrics.Metrics, logger *slog.Logger) *Service {
	if identifier == nil {
		identifier = docid.NewIdentifier(docid.DefaultTable())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		runner:     runner,
		ledger:     ledger,
		identifier: identifier,
		extractor:  automation.NewExtractor(identifier.Table()),
		defaults:   defaults,
		metrics:    metrics,
		inflight:   NewTracker(),
		logger:     logger,
	}
}

// Execute dispatches a work item. Invalid items are reported without invoking automation.
func (s *Service) Execute(ctx context.Context, item command.WorkItem) Result {
	if !item.Valid() {
		return invalidResult(item)
	}
	ctx, done := s.inflight.Begin(ctx)
	defer done()

	f := &flow{svc: s, result: Result{Intent: item.Intent, Steps: []StepResult{}, ExtractedIDs: map[string]string{}}}
	switch item.Intent {
	case command.IntentProcureToPay:
		f.procureToPay(ctx, item.Params)
	case command.IntentCreatePurchaseOrder:
		f.purchaseOrder(ctx, item.Params)
	case command.IntentCreateGoodsReceipt:
		f.goodsReceipt(ctx, item.ReferenceID())
	case command.IntentCreateSupplierInvoice:
		po := item.ReferenceID()
		f.supplierInvoice(ctx, po, s.invoiceAmount(ctx, po, command.Params{}))
	case command.IntentCreatePayment:
		f.payment(ctx, item.ReferenceID(), s.parentOf(ctx, item.ReferenceID()))
	}
	f.finish()
	s.logger.Info("command executed",
		slog.String("intent", string(item.Intent)),
		slog.Bool("success", f.result.Success),
		slog.Bool("cancelled", f.result.Cancelled))
	return f.result
}

// Cancel signals every in-flight command; their external processes are killed.
func (s *Service) Cancel() int {
	n := s.inflight.CancelAll()
	s.logger.Info("cancel requested", slog.Int("in_flight", n))
	return n
}

// Status returns the ledger progress of a purchase order. Concurrent lookups for the
// same number share one ledger scan.
func (s *Service) Status(ctx context.Context, poNumber string) (ledger.Progress, error) {
	poNumber = strings.TrimSpace(poNumber)
	if err := s.identifier.Accepts(poNumber, docid.KindPurchaseOrder); err != nil {
		return ledger.Progress{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	// The shared scan outlives any single caller; each caller bounds its own wait.
	shared := context.WithoutCancel(ctx)
	ch := s.statuses.DoChan(poNumber, func() (interface{}, error) {
		return s.ledger.ProgressOf(shared, poNumber)
	})
	select {
	case <-ctx.Done():
		return ledger.Progress{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return ledger.Progress{}, res.Err
		}
		return res.Val.(ledger.Progress), nil
	}
}

// ListPurchaseOrders returns the purchase order ledger.
func (s *Service) ListPurchaseOrders(ctx context.Context) ([]ledger.Entry, error) {
	return s.ledger.ListPurchaseOrders(ctx)
}

// InFlight reports the number of running commands.
func (s *Service) InFlight() int {
	return s.inflight.Active()
}

// invoiceAmount is price times quantity of the originating order. The detail store
// wins over params, params over configured defaults.
func (s *Service) invoiceAmount(ctx context.Context, poNumber string, params command.Params) decimal.Decimal {
	detail, err := s.ledger.Detail(ctx, poNumber)
	if err == nil {
		return detail.Amount()
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		s.logger.Warn("read po detail", slog.String("po", poNumber), slog.Any("error", err))
	}
	p := s.defaults.resolve(params)
	return p.Price.Mul(p.Quantity)
}

// parentOf returns the purchase order recorded for an invoice, or "".
func (s *Service) parentOf(ctx context.Context, invoice string) string {
	entries, err := s.ledger.Entries(ctx, ledger.StageSupplierInvoice)
	if err != nil {
		s.logger.Warn("read invoice ledger", slog.Any("error", err))
		return ""
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].ID == invoice {
			return entries[i].ParentID
		}
	}
	return ""
}

func invalidResult(item command.WorkItem) Result {
	msg := "The command was not recognised as a procurement action."
	if len(item.Errors) > 0 {
		msg = item.Errors[0].Message
	}
	return Result{
		Intent:       item.Intent,
		Message:      msg,
		Steps:        []StepResult{},
		ExtractedIDs: map[string]string{},
		Errors:       item.Errors,
	}
}

// flow accumulates the result of one command.
type flow struct {
	svc       *Service
	result    Result
	failed    bool
	failedAt  string
	completed []string
	raw       []string
}

var stepNames = map[automation.Step]string{
	automation.StepPurchaseOrder:   "purchase order",
	automation.StepGoodsReceipt:    "goods receipt",
	automation.StepSupplierInvoice: "supplier invoice",
	automation.StepPayment:         "payment",
}

// procureToPay runs the four stages strictly in sequence. The first failure skips the rest.
func (f *flow) procureToPay(ctx context.Context, params command.Params) {
	po, ok := f.purchaseOrder(ctx, params)
	if !ok {
		f.skip(automation.StepGoodsReceipt, automation.StepSupplierInvoice, automation.StepPayment)
		return
	}
	if !f.goodsReceipt(ctx, po) {
		f.skip(automation.StepSupplierInvoice, automation.StepPayment)
		return
	}
	invoice, ok := f.supplierInvoice(ctx, po, f.svc.invoiceAmount(ctx, po, params))
	if !ok {
		f.skip(automation.StepPayment)
		return
	}
	f.payment(ctx, invoice, po)
}

func (f *flow) purchaseOrder(ctx context.Context, params command.Params) (string, bool) {
	p := f.svc.defaults.resolve(params)
	inputs := automation.Inputs{
		automation.InputSupplier: p.Supplier,
		automation.InputMaterial: p.Material,
		automation.InputQuantity: p.Quantity.String(),
		automation.InputPrice:    p.Price.String(),
	}
	out, ok := f.run(ctx, automation.StepPurchaseOrder, inputs)
	if !ok {
		return "", false
	}
	po, found := f.svc.extractor.Extract(automation.StepPurchaseOrder, out.Text)
	if !found {
		f.fail(automation.StepPurchaseOrder, out, errors.New("po number not generated"), "po number not generated")
		return "", false
	}
	f.succeed(automation.StepPurchaseOrder, out, po, IDPurchaseOrder)
	f.record(ctx, ledger.StagePurchaseOrder, po, "", "")
	if err := f.svc.ledger.RecordDetail(context.WithoutCancel(ctx), ledger.Detail{PONumber: po, Material: p.Material, Quantity: p.Quantity, Price: p.Price}); err != nil {
		f.warn("po detail not recorded", err)
	}
	return po, true
}

func (f *flow) goodsReceipt(ctx context.Context, po string) bool {
	out, ok := f.run(ctx, automation.StepGoodsReceipt, automation.Inputs{automation.InputPONumber: po})
	if !ok {
		return false
	}
	doc, _ := f.svc.extractor.Extract(automation.StepGoodsReceipt, out.Text)
	f.succeed(automation.StepGoodsReceipt, out, doc, IDMaterialDocument)
	f.record(ctx, ledger.StageGoodsReceipt, po, "", doc)
	return true
}

func (f *flow) supplierInvoice(ctx context.Context, po string, amount decimal.Decimal) (string, bool) {
	inputs := automation.Inputs{
		automation.InputPONumber: po,
		automation.InputAmount:   amount.StringFixed(2),
	}
	out, ok := f.run(ctx, automation.StepSupplierInvoice, inputs)
	if !ok {
		return "", false
	}
	invoice, found := f.svc.extractor.Extract(automation.StepSupplierInvoice, out.Text)
	if !found {
		f.fail(automation.StepSupplierInvoice, out, errors.New("invoice number missing from output"),
			"The supplier invoice step finished but no invoice number could be read from its output.")
		return "", false
	}
	f.succeed(automation.StepSupplierInvoice, out, invoice, IDSupplierInvoice)
	f.record(ctx, ledger.StageSupplierInvoice, invoice, po, "")
	return invoice, true
}

func (f *flow) payment(ctx context.Context, invoice, po string) bool {
	inputs := automation.Inputs{
		automation.InputInvoiceNumber: invoice,
		automation.InputPONumber:      po,
	}
	out, ok := f.run(ctx, automation.StepPayment, inputs)
	if !ok {
		return false
	}
	doc, _ := f.svc.extractor.Extract(automation.StepPayment, out.Text)
	f.succeed(automation.StepPayment, out, doc, IDPaymentDocument)
	f.record(ctx, ledger.StagePayment, invoice, po, doc)
	return true
}

// run executes one step and records failures. It reports whether the step succeeded.
func (f *flow) run(ctx context.Context, step automation.Step, inputs automation.Inputs) (automation.Output, bool) {
	tracker := f.svc.metrics.Track("automation_" + string(step))
	start := time.Now()
	out, err := f.svc.runner.Run(ctx, step, inputs)
	_ = tracker.End(err)
	if out.Duration == 0 {
		out.Duration = time.Since(start)
	}
	if out.Text != "" {
		f.raw = append(f.raw, out.Text)
	}
	if err != nil {
		diagnostic := err.Error()
		var stepErr *automation.StepError
		if errors.As(err, &stepErr) {
			diagnostic = stepErr.Diagnostic()
		}
		f.fail(step, out, err, diagnostic)
		return out, false
	}
	return out, true
}

func (f *flow) succeed(step automation.Step, out automation.Output, id, key string) {
	if id != "" {
		f.result.ExtractedIDs[key] = id
	}
	f.completed = append(f.completed, stepNames[step])
	f.result.Steps = append(f.result.Steps, StepResult{
		Name:       stepNames[step],
		Step:       step,
		Status:     StepStatusSuccess,
		DocumentID: id,
		DurationMS: out.Duration.Milliseconds(),
	})
}

func (f *flow) fail(step automation.Step, out automation.Output, err error, diagnostic string) {
	f.failed = true
	f.failedAt = stepNames[step]
	status := StepStatusFailed
	msg := failures.Classify(diagnostic)
	if errors.Is(err, context.Canceled) {
		status = StepStatusCancelled
		msg = failures.Classify("context canceled")
		f.result.Cancelled = true
	}
	f.result.Failure = &msg
	f.result.Steps = append(f.result.Steps, StepResult{
		Name:       stepNames[step],
		Step:       step,
		Status:     status,
		Message:    msg.Text,
		Failure:    &msg,
		DurationMS: out.Duration.Milliseconds(),
	})
	f.svc.logger.Warn("automation step failed",
		slog.String("step", string(step)),
		slog.String("cause", string(msg.Cause)),
		slog.String("output", failures.Preview(diagnostic)))
}

func (f *flow) skip(steps ...automation.Step) {
	status := StepStatusSkipped
	if f.result.Cancelled {
		status = StepStatusCancelled
	}
	for _, step := range steps {
		f.result.Steps = append(f.result.Steps, StepResult{Name: stepNames[step], Step: step, Status: status})
	}
}

// record appends the ledger entry of a completed stage. The document already exists
// downstream, so the write ignores cancellation of the run. A write failure does not
// undo the document and is reported as a warning.
func (f *flow) record(ctx context.Context, stage ledger.Stage, id, parent, reference string) {
	if _, err := f.svc.ledger.RecordCompletion(context.WithoutCancel(ctx), stage, id, parent, reference); err != nil {
		f.warn("ledger entry not recorded", err)
	}
}

func (f *flow) warn(msg string, err error) {
	f.result.Warnings = append(f.result.Warnings, fmt.Sprintf("%s: %v", msg, err))
	f.svc.logger.Error(msg, slog.Any("error", err))
}

func (f *flow) finish() {
	f.result.RawOutput = strings.Join(f.raw, "\n")
	if !f.failed {
		f.result.Success = true
		f.result.Message = successMessage(f.result)
		return
	}
	switch {
	case f.result.Cancelled:
		f.result.Message = f.result.Failure.Text
	case f.result.Intent == command.IntentProcureToPay:
		f.result.Message = stoppedMessage(f.failedAt, f.completed, f.result.Failure.Text)
	default:
		f.result.Message = f.result.Failure.Text
	}
}

// stoppedMessage names the failed step and the furthest completed one.
func stoppedMessage(failedAt string, completed []string, reason string) string {
	if len(completed) == 0 {
		return fmt.Sprintf("Procure to pay failed at the %s step. %s", failedAt, reason)
	}
	return fmt.Sprintf("Procure to pay stopped at the %s step after the %s step completed. %s", failedAt, completed[len(completed)-1], reason)
}

func successMessage(r Result) string {
	ids := r.ExtractedIDs
	switch r.Intent {
	case command.IntentProcureToPay:
		return fmt.Sprintf("Procure to pay completed: purchase order %s, supplier invoice %s, payment posted.", ids[IDPurchaseOrder], ids[IDSupplierInvoice])
	case command.IntentCreatePurchaseOrder:
		return fmt.Sprintf("Purchase order %s created.", ids[IDPurchaseOrder])
	case command.IntentCreateGoodsReceipt:
		if doc := ids[IDMaterialDocument]; doc != "" {
			return fmt.Sprintf("Goods receipt posted as material document %s.", doc)
		}
		return "Goods receipt posted."
	case command.IntentCreateSupplierInvoice:
		return fmt.Sprintf("Supplier invoice %s created.", ids[IDSupplierInvoice])
	case command.IntentCreatePayment:
		return "Payment posted."
	default:
		return "Done."
	}
}
