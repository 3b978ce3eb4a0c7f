package procurement

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/p2p/internal/automation"
	"github.com/odyssey-erp/p2p/internal/command"
	"github.com/odyssey-erp/p2p/internal/failures"
)

// StepStatus is the outcome of one automation step within a flow.
type StepStatus string

const (
	StepStatusSuccess   StepStatus = "success"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
	StepStatusCancelled StepStatus = "cancelled"
)

// Keys of Result.ExtractedIDs.
const (
	IDPurchaseOrder    = "poNumber"
	IDMaterialDocument = "materialDocument"
	IDSupplierInvoice  = "invoiceNumber"
	IDPaymentDocument  = "paymentDocument"
)

// StepResult reports one step of a flow.
type StepResult struct {
	Name       string            `json:"name"`
	Step       automation.Step   `json:"step"`
	Status     StepStatus        `json:"status"`
	DocumentID string            `json:"documentId,omitempty"`
	Message    string            `json:"message,omitempty"`
	Failure    *failures.Message `json:"failure,omitempty"`
	DurationMS int64             `json:"durationMs"`
}

// Result is returned by Execute for every work item, valid or not.
type Result struct {
	Success      bool                      `json:"success"`
	Intent       command.Intent            `json:"intent"`
	Message      string                    `json:"message"`
	Steps        []StepResult              `json:"steps"`
	ExtractedIDs map[string]string         `json:"extractedIds"`
	RawOutput    string                    `json:"rawOutput,omitempty"`
	Errors       []command.ValidationError `json:"errors,omitempty"`
	Failure      *failures.Message         `json:"failure,omitempty"`
	Cancelled    bool                      `json:"cancelled,omitempty"`
	Warnings     []string                  `json:"warnings,omitempty"`
}

// Defaults fill purchase order parameters the command did not mention.
type Defaults struct {
	Supplier string
	Material string
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// resolve merges p over the defaults.
func (d Defaults) resolve(p command.Params) command.Params {
	if p.Supplier == "" {
		p.Supplier = d.Supplier
	}
	if p.Material == "" {
		p.Material = d.Material
	}
	if !p.Quantity.IsPositive() {
		p.Quantity = d.Quantity
	}
	if !p.Price.IsPositive() {
		p.Price = d.Price
	}
	return p
}

var (
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("procurement: invalid input")
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("procurement: not found")
)
