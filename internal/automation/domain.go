package automation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Step names one scripted business step of the external automation tool.
type Step string

const (
	StepPurchaseOrder   Step = "purchase_order"
	StepGoodsReceipt    Step = "goods_receipt"
	StepSupplierInvoice Step = "supplier_invoice"
	StepPayment         Step = "payment"
	StepSessionRecover  Step = "session_recover"
	StepSessionReset    Step = "session_reset"
)

// Input keys passed to the external process as environment variables.
const (
	InputPONumber      = "PO_NUMBER"
	InputInvoiceNumber = "INVOICE_NUMBER"
	InputSupplier      = "SUPPLIER"
	InputMaterial      = "MATERIAL"
	InputQuantity      = "QUANTITY"
	InputPrice         = "PRICE"
	InputAmount        = "AMOUNT"
	InputPurchOrg      = "PURCH_ORG"
	InputPurchGroup    = "PURCH_GROUP"
	InputCompanyCode   = "COMPANY_CODE"
	InputPlant         = "PLANT"
	InputUnit          = "UOM"
	InputGLAccount     = "GL_ACCOUNT"
	InputCostCenter    = "COST_CENTER"
	InputSessionID     = "SESSION_ID"
)

// Inputs are the key/value parameters of one step.
type Inputs map[string]string

// Output is the combined stdout/stderr of a finished step.
type Output struct {
	Step     Step          `json:"step"`
	Text     string        `json:"text"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
}

// ErrStepFailed marks every failed step; errors.As yields the *StepError.
var ErrStepFailed = errors.New("automation: step failed")

// StepError carries the diagnostic output of a failed step.
type StepError struct {
	Step   Step
	Output string
	Err    error
}

func (e *StepError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("automation: %s failed: %v: %s", e.Step, e.Err, e.Output)
	}
	return fmt.Sprintf("automation: %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{ErrStepFailed, e.Err}
}

// Diagnostic returns the text to hand to the failure classifier.
func (e *StepError) Diagnostic() string {
	if e.Output != "" {
		return e.Output
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Runner executes one step per call in its own process.
type Runner interface {
	Run(ctx context.Context, step Step, inputs Inputs) (Output, error)
}

// Session is one long-lived automation session reused across batch records.
type Session interface {
	ID() string
	CreatePurchaseOrder(ctx context.Context, inputs Inputs) (Output, error)
	Recover(ctx context.Context) error
	Reset(ctx context.Context) error
	Close() error
}

// SessionOpener opens batch sessions.
type SessionOpener interface {
	OpenSession(ctx context.Context) (Session, error)
}
