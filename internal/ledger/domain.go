package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Stage names one append-only ledger.
type Stage string

const (
	StagePurchaseOrder   Stage = "purchase_order"
	StageGoodsReceipt    Stage = "goods_receipt"
	StageSupplierInvoice Stage = "supplier_invoice"
	StagePayment         Stage = "payment"
)

// Stages lists every ledger in process order.
var Stages = []Stage{StagePurchaseOrder, StageGoodsReceipt, StageSupplierInvoice, StagePayment}

// FileName returns the file backing the stage inside the ledger directory.
func (s Stage) FileName() string {
	switch s {
	case StagePurchaseOrder:
		return "purchase_orders.csv"
	case StageGoodsReceipt:
		return "goods_receipts.csv"
	case StageSupplierInvoice:
		return "invoices.csv"
	case StagePayment:
		return "payments.csv"
	default:
		return ""
	}
}

// Entry is one completed stage. ID is always the first field of its line.
//
// Goods receipts are keyed by the purchase order they complete and payments by
// the invoice they settle; Reference then carries the document the stage produced.
type Entry struct {
	ID        string    `json:"id"`
	Stage     Stage     `json:"stage"`
	CreatedAt time.Time `json:"createdAt"`
	ParentID  string    `json:"parentId,omitempty"`
	Reference string    `json:"reference,omitempty"`
}

// Detail holds the purchase order values used to derive invoice amounts.
type Detail struct {
	PONumber   string          `json:"poNumber"`
	Material   string          `json:"material"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	RecordedAt time.Time       `json:"recordedAt"`
}

// Amount is price times quantity.
func (d Detail) Amount() decimal.Decimal {
	return d.Price.Mul(d.Quantity)
}

// Next step codes reported by Progress.
const (
	NextUnknown         = "unknown"
	NextGoodsReceipt    = "create_goods_receipt"
	NextSupplierInvoice = "create_supplier_invoice"
	NextPayment         = "create_payment"
	NextNone            = "none"
)

// Progress summarises the ledgers for one purchase order.
type Progress struct {
	PONumber              string `json:"poNumber"`
	Exists                bool   `json:"exists"`
	POCreated             bool   `json:"poCreated"`
	GoodsReceiptCompleted bool   `json:"goodsReceiptCompleted"`
	InvoiceCreated        bool   `json:"invoiceCreated"`
	InvoiceNumber         string `json:"invoiceNumber,omitempty"`
	PaymentCompleted      bool   `json:"paymentCompleted"`
	NextStep              string `json:"nextStep"`
}

func (p *Progress) resolveNextStep() {
	switch {
	case !p.Exists:
		p.NextStep = NextUnknown
	case !p.GoodsReceiptCompleted:
		p.NextStep = NextGoodsReceipt
	case !p.InvoiceCreated:
		p.NextStep = NextSupplierInvoice
	case !p.PaymentCompleted:
		p.NextStep = NextPayment
	default:
		p.NextStep = NextNone
	}
}

var (
	// ErrNotFound indicates no ledger line matched.
	ErrNotFound = errors.New("ledger: not found")
	// ErrUnknownStage is returned for a stage without a backing file.
	ErrUnknownStage = errors.New("ledger: unknown stage")
	// ErrEmptyID rejects appends without a document id.
	ErrEmptyID = errors.New("ledger: empty document id")
)
