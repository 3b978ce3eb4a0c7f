// Package command interprets free-text procurement commands into validated work items.
package command

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/p2p/internal/docid"
)

// Intent is the single action selected for a command.
type Intent string

const (
	IntentProcureToPay          Intent = "procure_to_pay"
	IntentCreatePurchaseOrder   Intent = "create_purchase_order"
	IntentCreateGoodsReceipt    Intent = "create_goods_receipt"
	IntentCreateSupplierInvoice Intent = "create_supplier_invoice"
	IntentCreatePayment         Intent = "create_payment"
	IntentUnknown               Intent = "unknown"
)

// RequiredKind returns the document kind an intent must reference, if any.
func (i Intent) RequiredKind() (docid.Kind, bool) {
	switch i {
	case IntentCreateGoodsReceipt, IntentCreateSupplierInvoice:
		return docid.KindPurchaseOrder, true
	case IntentCreatePayment:
		return docid.KindSupplierInvoice, true
	default:
		return docid.KindUnknown, false
	}
}

// Validation error codes.
const (
	CodeInvoiceMissingPO      = "invoice_missing_po"
	CodeGoodsReceiptMissingPO = "goods_receipt_missing_po"
	CodePaymentMissingInvoice = "payment_missing_invoice"
	CodeWrongDocumentType     = "wrong_document_type"
	CodeUnknownDocument       = "unknown_document"
	CodeUnrecognized          = "unrecognized_command"
)

// ValidationError describes why a command cannot be dispatched.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Example string `json:"example,omitempty"`
}

func (e ValidationError) Error() string {
	return e.Code + ": " + e.Message
}

// Params holds the resolved creation parameters of a purchase order.
// Zero values mean "not given"; the orchestrator applies configured defaults.
type Params struct {
	Supplier string          `json:"supplier,omitempty"`
	Material string          `json:"material,omitempty"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Normalized is the cleaned form of a raw command.
type Normalized struct {
	Raw     string   `json:"raw"`
	Text    string   `json:"text"`
	Words   []string `json:"-"`
	Numbers []string `json:"numbers,omitempty"`
}

// HasNumber reports whether the command carries a 10-digit number.
func (n Normalized) HasNumber() bool {
	return len(n.Numbers) > 0
}

// WorkItem is one resolved unit of work.
type WorkItem struct {
	Intent    Intent            `json:"intent"`
	Command   Normalized        `json:"command"`
	Params    Params            `json:"params"`
	Reference *docid.Reference  `json:"reference,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

// Valid reports whether the item may be dispatched.
func (w WorkItem) Valid() bool {
	return len(w.Errors) == 0 && w.Intent != IntentUnknown
}

// ReferenceID returns the referenced document id or "".
func (w WorkItem) ReferenceID() string {
	if w.Reference == nil {
		return ""
	}
	return w.Reference.ID
}
