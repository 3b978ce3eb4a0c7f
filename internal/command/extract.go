package command

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/p2p/internal/docid"
)

// docTypeWords names each kind the way users write it. Longer alternatives come first.
var docTypeWords = map[docid.Kind]string{
	docid.KindPurchaseOrder:   `\b(?:purchase\s*order|purchasing\s*order|p\.o\.?|po)`,
	docid.KindSupplierInvoice: `\b(?:supplier\s+invoice|vendor\s+invoice|invoice|inv\.?|bill)`,
}

const idCapture = `(\d{10})(?:\D|$)`

// referencePatterns builds the ordered extraction patterns for kind.
func referencePatterns(table docid.Table, kind docid.Kind) []*regexp.Regexp {
	words := docTypeWords[kind]
	patterns := []*regexp.Regexp{
		regexp.MustCompile(words + `\s*#?\s*` + idCapture),
		regexp.MustCompile(words + `\s+(?:number|num|no\.?|nr\.?|#)\s*[:#]?\s*` + idCapture),
		regexp.MustCompile(`\b(?:with|for|against)\s+` + idCapture),
	}
	if anchored := prefixPattern(table.PrefixesFor(kind)); anchored != nil {
		patterns = append(patterns, anchored)
	}
	return append(patterns, regexp.MustCompile(`(?:^|\D)`+idCapture))
}

func prefixPattern(prefixes []string) *regexp.Regexp {
	if len(prefixes) == 0 {
		return nil
	}
	alts := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		alts = append(alts, fmt.Sprintf(`%s\d{%d}`, regexp.QuoteMeta(p), docid.IDLength-len(p)))
	}
	return regexp.MustCompile(`(?:^|\D)(` + strings.Join(alts, "|") + `)(?:\D|$)`)
}

// extractReference returns the first id matched by the ordered patterns for kind.
func (in *Interpreter) extractReference(n Normalized, kind docid.Kind) (string, bool) {
	if !n.HasNumber() {
		return "", false
	}
	for _, p := range in.patterns[kind] {
		if m := p.FindStringSubmatch(n.Text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

var (
	quantityPattern = regexp.MustCompile(`(?:qty|quantity)\s*[:=]?\s*(\d+(?:\.\d+)?)|(\d+(?:\.\d+)?)\s*(?:units?|pcs|pieces|ea|each|pc|x)\b`)
	pricePattern    = regexp.MustCompile(`(?:\bat|\bprice|@|\bcost)\s*[:=]?\s*(?:\$|€|usd|eur)?\s*(\d+(?:\.\d+)?)`)
	materialPattern = regexp.MustCompile(`\b(?:material|item|product|sku)\s*[:#]?\s*([a-z0-9][a-z0-9\-_.]*)`)
	supplierPattern = regexp.MustCompile(`\b(?:supplier|vendor)\s*[:#]?\s*([a-z0-9][a-z0-9\-_]*)`)
)

// extractParams pulls optional purchase-order creation parameters out of the command.
func extractParams(n Normalized) Params {
	var p Params
	if m := quantityPattern.FindStringSubmatch(n.Text); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if d, err := decimal.NewFromString(raw); err == nil {
			p.Quantity = d
		}
	}
	if m := pricePattern.FindStringSubmatch(n.Text); m != nil {
		if d, err := decimal.NewFromString(m[1]); err == nil {
			p.Price = d
		}
	}
	if m := materialPattern.FindStringSubmatch(n.Text); m != nil {
		p.Material = strings.ToUpper(strings.TrimRight(m[1], "."))
	}
	if m := supplierPattern.FindStringSubmatch(n.Text); m != nil {
		p.Supplier = strings.ToUpper(m[1])
	}
	return p
}

func missingReference(intent Intent) ValidationError {
	switch intent {
	case IntentCreateSupplierInvoice:
		return ValidationError{
			Code:    CodeInvoiceMissingPO,
			Message: "Creating a supplier invoice needs the purchase order number it belongs to.",
			Example: "Create invoice for PO 4500001075",
		}
	case IntentCreateGoodsReceipt:
		return ValidationError{
			Code:    CodeGoodsReceiptMissingPO,
			Message: "Posting a goods receipt needs the purchase order number.",
			Example: "Post GR for PO 4500001075",
		}
	default:
		return ValidationError{
			Code:    CodePaymentMissingInvoice,
			Message: "Processing a payment needs the supplier invoice number.",
			Example: "Process payment for invoice 5105600001",
		}
	}
}

func referenceError(in *Interpreter, intent Intent, id string, err error) ValidationError {
	kind, _ := intent.RequiredKind()
	table := in.identifier.Table()
	example := missingReference(intent).Example
	if errors.Is(err, docid.ErrWrongDocumentType) {
		got := in.identifier.Identify(id)
		return ValidationError{
			Code:    CodeWrongDocumentType,
			Message: fmt.Sprintf("%s is a %s number, not a %s number (wrong document type).", id, got.Label, table.LabelFor(kind)),
			Example: example,
		}
	}
	return ValidationError{
		Code:    CodeUnknownDocument,
		Message: fmt.Sprintf("%s is not a recognised %s number.", id, table.LabelFor(kind)),
		Example: example,
	}
}
