// Package docid classifies numeric document identifiers by their leading digits.
package docid

import (
	"errors"
)

// Kind identifies the procurement document family an id belongs to.
type Kind string

const (
	KindPurchaseOrder    Kind = "purchase_order"
	KindMaterialDocument Kind = "material_document"
	KindSupplierInvoice  Kind = "supplier_invoice"
	KindUnknown          Kind = "unknown"
)

// IDLength is the number of digits every document id carries.
const IDLength = 10

// Entry maps one document kind to the prefixes it owns.
type Entry struct {
	Kind     Kind     `yaml:"kind" json:"kind"`
	Prefixes []string `yaml:"prefixes" json:"prefixes"`
	Label    string   `yaml:"label" json:"label"`
	Short    string   `yaml:"short" json:"short"`
}

// Table is the ordered prefix configuration. Order is authoritative for overlapping prefixes.
type Table struct {
	Entries []Entry `yaml:"documents" json:"documents"`
}

// Result reports the outcome of identifying an id.
type Result struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"kind"`
	IsValid bool   `json:"isValid"`
	Label   string `json:"label,omitempty"`
}

// Reference is a (kind, id) pair.
type Reference struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

var (
	// ErrWrongDocumentType indicates an id of a different kind than required.
	ErrWrongDocumentType = errors.New("docid: wrong document type")
	// ErrUnknownDocument indicates an id whose prefix is not mapped.
	ErrUnknownDocument = errors.New("docid: unknown document number")
	// ErrInvalidTable indicates a malformed prefix configuration.
	ErrInvalidTable = errors.New("docid: invalid prefix table")
)

// DefaultTable returns the built-in prefix configuration.
func DefaultTable() Table {
	return Table{Entries: []Entry{
		{Kind: KindPurchaseOrder, Prefixes: []string{"45", "41"}, Label: "Purchase Order", Short: "PO"},
		{Kind: KindMaterialDocument, Prefixes: []string{"50", "49"}, Label: "Material Document", Short: "GR"},
		{Kind: KindSupplierInvoice, Prefixes: []string{"51", "19"}, Label: "Supplier Invoice", Short: "Invoice"},
	}}
}

// Validate checks that every entry names a known kind and at least one numeric prefix.
func (t Table) Validate() error {
	if len(t.Entries) == 0 {
		return ErrInvalidTable
	}
	for _, e := range t.Entries {
		switch e.Kind {
		case KindPurchaseOrder, KindMaterialDocument, KindSupplierInvoice:
		default:
			return errors.Join(ErrInvalidTable, errors.New("unsupported kind "+string(e.Kind)))
		}
		if len(e.Prefixes) == 0 {
			return errors.Join(ErrInvalidTable, errors.New("no prefixes for "+string(e.Kind)))
		}
		for _, p := range e.Prefixes {
			if p == "" || !allDigits(p) || len(p) >= IDLength {
				return errors.Join(ErrInvalidTable, errors.New("bad prefix "+p))
			}
		}
	}
	return nil
}

// PrefixesFor returns the configured prefixes of kind, in table order.
func (t Table) PrefixesFor(kind Kind) []string {
	var out []string
	for _, e := range t.Entries {
		if e.Kind == kind {
			out = append(out, e.Prefixes...)
		}
	}
	return out
}

// LabelFor returns the human label of kind.
func (t Table) LabelFor(kind Kind) string {
	for _, e := range t.Entries {
		if e.Kind == kind && e.Label != "" {
			return e.Label
		}
	}
	if kind == KindUnknown {
		return "unknown document"
	}
	return string(kind)
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
