package command

import (
	"regexp"

	"github.com/odyssey-erp/p2p/internal/docid"
)

// Interpreter turns free text into WorkItems using an injected document table.
type Interpreter struct {
	identifier *docid.Identifier
	patterns   map[docid.Kind][]*regexp.Regexp
}

// NewInterpreter builds an interpreter bound to identifier.
func NewInterpreter(identifier *docid.Identifier) *Interpreter {
	if identifier == nil {
		identifier = docid.NewIdentifier(docid.DefaultTable())
	}
	table := identifier.Table()
	return &Interpreter{
		identifier: identifier,
		patterns: map[docid.Kind][]*regexp.Regexp{
			docid.KindPurchaseOrder:   referencePatterns(table, docid.KindPurchaseOrder),
			docid.KindSupplierInvoice: referencePatterns(table, docid.KindSupplierInvoice),
		},
	}
}

// Parse classifies raw into exactly one intent and resolves its parameters.
func (in *Interpreter) Parse(raw string) WorkItem {
	n := Normalize(raw)
	if n.Text == "" {
		return unrecognized(n)
	}
	for _, r := range intentRules {
		if r.matches(n) {
			return r.build(in, n)
		}
	}
	return unrecognized(n)
}

func unrecognized(n Normalized) WorkItem {
	return WorkItem{
		Intent:  IntentUnknown,
		Command: n,
		Errors: []ValidationError{{
			Code:    CodeUnrecognized,
			Message: "The command was not recognised as a procurement action.",
			Example: "Create a purchase order",
		}},
	}
}
