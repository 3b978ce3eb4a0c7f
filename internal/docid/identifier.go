package docid

import (
	"fmt"
	"strings"
)

// Identifier classifies ids against an injected table. It performs no I/O.
type Identifier struct {
	table Table
}

// NewIdentifier wraps table.
func NewIdentifier(table Table) *Identifier {
	return &Identifier{table: table}
}

// Table exposes the configuration the identifier was built with.
func (i *Identifier) Table() Table {
	if i == nil {
		return DefaultTable()
	}
	return i.table
}

// Identify returns the kind of id. Blank or non-10-digit ids are invalid.
func (i *Identifier) Identify(id string) Result {
	id = strings.TrimSpace(id)
	res := Result{ID: id, Kind: KindUnknown}
	if id == "" || len(id) != IDLength || !allDigits(id) {
		return res
	}
	for _, e := range i.Table().Entries {
		for _, p := range e.Prefixes {
			if strings.HasPrefix(id, p) {
				res.Kind = e.Kind
				res.IsValid = true
				res.Label = e.Label
				return res
			}
		}
	}
	return res
}

// Accepts reports whether id satisfies a parameter requiring kind.
func (i *Identifier) Accepts(id string, required Kind) error {
	res := i.Identify(id)
	if !res.IsValid {
		return fmt.Errorf("%w: %s is not a recognised %s number", ErrUnknownDocument, id, i.Table().LabelFor(required))
	}
	if res.Kind != required {
		return fmt.Errorf("%w: %s is a %s, expected a %s", ErrWrongDocumentType, id, res.Label, i.Table().LabelFor(required))
	}
	return nil
}

// Reference builds a Reference for id.
func (i *Identifier) Reference(id string) Reference {
	res := i.Identify(id)
	return Reference{Kind: res.Kind, ID: res.ID}
}
