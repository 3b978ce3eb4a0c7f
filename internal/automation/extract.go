package automation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/odyssey-erp/p2p/internal/docid"
)

// labelPatterns are tried in order before any bare-number fallback.
var labelPatterns = map[Step][]*regexp.Regexp{
	StepPurchaseOrder: {
		regexp.MustCompile(`(?i)standard\s+po\s+created\s+under\s+the\s+number\s+(\d{10})`),
		regexp.MustCompile(`(?i)purchase\s*order\s*(?:number|no\.?|#)?\s*[:=]?\s*(\d{10})`),
		regexp.MustCompile(`(?i)\bpo[_\s-]*(?:number|no\.?|#)?\s*[:=]?\s*(\d{10})`),
	},
	StepGoodsReceipt: {
		regexp.MustCompile(`(?i)material\s+document\s*(?:number|no\.?|#)?\s*[:=]?\s*(\d{10})`),
		regexp.MustCompile(`(?i)\bdocument\s+(\d{10})\s+posted`),
		regexp.MustCompile(`(?i)\bgr[_\s-]*(?:number|no\.?|#)?\s*[:=]?\s*(\d{10})`),
	},
	StepSupplierInvoice: {
		regexp.MustCompile(`(?i)document\s+no\.?\s+(\d{10})\s+was\s+(?:posted|created)`),
		regexp.MustCompile(`(?i)(?:supplier\s+)?invoice\s*(?:document|number|no\.?|#)?\s*[:=]?\s*(\d{10})`),
	},
	StepPayment: {
		regexp.MustCompile(`(?i)payment\s*(?:document)?\s*(?:number|no\.?|#)?\s*[:=]?\s*(\d{10})`),
		regexp.MustCompile(`(?i)\bdocument\s+(\d{10})\s+(?:was\s+)?posted`),
	},
}

// stepKinds restricts the bare-number fallback to the prefixes of the produced kind.
var stepKinds = map[Step]docid.Kind{
	StepPurchaseOrder:   docid.KindPurchaseOrder,
	StepGoodsReceipt:    docid.KindMaterialDocument,
	StepSupplierInvoice: docid.KindSupplierInvoice,
}

// Extractor pulls produced document ids out of step output.
type Extractor struct {
	fallback map[Step]*regexp.Regexp
}

// NewExtractor builds the fallback patterns from table.
func NewExtractor(table docid.Table) *Extractor {
	e := &Extractor{fallback: make(map[Step]*regexp.Regexp)}
	for step, kind := range stepKinds {
		prefixes := table.PrefixesFor(kind)
		if len(prefixes) == 0 {
			continue
		}
		alts := make([]string, 0, len(prefixes))
		for _, p := range prefixes {
			alts = append(alts, fmt.Sprintf(`%s\d{%d}`, regexp.QuoteMeta(p), docid.IDLength-len(p)))
		}
		e.fallback[step] = regexp.MustCompile(`(?:^|\D)(` + strings.Join(alts, "|") + `)(?:\D|$)`)
	}
	return e
}

// Extract returns the first id found in text for step.
func (e *Extractor) Extract(step Step, text string) (string, bool) {
	for _, p := range labelPatterns[step] {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	if e == nil {
		return "", false
	}
	if p, ok := e.fallback[step]; ok {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}
