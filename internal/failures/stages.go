package failures

import "regexp"

type stageMatcher struct {
	stage   string
	pattern *regexp.Regexp
}

// stageOrder pins the precedence used when a failure mentions several fields.
// Invoice precedes payment because payment failures quote the invoice number.
var stageOrder = []stageMatcher{
	{"supplier", regexp.MustCompile(`supplier|vendor`)},
	{"baseline", regexp.MustCompile(`baseline`)},
	{"invoice", regexp.MustCompile(`invoice`)},
	{"po", regexp.MustCompile(`\bpo\b|purchase[ _]?order|po[ _]?number`)},
	{"goods", regexp.MustCompile(`goods|\bgr\b|material document|migo`)},
	{"payment", regexp.MustCompile(`payment|\bpay\b`)},
	{"save", regexp.MustCompile(`\bsav(e|ing)\b`)},
	{"button", regexp.MustCompile(`button`)},
	{"textbox", regexp.MustCompile(`text ?box|text ?field|\binput\b`)},
}

func detectStage(lower string) string {
	for _, m := range stageOrder {
		if m.pattern.MatchString(lower) {
			return m.stage
		}
	}
	return ""
}

const (
	msgGoodsReceiptExists = "Goods receipt has already been posted for this purchase order. There are no open items left to receive."
	msgInvoiceExists      = "A supplier invoice already exists for this purchase order. The remaining balance is zero, so nothing is left to invoice."
	msgSessionLost        = "The browser session was closed or lost its page. Please retry the command from the beginning."
	msgNetwork            = "The enterprise application could not be reached. Check the network connection and try again."
	msgPONumberMissing    = "The purchase order was submitted but no PO number was generated. Check the order in the application before retrying."
	msgCancelled          = "The operation was cancelled by the user."
	msgUnclassifiedPrefix = "The automation step failed with an unexpected error: "

	msgTimeoutGeneric  = "The application took too long to respond. Please try again in a moment."
	msgNotFoundGeneric = "An expected field was not found on the page. The screen layout may have changed."
	msgClickGeneric    = "An element on the page could not be clicked. A popup or overlay may be blocking it."
)

var timeoutStageText = map[string]string{
	"supplier": "Timed out waiting for the supplier field. Verify the supplier number exists and try again.",
	"baseline": "Timed out while entering the baseline date on the invoice screen. Please retry.",
	"invoice":  "Timed out on the supplier invoice screen. The invoice may still be processing; check before retrying.",
	"po":       "Timed out while entering the purchase order number. Verify the PO number and try again.",
	"goods":    "Timed out on the goods receipt screen. Check whether the goods receipt was posted before retrying.",
	"payment":  "Timed out while posting the payment. Check the invoice status before retrying.",
	"save":     "Timed out waiting for the document to save. Check whether it was created before retrying.",
	"button":   "Timed out waiting for a button to become available. The page may still be loading.",
	"textbox":  "Timed out waiting for an input field. The page may still be loading.",
}

var notFoundStageText = map[string]string{
	"supplier": "The supplier field could not be found on the page.",
	"baseline": "The baseline date field could not be found on the invoice screen.",
	"invoice":  "The supplier invoice screen did not show the expected fields.",
	"po":       "The purchase order field or number could not be found on the page.",
	"goods":    "The goods receipt screen did not show the expected fields.",
	"payment":  "The payment screen did not show the expected fields.",
	"save":     "The save action could not be found on the page.",
	"button":   "A required button could not be found on the page.",
	"textbox":  "A required input field could not be found on the page.",
}

var clickStageText = map[string]string{
	"supplier": "The supplier field could not be clicked. A popup may be covering it.",
	"baseline": "The baseline date field could not be clicked. A popup may be covering it.",
	"invoice":  "An element on the invoice screen could not be clicked. A popup may be covering it.",
	"po":       "The purchase order field could not be clicked. A popup may be covering it.",
	"goods":    "An element on the goods receipt screen could not be clicked. A popup may be covering it.",
	"payment":  "An element on the payment screen could not be clicked. A popup may be covering it.",
	"save":     "The save button could not be clicked. A popup may be covering it.",
	"button":   "A button could not be clicked. A popup may be covering it.",
	"textbox":  "An input field could not be clicked. A popup may be covering it.",
}
