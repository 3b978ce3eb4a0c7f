package failures

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestClassifyRules(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		cause Cause
		stage string
	}{
		{"human sentence", "Purchase order 4500001075 was already paid.", CausePassthrough, ""},
		{"gr exists", "Error: Table does not contain any selectable items", CauseGoodsReceiptAlreadyExists, ""},
		{"gr exists short", "no selectable items in worklist", CauseGoodsReceiptAlreadyExists, ""},
		{"invoice zero balance", "Balance: 0.00 EUR, cannot post", CauseSupplierInvoiceAlreadyExists, ""},
		{"invoice zero balance end of sentence", "error: open balance is 0.", CauseSupplierInvoiceAlreadyExists, ""},
		{"fractional balance is not zero", "error: balance 0.50 remaining on invoice", CauseUnclassified, ""},
		{"decimal comma balance is not zero", "balance: 0,75 EUR still open", CauseUnclassified, ""},
		{"small balance is not zero", "balance 0.05 left", CauseUnclassified, ""},
		{"timeout supplier", "TimeoutError: locator('#supplier') timeout 30000ms exceeded", CauseTimeout, "supplier"},
		{"timeout baseline", "Timeout 15000ms exceeded waiting for Baseline Date", CauseTimeout, "baseline"},
		{"timeout invoice beats payment", "timeout while opening payment for invoice 5105600001", CauseTimeout, "invoice"},
		{"timeout po", "page.fill: Timeout 30000ms exceeded. waiting for PO number field", CauseTimeout, "po"},
		{"timeout goods", "timed out on goods receipt", CauseTimeout, "goods"},
		{"timeout payment", "timed out posting payment run", CauseTimeout, "payment"},
		{"timeout save", "timeout waiting for save to complete", CauseTimeout, "save"},
		{"timeout button", "timeout: button[name=Post] never enabled", CauseTimeout, "button"},
		{"timeout textbox", "timeout waiting for textbox", CauseTimeout, "textbox"},
		{"timeout generic", "Navigation timeout of 30000 ms exceeded", CauseTimeout, ""},
		{"not found po", "Error: element not found: Purchase Order field", CauseElementNotFound, "po"},
		{"not found generic", "unable to find element #abc", CauseElementNotFound, ""},
		{"click supplier", "locator.click: element intercepts pointer events on supplier", CauseClickFailed, "supplier"},
		{"click generic", "click failed on #x", CauseClickFailed, ""},
		{"session", "Error: Target page, context or browser has been closed", CauseSessionLost, ""},
		{"network", "page.goto: net::ERR_CONNECTION_REFUSED at https://erp", CauseNetwork, ""},
		{"po not generated", "error: PO number not generated after submit", CausePONumberMissing, ""},
		{"cancelled", "signal: killed", CauseCancelled, ""},
		{"unclassified", "segfault in worker 7", CauseUnclassified, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := Classify(tc.raw)
			require.Equal(t, tc.cause, msg.Cause)
			require.Equal(t, tc.stage, msg.Stage)
			require.NotEmpty(t, msg.Text)
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	inputs := []string{"", "x", "timeout", "Error: boom", strings.Repeat("z", 1000)}
	for _, in := range inputs {
		require.Equal(t, Classify(in), Classify(in))
	}
}

func TestClassifyOwnMessagesPassThrough(t *testing.T) {
	for _, text := range []string{msgTimeoutGeneric, msgSessionLost, msgCancelled, timeoutStageText["po"]} {
		msg := Classify(text)
		require.Equal(t, text, msg.Text)
	}
}

func TestUnclassifiedPreviewIsBounded(t *testing.T) {
	raw := strings.Repeat("q", 5000)
	msg := Classify(raw)
	require.Equal(t, CauseUnclassified, msg.Cause)
	preview := strings.TrimPrefix(msg.Text, msgUnclassifiedPrefix)
	require.LessOrEqual(t, utf8.RuneCountInString(preview), PreviewLimit+1)
	require.Equal(t, "The automation step failed with an unexpected error: (no output)", Classify("   ").Text)
}

func TestCategory(t *testing.T) {
	require.Equal(t, CategoryIdempotency, Classify("no selectable items").Category())
	require.Equal(t, CategorySession, Classify("browser has been closed").Category())
	require.Equal(t, CategoryCancellation, Classify("context canceled").Category())
	require.Equal(t, CategoryUnclassified, Classify("??").Category())
	require.Equal(t, CategoryAutomation, Classify("timeout").Category())
}
