package command

import (
	"regexp"
	"strings"
)

// rule pairs a pure predicate with the builder that resolves the matched intent.
type rule struct {
	intent  Intent
	matches func(n Normalized) bool
	build   func(in *Interpreter, n Normalized) WorkItem
}

// intentRules is evaluated in order; the first matching rule selects the intent.
var intentRules = []rule{
	{intent: IntentProcureToPay, matches: matchesProcureToPay, build: buildPurchaseFlow(IntentProcureToPay)},
	{intent: IntentCreatePurchaseOrder, matches: matchesPurchaseOrder, build: buildPurchaseFlow(IntentCreatePurchaseOrder)},
	{intent: IntentCreateSupplierInvoice, matches: matchesSupplierInvoice, build: buildReferenced(IntentCreateSupplierInvoice)},
	{intent: IntentCreateGoodsReceipt, matches: matchesGoodsReceipt, build: buildReferenced(IntentCreateGoodsReceipt)},
	{intent: IntentCreatePayment, matches: matchesPayment, build: buildReferenced(IntentCreatePayment)},
}

var (
	procureToPayPhrases = []string{
		"procure to pay", "procure-to-pay", "procure 2 pay", "p2p", "end to end", "end-to-end",
		"full flow", "full cycle", "complete flow", "complete cycle", "entire process", "whole process",
		"full procurement", "complete procurement", "entire procurement", "all four steps", "all steps",
	}
	purchaseOrderPhrases = []string{
		"purchase order", "purchasing order", "create po", "create a po", "create new po", "new po",
		"make a po", "make po", "raise a po", "raise po", "generate po", "generate a po", "place an order",
		"place order", "order materials", "order material", "purchse order", "purchace order", "purhcase order",
		"me21n",
	}
	supplierInvoicePhrases = []string{
		"create invoice", "create an invoice", "create a invoice", "create supplier invoice",
		"create vendor invoice", "supplier invoice", "vendor invoice", "post invoice", "post an invoice",
		"enter invoice", "book invoice", "record invoice", "generate invoice", "raise invoice",
		"invoice the po", "invoice po", "invoice for po", "invoice for purchase order", "miro",
		"create invoce", "create invioce", "create invoise", "bill the po",
	}
	goodsReceiptPhrases = []string{
		"goods receipt", "good receipt", "goods reciept", "goods recipt", "goods received", "receive goods",
		"receive the goods", "receive po", "receive the po", "receive items", "receive material",
		"post gr", "create gr", "do gr", "gr for", "post goods", "receipt of goods", "goods movement", "migo",
	}
	paymentPhrases = []string{
		"process payment", "make payment", "make a payment", "create payment", "post payment",
		"payment for", "pay invoice", "pay the invoice", "pay supplier", "pay the supplier", "pay vendor",
		"pay the vendor", "settle invoice", "settle the invoice", "outgoing payment", "pay for invoice",
		"pay bill", "paymnet", "payement", "f-53", "f110",
	}
)

var (
	wordGR            = regexp.MustCompile(`\bgr\b`)
	wordPO            = regexp.MustCompile(`\bpo\b|\bp\.o\.?`)
	creationVerbs     = regexp.MustCompile(`\b(create|new|make|raise|generate|place|open|add)\b`)
	paymentKeywords   = regexp.MustCompile(`\b(pay|pays|paid|paying|payment|payments|settle|settlement|remit|remittance)\b`)
	invoiceKeywords   = regexp.MustCompile(`\b(invoice|invoices|bill|miro)\b`)
	receiptKeywords   = regexp.MustCompile(`\b(receive|received|receiving|receipt|goods|delivery|delivered)\b`)
	procureToPayFuzzy = regexp.MustCompile(`\b(pro\w{3,9})\s+(?:to|2)\s+(pa\w{1,2})\b`)
)

func containsPhrase(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func matchesProcureToPay(n Normalized) bool {
	if containsPhrase(n.Text, procureToPayPhrases) {
		return true
	}
	m := procureToPayFuzzy.FindStringSubmatch(n.Text)
	return m != nil && fuzzyMatch(m[1], "procure") && fuzzyMatch(m[2], "pay")
}

// matchesPurchaseOrder never fires for commands that carry a document number:
// a new purchase order is never created by reference to an existing one.
func matchesPurchaseOrder(n Normalized) bool {
	if n.HasNumber() {
		return false
	}
	if mentionsOtherStage(n) {
		return false
	}
	if containsPhrase(n.Text, purchaseOrderPhrases) {
		return true
	}
	if wordPO.MatchString(n.Text) && creationVerbs.MatchString(n.Text) {
		return true
	}
	return fuzzyAny(n.Words, "purchase") && fuzzyAny(n.Words, "order")
}

// mentionsOtherStage keeps "create invoice for the purchase order" out of PO creation.
func mentionsOtherStage(n Normalized) bool {
	return invoiceKeywords.MatchString(n.Text) || paymentKeywords.MatchString(n.Text) ||
		wordGR.MatchString(n.Text) || receiptKeywords.MatchString(n.Text)
}

func matchesSupplierInvoice(n Normalized) bool {
	if paymentKeywords.MatchString(n.Text) {
		return false
	}
	if containsPhrase(n.Text, supplierInvoicePhrases) {
		return true
	}
	if n.HasNumber() && invoiceKeywords.MatchString(n.Text) {
		return true
	}
	return fuzzyAny(n.Words, "invoice")
}

func matchesGoodsReceipt(n Normalized) bool {
	if containsPhrase(n.Text, goodsReceiptPhrases) {
		return true
	}
	if n.HasNumber() && (wordGR.MatchString(n.Text) || receiptKeywords.MatchString(n.Text)) {
		return true
	}
	return fuzzyAny(n.Words, "receipt", "goods")
}

func matchesPayment(n Normalized) bool {
	if containsPhrase(n.Text, paymentPhrases) {
		return true
	}
	if n.HasNumber() && paymentKeywords.MatchString(n.Text) {
		return true
	}
	return fuzzyAny(n.Words, "payment")
}

func buildPurchaseFlow(intent Intent) func(*Interpreter, Normalized) WorkItem {
	return func(in *Interpreter, n Normalized) WorkItem {
		return WorkItem{Intent: intent, Command: n, Params: extractParams(n)}
	}
}

func buildReferenced(intent Intent) func(*Interpreter, Normalized) WorkItem {
	return func(in *Interpreter, n Normalized) WorkItem {
		item := WorkItem{Intent: intent, Command: n}
		kind, _ := intent.RequiredKind()
		id, ok := in.extractReference(n, kind)
		if !ok {
			item.Errors = append(item.Errors, missingReference(intent))
			return item
		}
		ref := in.identifier.Reference(id)
		item.Reference = &ref
		if err := in.identifier.Accepts(id, kind); err != nil {
			item.Errors = append(item.Errors, referenceError(in, intent, id, err))
		}
		return item
	}
}
