// Package failures maps raw automation failure text to user-facing guidance.
package failures

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Cause is the closed set of failure causes.
type Cause string

const (
	CausePassthrough                  Cause = "passthrough"
	CauseGoodsReceiptAlreadyExists    Cause = "goods_receipt_already_exists"
	CauseSupplierInvoiceAlreadyExists Cause = "supplier_invoice_already_exists"
	CauseTimeout                      Cause = "timeout"
	CauseElementNotFound              Cause = "element_not_found"
	CauseClickFailed                  Cause = "click_failed"
	CauseSessionLost                  Cause = "session_lost"
	CauseNetwork                      Cause = "network"
	CausePONumberMissing              Cause = "po_number_not_generated"
	CauseCancelled                    Cause = "cancelled"
	CauseUnclassified                 Cause = "unclassified"
)

// Category groups causes into the propagation classes the orchestrator acts on.
type Category string

const (
	CategoryAutomation   Category = "automation_failure"
	CategoryIdempotency  Category = "idempotency_conflict"
	CategorySession      Category = "session_failure"
	CategoryCancellation Category = "cancellation"
	CategoryUnclassified Category = "unclassified_failure"
)

// PreviewLimit bounds the raw excerpt included with unclassified failures.
const PreviewLimit = 200

// Message is the classified, user-facing rendering of a failure.
type Message struct {
	Cause Cause  `json:"cause"`
	Stage string `json:"stage,omitempty"`
	Text  string `json:"text"`
}

// Category returns the propagation class of the message.
func (m Message) Category() Category {
	switch m.Cause {
	case CauseGoodsReceiptAlreadyExists, CauseSupplierInvoiceAlreadyExists:
		return CategoryIdempotency
	case CauseSessionLost:
		return CategorySession
	case CauseCancelled:
		return CategoryCancellation
	case CauseUnclassified:
		return CategoryUnclassified
	default:
		return CategoryAutomation
	}
}

type rule struct {
	name  string
	match func(raw, lower string) bool
	build func(raw, lower string) Message
}

// rules is evaluated top to bottom; the first match wins.
var rules = []rule{
	{name: "passthrough", match: func(raw, _ string) bool { return isHumanSentence(raw) }, build: passthrough},
	{name: "goods_receipt_exists", match: containsAny("no selectable items", "does not contain any selectable items"), build: fixed(CauseGoodsReceiptAlreadyExists, msgGoodsReceiptExists)},
	{name: "invoice_exists", match: matchesAny(zeroBalancePatterns...), build: fixed(CauseSupplierInvoiceAlreadyExists, msgInvoiceExists)},
	{name: "timeout", match: containsAny("timeout", "timed out", "time out", "exceeded while waiting"), build: staged(CauseTimeout, timeoutStageText, msgTimeoutGeneric)},
	{name: "element_not_found", match: containsAny("not found", "no element", "unable to find", "could not find", "cannot find", "not attached", "not visible", "no node found"), build: staged(CauseElementNotFound, notFoundStageText, msgNotFoundGeneric)},
	{name: "click_failed", match: containsAny("click", "intercepts pointer events", "not clickable"), build: staged(CauseClickFailed, clickStageText, msgClickGeneric)},
	{name: "session_lost", match: containsAny("target closed", "target page, context or browser has been closed", "browser has been closed", "browser closed", "page closed", "session expired", "session lost", "navigation failed", "navigation interrupted", "frame was detached"), build: fixed(CauseSessionLost, msgSessionLost)},
	{name: "network", match: containsAny("net::err", "econnrefused", "econnreset", "enotfound", "network", "socket hang up", "connection refused"), build: fixed(CauseNetwork, msgNetwork)},
	{name: "po_number_missing", match: containsAny("po number not generated", "purchase order number not generated", "could not extract po number", "no po number"), build: fixed(CausePONumberMissing, msgPONumberMissing)},
	{name: "cancelled", match: containsAny("cancelled by user", "canceled by user", "context canceled", "operation was cancelled", "signal: killed"), build: fixed(CauseCancelled, msgCancelled)},
}

// Classify renders raw into exactly one Message. It is total and deterministic.
func Classify(raw string) Message {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)
	for _, r := range rules {
		if r.match(trimmed, lower) {
			return r.build(trimmed, lower)
		}
	}
	return Message{Cause: CauseUnclassified, Text: msgUnclassifiedPrefix + Preview(trimmed)}
}

// Preview truncates s to PreviewLimit runes.
func Preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "(no output)"
	}
	if utf8.RuneCountInString(s) <= PreviewLimit {
		return s
	}
	runes := []rune(s)
	return string(runes[:PreviewLimit]) + "…"
}

var zeroBalancePatterns = []*regexp.Regexp{
	regexp.MustCompile(`balance(?: is|:)?\s*0(?:[.,]0+)?[.,]?(?:[^\d.,]|$)`),
	regexp.MustCompile(`zero balance`),
	regexp.MustCompile(`balance is zero`),
}

var technicalMarkers = []string{
	"error:", "exception", "locator", "waiting for", "=>", "ms exceeded", "stack", "net::",
	"errno", "selector", "undefined", "null", "    at ", "selectable items",
}

// isHumanSentence reports whether s already reads like a message written for people:
// capitalised, terminated, several words, on one line, and free of stack-trace vocabulary.
func isHumanSentence(s string) bool {
	if s == "" || strings.ContainsAny(s, "\n\r\t") {
		return false
	}
	first, _ := utf8.DecodeRuneInString(s)
	last, _ := utf8.DecodeLastRuneInString(s)
	if !unicode.IsUpper(first) || !strings.ContainsRune(".!", last) {
		return false
	}
	if len(strings.Fields(s)) < 4 {
		return false
	}
	lower := strings.ToLower(s)
	for _, marker := range technicalMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

func passthrough(raw, _ string) Message {
	return Message{Cause: CausePassthrough, Text: raw}
}

func fixed(cause Cause, text string) func(string, string) Message {
	return func(string, string) Message {
		return Message{Cause: cause, Text: text}
	}
}

func staged(cause Cause, texts map[string]string, generic string) func(string, string) Message {
	return func(_, lower string) Message {
		stage := detectStage(lower)
		if text, ok := texts[stage]; ok {
			return Message{Cause: cause, Stage: stage, Text: text}
		}
		return Message{Cause: cause, Text: generic}
	}
}

func containsAny(needles ...string) func(string, string) bool {
	return func(_, lower string) bool {
		for _, n := range needles {
			if strings.Contains(lower, n) {
				return true
			}
		}
		return false
	}
}

func matchesAny(patterns ...*regexp.Regexp) func(string, string) bool {
	return func(_, lower string) bool {
		for _, p := range patterns {
			if p.MatchString(lower) {
				return true
			}
		}
		return false
	}
}
