package command

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// conversationalPrefixes is checked in order; only the first match is removed.
var conversationalPrefixes = []string{
	"can you please ",
	"could you please ",
	"would you please ",
	"can you ",
	"could you ",
	"would you ",
	"please ",
	"i want to ",
	"i would like to ",
	"i'd like to ",
	"i need to ",
	"help me ",
	"go ahead and ",
	"kindly ",
	"let's ",
	"lets ",
}

var trailingSuffixes = []string{"?", " now", " please", " for me"}

var lower = cases.Lower(language.Und)

// Normalize lower-cases raw, strips one conversational prefix and trailing filler, and
// records the 10-digit numbers it contains.
func Normalize(raw string) Normalized {
	text := norm.NFKC.String(raw)
	text = lower.String(text)
	text = strings.Join(strings.Fields(text), " ")

	for _, p := range conversationalPrefixes {
		if strings.HasPrefix(text, p) {
			text = strings.TrimSpace(text[len(p):])
			break
		}
	}

	for {
		trimmed := text
		for _, s := range trailingSuffixes {
			trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, s))
		}
		if trimmed == text {
			break
		}
		text = trimmed
	}

	return Normalized{
		Raw:     raw,
		Text:    text,
		Words:   splitWords(text),
		Numbers: numberRuns(text, 10),
	}
}

// numberRuns returns maximal digit runs of exactly size digits.
func numberRuns(s string, size int) []string {
	var out []string
	start := -1
	for i, r := range s + " " {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if i-start == size {
				out = append(out, s[start:i])
			}
			start = -1
		}
	}
	return out
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}
