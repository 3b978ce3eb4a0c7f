package command

// minFuzzyMatches is the absolute floor of same-position characters for a fuzzy match.
const minFuzzyMatches = 3

// fuzzyMatch reports whether word is a plausible misspelling of target.
// Either the first three characters agree and the lengths differ by at most two, or
// at least len(target)-2 characters agree position by position (never fewer than three).
func fuzzyMatch(word, target string) bool {
	w, t := []rune(word), []rune(target)
	if len(w) < minFuzzyMatches || len(t) < minFuzzyMatches {
		return false
	}
	if word == target {
		return true
	}
	if string(w[:3]) == string(t[:3]) && abs(len(w)-len(t)) <= 2 {
		return true
	}
	matches := 0
	for i := 0; i < len(w) && i < len(t); i++ {
		if w[i] == t[i] {
			matches++
		}
	}
	return matches >= minFuzzyMatches && matches >= len(t)-2
}

// fuzzyAny reports whether any word fuzzily matches any target.
func fuzzyAny(words []string, targets ...string) bool {
	for _, w := range words {
		for _, t := range targets {
			if fuzzyMatch(w, t) {
				return true
			}
		}
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
