package bulk

import (
	"fmt"
	"strings"
	"time"
)

// Window is an inclusive range of calendar days during which records are not dispatched.
type Window struct {
	From time.Time
	To   time.Time
}

// Windows is a set of excluded date ranges.
type Windows []Window

// ParseWindows reads entries of the form "2025-12-24" or "2025-12-24..2026-01-02".
func ParseWindows(specs []string) (Windows, error) {
	var out Windows
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		from, to, found := strings.Cut(spec, "..")
		start, err := time.Parse("2006-01-02", strings.TrimSpace(from))
		if err != nil {
			return nil, fmt.Errorf("bulk: excluded date %q: %w", spec, err)
		}
		end := start
		if found {
			end, err = time.Parse("2006-01-02", strings.TrimSpace(to))
			if err != nil {
				return nil, fmt.Errorf("bulk: excluded date %q: %w", spec, err)
			}
		}
		if end.Before(start) {
			return nil, fmt.Errorf("bulk: excluded date %q ends before it starts", spec)
		}
		out = append(out, Window{From: start, To: end})
	}
	return out, nil
}

// Contains reports whether the calendar day of t falls inside any window.
// A zero time is never excluded.
func (ws Windows) Contains(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	for _, w := range ws {
		if !day.Before(w.From) && !day.After(w.To) {
			return true
		}
	}
	return false
}
