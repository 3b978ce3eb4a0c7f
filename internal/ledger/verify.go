package ledger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Problem describes one malformed ledger line.
type Problem struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Report summarises an integrity scan over every ledger file.
type Report struct {
	Rows     map[string]int `json:"rows"`
	Problems []Problem      `json:"problems,omitempty"`
}

// Healthy reports whether no malformed lines were found.
func (r Report) Healthy() bool {
	return len(r.Problems) == 0
}

// Verify scans the ledger files without modifying them.
func (s *Store) Verify(ctx context.Context) (Report, error) {
	report := Report{Rows: make(map[string]int)}
	names := make([]string, 0, len(Stages)+1)
	for _, stage := range Stages {
		names = append(names, stage.FileName())
	}
	names = append(names, detailFile)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		rows, problems, err := s.verifyFile(name)
		if err != nil {
			return Report{}, err
		}
		report.Rows[name] = rows
		report.Problems = append(report.Problems, problems...)
	}
	return report, nil
}

func (s *Store) verifyFile(name string) (int, []Problem, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil, nil
		}
		return 0, nil, fmt.Errorf("ledger: open %s: %w", name, err)
	}
	defer f.Close()

	var (
		rows     int
		problems []Problem
		lineNo   int
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rows++
		if reason := checkLine(name, line); reason != "" {
			problems = append(problems, Problem{File: name, Line: lineNo, Reason: reason})
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, nil, fmt.Errorf("ledger: scan %s: %w", name, err)
	}
	return rows, problems, nil
}

func checkLine(name, line string) string {
	row, err := parseLine(line)
	if err != nil {
		return "unparseable: " + err.Error()
	}
	id := strings.TrimSpace(row[0])
	if !isDocumentNumber(id) {
		return fmt.Sprintf("first field %q is not a document number", id)
	}
	if name == detailFile {
		if _, err := parseDetail(row); err != nil {
			return err.Error()
		}
		return ""
	}
	if len(row) > 1 && strings.TrimSpace(row[1]) != "" {
		if _, err := time.Parse(time.RFC3339, strings.TrimSpace(row[1])); err != nil {
			return "bad timestamp"
		}
	}
	return ""
}

func isDocumentNumber(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
