package docid

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Loader reads the prefix table from a YAML file once and caches it.
// A missing file yields DefaultTable.
type Loader struct {
	path string

	mu     sync.Mutex
	cached *Table
}

// NewLoader returns a loader for path. An empty path always yields DefaultTable.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load returns the cached table, reading it on first use.
func (l *Loader) Load() (Table, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cached != nil {
		return *l.cached, nil
	}
	table, err := l.read()
	if err != nil {
		return Table{}, err
	}
	l.cached = &table
	return table, nil
}

// Reload drops the cache and reads the file again.
func (l *Loader) Reload() (Table, error) {
	l.ClearCache()
	return l.Load()
}

// ClearCache forgets the cached table.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	l.cached = nil
	l.mu.Unlock()
}

func (l *Loader) read() (Table, error) {
	if l.path == "" {
		return DefaultTable(), nil
	}
	raw, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultTable(), nil
		}
		return Table{}, fmt.Errorf("docid: read %s: %w", l.path, err)
	}
	var table Table
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return Table{}, fmt.Errorf("docid: parse %s: %w", l.path, err)
	}
	if err := table.Validate(); err != nil {
		return Table{}, err
	}
	return table, nil
}
