package procurement

import (
	"context"
	"sync"
)

// Tracker registers in-flight commands so they can be cancelled together.
type Tracker struct {
	mu       sync.Mutex
	next     uint64
	inflight map[uint64]context.CancelFunc
}

// NewTracker builds an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{inflight: make(map[uint64]context.CancelFunc)}
}

// Begin derives a cancellable context for one command. done must be called when
// the command returns.
func (t *Tracker) Begin(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.next++
	id := t.next
	t.inflight[id] = cancel
	t.mu.Unlock()
	return ctx, func() {
		t.mu.Lock()
		delete(t.inflight, id)
		t.mu.Unlock()
		cancel()
	}
}

// CancelAll cancels every in-flight command and reports how many were signalled.
func (t *Tracker) CancelAll() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.inflight)
	for id, cancel := range t.inflight {
		cancel()
		delete(t.inflight, id)
	}
	return n
}

// Active returns the number of in-flight commands.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}
