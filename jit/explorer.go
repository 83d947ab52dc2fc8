package jit

import "sync"

// Explorer receives ids of call sites that report observations before they
// are registered. The controller drains it at the start of every step.
type Explorer interface {
	// Report notes an unregistered call site id. Safe for concurrent use.
	Report(id string)
	// Drain returns the ids reported since the last drain, in first-report
	// order, and forgets them.
	Drain() []string
}

// BasicExplorer queues each reported id once until drained.
type BasicExplorer struct {
	mu      sync.Mutex
	pending []string
	seen    map[string]bool
}

// NewBasicExplorer creates an empty BasicExplorer.
func NewBasicExplorer() *BasicExplorer {
	return &BasicExplorer{seen: make(map[string]bool)}
}

// Report implements Explorer.
func (e *BasicExplorer) Report(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seen[id] {
		return
	}
	e.seen[id] = true
	e.pending = append(e.pending, id)
}

// Drain implements Explorer.
func (e *BasicExplorer) Drain() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.pending
	e.pending = nil
	e.seen = make(map[string]bool)
	return out
}

// NoExplorer ignores unregistered call sites.
type NoExplorer struct{}

// Report implements Explorer.
func (NoExplorer) Report(string) {}

// Drain implements Explorer.
func (NoExplorer) Drain() []string { return nil }
