package jit

// HistoryEntry is a specialization that was compiled for a call site.
type HistoryEntry struct {
	Spec  Specialization
	Cost  float64 // cost under the distribution it was compiled for
	Round uint64  // round in which it was compiled
}

// CompilationHistory is the ledger of specializations compiled for one call
// site. Entries are appended; when Cap > 0 the oldest entries are evicted to
// stay within Cap. Not safe for concurrent use; owned by the controller.
type CompilationHistory struct {
	Cap     int
	entries []HistoryEntry
}

// NewCompilationHistory creates a history capped at maxEntries (0 = unbounded).
func NewCompilationHistory(maxEntries int) *CompilationHistory {
	return &CompilationHistory{Cap: maxEntries}
}

// Record appends a compiled specialization.
func (h *CompilationHistory) Record(spec Specialization, cost float64, round uint64) {
	h.entries = append(h.entries, HistoryEntry{Spec: spec, Cost: cost, Round: round})
	if h.Cap > 0 && len(h.entries) > h.Cap {
		drop := len(h.entries) - h.Cap
		kept := make([]HistoryEntry, h.Cap)
		copy(kept, h.entries[drop:])
		h.entries = kept
	}
}

// BestAgainst recomputes every entry's cost under dist and returns the
// cheapest one with its recomputed cost. The earliest entry wins ties.
// ok is false when the history is empty.
func (h *CompilationHistory) BestAgainst(dist Distribution, model CostModel) (best HistoryEntry, cost float64, ok bool) {
	for _, e := range h.entries {
		c := model.Evaluate(e.Spec, dist)
		if !ok || c < cost {
			best, cost, ok = e, c, true
		}
	}
	return best, cost, ok
}

// Len returns the number of entries.
func (h *CompilationHistory) Len() int { return len(h.entries) }

// Entries returns a copy of the entries, oldest first.
func (h *CompilationHistory) Entries() []HistoryEntry {
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}
