package jit

import (
	"sync"
	"sync/atomic"
)

// Frequency is one (tag, count) pair of a Distribution.
type Frequency struct {
	Tag   VariantTag
	Count uint64
}

// Distribution is an immutable snapshot of observed variant counts.
// Entries are kept in first-observed order, which is the tie-break order
// used by the optimizer.
type Distribution struct {
	entries []Frequency
	index   map[VariantTag]int
	total   uint64
}

// NewDistribution builds a Distribution from entries in the given order.
// Repeated tags are merged into their first position.
func NewDistribution(entries ...Frequency) Distribution {
	d := Distribution{
		entries: make([]Frequency, 0, len(entries)),
		index:   make(map[VariantTag]int, len(entries)),
	}
	for _, e := range entries {
		d.add(e.Tag, e.Count)
	}
	return d
}

func (d *Distribution) add(tag VariantTag, count uint64) {
	if i, ok := d.index[tag]; ok {
		d.entries[i].Count += count
	} else {
		d.index[tag] = len(d.entries)
		d.entries = append(d.entries, Frequency{Tag: tag, Count: count})
	}
	d.total += count
}

// Total returns the number of observations in the snapshot.
func (d Distribution) Total() uint64 { return d.total }

// Len returns the number of distinct tags, including tags with zero count.
func (d Distribution) Len() int { return len(d.entries) }

// Count returns the count for tag, 0 if absent.
func (d Distribution) Count(tag VariantTag) uint64 {
	if i, ok := d.index[tag]; ok {
		return d.entries[i].Count
	}
	return 0
}

// Mass returns the probability mass of tag. Safe for an empty distribution.
func (d Distribution) Mass(tag VariantTag) float64 {
	if d.total == 0 {
		return 0
	}
	return float64(d.Count(tag)) / float64(d.total)
}

// Entries returns a copy of the entries in first-observed order.
func (d Distribution) Entries() []Frequency {
	out := make([]Frequency, len(d.entries))
	copy(out, d.entries)
	return out
}

type counter struct {
	tag VariantTag
	n   atomic.Uint64
}

// FrequencyTable counts observed variants for one call site.
//
// Observe is safe for concurrent use. The hot path is a lock-free map load
// plus an atomic add; the mutex is taken only the first time a tag is seen.
// Snapshot may run while writers are still arriving: it reflects whatever
// counts existed when each counter was read.
type FrequencyTable struct {
	counters sync.Map // VariantTag -> *counter

	mu    sync.Mutex
	order []*counter // first-observed order
}

// NewFrequencyTable creates an empty table.
func NewFrequencyTable() *FrequencyTable {
	return &FrequencyTable{}
}

// Observe increments the count for tag, creating it if absent.
func (t *FrequencyTable) Observe(tag VariantTag) {
	if c, ok := t.counters.Load(tag); ok {
		c.(*counter).n.Add(1)
		return
	}
	t.mu.Lock()
	c, ok := t.counters.Load(tag)
	if !ok {
		nc := &counter{tag: tag}
		t.order = append(t.order, nc)
		t.counters.Store(tag, nc)
		c = nc
	}
	t.mu.Unlock()
	c.(*counter).n.Add(1)
}

// Snapshot returns an immutable view of the current counts. The snapshot's
// total is the sum of the counts it read.
func (t *FrequencyTable) Snapshot() Distribution {
	t.mu.Lock()
	order := make([]*counter, len(t.order))
	copy(order, t.order)
	t.mu.Unlock()

	d := Distribution{
		entries: make([]Frequency, 0, len(order)),
		index:   make(map[VariantTag]int, len(order)),
	}
	for _, c := range order {
		d.add(c.tag, c.n.Load())
	}
	return d
}

// Reset forgets every tag, so first-observed order restarts with the next
// observation. An Observe racing with Reset may be lost; callers reset
// between batches.
func (t *FrequencyTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.order {
		t.counters.Delete(c.tag)
	}
	t.order = nil
}

// Total returns the current number of observations.
func (t *FrequencyTable) Total() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total uint64
	for _, c := range t.order {
		total += c.n.Load()
	}
	return total
}
