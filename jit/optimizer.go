package jit

import "sort"

// DefaultMaxSpecialized is the default bound on the fast-path chain length.
const DefaultMaxSpecialized = 10

// Proposal is a candidate chain with its cost under the distribution it was
// proposed for.
type Proposal struct {
	Spec Specialization
	Cost float64
}

// Optimizer proposes the chain to compile for a distribution.
// Implementations must be deterministic and must not perform I/O.
type Optimizer interface {
	Propose(dist Distribution, model CostModel) Proposal
}

// TopN specializes the N variants with the highest counts, ordered by
// descending count. Tags with a zero count are never specialized; ties keep
// first-observed order.
type TopN struct {
	N int
}

// NewTopN returns a TopN optimizer bounded at n.
func NewTopN(n int) *TopN {
	return &TopN{N: n}
}

// Propose implements Optimizer.
func (o *TopN) Propose(dist Distribution, model CostModel) Proposal {
	spec := NewSpecialization(topTags(dist, o.N)...)
	return Proposal{Spec: spec, Cost: model.Evaluate(spec, dist)}
}

// CheapestPrefix considers the same top N chain as TopN but proposes its
// cheapest prefix, the shortest on ties. A variant whose membership test
// costs the variants behind it more than its fast path saves is left to
// generic dispatch.
type CheapestPrefix struct {
	N int
}

// NewCheapestPrefix returns a CheapestPrefix optimizer bounded at n.
func NewCheapestPrefix(n int) *CheapestPrefix {
	return &CheapestPrefix{N: n}
}

// Propose implements Optimizer.
func (o *CheapestPrefix) Propose(dist Distribution, model CostModel) Proposal {
	tags := topTags(dist, o.N)
	best := Proposal{Spec: Specialization{}, Cost: model.Evaluate(Specialization{}, dist)}
	for k := 1; k <= len(tags); k++ {
		prefix := Specialization{tags: tags[:k:k]}
		if cost := model.Evaluate(prefix, dist); cost < best.Cost {
			best = Proposal{Spec: prefix, Cost: cost}
		}
	}
	best.Spec = NewSpecialization(best.Spec.tags...)
	return best
}

// topTags returns at most n tags with nonzero count, by descending count with
// ties in first-observed order.
func topTags(dist Distribution, n int) []VariantTag {
	if n <= 0 {
		return nil
	}
	candidates := make([]Frequency, 0, dist.Len())
	for _, e := range dist.entries {
		if e.Count > 0 {
			candidates = append(candidates, e)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Count > candidates[j].Count
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	tags := make([]VariantTag, len(candidates))
	for i, c := range candidates {
		tags[i] = c.Tag
	}
	return tags
}
