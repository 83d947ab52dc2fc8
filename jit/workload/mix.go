// Package workload generates seeded synthetic variant streams for driving
// the optimizer: a sequence of phases, each a weighted mix of variant names.
package workload

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// MixSampler samples variant names from a categorical distribution using
// inverse CDF via binary search.
type MixSampler struct {
	variants []string  // sorted variant names with positive weight
	cdf      []float64 // cumulative probabilities (same length as variants)
}

// NewMixSampler creates a sampler from a weight map (variant -> weight).
// Weights are normalized; non-positive weights are skipped. Keys are sorted
// so the same map always yields the same sequence for the same RNG.
func NewMixSampler(mix map[string]float64) *MixSampler {
	keys := make([]string, 0, len(mix))
	for k := range mix {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	total := 0.0
	for _, k := range keys {
		if w := mix[k]; w > 0 {
			total += w
		}
	}

	s := &MixSampler{}
	cumulative := 0.0
	for _, k := range keys {
		w := mix[k]
		if w <= 0 {
			continue
		}
		cumulative += w / total
		s.variants = append(s.variants, k)
		s.cdf = append(s.cdf, cumulative)
	}
	// Ensure last CDF entry is exactly 1.0
	if len(s.cdf) > 0 {
		s.cdf[len(s.cdf)-1] = 1.0
	}
	return s
}

// Sample returns a variant name, or "" for an empty mix.
func (s *MixSampler) Sample(rng *rand.Rand) string {
	switch len(s.variants) {
	case 0:
		return ""
	case 1:
		return s.variants[0]
	}
	u := rng.Float64()
	idx := sort.SearchFloat64s(s.cdf, u)
	if idx >= len(s.variants) {
		idx = len(s.variants) - 1
	}
	return s.variants[idx]
}

// Variants returns the names with positive weight, sorted.
func (s *MixSampler) Variants() []string {
	out := make([]string, len(s.variants))
	copy(out, s.variants)
	return out
}

func validateMix(mix map[string]float64) error {
	if len(mix) == 0 {
		return fmt.Errorf("mix must not be empty")
	}
	positive := false
	for k, w := range mix {
		if k == "" {
			return fmt.Errorf("mix has an empty variant name")
		}
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("mix weight for %q must be finite and non-negative, got %v", k, w)
		}
		if w > 0 {
			positive = true
		}
	}
	if !positive {
		return fmt.Errorf("mix needs at least one positive weight")
	}
	return nil
}
