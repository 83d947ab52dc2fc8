package workload

import (
	"fmt"
	"math/rand"
	"sort"
)

// Phase is a run of batches drawing from one variant mix.
type Phase struct {
	Batches int                `yaml:"batches"`
	Mix     map[string]float64 `yaml:"mix"`
}

// Spec describes a synthetic workload. After the last phase the final mix
// keeps being used.
type Spec struct {
	IterationsPerBatch int     `yaml:"iterations_per_batch"`
	Phases             []Phase `yaml:"phases"`
}

// DefaultSpec returns a two-phase workload whose dominant variant shifts
// halfway through.
func DefaultSpec() Spec {
	return Spec{
		IterationsPerBatch: 100000,
		Phases: []Phase{
			{Batches: 100, Mix: map[string]float64{"int": 0.6, "float64": 0.3, "complex128": 0.1}},
			{Batches: 100, Mix: map[string]float64{"int": 0.1, "float64": 0.2, "complex128": 0.7}},
		},
	}
}

// Validate checks that phases are non-empty with positive lengths and valid mixes.
func (s Spec) Validate() error {
	if s.IterationsPerBatch <= 0 {
		return fmt.Errorf("iterations_per_batch must be positive, got %d", s.IterationsPerBatch)
	}
	if len(s.Phases) == 0 {
		return fmt.Errorf("workload needs at least one phase")
	}
	for i, p := range s.Phases {
		if p.Batches <= 0 {
			return fmt.Errorf("phases[%d]: batches must be positive, got %d", i, p.Batches)
		}
		if err := validateMix(p.Mix); err != nil {
			return fmt.Errorf("phases[%d]: %w", i, err)
		}
	}
	return nil
}

// TotalBatches returns the sum of all phase lengths.
func (s Spec) TotalBatches() int {
	total := 0
	for _, p := range s.Phases {
		total += p.Batches
	}
	return total
}

// Generator produces the variant stream of a Spec.
// Thread-safety: NOT thread-safe.
type Generator struct {
	spec     Spec
	samplers []*MixSampler
	rng      *rand.Rand
}

// NewGenerator creates a generator for a validated spec.
func NewGenerator(spec Spec, rng *rand.Rand) *Generator {
	g := &Generator{spec: spec, rng: rng, samplers: make([]*MixSampler, len(spec.Phases))}
	for i, p := range spec.Phases {
		g.samplers[i] = NewMixSampler(p.Mix)
	}
	return g
}

// PhaseAt returns the index of the phase that covers batch.
func (g *Generator) PhaseAt(batch int) int {
	remaining := batch
	for i, p := range g.spec.Phases {
		if remaining < p.Batches {
			return i
		}
		remaining -= p.Batches
	}
	return len(g.spec.Phases) - 1
}

// Batch fills buf with the variants of one batch and returns it. buf is
// reused when it has enough capacity.
func (g *Generator) Batch(batch int, buf []string) []string {
	n := g.spec.IterationsPerBatch
	if cap(buf) < n {
		buf = make([]string, n)
	}
	buf = buf[:n]
	sampler := g.samplers[g.PhaseAt(batch)]
	for i := range buf {
		buf[i] = sampler.Sample(g.rng)
	}
	return buf
}

// Variants returns every variant name used by any phase, sorted and unique.
func (g *Generator) Variants() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range g.samplers {
		for _, v := range s.Variants() {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Strings(out)
	return out
}
