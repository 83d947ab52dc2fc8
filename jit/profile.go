package jit

import "math/rand"

// BootstrapRounds is the number of initial rounds that always profile, so
// the first decision never runs on an empty distribution.
const BootstrapRounds = 2

// DefaultProfileProbability is the default probability of profiling a batch
// after bootstrap.
const DefaultProfileProbability = 0.01

// ProfileStrategy decides, per round, whether the call site collects
// variant statistics during the upcoming batch.
type ProfileStrategy interface {
	Profile(round uint64) bool
}

// SparseProfile profiles every bootstrap round and afterwards each round
// with Probability. Probability 0 freezes the distribution after bootstrap;
// later decisions reuse the last known counts.
type SparseProfile struct {
	Probability float64
	rng         *rand.Rand
}

// NewSparseProfile creates a SparseProfile drawing from rng.
func NewSparseProfile(probability float64, rng *rand.Rand) *SparseProfile {
	return &SparseProfile{Probability: probability, rng: rng}
}

// Profile implements ProfileStrategy. Bootstrap rounds do not consume
// random numbers.
func (s *SparseProfile) Profile(round uint64) bool {
	if round < BootstrapRounds {
		return true
	}
	if s.Probability <= 0 {
		return false
	}
	return s.rng.Float64() < s.Probability
}
