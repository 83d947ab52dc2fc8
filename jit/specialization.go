package jit

import (
	"fmt"
	"strings"
)

// Specialization is an ordered fast-path chain of distinct variant tags.
// Values not matching any tag fall back to generic dispatch. The zero value
// is the fallback-only specialization. Specializations are immutable.
type Specialization struct {
	tags []VariantTag
}

// NewSpecialization creates a Specialization with the given chain order.
// It does not validate; see Validate.
func NewSpecialization(tags ...VariantTag) Specialization {
	if len(tags) == 0 {
		return Specialization{}
	}
	cp := make([]VariantTag, len(tags))
	copy(cp, tags)
	return Specialization{tags: cp}
}

// Len returns the chain length.
func (s Specialization) Len() int { return len(s.tags) }

// Tags returns a copy of the chain in order.
func (s Specialization) Tags() []VariantTag {
	out := make([]VariantTag, len(s.tags))
	copy(out, s.tags)
	return out
}

// At returns the i-th tag of the chain (0-indexed).
func (s Specialization) At(i int) VariantTag { return s.tags[i] }

// Index returns the 0-indexed chain position of tag, or -1.
func (s Specialization) Index(tag VariantTag) int {
	for i, t := range s.tags {
		if t == tag {
			return i
		}
	}
	return -1
}

// Equal reports whether both chains have the same tags in the same order.
func (s Specialization) Equal(o Specialization) bool {
	if len(s.tags) != len(o.tags) {
		return false
	}
	for i := range s.tags {
		if s.tags[i] != o.tags[i] {
			return false
		}
	}
	return true
}

// String renders the chain as "[A B] + fallback".
func (s Specialization) String() string {
	parts := make([]string, len(s.tags))
	for i, t := range s.tags {
		parts[i] = string(t)
	}
	return "[" + strings.Join(parts, " ") + "] + fallback"
}

// Validate checks that the chain holds at most max distinct tags.
func (s Specialization) Validate(max int) error {
	if len(s.tags) > max {
		return fmt.Errorf("%w: chain length %d exceeds max_specialized %d", ErrInvariantViolation, len(s.tags), max)
	}
	seen := make(map[VariantTag]bool, len(s.tags))
	for _, t := range s.tags {
		if seen[t] {
			return fmt.Errorf("%w: duplicate tag %q in chain %s", ErrInvariantViolation, t, s)
		}
		seen[t] = true
	}
	return nil
}
