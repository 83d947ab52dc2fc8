package jit

import "errors"

var (
	// ErrConfiguration marks invalid call-site or controller configuration.
	// Returned at construction or registration; fatal to that registration only.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvariantViolation marks a proposal that breaks chain invariants
	// (too many tags, duplicate tags). It indicates an Optimizer bug.
	ErrInvariantViolation = errors.New("internal invariant violation")
)
