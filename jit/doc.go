// Package jit provides the specialization controller for adaptive dispatch.
//
// # Reading Guide
//
// Start with these files to understand the decision loop:
//   - frequency.go: per-call-site variant counters and immutable snapshots
//   - optimizer.go: TopN and CheapestPrefix selection of the fast-path chain
//   - callsite.go: the per-call-site state machine run once per batch
//   - controller.go: owns call sites, advances them, publishes OptimizerContext
//
// # Batch protocol
//
// The host loop calls Controller.Step once before each batch and hands the
// returned *OptimizerContext to instrumented code. Instrumented code looks up
// its CallCtx, dispatches through the context's ordered chain (see Chain) and,
// while the context has profiling enabled, reports observed variants with
// CallCtx.Observe. Observations may come from many goroutines; Step must not
// overlap with observations of the batch it closes.
//
// # Key Interfaces
//
// The extension points are single-method interfaces:
//   - CostModel: expected cost of a chain under a distribution
//   - Optimizer: proposes a chain for a distribution
//   - ProfileStrategy: decides per round whether profiling runs
//   - Explorer: receives call-site ids that are observed before registration
//   - DecisionObserver: receives one record per call site per step
package jit
