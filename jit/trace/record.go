// Package trace provides decision-trace recording for specialization analysis.
// It has no dependencies on jit/ and stores pure data types.
package trace

// Decision reasons.
const (
	// ReasonNoData: the distribution was empty, nothing was decided.
	ReasonNoData = "no-data"
	// ReasonCompiled: the ideal chain was adopted and recorded in history.
	ReasonCompiled = "compiled"
	// ReasonReused: a historic chain was within the compile threshold.
	ReasonReused = "reused"
	// ReasonRejected: the proposal violated chain invariants and was dropped.
	ReasonRejected = "rejected"
)

// DecisionRecord captures one call site's step.
type DecisionRecord struct {
	CallSite     string
	Round        uint64
	State        string
	Profiling    bool
	Reason       string
	Recompiled   bool
	Chain        []string // active chain after the step
	IdealChain   []string // nil when no decision was made
	IdealCost    float64
	HistoricCost float64 // recomputed cost of the best historic chain
	HasHistoric  bool
	PerCallCost  float64 // active chain's expected cost per dispatch
	Observations uint64  // total count of the distribution consulted
	HistoryLen   int
}
