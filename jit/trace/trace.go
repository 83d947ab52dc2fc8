package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelChanges captures only steps that changed the active chain.
	TraceLevelChanges TraceLevel = "changes"
	// TraceLevelDecisions captures every call site's step.
	TraceLevelDecisions TraceLevel = "decisions"
)

var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelChanges:   true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// DecisionTrace collects decision records during a run.
type DecisionTrace struct {
	Level     TraceLevel
	Decisions []DecisionRecord

	lastChain map[string][]string
}

// NewDecisionTrace creates a DecisionTrace ready for recording.
func NewDecisionTrace(level TraceLevel) *DecisionTrace {
	return &DecisionTrace{
		Level:     level,
		Decisions: make([]DecisionRecord, 0),
		lastChain: make(map[string][]string),
	}
}

// RecordDecision appends a record according to the trace level.
func (dt *DecisionTrace) RecordDecision(rec DecisionRecord) {
	switch dt.Level {
	case TraceLevelDecisions:
		dt.Decisions = append(dt.Decisions, rec)
	case TraceLevelChanges:
		prev, seen := dt.lastChain[rec.CallSite]
		if !seen || !equalChains(prev, rec.Chain) {
			dt.Decisions = append(dt.Decisions, rec)
		}
	}
	dt.lastChain[rec.CallSite] = rec.Chain
}

func equalChains(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
