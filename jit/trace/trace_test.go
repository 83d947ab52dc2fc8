package trace

import (
	"testing"
)

func TestDecisionTrace_DecisionsLevel_RecordsEveryStep(t *testing.T) {
	// GIVEN a trace configured for decisions
	dt := NewDecisionTrace(TraceLevelDecisions)

	// WHEN the same chain is reported three times
	for r := uint64(0); r < 3; r++ {
		dt.RecordDecision(DecisionRecord{CallSite: "site", Round: r, Reason: ReasonReused, Chain: []string{"int"}})
	}

	// THEN every record is kept
	if len(dt.Decisions) != 3 {
		t.Fatalf("expected 3 decisions, got %d", len(dt.Decisions))
	}
	if dt.Decisions[2].Round != 2 {
		t.Errorf("expected round 2, got %d", dt.Decisions[2].Round)
	}
}

func TestDecisionTrace_ChangesLevel_RecordsOnlyChainChanges(t *testing.T) {
	// GIVEN a trace configured for changes
	dt := NewDecisionTrace(TraceLevelChanges)

	// WHEN two sites report, one of them changing its chain once
	dt.RecordDecision(DecisionRecord{CallSite: "a", Round: 0, Chain: []string{}})
	dt.RecordDecision(DecisionRecord{CallSite: "b", Round: 0, Chain: []string{}})
	dt.RecordDecision(DecisionRecord{CallSite: "a", Round: 1, Chain: []string{}})
	dt.RecordDecision(DecisionRecord{CallSite: "a", Round: 2, Chain: []string{"int"}})
	dt.RecordDecision(DecisionRecord{CallSite: "b", Round: 1, Chain: []string{}})
	dt.RecordDecision(DecisionRecord{CallSite: "a", Round: 3, Chain: []string{"int"}})

	// THEN the first record of each site and the change are kept
	if len(dt.Decisions) != 3 {
		t.Fatalf("expected 3 decisions, got %d", len(dt.Decisions))
	}
	last := dt.Decisions[2]
	if last.CallSite != "a" || last.Round != 2 {
		t.Errorf("expected change at a/2, got %s/%d", last.CallSite, last.Round)
	}
}

func TestDecisionTrace_NoneLevel_RecordsNothing(t *testing.T) {
	dt := NewDecisionTrace(TraceLevelNone)
	dt.RecordDecision(DecisionRecord{CallSite: "a", Chain: []string{"int"}})
	if len(dt.Decisions) != 0 {
		t.Errorf("expected no decisions, got %d", len(dt.Decisions))
	}
}

func TestIsValidTraceLevel(t *testing.T) {
	for _, level := range []string{"", "none", "changes", "decisions"} {
		if !IsValidTraceLevel(level) {
			t.Errorf("expected %q to be valid", level)
		}
	}
	if IsValidTraceLevel("verbose") {
		t.Error("expected verbose to be invalid")
	}
}
