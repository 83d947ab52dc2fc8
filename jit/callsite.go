package jit

import (
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/catwalk/jit/trace"
)

// State is the phase of a call site's state machine.
type State int

const (
	// StateBootstrapping: round < BootstrapRounds, profiling forced on.
	StateBootstrapping State = iota
	// StateProfiling: the sampler enabled profiling for this round.
	StateProfiling
	// StateCoasting: profiling is off; decisions reuse the last counts.
	StateCoasting
)

func (s State) String() string {
	switch s {
	case StateBootstrapping:
		return "bootstrapping"
	case StateProfiling:
		return "profiling"
	case StateCoasting:
		return "coasting"
	default:
		return "unknown"
	}
}

// Decision is the outcome of one call site's step.
type Decision struct {
	CallSite     string
	Round        uint64
	State        State
	Profiling    bool
	Reason       string // one of the trace.Reason* constants
	Recompiled   bool
	Ideal        Proposal
	HistoricCost float64
	HasHistoric  bool
	Active       Specialization
	ActiveCost   float64 // aggregate cost of Active under the consulted distribution
	Observations uint64
	HistoryLen   int
}

// Record converts the decision to a trace record.
func (d Decision) Record() trace.DecisionRecord {
	rec := trace.DecisionRecord{
		CallSite:     d.CallSite,
		Round:        d.Round,
		State:        d.State.String(),
		Profiling:    d.Profiling,
		Reason:       d.Reason,
		Recompiled:   d.Recompiled,
		Chain:        tagStrings(d.Active),
		HistoricCost: d.HistoricCost,
		HasHistoric:  d.HasHistoric,
		Observations: d.Observations,
		HistoryLen:   d.HistoryLen,
	}
	if d.Reason != trace.ReasonNoData {
		rec.IdealChain = tagStrings(d.Ideal.Spec)
		rec.IdealCost = d.Ideal.Cost
	}
	if d.Observations > 0 {
		rec.PerCallCost = d.ActiveCost / float64(d.Observations)
	}
	return rec
}

func tagStrings(s Specialization) []string {
	out := make([]string, len(s.tags))
	for i, t := range s.tags {
		out[i] = string(t)
	}
	return out
}

// CallSite is the per-location optimizer state. Observations arrive through
// its FrequencyTable; everything else is mutated only by Controller.Step.
type CallSite struct {
	id           string
	maxSpecial   int
	threshold    float64
	accumulation Accumulation

	table     *FrequencyTable
	history   *CompilationHistory
	model     CostModel
	optimizer Optimizer
	strategy  ProfileStrategy

	active    Specialization
	round     uint64
	state     State
	profiling bool
}

// newCallSite builds a call site from a validated config. rng feeds the
// default SparseProfile.
func newCallSite(cfg CallSiteConfig, rng *rand.Rand) *CallSite {
	var model CostModel = cfg.CostModel
	if cfg.Model != nil {
		model = cfg.Model
	}
	var optimizer Optimizer = NewTopN(cfg.MaxSpecialized)
	if cfg.Selection == SelectionCheapestPrefix {
		optimizer = NewCheapestPrefix(cfg.MaxSpecialized)
	}
	if cfg.Optimizer != nil {
		optimizer = cfg.Optimizer
	}
	var strategy ProfileStrategy = NewSparseProfile(cfg.ProfileProbability, rng)
	if cfg.ProfileStrategy != nil {
		strategy = cfg.ProfileStrategy
	}
	accumulation := cfg.Accumulation
	if accumulation == "" {
		accumulation = AccumulationCumulative
	}
	return &CallSite{
		id:           cfg.ID,
		maxSpecial:   cfg.MaxSpecialized,
		threshold:    cfg.CompileThreshold,
		accumulation: accumulation,
		table:        NewFrequencyTable(),
		history:      NewCompilationHistory(cfg.HistoryCap),
		model:        model,
		optimizer:    optimizer,
		strategy:     strategy,
	}
}

// ID returns the call site id.
func (cs *CallSite) ID() string { return cs.id }

// Table returns the call site's frequency table.
func (cs *CallSite) Table() *FrequencyTable { return cs.table }

// History returns the call site's compilation history.
func (cs *CallSite) History() *CompilationHistory { return cs.history }

// Active returns the currently published specialization.
func (cs *CallSite) Active() Specialization { return cs.active }

// Round returns the number of steps taken.
func (cs *CallSite) Round() uint64 { return cs.round }

// State returns the state entered by the last step.
func (cs *CallSite) State() State { return cs.state }

func (cs *CallSite) callCtx() CallCtx {
	return CallCtx{ID: cs.id, Profiling: cs.profiling, Specialization: cs.active, sink: cs.table}
}

// step advances the state machine by one round. A proposal that violates the
// chain invariants is not adopted: the previous specialization stays active
// and the error is returned alongside the decision.
func (cs *CallSite) step() (Decision, error) {
	round := cs.round
	cs.profiling = round < BootstrapRounds || cs.strategy.Profile(round)
	switch {
	case round < BootstrapRounds:
		cs.state = StateBootstrapping
	case cs.profiling:
		cs.state = StateProfiling
	default:
		cs.state = StateCoasting
	}
	cs.round++

	d := Decision{CallSite: cs.id, Round: round, State: cs.state, Profiling: cs.profiling}

	dist := cs.table.Snapshot()
	d.Observations = dist.Total()
	if dist.Total() == 0 {
		d.Reason = trace.ReasonNoData
		d.Active = cs.active
		d.HistoryLen = cs.history.Len()
		logrus.Debugf("call site %q round %d (%s): no observations, keeping %s", cs.id, round, cs.state, cs.active)
		return d, nil
	}

	d.Ideal = cs.optimizer.Propose(dist, cs.model)
	historic, historicCost, ok := cs.history.BestAgainst(dist, cs.model)
	d.HistoricCost, d.HasHistoric = historicCost, ok

	previous := cs.active
	if ok && historicCost <= d.Ideal.Cost*cs.threshold {
		d.Reason = trace.ReasonReused
		cs.active = historic.Spec
	} else {
		if err := d.Ideal.Spec.Validate(cs.maxSpecial); err != nil {
			d.Reason = trace.ReasonRejected
			d.Active = cs.active
			d.ActiveCost = cs.model.Evaluate(cs.active, dist)
			d.HistoryLen = cs.history.Len()
			logrus.Warnf("call site %q round %d: rejected proposal %s: %v", cs.id, round, d.Ideal.Spec, err)
			return d, err
		}
		d.Reason = trace.ReasonCompiled
		d.Recompiled = true
		cs.active = d.Ideal.Spec
		cs.history.Record(d.Ideal.Spec, d.Ideal.Cost, round)
		logrus.Infof("call site %q round %d: compiled %s (cost/call %.2f, best historic %.2f)",
			cs.id, round, d.Ideal.Spec, d.Ideal.Cost/float64(dist.Total()), perCall(historicCost, ok, dist))
	}

	d.Active = cs.active
	d.ActiveCost = cs.model.Evaluate(cs.active, dist)
	d.HistoryLen = cs.history.Len()
	if cs.accumulation == AccumulationWindow && !previous.Equal(cs.active) {
		cs.table.Reset()
	}
	logrus.Debugf("call site %q round %d (%s): %s -> %s (ideal %s cost %.1f, historic %.1f)",
		cs.id, round, cs.state, d.Reason, cs.active, d.Ideal.Spec, d.Ideal.Cost, historicCost)
	return d, nil
}

func perCall(cost float64, ok bool, dist Distribution) float64 {
	if !ok || dist.Total() == 0 {
		return 0
	}
	return cost / float64(dist.Total())
}
