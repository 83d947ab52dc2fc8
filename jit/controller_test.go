package jit

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/catwalk/jit/trace"
)

func observeN(t *testing.T, ctx *OptimizerContext, id string, tag VariantTag, n int) {
	t.Helper()
	cc, ok := ctx.Site(id)
	require.True(t, ok, "call site %q missing from context", id)
	for i := 0; i < n; i++ {
		cc.Observe(tag)
	}
}

func mustController(t *testing.T, cfg ControllerConfig, sites ...CallSiteConfig) *Controller {
	t.Helper()
	ctl, err := NewController(cfg, sites...)
	require.NoError(t, err)
	return ctl
}

func mustStep(t *testing.T, ctl *Controller) *OptimizerContext {
	t.Helper()
	ctx, err := ctl.Step()
	require.NoError(t, err)
	return ctx
}

func activeOf(t *testing.T, ctx *OptimizerContext, id string) Specialization {
	t.Helper()
	cc, ok := ctx.Site(id)
	require.True(t, ok)
	return cc.Specialization
}

func shiftConfig(acc Accumulation) CallSiteConfig {
	cfg := DefaultCallSiteConfig("site")
	cfg.MaxSpecialized = 1
	cfg.CompileThreshold = 1.0
	cfg.ProfileProbability = 1
	cfg.Accumulation = acc
	return cfg
}

func TestController_FirstStep_NoDataKeepsFallback(t *testing.T) {
	// GIVEN a fresh controller
	ctl := mustController(t, DefaultControllerConfig(), DefaultCallSiteConfig("site"))

	// THEN the initial context does not profile and has no chain
	cc, ok := ctl.Context().Site("site")
	require.True(t, ok)
	assert.False(t, cc.Profiling)
	assert.Equal(t, 0, cc.Specialization.Len())

	// WHEN the first step runs with no observations
	ctx := mustStep(t, ctl)

	// THEN no decision is made and bootstrap profiling starts
	d := ctl.Decisions()[0]
	assert.Equal(t, trace.ReasonNoData, d.Reason)
	assert.Equal(t, StateBootstrapping, d.State)
	assert.Equal(t, uint64(0), ctx.Round())
	cc, _ = ctx.Site("site")
	assert.True(t, cc.Profiling)
	assert.Equal(t, 0, cc.Specialization.Len())
}

func TestController_DominantVariantCompiled(t *testing.T) {
	cfg := DefaultCallSiteConfig("site")
	cfg.MaxSpecialized = 1
	ctl := mustController(t, DefaultControllerConfig(), cfg)

	ctx := mustStep(t, ctl)
	observeN(t, ctx, "site", "A", 800)
	observeN(t, ctx, "site", "B", 200)
	ctx = mustStep(t, ctl)

	d := ctl.Decisions()[0]
	assert.Equal(t, trace.ReasonCompiled, d.Reason)
	assert.True(t, d.Recompiled)
	assert.Equal(t, 29400.0, d.Ideal.Cost)
	assert.InDelta(t, 29.4, d.Record().PerCallCost, 1e-9)
	assert.True(t, activeOf(t, ctx, "site").Equal(NewSpecialization("A")))
}

func TestController_WindowAccumulation_FlipsOnShift(t *testing.T) {
	// GIVEN a single-slot call site that resets counts on every change
	ctl := mustController(t, DefaultControllerConfig(), shiftConfig(AccumulationWindow))
	ctx := mustStep(t, ctl)

	// WHEN the first batch is A-heavy
	observeN(t, ctx, "site", "A", 900)
	observeN(t, ctx, "site", "B", 100)
	ctx = mustStep(t, ctl)

	// THEN [A] is compiled and the window is cleared
	require.True(t, activeOf(t, ctx, "site").Equal(NewSpecialization("A")))
	cs, _ := ctl.CallSite("site")
	assert.Equal(t, uint64(0), cs.Table().Total())

	// WHEN the next batch is B-heavy
	observeN(t, ctx, "site", "B", 900)
	observeN(t, ctx, "site", "A", 100)
	ctx = mustStep(t, ctl)

	// THEN historic [A] is too expensive even at threshold 1.0 and [B] is compiled
	d := ctl.Decisions()[0]
	assert.Equal(t, trace.ReasonCompiled, d.Reason)
	assert.Equal(t, 20200.0, d.Ideal.Cost)
	assert.Equal(t, 93800.0, d.HistoricCost)
	assert.True(t, activeOf(t, ctx, "site").Equal(NewSpecialization("B")))
	assert.Equal(t, 2, cs.History().Len())
}

func TestController_CumulativeAccumulation_FlipsOnceShiftDominates(t *testing.T) {
	// GIVEN a single-slot call site that keeps counting across changes
	ctl := mustController(t, DefaultControllerConfig(), shiftConfig(AccumulationCumulative))
	ctx := mustStep(t, ctl)
	observeN(t, ctx, "site", "A", 900)
	observeN(t, ctx, "site", "B", 100)
	ctx = mustStep(t, ctl)
	require.True(t, activeOf(t, ctx, "site").Equal(NewSpecialization("A")))

	// WHEN one B-heavy batch only brings the totals level
	observeN(t, ctx, "site", "B", 900)
	observeN(t, ctx, "site", "A", 100)
	ctx = mustStep(t, ctl)

	// THEN [A] is reused
	assert.Equal(t, trace.ReasonReused, ctl.Decisions()[0].Reason)
	assert.True(t, activeOf(t, ctx, "site").Equal(NewSpecialization("A")))

	// WHEN a second B-heavy batch tips the totals
	observeN(t, ctx, "site", "B", 900)
	observeN(t, ctx, "site", "A", 100)
	ctx = mustStep(t, ctl)

	// THEN the chain flips to [B]
	assert.Equal(t, trace.ReasonCompiled, ctl.Decisions()[0].Reason)
	assert.True(t, activeOf(t, ctx, "site").Equal(NewSpecialization("B")))
}

func TestController_WindowAccumulation_ReuseOfHistoricEntryResets(t *testing.T) {
	// GIVEN a site that has compiled [A] and then [B]
	ctl := mustController(t, DefaultControllerConfig(), shiftConfig(AccumulationWindow))
	ctx := mustStep(t, ctl)
	observeN(t, ctx, "site", "A", 900)
	observeN(t, ctx, "site", "B", 100)
	ctx = mustStep(t, ctl)
	observeN(t, ctx, "site", "B", 900)
	observeN(t, ctx, "site", "A", 100)
	ctx = mustStep(t, ctl)

	// WHEN traffic returns to A
	observeN(t, ctx, "site", "A", 900)
	observeN(t, ctx, "site", "B", 100)
	ctx = mustStep(t, ctl)

	// THEN the historic [A] is reused without a new compilation and the window resets
	d := ctl.Decisions()[0]
	assert.Equal(t, trace.ReasonReused, d.Reason)
	assert.False(t, d.Recompiled)
	assert.True(t, activeOf(t, ctx, "site").Equal(NewSpecialization("A")))
	cs, _ := ctl.CallSite("site")
	assert.Equal(t, 2, cs.History().Len())
	assert.Equal(t, uint64(0), cs.Table().Total())
}

func TestController_SteadyDistribution_NoFurtherRecompilation(t *testing.T) {
	// GIVEN a site fed the same mix every batch
	cfg := DefaultCallSiteConfig("site")
	cfg.ProfileProbability = 1
	ctl := mustController(t, DefaultControllerConfig(), cfg)
	ctx := mustStep(t, ctl)

	compilations := 0
	for b := 0; b < 20; b++ {
		observeN(t, ctx, "site", "A", 60)
		observeN(t, ctx, "site", "B", 30)
		observeN(t, ctx, "site", "C", 10)
		ctx = mustStep(t, ctl)
		if ctl.Decisions()[0].Recompiled {
			compilations++
		}
	}

	// THEN only the first decision compiles
	assert.Equal(t, 1, compilations)
	assert.Equal(t, []VariantTag{"A", "B", "C"}, activeOf(t, ctx, "site").Tags())
}

func TestController_ZeroProbability_FreezesDistributionAfterBootstrap(t *testing.T) {
	// GIVEN a site that never samples after bootstrap
	cfg := DefaultCallSiteConfig("site")
	cfg.ProfileProbability = 0
	ctl := mustController(t, DefaultControllerConfig(), cfg)
	cs, _ := ctl.CallSite("site")

	// WHEN bootstrap batches observe A and B
	ctx := mustStep(t, ctl)
	observeN(t, ctx, "site", "A", 10)
	ctx = mustStep(t, ctl)
	observeN(t, ctx, "site", "B", 5)
	ctx = mustStep(t, ctl)
	frozen := ctl.Decisions()[0]
	require.Equal(t, StateCoasting, frozen.State)
	require.Equal(t, uint64(15), frozen.Observations)

	// AND later batches report many C observations through the context
	for b := 0; b < 5; b++ {
		cc, _ := ctx.Site("site")
		assert.False(t, cc.Profiling)
		observeN(t, ctx, "site", "C", 1000)
		ctx = mustStep(t, ctl)

		// THEN they are dropped and decisions keep using the bootstrap counts
		d := ctl.Decisions()[0]
		assert.Equal(t, uint64(15), d.Observations)
		assert.Equal(t, StateCoasting, d.State)
		assert.True(t, d.Active.Equal(frozen.Active))
	}
	assert.Equal(t, uint64(0), cs.Table().Snapshot().Count("C"))
}

func TestController_ZeroProbability_DirectTableWritesStillCount(t *testing.T) {
	// GIVEN a coasting site
	cfg := DefaultCallSiteConfig("site")
	cfg.ProfileProbability = 0
	ctl := mustController(t, DefaultControllerConfig(), cfg)
	ctx := mustStep(t, ctl)
	observeN(t, ctx, "site", "A", 10)
	mustStep(t, ctl)
	mustStep(t, ctl)

	// WHEN the host writes to the table directly, bypassing the context gate
	cs, _ := ctl.CallSite("site")
	for i := 0; i < 100; i++ {
		cs.Table().Observe("B")
	}
	ctx = mustStep(t, ctl)

	// THEN the next decision consults those counts
	assert.Equal(t, uint64(110), ctl.Decisions()[0].Observations)
	assert.Equal(t, VariantTag("B"), activeOf(t, ctx, "site").At(0))
}

type duplicatingOptimizer struct{}

func (duplicatingOptimizer) Propose(dist Distribution, model CostModel) Proposal {
	spec := NewSpecialization("A", "A")
	return Proposal{Spec: spec, Cost: 0}
}

func TestController_InvalidProposal_KeepsPreviousChain(t *testing.T) {
	// GIVEN a site whose optimizer proposes a duplicate tag and a healthy site
	bad := DefaultCallSiteConfig("bad")
	bad.Optimizer = duplicatingOptimizer{}
	ctl := mustController(t, DefaultControllerConfig(), bad, DefaultCallSiteConfig("good"))
	ctx := mustStep(t, ctl)
	observeN(t, ctx, "bad", "A", 10)
	observeN(t, ctx, "good", "A", 10)

	// WHEN the controller steps
	ctx, err := ctl.Step()

	// THEN the violation is reported, the bad site keeps its chain and the context is still published
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvariantViolation))
	assert.Contains(t, err.Error(), `"bad"`)
	assert.Equal(t, trace.ReasonRejected, ctl.Decisions()[0].Reason)
	assert.Equal(t, 0, activeOf(t, ctx, "bad").Len())
	assert.Equal(t, []VariantTag{"A"}, activeOf(t, ctx, "good").Tags())
	assert.Same(t, ctx, ctl.Context())
	assert.Equal(t, uint64(1), ctx.Round())
}

func TestController_Context_IsImmutableSnapshot(t *testing.T) {
	// GIVEN a context taken before a specialization change
	ctl := mustController(t, DefaultControllerConfig(), DefaultCallSiteConfig("site"))
	before := mustStep(t, ctl)
	observeN(t, before, "site", "A", 10)

	// WHEN the controller compiles [A]
	after := mustStep(t, ctl)

	// THEN the earlier context still shows the old chain
	assert.Equal(t, 0, activeOf(t, before, "site").Len())
	assert.Equal(t, uint64(0), before.Round())
	assert.Equal(t, 1, activeOf(t, after, "site").Len())
	assert.Equal(t, uint64(1), after.Round())
	assert.NotSame(t, before, after)
}

func TestController_DuplicateID_Rejected(t *testing.T) {
	_, err := NewController(DefaultControllerConfig(), DefaultCallSiteConfig("x"), DefaultCallSiteConfig("x"))
	assert.True(t, errors.Is(err, ErrConfiguration), "got %v", err)

	ctl := mustController(t, DefaultControllerConfig(), DefaultCallSiteConfig("x"))
	err = ctl.Register(DefaultCallSiteConfig("x"))
	assert.True(t, errors.Is(err, ErrConfiguration), "got %v", err)
}

func TestController_InvalidConfig_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CallSiteConfig)
	}{
		{"empty id", func(c *CallSiteConfig) { c.ID = "" }},
		{"negative N", func(c *CallSiteConfig) { c.MaxSpecialized = -1 }},
		{"probability above one", func(c *CallSiteConfig) { c.ProfileProbability = 1.5 }},
		{"negative probability", func(c *CallSiteConfig) { c.ProfileProbability = -0.1 }},
		{"threshold below one", func(c *CallSiteConfig) { c.CompileThreshold = 0.9 }},
		{"negative skip cost", func(c *CallSiteConfig) { c.CostModel.Skip = -1 }},
		{"negative history cap", func(c *CallSiteConfig) { c.HistoryCap = -1 }},
		{"unknown accumulation", func(c *CallSiteConfig) { c.Accumulation = "sliding" }},
		{"unknown selection", func(c *CallSiteConfig) { c.Selection = "greedy" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCallSiteConfig("site")
			tt.mutate(&cfg)
			_, err := NewController(DefaultControllerConfig(), cfg)
			assert.True(t, errors.Is(err, ErrConfiguration), "got %v", err)
		})
	}

	_, err := NewController(ControllerConfig{Explorer: "eager"})
	assert.True(t, errors.Is(err, ErrConfiguration), "got %v", err)
}

func TestController_Register_MidRunJoinsNextStep(t *testing.T) {
	// GIVEN a controller that has already run
	ctl := mustController(t, DefaultControllerConfig(), DefaultCallSiteConfig("first"))
	mustStep(t, ctl)
	mustStep(t, ctl)

	// WHEN a call site is registered between steps
	require.NoError(t, ctl.Register(DefaultCallSiteConfig("second")))
	ctx := mustStep(t, ctl)

	// THEN it appears after the first site and starts its own bootstrap
	assert.Equal(t, []string{"first", "second"}, ctl.CallSites())
	require.Equal(t, 2, ctx.Len())
	assert.Equal(t, "second", ctx.Sites()[1].ID)
	decisions := ctl.Decisions()
	assert.Equal(t, uint64(2), decisions[0].Round)
	assert.Equal(t, uint64(0), decisions[1].Round)
	assert.Equal(t, StateBootstrapping, decisions[1].State)
}

func TestController_BasicExplorer_RegistersUnknownSite(t *testing.T) {
	// GIVEN a controller with no registered sites
	tmpl := DefaultCallSiteConfig("")
	tmpl.MaxSpecialized = 2
	ctl := mustController(t, ControllerConfig{Explorer: ExplorerBasic, DefaultCallSite: &tmpl})

	// WHEN an unknown site reports observations
	ctl.Observe("found", "A")
	ctl.Observe("found", "A")

	// THEN it is registered at the next step with the template settings
	ctx := mustStep(t, ctl)
	cc, ok := ctx.Site("found")
	require.True(t, ok)
	assert.True(t, cc.Profiling)
	cs, _ := ctl.CallSite("found")
	assert.Equal(t, 2, cs.maxSpecial)

	// AND later observations go to its table
	ctl.Observe("found", "A")
	assert.Equal(t, uint64(1), cs.Table().Total())
}

func TestController_InvalidTemplate_Rejected(t *testing.T) {
	// GIVEN a template that only sets invalid accumulation and history fields
	tmpl := &CallSiteConfig{Accumulation: "bogus", HistoryCap: -5}

	// WHEN the controller is built
	ctl, err := NewController(ControllerConfig{DefaultCallSite: tmpl})

	// THEN the template is validated rather than replaced by the defaults
	assert.Nil(t, ctl)
	assert.True(t, errors.Is(err, ErrConfiguration), "got %v", err)
}

func TestController_BasicExplorer_KeepsPartialTemplate(t *testing.T) {
	// GIVEN a template that leaves N, p, t and the cost model at zero
	tmpl := &CallSiteConfig{CompileThreshold: 1, Accumulation: AccumulationWindow, HistoryCap: 3}
	ctl := mustController(t, ControllerConfig{DefaultCallSite: tmpl})

	// WHEN an unknown site is discovered
	ctl.Observe("found", "A")
	mustStep(t, ctl)

	// THEN it carries the template's accumulation and history cap
	cs, ok := ctl.CallSite("found")
	require.True(t, ok)
	assert.Equal(t, AccumulationWindow, cs.accumulation)
	assert.Equal(t, 3, cs.History().Cap)
	assert.Equal(t, 0, cs.maxSpecial)

	// AND later edits to the caller's template do not leak in
	tmpl.HistoryCap = 9
	ctl.Observe("other", "A")
	mustStep(t, ctl)
	other, _ := ctl.CallSite("other")
	assert.Equal(t, 3, other.History().Cap)
}

func TestController_CheapestPrefixSelection(t *testing.T) {
	// GIVEN a dominant variant plus a long tail of rare ones
	cfg := DefaultCallSiteConfig("site")
	cfg.MaxSpecialized = 2
	cfg.Selection = SelectionCheapestPrefix
	ctl := mustController(t, DefaultControllerConfig(), cfg)
	cs, _ := ctl.CallSite("site")
	observe := func(tag VariantTag, n int) {
		for i := 0; i < n; i++ {
			cs.Table().Observe(tag)
		}
	}
	observe("A", 1000)
	observe("B", 20)
	for c := 0; c < 40; c++ {
		observe(VariantTag(fmt.Sprintf("C%d", c)), 19)
	}

	// WHEN the first step compiles
	ctx := mustStep(t, ctl)

	// THEN B is left to generic dispatch
	assert.True(t, NewSpecialization("A").Equal(activeOf(t, ctx, "site")), "got %v", activeOf(t, ctx, "site"))
}

func TestController_NoExplorer_IgnoresUnknownSite(t *testing.T) {
	ctl := mustController(t, ControllerConfig{Explorer: ExplorerNone})

	ctl.Observe("found", "A")
	ctx := mustStep(t, ctl)

	_, ok := ctx.Site("found")
	assert.False(t, ok)
	assert.Empty(t, ctl.CallSites())
}

func TestController_ConcurrentObserve(t *testing.T) {
	ctl := mustController(t, DefaultControllerConfig(), DefaultCallSiteConfig("site"))
	mustStep(t, ctl)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				ctl.Observe("site", "A")
			}
		}()
	}
	wg.Wait()

	cs, _ := ctl.CallSite("site")
	assert.Equal(t, uint64(2000), cs.Table().Total())
}

func TestController_SameSeedSameDecisions(t *testing.T) {
	// GIVEN two controllers with the same seed and sampled profiling
	run := func() []trace.DecisionRecord {
		dt := trace.NewDecisionTrace(trace.TraceLevelDecisions)
		cfg := DefaultControllerConfig()
		cfg.Seed = 99
		cfg.Observers = []DecisionObserver{dt}
		var sites []CallSiteConfig
		for i := 0; i < 3; i++ {
			sc := DefaultCallSiteConfig(fmt.Sprintf("site%d", i))
			sc.ProfileProbability = 0.3
			sites = append(sites, sc)
		}
		ctl := mustController(t, cfg, sites...)
		ctx := mustStep(t, ctl)
		for b := 0; b < 50; b++ {
			for i := 0; i < 3; i++ {
				id := fmt.Sprintf("site%d", i)
				observeN(t, ctx, id, VariantTag(fmt.Sprintf("T%d", (b/10+i)%4)), 50)
				observeN(t, ctx, id, "common", 20)
			}
			ctx = mustStep(t, ctl)
		}
		return dt.Decisions
	}

	// WHEN both replay the same observations
	a, b := run(), run()

	// THEN every decision matches
	assert.Equal(t, a, b)
	assert.Len(t, a, 3*51)
}

func TestController_ProfileStrategyOverride_BootstrapStillProfiles(t *testing.T) {
	cfg := DefaultCallSiteConfig("site")
	cfg.ProfileStrategy = neverProfile{}
	ctl := mustController(t, DefaultControllerConfig(), cfg)

	ctx := mustStep(t, ctl)
	assert.True(t, ctx.Sites()[0].Profiling)
	ctx = mustStep(t, ctl)
	assert.True(t, ctx.Sites()[0].Profiling)
	ctx = mustStep(t, ctl)
	assert.False(t, ctx.Sites()[0].Profiling)
}

type neverProfile struct{}

func (neverProfile) Profile(uint64) bool { return false }
