package jit

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/catwalk/jit/trace"
)

// DecisionObserver receives one record per call site per step.
// *trace.DecisionTrace and *metrics.Collectors implement it.
type DecisionObserver interface {
	RecordDecision(rec trace.DecisionRecord)
}

// Controller owns the call sites of one run, advances them once per batch
// and publishes the OptimizerContext consumed by instrumented code.
//
// Step and Register must be called from the host loop, never concurrently
// with each other or with observations of the batch being closed. Observe
// and Context are safe for concurrent use.
type Controller struct {
	cfg       ControllerConfig
	rng       *PartitionedRNG
	explorer  Explorer
	sites     []*CallSite
	byID      map[string]*CallSite
	current   atomic.Pointer[OptimizerContext]
	decisions []Decision
	steps     uint64
}

// NewController validates cfg and registers the given call sites in order.
func NewController(cfg ControllerConfig, sites ...CallSiteConfig) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tmpl := cfg.template()
	cfg.DefaultCallSite = &tmpl
	var explorer Explorer = NewBasicExplorer()
	if cfg.Explorer == ExplorerNone {
		explorer = NoExplorer{}
	}
	c := &Controller{
		cfg:      cfg,
		rng:      NewPartitionedRNG(NewRunKey(cfg.Seed)),
		explorer: explorer,
		byID:     make(map[string]*CallSite),
	}
	for _, sc := range sites {
		if err := c.Register(sc); err != nil {
			return nil, err
		}
	}
	c.publish()
	return c, nil
}

// Register adds a call site before or during a run. The site appears in the
// context published by the next Step. Duplicate ids are rejected.
func (c *Controller) Register(cfg CallSiteConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, dup := c.byID[cfg.ID]; dup {
		return fmt.Errorf("%w: duplicate call site id %q", ErrConfiguration, cfg.ID)
	}
	cs := newCallSite(cfg, c.rng.ForSubsystem(SubsystemCallSite(cfg.ID)))
	c.sites = append(c.sites, cs)
	c.byID[cfg.ID] = cs
	logrus.Debugf("registered call site %q (N=%d, p=%.4f, t=%.3f, %s)",
		cfg.ID, cfg.MaxSpecialized, cfg.ProfileProbability, cfg.CompileThreshold, cs.accumulation)
	return nil
}

// Step registers explored call sites, advances every call site exactly once
// in registration order and publishes a new context. Invariant violations
// leave the affected site on its previous specialization; the context is
// still published and the joined errors are returned.
func (c *Controller) Step() (*OptimizerContext, error) {
	c.registerExplored()

	var errs []error
	c.decisions = make([]Decision, 0, len(c.sites))
	for _, cs := range c.sites {
		d, err := cs.step()
		if err != nil {
			errs = append(errs, fmt.Errorf("call site %q: %w", cs.id, err))
		}
		c.decisions = append(c.decisions, d)
		if len(c.cfg.Observers) > 0 {
			rec := d.Record()
			for _, o := range c.cfg.Observers {
				o.RecordDecision(rec)
			}
		}
	}
	ctx := c.publish()
	c.steps++
	return ctx, errors.Join(errs...)
}

func (c *Controller) registerExplored() {
	for _, id := range c.explorer.Drain() {
		if _, ok := c.byID[id]; ok || id == "" {
			continue
		}
		cfg := *c.cfg.DefaultCallSite
		cfg.ID = id
		if err := c.Register(cfg); err != nil {
			logrus.Warnf("explorer: cannot register call site %q: %v", id, err)
			continue
		}
		logrus.Infof("explorer: registered call site %q", id)
	}
}

func (c *Controller) publish() *OptimizerContext {
	ctxs := make([]CallCtx, len(c.sites))
	for i, cs := range c.sites {
		ctxs[i] = cs.callCtx()
	}
	ctx := newOptimizerContext(c.steps, ctxs)
	c.current.Store(ctx)
	return ctx
}

// Context returns the most recently published context. Before the first
// Step every registered site is on generic dispatch with profiling off.
func (c *Controller) Context() *OptimizerContext {
	return c.current.Load()
}

// Observe reports a variant for a call site through the current context.
// Unknown ids are handed to the explorer. Safe for concurrent use.
func (c *Controller) Observe(siteID string, tag VariantTag) {
	if cc, ok := c.current.Load().Site(siteID); ok {
		cc.Observe(tag)
		return
	}
	c.explorer.Report(siteID)
}

// CallSite returns the registered call site with the given id.
func (c *Controller) CallSite(id string) (*CallSite, bool) {
	cs, ok := c.byID[id]
	return cs, ok
}

// CallSites returns registered ids in registration order.
func (c *Controller) CallSites() []string {
	ids := make([]string, len(c.sites))
	for i, cs := range c.sites {
		ids[i] = cs.id
	}
	return ids
}

// Decisions returns the decisions of the last Step in registration order.
func (c *Controller) Decisions() []Decision {
	out := make([]Decision, len(c.decisions))
	copy(out, c.decisions)
	return out
}

// Steps returns the number of completed steps.
func (c *Controller) Steps() uint64 { return c.steps }
