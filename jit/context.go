package jit

// CallCtx is one call site's slice of an OptimizerContext: what instrumented
// code needs for the batch.
type CallCtx struct {
	ID             string
	Profiling      bool
	Specialization Specialization

	sink *FrequencyTable
}

// Observe records tag for the call site when this batch profiles.
// Observations reported through a non-profiling context are dropped, which
// is what freezes the distribution when profiling is off. Safe for
// concurrent use.
func (c CallCtx) Observe(tag VariantTag) {
	if c.Profiling && c.sink != nil {
		c.sink.Observe(tag)
	}
}

// OptimizerContext is the immutable per-batch snapshot published by
// Controller.Step. It is superseded, never mutated, by the next step.
type OptimizerContext struct {
	round uint64
	order []string
	sites map[string]CallCtx
}

func newOptimizerContext(round uint64, ctxs []CallCtx) *OptimizerContext {
	oc := &OptimizerContext{
		round: round,
		order: make([]string, len(ctxs)),
		sites: make(map[string]CallCtx, len(ctxs)),
	}
	for i, c := range ctxs {
		oc.order[i] = c.ID
		oc.sites[c.ID] = c
	}
	return oc
}

// Round returns the number of steps taken before this context was published;
// the first Step publishes round 0.
func (o *OptimizerContext) Round() uint64 { return o.round }

// Site returns the call site's context.
func (o *OptimizerContext) Site(id string) (CallCtx, bool) {
	c, ok := o.sites[id]
	return c, ok
}

// Sites returns every call site's context in registration order.
func (o *OptimizerContext) Sites() []CallCtx {
	out := make([]CallCtx, len(o.order))
	for i, id := range o.order {
		out[i] = o.sites[id]
	}
	return out
}

// Len returns the number of call sites in the context.
func (o *OptimizerContext) Len() int { return len(o.order) }
