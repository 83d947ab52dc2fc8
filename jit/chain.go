package jit

// Route handles one dispatched value.
type Route func(x any)

// Routes holds the statically dispatched route of every known variant plus
// the generic route used for everything else. Every fast route must behave
// exactly like Generic for values of its variant.
type Routes struct {
	Fast    map[VariantTag]Route
	Generic Route
	// TagOf classifies values; nil means TagOf.
	TagOf func(x any) VariantTag
}

// Chain is an executable fast-path chain for one batch. It tests the
// context's variants in chain order and falls back to the generic route.
// Variants without a fast route are skipped when the chain is built.
type Chain struct {
	ctx     CallCtx
	tags    []VariantTag
	routes  []Route
	generic Route
	tagOf   func(x any) VariantTag
}

// NewChain builds the chain for ctx from routes.
func NewChain(ctx CallCtx, routes Routes) *Chain {
	ch := &Chain{ctx: ctx, generic: routes.Generic, tagOf: routes.TagOf}
	if ch.tagOf == nil {
		ch.tagOf = TagOf
	}
	for _, tag := range ctx.Specialization.tags {
		if r, ok := routes.Fast[tag]; ok {
			ch.tags = append(ch.tags, tag)
			ch.routes = append(ch.routes, r)
		}
	}
	return ch
}

// Dispatch routes x, reporting its variant when the batch profiles.
func (ch *Chain) Dispatch(x any) {
	tag := ch.tagOf(x)
	if ch.ctx.Profiling {
		ch.ctx.Observe(tag)
	}
	for i, t := range ch.tags {
		if t == tag {
			ch.routes[i](x)
			return
		}
	}
	ch.generic(x)
}

// Len returns the number of fast routes in the chain.
func (ch *Chain) Len() int { return len(ch.tags) }
