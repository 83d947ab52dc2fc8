package jit

// CostModel estimates the cost of dispatching a distribution through a chain.
// Implementations must be pure. Costs are only compared with each other, so
// any consistent unit works.
type CostModel interface {
	// Evaluate returns the aggregate cost of dispatching every observation in
	// dist through spec.
	Evaluate(spec Specialization, dist Distribution) float64
}

// DispatchCostModel charges a membership test per chain position tried, a
// static route on a hit and generic dispatch for the tail. Costs are
// measured in clock cycles.
//
//	cost = Σ count(tag_i) * (i*Skip + StaticDispatch)
//	     + count(tail)   * (k*Skip + DynamicDispatch)
type DispatchCostModel struct {
	Skip            float64 // one fast-path membership test
	StaticDispatch  float64 // specialized route, excluding skip tests
	DynamicDispatch float64 // generic fallback
}

// DefaultDispatchCostModel returns the default cost parameters.
func DefaultDispatchCostModel() DispatchCostModel {
	return DispatchCostModel{
		Skip:            3,
		StaticDispatch:  8,
		DynamicDispatch: 100,
	}
}

// Evaluate implements CostModel.
func (m DispatchCostModel) Evaluate(spec Specialization, dist Distribution) float64 {
	var cost float64
	var covered uint64
	for i, tag := range spec.tags {
		c := dist.Count(tag)
		covered += c
		cost += float64(c) * (float64(i+1)*m.Skip + m.StaticDispatch)
	}
	var tail uint64
	if covered < dist.Total() {
		tail = dist.Total() - covered
	}
	cost += float64(tail) * (float64(len(spec.tags))*m.Skip + m.DynamicDispatch)
	return cost
}

// PerCallCost returns the expected cost of a single dispatch, or 0 for an
// empty distribution.
func PerCallCost(model CostModel, spec Specialization, dist Distribution) float64 {
	if dist.Total() == 0 {
		return 0
	}
	return model.Evaluate(spec, dist) / float64(dist.Total())
}
