package cmd

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/catwalk/jit"
	"github.com/inference-sim/catwalk/jit/workload"
)

// palette maps workload variant names to the operand dispatched in the hot loop.
var palette = map[string]any{
	"int":        int(1),
	"int64":      int64(2),
	"uint8":      uint8(4),
	"float32":    float32(0.5),
	"float64":    2.0,
	"complex128": complex(3.0, 3.0),
}

func paletteNames() []string {
	names := make([]string, 0, len(palette))
	for n := range palette {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// accumulator is the state touched by calcWithX.
type accumulator struct {
	sum complex128
}

// genericRoute adds x through reflection: the dynamically dispatched call.
func (a *accumulator) genericRoute(x any) {
	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		a.sum += complex(float64(v.Int()), 0)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		a.sum += complex(float64(v.Uint()), 0)
	case reflect.Float32, reflect.Float64:
		a.sum += complex(v.Float(), 0)
	case reflect.Complex64, reflect.Complex128:
		a.sum += v.Complex()
	default:
		panic(fmt.Sprintf("calcWithX: unsupported operand %T", x))
	}
}

// fastRoutes returns the statically dispatched route of every palette variant.
func (a *accumulator) fastRoutes() map[jit.VariantTag]jit.Route {
	return map[jit.VariantTag]jit.Route{
		jit.TagOf(int(0)):        func(x any) { a.sum += complex(float64(x.(int)), 0) },
		jit.TagOf(int64(0)):      func(x any) { a.sum += complex(float64(x.(int64)), 0) },
		jit.TagOf(uint8(0)):      func(x any) { a.sum += complex(float64(x.(uint8)), 0) },
		jit.TagOf(float32(0)):    func(x any) { a.sum += complex(float64(x.(float32)), 0) },
		jit.TagOf(float64(0)):    func(x any) { a.sum += complex(x.(float64), 0) },
		jit.TagOf(complex128(0)): func(x any) { a.sum += x.(complex128) },
	}
}

// hotLoopResult summarizes one pass over the workload.
type hotLoopResult struct {
	Sum        complex128
	Batches    int
	Dispatches int
	StepErrors int
}

// runOptimized drives the workload through the controller: one Step per
// batch, dispatching every operand through the published chain of siteID.
func runOptimized(ctl *jit.Controller, gen *workload.Generator, batches int, siteID string) hotLoopResult {
	acc := &accumulator{}
	routes := jit.Routes{Fast: acc.fastRoutes(), Generic: acc.genericRoute}
	res := hotLoopResult{Batches: batches}

	var names []string
	for b := 0; b < batches; b++ {
		ctx, err := ctl.Step()
		if err != nil {
			res.StepErrors++
			logrus.Warnf("batch %d: %v", b, err)
		}
		names = gen.Batch(b, names)

		cc, ok := ctx.Site(siteID)
		if !ok {
			// Not registered yet: report to the explorer and stay generic.
			for _, n := range names {
				x := palette[n]
				ctl.Observe(siteID, jit.TagOf(x))
				acc.genericRoute(x)
			}
			res.Dispatches += len(names)
			continue
		}

		chain := jit.NewChain(cc, routes)
		for _, n := range names {
			chain.Dispatch(palette[n])
		}
		res.Dispatches += len(names)
		logrus.Debugf("batch %d: phase %d, %s, profiling=%v", b, gen.PhaseAt(b), cc.Specialization, cc.Profiling)
	}
	res.Sum = acc.sum
	return res
}

// runBaseline drives the same workload through generic dispatch only.
func runBaseline(gen *workload.Generator, batches int) hotLoopResult {
	acc := &accumulator{}
	res := hotLoopResult{Batches: batches}
	var names []string
	for b := 0; b < batches; b++ {
		names = gen.Batch(b, names)
		for _, n := range names {
			acc.genericRoute(palette[n])
		}
		res.Dispatches += len(names)
	}
	res.Sum = acc.sum
	return res
}
