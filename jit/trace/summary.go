package trace

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SiteSummary aggregates decisions of one call site.
type SiteSummary struct {
	Decisions       int
	Recompilations  int
	Reuses          int
	FinalChain      []string
	MeanPerCallCost float64
}

// TraceSummary aggregates statistics from a DecisionTrace.
type TraceSummary struct {
	TotalDecisions    int
	Recompilations    int
	Reuses            int
	Rejections        int
	MeanPerCallCost   float64
	StdDevPerCallCost float64
	MaxPerCallCost    float64
	Sites             map[string]*SiteSummary
}

// Summarize computes aggregate statistics from decision records.
// Records without observations do not contribute to cost statistics.
// Safe for nil or empty input (returns zero-value fields).
func Summarize(records []DecisionRecord) *TraceSummary {
	summary := &TraceSummary{Sites: make(map[string]*SiteSummary)}
	if len(records) == 0 {
		return summary
	}

	var costs []float64
	siteCosts := make(map[string][]float64)
	for _, r := range records {
		site, ok := summary.Sites[r.CallSite]
		if !ok {
			site = &SiteSummary{}
			summary.Sites[r.CallSite] = site
		}
		site.Decisions++
		site.FinalChain = r.Chain
		summary.TotalDecisions++

		switch r.Reason {
		case ReasonCompiled:
			site.Recompilations++
			summary.Recompilations++
		case ReasonReused:
			site.Reuses++
			summary.Reuses++
		case ReasonRejected:
			summary.Rejections++
		}

		if r.Observations > 0 {
			costs = append(costs, r.PerCallCost)
			siteCosts[r.CallSite] = append(siteCosts[r.CallSite], r.PerCallCost)
		}
	}

	if len(costs) > 0 {
		summary.MeanPerCallCost = stat.Mean(costs, nil)
		summary.MaxPerCallCost = floats.Max(costs)
	}
	if len(costs) > 1 {
		summary.StdDevPerCallCost = stat.StdDev(costs, nil)
	}
	for id, c := range siteCosts {
		summary.Sites[id].MeanPerCallCost = stat.Mean(c, nil)
	}
	return summary
}
