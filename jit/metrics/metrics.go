// Package metrics exposes per-call-site specialization decisions as
// Prometheus metrics.
package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/inference-sim/catwalk/jit/trace"
)

// Metric names.
const (
	// DecisionsTotal counts steps per call site and reason.
	// Labels: call_site, reason
	DecisionsTotal = "catwalk_decisions_total"

	// RecompilationsTotal counts adopted (compiled) chains per call site.
	// Labels: call_site
	RecompilationsTotal = "catwalk_recompilations_total"

	// PerCallCost is the active chain's expected cost per dispatch.
	// Labels: call_site
	PerCallCost = "catwalk_per_call_cost"

	// ChainLength is the number of specialized variants in the active chain.
	// Labels: call_site
	ChainLength = "catwalk_chain_length"

	// ProfilingEnabled is 1 while the upcoming batch profiles, 0 otherwise.
	// Labels: call_site
	ProfilingEnabled = "catwalk_profiling_enabled"

	// Round is the last round advanced per call site.
	// Labels: call_site
	Round = "catwalk_round"

	LabelCallSite = "call_site"
	LabelReason   = "reason"
)

const (
	// maxLabelLength is the maximum length for Prometheus label values.
	maxLabelLength = 128
	// unknownLabel replaces empty label values.
	unknownLabel = "unknown"
)

func sanitizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return unknownLabel
	}
	if len(value) > maxLabelLength {
		return value[:maxLabelLength]
	}
	return value
}

// Collectors holds the decision metrics. It implements jit.DecisionObserver.
type Collectors struct {
	decisions      *prometheus.CounterVec
	recompilations *prometheus.CounterVec
	perCallCost    *prometheus.GaugeVec
	chainLength    *prometheus.GaugeVec
	profiling      *prometheus.GaugeVec
	round          *prometheus.GaugeVec
}

// NewCollectors creates the collectors and registers them with registry.
// On error none of them remain registered.
func NewCollectors(registry prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: DecisionsTotal, Help: "Total number of specialization decisions per call site and reason"},
			[]string{LabelCallSite, LabelReason},
		),
		recompilations: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: RecompilationsTotal, Help: "Total number of fast-path chains compiled per call site"},
			[]string{LabelCallSite},
		),
		perCallCost: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: PerCallCost, Help: "Estimated cost per dispatch of the active chain"},
			[]string{LabelCallSite},
		),
		chainLength: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: ChainLength, Help: "Number of specialized variants in the active chain"},
			[]string{LabelCallSite},
		),
		profiling: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: ProfilingEnabled, Help: "Whether profiling is enabled for the current batch (1) or not (0)"},
			[]string{LabelCallSite},
		),
		round: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: Round, Help: "Last round advanced by the call site"},
			[]string{LabelCallSite},
		),
	}

	named := []struct {
		name string
		c    prometheus.Collector
	}{
		{DecisionsTotal, c.decisions},
		{RecompilationsTotal, c.recompilations},
		{PerCallCost, c.perCallCost},
		{ChainLength, c.chainLength},
		{ProfilingEnabled, c.profiling},
		{Round, c.round},
	}
	for i, n := range named {
		if err := registry.Register(n.c); err != nil {
			for _, done := range named[:i] {
				registry.Unregister(done.c)
			}
			return nil, fmt.Errorf("failed to register %s metric: %w", n.name, err)
		}
	}
	return c, nil
}

// RecordDecision updates the metrics from one decision.
func (c *Collectors) RecordDecision(rec trace.DecisionRecord) {
	site := sanitizeLabel(rec.CallSite)
	c.decisions.WithLabelValues(site, sanitizeLabel(rec.Reason)).Inc()
	if rec.Recompiled {
		c.recompilations.WithLabelValues(site).Inc()
	}
	c.perCallCost.WithLabelValues(site).Set(rec.PerCallCost)
	c.chainLength.WithLabelValues(site).Set(float64(len(rec.Chain)))
	profiling := 0.0
	if rec.Profiling {
		profiling = 1
	}
	c.profiling.WithLabelValues(site).Set(profiling)
	c.round.WithLabelValues(site).Set(float64(rec.Round))
}
