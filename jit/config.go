package jit

import (
	"fmt"
	"math"
)

// DefaultCompileThreshold is the default hysteresis factor.
const DefaultCompileThreshold = 1.04

// Accumulation selects whether counts persist across specialization changes.
type Accumulation string

const (
	// AccumulationCumulative keeps counting for the whole run.
	AccumulationCumulative Accumulation = "cumulative"
	// AccumulationWindow resets the table whenever the active specialization
	// changes, so later decisions only see traffic since the last change.
	// Ties in the new window break by the order tags are seen in it.
	AccumulationWindow Accumulation = "window"
)

// ValidAccumulations is the set of recognized accumulation modes.
var ValidAccumulations = map[Accumulation]bool{"": true, AccumulationCumulative: true, AccumulationWindow: true}

// Selection picks the optimizer built from MaxSpecialized.
type Selection string

const (
	// SelectionTopN specializes the N most frequent variants.
	SelectionTopN Selection = "top-n"
	// SelectionCheapestPrefix specializes the cheapest prefix of that chain.
	SelectionCheapestPrefix Selection = "cheapest-prefix"
)

// ValidSelections is the set of recognized selection names.
var ValidSelections = map[Selection]bool{"": true, SelectionTopN: true, SelectionCheapestPrefix: true}

// CallSiteConfig configures one monitored call site.
type CallSiteConfig struct {
	ID                 string
	MaxSpecialized     int               // N, chain length bound (default 10)
	ProfileProbability float64           // p in [0,1] (default 0.01)
	CompileThreshold   float64           // t >= 1.0 (default 1.04)
	CostModel          DispatchCostModel // default 3/8/100
	HistoryCap         int               // 0 = unbounded
	Accumulation       Accumulation      // "" = cumulative
	Selection          Selection         // "" = top-n

	// Optimizer overrides the optimizer chosen by Selection.
	Optimizer Optimizer
	// Model overrides CostModel with a custom implementation.
	Model CostModel
	// ProfileStrategy overrides SparseProfile. Bootstrap rounds profile
	// regardless of what it returns.
	ProfileStrategy ProfileStrategy
}

// DefaultCallSiteConfig returns the default configuration for id.
func DefaultCallSiteConfig(id string) CallSiteConfig {
	return CallSiteConfig{
		ID:                 id,
		MaxSpecialized:     DefaultMaxSpecialized,
		ProfileProbability: DefaultProfileProbability,
		CompileThreshold:   DefaultCompileThreshold,
		CostModel:          DefaultDispatchCostModel(),
		Accumulation:       AccumulationCumulative,
		Selection:          SelectionTopN,
	}
}

// Validate checks identity and parameter ranges.
func (c CallSiteConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: call site id must not be empty", ErrConfiguration)
	}
	if c.MaxSpecialized < 0 {
		return fmt.Errorf("%w: call site %q: max_specialized must be non-negative, got %d", ErrConfiguration, c.ID, c.MaxSpecialized)
	}
	if math.IsNaN(c.ProfileProbability) || c.ProfileProbability < 0 || c.ProfileProbability > 1 {
		return fmt.Errorf("%w: call site %q: profile_probability must be in [0,1], got %v", ErrConfiguration, c.ID, c.ProfileProbability)
	}
	if math.IsNaN(c.CompileThreshold) || c.CompileThreshold < 1 {
		return fmt.Errorf("%w: call site %q: compile_threshold must be >= 1.0, got %v", ErrConfiguration, c.ID, c.CompileThreshold)
	}
	if c.HistoryCap < 0 {
		return fmt.Errorf("%w: call site %q: history_cap must be non-negative, got %d", ErrConfiguration, c.ID, c.HistoryCap)
	}
	if !ValidAccumulations[c.Accumulation] {
		return fmt.Errorf("%w: call site %q: unknown accumulation %q", ErrConfiguration, c.ID, c.Accumulation)
	}
	if !ValidSelections[c.Selection] {
		return fmt.Errorf("%w: call site %q: unknown selection %q", ErrConfiguration, c.ID, c.Selection)
	}
	if c.Model == nil {
		params := []struct {
			name string
			v    float64
		}{
			{"skip_cost", c.CostModel.Skip},
			{"static_dispatch_cost", c.CostModel.StaticDispatch},
			{"dynamic_dispatch_cost", c.CostModel.DynamicDispatch},
		}
		for _, p := range params {
			if math.IsNaN(p.v) || math.IsInf(p.v, 0) || p.v < 0 {
				return fmt.Errorf("%w: call site %q: %s must be finite and non-negative, got %v", ErrConfiguration, c.ID, p.name, p.v)
			}
		}
	}
	return nil
}

// ExplorerType selects how unregistered call sites are handled.
type ExplorerType string

const (
	// ExplorerBasic registers call sites that report observations before
	// being registered, using ControllerConfig.DefaultCallSite.
	ExplorerBasic ExplorerType = "basic"
	// ExplorerNone ignores observations for unknown call sites.
	ExplorerNone ExplorerType = "none"
)

// ValidExplorers is the set of recognized explorer names.
var ValidExplorers = map[ExplorerType]bool{"": true, ExplorerBasic: true, ExplorerNone: true}

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	Seed     int64
	Explorer ExplorerType // "" = basic

	// DefaultCallSite is the template for call sites registered by the
	// explorer; its ID is replaced by the discovered id. Nil means
	// DefaultCallSiteConfig.
	DefaultCallSite *CallSiteConfig

	// Observers receive one DecisionRecord per call site per step.
	Observers []DecisionObserver
}

// DefaultControllerConfig returns a controller configuration with the basic
// explorer and default call-site parameters.
func DefaultControllerConfig() ControllerConfig {
	tmpl := DefaultCallSiteConfig("")
	return ControllerConfig{
		Seed:            0,
		Explorer:        ExplorerBasic,
		DefaultCallSite: &tmpl,
	}
}

// template returns a copy of the call-site template, or the defaults when
// none is set.
func (c ControllerConfig) template() CallSiteConfig {
	if c.DefaultCallSite == nil {
		return DefaultCallSiteConfig("")
	}
	return *c.DefaultCallSite
}

// Validate checks the explorer name and the call-site template. A nil
// template is valid and means the defaults; a set one is validated as given.
func (c ControllerConfig) Validate() error {
	if !ValidExplorers[c.Explorer] {
		return fmt.Errorf("%w: unknown explorer %q", ErrConfiguration, c.Explorer)
	}
	tmpl := c.template()
	tmpl.ID = "default"
	if err := tmpl.Validate(); err != nil {
		return err
	}
	return nil
}
