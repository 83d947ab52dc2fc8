package jit

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/catwalk/jit/trace"
)

// Bundle holds controller and call-site configuration, loadable from YAML.
// Nil pointer fields mean "not set in YAML" and keep the defaults.
// String fields use empty string for "not set".
type Bundle struct {
	Seed       *int64           `yaml:"seed"`
	Explorer   string           `yaml:"explorer"`
	TraceLevel string           `yaml:"trace_level"`
	Defaults   CallSiteBundle   `yaml:"defaults"`
	CallSites  []CallSiteBundle `yaml:"call_sites"`
}

// CallSiteBundle holds the YAML form of a CallSiteConfig.
type CallSiteBundle struct {
	ID                 string           `yaml:"id"`
	MaxSpecialized     *int             `yaml:"max_specialized"`
	ProfileProbability *float64         `yaml:"profile_probability"`
	CompileThreshold   *float64         `yaml:"compile_threshold"`
	HistoryCap         *int             `yaml:"history_cap"`
	Accumulation       string           `yaml:"accumulation"`
	Selection          string           `yaml:"selection"`
	CostModel          *CostModelBundle `yaml:"cost_model"`
}

// CostModelBundle holds the YAML form of a DispatchCostModel.
type CostModelBundle struct {
	Skip            *float64 `yaml:"skip_cost"`
	StaticDispatch  *float64 `yaml:"static_dispatch_cost"`
	DynamicDispatch *float64 `yaml:"dynamic_dispatch_cost"`
}

// LoadBundle reads and parses a YAML configuration file. Unknown top-level
// sections are ignored so the file can carry host-specific settings.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading optimizer config: %w", err)
	}
	return ParseBundle(data)
}

// ParseBundle parses YAML configuration bytes.
func ParseBundle(data []byte) (*Bundle, error) {
	var bundle Bundle
	if err := yaml.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("parsing optimizer config: %w", err)
	}
	return &bundle, nil
}

// Validate checks names, ids and parameter ranges in the bundle.
func (b *Bundle) Validate() error {
	if !ValidExplorers[ExplorerType(b.Explorer)] {
		return fmt.Errorf("%w: unknown explorer %q", ErrConfiguration, b.Explorer)
	}
	if !trace.IsValidTraceLevel(b.TraceLevel) {
		return fmt.Errorf("%w: unknown trace level %q", ErrConfiguration, b.TraceLevel)
	}
	if err := b.ControllerConfig().Validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	seen := make(map[string]bool, len(b.CallSites))
	for i, cfg := range b.CallSiteConfigs() {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("call_sites[%d]: %w", i, err)
		}
		if seen[cfg.ID] {
			return fmt.Errorf("call_sites[%d]: %w: duplicate call site id %q", i, ErrConfiguration, cfg.ID)
		}
		seen[cfg.ID] = true
	}
	return nil
}

// ControllerConfig converts the bundle's controller-level settings.
// Observers are left for the caller to attach.
func (b *Bundle) ControllerConfig() ControllerConfig {
	cfg := DefaultControllerConfig()
	if b.Seed != nil {
		cfg.Seed = *b.Seed
	}
	if b.Explorer != "" {
		cfg.Explorer = ExplorerType(b.Explorer)
	}
	tmpl := b.Defaults.apply(DefaultCallSiteConfig(""))
	cfg.DefaultCallSite = &tmpl
	return cfg
}

// CallSiteConfigs converts the listed call sites, each layered over the
// bundle defaults, in file order.
func (b *Bundle) CallSiteConfigs() []CallSiteConfig {
	base := b.Defaults.apply(DefaultCallSiteConfig(""))
	out := make([]CallSiteConfig, len(b.CallSites))
	for i, cs := range b.CallSites {
		out[i] = cs.apply(base)
	}
	return out
}

func (cb CallSiteBundle) apply(cfg CallSiteConfig) CallSiteConfig {
	if cb.ID != "" {
		cfg.ID = cb.ID
	}
	if cb.MaxSpecialized != nil {
		cfg.MaxSpecialized = *cb.MaxSpecialized
	}
	if cb.ProfileProbability != nil {
		cfg.ProfileProbability = *cb.ProfileProbability
	}
	if cb.CompileThreshold != nil {
		cfg.CompileThreshold = *cb.CompileThreshold
	}
	if cb.HistoryCap != nil {
		cfg.HistoryCap = *cb.HistoryCap
	}
	if cb.Accumulation != "" {
		cfg.Accumulation = Accumulation(cb.Accumulation)
	}
	if cb.Selection != "" {
		cfg.Selection = Selection(cb.Selection)
	}
	if cb.CostModel != nil {
		if cb.CostModel.Skip != nil {
			cfg.CostModel.Skip = *cb.CostModel.Skip
		}
		if cb.CostModel.StaticDispatch != nil {
			cfg.CostModel.StaticDispatch = *cb.CostModel.StaticDispatch
		}
		if cb.CostModel.DynamicDispatch != nil {
			cfg.CostModel.DynamicDispatch = *cb.CostModel.DynamicDispatch
		}
	}
	return cfg
}
