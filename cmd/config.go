package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/catwalk/jit"
	"github.com/inference-sim/catwalk/jit/workload"
)

// DefaultCallSiteID is the call site driven by the reference hot loop when
// the configuration does not list one.
const DefaultCallSiteID = "calc_with_x"

// RunConfig is the file format read by `run` and `validate`: the optimizer
// bundle plus the synthetic workload driving the hot loop.
type RunConfig struct {
	jit.Bundle `yaml:",inline"`
	Workload   *workload.Spec `yaml:"workload"`
}

// LoadRunConfig reads a run configuration. An empty path yields the
// defaults: one registered call site and the default workload.
func LoadRunConfig(path string) (*RunConfig, error) {
	if path == "" {
		spec := workload.DefaultSpec()
		return &RunConfig{
			Bundle:   jit.Bundle{CallSites: []jit.CallSiteBundle{{ID: DefaultCallSiteID}}},
			Workload: &spec,
		}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run config: %w", err)
	}
	var rc RunConfig
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("parsing run config: %w", err)
	}
	if rc.Workload == nil {
		spec := workload.DefaultSpec()
		rc.Workload = &spec
	}
	return &rc, nil
}

// Validate checks both the optimizer bundle and the workload.
func (rc *RunConfig) Validate() error {
	if err := rc.Bundle.Validate(); err != nil {
		return err
	}
	if err := rc.Workload.Validate(); err != nil {
		return fmt.Errorf("workload: %w", err)
	}
	for _, v := range rc.Workload.Phases {
		for name := range v.Mix {
			if _, ok := palette[name]; !ok {
				return fmt.Errorf("workload: unknown variant %q (known: %v)", name, paletteNames())
			}
		}
	}
	return nil
}

// HotSite returns the call site driven by the hot loop: the first listed
// call site, or DefaultCallSiteID when none is listed.
func (rc *RunConfig) HotSite() string {
	if len(rc.CallSites) > 0 && rc.CallSites[0].ID != "" {
		return rc.CallSites[0].ID
	}
	return DefaultCallSiteID
}
