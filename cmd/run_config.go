package cmd

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	sim "github.com/tandem-sim/tandem-sim/sim"
	"github.com/tandem-sim/tandem-sim/sim/trace"
)

// Scenario is one set of run parameters in a run config.
// Absent fields leave the value underneath untouched.
type Scenario struct {
	Lambda       *float64 `yaml:"lambda"`
	Rho          *float64 `yaml:"rho"`
	Mu1          *float64 `yaml:"mu1"`
	Mu2          *float64 `yaml:"mu2"`
	Transient    *int     `yaml:"transient"`
	Batch        *int     `yaml:"batch"`
	Rounds       *int     `yaml:"rounds"`
	MaxDoublings *int     `yaml:"max_doublings"`
	Confidence   *float64 `yaml:"confidence"`
	Precision    *float64 `yaml:"precision"`
	Seed         *int64   `yaml:"seed"`
	Scheduler    *string  `yaml:"scheduler"`
	Trace        *string  `yaml:"trace"`
}

// RunConfig represents a run config file: a base scenario plus named presets
// layered on top of it. All top-level sections must be listed to satisfy
// KnownFields(true) strict parsing.
type RunConfig struct {
	Version  string              `yaml:"version"`
	Scenario Scenario            `yaml:"scenario"`
	Presets  map[string]Scenario `yaml:"presets"`
}

// loadRunConfig reads and strictly parses a run config file.
func loadRunConfig(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read run config: %w", err)
	}
	return parseRunConfig(data)
}

func parseRunConfig(data []byte) (RunConfig, error) {
	// Strict field checking: typos must cause errors
	var rc RunConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&rc); err != nil {
		return RunConfig{}, fmt.Errorf("parse run config YAML: %w", err)
	}
	return rc, nil
}

// PresetNames returns the configured presets in sorted order.
func (rc RunConfig) PresetNames() []string {
	names := make([]string, 0, len(rc.Presets))
	for name := range rc.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the base scenario overlaid with the named preset.
// An empty name returns the base scenario.
func (rc RunConfig) Resolve(preset string) (Scenario, error) {
	if preset == "" {
		return rc.Scenario, nil
	}
	p, ok := rc.Presets[preset]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown preset %q (available: %v)", preset, rc.PresetNames())
	}
	return rc.Scenario.overlay(p), nil
}

// overlay returns s with every field set in top replacing its own.
func (s Scenario) overlay(top Scenario) Scenario {
	out := s
	if top.Lambda != nil {
		out.Lambda = top.Lambda
	}
	if top.Rho != nil {
		out.Rho = top.Rho
		if top.Lambda == nil {
			out.Lambda = nil
		}
	}
	if top.Mu1 != nil {
		out.Mu1 = top.Mu1
	}
	if top.Mu2 != nil {
		out.Mu2 = top.Mu2
	}
	if top.Transient != nil {
		out.Transient = top.Transient
	}
	if top.Batch != nil {
		out.Batch = top.Batch
	}
	if top.Rounds != nil {
		out.Rounds = top.Rounds
	}
	if top.MaxDoublings != nil {
		out.MaxDoublings = top.MaxDoublings
	}
	if top.Confidence != nil {
		out.Confidence = top.Confidence
	}
	if top.Precision != nil {
		out.Precision = top.Precision
	}
	if top.Seed != nil {
		out.Seed = top.Seed
	}
	if top.Scheduler != nil {
		out.Scheduler = top.Scheduler
	}
	if top.Trace != nil {
		out.Trace = top.Trace
	}
	return out
}

// applyTo copies the fields set in s into cfg.
func (s Scenario) applyTo(cfg *sim.ControllerConfig) {
	if s.Rho != nil {
		cfg.Arrival.Rho = *s.Rho
		cfg.Arrival.Lambda = 0
	}
	if s.Lambda != nil {
		cfg.Arrival.Lambda = *s.Lambda
	}
	if s.Mu1 != nil {
		cfg.Service.Rate1 = *s.Mu1
	}
	if s.Mu2 != nil {
		cfg.Service.Rate2 = *s.Mu2
	}
	if s.Transient != nil {
		cfg.Rounds.Transient = *s.Transient
	}
	if s.Batch != nil {
		cfg.Rounds.InitialBatch = *s.Batch
	}
	if s.Rounds != nil {
		cfg.Rounds.Rounds = *s.Rounds
	}
	if s.MaxDoublings != nil {
		cfg.Rounds.MaxDoublings = *s.MaxDoublings
	}
	if s.Confidence != nil {
		cfg.Precision.Confidence = *s.Confidence
	}
	if s.Precision != nil {
		cfg.Precision.Target = *s.Precision
	}
	if s.Seed != nil {
		cfg.Seed = *s.Seed
	}
	if s.Scheduler != nil {
		cfg.Scheduler = sim.SchedulerKind(*s.Scheduler)
	}
	if s.Trace != nil {
		cfg.Trace = trace.TraceLevel(*s.Trace)
	}
}
