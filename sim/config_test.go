package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultControllerConfig_IsValid(t *testing.T) {
	cfg := DefaultControllerConfig()
	require.NoError(t, cfg.Validate())
	assert.InDelta(t, 0.2, cfg.Arrival.Rate(cfg.Service), 1e-12)
	assert.InDelta(t, 0.4, cfg.Utilization(), 1e-12)
}

func TestArrivalConfig_Rate(t *testing.T) {
	tests := []struct {
		name    string
		arrival ArrivalConfig
		service ServiceConfig
		want    float64
	}{
		{"rho with unit rates halves", ArrivalConfig{Rho: 0.8}, ServiceConfig{Rate1: 1, Rate2: 1}, 0.4},
		{"rho with unequal rates", ArrivalConfig{Rho: 0.5}, ServiceConfig{Rate1: 2, Rate2: 2}, 0.5},
		{"explicit lambda wins", ArrivalConfig{Lambda: 0.3, Rho: 0.9}, ServiceConfig{Rate1: 1, Rate2: 1}, 0.3},
		{"zero load", ArrivalConfig{}, ServiceConfig{Rate1: 1, Rate2: 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.arrival.Rate(tt.service), 1e-12)
		})
	}
}

func TestControllerConfig_Utilization_RoundTripsRho(t *testing.T) {
	cfg := DefaultControllerConfig()
	cfg.Service = ServiceConfig{Rate1: 2, Rate2: 0.5}
	cfg.Arrival = ArrivalConfig{Rho: 0.7}

	assert.InDelta(t, 0.7, cfg.Utilization(), 1e-12)
}

func TestControllerConfig_Validate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ControllerConfig)
	}{
		{"zero service rate", func(c *ControllerConfig) { c.Service.Rate1 = 0 }},
		{"infinite service rate", func(c *ControllerConfig) { c.Service.Rate2 = math.Inf(1) }},
		{"negative lambda", func(c *ControllerConfig) { c.Arrival.Lambda = -0.1 }},
		{"no load at all", func(c *ControllerConfig) { c.Arrival = ArrivalConfig{} }},
		{"saturated server", func(c *ControllerConfig) { c.Arrival = ArrivalConfig{Rho: 1} }},
		{"overloaded by lambda", func(c *ControllerConfig) { c.Arrival = ArrivalConfig{Lambda: 0.6} }},
		{"negative transient", func(c *ControllerConfig) { c.Rounds.Transient = -1 }},
		{"batch of one", func(c *ControllerConfig) { c.Rounds.InitialBatch = 1 }},
		{"single round", func(c *ControllerConfig) { c.Rounds.Rounds = 1 }},
		{"negative doublings", func(c *ControllerConfig) { c.Rounds.MaxDoublings = -1 }},
		{"too many doublings", func(c *ControllerConfig) { c.Rounds.MaxDoublings = 31 }},
		{"confidence of one", func(c *ControllerConfig) { c.Precision.Confidence = 1 }},
		{"zero target", func(c *ControllerConfig) { c.Precision.Target = 0 }},
		{"unknown scheduler", func(c *ControllerConfig) { c.Scheduler = "calendar" }},
		{"unknown trace level", func(c *ControllerConfig) { c.Trace = "everything" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultControllerConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestControllerConfig_Validate_AcceptsEdges(t *testing.T) {
	cfg := DefaultControllerConfig()
	cfg.Rounds.Transient = 0
	cfg.Rounds.InitialBatch = 2
	cfg.Rounds.Rounds = 2
	cfg.Rounds.MaxDoublings = 0
	cfg.Scheduler = ""
	cfg.Trace = ""

	assert.NoError(t, cfg.Validate())
}
