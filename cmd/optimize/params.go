package main

import (
	"math"

	"github.com/pthm-cable/starfield/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the quality control loop parameters.
// target_fps is fixed: it is what the loop is trying to hold.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "min_fps", Path: "quality.optimizer.min_fps", Min: 20, Max: 50, Default: 30},
			{Name: "upgrade_factor", Path: "quality.optimizer.upgrade_factor", Min: 1.02, Max: 1.6, Default: 1.2},
			{Name: "window", Path: "quality.optimizer.window", Min: 2, Max: 30, Default: 10},
			{Name: "cooldown_ms", Path: "quality.optimizer.cooldown_ms", Min: 250, Max: 10000, Default: 2000},
			{Name: "sample_ms", Path: "quality.optimizer.sample_ms", Min: 100, Max: 2000, Default: 1000},
			{Name: "sample_size", Path: "monitor.sample_size", Min: 10, Max: 240, Default: 60},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = math.Max(spec.Min, math.Min(spec.Max, v[i]))
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config, clamped and in Specs
// order, and refreshes the derived durations.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	c := pv.Clamp(values)

	cfg.Quality.Optimizer.MinFPS = c[0]
	cfg.Quality.Optimizer.UpgradeFactor = c[1]
	cfg.Quality.Optimizer.Window = int(math.Round(c[2]))
	cfg.Quality.Optimizer.CooldownMS = int(math.Round(c[3]))
	cfg.Quality.Optimizer.SampleMS = int(math.Round(c[4]))
	cfg.Monitor.SampleSize = int(math.Round(c[5]))

	cfg.Derived.Cooldown = msDuration(cfg.Quality.Optimizer.CooldownMS)
	cfg.Derived.SampleInterval = msDuration(cfg.Quality.Optimizer.SampleMS)
}

// ExtractFromConfig extracts current parameter values from a Config.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Quality.Optimizer.MinFPS,
		cfg.Quality.Optimizer.UpgradeFactor,
		float64(cfg.Quality.Optimizer.Window),
		float64(cfg.Quality.Optimizer.CooldownMS),
		float64(cfg.Quality.Optimizer.SampleMS),
		float64(cfg.Monitor.SampleSize),
	}
}
