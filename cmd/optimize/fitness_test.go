package main

import (
	"testing"
	"time"

	"github.com/pthm-cable/starfield/config"
)

func TestParamsRoundTrip(t *testing.T) {
	pv := NewParamVector()
	cfg := config.Default()

	got := pv.ExtractFromConfig(cfg)
	want := pv.DefaultVector()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s: config has %v, default spec %v", pv.Specs[i].Name, got[i], want[i])
		}
	}

	norm := pv.Normalize(want)
	back := pv.Denormalize(norm)
	for i := range want {
		if d := back[i] - want[i]; d > 1e-9 || d < -1e-9 {
			t.Errorf("%s: round trip %v -> %v", pv.Specs[i].Name, want[i], back[i])
		}
	}
}

func TestApplyToConfigClampsAndDerives(t *testing.T) {
	pv := NewParamVector()
	cfg := config.Default()
	pv.ApplyToConfig(cfg, []float64{0, 100, 1000, 50, 300, 5})

	if cfg.Quality.Optimizer.MinFPS != 20 {
		t.Errorf("min_fps = %v, want clamped 20", cfg.Quality.Optimizer.MinFPS)
	}
	if cfg.Quality.Optimizer.UpgradeFactor != 1.6 {
		t.Errorf("upgrade_factor = %v, want clamped 1.6", cfg.Quality.Optimizer.UpgradeFactor)
	}
	if cfg.Quality.Optimizer.Window != 30 {
		t.Errorf("window = %d, want 30", cfg.Quality.Optimizer.Window)
	}
	if cfg.Derived.Cooldown != 250*time.Millisecond {
		t.Errorf("cooldown = %v, want 250ms", cfg.Derived.Cooldown)
	}
	if cfg.Derived.SampleInterval != 300*time.Millisecond {
		t.Errorf("sample interval = %v, want 300ms", cfg.Derived.SampleInterval)
	}
	if cfg.Monitor.SampleSize != 10 {
		t.Errorf("sample_size = %d, want 10", cfg.Monitor.SampleSize)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	pv := NewParamVector()
	fe := NewFitnessEvaluator(pv, time.Minute, []int64{1, 2}, config.Default())

	a := fe.Evaluate(pv.DefaultVector())
	sa := fe.LastStats()
	b := fe.Evaluate(pv.DefaultVector())
	if a != b {
		t.Errorf("same parameters gave fitness %v and %v", a, b)
	}
	if sa.BelowFraction < 0 || sa.BelowFraction > 1 {
		t.Errorf("below fraction %v out of range", sa.BelowFraction)
	}
	if sa.MeanRank < 0 || sa.MeanRank > 3 {
		t.Errorf("mean rank %v out of range", sa.MeanRank)
	}
}
