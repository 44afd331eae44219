package benchmark

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/pthm-cable/starfield/config"
	"github.com/pthm-cable/starfield/quality"
)

func TestConstantSixtyFPSRecommendsHighest(t *testing.T) {
	opts := Options{
		Levels:             []quality.Level{quality.Low, quality.High},
		Counts:             []int{2000, 8000},
		Duration:           5 * time.Second,
		StabilityThreshold: 10,
		MinAcceptableFPS:   30,
	}
	h := New(SyntheticRunner{FPS: 60}, nil, opts, nil)
	report, err := h.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Results) != 4 {
		t.Fatalf("results = %d, want 4", len(report.Results))
	}
	for _, r := range report.Results {
		if !r.Stable {
			t.Errorf("%s/%d not stable: %+v", r.Level, r.ParticleCount, r)
		}
		if math.Abs(r.AverageFPS-60) > 0.01 {
			t.Errorf("%s/%d avg fps = %v, want 60", r.Level, r.ParticleCount, r.AverageFPS)
		}
	}
	rec := report.Recommendation
	if !rec.Found || rec.Level != "HIGH" || rec.ParticleCount != 8000 {
		t.Errorf("recommendation = %+v, want HIGH/8000", rec)
	}
	if math.Abs(rec.Score-24) > 1e-6 {
		t.Errorf("score = %v, want 24", rec.Score)
	}
}

func TestSweepOrderAndMemory(t *testing.T) {
	opts := Options{
		Levels:   []quality.Level{quality.Medium, quality.Ultra},
		Counts:   []int{1000, 3000},
		Duration: 2 * time.Second,
	}
	report, err := New(SyntheticRunner{FPS: 60}, nil, opts, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		level string
		count int
	}{{"MEDIUM", 1000}, {"MEDIUM", 3000}, {"ULTRA", 1000}, {"ULTRA", 3000}}
	for i, w := range want {
		r := report.Results[i]
		if r.Level != w.level || r.ParticleCount != w.count {
			t.Errorf("result %d = %s/%d, want %s/%d", i, r.Level, r.ParticleCount, w.level, w.count)
		}
	}
	// Default monitor estimates memory from the particle count.
	if report.Results[1].MemoryMB <= report.Results[0].MemoryMB {
		t.Errorf("memory did not grow with particles: %v vs %v", report.Results[0].MemoryMB, report.Results[1].MemoryMB)
	}
}

func TestCostModelMakesLargeRunsUnstable(t *testing.T) {
	// 60fps base plus 5us per particle: 2000 particles ≈ 37fps, 8000 ≈ 18fps.
	opts := Options{
		Levels:             []quality.Level{quality.Low, quality.High},
		Counts:             []int{2000, 8000},
		Duration:           5 * time.Second,
		StabilityThreshold: 10,
		MinAcceptableFPS:   30,
	}
	runner := SyntheticRunner{FPS: 60, CostPerParticle: 5 * time.Microsecond}
	report, err := New(runner, nil, opts, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range report.Results {
		if want := r.ParticleCount == 2000; r.Stable != want {
			t.Errorf("%s/%d stable = %v (avg %.1f)", r.Level, r.ParticleCount, r.Stable, r.AverageFPS)
		}
	}
	if rec := report.Recommendation; !rec.Found || rec.Level != "HIGH" || rec.ParticleCount != 2000 {
		t.Errorf("recommendation = %+v, want HIGH/2000", rec)
	}
}

func TestNoStableConfiguration(t *testing.T) {
	opts := Options{
		Levels:           []quality.Level{quality.Low},
		Counts:           []int{2000},
		Duration:         2 * time.Second,
		MinAcceptableFPS: 30,
	}
	report, err := New(SyntheticRunner{FPS: 20}, nil, opts, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("an unstable sweep is not an error: %v", err)
	}
	if report.Recommendation.Found || report.Recommendation.Reason == "" {
		t.Errorf("recommendation = %+v, want structured no-recommendation", report.Recommendation)
	}
}

func TestShortRunIsNotStable(t *testing.T) {
	// 10 frames never fill the 60-frame sample window.
	opts := Options{
		Levels:   []quality.Level{quality.Low},
		Counts:   []int{100},
		Duration: 160 * time.Millisecond,
	}
	report, err := New(SyntheticRunner{FPS: 60}, nil, opts, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r := report.Results[0]; r.Stable || r.AverageFPS != 0 {
		t.Errorf("short run = %+v, want unstable with no FPS reading", r)
	}
}

func TestRunnerErrors(t *testing.T) {
	boom := errors.New("context lost")
	calls := 0
	runner := RunnerFunc(func(quality.Level, int) (time.Duration, error) {
		calls++
		if calls > 3 {
			return 0, boom
		}
		return 16 * time.Millisecond, nil
	})
	opts := Options{Levels: []quality.Level{quality.Low}, Counts: []int{10}, Duration: time.Second}
	if _, err := New(runner, nil, opts, nil).Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped runner error", err)
	}

	zero := RunnerFunc(func(quality.Level, int) (time.Duration, error) { return 0, nil })
	if _, err := New(zero, nil, opts, nil).Run(context.Background()); err == nil {
		t.Error("expected an error for a zero frame time")
	}

	if _, err := (SyntheticRunner{}).Frame(quality.Low, 1); err == nil {
		t.Error("expected an error for zero synthetic fps")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := Options{Levels: []quality.Level{quality.Low}, Counts: []int{10}, Duration: time.Second}
	report, err := New(SyntheticRunner{FPS: 60}, nil, opts, nil).Run(ctx)
	if !errors.Is(err, context.Canceled) || len(report.Results) != 0 {
		t.Errorf("err = %v results = %d", err, len(report.Results))
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		level quality.Level
		count int
		fps   float64
		want  float64
	}{
		{quality.Low, 2000, 60, 2},
		{quality.High, 8000, 60, 24},
		{quality.High, 8000, 120, 24},
		{quality.Ultra, 12000, 30, 24},
	}
	for _, tc := range tests {
		if got := Score(tc.level, tc.count, tc.fps); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Score(%s, %d, %v) = %v, want %v", tc.level, tc.count, tc.fps, got, tc.want)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	c := config.Default()
	opts, err := OptionsFromConfig(c.Benchmark, c.Derived.BenchmarkDuration)
	if err != nil {
		t.Fatal(err)
	}
	if len(opts.Levels) != 4 || opts.Levels[3] != quality.Ultra || opts.Duration != 5*time.Second {
		t.Errorf("opts = %+v", opts)
	}

	c.Benchmark.Levels = []string{"EXTREME"}
	if _, err := OptionsFromConfig(c.Benchmark, time.Second); !errors.Is(err, quality.ErrUnknownLevel) {
		t.Errorf("err = %v, want ErrUnknownLevel", err)
	}
}
