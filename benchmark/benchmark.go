// Package benchmark sweeps quality levels and particle counts, measures frame
// rate stability for each combination, and recommends the best stable setting.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/starfield/config"
	"github.com/pthm-cable/starfield/quality"
	"github.com/pthm-cable/starfield/telemetry"
)

// Runner renders one frame at the given level and particle count and returns
// how long it took.
type Runner interface {
	Frame(level quality.Level, count int) (time.Duration, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(level quality.Level, count int) (time.Duration, error)

// Frame implements Runner.
func (f RunnerFunc) Frame(level quality.Level, count int) (time.Duration, error) {
	return f(level, count)
}

// SyntheticRunner models frame time without rendering: a constant frame at FPS
// plus CostPerParticle for every particle.
type SyntheticRunner struct {
	FPS             float64
	CostPerParticle time.Duration
}

// Frame implements Runner.
func (s SyntheticRunner) Frame(_ quality.Level, count int) (time.Duration, error) {
	if s.FPS <= 0 {
		return 0, errors.New("synthetic fps must be positive")
	}
	base := time.Duration(float64(time.Second) / s.FPS)
	return base + time.Duration(count)*s.CostPerParticle, nil
}

// Options configures a sweep.
type Options struct {
	Levels             []quality.Level
	Counts             []int
	Duration           time.Duration // Sampling time per combination
	StabilityThreshold float64       // Max allowed max-min FPS spread
	MinAcceptableFPS   float64
}

// OptionsFromConfig converts the config section.
func OptionsFromConfig(c config.BenchmarkConfig, duration time.Duration) (Options, error) {
	levels := make([]quality.Level, 0, len(c.Levels))
	for _, name := range c.Levels {
		l, err := quality.ParseLevel(name)
		if err != nil {
			return Options{}, err
		}
		levels = append(levels, l)
	}
	return Options{
		Levels:             levels,
		Counts:             c.ParticleCounts,
		Duration:           duration,
		StabilityThreshold: c.StabilityThreshold,
		MinAcceptableFPS:   c.MinAcceptableFPS,
	}, nil
}

// Result is the measurement for one combination.
type Result struct {
	Level         string  `csv:"level" json:"level"`
	ParticleCount int     `csv:"particle_count" json:"particleCount"`
	Frames        int     `csv:"frames" json:"frames"`
	AverageFPS    float64 `csv:"avg_fps" json:"averageFps"`
	MinFPS        float64 `csv:"min_fps" json:"minFps"`
	MaxFPS        float64 `csv:"max_fps" json:"maxFps"`
	MemoryMB      float64 `csv:"memory_mb" json:"memoryUsage"`
	Stable        bool    `csv:"stable" json:"stable"`
	Score         float64 `csv:"score" json:"score"`
}

// LogValue implements slog.LogValuer.
func (r Result) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("level", r.Level),
		slog.Int("particles", r.ParticleCount),
		slog.Float64("avg_fps", r.AverageFPS),
		slog.Float64("min_fps", r.MinFPS),
		slog.Float64("max_fps", r.MaxFPS),
		slog.Float64("memory_mb", r.MemoryMB),
		slog.Bool("stable", r.Stable),
	)
}

// Recommendation is the optimal stable setting. Found is false when no
// combination was stable.
type Recommendation struct {
	Found         bool    `json:"found"`
	Level         string  `json:"level,omitempty"`
	ParticleCount int     `json:"particleCount,omitempty"`
	AverageFPS    float64 `json:"averageFps,omitempty"`
	Score         float64 `json:"score,omitempty"`
	Reason        string  `json:"reason"`
}

// Report is the outcome of a full sweep.
type Report struct {
	Results        []Result       `json:"results"`
	Recommendation Recommendation `json:"recommendation"`
}

// Score ranks a combination: quality rank (LOW=1) times thousands of
// particles times the frame rate relative to 60, capped at 1.
func Score(level quality.Level, count int, avgFPS float64) float64 {
	rank := float64(level) + 1
	return rank * (float64(count) / 1000) * math.Min(avgFPS/60, 1)
}

// Stable reports whether a run's FPS spread and average are acceptable.
func Stable(r Result, threshold, minAcceptable float64) bool {
	return r.MaxFPS-r.MinFPS <= threshold && r.AverageFPS >= minAcceptable
}

// Recommend picks the stable result with the highest score.
func Recommend(results []Result) Recommendation {
	var stable []Result
	var scores []float64
	for _, r := range results {
		if r.Stable {
			stable = append(stable, r)
			scores = append(scores, r.Score)
		}
	}
	if len(stable) == 0 {
		return Recommendation{Reason: fmt.Sprintf("no stable configuration in %d runs", len(results))}
	}
	best := stable[floats.MaxIdx(scores)]
	return Recommendation{
		Found:         true,
		Level:         best.Level,
		ParticleCount: best.ParticleCount,
		AverageFPS:    best.AverageFPS,
		Score:         best.Score,
		Reason:        fmt.Sprintf("highest score of %d stable runs", len(stable)),
	}
}

// Harness drives a Runner through every combination.
type Harness struct {
	runner  Runner
	monitor *telemetry.Monitor
	opts    Options
	logger  *slog.Logger
}

// New creates a harness. monitor may be nil, in which case a default monitor
// with the particle-count memory estimate is used.
func New(runner Runner, monitor *telemetry.Monitor, opts Options, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.Default()
	}
	if monitor == nil {
		c := config.Default()
		monitor = telemetry.NewMonitor(telemetry.MonitorOptionsFromConfig(c.Monitor, c.Derived.MemoryInterval), nil, nil, logger)
	}
	if opts.Duration <= 0 {
		opts.Duration = 5 * time.Second
	}
	return &Harness{
		runner:  runner,
		monitor: monitor,
		opts:    opts,
		logger:  logger.With("component", "benchmark"),
	}
}

// Run measures every level and count combination in order and returns the
// results with a recommendation. It stops early when ctx is cancelled.
func (h *Harness) Run(ctx context.Context) (Report, error) {
	if len(h.opts.Levels) == 0 || len(h.opts.Counts) == 0 {
		return Report{}, errors.New("benchmark needs at least one level and one particle count")
	}
	results := make([]Result, 0, len(h.opts.Levels)*len(h.opts.Counts))
	for _, level := range h.opts.Levels {
		for _, count := range h.opts.Counts {
			if err := ctx.Err(); err != nil {
				return Report{Results: results, Recommendation: Recommend(results)}, err
			}
			r, err := h.measure(level, count)
			if err != nil {
				return Report{Results: results, Recommendation: Recommend(results)}, fmt.Errorf("%s/%d: %w", level, count, err)
			}
			h.logger.Info("benchmark run", "result", r)
			results = append(results, r)
		}
	}
	rec := Recommend(results)
	if rec.Found {
		h.logger.Info("benchmark recommendation", "level", rec.Level, "particles", rec.ParticleCount, "score", rec.Score)
	} else {
		h.logger.Warn("benchmark found no stable configuration", "runs", len(results))
	}
	return Report{Results: results, Recommendation: rec}, nil
}

func (h *Harness) measure(level quality.Level, count int) (Result, error) {
	h.monitor.SetParticleCount(count)
	h.monitor.SetQualityLevel(level.String())
	h.monitor.Reset()

	var elapsed time.Duration
	frames := 0
	for elapsed < h.opts.Duration {
		d, err := h.runner.Frame(level, count)
		if err != nil {
			return Result{}, err
		}
		if d <= 0 {
			return Result{}, fmt.Errorf("runner returned non-positive frame time %v", d)
		}
		h.monitor.RecordFrame(d)
		elapsed += d
		frames++
	}

	m := h.monitor.Metrics()
	r := Result{
		Level:         level.String(),
		ParticleCount: count,
		Frames:        frames,
		AverageFPS:    m.AverageFPS,
		MinFPS:        m.MinFPS,
		MaxFPS:        m.MaxFPS,
		MemoryMB:      m.MemoryMB,
	}
	r.Stable = h.monitor.Ready() && Stable(r, h.opts.StabilityThreshold, h.opts.MinAcceptableFPS)
	r.Score = Score(level, count, r.AverageFPS)
	return r, nil
}
