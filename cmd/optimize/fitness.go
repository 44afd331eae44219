package main

import (
	"io"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/starfield/config"
	"github.com/pthm-cable/starfield/quality"
	"github.com/pthm-cable/starfield/telemetry"
)

// Fitness weights. Time spent below the acceptable frame rate dominates;
// flapping between levels is the next worst thing; higher quality is a bonus.
const (
	belowWeight   = 10.0
	flapWeight    = 0.5
	qualityWeight = 1.0
)

// spike is a period of extra per-frame cost, such as another tab competing
// for the GPU.
type spike struct {
	start, end time.Duration
	extraMS    float64
}

// gpuProfile is a synthetic device: a fixed frame cost, a per-particle cost,
// multiplicative jitter and occasional load spikes.
type gpuProfile struct {
	baseMS        float64
	perParticleUS float64
	jitter        float64
	spikes        []spike
}

func newProfile(rng *rand.Rand, duration time.Duration) gpuProfile {
	p := gpuProfile{
		baseMS:        3 + rng.Float64()*5,
		perParticleUS: 0.4 + rng.Float64()*2.1,
		jitter:        0.03 + rng.Float64()*0.07,
	}
	n := int(duration / time.Minute)
	for i := 0; i <= n; i++ {
		start := time.Duration(rng.Float64() * float64(duration))
		length := time.Duration(3+rng.Float64()*17) * time.Second
		p.spikes = append(p.spikes, spike{start: start, end: start + length, extraMS: 8 + rng.Float64()*22})
	}
	return p
}

// frame returns the duration of one frame at elapsed time t rendering count particles.
func (p gpuProfile) frame(rng *rand.Rand, t time.Duration, count int) time.Duration {
	ms := p.baseMS + float64(count)*p.perParticleUS/1000
	for _, s := range p.spikes {
		if t >= s.start && t < s.end {
			ms += s.extraMS
		}
	}
	ms *= 1 + rng.NormFloat64()*p.jitter
	if ms < 1 {
		ms = 1
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// runResult holds the outcome of one simulated session.
type runResult struct {
	belowFraction  float64 // Share of time rendered below the acceptable frame rate
	transitionsMin float64 // Quality transitions per simulated minute
	meanRank       float64 // Time-weighted mean quality level, 0 (LOW) .. 3 (ULTRA)
}

// RunStats is the seed-averaged result of one evaluation.
type RunStats struct {
	BelowFraction  float64
	TransitionsMin float64
	MeanRank       float64
}

// FitnessEvaluator runs simulated sessions and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	duration   time.Duration
	seeds      []int64
	baseConfig *config.Config
	logger     *slog.Logger

	mu          sync.Mutex
	bestFitness float64
	bestStats   RunStats
	lastStats   RunStats
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, duration time.Duration, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		duration:    duration,
		seeds:       seeds,
		baseConfig:  baseCfg,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		bestFitness: math.Inf(1),
	}
}

// LastStats returns the stats from the most recent evaluation.
func (fe *FitnessEvaluator) LastStats() RunStats {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastStats
}

// BestStats returns the stats of the best evaluation so far.
func (fe *FitnessEvaluator) BestStats() RunStats {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestStats
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Every seed simulates a different device against the same parameters.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	results := make([]runResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(cfg, s)
		}(i, seed)
	}
	wg.Wait()

	fitness := make([]float64, len(results))
	below := make([]float64, len(results))
	flaps := make([]float64, len(results))
	ranks := make([]float64, len(results))
	for i, r := range results {
		fitness[i] = computeFitness(r)
		below[i] = r.belowFraction
		flaps[i] = r.transitionsMin
		ranks[i] = r.meanRank
	}
	avg := stat.Mean(fitness, nil)
	stats := RunStats{
		BelowFraction:  stat.Mean(below, nil),
		TransitionsMin: stat.Mean(flaps, nil),
		MeanRank:       stat.Mean(ranks, nil),
	}

	fe.mu.Lock()
	fe.lastStats = stats
	if avg < fe.bestFitness {
		fe.bestFitness = avg
		fe.bestStats = stats
	}
	fe.mu.Unlock()

	return avg
}

func computeFitness(r runResult) float64 {
	return belowWeight*r.belowFraction + flapWeight*r.transitionsMin - qualityWeight*r.meanRank/float64(quality.Ultra)
}

// runSimulation drives the monitor and optimizer with synthetic frames, the
// same way the backdrop tick does: one FPS sample per sample interval once
// the monitor's window is full, each followed by an analysis.
func (fe *FitnessEvaluator) runSimulation(cfg *config.Config, seed int64) runResult {
	rng := rand.New(rand.NewSource(seed))
	profile := newProfile(rng, fe.duration)

	table, err := quality.NewTable(cfg.Quality)
	if err != nil {
		return runResult{belowFraction: 1}
	}
	initial, err := quality.ParseLevel(cfg.Quality.Initial)
	if err != nil {
		initial = quality.High
	}
	opt, err := quality.NewOptimizer(table, initial,
		quality.OptionsFromConfig(cfg.Quality.Optimizer, cfg.Derived.Cooldown), fe.logger)
	if err != nil {
		return runResult{belowFraction: 1}
	}
	mon := telemetry.NewMonitor(
		telemetry.MonitorOptionsFromConfig(cfg.Monitor, cfg.Derived.MemoryInterval),
		nil, nil, fe.logger)

	floor := cfg.Benchmark.MinAcceptableFPS
	interval := cfg.Derived.SampleInterval
	start := time.Unix(0, 0)

	var elapsed, sinceSample, below time.Duration
	var rankTime float64
	transitions := 0

	for elapsed < fe.duration {
		qc, err := table.Lookup(opt.Level())
		if err != nil {
			return runResult{belowFraction: 1}
		}
		frame := profile.frame(rng, elapsed, qc.ParticleCount)
		mon.RecordFrame(frame)
		elapsed += frame
		sinceSample += frame

		if 1000/(float64(frame)/float64(time.Millisecond)) < floor {
			below += frame
		}
		rankTime += float64(opt.Level()) * frame.Seconds()

		if sinceSample < interval || !mon.Ready() {
			continue
		}
		sinceSample = 0
		opt.AddSample(mon.Metrics().FPS)
		if d, err := opt.Analyze(start.Add(elapsed)); err == nil && d.ShouldOptimize {
			transitions++
		}
	}

	return runResult{
		belowFraction:  below.Seconds() / elapsed.Seconds(),
		transitionsMin: float64(transitions) / elapsed.Minutes(),
		meanRank:       rankTime / elapsed.Seconds(),
	}
}

// copyConfig returns a fresh copy of the base config to mutate per evaluation.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	return &cfg
}

func msDuration(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
