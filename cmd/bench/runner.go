package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pthm-cable/starfield/backdrop"
	"github.com/pthm-cable/starfield/capability"
	"github.com/pthm-cable/starfield/config"
	"github.com/pthm-cable/starfield/device"
	"github.com/pthm-cable/starfield/quality"
	"github.com/pthm-cable/starfield/renderer"
)

// tickRunner measures the CPU cost of the real frame loop: a headless
// backdrop pinned at the level, with the level's particle count replaced.
// GPU work is not included.
type tickRunner struct {
	configPath string
	seed       int64
	logger     *slog.Logger

	level quality.Level
	count int
	bd    *backdrop.Backdrop
	now   time.Time
}

func newTickRunner(configPath string, seed int64, logger *slog.Logger) *tickRunner {
	return &tickRunner{configPath: configPath, seed: seed, logger: logger, now: time.Unix(0, 0)}
}

// Frame implements benchmark.Runner.
func (r *tickRunner) Frame(level quality.Level, count int) (time.Duration, error) {
	if r.bd == nil || level != r.level || count != r.count {
		if err := r.rebuild(level, count); err != nil {
			return 0, err
		}
	}
	start := time.Now()
	r.bd.Tick(r.now)
	d := time.Since(start)
	if d <= 0 {
		d = time.Microsecond
	}
	r.now = r.now.Add(d)
	return d, nil
}

func (r *tickRunner) rebuild(level quality.Level, count int) error {
	r.Close()

	cfg, err := config.Load(r.configPath)
	if err != nil {
		return err
	}
	lc := cfg.Quality.Levels[level.String()]
	lc.ParticleCount = count
	cfg.Quality.Levels[level.String()] = lc
	cfg.Quality.Initial = level.String()

	host := backdrop.Host{
		Allocator: renderer.NewAllocator(true, r.logger),
		Prober:    capability.BaselineProber(),
		Measure: func() device.Viewport {
			return device.Viewport{Width: cfg.Screen.Width, Height: cfg.Screen.Height}
		},
	}
	bd, err := backdrop.New(cfg, host, backdrop.Options{
		Logger: r.logger,
		Seed:   r.seed,
		Now:    func() time.Time { return r.now },
	})
	if err != nil {
		return err
	}
	if _, err := bd.Start(context.Background()); err != nil {
		bd.Dispose()
		return err
	}
	if bd.Mode() != backdrop.ModeGPU {
		bd.Dispose()
		return fmt.Errorf("backdrop started in %s mode", bd.Mode())
	}
	if err := bd.PinQuality(level, r.now); err != nil {
		bd.Dispose()
		return err
	}
	r.bd, r.level, r.count = bd, level, count
	return nil
}

// Close disposes the current backdrop.
func (r *tickRunner) Close() {
	if r.bd != nil {
		r.bd.Dispose()
		r.bd = nil
	}
}
