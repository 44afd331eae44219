package backdrop

import (
	"errors"
	"fmt"
	"time"

	"github.com/pthm-cable/starfield/config"
	"github.com/pthm-cable/starfield/quality"
	"github.com/pthm-cable/starfield/renderopt"
	"github.com/pthm-cable/starfield/telemetry"
	"github.com/pthm-cable/starfield/theme"
)

// PinQuality freezes the optimizer at level. The change applies immediately.
func (b *Backdrop) PinQuality(level quality.Level, now time.Time) error {
	_, err := b.optimizer.Pin(level, now)
	return err
}

// UnpinQuality resumes automatic quality control.
func (b *Backdrop) UnpinQuality() { b.optimizer.Unpin() }

// SetCulling toggles frustum culling.
func (b *Backdrop) SetCulling(enabled bool) { b.render.SetCulling(enabled) }

// SetTargetFPS changes the optimizer's target frame rate.
func (b *Backdrop) SetTargetFPS(fps float64) {
	b.cfg.Quality.Optimizer.TargetFPS = fps
	b.optimizer.SetOptions(quality.OptionsFromConfig(b.cfg.Quality.Optimizer, b.cfg.Derived.Cooldown))
}

// TargetFPS returns the optimizer's target frame rate.
func (b *Backdrop) TargetFPS() float64 { return b.cfg.Quality.Optimizer.TargetFPS }

// SetTheme starts a transition to the named theme. Unknown names keep the
// current theme.
func (b *Backdrop) SetTheme(name string, now time.Time) error {
	return b.themes.Transition(name, b.themeDuration(b.cfg), now)
}

// themeDuration is the configured transition duration at the host's
// preferred transition speed.
func (b *Backdrop) themeDuration(cfg *config.Config) time.Duration {
	return b.prefs.Current().TransitionDuration(cfg.Derived.ThemeTransition)
}

// ApplyConfig applies a reloaded configuration: quality table and loop,
// monitor thresholds, culling, LOD tiers and themes. Layer presets and the
// rendering path stay as started. A configuration with any invalid part is
// rejected whole and nothing changes.
func (b *Backdrop) ApplyConfig(cfg *config.Config, now time.Time) error {
	var errs []error

	table, err := quality.NewTable(cfg.Quality)
	if err == nil {
		_, err = table.Lookup(b.optimizer.Level())
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("quality table: %w", err))
	}
	// A scratch manager validates the palettes and the default theme.
	if _, err := theme.NewManager(cfg.Theme, 0, b.logger); err != nil {
		errs = append(errs, fmt.Errorf("themes: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		b.logger.Warn("config rejected", "error", err)
		return fmt.Errorf("applying config: %w", err)
	}

	if err := b.optimizer.SetTable(table); err != nil {
		return fmt.Errorf("applying config: %w", err)
	}
	b.table = table
	b.optimizer.SetOptions(quality.OptionsFromConfig(cfg.Quality.Optimizer, cfg.Derived.Cooldown))
	b.monitor.SetThresholds(cfg.Monitor.FPSWarning, cfg.Monitor.MemoryWarningMB)

	var resampleObs renderopt.ResampleObserver
	if b.opts.Exporter != nil {
		resampleObs = b.opts.Exporter
	}
	b.render = renderopt.NewOptimizer(renderopt.OptionsFromConfig(cfg.Render), resampleObs, b.opts.Logger)

	if err := b.themes.SetThemes(cfg.Theme); err != nil {
		return fmt.Errorf("applying config: %w", err)
	}
	if cfg.Theme.Default != "" && cfg.Theme.Default != b.themes.Name() {
		if err := b.themes.Transition(cfg.Theme.Default, b.themeDuration(cfg), now); err != nil {
			return fmt.Errorf("applying config: %w", err)
		}
	}

	b.cfg = cfg
	if b.mode == ModeGPU {
		if qc, err := b.optimizer.Config(); err == nil {
			b.applyQuality(qc)
		}
	}
	b.logger.Info("config applied")
	return nil
}

// Dispose tears everything down: layers return their resources, the fallback
// stops, and no callback fires afterwards. Safe to call repeatedly.
func (b *Backdrop) Dispose() {
	if b.disposed {
		return
	}
	b.disposed = true

	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil

	b.disposeLayers()
	if b.provider != nil {
		b.provider.Close()
	}
	if b.emulator != nil {
		b.emulator.Stop()
	}
	if b.device != nil {
		b.device.Dispose()
	}
	if b.gestures != nil {
		b.gestures.Dispose()
	}
	b.optimizer.Dispose()
	b.monitor.Dispose()
	b.themes.Dispose()
	if b.ownsPrefs {
		b.prefs.Dispose()
	}
	b.logger.Info("backdrop disposed", "frames", b.frame)
}

func (b *Backdrop) disposeLayers() {
	for _, l := range b.layers {
		l.Dispose()
		b.render.Forget(l.Name())
	}
	b.layers = nil
}

// Disposed reports whether Dispose has run.
func (b *Backdrop) Disposed() bool { return b.disposed }

// PerfRecord returns the current perf row, as shown in the HUD.
func (b *Backdrop) PerfRecord() telemetry.PerfRecord {
	return telemetry.NewPerfRecord(b.frame, b.monitor.Metrics(), b.perf.Stats())
}
