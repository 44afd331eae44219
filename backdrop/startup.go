package backdrop

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pthm-cable/starfield/capability"
	"github.com/pthm-cable/starfield/device"
	"github.com/pthm-cable/starfield/fallback"
	"github.com/pthm-cable/starfield/layer"
	"github.com/pthm-cable/starfield/quality"
	"github.com/pthm-cable/starfield/renderopt"
	"github.com/pthm-cable/starfield/theme"
)

// Stage names one startup step.
type Stage string

const (
	StageDevice        Stage = "device"
	StageCapability    Stage = "capability"
	StagePolicy        Stage = "policy"
	StageLayers        Stage = "layers"
	StageFallback      Stage = "fallback"
	StageSubscriptions Stage = "subscriptions"
)

// StageStatus is the outcome of one startup stage.
type StageStatus struct {
	Stage  Stage
	OK     bool
	Detail string
	Err    error
}

// ErrAlreadyStarted is returned by a second Start.
var ErrAlreadyStarted = errors.New("backdrop: already started")

// Start runs the startup stages in order. Failures on the GPU path switch to
// the fallback; a failing fallback is reported to the user and swallowed, so
// the returned error is only for misuse. ctx bounds the fallback emulator's
// animation loop.
func (b *Backdrop) Start(ctx context.Context) ([]StageStatus, error) {
	if b.disposed {
		return nil, fmt.Errorf("backdrop: start after dispose: %w", layer.ErrDisposed)
	}
	if b.started {
		return b.statuses, ErrAlreadyStarted
	}
	b.started = true
	now := b.opts.Now()
	b.startedAt = now

	b.stageDevice()
	b.stageCapability()
	useFallback := b.stagePolicy(now)

	if !useFallback {
		if b.stageLayers() {
			b.mode = ModeGPU
		} else {
			b.host.Notifier.Notify(Notification{Level: NotifyInfo, Message: msgFallbackActive, Dismiss: fallbackNoticeDismiss})
			useFallback = true
		}
	} else if b.report.Supported && b.host.Allocator == nil {
		// A fallback-only host on a capable device; nothing to tell the user.
		b.logger.Info("host has no GPU allocator, using fallback")
	} else {
		b.host.Notifier.Notify(Notification{Level: NotifyInfo, Message: msgFallbackActive, Dismiss: fallbackNoticeDismiss})
	}
	if useFallback {
		if b.stageFallback(ctx) {
			b.mode = ModeFallback
		} else {
			b.host.Notifier.Notify(Notification{Level: NotifyError, Message: msgStartupFailed, Dismiss: failureNoticeDismiss})
		}
	}

	b.stageSubscriptions()
	b.logger.Info("backdrop started", "mode", b.mode.String(), "layers", len(b.layers))
	return b.statuses, nil
}

func (b *Backdrop) record(st StageStatus) {
	b.statuses = append(b.statuses, st)
	if st.OK {
		b.logger.Debug("startup stage", "stage", string(st.Stage), "detail", st.Detail)
	} else {
		b.logger.Warn("startup stage failed", "stage", string(st.Stage), "detail", st.Detail, "error", st.Err)
	}
}

func (b *Backdrop) stageDevice() {
	cfg := b.cfg
	// Table validated in New
	a, _ := device.NewAdapter(cfg.Device, cfg.Derived.OrientationSettle, b.host.Environment, b.host.Measure, b.opts.Logger)
	b.device = a
	b.gestures = device.NewRecognizer(float32(cfg.Device.PanThresholdPx), cfg.Derived.LongPress, b.opts.Logger)

	v := a.Viewport()
	b.camera.Resize(float32(v.Width), float32(v.Height))
	b.record(StageStatus{
		Stage:  StageDevice,
		OK:     true,
		Detail: fmt.Sprintf("%s %dx%d", a.Type(), v.Width, v.Height),
	})
}

func (b *Backdrop) stageCapability() {
	d := b.host.Detector
	if d == nil {
		env := capability.Environment{UserAgent: b.host.Environment.UserAgent, Touch: b.host.Environment.Touch}
		d = capability.NewDetector(b.host.Prober, b.rules, env, b.opts.Logger)
	}
	b.report = d.Detect()
	st := StageStatus{Stage: StageCapability, OK: b.report.Supported, Detail: string(b.report.RecommendedFallback)}
	if !b.report.Supported {
		st.Err = errors.Join(stringErrors(b.report.Errors)...)
	}
	b.record(st)
}

func stringErrors(msgs []string) []error {
	errs := make([]error, len(msgs))
	for i, m := range msgs {
		errs[i] = errors.New(m)
	}
	return errs
}

// initialLevel is the configured level bounded by the device class and the
// UX preference cap.
func (b *Backdrop) initialLevel() quality.Level {
	level := b.initial
	if dl, err := quality.ParseLevel(b.device.Config().Quality); err == nil && dl < level {
		level = dl
	}
	if limit := quality.Cap(b.prefs.Current()); limit < level {
		level = limit
	}
	return level
}

func (b *Backdrop) stagePolicy(now time.Time) (useFallback bool) {
	level := b.initialLevel()
	if _, err := b.optimizer.SetLevel(level, now, "startup"); err != nil {
		b.logger.Error("initial quality level", "level", level.String(), "error", err)
	}

	in := PolicyInput{
		Supported:          b.report.Supported && b.host.Allocator != nil,
		Quality:            b.optimizer.Level().String(),
		Device:             b.device.Type().String(),
		LowQualityFallback: b.cfg.Fallback.LowQualityFallback,
		Warnings:           len(b.report.Warnings),
		Fallback:           string(b.report.RecommendedFallback),
	}
	use, err := b.policy.UseFallback(in)
	path := "gpu"
	if use {
		path = "fallback"
	}
	b.record(StageStatus{Stage: StagePolicy, OK: err == nil, Detail: path, Err: err})
	return use
}

// deviceScale converts a layer's share of the quality target into its device
// budget: the device multiplier, capped so all layers together stay within
// the device's particle limit.
func (b *Backdrop) deviceScale(qc quality.Config) func(int) int {
	if qc.ParticleCount <= 0 {
		return nil
	}
	total := b.device.AdaptParticleCount(qc.ParticleCount)
	if limit := b.device.Config().MaxParticles; limit > 0 && total > limit {
		total = limit
	}
	ratio := float64(total) / float64(qc.ParticleCount)
	return func(n int) int { return int(math.Floor(float64(n) * ratio)) }
}

// layerSettings applies device restrictions to a quality config.
func (b *Backdrop) layerSettings(qc quality.Config) layer.Settings {
	s := qc.LayerSettings()
	if !b.device.Config().AdvancedEffects {
		s.ComplexShading = false
		s.EnergyEffects = false
	}
	return s
}

func (b *Backdrop) stageLayers() bool {
	qc, err := b.optimizer.Config()
	if err != nil {
		b.record(StageStatus{Stage: StageLayers, Err: err})
		return false
	}

	var poolObs renderopt.PoolObserver
	if b.opts.Exporter != nil {
		poolObs = b.opts.Exporter
	}
	b.provider = renderopt.NewProvider(b.host.Allocator, b.cfg.Render.MaxPoolSize, poolObs, b.opts.Logger)

	settings := b.layerSettings(qc)
	scale := b.deviceScale(qc)
	colors := b.themes.Current()
	total := 0
	for _, p := range b.presets {
		count := int(float64(settings.ParticleCount) * p.Share)
		if scale != nil {
			count = scale(count)
		}
		l, err := layer.New(p, count, b.provider, b.rng, b.opts.Logger)
		if err != nil {
			b.disposeLayers()
			b.provider.Close()
			b.provider = nil
			b.record(StageStatus{Stage: StageLayers, Err: err, Detail: p.Name})
			return false
		}
		l.ApplyQuality(settings, scale)
		l.Recolor(theme.Tint(colors.Role(p.ThemeRole)))
		b.layers = append(b.layers, l)
		b.breakers[p.Name] = b.newBreaker(p.Name)
		total += l.Count()
	}
	b.monitor.SetParticleCount(total)
	b.monitor.SetQualityLevel(b.optimizer.Level().String())
	b.opts.Exporter.SetQuality(b.optimizer.Level().String(), quality.Names())
	b.record(StageStatus{
		Stage:  StageLayers,
		OK:     true,
		Detail: fmt.Sprintf("%d layers, %d particles at %s", len(b.layers), total, b.optimizer.Level()),
	})
	return true
}

func (b *Backdrop) newBreaker(name string) *gobreaker.CircuitBreaker {
	failures := uint32(b.cfg.Layers.BreakerFailures)
	if failures == 0 {
		failures = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     b.cfg.Derived.BreakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("layer breaker state change", "layer", name, "from", from.String(), "to", to.String())
		},
	})
}

func (b *Backdrop) stageFallback(ctx context.Context) bool {
	e, err := fallback.New(b.host.Container, b.fbOpts, b.rng, b.opts.Logger)
	if err != nil {
		b.record(StageStatus{Stage: StageFallback, Err: err})
		return false
	}
	e.SetColors(b.themes.Current().Palette())
	e.Start(ctx)
	b.emulator = e
	b.record(StageStatus{Stage: StageFallback, OK: true, Detail: fmt.Sprintf("%d particles", e.Count())})
	return true
}

func (b *Backdrop) stageSubscriptions() {
	b.unsubs = append(b.unsubs,
		b.optimizer.OnChange(b.onQualityChange),
		b.device.OnChange(b.onDeviceChange),
		b.gestures.OnGesture(b.onGesture),
		b.themes.OnProgress(b.onThemeProgress),
		b.monitor.OnWarning(b.onPerfWarning),
		b.prefs.OnChange(b.onPreferences),
	)
	b.record(StageStatus{Stage: StageSubscriptions, OK: true, Detail: fmt.Sprintf("%d callbacks", len(b.unsubs))})
}
