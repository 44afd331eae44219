package backdrop

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pthm-cable/starfield/quality"
	"github.com/pthm-cable/starfield/renderopt"
	"github.com/pthm-cable/starfield/telemetry"
)

// driftRadiansPerSecond is the idle camera yaw drift, off under motion reduction.
const driftRadiansPerSecond = 0.02

// FrameResult summarises one Tick.
type FrameResult struct {
	Frame       int64
	Mode        Mode
	Metrics     telemetry.Metrics
	Render      renderopt.FrameStats
	Decision    *quality.Decision // Set when the optimizer changed level this frame
	LayerErrors int
	Skipped     int // Layers skipped by an open breaker
}

// Tick advances one frame at now: device re-measure, monitor, optimizer,
// LOD and culling, uniforms, then theme.
func (b *Backdrop) Tick(now time.Time) FrameResult {
	return b.TickAndDraw(now, nil)
}

// TickAndDraw is Tick followed by draw, which is timed as the frame's draw
// phase. draw is not called when there is nothing to show.
func (b *Backdrop) TickAndDraw(now time.Time, draw func()) FrameResult {
	res := FrameResult{Mode: b.mode}
	if b.disposed || !b.started {
		return res
	}
	var dt time.Duration
	if !b.lastFrame.IsZero() {
		dt = now.Sub(b.lastFrame)
	}
	b.lastFrame = now
	b.frame++
	res.Frame = b.frame

	b.perf.StartFrame()

	b.perf.StartPhase(telemetry.PhaseDevice)
	b.device.Update(now)

	b.perf.StartPhase(telemetry.PhaseMonitor)
	b.clock.now = now
	b.monitor.Tick()
	m := b.monitor.Metrics()
	b.opts.Exporter.Observe(m)

	if b.mode == ModeGPU {
		b.perf.StartPhase(telemetry.PhaseOptimizer)
		res.Decision = b.analyze(now, dt, m)

		b.perf.StartPhase(telemetry.PhaseLOD)
		if !b.prefs.Current().MotionReduction {
			b.camera.Drift(float32(dt.Seconds()), driftRadiansPerSecond)
		}
		b.lastRender = b.render.Update(b.camera, b.layers)
		res.Render = b.lastRender
		b.monitor.SetParticleCount(b.lastRender.Particles)
		b.monitor.SetCulledLayers(b.lastRender.Culled)

		b.perf.StartPhase(telemetry.PhaseUniforms)
		res.LayerErrors, res.Skipped = b.updateUniforms(now)
	}

	b.perf.StartPhase(telemetry.PhaseTheme)
	b.themes.Update(now)

	if draw != nil && b.mode != ModeNone {
		b.perf.StartPhase(telemetry.PhaseDraw)
		draw()
	}
	b.perf.EndFrame()
	b.flushTelemetry(dt)

	res.Metrics = b.monitor.Metrics()
	return res
}

// analyze feeds the optimizer one FPS sample per sample interval and runs an
// analysis after each.
func (b *Backdrop) analyze(now time.Time, dt time.Duration, m telemetry.Metrics) *quality.Decision {
	interval := b.cfg.Derived.SampleInterval
	if interval <= 0 {
		interval = time.Second
	}
	b.sinceSample += dt
	if b.sinceSample < interval || !b.monitor.Ready() {
		return nil
	}
	b.sinceSample = 0
	b.optimizer.AddSample(m.FPS)

	d, err := b.optimizer.Analyze(now)
	if err != nil {
		b.logger.Error("quality analysis failed", "error", err, "decision", d)
		return nil
	}
	if !d.ShouldOptimize {
		return nil
	}
	return &d
}

// updateUniforms pushes uniforms to every visible layer through its breaker.
// A failing layer is logged by name and never stops its siblings.
func (b *Backdrop) updateUniforms(now time.Time) (failed, skipped int) {
	elapsed := now.Sub(b.startedAt).Seconds()
	for _, l := range b.layers {
		if l.Disposed() || !l.Visible() {
			continue
		}
		br := b.breakers[l.Name()]
		_, err := br.Execute(func() (interface{}, error) {
			return nil, l.UpdateUniforms(elapsed, b.pointer)
		})
		switch {
		case err == nil:
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			skipped++
		default:
			failed++
			b.opts.Exporter.LayerError(l.Name())
			b.logger.Error("layer update failed", "layer", l.Name(), "error", err)
		}
	}
	return failed, skipped
}
