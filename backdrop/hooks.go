package backdrop

import (
	"github.com/pthm-cable/starfield/device"
	"github.com/pthm-cable/starfield/quality"
	"github.com/pthm-cable/starfield/telemetry"
	"github.com/pthm-cable/starfield/theme"
	"github.com/pthm-cable/starfield/ux"
)

// onQualityChange pushes a new level's config into every layer. Counts take
// effect on the next LOD pass.
func (b *Backdrop) onQualityChange(d quality.Decision) {
	b.applyQuality(d.Config)
	b.monitor.SetQualityLevel(d.To.String())
	b.opts.Exporter.QualityTransition(d.From.String(), d.To.String())
	b.opts.Exporter.SetQuality(d.To.String(), quality.Names())
}

func (b *Backdrop) applyQuality(qc quality.Config) {
	settings := b.layerSettings(qc)
	scale := b.deviceScale(qc)
	for _, l := range b.layers {
		l.ApplyQuality(settings, scale)
	}
}

// onDeviceChange rescales the layers for the new device budget.
func (b *Backdrop) onDeviceChange(ch device.Change) {
	b.camera.Resize(float32(ch.Viewport.Width), float32(ch.Viewport.Height))
	b.render.Resize()
	if b.mode != ModeGPU {
		return
	}
	qc, err := b.optimizer.Config()
	if err != nil {
		b.logger.Error("quality lookup after device change", "error", err)
		return
	}
	b.applyQuality(qc)
	b.logger.Info("layers rescaled for device", "device", ch.To.String(), "multiplier", ch.Config.ParticleMultiplier)
}

// onThemeProgress recolours layers by their theme role, or the fallback palette.
func (b *Backdrop) onThemeProgress(_ float64, c theme.Colors) {
	for _, l := range b.layers {
		l.Recolor(theme.Tint(c.Role(l.Preset().ThemeRole)))
	}
	if b.emulator != nil {
		b.emulator.SetColors(c.Palette())
	}
}

func (b *Backdrop) onPerfWarning(m telemetry.Metrics) {
	b.warnings++
	b.logger.Debug("performance warning", "metrics", m)
}

// onPreferences updates the optimizer cap. A motion-reduction change also
// re-applies the current config, since it caps animation speed.
func (b *Backdrop) onPreferences(p ux.Preferences) {
	b.optimizer.SetPreferences(p)
	if b.mode != ModeGPU {
		return
	}
	qc, err := b.optimizer.Config()
	if err != nil {
		b.logger.Error("quality lookup after preference change", "error", err)
		return
	}
	b.applyQuality(qc)
}

// Warnings returns how many frames breached a monitor threshold.
func (b *Backdrop) Warnings() int { return b.warnings }
