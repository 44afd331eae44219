// Package layer implements the data-driven particle layer: one generic engine
// parameterised by a Preset instead of one type per named layer.
//
// A Layer owns its particle buffer and one geometry/material pair obtained from
// a ResourceProvider. The buffer is generated once in New; afterwards it is only
// resampled by level-of-detail passes. Per-frame work touches uniforms only.
package layer

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/pthm-cable/starfield/particles"
)

// ErrDisposed is returned by operations on a disposed layer.
var ErrDisposed = errors.New("layer: disposed")

// Uniforms is the closed set of shader parameters a layer material accepts.
type Uniforms struct {
	Time            float32
	Pointer         [2]float32 // Normalised to [-1, 1]
	Intensity       float32
	SizeMultiplier  float32
	AnimationSpeed  float32
	EffectIntensity float32
	ComplexShading  bool
	Fog             bool
	EnergyEffects   bool
	Tint            [3]float32
	LODQuality      float32
}

// Geometry is a host-side vertex resource holding a particle buffer.
type Geometry interface {
	// Upload replaces the vertex data with the buffer's current contents.
	Upload(b *particles.Buffer) error
	// SetVisible toggles whether the host draws this geometry.
	SetVisible(visible bool)
	Dispose()
}

// Material is a host-side shader program plus its uniform state.
type Material interface {
	SetUniforms(u Uniforms) error
	Dispose()
}

// ResourceProvider hands out and takes back renderable resources.
type ResourceProvider interface {
	AcquireGeometry(kind Kind) (Geometry, error)
	AcquireMaterial(kind Kind) (Material, error)
	ReleaseGeometry(kind Kind, g Geometry)
	ReleaseMaterial(kind Kind, m Material)
}

// Settings is the quality-dependent part of a layer's state.
type Settings struct {
	ParticleCount   int // Global target; the layer takes its Share of it
	ComplexShading  bool
	Fog             bool
	EnergyEffects   bool
	SizeMultiplier  float64
	AnimationSpeed  float64
	EffectIntensity float64
}

// Layer is one depth band of particles.
type Layer struct {
	preset   Preset
	buffer   *particles.Buffer
	geometry Geometry
	material Material
	provider ResourceProvider
	logger   *slog.Logger

	baseCount int
	uniforms  Uniforms
	visible   bool
	disposed  bool
}

// New generates the layer's buffer and acquires its resources.
// count is the layer's own particle count, already scaled by Share and device budget.
func New(p Preset, count int, provider ResourceProvider, rng *rand.Rand, logger *slog.Logger) (*Layer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if count < 1 {
		count = 1
	}

	buf, err := particles.Generate(p.Recipe, count, rng)
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", p.Name, err)
	}

	geom, err := provider.AcquireGeometry(p.Kind)
	if err != nil {
		return nil, fmt.Errorf("layer %s: acquiring geometry: %w", p.Name, err)
	}
	mat, err := provider.AcquireMaterial(p.Kind)
	if err != nil {
		provider.ReleaseGeometry(p.Kind, geom)
		return nil, fmt.Errorf("layer %s: acquiring material: %w", p.Name, err)
	}
	if err := geom.Upload(buf); err != nil {
		provider.ReleaseGeometry(p.Kind, geom)
		provider.ReleaseMaterial(p.Kind, mat)
		return nil, fmt.Errorf("layer %s: uploading geometry: %w", p.Name, err)
	}

	l := &Layer{
		preset:    p,
		buffer:    buf,
		geometry:  geom,
		material:  mat,
		provider:  provider,
		logger:    logger.With("layer", p.Name),
		baseCount: count,
		visible:   true,
		uniforms: Uniforms{
			Intensity:       float32(p.Recipe.Config.Intensity),
			SizeMultiplier:  1,
			AnimationSpeed:  1,
			EffectIntensity: 1,
			Tint:            [3]float32{1, 1, 1},
			LODQuality:      1,
		},
	}
	geom.SetVisible(true)
	l.logger.Debug("layer created", "particles", count, "distribution", p.Recipe.Distribution.String())
	return l, nil
}

// Name returns the layer name.
func (l *Layer) Name() string { return l.preset.Name }

// Preset returns the preset the layer was built from.
func (l *Layer) Preset() Preset { return l.preset }

// Buffer exposes the particle buffer for LOD and culling passes.
func (l *Layer) Buffer() *particles.Buffer { return l.buffer }

// BaseCount is the particle count before LOD scaling.
func (l *Layer) BaseCount() int { return l.baseCount }

// Count is the current logical particle count.
func (l *Layer) Count() int { return l.buffer.Len() }

// Geometry returns the layer's geometry, or nil once disposed.
func (l *Layer) Geometry() Geometry { return l.geometry }

// Material returns the layer's material, or nil once disposed.
func (l *Layer) Material() Material { return l.material }

// Uniforms returns the last uniform state pushed to the material.
func (l *Layer) Uniforms() Uniforms { return l.uniforms }

// Visible reports the culling state.
func (l *Layer) Visible() bool { return l.visible }

// Disposed reports whether Dispose has run.
func (l *Layer) Disposed() bool { return l.disposed }

// UpdateUniforms pushes the elapsed time and pointer to the material.
// The particle buffer is not touched.
func (l *Layer) UpdateUniforms(time float64, pointer [2]float32) error {
	if l.disposed {
		return ErrDisposed
	}
	l.uniforms.Time = float32(time)
	l.uniforms.Pointer = pointer
	return l.material.SetUniforms(l.uniforms)
}

// ApplyQuality sets the quality-driven multipliers and the new base count.
// The count takes effect on the next Resample.
func (l *Layer) ApplyQuality(s Settings, deviceScale func(int) int) {
	if l.disposed {
		return
	}
	l.uniforms.ComplexShading = s.ComplexShading
	l.uniforms.Fog = s.Fog
	l.uniforms.EnergyEffects = s.EnergyEffects
	l.uniforms.SizeMultiplier = float32(s.SizeMultiplier)
	l.uniforms.AnimationSpeed = float32(s.AnimationSpeed)
	l.uniforms.EffectIntensity = float32(s.EffectIntensity)

	count := int(float64(s.ParticleCount) * l.preset.Share)
	if deviceScale != nil {
		count = deviceScale(count)
	}
	if count < 1 {
		count = 1
	}
	l.baseCount = count
}

// SetLODQuality records the active LOD tier's quality multiplier.
func (l *Layer) SetLODQuality(q float64) {
	l.uniforms.LODQuality = float32(q)
}

// Recolor sets the tint uniform. The buffer's baked colours stay as generated.
func (l *Layer) Recolor(tint [3]float32) {
	l.uniforms.Tint = tint
}

// SetVisible toggles whole-layer visibility.
func (l *Layer) SetVisible(v bool) {
	if l.disposed || l.visible == v {
		return
	}
	l.visible = v
	l.geometry.SetVisible(v)
}

// Resample changes the logical count in place and re-uploads the geometry.
func (l *Layer) Resample(target int) error {
	if l.disposed {
		return ErrDisposed
	}
	if target < 1 {
		target = 1
	}
	if target == l.buffer.Len() {
		return nil
	}
	if err := l.buffer.Resample(target); err != nil {
		return fmt.Errorf("layer %s: %w", l.preset.Name, err)
	}
	if err := l.geometry.Upload(l.buffer); err != nil {
		return fmt.Errorf("layer %s: uploading geometry: %w", l.preset.Name, err)
	}
	return nil
}

// Dispose returns the geometry and material to the provider. Safe to call repeatedly.
func (l *Layer) Dispose() {
	if l.disposed {
		return
	}
	l.disposed = true
	l.provider.ReleaseGeometry(l.preset.Kind, l.geometry)
	l.provider.ReleaseMaterial(l.preset.Kind, l.material)
	l.geometry = nil
	l.material = nil
	l.buffer = nil
	l.logger.Debug("layer disposed")
}
