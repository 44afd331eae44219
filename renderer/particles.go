// Package renderer draws the backdrop with raylib. It implements the host
// resources the layer engine asks for: geometries keep a CPU copy of the
// particle buffer and materials wrap a tinting fragment shader.
package renderer

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/starfield/camera"
	"github.com/pthm-cable/starfield/layer"
	"github.com/pthm-cable/starfield/particles"
)

//go:embed shaders/particle.fs
var particleFS string

// ErrShader is returned when the particle shader fails to compile or link.
var ErrShader = errors.New("renderer: particle shader unavailable")

// Geometry is a layer's particle data as the renderer reads it.
type Geometry struct {
	kind    layer.Kind
	buf     particles.Buffer
	visible bool
}

// Upload copies b so later resamples of the layer buffer are only seen after
// the next Upload.
func (g *Geometry) Upload(b *particles.Buffer) error {
	if b == nil {
		return errors.New("renderer: nil buffer")
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("renderer: %s geometry: %w", g.kind, err)
	}
	g.buf.Positions = append(g.buf.Positions[:0], b.Positions...)
	g.buf.Colors = append(g.buf.Colors[:0], b.Colors...)
	g.buf.Sizes = append(g.buf.Sizes[:0], b.Sizes...)
	g.buf.Phases = append(g.buf.Phases[:0], b.Phases...)
	g.buf.Depths = append(g.buf.Depths[:0], b.Depths...)
	g.buf.OrbitalSpeeds = append(g.buf.OrbitalSpeeds[:0], b.OrbitalSpeeds...)
	return nil
}

// SetVisible implements layer.Geometry.
func (g *Geometry) SetVisible(v bool) { g.visible = v }

// Len returns the uploaded particle count.
func (g *Geometry) Len() int { return len(g.buf.Sizes) }

// Dispose drops the CPU copy.
func (g *Geometry) Dispose() {
	g.buf = particles.Buffer{}
	g.visible = false
}

// Material holds a layer's uniforms and, outside headless mode, its shader.
type Material struct {
	kind     layer.Kind
	uniforms layer.Uniforms
	loaded   bool
	shader   rl.Shader

	timeLoc            int32
	pointerLoc         int32
	intensityLoc       int32
	effectIntensityLoc int32
	tintLoc            int32
	lodQualityLoc      int32
	energyLoc          int32
}

// SetUniforms records u and pushes it to the shader.
func (m *Material) SetUniforms(u layer.Uniforms) error {
	m.uniforms = u
	if !m.loaded {
		return nil
	}
	rl.SetShaderValue(m.shader, m.timeLoc, []float32{u.Time}, rl.ShaderUniformFloat)
	rl.SetShaderValue(m.shader, m.pointerLoc, u.Pointer[:], rl.ShaderUniformVec2)
	rl.SetShaderValue(m.shader, m.intensityLoc, []float32{u.Intensity}, rl.ShaderUniformFloat)
	rl.SetShaderValue(m.shader, m.effectIntensityLoc, []float32{u.EffectIntensity}, rl.ShaderUniformFloat)
	rl.SetShaderValue(m.shader, m.tintLoc, u.Tint[:], rl.ShaderUniformVec3)
	rl.SetShaderValue(m.shader, m.lodQualityLoc, []float32{u.LODQuality}, rl.ShaderUniformFloat)
	energy := float32(0)
	if u.EnergyEffects {
		energy = 1
	}
	rl.SetShaderValue(m.shader, m.energyLoc, []float32{energy}, rl.ShaderUniformFloat)
	return nil
}

// Uniforms returns the last uniforms set.
func (m *Material) Uniforms() layer.Uniforms { return m.uniforms }

// Dispose unloads the shader.
func (m *Material) Dispose() {
	if m.loaded {
		rl.UnloadShader(m.shader)
		m.loaded = false
	}
}

// Allocator creates geometries and materials. A headless allocator never
// touches the GPU, for runs without a window.
type Allocator struct {
	headless bool
	logger   *slog.Logger
}

// NewAllocator creates an allocator. The window must exist unless headless.
func NewAllocator(headless bool, logger *slog.Logger) *Allocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{headless: headless, logger: logger.With("component", "renderer")}
}

// NewGeometry implements renderopt.Allocator.
func (a *Allocator) NewGeometry(kind layer.Kind) (layer.Geometry, error) {
	return &Geometry{kind: kind}, nil
}

// NewMaterial implements renderopt.Allocator.
func (a *Allocator) NewMaterial(kind layer.Kind) (layer.Material, error) {
	m := &Material{kind: kind}
	if a.headless {
		return m, nil
	}
	m.shader = rl.LoadShaderFromMemory("", particleFS)
	m.tintLoc = rl.GetShaderLocation(m.shader, "tint")
	if m.tintLoc < 0 {
		// raylib substitutes its default shader on failure
		rl.UnloadShader(m.shader)
		return nil, fmt.Errorf("%w: %s", ErrShader, kind)
	}
	m.timeLoc = rl.GetShaderLocation(m.shader, "time")
	m.pointerLoc = rl.GetShaderLocation(m.shader, "pointer")
	m.intensityLoc = rl.GetShaderLocation(m.shader, "intensity")
	m.effectIntensityLoc = rl.GetShaderLocation(m.shader, "effectIntensity")
	m.lodQualityLoc = rl.GetShaderLocation(m.shader, "lodQuality")
	m.energyLoc = rl.GetShaderLocation(m.shader, "energyEffects")
	m.loaded = true
	a.logger.Debug("material loaded", "kind", kind.String())
	return m, nil
}

// ParticleRenderer draws every visible layer as projected point sprites.
type ParticleRenderer struct {
	referenceDistance float32 // Camera distance at which sprites have their base size
}

// NewParticleRenderer creates a renderer sized for a camera at referenceDistance.
func NewParticleRenderer(referenceDistance float32) *ParticleRenderer {
	if referenceDistance <= 0 {
		referenceDistance = 150
	}
	return &ParticleRenderer{referenceDistance: referenceDistance}
}

// Draw renders the layers back to front in their slice order.
func (r *ParticleRenderer) Draw(cam *camera.Camera, layers []*layer.Layer) {
	eye := cam.Position()
	for _, l := range layers {
		if l.Disposed() || !l.Visible() {
			continue
		}
		g, ok := l.Geometry().(*Geometry)
		if !ok || !g.visible {
			continue
		}
		m, ok := l.Material().(*Material)
		if !ok {
			continue
		}
		if m.loaded {
			rl.BeginShaderMode(m.shader)
		}
		r.drawGeometry(cam, eye, g, m.uniforms)
		if m.loaded {
			rl.EndShaderMode()
		}
	}
}

func (r *ParticleRenderer) drawGeometry(cam *camera.Camera, eye mgl32.Vec3, g *Geometry, u layer.Uniforms) {
	b := &g.buf
	t := float64(u.Time * u.AnimationSpeed)
	parallax := mgl32.Vec3{u.Pointer[0], u.Pointer[1], 0}.Mul(10)

	for i := 0; i < len(b.Sizes); i++ {
		p := orbit(b.Position(i), float64(b.OrbitalSpeeds[i])*t)
		p = p.Add(parallax.Mul(b.Depths[i]))
		sx, sy, visible := cam.WorldToScreen(p)
		if !visible {
			continue
		}
		dist := eye.Sub(p).Len()
		if dist < 1 {
			dist = 1
		}

		twinkle := float32(1 + 0.3*math.Sin(t*2+float64(b.Phases[i])))
		radius := b.Sizes[i] * u.SizeMultiplier * twinkle * r.referenceDistance / dist
		if radius < 0.5 {
			radius = 0.5
		}
		alpha := float32(1)
		if u.Fog {
			alpha = clamp01(1.5 - dist/(2*r.referenceDistance))
		}
		c := b.Color(i)
		col := rl.Color{R: channel(c[0]), G: channel(c[1]), B: channel(c[2]), A: channel(alpha)}

		if u.ComplexShading {
			halo := col
			halo.A = channel(alpha * 0.15 * u.EffectIntensity)
			rl.DrawCircleV(rl.Vector2{X: sx, Y: sy}, radius*2.5, halo)
		}
		rl.DrawCircleV(rl.Vector2{X: sx, Y: sy}, radius, col)
	}
}

// orbit rotates p about the Y axis.
func orbit(p mgl32.Vec3, angle float64) mgl32.Vec3 {
	if angle == 0 {
		return p
	}
	s, c := math.Sincos(angle)
	return mgl32.Vec3{
		p[0]*float32(c) + p[2]*float32(s),
		p[1],
		-p[0]*float32(s) + p[2]*float32(c),
	}
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func channel(x float32) uint8 {
	return uint8(clamp01(x) * 255)
}
