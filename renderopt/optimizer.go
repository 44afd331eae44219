package renderopt

import (
	"log/slog"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/starfield/config"
	"github.com/pthm-cable/starfield/layer"
)

// Viewer supplies the camera state for one frame.
type Viewer interface {
	Position() mgl32.Vec3
	ViewProjection() mgl32.Mat4
}

// ResampleObserver receives LOD resample timings.
type ResampleObserver interface {
	LODResample(layer string, d time.Duration)
}

// Options configures the render optimizer.
type Options struct {
	Tiers          []Tier
	Quantum        float64
	CullingEnabled bool
	CullMargin     float32
}

// OptionsFromConfig converts the config section.
func OptionsFromConfig(c config.RenderConfig) Options {
	return Options{
		Tiers:          TiersFromConfig(c.LODTiers),
		Quantum:        c.LODQuantum,
		CullingEnabled: c.CullingEnabled,
		CullMargin:     float32(c.CullMargin),
	}
}

// FrameStats summarises one Update.
type FrameStats struct {
	Visible   int
	Culled    int
	Resampled int
	Particles int // Particles in visible layers
}

type cachedBounds struct {
	count  int
	sphere Sphere
}

// Optimizer applies LOD and culling to every layer once per frame.
type Optimizer struct {
	opts     Options
	lod      *LOD
	bounds   map[string]cachedBounds
	observer ResampleObserver
	logger   *slog.Logger
	now      func() time.Time
}

// NewOptimizer creates a render optimizer. A nil observer is allowed.
func NewOptimizer(opts Options, observer ResampleObserver, logger *slog.Logger) *Optimizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Optimizer{
		opts:     opts,
		lod:      NewLOD(opts.Tiers, opts.Quantum),
		bounds:   make(map[string]cachedBounds),
		observer: observer,
		logger:   logger.With("component", "renderopt"),
		now:      time.Now,
	}
}

// LOD exposes the tier selector.
func (o *Optimizer) LOD() *LOD { return o.lod }

// SetCulling toggles frustum culling. Disabling it shows every layer on the next Update.
func (o *Optimizer) SetCulling(enabled bool) { o.opts.CullingEnabled = enabled }

// Culling reports whether frustum culling is enabled.
func (o *Optimizer) Culling() bool { return o.opts.CullingEnabled }

// Resize invalidates the LOD cache since the optical framing changed.
func (o *Optimizer) Resize() {
	o.lod.Invalidate()
}

// Bounds returns the layer's bounding sphere, recomputing it when the layer's
// particle count changed since it was cached.
func (o *Optimizer) Bounds(l *layer.Layer) Sphere {
	count := l.Count()
	if b, ok := o.bounds[l.Name()]; ok && b.count == count {
		return b.sphere
	}
	s := BoundingSphere(l.Buffer().Positions)
	o.bounds[l.Name()] = cachedBounds{count: count, sphere: s}
	return s
}

// ApplyLOD resamples l toward its tier target for a camera at distance from
// the layer origin. Repeating it at the same distance changes nothing.
func (o *Optimizer) ApplyLOD(l *layer.Layer, distance float64) (resampled bool, err error) {
	_, tier := o.lod.Select(l.Name(), distance)
	l.SetLODQuality(tier.Quality)

	target := tier.Target(l.BaseCount())
	if target == l.Count() {
		return false, nil
	}
	start := o.now()
	if err := l.Resample(target); err != nil {
		return false, err
	}
	elapsed := o.now().Sub(start)
	if o.observer != nil {
		o.observer.LODResample(l.Name(), elapsed)
	}
	o.logger.Debug("layer resampled", "layer", l.Name(), "particles", target, "distance", distance, "took", elapsed)
	return true, nil
}

// Cull sets l's visibility from its expanded bounding sphere.
func (o *Optimizer) Cull(l *layer.Layer, f Frustum) bool {
	visible := true
	if o.opts.CullingEnabled {
		s := o.Bounds(l)
		s.Radius += o.opts.CullMargin
		visible = f.IntersectsSphere(s)
	}
	l.SetVisible(visible)
	return visible
}

// Update runs LOD then culling for every live layer. Layers sit at the world
// origin, so the LOD distance is the camera's distance from it. A failed
// resample is logged and leaves that layer at its previous count.
func (o *Optimizer) Update(v Viewer, layers []*layer.Layer) FrameStats {
	var st FrameStats
	f := FrustumFromMatrix(v.ViewProjection())
	distance := float64(v.Position().Len())

	for _, l := range layers {
		if l.Disposed() {
			continue
		}
		resampled, err := o.ApplyLOD(l, distance)
		if err != nil {
			o.logger.Error("lod resample failed", "layer", l.Name(), "error", err)
		}
		if resampled {
			st.Resampled++
		}
		if o.Cull(l, f) {
			st.Visible++
			st.Particles += l.Count()
		} else {
			st.Culled++
		}
	}
	return st
}

// Forget drops cached state for a layer that was disposed or rebuilt.
func (o *Optimizer) Forget(name string) {
	delete(o.bounds, name)
}
