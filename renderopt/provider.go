package renderopt

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pthm-cable/starfield/layer"
)

// Allocator creates new host resources when the pools are empty.
type Allocator interface {
	NewGeometry(kind layer.Kind) (layer.Geometry, error)
	NewMaterial(kind layer.Kind) (layer.Material, error)
}

// Provider implements layer.ResourceProvider over geometry and material pools.
// Every live resource carries a UUID for diagnostics.
type Provider struct {
	alloc     Allocator
	geometry  *Pool[layer.Geometry]
	materials *Pool[layer.Material]
	ids       map[any]uuid.UUID
	logger    *slog.Logger
}

// NewProvider creates a provider whose pools hold at most maxPoolSize items per kind.
func NewProvider(alloc Allocator, maxPoolSize int, observer PoolObserver, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		alloc:     alloc,
		geometry:  NewPool[layer.Geometry](maxPoolSize, observer),
		materials: NewPool[layer.Material](maxPoolSize, observer),
		ids:       make(map[any]uuid.UUID),
		logger:    logger.With("component", "pool"),
	}
}

func geometryTag(k layer.Kind) string { return "geometry/" + k.String() }
func materialTag(k layer.Kind) string { return "material/" + k.String() }

// AcquireGeometry implements layer.ResourceProvider.
func (p *Provider) AcquireGeometry(kind layer.Kind) (layer.Geometry, error) {
	if g, ok := p.geometry.Get(geometryTag(kind)); ok {
		p.logger.Debug("geometry reused", "kind", kind.String(), "id", p.ids[g])
		return g, nil
	}
	g, err := p.alloc.NewGeometry(kind)
	if err != nil {
		return nil, fmt.Errorf("allocating %s geometry: %w", kind, err)
	}
	p.track(g, "geometry", kind)
	return g, nil
}

// AcquireMaterial implements layer.ResourceProvider.
func (p *Provider) AcquireMaterial(kind layer.Kind) (layer.Material, error) {
	if m, ok := p.materials.Get(materialTag(kind)); ok {
		p.logger.Debug("material reused", "kind", kind.String(), "id", p.ids[m])
		return m, nil
	}
	m, err := p.alloc.NewMaterial(kind)
	if err != nil {
		return nil, fmt.Errorf("allocating %s material: %w", kind, err)
	}
	p.track(m, "material", kind)
	return m, nil
}

// ReleaseGeometry implements layer.ResourceProvider.
func (p *Provider) ReleaseGeometry(kind layer.Kind, g layer.Geometry) {
	if g == nil {
		return
	}
	g.SetVisible(false)
	if !p.geometry.Put(geometryTag(kind), g) {
		p.untrack(g, "geometry")
	}
}

// ReleaseMaterial implements layer.ResourceProvider.
func (p *Provider) ReleaseMaterial(kind layer.Kind, m layer.Material) {
	if m == nil {
		return
	}
	if !p.materials.Put(materialTag(kind), m) {
		p.untrack(m, "material")
	}
}

func (p *Provider) track(r any, what string, kind layer.Kind) {
	id := uuid.New()
	p.ids[r] = id
	p.logger.Debug("resource allocated", "type", what, "kind", kind.String(), "id", id)
}

func (p *Provider) untrack(r any, what string) {
	p.logger.Debug("resource disposed", "type", what, "id", p.ids[r])
	delete(p.ids, r)
}

// ResourceID returns the diagnostic ID of a live resource.
func (p *Provider) ResourceID(r any) (uuid.UUID, bool) {
	id, ok := p.ids[r]
	return id, ok
}

// Live returns the number of tracked resources, pooled or in use.
func (p *Provider) Live() int { return len(p.ids) }

// GeometryStats returns the geometry pool counters for kind.
func (p *Provider) GeometryStats(kind layer.Kind) PoolStats {
	return p.geometry.Stats(geometryTag(kind))
}

// MaterialStats returns the material pool counters for kind.
func (p *Provider) MaterialStats(kind layer.Kind) PoolStats {
	return p.materials.Stats(materialTag(kind))
}

// Close disposes every pooled resource.
func (p *Provider) Close() {
	p.geometry.Clear()
	p.materials.Clear()
	clear(p.ids)
}
