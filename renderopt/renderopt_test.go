package renderopt

import (
	"math/rand"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/starfield/config"
	"github.com/pthm-cable/starfield/layer"
	"github.com/pthm-cable/starfield/particles"
)

type fakeGeometry struct {
	count    int
	visible  bool
	disposed int
}

func (g *fakeGeometry) Upload(b *particles.Buffer) error {
	g.count = b.Len()
	return nil
}
func (g *fakeGeometry) SetVisible(v bool) { g.visible = v }
func (g *fakeGeometry) Dispose()          { g.disposed++ }

type fakeMaterial struct{ disposed int }

func (m *fakeMaterial) SetUniforms(layer.Uniforms) error { return nil }
func (m *fakeMaterial) Dispose()                         { m.disposed++ }

type fakeAllocator struct {
	geometries int
	materials  int
}

func (a *fakeAllocator) NewGeometry(layer.Kind) (layer.Geometry, error) {
	a.geometries++
	return &fakeGeometry{}, nil
}

func (a *fakeAllocator) NewMaterial(layer.Kind) (layer.Material, error) {
	a.materials++
	return &fakeMaterial{}, nil
}

type countingObserver struct {
	hits, misses, disposed, resamples int
}

func (c *countingObserver) PoolHit(string)                    { c.hits++ }
func (c *countingObserver) PoolMiss(string)                   { c.misses++ }
func (c *countingObserver) PoolDisposed(string)               { c.disposed++ }
func (c *countingObserver) LODResample(string, time.Duration) { c.resamples++ }

type fixedViewer struct {
	eye, target mgl32.Vec3
}

func (v fixedViewer) Position() mgl32.Vec3 { return v.eye }

func (v fixedViewer) ViewProjection() mgl32.Mat4 {
	proj := mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 2000)
	view := mgl32.LookAtV(v.eye, v.target, mgl32.Vec3{0, 1, 0})
	return proj.Mul4(view)
}

func defaultOptions() Options {
	return OptionsFromConfig(config.Default().Render)
}

func newLayer(t *testing.T, p layer.Preset, count int) *layer.Layer {
	t.Helper()
	provider := NewProvider(&fakeAllocator{}, 8, nil, nil)
	l, err := layer.New(p, count, provider, rand.New(rand.NewSource(1)), nil)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestLODSelect(t *testing.T) {
	lod := NewLOD(TiersFromConfig(config.Default().Render.LODTiers), 10)
	tests := []struct {
		distance float64
		want     int
	}{
		{0, 0},
		{30, 0},
		{45, 0},
		{75, 1},
		{95, 1},
		{150, 2},
		{399, 3},
		{5000, 3},
	}
	for _, tc := range tests {
		got, _ := lod.Select("background", tc.distance)
		if got != tc.want {
			t.Errorf("Select(%v) = tier %d, want %d", tc.distance, got, tc.want)
		}
	}
	if lod.CacheLen() != len(tests) {
		t.Errorf("CacheLen = %d, want %d", lod.CacheLen(), len(tests))
	}
	lod.Invalidate()
	if lod.CacheLen() != 0 {
		t.Error("Invalidate left cached entries")
	}
}

func TestLODSelectIgnoresVisitOrder(t *testing.T) {
	tiers := TiersFromConfig(config.Default().Render.LODTiers)
	orders := [][]float64{
		{50, 58, 59.9},
		{58, 50, 59.9},
		{59.9, 58, 50},
	}
	var want []int
	for i, order := range orders {
		lod := NewLOD(tiers, 10)
		got := make(map[float64]int)
		for _, d := range order {
			got[d], _ = lod.Select("background", d)
		}
		row := []int{got[50], got[58], got[59.9]}
		if row[0] != row[1] || row[1] != row[2] {
			t.Errorf("order %v: one bucket gave tiers %v", order, row)
		}
		if i == 0 {
			want = row
			continue
		}
		for j := range row {
			if row[j] != want[j] {
				t.Errorf("order %v: tiers %v, want %v", order, row, want)
				break
			}
		}
	}
	if want[0] != 1 {
		t.Errorf("bucket [50,60) = tier %d, want 1", want[0])
	}
}

func TestTierTarget(t *testing.T) {
	if got := (Tier{ParticleFraction: 0.75}).Target(1001); got != 750 {
		t.Errorf("Target = %d, want 750", got)
	}
	if got := (Tier{ParticleFraction: 0.1}).Target(3); got != 1 {
		t.Errorf("Target = %d, want the minimum of 1", got)
	}
}

func TestApplyLODIdempotent(t *testing.T) {
	obs := &countingObserver{}
	o := NewOptimizer(defaultOptions(), obs, nil)
	l := newLayer(t, layer.BackgroundPreset(), 1000)

	resampled, err := o.ApplyLOD(l, 150)
	if err != nil || !resampled {
		t.Fatalf("first ApplyLOD = %v, %v", resampled, err)
	}
	if l.Count() != 500 {
		t.Fatalf("Count = %d, want 500", l.Count())
	}
	if l.Uniforms().LODQuality != 0.65 {
		t.Errorf("LODQuality = %v, want 0.65", l.Uniforms().LODQuality)
	}

	resampled, err = o.ApplyLOD(l, 150)
	if err != nil || resampled || l.Count() != 500 {
		t.Errorf("second ApplyLOD resampled=%v count=%d err=%v", resampled, l.Count(), err)
	}
	if obs.resamples != 1 {
		t.Errorf("observer saw %d resamples, want 1", obs.resamples)
	}
}

func TestApplyLODGrowthPreservesEntries(t *testing.T) {
	o := NewOptimizer(defaultOptions(), nil, nil)
	l := newLayer(t, layer.MidgroundPreset(), 1000)

	if _, err := o.ApplyLOD(l, 1000); err != nil {
		t.Fatal(err)
	}
	if l.Count() != 250 {
		t.Fatalf("Count = %d, want 250", l.Count())
	}
	before := l.Buffer().Clone()

	if _, err := o.ApplyLOD(l, 10); err != nil {
		t.Fatal(err)
	}
	after := l.Buffer()
	if after.Len() != 1000 {
		t.Fatalf("Count = %d, want 1000", after.Len())
	}
	for i := 0; i < after.Len(); i++ {
		src := i % 250
		if after.Position(i) != before.Position(src) || after.Sizes[i] != before.Sizes[src] || after.Types[i] != before.Types[src] {
			t.Fatalf("particle %d does not match source %d", i, src)
		}
	}
}

func TestCulling(t *testing.T) {
	p := layer.ForegroundPreset()
	p.Recipe.DepthRange = particles.Range{Min: 1, Max: 2}

	tests := []struct {
		name    string
		viewer  fixedViewer
		culling bool
		want    bool
	}{
		{"looking at layer", fixedViewer{eye: mgl32.Vec3{0, 0, 150}}, true, true},
		{"looking away", fixedViewer{eye: mgl32.Vec3{0, 0, 150}, target: mgl32.Vec3{0, 0, 1000}}, true, false},
		{"off to the side", fixedViewer{eye: mgl32.Vec3{0, 0, 150}, target: mgl32.Vec3{1000, 0, 150}}, true, false},
		{"culling disabled", fixedViewer{eye: mgl32.Vec3{0, 0, 150}, target: mgl32.Vec3{0, 0, 1000}}, false, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := defaultOptions()
			opts.CullingEnabled = tc.culling
			o := NewOptimizer(opts, nil, nil)
			l := newLayer(t, p, 200)

			st := o.Update(tc.viewer, []*layer.Layer{l})
			if l.Visible() != tc.want {
				t.Errorf("Visible = %v, want %v", l.Visible(), tc.want)
			}
			if got := l.Geometry().(*fakeGeometry).visible; got != tc.want {
				t.Errorf("geometry visible = %v, want %v", got, tc.want)
			}
			if tc.want && st.Visible != 1 || !tc.want && st.Culled != 1 {
				t.Errorf("stats = %+v", st)
			}
		})
	}
}

func TestFrustumSpheres(t *testing.T) {
	f := FrustumFromMatrix(fixedViewer{eye: mgl32.Vec3{0, 0, 150}}.ViewProjection())

	inside := Sphere{Center: mgl32.Vec3{}, Radius: 10}
	if !f.IntersectsSphere(inside) || !f.ContainsSphere(inside) {
		t.Error("sphere in front of the camera should be inside")
	}
	behind := Sphere{Center: mgl32.Vec3{0, 0, 400}, Radius: 10}
	if f.IntersectsSphere(behind) {
		t.Error("sphere behind the camera should be outside")
	}
	straddling := Sphere{Center: mgl32.Vec3{0, 0, 150}, Radius: 20}
	if !f.IntersectsSphere(straddling) || f.ContainsSphere(straddling) {
		t.Error("sphere around the camera should intersect but not be contained")
	}
}

func TestBoundsCacheFollowsCount(t *testing.T) {
	o := NewOptimizer(defaultOptions(), nil, nil)
	l := newLayer(t, layer.BackgroundPreset(), 400)

	s1 := o.Bounds(l)
	if s1.Radius < 120 || s1.Radius > 600 {
		t.Errorf("radius = %v, want within the layer's extent", s1.Radius)
	}
	if err := l.Resample(10); err != nil {
		t.Fatal(err)
	}
	s2 := o.Bounds(l)
	if s2 == s1 {
		t.Error("bounds not recomputed after the count changed")
	}
}

func TestBoundingSphere(t *testing.T) {
	s := BoundingSphere([]float32{-1, 0, 0, 1, 0, 0, 0, 3, 0})
	if s.Center != (mgl32.Vec3{0, 1, 0}) || s.Radius != 2 {
		t.Errorf("sphere = %+v, want centre (0,1,0) radius 2", s)
	}
	if BoundingSphere(nil) != (Sphere{}) {
		t.Error("empty input should give the zero sphere")
	}
}

type fakeResource struct{ disposed bool }

func (r *fakeResource) Dispose() { r.disposed = true }

func TestPoolCapacity(t *testing.T) {
	obs := &countingObserver{}
	p := NewPool[*fakeResource](2, obs)

	var items []*fakeResource
	for i := 0; i < 5; i++ {
		r := &fakeResource{}
		items = append(items, r)
		p.Put("geometry", r)
	}
	if p.Len("geometry") != 2 {
		t.Fatalf("Len = %d, want 2", p.Len("geometry"))
	}
	for i, r := range items {
		if want := i >= 2; r.disposed != want {
			t.Errorf("item %d disposed = %v, want %v", i, r.disposed, want)
		}
	}

	if r, ok := p.Get("geometry"); !ok || r != items[1] {
		t.Errorf("Get = %v, %v; want the last retained item", r, ok)
	}
	p.Get("geometry")
	if _, ok := p.Get("geometry"); ok {
		t.Error("Get on an empty list should miss")
	}
	if _, ok := p.Get("material"); ok {
		t.Error("tags must not share lists")
	}

	st := p.Stats("geometry")
	if st.Hits != 2 || st.Misses != 1 || st.Disposed != 3 {
		t.Errorf("stats = %+v", st)
	}
	if obs.hits != 2 || obs.misses != 2 || obs.disposed != 3 {
		t.Errorf("observer = %+v", obs)
	}

	p.Put("geometry", items[0])
	p.Clear()
	if p.Len("geometry") != 0 {
		t.Error("Clear left items pooled")
	}
}

func TestProviderReusesResources(t *testing.T) {
	alloc := &fakeAllocator{}
	p := NewProvider(alloc, 1, nil, nil)

	g1, err := p.AcquireGeometry(layer.Background)
	if err != nil {
		t.Fatal(err)
	}
	id1, ok := p.ResourceID(g1)
	if !ok {
		t.Fatal("allocated geometry has no id")
	}
	p.ReleaseGeometry(layer.Background, g1)

	g2, _ := p.AcquireGeometry(layer.Background)
	if g2 != g1 || alloc.geometries != 1 {
		t.Errorf("expected pooled geometry to be reused, allocations = %d", alloc.geometries)
	}
	if id2, _ := p.ResourceID(g2); id2 != id1 {
		t.Error("reused geometry changed id")
	}

	// Other kinds do not share the pool.
	if _, err := p.AcquireGeometry(layer.Foreground); err != nil {
		t.Fatal(err)
	}
	if alloc.geometries != 2 {
		t.Errorf("allocations = %d, want 2", alloc.geometries)
	}
	if st := p.GeometryStats(layer.Background); st.Hits != 1 || st.Misses != 1 {
		t.Errorf("background stats = %+v", st)
	}

	// Overflow disposes and forgets the resource.
	extra, _ := p.AcquireGeometry(layer.Background)
	p.ReleaseGeometry(layer.Background, g2)
	p.ReleaseGeometry(layer.Background, extra)
	if extra.(*fakeGeometry).disposed != 1 {
		t.Error("overflowing geometry was not disposed")
	}
	if _, ok := p.ResourceID(extra); ok {
		t.Error("disposed geometry still tracked")
	}

	p.Close()
	if g2.(*fakeGeometry).disposed != 1 || p.Live() != 0 {
		t.Error("Close should dispose pooled resources")
	}
}

func TestLayerDisposeReturnsToPool(t *testing.T) {
	alloc := &fakeAllocator{}
	provider := NewProvider(alloc, 8, nil, nil)
	rng := rand.New(rand.NewSource(3))

	l1, err := layer.New(layer.DeepSpacePreset(), 100, provider, rng, nil)
	if err != nil {
		t.Fatal(err)
	}
	l1.Dispose()
	l2, err := layer.New(layer.DeepSpacePreset(), 100, provider, rng, nil)
	if err != nil {
		t.Fatal(err)
	}
	if alloc.geometries != 1 || alloc.materials != 1 {
		t.Errorf("allocations = %d/%d, want the rebuilt layer to reuse both", alloc.geometries, alloc.materials)
	}
	if !l2.Visible() {
		t.Error("rebuilt layer should be visible")
	}
}
