package particles

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
)

func testRecipe(d Distribution, depth Range) Recipe {
	return Recipe{
		Config: LayerConfiguration{
			Intensity:              1,
			DepthBase:              0.2,
			DepthMultiplier:        0.6,
			OrbitalSpeedMultiplier: 1,
			VelocityMultiplier:     1,
			BrightnessBase:         0.5,
			BrightnessMultiplier:   0.5,
		},
		Distribution:  d,
		DepthRange:    depth,
		SizeRange:     Range{Min: 1, Max: 3},
		VelocityRange: 0.2,
		OrbitalRange:  Range{Min: 0.01, Max: 0.05},
		Color:         PaletteColors([]colorful.Color{{R: 1, G: 1, B: 1}, {R: 0.6, G: 0.7, B: 1}}),
		Types:         NewTypeTable(TypeWeight{TypeStar, 0.95}, TypeWeight{TypePulsar, 0.05}),
	}
}

func TestGenerateArrayLengths(t *testing.T) {
	for _, d := range []Distribution{Spiral, Ring, Spherical, GalaxyArm} {
		t.Run(d.String(), func(t *testing.T) {
			rng := rand.New(rand.NewSource(1))
			b, err := Generate(testRecipe(d, Range{Min: 50, Max: 150}), 1000, rng)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if b.Len() != 1000 {
				t.Fatalf("expected 1000 particles, got %d", b.Len())
			}
			if len(b.Positions) != 3000 || len(b.Colors) != 3000 || len(b.Velocities) != 3000 {
				t.Errorf("vector arrays not 3*count: %d %d %d", len(b.Positions), len(b.Colors), len(b.Velocities))
			}
			if len(b.Depths) != 1000 || len(b.Phases) != 1000 || len(b.Types) != 1000 || len(b.OrbitalSpeeds) != 1000 {
				t.Error("scalar arrays not count long")
			}
			if err := b.Validate(); err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestGenerateDepthFactorBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := testRecipe(GalaxyArm, Range{Min: 20, Max: 80})
	b, err := Generate(r, 2000, rng)
	if err != nil {
		t.Fatal(err)
	}

	lo := float32(r.Config.DepthBase)
	hi := float32(r.Config.DepthBase + r.Config.DepthMultiplier)
	for i, d := range b.Depths {
		if d < lo-1e-6 || d > hi+1e-6 {
			t.Fatalf("depth[%d]=%f outside [%f, %f]", i, d, lo, hi)
		}
	}
}

// Background-style layer: 3000 particles, every magnitude inside the depth range.
func TestGenerateBackgroundMagnitudes(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	b, err := Generate(testRecipe(Spherical, Range{Min: 120, Max: 300}), 3000, rng)
	if err != nil {
		t.Fatal(err)
	}

	const tol = 1e-3
	for i := 0; i < b.Len(); i++ {
		l := float64(b.Position(i).Len())
		if l < 120-tol*120 || l > 300+tol*300 {
			t.Fatalf("particle %d magnitude %f outside [120, 300]", i, l)
		}
	}
}

func TestGenerateMagnitudesAllDistributions(t *testing.T) {
	depth := Range{Min: 60, Max: 160}
	for _, d := range []Distribution{Spiral, Ring, Spherical, GalaxyArm} {
		rng := rand.New(rand.NewSource(3))
		b, err := Generate(testRecipe(d, depth), 500, rng)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < b.Len(); i++ {
			l := float64(b.Position(i).Len())
			if l < depth.Min*(1-1e-3) || l > depth.Max*(1+1e-3) {
				t.Errorf("%s: particle %d magnitude %f outside range", d, i, l)
				break
			}
		}
	}
}

func TestRingAnnulus(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	depth := Range{Min: 300, Max: 600}
	b, err := Generate(testRecipe(Ring, depth), 800, rng)
	if err != nil {
		t.Fatal(err)
	}
	inner := depth.Lerp(ringInnerFrac)
	for i := 0; i < b.Len(); i++ {
		if l := float64(b.Position(i).Len()); l < inner*(1-1e-3) {
			t.Fatalf("ring particle %d at %f inside annulus start %f", i, l, inner)
		}
	}
}

func TestGenerateScalarRanges(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	r := testRecipe(Spiral, Range{Min: 10, Max: 100})
	b, err := Generate(r, 1000, rng)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < b.Len(); i++ {
		if p := b.Phases[i]; p < 0 || float64(p) > 2*math.Pi+1e-6 {
			t.Fatalf("phase %f outside [0, 2pi)", p)
		}
		if s := b.Sizes[i]; s < 0.5 || s > 3 {
			t.Fatalf("size %f outside scaled range", s)
		}
		for c := 0; c < 3; c++ {
			if v := b.Colors[3*i+c]; v < 0 || v > 1 {
				t.Fatalf("colour channel %f outside [0,1]", v)
			}
			if v := b.Velocities[3*i+c]; math.Abs(float64(v)) > 0.2+1e-6 {
				t.Fatalf("velocity %f beyond range", v)
			}
		}
	}
}

func TestGenerateRejectsBadRecipe(t *testing.T) {
	r := testRecipe(Spiral, Range{Min: 100, Max: 10})
	if _, err := Generate(r, 10, rand.New(rand.NewSource(1))); err == nil {
		t.Error("expected error for inverted depth range")
	}
	r = testRecipe(Spiral, Range{Min: 10, Max: 100})
	r.Color = nil
	if _, err := Generate(r, 10, rand.New(rand.NewSource(1))); err == nil {
		t.Error("expected error for missing colour strategy")
	}
}

func TestResampleGrowPreservesAndCycles(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	b, err := Generate(testRecipe(Spherical, Range{Min: 10, Max: 20}), 7, rng)
	if err != nil {
		t.Fatal(err)
	}
	before := b.Clone()

	if err := b.Resample(23); err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if b.Len() != 23 {
		t.Fatalf("expected 23 particles, got %d", b.Len())
	}
	if err := b.Validate(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 23; i++ {
		src := i % 7
		if b.Position(i) != before.Position(src) {
			t.Errorf("position %d != source %d", i, src)
		}
		if b.Phases[i] != before.Phases[src] || b.Types[i] != before.Types[src] || b.Depths[i] != before.Depths[src] {
			t.Errorf("scalars at %d not copied from %d", i, src)
		}
	}
}

func TestResampleShrinkThenGrowUsesTruncatedSource(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	b, err := Generate(testRecipe(Ring, Range{Min: 10, Max: 20}), 10, rng)
	if err != nil {
		t.Fatal(err)
	}
	original := b.Clone()

	if err := b.Resample(4); err != nil {
		t.Fatal(err)
	}
	if err := b.Resample(10); err != nil {
		t.Fatal(err)
	}
	// Capacity still holds the old entries 4..9, but growth must copy cyclically
	for i := 4; i < 10; i++ {
		if b.Sizes[i] != original.Sizes[i%4] {
			t.Errorf("size %d = %f, want source %d (%f)", i, b.Sizes[i], i%4, original.Sizes[i%4])
		}
	}
}

func TestResampleIdempotentAndEmpty(t *testing.T) {
	b := NewBuffer(5)
	if err := b.Resample(5); err != nil {
		t.Errorf("same-size resample: %v", err)
	}
	if err := b.Resample(0); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 0 {
		t.Fatalf("expected empty buffer, got %d", b.Len())
	}
	if err := b.Resample(3); !errors.Is(err, ErrEmptyBuffer) {
		t.Errorf("expected ErrEmptyBuffer, got %v", err)
	}
}

func TestTypeTableDistribution(t *testing.T) {
	tt, err := TypeTableFromNames(map[string]float64{"STAR": 0.6, "nebula": 0.4})
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(17))
	counts := map[Type]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		counts[tt.Sample(rng)]++
	}
	got := float64(counts[TypeNebula]) / n
	if math.Abs(got-0.4) > 0.02 {
		t.Errorf("expected ~40%% nebula, got %.3f", got)
	}
	if counts[TypePulsar] != 0 {
		t.Error("sampled a type with zero weight")
	}
	if math.Abs(tt.Probability(TypeStar)-0.6) > 1e-9 {
		t.Errorf("expected star probability 0.6, got %f", tt.Probability(TypeStar))
	}

	if _, err := TypeTableFromNames(map[string]float64{"QUASAR": 1}); err == nil {
		t.Error("expected error for unknown type name")
	}
	if (TypeTable{}).Sample(rng) != TypeStar {
		t.Error("expected empty table to yield STAR")
	}
}

func TestParseDistribution(t *testing.T) {
	d, err := ParseDistribution("galaxy_arm")
	if err != nil || d != GalaxyArm {
		t.Errorf("ParseDistribution(galaxy_arm) = %v, %v", d, err)
	}
	if _, err := ParseDistribution("torus"); err == nil {
		t.Error("expected error for unknown distribution")
	}
}
