package particles

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/pthm-cable/starfield/colors"
)

// LayerConfiguration scales the generic generation algorithm into a
// layer-specific look.
type LayerConfiguration struct {
	Intensity              float64
	DepthBase              float64
	DepthMultiplier        float64
	OrbitalSpeedMultiplier float64
	VelocityMultiplier     float64
	BrightnessBase         float64
	BrightnessMultiplier   float64
}

// ColorFunc picks the unscaled colour of particle i.
type ColorFunc func(rng *rand.Rand, i int) colorful.Color

// PaletteColors samples uniformly from a palette.
func PaletteColors(palette []colorful.Color) ColorFunc {
	return func(rng *rand.Rand, _ int) colorful.Color {
		if len(palette) == 0 {
			return colorful.Color{R: 1, G: 1, B: 1}
		}
		return palette[rng.Intn(len(palette))]
	}
}

// TemperatureColors draws a black-body colour with temperature uniform in kelvin.
func TemperatureColors(kelvin Range) ColorFunc {
	return func(rng *rand.Rand, _ int) colorful.Color {
		return colors.Temperature(kelvin.Lerp(rng.Float64()))
	}
}

// Recipe is everything Generate needs to populate one layer.
type Recipe struct {
	Config        LayerConfiguration
	Distribution  Distribution
	DepthRange    Range
	SizeRange     Range
	VelocityRange float64 // Max absolute per-axis velocity before the multiplier
	OrbitalRange  Range   // Radians per second before the multiplier
	Color         ColorFunc
	Types         TypeTable
}

// Validate rejects recipes that cannot produce a sane buffer.
func (r Recipe) Validate() error {
	var errs []error
	if r.DepthRange.Min < 0 || r.DepthRange.Max < r.DepthRange.Min {
		errs = append(errs, fmt.Errorf("depth range [%g, %g] invalid", r.DepthRange.Min, r.DepthRange.Max))
	}
	if r.SizeRange.Max < r.SizeRange.Min {
		errs = append(errs, fmt.Errorf("size range [%g, %g] invalid", r.SizeRange.Min, r.SizeRange.Max))
	}
	if r.Config.DepthMultiplier < 0 {
		errs = append(errs, errors.New("depth multiplier must not be negative"))
	}
	if r.Color == nil {
		errs = append(errs, errors.New("no colour strategy"))
	}
	return errors.Join(errs...)
}

// Generate allocates and populates a buffer of count particles.
func Generate(r Recipe, count int, rng *rand.Rand) (*Buffer, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("generating particles: %w", err)
	}
	if count < 0 {
		return nil, fmt.Errorf("generating particles: negative count %d", count)
	}

	b := NewBuffer(count)
	cfg := r.Config
	span := r.DepthRange.Span()

	for i := 0; i < count; i++ {
		pos := r.Distribution.Position(i, count, r.DepthRange, rng)
		b.SetPosition(i, pos)

		// Closer particles score a higher depth factor
		var nd float64
		if span > 0 {
			nd = (float64(pos.Len()) - r.DepthRange.Min) / span
			nd = math.Max(0, math.Min(1, nd))
		}
		depth := cfg.DepthBase + (1-nd)*cfg.DepthMultiplier
		b.Depths[i] = float32(depth)

		c := colors.Scale(r.Color(rng, i), cfg.BrightnessBase+depth*cfg.BrightnessMultiplier)
		b.Colors[3*i], b.Colors[3*i+1], b.Colors[3*i+2] = float32(c.R), float32(c.G), float32(c.B)

		size := r.SizeRange.Lerp(rng.Float64()) * (0.5 + depth*0.5)
		b.Sizes[i] = float32(size)

		b.OrbitalSpeeds[i] = float32(r.OrbitalRange.Lerp(rng.Float64()) * cfg.OrbitalSpeedMultiplier)
		for axis := 0; axis < 3; axis++ {
			b.Velocities[3*i+axis] = float32(signed(rng) * r.VelocityRange * cfg.VelocityMultiplier)
		}

		b.Phases[i] = float32(rng.Float64() * 2 * math.Pi)
		b.Types[i] = r.Types.Sample(rng)
	}

	return b, nil
}
