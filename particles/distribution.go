package particles

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// Range is a closed [Min, Max] interval.
type Range struct {
	Min, Max float64
}

// Span returns Max - Min.
func (r Range) Span() float64 { return r.Max - r.Min }

// Lerp returns Min + t*Span.
func (r Range) Lerp(t float64) float64 { return r.Min + t*r.Span() }

// Clamp restricts v to the range.
func (r Range) Clamp(v float64) float64 {
	return math.Max(r.Min, math.Min(r.Max, v))
}

// Distribution is a spatial distribution strategy.
type Distribution uint8

const (
	Spiral Distribution = iota
	Ring
	Spherical
	GalaxyArm
)

var distributionNames = [...]string{"SPIRAL", "RING", "SPHERICAL", "GALAXY_ARM"}

func (d Distribution) String() string {
	if int(d) < len(distributionNames) {
		return distributionNames[d]
	}
	return fmt.Sprintf("Distribution(%d)", d)
}

// ParseDistribution parses a distribution name (case-insensitive).
func ParseDistribution(s string) (Distribution, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range distributionNames {
		if name == u {
			return Distribution(i), nil
		}
	}
	return 0, fmt.Errorf("unknown distribution %q", s)
}

const (
	spiralTurns   = 3.0
	galaxyArms    = 3
	galaxySweep   = 1.5 // turns swept by each arm
	galaxyJitter  = 0.35
	ringInnerFrac = 0.7
)

// Position returns the position of particle i of n. The result's magnitude is
// always within depth; only rng carries state between calls.
func (d Distribution) Position(i, n int, depth Range, rng *rand.Rand) mgl32.Vec3 {
	if n < 1 {
		n = 1
	}
	t := (float64(i) + 0.5) / float64(n)
	span := depth.Span()

	var angle, radius, thickness float64
	var p [3]float64

	switch d {
	case Spiral:
		angle = t*spiralTurns*2*math.Pi + math.Log(1+9*t)*math.Pi
		radius = depth.Lerp(t) + signed(rng)*0.05*span
		thickness = 0.1
	case Ring:
		angle = t*2*math.Pi + signed(rng)*0.05
		radius = depth.Lerp(ringInnerFrac + (1-ringInnerFrac)*rng.Float64())
		thickness = 0.05
	case GalaxyArm:
		arm := i % galaxyArms
		perArm := (n + galaxyArms - 1) / galaxyArms
		at := (float64(i/galaxyArms) + 0.5) / float64(perArm)
		angle = float64(arm)*2*math.Pi/galaxyArms + at*galaxySweep*2*math.Pi + signed(rng)*galaxyJitter
		radius = depth.Lerp(math.Sqrt(at)) + signed(rng)*0.03*span
		thickness = 0.08
	default: // Spherical
		theta := 2 * math.Pi * rng.Float64()
		phi := math.Acos(2*rng.Float64() - 1)
		radius = depth.Lerp(rng.Float64())
		p = [3]float64{math.Sin(phi) * math.Cos(theta), math.Cos(phi), math.Sin(phi) * math.Sin(theta)}
		return onShell(p, radius, depth)
	}

	p = [3]float64{math.Cos(angle), signed(rng) * thickness, math.Sin(angle)}
	return onShell(p, radius, depth)
}

// onShell scales direction dir to the clamped radius.
func onShell(dir [3]float64, radius float64, depth Range) mgl32.Vec3 {
	radius = depth.Clamp(radius)
	l := math.Sqrt(dir[0]*dir[0] + dir[1]*dir[1] + dir[2]*dir[2])
	if l == 0 {
		return mgl32.Vec3{float32(radius), 0, 0}
	}
	s := radius / l
	return mgl32.Vec3{float32(dir[0] * s), float32(dir[1] * s), float32(dir[2] * s)}
}

// signed returns a uniform value in [-1, 1).
func signed(rng *rand.Rand) float64 {
	return rng.Float64()*2 - 1
}
