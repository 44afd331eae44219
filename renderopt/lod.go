package renderopt

import (
	"math"
	"strconv"

	"github.com/pthm-cable/starfield/config"
)

// Tier is one level-of-detail band.
type Tier struct {
	Distance         float64 // Upper distance bound of the band
	ParticleFraction float64
	Quality          float64
}

// TiersFromConfig converts the config section.
func TiersFromConfig(c []config.LODTierConfig) []Tier {
	tiers := make([]Tier, len(c))
	for i, t := range c {
		tiers[i] = Tier{Distance: t.Distance, ParticleFraction: t.ParticleFraction, Quality: t.Quality}
	}
	return tiers
}

// LOD selects tiers by distance, caching the choice per layer and distance bucket.
type LOD struct {
	tiers   []Tier // Ascending by Distance
	quantum float64
	cache   map[string]int
}

// NewLOD creates a selector. tiers must be ascending by distance.
func NewLOD(tiers []Tier, quantum float64) *LOD {
	if quantum <= 0 {
		quantum = 10
	}
	return &LOD{
		tiers:   tiers,
		quantum: quantum,
		cache:   make(map[string]int),
	}
}

// Tiers returns the configured tiers.
func (l *LOD) Tiers() []Tier { return l.tiers }

// Select returns the index of the first tier whose threshold is at or beyond
// the upper edge of distance's bucket. Distances past the last threshold use
// the last tier. The choice depends only on the bucket, never on which
// distance filled the cache.
func (l *LOD) Select(layer string, distance float64) (int, Tier) {
	if len(l.tiers) == 0 {
		return -1, Tier{ParticleFraction: 1, Quality: 1}
	}
	bucket := int64(math.Floor(distance / l.quantum))
	key := layer + ":" + strconv.FormatInt(bucket, 10)
	if idx, ok := l.cache[key]; ok {
		return idx, l.tiers[idx]
	}

	edge := float64(bucket+1) * l.quantum
	idx := len(l.tiers) - 1
	for i, t := range l.tiers {
		if t.Distance >= edge {
			idx = i
			break
		}
	}
	l.cache[key] = idx
	return idx, l.tiers[idx]
}

// Target returns floor(base * fraction), at least 1.
func (t Tier) Target(base int) int {
	n := int(math.Floor(float64(base) * t.ParticleFraction))
	if n < 1 {
		n = 1
	}
	return n
}

// Invalidate drops every cached choice, as after a viewport resize.
func (l *LOD) Invalidate() {
	clear(l.cache)
}

// CacheLen returns the number of cached choices.
func (l *LOD) CacheLen() int { return len(l.cache) }

func sqrt32(v float32) float32 { return float32(math.Sqrt(float64(v))) }
