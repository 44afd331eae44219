// Package particles holds the per-layer particle buffers and the algorithm
// that populates them.
//
// A Buffer is a struct of arrays: index i across every array describes one
// particle. Buffers are generated once and afterwards only resampled in place
// by level-of-detail changes.
package particles

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Buffer holds one layer's particles as parallel arrays.
type Buffer struct {
	Positions     []float32 // xyz per particle
	Colors        []float32 // linear rgb per particle, 0..1
	Sizes         []float32
	Velocities    []float32 // xyz per particle
	Phases        []float32 // radians
	Depths        []float32 // depth factor
	OrbitalSpeeds []float32 // radians per second
	Types         []Type
}

// NewBuffer allocates a buffer for count particles.
func NewBuffer(count int) *Buffer {
	if count < 0 {
		count = 0
	}
	return &Buffer{
		Positions:     make([]float32, 3*count),
		Colors:        make([]float32, 3*count),
		Sizes:         make([]float32, count),
		Velocities:    make([]float32, 3*count),
		Phases:        make([]float32, count),
		Depths:        make([]float32, count),
		OrbitalSpeeds: make([]float32, count),
		Types:         make([]Type, count),
	}
}

// Len returns the logical particle count.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Sizes)
}

// Position returns particle i's position.
func (b *Buffer) Position(i int) mgl32.Vec3 {
	return mgl32.Vec3{b.Positions[3*i], b.Positions[3*i+1], b.Positions[3*i+2]}
}

// SetPosition sets particle i's position.
func (b *Buffer) SetPosition(i int, p mgl32.Vec3) {
	b.Positions[3*i], b.Positions[3*i+1], b.Positions[3*i+2] = p[0], p[1], p[2]
}

// Color returns particle i's colour.
func (b *Buffer) Color(i int) mgl32.Vec3 {
	return mgl32.Vec3{b.Colors[3*i], b.Colors[3*i+1], b.Colors[3*i+2]}
}

// Validate checks that every array describes the same number of particles.
func (b *Buffer) Validate() error {
	n := len(b.Sizes)
	var errs []error
	check := func(name string, got, stride int) {
		if got != n*stride {
			errs = append(errs, fmt.Errorf("%s has %d entries, want %d", name, got, n*stride))
		}
	}
	check("positions", len(b.Positions), 3)
	check("colors", len(b.Colors), 3)
	check("velocities", len(b.Velocities), 3)
	check("phases", len(b.Phases), 1)
	check("depths", len(b.Depths), 1)
	check("orbital speeds", len(b.OrbitalSpeeds), 1)
	check("types", len(b.Types), 1)
	return errors.Join(errs...)
}

// ErrEmptyBuffer is returned when growing a buffer that has nothing to copy.
var ErrEmptyBuffer = errors.New("particles: cannot grow an empty buffer")

// Resample changes the logical count to target in place. Shrinking truncates;
// growing copies existing entries cyclically, so index i >= Len() takes the
// values of index i % Len(). No random state is regenerated.
func (b *Buffer) Resample(target int) error {
	if target < 0 {
		target = 0
	}
	n := b.Len()
	if target == n {
		return nil
	}
	if n == 0 {
		return ErrEmptyBuffer
	}

	b.Positions = resample(b.Positions, 3, n, target)
	b.Colors = resample(b.Colors, 3, n, target)
	b.Velocities = resample(b.Velocities, 3, n, target)
	b.Sizes = resample(b.Sizes, 1, n, target)
	b.Phases = resample(b.Phases, 1, n, target)
	b.Depths = resample(b.Depths, 1, n, target)
	b.OrbitalSpeeds = resample(b.OrbitalSpeeds, 1, n, target)
	b.Types = resample(b.Types, 1, n, target)
	return nil
}

// resample resizes s (stride values per particle) from n to target particles.
func resample[T any](s []T, stride, n, target int) []T {
	if target <= n {
		return s[:target*stride]
	}
	if cap(s) >= target*stride {
		s = s[:target*stride]
	} else {
		grown := make([]T, target*stride)
		copy(grown, s[:n*stride])
		s = grown
	}
	for i := n; i < target; i++ {
		src := (i % n) * stride
		copy(s[i*stride:(i+1)*stride], s[src:src+stride])
	}
	return s
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	return &Buffer{
		Positions:     append([]float32(nil), b.Positions...),
		Colors:        append([]float32(nil), b.Colors...),
		Sizes:         append([]float32(nil), b.Sizes...),
		Velocities:    append([]float32(nil), b.Velocities...),
		Phases:        append([]float32(nil), b.Phases...),
		Depths:        append([]float32(nil), b.Depths...),
		OrbitalSpeeds: append([]float32(nil), b.OrbitalSpeeds...),
		Types:         append([]Type(nil), b.Types...),
	}
}
