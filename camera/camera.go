// Package camera provides a 3D orbit camera around the backdrop origin.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera orbits the world origin. It supplies the view and projection
// matrices for rendering and culling.
type Camera struct {
	// Orbit angles in radians
	Yaw, Pitch float32

	// Distance from the origin
	Distance float32

	// Vertical field of view in degrees
	FOV float32

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float32

	// Distance constraints
	MinDistance, MaxDistance float32

	// Clip planes
	Near, Far float32

	// Radians per pixel of drag
	OrbitSpeed float32

	initialDistance float32
}

const maxPitch = 1.5 // Just short of straight up or down

// New creates a camera looking at the origin from distance along +Z.
func New(viewportW, viewportH, fov, distance float32) *Camera {
	return &Camera{
		Distance:        distance,
		FOV:             fov,
		ViewportW:       viewportW,
		ViewportH:       viewportH,
		MinDistance:     10,
		MaxDistance:     1500,
		Near:            0.1,
		Far:             2000,
		OrbitSpeed:      0.005,
		initialDistance: distance,
	}
}

// Position returns the eye position in world coordinates.
func (c *Camera) Position() mgl32.Vec3 {
	cp := float32(math.Cos(float64(c.Pitch)))
	return mgl32.Vec3{
		c.Distance * cp * float32(math.Sin(float64(c.Yaw))),
		c.Distance * float32(math.Sin(float64(c.Pitch))),
		c.Distance * cp * float32(math.Cos(float64(c.Yaw))),
	}
}

// View returns the view matrix.
func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
}

// Projection returns the perspective projection matrix.
func (c *Camera) Projection() mgl32.Mat4 {
	aspect := float32(1)
	if c.ViewportH > 0 {
		aspect = c.ViewportW / c.ViewportH
	}
	return mgl32.Perspective(mgl32.DegToRad(c.FOV), aspect, c.Near, c.Far)
}

// ViewProjection returns Projection * View.
func (c *Camera) ViewProjection() mgl32.Mat4 {
	return c.Projection().Mul4(c.View())
}

// WorldToScreen projects p to screen pixels. visible is false when p is
// behind the camera or outside the viewport.
func (c *Camera) WorldToScreen(p mgl32.Vec3) (sx, sy float32, visible bool) {
	clip := c.ViewProjection().Mul4x1(p.Vec4(1))
	if clip[3] <= 0 {
		return 0, 0, false
	}
	ndc := clip.Vec3().Mul(1 / clip[3])
	sx = (ndc[0] + 1) / 2 * c.ViewportW
	sy = (1 - ndc[1]) / 2 * c.ViewportH
	visible = ndc[0] >= -1 && ndc[0] <= 1 && ndc[1] >= -1 && ndc[1] <= 1 && ndc[2] >= -1 && ndc[2] <= 1
	return sx, sy, visible
}

// NormalizePointer maps screen pixels to [-1, 1] with +Y up, the convention
// of the pointer uniform.
func (c *Camera) NormalizePointer(sx, sy float32) [2]float32 {
	if c.ViewportW <= 0 || c.ViewportH <= 0 {
		return [2]float32{}
	}
	return [2]float32{
		clamp(sx/c.ViewportW*2-1, -1, 1),
		clamp(1-sy/c.ViewportH*2, -1, 1),
	}
}

// Resize updates viewport dimensions. It reports whether they changed.
func (c *Camera) Resize(viewportW, viewportH float32) bool {
	if viewportW == c.ViewportW && viewportH == c.ViewportH {
		return false
	}
	c.ViewportW = viewportW
	c.ViewportH = viewportH
	return true
}

// Orbit rotates the camera by a drag of (dx, dy) screen pixels.
func (c *Camera) Orbit(dx, dy float32) {
	c.Yaw = wrapAngle(c.Yaw - dx*c.OrbitSpeed)
	c.Pitch = clamp(c.Pitch+dy*c.OrbitSpeed, -maxPitch, maxPitch)
}

// Drift advances a slow automatic yaw rotation.
func (c *Camera) Drift(dt, radiansPerSecond float32) {
	c.Yaw = wrapAngle(c.Yaw + dt*radiansPerSecond)
}

// SetDistance sets the orbit distance, clamped to min/max.
func (c *Camera) SetDistance(d float32) {
	c.Distance = clamp(d, c.MinDistance, c.MaxDistance)
}

// ZoomBy divides the distance by factor, so factor > 1 moves closer.
// A pinch scale can be passed directly.
func (c *Camera) ZoomBy(factor float32) {
	if factor <= 0 {
		return
	}
	c.SetDistance(c.Distance / factor)
}

// Reset returns the camera to its initial orbit.
func (c *Camera) Reset() {
	c.Yaw = 0
	c.Pitch = 0
	c.Distance = c.initialDistance
}

// wrapAngle wraps a to [-pi, pi].
func wrapAngle(a float32) float32 {
	r := float32(math.Mod(float64(a)+math.Pi, 2*math.Pi))
	if r < 0 {
		r += 2 * math.Pi
	}
	return r - math.Pi
}

// clamp restricts a value to a range.
func clamp(x, min, max float32) float32 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
