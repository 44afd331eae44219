// Package renderopt holds the per-frame render optimisations: frustum culling
// of whole layers, distance-based level of detail, and resource pooling.
package renderopt

import "github.com/go-gl/mathgl/mgl32"

// Sphere is a bounding sphere.
type Sphere struct {
	Center mgl32.Vec3
	Radius float32
}

// Plane is n·p + d = 0 with a unit normal pointing into the frustum.
type Plane struct {
	Normal mgl32.Vec3
	D      float32
}

// Distance returns the signed distance from p to the plane.
func (pl Plane) Distance(p mgl32.Vec3) float32 {
	return pl.Normal.Dot(p) + pl.D
}

// Frustum is the six clip planes of a view-projection matrix.
type Frustum struct {
	Planes [6]Plane // left, right, bottom, top, near, far
}

// FrustumFromMatrix extracts the clip planes from a view-projection matrix.
func FrustumFromMatrix(vp mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := vp.Row(0), vp.Row(1), vp.Row(2), vp.Row(3)
	raw := [6]mgl32.Vec4{
		r3.Add(r0),
		r3.Sub(r0),
		r3.Add(r1),
		r3.Sub(r1),
		r3.Add(r2),
		r3.Sub(r2),
	}

	var f Frustum
	for i, p := range raw {
		n := p.Vec3()
		l := n.Len()
		if l == 0 {
			continue
		}
		f.Planes[i] = Plane{Normal: n.Mul(1 / l), D: p[3] / l}
	}
	return f
}

// IntersectsSphere reports whether any part of s lies inside the frustum.
func (f Frustum) IntersectsSphere(s Sphere) bool {
	for _, pl := range f.Planes {
		if pl.Distance(s.Center) < -s.Radius {
			return false
		}
	}
	return true
}

// ContainsSphere reports whether s lies entirely inside the frustum.
func (f Frustum) ContainsSphere(s Sphere) bool {
	for _, pl := range f.Planes {
		if pl.Distance(s.Center) < s.Radius {
			return false
		}
	}
	return true
}

// BoundingSphere returns the sphere centred on the centroid of positions (xyz
// triples) with radius reaching the farthest point.
func BoundingSphere(positions []float32) Sphere {
	n := len(positions) / 3
	if n == 0 {
		return Sphere{}
	}
	var c mgl32.Vec3
	for i := 0; i < n; i++ {
		c = c.Add(mgl32.Vec3{positions[3*i], positions[3*i+1], positions[3*i+2]})
	}
	c = c.Mul(1 / float32(n))

	var r2 float32
	for i := 0; i < n; i++ {
		d := mgl32.Vec3{positions[3*i], positions[3*i+1], positions[3*i+2]}.Sub(c)
		if l := d.Dot(d); l > r2 {
			r2 = l
		}
	}
	return Sphere{Center: c, Radius: sqrt32(r2)}
}
