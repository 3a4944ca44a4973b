package core

import "math"

// DefaultEpsilon is the self-intersection offset applied to ray extents.
// Scene files may override it with the scene.epsilon property.
const DefaultEpsilon = 1e-5

// Ray is a parametric ray restricted to the interval [TMin, TMax).
// Invariant: 0 <= TMin < TMax.
type Ray struct {
	Origin    Vec3
	Direction Vec3
	TMin      float64
	TMax      float64
}

// NewRay creates a ray with the default epsilon extents
func NewRay(origin, direction Vec3) Ray {
	return Ray{Origin: origin, Direction: direction, TMin: DefaultEpsilon, TMax: math.Inf(1)}
}

// NewRayRange creates a ray restricted to [tmin, tmax)
func NewRayRange(origin, direction Vec3, tmin, tmax float64) Ray {
	return Ray{Origin: origin, Direction: direction, TMin: tmin, TMax: tmax}
}

// NewRayTo creates a ray from origin toward target, clipped just short of
// the target so shadow rays don't hit the light geometry itself
func NewRayTo(origin, target Vec3) Ray {
	delta := target.Subtract(origin)
	dist := delta.Length()
	return Ray{
		Origin:    origin,
		Direction: delta.Multiply(1 / dist),
		TMin:      DefaultEpsilon,
		TMax:      dist * (1 - 1e-4),
	}
}

// At returns the point at parameter t along the ray
func (r Ray) At(t float64) Vec3 {
	return r.Origin.Add(r.Direction.Multiply(t))
}

// NullIndex marks an unset mesh or triangle reference in a RayHit
const NullIndex = ^uint32(0)

// RayHit records an intersection: the ray parameter, the triangle
// barycentrics and the mesh/triangle pair that was hit. A hit with
// MeshIndex == NullIndex is a miss.
type RayHit struct {
	T         float64
	B1, B2    float64
	MeshIndex uint32
	TriIndex  uint32
}

// MissHit returns the sentinel value for "nothing hit"
func MissHit() RayHit {
	return RayHit{T: math.Inf(1), MeshIndex: NullIndex, TriIndex: NullIndex}
}

// Miss reports whether this hit is the miss sentinel
func (rh *RayHit) Miss() bool {
	return rh.MeshIndex == NullIndex
}
