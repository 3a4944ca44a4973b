package core

// HitPoint is the shading-space record built from a ray and a hit. It is
// the single argument texture evaluation takes, so it carries everything a
// texture or material can depend on.
type HitPoint struct {
	// FixedDir points from the hit back toward the ray origin, in world space
	FixedDir Vec3

	P  Vec3 // world-space position
	UV Vec2 // surface parameters

	GeometryN Vec3 // geometric normal, always on the ray side
	ShadeN    Vec3 // shading normal, possibly perturbed by bump/normal maps

	DpDu, DpDv Vec3 // tangent frame

	// PassThroughEvent is the random sample reused across an entire
	// pass-through chain so mix materials make consistent choices
	PassThroughEvent float64

	MeshIndex uint32
	TriIndex  uint32

	// IntoObject is true when the ray crosses from outside to inside
	// (dot(ray direction, geometric normal) < 0 before flipping)
	IntoObject bool

	// FromLight marks light-subpath (importance transport) evaluation
	FromLight bool
}
