package accel

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/df07/go-light-transport/pkg/core"
)

// Triangle indexes three vertices of its mesh
type Triangle struct {
	V0, V1, V2 uint32
}

// Mesh is an indexed triangle mesh. Vertices are stored in world space:
// object transformations are baked in at scene-build time.
type Mesh struct {
	Name      string
	Vertices  []core.Vec3
	Normals   []core.Vec3 // optional per-vertex shading normals
	UVs       []core.Vec2 // optional per-vertex surface parameters
	Triangles []Triangle
}

// Transform bakes a 4x4 transformation into the mesh vertices and normals
func (m *Mesh) Transform(t mgl64.Mat4) {
	normalMat := t.Inv().Transpose()
	for i, v := range m.Vertices {
		p := t.Mul4x1(mgl64.Vec4{v.X, v.Y, v.Z, 1})
		m.Vertices[i] = core.NewVec3(p.X(), p.Y(), p.Z())
	}
	for i, n := range m.Normals {
		p := normalMat.Mul4x1(mgl64.Vec4{n.X, n.Y, n.Z, 0})
		m.Normals[i] = core.NewVec3(p.X(), p.Y(), p.Z()).Normalize()
	}
}

// TriangleArea returns the world-space area of the given triangle
func (m *Mesh) TriangleArea(i int) float64 {
	tri := m.Triangles[i]
	e1 := m.Vertices[tri.V1].Subtract(m.Vertices[tri.V0])
	e2 := m.Vertices[tri.V2].Subtract(m.Vertices[tri.V0])
	return 0.5 * e1.Cross(e2).Length()
}

// GeometricNormal returns the unit face normal of a triangle, oriented by
// its vertex winding
func (m *Mesh) GeometricNormal(i int) core.Vec3 {
	tri := m.Triangles[i]
	e1 := m.Vertices[tri.V1].Subtract(m.Vertices[tri.V0])
	e2 := m.Vertices[tri.V2].Subtract(m.Vertices[tri.V0])
	return e1.Cross(e2).Normalize()
}

// Sample returns a point uniformly distributed over triangle i together
// with its barycentrics
func (m *Mesh) Sample(i int, u0, u1 float64) (core.Vec3, float64, float64) {
	b1, b2 := core.UniformSampleTriangle(u0, u1)
	return m.PointAt(i, b1, b2), b1, b2
}

// PointAt interpolates a world-space position from barycentrics
func (m *Mesh) PointAt(i int, b1, b2 float64) core.Vec3 {
	tri := m.Triangles[i]
	b0 := 1 - b1 - b2
	return m.Vertices[tri.V0].Multiply(b0).
		Add(m.Vertices[tri.V1].Multiply(b1)).
		Add(m.Vertices[tri.V2].Multiply(b2))
}

// ShadingNormalAt interpolates the shading normal from barycentrics,
// falling back to the geometric normal for meshes without vertex normals
func (m *Mesh) ShadingNormalAt(i int, b1, b2 float64) core.Vec3 {
	if len(m.Normals) == 0 {
		return m.GeometricNormal(i)
	}
	tri := m.Triangles[i]
	b0 := 1 - b1 - b2
	return m.Normals[tri.V0].Multiply(b0).
		Add(m.Normals[tri.V1].Multiply(b1)).
		Add(m.Normals[tri.V2].Multiply(b2)).Normalize()
}

// UVAt interpolates surface parameters from barycentrics. Meshes without
// explicit UVs get barycentric parameters, which is enough for procedural
// textures.
func (m *Mesh) UVAt(i int, b1, b2 float64) core.Vec2 {
	if len(m.UVs) == 0 {
		return core.NewVec2(b1, b2)
	}
	tri := m.Triangles[i]
	b0 := 1 - b1 - b2
	uv0, uv1, uv2 := m.UVs[tri.V0], m.UVs[tri.V1], m.UVs[tri.V2]
	return core.NewVec2(
		b0*uv0.X+b1*uv1.X+b2*uv2.X,
		b0*uv0.Y+b1*uv1.Y+b2*uv2.Y,
	)
}

// Tangents returns dpdu/dpdv for triangle i derived from its UV
// parameterization, falling back to an arbitrary frame for degenerate UVs
func (m *Mesh) Tangents(i int) (core.Vec3, core.Vec3) {
	tri := m.Triangles[i]
	p0, p1, p2 := m.Vertices[tri.V0], m.Vertices[tri.V1], m.Vertices[tri.V2]
	e1 := p1.Subtract(p0)
	e2 := p2.Subtract(p0)

	if len(m.UVs) != 0 {
		uv0, uv1, uv2 := m.UVs[tri.V0], m.UVs[tri.V1], m.UVs[tri.V2]
		du1 := uv1.X - uv0.X
		dv1 := uv1.Y - uv0.Y
		du2 := uv2.X - uv0.X
		dv2 := uv2.Y - uv0.Y
		det := du1*dv2 - dv1*du2
		if math.Abs(det) > 1e-12 {
			invDet := 1 / det
			dpdu := e1.Multiply(dv2 * invDet).Subtract(e2.Multiply(dv1 * invDet))
			dpdv := e2.Multiply(du1 * invDet).Subtract(e1.Multiply(du2 * invDet))
			return dpdu, dpdv
		}
	}

	frame := core.NewFrame(e1.Cross(e2).Normalize())
	return frame.X, frame.Y
}

// Bounds returns the AABB of a single triangle
func (m *Mesh) Bounds(i int) AABB {
	tri := m.Triangles[i]
	box := EmptyAABB()
	box = box.AddPoint(m.Vertices[tri.V0])
	box = box.AddPoint(m.Vertices[tri.V1])
	box = box.AddPoint(m.Vertices[tri.V2])
	return box
}

// intersectTriangle runs Moeller-Trumbore against triangle i, returning
// the hit parameter and barycentrics
func (m *Mesh) intersectTriangle(i int, ray core.Ray) (t, b1, b2 float64, ok bool) {
	tri := m.Triangles[i]
	p0 := m.Vertices[tri.V0]
	e1 := m.Vertices[tri.V1].Subtract(p0)
	e2 := m.Vertices[tri.V2].Subtract(p0)

	pvec := ray.Direction.Cross(e2)
	det := e1.Dot(pvec)
	if math.Abs(det) < 1e-12 {
		return 0, 0, 0, false
	}
	invDet := 1 / det

	tvec := ray.Origin.Subtract(p0)
	b1 = tvec.Dot(pvec) * invDet
	if b1 < 0 || b1 > 1 {
		return 0, 0, 0, false
	}

	qvec := tvec.Cross(e1)
	b2 = ray.Direction.Dot(qvec) * invDet
	if b2 < 0 || b1+b2 > 1 {
		return 0, 0, 0, false
	}

	t = e2.Dot(qvec) * invDet
	if t < ray.TMin || t >= ray.TMax {
		return 0, 0, 0, false
	}
	return t, b1, b2, true
}
