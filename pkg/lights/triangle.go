package lights

import (
	"math"

	"github.com/df07/go-light-transport/pkg/accel"
	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/material"
)

// TriangleLight is one triangle of an emissive mesh. Every triangle of
// the mesh becomes its own light so sampling can pick triangles
// proportionally to area x emission.
type TriangleLight struct {
	LightName string
	Mesh      *accel.Mesh
	MeshIndex uint32
	TriIndex  uint32
	Material  material.Material

	area    float64
	invArea float64
	power   float64
}

// NewTriangleLight creates the light for one emissive triangle
func NewTriangleLight(name string, mesh *accel.Mesh, meshIndex, triIndex uint32, mat material.Material) *TriangleLight {
	tl := &TriangleLight{
		LightName: name,
		Mesh:      mesh,
		MeshIndex: meshIndex,
		TriIndex:  triIndex,
		Material:  mat,
	}
	tl.area = mesh.TriangleArea(int(triIndex))
	if tl.area > 0 {
		tl.invArea = 1 / tl.area
	}
	return tl
}

func (tl *TriangleLight) Name() string    { return tl.LightName }
func (tl *TriangleLight) Type() LightType { return TypeTriangle }

func (tl *TriangleLight) IsEnvironmental() bool { return false }
func (tl *TriangleLight) IsInfinite() bool      { return false }
func (tl *TriangleLight) IsIntersectable() bool { return true }
func (tl *TriangleLight) IsDelta() bool         { return false }

func (tl *TriangleLight) Preprocess(worldCenter core.Vec3, worldRadius float64) {
	// Power = area * pi * mean emitted radiance
	hp := tl.hitPointAt(1.0/3, 1.0/3)
	emitted := tl.Material.Base().EmittedRadiance(&hp)
	tl.power = tl.area * math.Pi * emitted.Filter()
}

func (tl *TriangleLight) Power() float64 { return tl.power }

// Area returns the world-space triangle area
func (tl *TriangleLight) Area() float64 { return tl.area }

func (tl *TriangleLight) hitPointAt(b1, b2 float64) core.HitPoint {
	p := tl.Mesh.PointAt(int(tl.TriIndex), b1, b2)
	n := tl.Mesh.GeometricNormal(int(tl.TriIndex))
	return core.HitPoint{
		P:         p,
		GeometryN: n,
		ShadeN:    tl.Mesh.ShadingNormalAt(int(tl.TriIndex), b1, b2),
		UV:        tl.Mesh.UVAt(int(tl.TriIndex), b1, b2),
		MeshIndex: tl.MeshIndex,
		TriIndex:  tl.TriIndex,
	}
}

// Emit samples a particle leaving the triangle with a cosine-distributed
// direction
func (tl *TriangleLight) Emit(u0, u1, u2, u3 float64) (EmitSample, bool) {
	if tl.area <= 0 {
		return EmitSample{}, false
	}

	p, b1, b2 := tl.Mesh.Sample(int(tl.TriIndex), u0, u1)
	hp := tl.hitPointAt(b1, b2)

	localDir := core.CosineSampleHemisphere(u2, u3)
	cosAtLight := localDir.Z
	if cosAtLight <= 0 {
		return EmitSample{}, false
	}

	frame := core.NewFrame(hp.GeometryN)
	dir := frame.ToWorld(localDir)

	emitted := tl.Material.Base().EmittedRadiance(&hp)
	if emitted.IsZero() {
		return EmitSample{}, false
	}

	return EmitSample{
		Ray:             core.NewRay(p, dir),
		Radiance:        emitted,
		EmissionPdfW:    tl.invArea * cosAtLight * (1 / math.Pi),
		DirectPdfA:      tl.invArea,
		CosThetaAtLight: cosAtLight,
	}, true
}

// Illuminate samples a point on the triangle as seen from p
func (tl *TriangleLight) Illuminate(p core.Vec3, u0, u1 float64) (IlluminateSample, bool) {
	if tl.area <= 0 {
		return IlluminateSample{}, false
	}

	lightPoint, b1, b2 := tl.Mesh.Sample(int(tl.TriIndex), u0, u1)
	hp := tl.hitPointAt(b1, b2)

	delta := lightPoint.Subtract(p)
	distance := delta.Length()
	if distance < 1e-6 {
		return IlluminateSample{}, false
	}
	dir := delta.Multiply(1 / distance)

	cosAtLight := dir.Negate().Dot(hp.GeometryN)
	if cosAtLight < 1e-6 {
		return IlluminateSample{}, false // behind the emitter
	}

	emitted := tl.Material.Base().EmittedRadiance(&hp)
	if emitted.IsZero() {
		return IlluminateSample{}, false
	}

	return IlluminateSample{
		Direction:       dir,
		Distance:        distance,
		Radiance:        emitted,
		DirectPdfW:      core.PdfAtoW(tl.invArea, distance, cosAtLight),
		EmissionPdfW:    tl.invArea * cosAtLight * (1 / math.Pi),
		CosThetaAtLight: cosAtLight,
	}, true
}

// Radiance implements material.EmissionQuerier: it answers the emission
// query when an eye ray walks into this triangle
func (tl *TriangleLight) Radiance(hp *core.HitPoint) (core.Vec3, float64, float64) {
	// The BSDF's shading frame is flipped toward the viewer, so front
	// facing is recorded in IntoObject rather than in the normal itself
	if !hp.IntoObject {
		return core.Black, 0, 0
	}
	cosAtLight := hp.FixedDir.AbsDot(hp.GeometryN)
	if cosAtLight < 1e-6 {
		return core.Black, 0, 0
	}

	emitted := tl.Material.Base().EmittedRadiance(hp)
	directPdfA := tl.invArea
	emissionPdfW := tl.invArea * cosAtLight * (1 / math.Pi)
	return emitted, directPdfA, emissionPdfW
}
