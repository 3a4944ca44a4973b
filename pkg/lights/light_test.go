package lights

import (
	"math"
	"math/rand"
	"testing"

	"github.com/df07/go-light-transport/pkg/accel"
	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/material"
	"github.com/df07/go-light-transport/pkg/texture"
)

func emissiveTriangle() (*accel.Mesh, material.Material) {
	mesh := &accel.Mesh{
		Vertices: []core.Vec3{
			{X: -1, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 2, Z: 0},
		},
		Triangles: []accel.Triangle{{V0: 0, V1: 1, V2: 2}},
	}
	mat := material.NewMatte("lamp", texture.NewConstSpectrum(core.Black))
	mat.Base().Emission = texture.NewConstSpectrum(core.NewVec3(5, 5, 5))
	return mesh, mat
}

func TestTriangleLightIlluminate(t *testing.T) {
	mesh, mat := emissiveTriangle()
	tl := NewTriangleLight("lamp", mesh, 0, 0, mat)
	tl.Preprocess(core.Vec3{}, 10)

	if tl.Area() != 2 {
		t.Fatalf("area %v, expected 2", tl.Area())
	}

	// Sample from a point in front of the triangle (normal is +z for
	// this winding)
	p := core.NewVec3(0, 0.5, 3)
	rng := rand.New(rand.NewSource(4))
	for i := 0; i < 100; i++ {
		sample, ok := tl.Illuminate(p, rng.Float64(), rng.Float64())
		if !ok {
			t.Fatal("illuminate failed from the lit side")
		}
		if sample.DirectPdfW <= 0 || sample.EmissionPdfW <= 0 {
			t.Fatalf("non-positive pdfs: %v / %v", sample.DirectPdfW, sample.EmissionPdfW)
		}
		if sample.Radiance.X != 5 {
			t.Fatalf("radiance %v, expected 5", sample.Radiance)
		}
		// directPdfW must be the area pdf converted to solid angle
		expected := core.PdfAtoW(1/tl.Area(), sample.Distance, sample.CosThetaAtLight)
		if math.Abs(sample.DirectPdfW-expected) > 1e-9 {
			t.Fatalf("directPdfW %v, expected %v", sample.DirectPdfW, expected)
		}
	}

	// From behind the triangle, illumination fails
	if _, ok := tl.Illuminate(core.NewVec3(0, 0.5, -3), 0.3, 0.3); ok {
		t.Fatal("illuminate must fail from the back side")
	}
}

func TestTriangleLightEmit(t *testing.T) {
	mesh, mat := emissiveTriangle()
	tl := NewTriangleLight("lamp", mesh, 0, 0, mat)
	tl.Preprocess(core.Vec3{}, 10)

	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 100; i++ {
		sample, ok := tl.Emit(rng.Float64(), rng.Float64(), rng.Float64(), rng.Float64())
		if !ok {
			t.Fatal("emit failed")
		}
		if sample.CosThetaAtLight <= 0 {
			t.Fatalf("emit cosine %v must be positive", sample.CosThetaAtLight)
		}
		// The particle leaves on the emitting side
		n := mesh.GeometricNormal(0)
		if sample.Ray.Direction.Dot(n) <= 0 {
			t.Fatal("emitted particle leaves the dark side")
		}
		if sample.DirectPdfA != 1/tl.Area() {
			t.Fatalf("directPdfA %v, expected %v", sample.DirectPdfA, 1/tl.Area())
		}
	}
}

func TestLightDefinitionsPowerPicking(t *testing.T) {
	defs := NewLightDefinitions()

	dim := NewPointLight("dim", core.NewVec3(0, 0, 0), core.NewVec3(1, 1, 1))
	bright := NewPointLight("bright", core.NewVec3(1, 0, 0), core.NewVec3(9, 9, 9))
	defs.Add(dim)
	defs.Add(bright)
	defs.Preprocess(core.Vec3{}, 10)

	// Power ratio 1:9 must drive the pick pdf
	if got := defs.LightPickPdf(0); math.Abs(got-0.1) > 1e-9 {
		t.Fatalf("dim pick pdf %v, expected 0.1", got)
	}
	if got := defs.LightPickPdf(1); math.Abs(got-0.9) > 1e-9 {
		t.Fatalf("bright pick pdf %v, expected 0.9", got)
	}

	light, pdf, index := defs.SampleLight(0.95)
	if light != bright || index != 1 {
		t.Fatalf("u=0.95 picked %v, expected the bright light", light.Name())
	}
	if math.Abs(pdf-0.9) > 1e-9 {
		t.Fatalf("pick pdf %v, expected 0.9", pdf)
	}
}

func TestLightDefinitionsSubsets(t *testing.T) {
	mesh, mat := emissiveTriangle()
	defs := NewLightDefinitions()
	defs.Add(NewTriangleLight("lamp", mesh, 3, 0, mat))
	defs.Add(NewConstantInfiniteLight("sky", core.White, core.White))
	defs.Add(NewPointLight("bulb", core.Vec3{}, core.White))
	defs.Preprocess(core.Vec3{}, 10)

	if got := len(defs.EnvLights()); got != 1 {
		t.Fatalf("env subset size %d, expected 1", got)
	}
	if tl := defs.TriangleLightFor(3, 0); tl == nil {
		t.Fatal("triangle map lookup failed")
	}
	if tl := defs.TriangleLightFor(0, 0); tl != nil {
		t.Fatal("triangle map returned a light for a plain mesh")
	}
}

func TestConstantInfinitePdfConsistency(t *testing.T) {
	sky := NewConstantInfiniteLight("sky", core.NewVec3(1, 1, 1), core.White)
	sky.Preprocess(core.Vec3{}, 10)

	sample, ok := sky.Illuminate(core.NewVec3(0, 0, 0), 0.3, 0.8)
	if !ok {
		t.Fatal("illuminate failed")
	}
	radiance, directPdfW, emissionPdfW := sky.Radiance(sample.Direction)
	if !radiance.Equals(sample.Radiance) {
		t.Fatalf("radiance mismatch %v vs %v", radiance, sample.Radiance)
	}
	if math.Abs(directPdfW-sample.DirectPdfW) > 1e-12 {
		t.Fatalf("directPdfW mismatch %v vs %v", directPdfW, sample.DirectPdfW)
	}
	if math.Abs(emissionPdfW-sample.EmissionPdfW) > 1e-12 {
		t.Fatalf("emissionPdfW mismatch %v vs %v", emissionPdfW, sample.EmissionPdfW)
	}
}

func TestSpotLightCone(t *testing.T) {
	spot := NewSpotLight("spot", core.NewVec3(0, 0, 0), core.NewVec3(0, 0, 1),
		core.NewVec3(10, 10, 10), 30*math.Pi/180, 5*math.Pi/180)
	spot.Preprocess(core.Vec3{}, 10)

	// Inside the cone
	if sample, ok := spot.Illuminate(core.NewVec3(0, 0, 5), 0.5, 0.5); !ok || sample.Radiance.IsZero() {
		t.Fatal("on-axis point must be lit")
	}
	// Well outside the cone
	if _, ok := spot.Illuminate(core.NewVec3(5, 0, 0.2), 0.5, 0.5); ok {
		t.Fatal("point outside the cone must not be lit")
	}
}

func TestSharpDistantIsDelta(t *testing.T) {
	l := NewSharpDistantLight("sun", core.NewVec3(0, 0, -1), core.White)
	l.Preprocess(core.Vec3{}, 10)

	if !l.IsDelta() {
		t.Fatal("sharp distant light must be delta")
	}
	sample, ok := l.Illuminate(core.NewVec3(0, 0, 0), 0.1, 0.9)
	if !ok {
		t.Fatal("illuminate failed")
	}
	if !sample.Direction.Equals(core.NewVec3(0, 0, 1)) {
		t.Fatalf("illumination direction %v, expected opposite the travel direction", sample.Direction)
	}
	if !math.IsInf(sample.Distance, 1) {
		t.Fatal("distant light distance must be infinite")
	}
}
