package scene

import (
	"math"
	"testing"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/material"
)

func TestParseProperties(t *testing.T) {
	props, err := ParsePropertiesString(`
# a comment
scene.camera.lookat = 0 0 -3 0 0 0
scene.camera.fov = 60
scene.materials.white.type = matte
scene.materials.white.kd = 0.7 0.7 0.7
film.width = 64
`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if got := props.GetFloat("scene.camera.fov", 0); got != 60 {
		t.Errorf("fov = %v, expected 60", got)
	}
	if got := props.GetVec3("scene.materials.white.kd", core.Black); !got.Equals(core.NewVec3(0.7, 0.7, 0.7)) {
		t.Errorf("kd = %v", got)
	}
	if got := props.GetInt("film.width", 0); got != 64 {
		t.Errorf("width = %v, expected 64", got)
	}
	names := props.Names("scene.materials")
	if len(names) != 1 || names[0] != "white" {
		t.Errorf("names = %v, expected [white]", names)
	}
}

func TestParsePropertiesErrors(t *testing.T) {
	for _, bad := range []string{
		"keywithoutvalue",
		"= value",
	} {
		if _, err := ParsePropertiesString(bad); err == nil {
			t.Errorf("expected parse error for %q", bad)
		}
	}
}

const basicSceneHeader = `
scene.camera.lookat = 0 0 -3 0 0 0
scene.camera.fov = 45
scene.camera.up = 0 1 0
film.width = 16
film.height = 16
`

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		props string
	}{
		{
			"undefined material on object",
			basicSceneHeader + `
scene.objects.quad.material = nosuch
scene.objects.quad.vertices = -1 -1 0 1 -1 0 1 1 0
scene.objects.quad.faces = 0 1 2
`,
		},
		{
			"undefined texture reference",
			basicSceneHeader + `
scene.materials.m.type = matte
scene.materials.m.kd = nosuchtex
`,
		},
		{
			"mix cycle",
			basicSceneHeader + `
scene.materials.a.type = mix
scene.materials.a.material1 = b
scene.materials.a.material2 = b
scene.materials.b.type = mix
scene.materials.b.material1 = a
scene.materials.b.material2 = a
`,
		},
		{
			"zero heterogeneous step size",
			basicSceneHeader + `
scene.volumes.fog.type = heterogeneous
scene.volumes.fog.steps.size = 0
`,
		},
		{
			"unknown material type",
			basicSceneHeader + `
scene.materials.m.type = nosuchtype
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props, err := ParsePropertiesString(tt.props)
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if _, err := Build(props, nil); err == nil {
				t.Fatal("expected a build error")
			}
		})
	}
}

func TestBuildBasicScene(t *testing.T) {
	props, err := ParsePropertiesString(basicSceneHeader + `
scene.materials.white.type = matte
scene.materials.white.kd = 0.7 0.7 0.7
scene.materials.lamp.type = matte
scene.materials.lamp.kd = 0 0 0
scene.materials.lamp.emission = 10 10 10
scene.objects.floor.material = white
scene.objects.floor.vertices = -2 -2 1 2 -2 1 2 2 1 -2 2 1
scene.objects.floor.faces = 0 1 2 0 2 3
scene.objects.lamp.material = lamp
scene.objects.lamp.vertices = -0.5 -0.5 0.9 0.5 -0.5 0.9 0.5 0.5 0.9
scene.objects.lamp.faces = 0 1 2
`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	sc, err := Build(props, nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if len(sc.Meshes) != 2 {
		t.Fatalf("mesh count %d, expected 2", len(sc.Meshes))
	}
	// One triangle light per emissive triangle
	if got := sc.Lights.Len(); got != 1 {
		t.Fatalf("light count %d, expected 1", got)
	}
	if tl := sc.Lights.TriangleLightFor(1, 0); tl == nil {
		t.Fatal("mesh->light map must resolve the emissive triangle")
	}
	if tl := sc.Lights.TriangleLightFor(0, 0); tl != nil {
		t.Fatal("non-emissive triangle must have no light")
	}
}

func TestSceneIntersectBasic(t *testing.T) {
	props, _ := ParsePropertiesString(basicSceneHeader + `
scene.materials.white.type = matte
scene.materials.white.kd = 0.7 0.7 0.7
scene.objects.wall.material = white
scene.objects.wall.vertices = -1 -1 0 1 -1 0 1 1 0 -1 1 0
scene.objects.wall.faces = 0 1 2 0 2 3
`)
	sc, err := Build(props, nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	ray := core.NewRay(core.NewVec3(0, 0, -3), core.NewVec3(0, 0, 1))
	volInfo := material.NewPathVolumeInfo(nil)
	throughput := core.White

	hit, bsdf := sc.Intersect(false, &volInfo, 0.5, &ray, &throughput)
	if !hit {
		t.Fatal("ray must hit the wall")
	}
	if bsdf.Material.Type() != material.MatteType {
		t.Fatalf("hit material %v, expected matte", bsdf.Material.Type())
	}
	if !throughput.Equals(core.White) {
		t.Fatalf("throughput %v, expected unchanged", throughput)
	}
	// The shading frame must face the viewer
	if bsdf.HitPoint.ShadeN.Dot(bsdf.HitPoint.FixedDir) <= 0 {
		t.Fatal("shading normal must be on the viewer side")
	}
}

// TestShadowThroughNullChain checks that a shadow ray through stacked
// null surfaces keeps the product of their transparencies
func TestShadowThroughNullChain(t *testing.T) {
	props, _ := ParsePropertiesString(basicSceneHeader + `
scene.textures.halfgrey.type = constfloat3
scene.textures.halfgrey.value = 0.5 0.5 0.5
scene.materials.veil.type = null
scene.materials.white.type = matte
scene.objects.v1.material = veil
scene.objects.v1.vertices = -2 -2 0.2 2 -2 0.2 2 2 0.2 -2 2 0.2
scene.objects.v1.faces = 0 1 2 0 2 3
scene.objects.v2.material = veil
scene.objects.v2.vertices = -2 -2 0.4 2 -2 0.4 2 2 0.4 -2 2 0.4
scene.objects.v2.faces = 0 1 2 0 2 3
scene.objects.v3.material = veil
scene.objects.v3.vertices = -2 -2 0.6 2 -2 0.6 2 2 0.6 -2 2 0.6
scene.objects.v3.faces = 0 1 2 0 2 3
`)
	sc, err := Build(props, nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	// Fully transparent nulls: shadow ray passes with full throughput
	ray := core.NewRayRange(core.NewVec3(0, 0, -1), core.NewVec3(0, 0, 1), core.DefaultEpsilon, 2)
	visible, transmittance := sc.TraceShadow(material.NewPathVolumeInfo(nil), ray, 0.5)
	if !visible {
		t.Fatal("shadow ray must pass through null surfaces")
	}
	if !transmittance.Equals(core.White) {
		t.Fatalf("transmittance %v, expected white", transmittance)
	}

	// With partial transparency the products multiply
	veil, _ := sc.Materials.GetByName("veil")
	veil.(*material.Null).Transparency = sc.Textures["halfgrey"]

	visible, transmittance = sc.TraceShadow(material.NewPathVolumeInfo(nil), ray, 0.5)
	if !visible {
		t.Fatal("translucent veils must not block")
	}
	expected := 0.5 * 0.5 * 0.5
	if math.Abs(transmittance.X-expected) > 1e-9 {
		t.Fatalf("transmittance %v, expected %v through 3 veils", transmittance.X, expected)
	}

	// An opaque blocker stops the ray
	white, _ := sc.Materials.GetByName("white")
	sc.MeshMaterials[1] = white
	visible, _ = sc.TraceShadow(material.NewPathVolumeInfo(nil), ray, 0.5)
	if visible {
		t.Fatal("matte blocker must stop the shadow ray")
	}
}

func TestCameraRasterRoundTrip(t *testing.T) {
	cam := NewCamera(core.NewVec3(0, 0, -3), core.NewVec3(0, 0, 0), core.NewVec3(0, 1, 0), 45, 64, 48)

	for _, raster := range []core.Vec2{{X: 32, Y: 24}, {X: 5, Y: 5}, {X: 60, Y: 40}} {
		ray := cam.GenerateRay(raster.X, raster.Y, 0.5, 0.5)
		point := ray.At(4)
		x, y, visible := cam.WorldToRaster(point)
		if !visible {
			t.Fatalf("raster %v: projected point not visible", raster)
		}
		if math.Abs(x-raster.X) > 0.01 || math.Abs(y-raster.Y) > 0.01 {
			t.Fatalf("raster %v round-tripped to (%v, %v)", raster, x, y)
		}
	}

	// Points behind the camera never project
	if _, _, visible := cam.WorldToRaster(core.NewVec3(0, 0, -10)); visible {
		t.Fatal("point behind the camera must not be visible")
	}
}

func TestCameraPdfW(t *testing.T) {
	cam := NewCamera(core.NewVec3(0, 0, -3), core.NewVec3(0, 0, 0), core.NewVec3(0, 1, 0), 45, 64, 64)

	// Along the axis the pdf equals the squared image plane distance
	onAxis := cam.PdfW(cam.Forward())
	if onAxis <= 0 {
		t.Fatal("forward pdf must be positive")
	}
	// Behind the camera it must be zero
	if got := cam.PdfW(cam.Forward().Negate()); got != 0 {
		t.Fatalf("backward pdf %v, expected 0", got)
	}
	// Off axis the pdf grows with 1/cos^3
	offAxis := cam.PdfW(cam.GenerateRay(0, 0, 0.5, 0.5).Direction)
	if offAxis <= onAxis {
		t.Fatalf("off-axis pdf %v must exceed on-axis %v", offAxis, onAxis)
	}
}
