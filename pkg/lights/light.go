package lights

import (
	"github.com/df07/go-light-transport/pkg/core"
)

// LightType identifies the light variant
type LightType string

const (
	TypeTriangle         LightType = "triangle"
	TypeInfinite         LightType = "infinite"
	TypeConstantInfinite LightType = "constantinfinite"
	TypeSky              LightType = "sky"
	TypeSky2             LightType = "sky2"
	TypeSun              LightType = "sun"
	TypePoint            LightType = "point"
	TypeMapPoint         LightType = "mappoint"
	TypeSpot             LightType = "spot"
	TypeProjection       LightType = "projection"
	TypeDistant          LightType = "distant"
	TypeSharpDistant     LightType = "sharpdistant"
)

// EmitSample is a particle leaving a light
type EmitSample struct {
	Ray             core.Ray
	Radiance        core.Vec3
	EmissionPdfW    float64
	DirectPdfA      float64
	CosThetaAtLight float64
}

// IlluminateSample is a shadow-ray sample from a surface point to a light
type IlluminateSample struct {
	Direction       core.Vec3 // from the surface point toward the light
	Distance        float64
	Radiance        core.Vec3
	DirectPdfW      float64
	EmissionPdfW    float64
	CosThetaAtLight float64
}

// LightSource is the uniform contract over the light zoo
type LightSource interface {
	Name() string
	Type() LightType

	// Preprocess receives the scene bounding sphere before rendering;
	// infinite lights define their "area" on it
	Preprocess(worldCenter core.Vec3, worldRadius float64)

	// Power estimates total emitted power, used for power-weighted
	// light picking
	Power() float64

	// IsEnvironmental lights surround the scene (sky, sun, infinite)
	IsEnvironmental() bool
	// IsInfinite lights sit at infinity
	IsInfinite() bool
	// IsIntersectable lights have geometry rays can hit (mesh emitters)
	IsIntersectable() bool
	// IsDelta lights cannot be hit by BSDF sampling (point, spot,
	// sharp distant); direct-light MIS treats their pdf as a Dirac
	IsDelta() bool

	// Emit samples a particle leaving the light
	Emit(u0, u1, u2, u3 float64) (EmitSample, bool)

	// Illuminate samples a shadow ray from the given surface point
	Illuminate(p core.Vec3, u0, u1 float64) (IlluminateSample, bool)
}

// EnvLightSource additionally answers radiance queries for rays escaping
// the scene
type EnvLightSource interface {
	LightSource

	// Radiance returns the emitted radiance for an escaped ray
	// direction plus the pdfs MIS needs
	Radiance(dir core.Vec3) (core.Vec3, float64, float64)
}

// triKey addresses one emissive triangle
type triKey struct {
	mesh uint32
	tri  uint32
}

// LightDefinitions maintains all lights of a scene: the full list, the
// environmental subset, the intersectable subset, the mesh-triangle to
// light map and the power distribution used for light picking. It is
// rebuilt on lights-only scene edits.
type LightDefinitions struct {
	lights        []LightSource
	envLights     []EnvLightSource
	intersectable []LightSource

	triangleLights map[triKey]*TriangleLight

	distribution *core.Distribution1D
}

// NewLightDefinitions creates an empty table
func NewLightDefinitions() *LightDefinitions {
	return &LightDefinitions{triangleLights: make(map[triKey]*TriangleLight)}
}

// Add registers a light
func (ld *LightDefinitions) Add(light LightSource) {
	ld.lights = append(ld.lights, light)

	if env, ok := light.(EnvLightSource); ok && light.IsEnvironmental() {
		ld.envLights = append(ld.envLights, env)
	}
	if light.IsIntersectable() {
		ld.intersectable = append(ld.intersectable, light)
	}
	if tl, ok := light.(*TriangleLight); ok {
		ld.triangleLights[triKey{mesh: tl.MeshIndex, tri: tl.TriIndex}] = tl
	}
}

// Preprocess forwards the scene bounding sphere to every light and builds
// the power distribution
func (ld *LightDefinitions) Preprocess(worldCenter core.Vec3, worldRadius float64) {
	powers := make([]float64, len(ld.lights))
	for i, light := range ld.lights {
		light.Preprocess(worldCenter, worldRadius)
		powers[i] = light.Power()
	}
	if len(powers) > 0 {
		ld.distribution = core.NewDistribution1D(powers)
	}
}

// Len returns the number of lights
func (ld *LightDefinitions) Len() int { return len(ld.lights) }

// Lights returns all lights
func (ld *LightDefinitions) Lights() []LightSource { return ld.lights }

// EnvLights returns the environmental subset
func (ld *LightDefinitions) EnvLights() []EnvLightSource { return ld.envLights }

// SampleLight draws one light with probability proportional to its power
// estimate
func (ld *LightDefinitions) SampleLight(u float64) (LightSource, float64, int) {
	if len(ld.lights) == 0 || ld.distribution == nil {
		return nil, 0, -1
	}
	index, pdf := ld.distribution.SampleDiscrete(u)
	return ld.lights[index], pdf, index
}

// LightPickPdf returns the probability of SampleLight drawing the light
// at the given index
func (ld *LightDefinitions) LightPickPdf(index int) float64 {
	if ld.distribution == nil {
		return 0
	}
	return ld.distribution.DiscretePdf(index)
}

// IndexOf returns the table index of a light, -1 if unknown
func (ld *LightDefinitions) IndexOf(light LightSource) int {
	for i, l := range ld.lights {
		if l == light {
			return i
		}
	}
	return -1
}

// TriangleLightFor finds the light covering the given emissive mesh
// triangle in O(1), nil when the triangle does not emit
func (ld *LightDefinitions) TriangleLightFor(meshIndex, triIndex uint32) *TriangleLight {
	return ld.triangleLights[triKey{mesh: meshIndex, tri: triIndex}]
}
