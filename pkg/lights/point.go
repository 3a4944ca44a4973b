package lights

import (
	"math"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/texture"
)

// finiteBase is shared by the punctual (delta) lights
type finiteBase struct {
	LName string
}

func (f *finiteBase) Name() string          { return f.LName }
func (f *finiteBase) IsEnvironmental() bool { return false }
func (f *finiteBase) IsInfinite() bool      { return false }
func (f *finiteBase) IsIntersectable() bool { return false }
func (f *finiteBase) IsDelta() bool         { return true }

func (f *finiteBase) Preprocess(worldCenter core.Vec3, worldRadius float64) {}

// PointLight emits uniformly in all directions from a point
type PointLight struct {
	finiteBase
	Pos      core.Vec3
	Emission core.Vec3 // radiant intensity
}

// NewPointLight creates an isotropic point light
func NewPointLight(name string, pos, emission core.Vec3) *PointLight {
	return &PointLight{finiteBase: finiteBase{LName: name}, Pos: pos, Emission: emission}
}

func (l *PointLight) Type() LightType { return TypePoint }

func (l *PointLight) Power() float64 {
	return 4 * math.Pi * l.Emission.Filter()
}

func (l *PointLight) Emit(u0, u1, u2, u3 float64) (EmitSample, bool) {
	dir := core.UniformSampleSphere(u0, u1)
	return EmitSample{
		Ray:             core.NewRay(l.Pos, dir),
		Radiance:        l.Emission,
		EmissionPdfW:    1 / (4 * math.Pi),
		DirectPdfA:      1,
		CosThetaAtLight: 1,
	}, true
}

func (l *PointLight) Illuminate(p core.Vec3, u0, u1 float64) (IlluminateSample, bool) {
	delta := l.Pos.Subtract(p)
	distSq := delta.LengthSquared()
	if distSq < 1e-12 {
		return IlluminateSample{}, false
	}
	dist := math.Sqrt(distSq)

	return IlluminateSample{
		Direction: delta.Multiply(1 / dist),
		Distance:  dist,
		Radiance:  l.Emission.Multiply(1 / distSq),
		// Delta light: the pdf is a Dirac normalized to 1 over the
		// sampled point
		DirectPdfW:      1,
		EmissionPdfW:    1 / (4 * math.Pi),
		CosThetaAtLight: 1,
	}, true
}

// MapPointLight shapes a point light's intensity with an image map
// indexed by direction (an IES-like goniometric map)
type MapPointLight struct {
	PointLight
	Map *texture.ImageMap
}

// NewMapPointLight creates a goniometric point light
func NewMapPointLight(name string, pos, emission core.Vec3, im *texture.ImageMap) *MapPointLight {
	return &MapPointLight{
		PointLight: PointLight{finiteBase: finiteBase{LName: name}, Pos: pos, Emission: emission},
		Map:        im,
	}
}

func (l *MapPointLight) Type() LightType { return TypeMapPoint }

func (l *MapPointLight) scale(dir core.Vec3) core.Vec3 {
	u := core.SphericalPhi(dir) / (2 * math.Pi)
	v := core.SphericalTheta(dir) / math.Pi
	return l.Map.Bilinear(u, v)
}

func (l *MapPointLight) Emit(u0, u1, u2, u3 float64) (EmitSample, bool) {
	sample, ok := l.PointLight.Emit(u0, u1, u2, u3)
	if !ok {
		return sample, false
	}
	sample.Radiance = sample.Radiance.MultiplyVec(l.scale(sample.Ray.Direction))
	return sample, !sample.Radiance.IsZero()
}

func (l *MapPointLight) Illuminate(p core.Vec3, u0, u1 float64) (IlluminateSample, bool) {
	sample, ok := l.PointLight.Illuminate(p, u0, u1)
	if !ok {
		return sample, false
	}
	sample.Radiance = sample.Radiance.MultiplyVec(l.scale(sample.Direction.Negate()))
	return sample, !sample.Radiance.IsZero()
}

// SpotLight restricts emission to a cone with a soft falloff band
type SpotLight struct {
	finiteBase
	Pos      core.Vec3
	Target   core.Vec3
	Emission core.Vec3

	ConeAngle      float64 // full cone half-angle, radians
	ConeDeltaAngle float64 // falloff band width, radians

	dir           core.Vec3
	cosTotalWidth float64
	cosFalloff    float64
}

// NewSpotLight creates a spot light aimed at a target
func NewSpotLight(name string, pos, target, emission core.Vec3, coneAngle, coneDeltaAngle float64) *SpotLight {
	l := &SpotLight{
		finiteBase:     finiteBase{LName: name},
		Pos:            pos,
		Target:         target,
		Emission:       emission,
		ConeAngle:      coneAngle,
		ConeDeltaAngle: coneDeltaAngle,
	}
	l.dir = target.Subtract(pos).Normalize()
	l.cosTotalWidth = math.Cos(coneAngle)
	l.cosFalloff = math.Cos(coneAngle - coneDeltaAngle)
	return l
}

func (l *SpotLight) Type() LightType { return TypeSpot }

func (l *SpotLight) falloff(cosTheta float64) float64 {
	if cosTheta < l.cosTotalWidth {
		return 0
	}
	if cosTheta > l.cosFalloff {
		return 1
	}
	delta := (cosTheta - l.cosTotalWidth) / (l.cosFalloff - l.cosTotalWidth)
	return delta * delta * delta * delta
}

func (l *SpotLight) Power() float64 {
	return l.Emission.Filter() * 2 * math.Pi * (1 - 0.5*(l.cosFalloff+l.cosTotalWidth))
}

func (l *SpotLight) Emit(u0, u1, u2, u3 float64) (EmitSample, bool) {
	frame := core.NewFrame(l.dir)
	localDir := core.UniformSampleCone(u0, u1, l.cosTotalWidth)
	dir := frame.ToWorld(localDir)

	fall := l.falloff(localDir.Z)
	if fall <= 0 {
		return EmitSample{}, false
	}

	return EmitSample{
		Ray:             core.NewRay(l.Pos, dir),
		Radiance:        l.Emission.Multiply(fall),
		EmissionPdfW:    core.UniformConePdf(l.cosTotalWidth),
		DirectPdfA:      1,
		CosThetaAtLight: 1,
	}, true
}

func (l *SpotLight) Illuminate(p core.Vec3, u0, u1 float64) (IlluminateSample, bool) {
	delta := l.Pos.Subtract(p)
	distSq := delta.LengthSquared()
	if distSq < 1e-12 {
		return IlluminateSample{}, false
	}
	dist := math.Sqrt(distSq)
	dir := delta.Multiply(1 / dist)

	fall := l.falloff(dir.Negate().Dot(l.dir))
	if fall <= 0 {
		return IlluminateSample{}, false
	}

	return IlluminateSample{
		Direction:       dir,
		Distance:        dist,
		Radiance:        l.Emission.Multiply(fall / distSq),
		DirectPdfW:      1,
		EmissionPdfW:    core.UniformConePdf(l.cosTotalWidth),
		CosThetaAtLight: 1,
	}, true
}

// ProjectionLight projects an image map through a frustum, like a slide
// projector
type ProjectionLight struct {
	SpotLight
	Map *texture.ImageMap
	FOV float64
}

// NewProjectionLight creates a projector light
func NewProjectionLight(name string, pos, target, emission core.Vec3, fov float64, im *texture.ImageMap) *ProjectionLight {
	spot := NewSpotLight(name, pos, target, emission, fov/2, 0)
	return &ProjectionLight{SpotLight: *spot, Map: im, FOV: fov}
}

func (l *ProjectionLight) Type() LightType { return TypeProjection }

// project maps a world direction to image plane coordinates, false when
// outside the frustum
func (l *ProjectionLight) project(dir core.Vec3) (core.Vec3, bool) {
	frame := core.NewFrame(l.dir)
	local := frame.ToLocal(dir)
	if local.Z <= 0 {
		return core.Black, false
	}
	scale := math.Tan(l.FOV / 2)
	u := local.X / (local.Z * scale)
	v := local.Y / (local.Z * scale)
	if u < -1 || u > 1 || v < -1 || v > 1 {
		return core.Black, false
	}
	return l.Map.Bilinear((u+1)/2, (v+1)/2), true
}

func (l *ProjectionLight) Emit(u0, u1, u2, u3 float64) (EmitSample, bool) {
	sample, ok := l.SpotLight.Emit(u0, u1, u2, u3)
	if !ok {
		return sample, false
	}
	slide, inside := l.project(sample.Ray.Direction)
	if !inside {
		return EmitSample{}, false
	}
	sample.Radiance = sample.Radiance.MultiplyVec(slide)
	return sample, true
}

func (l *ProjectionLight) Illuminate(p core.Vec3, u0, u1 float64) (IlluminateSample, bool) {
	sample, ok := l.SpotLight.Illuminate(p, u0, u1)
	if !ok {
		return sample, false
	}
	slide, inside := l.project(sample.Direction.Negate())
	if !inside {
		return IlluminateSample{}, false
	}
	sample.Radiance = sample.Radiance.MultiplyVec(slide)
	return sample, true
}

// DistantLight is a directional light with a small angular spread
type DistantLight struct {
	envBase
	Dir      core.Vec3 // direction the light travels
	Emission core.Vec3
	// Theta is the half-angle spread in radians; values below 1e-4 are
	// clamped to 1e-4, so the light is never a delta light
	Theta float64

	cosThetaMax float64
}

// NewDistantLight creates a directional light
func NewDistantLight(name string, dir, emission core.Vec3, theta float64) *DistantLight {
	l := &DistantLight{envBase: envBase{LName: name}, Dir: dir.Normalize(), Emission: emission, Theta: theta}
	l.cosThetaMax = math.Cos(math.Max(theta, 1e-4))
	return l
}

func (l *DistantLight) Type() LightType { return TypeDistant }
func (l *DistantLight) IsDelta() bool   { return false }

func (l *DistantLight) Power() float64 {
	return l.Emission.Filter() * math.Pi * l.worldRadius * l.worldRadius
}

func (l *DistantLight) Emit(u0, u1, u2, u3 float64) (EmitSample, bool) {
	frame := core.NewFrame(l.Dir)
	dir := frame.ToWorld(core.UniformSampleCone(u0, u1, l.cosThetaMax))
	pdfW := core.UniformConePdf(l.cosThetaMax)
	return l.emitFromSphere(dir, pdfW, l.Emission, u2, u3)
}

func (l *DistantLight) Illuminate(p core.Vec3, u0, u1 float64) (IlluminateSample, bool) {
	frame := core.NewFrame(l.Dir.Negate())
	dir := frame.ToWorld(core.UniformSampleCone(u0, u1, l.cosThetaMax))
	pdfW := core.UniformConePdf(l.cosThetaMax)
	return l.illuminateSample(dir, pdfW, l.Emission)
}

// SharpDistantLight is a delta directional light
type SharpDistantLight struct {
	envBase
	Dir      core.Vec3
	Emission core.Vec3
}

// NewSharpDistantLight creates a delta directional light
func NewSharpDistantLight(name string, dir, emission core.Vec3) *SharpDistantLight {
	return &SharpDistantLight{envBase: envBase{LName: name}, Dir: dir.Normalize(), Emission: emission}
}

func (l *SharpDistantLight) Type() LightType { return TypeSharpDistant }
func (l *SharpDistantLight) IsDelta() bool   { return true }

func (l *SharpDistantLight) Power() float64 {
	return l.Emission.Filter() * math.Pi * l.worldRadius * l.worldRadius
}

func (l *SharpDistantLight) Emit(u0, u1, u2, u3 float64) (EmitSample, bool) {
	sample, ok := l.emitFromSphere(l.Dir, 1, l.Emission, u2, u3)
	return sample, ok
}

func (l *SharpDistantLight) Illuminate(p core.Vec3, u0, u1 float64) (IlluminateSample, bool) {
	return IlluminateSample{
		Direction:       l.Dir.Negate(),
		Distance:        math.Inf(1),
		Radiance:        l.Emission,
		DirectPdfW:      1,
		EmissionPdfW:    1 / (math.Pi * l.worldRadius * l.worldRadius),
		CosThetaAtLight: 1,
	}, true
}
