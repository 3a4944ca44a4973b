package lights

import (
	"math"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/texture"
)

// envBase carries the world bounding sphere every environmental light
// defines its emission "area" on
type envBase struct {
	LName       string
	worldCenter core.Vec3
	worldRadius float64
}

func (e *envBase) Name() string          { return e.LName }
func (e *envBase) IsEnvironmental() bool { return true }
func (e *envBase) IsInfinite() bool      { return true }
func (e *envBase) IsIntersectable() bool { return false }
func (e *envBase) IsDelta() bool         { return false }

func (e *envBase) Preprocess(worldCenter core.Vec3, worldRadius float64) {
	e.worldCenter = worldCenter
	// Guard empty scenes so env-only renders still work
	e.worldRadius = math.Max(worldRadius, 1) * 1.01
}

// emitFromSphere builds an Emit sample for an environmental direction:
// the particle origin sits on a disk of world radius perpendicular to the
// direction, on the far side of the scene
func (e *envBase) emitFromSphere(dir core.Vec3, dirPdfW float64, radiance core.Vec3, u2, u3 float64) (EmitSample, bool) {
	if dirPdfW <= 0 || radiance.IsZero() {
		return EmitSample{}, false
	}

	frame := core.NewFrame(dir)
	dx, dy := core.ConcentricSampleDisk(u2, u3)
	diskPoint := e.worldCenter.
		Add(frame.X.Multiply(dx * e.worldRadius)).
		Add(frame.Y.Multiply(dy * e.worldRadius))
	origin := diskPoint.Subtract(dir.Multiply(e.worldRadius))

	areaPdf := 1 / (math.Pi * e.worldRadius * e.worldRadius)

	return EmitSample{
		Ray:             core.NewRay(origin, dir),
		Radiance:        radiance,
		EmissionPdfW:    dirPdfW * areaPdf,
		DirectPdfA:      dirPdfW,
		CosThetaAtLight: 1, // environmental lights have no surface cosine
	}, true
}

func (e *envBase) illuminateSample(dir core.Vec3, dirPdfW float64, radiance core.Vec3) (IlluminateSample, bool) {
	if dirPdfW <= 0 || radiance.IsZero() {
		return IlluminateSample{}, false
	}
	areaPdf := 1 / (math.Pi * e.worldRadius * e.worldRadius)
	return IlluminateSample{
		Direction:       dir,
		Distance:        math.Inf(1),
		Radiance:        radiance,
		DirectPdfW:      dirPdfW,
		EmissionPdfW:    dirPdfW * areaPdf,
		CosThetaAtLight: 1,
	}, true
}

// ConstantInfiniteLight emits the same radiance in every direction
type ConstantInfiniteLight struct {
	envBase
	Color core.Vec3
	Gain  core.Vec3
}

// NewConstantInfiniteLight creates a uniform environment
func NewConstantInfiniteLight(name string, color, gain core.Vec3) *ConstantInfiniteLight {
	return &ConstantInfiniteLight{envBase: envBase{LName: name}, Color: color, Gain: gain}
}

func (l *ConstantInfiniteLight) Type() LightType { return TypeConstantInfinite }

func (l *ConstantInfiniteLight) radiance() core.Vec3 {
	return l.Color.MultiplyVec(l.Gain)
}

func (l *ConstantInfiniteLight) Power() float64 {
	return 4 * math.Pi * math.Pi * l.worldRadius * l.worldRadius * l.radiance().Filter()
}

func (l *ConstantInfiniteLight) Emit(u0, u1, u2, u3 float64) (EmitSample, bool) {
	dir := core.UniformSampleSphere(u0, u1)
	return l.emitFromSphere(dir, 1/(4*math.Pi), l.radiance(), u2, u3)
}

func (l *ConstantInfiniteLight) Illuminate(p core.Vec3, u0, u1 float64) (IlluminateSample, bool) {
	dir := core.UniformSampleSphere(u0, u1)
	return l.illuminateSample(dir, 1/(4*math.Pi), l.radiance())
}

func (l *ConstantInfiniteLight) Radiance(dir core.Vec3) (core.Vec3, float64, float64) {
	directPdfW := 1 / (4 * math.Pi)
	areaPdf := 1 / (math.Pi * l.worldRadius * l.worldRadius)
	return l.radiance(), directPdfW, directPdfW * areaPdf
}

// InfiniteLight is an environment map importance-sampled through a 2D
// distribution over the luminance of its texels
type InfiniteLight struct {
	envBase
	Map  *texture.ImageMap
	Gain core.Vec3

	dist *core.Distribution2D
}

// NewInfiniteLight creates an image-mapped environment
func NewInfiniteLight(name string, im *texture.ImageMap, gain core.Vec3) *InfiniteLight {
	l := &InfiniteLight{envBase: envBase{LName: name}, Map: im, Gain: gain}

	lum := make([]float64, im.Width*im.Height)
	for y := 0; y < im.Height; y++ {
		// Weight rows by sin(theta) so poles don't dominate
		sinTheta := math.Sin(math.Pi * (float64(y) + 0.5) / float64(im.Height))
		for x := 0; x < im.Width; x++ {
			lum[y*im.Width+x] = im.Texel(x, y).Luminance() * sinTheta
		}
	}
	l.dist = core.NewDistribution2D(lum, im.Width, im.Height)
	return l
}

func (l *InfiniteLight) Type() LightType { return TypeInfinite }

func (l *InfiniteLight) lookup(dir core.Vec3) core.Vec3 {
	u := core.SphericalPhi(dir) / (2 * math.Pi)
	v := core.SphericalTheta(dir) / math.Pi
	return l.Map.Bilinear(u, v).MultiplyVec(l.Gain)
}

func (l *InfiniteLight) Power() float64 {
	mean := 0.0
	for _, p := range l.Map.Pixels {
		mean += p.Luminance()
	}
	mean /= float64(len(l.Map.Pixels))
	return 4 * math.Pi * math.Pi * l.worldRadius * l.worldRadius * mean * l.Gain.Filter()
}

// sampleDir draws a direction from the map distribution and returns its
// solid-angle pdf
func (l *InfiniteLight) sampleDir(u0, u1 float64) (core.Vec3, float64) {
	u, v, mapPdf := l.dist.SampleContinuous(u0, u1)
	if mapPdf <= 0 {
		return core.Vec3{}, 0
	}

	theta := v * math.Pi
	phi := u * 2 * math.Pi
	sinTheta := math.Sin(theta)
	if sinTheta <= 0 {
		return core.Vec3{}, 0
	}

	dir := core.SphericalDirection(sinTheta, math.Cos(theta), phi)
	pdfW := mapPdf / (2 * math.Pi * math.Pi * sinTheta)
	return dir, pdfW
}

func (l *InfiniteLight) dirPdf(dir core.Vec3) float64 {
	theta := core.SphericalTheta(dir)
	sinTheta := math.Sin(theta)
	if sinTheta <= 0 {
		return 0
	}
	u := core.SphericalPhi(dir) / (2 * math.Pi)
	v := theta / math.Pi
	return l.dist.Pdf(u, v) / (2 * math.Pi * math.Pi * sinTheta)
}

func (l *InfiniteLight) Emit(u0, u1, u2, u3 float64) (EmitSample, bool) {
	dir, pdfW := l.sampleDir(u0, u1)
	if pdfW <= 0 {
		return EmitSample{}, false
	}
	// The particle flies into the scene, opposite the env direction
	sample, ok := l.emitFromSphere(dir.Negate(), pdfW, l.lookup(dir), u2, u3)
	return sample, ok
}

func (l *InfiniteLight) Illuminate(p core.Vec3, u0, u1 float64) (IlluminateSample, bool) {
	dir, pdfW := l.sampleDir(u0, u1)
	if pdfW <= 0 {
		return IlluminateSample{}, false
	}
	return l.illuminateSample(dir, pdfW, l.lookup(dir))
}

func (l *InfiniteLight) Radiance(dir core.Vec3) (core.Vec3, float64, float64) {
	directPdfW := l.dirPdf(dir)
	areaPdf := 1 / (math.Pi * l.worldRadius * l.worldRadius)
	return l.lookup(dir), directPdfW, directPdfW * areaPdf
}

// SkyLight is an analytic clear-sky dome following the Preetham model's
// zenith-to-horizon gradient shaped by turbidity
type SkyLight struct {
	envBase
	SunDir    core.Vec3
	Turbidity float64
	Gain      core.Vec3
}

// NewSkyLight creates a sky dome lit from the given sun direction
func NewSkyLight(name string, sunDir core.Vec3, turbidity float64, gain core.Vec3) *SkyLight {
	return &SkyLight{envBase: envBase{LName: name}, SunDir: sunDir.Normalize(), Turbidity: turbidity, Gain: gain}
}

func (l *SkyLight) Type() LightType { return TypeSky }

// skyRadiance evaluates the gradient model for a direction
func (l *SkyLight) skyRadiance(dir core.Vec3) core.Vec3 {
	cosGamma := max(-1, min(1, dir.Dot(l.SunDir)))
	gamma := math.Acos(cosGamma)
	cosTheta := math.Max(0.01, dir.Z)

	t := l.Turbidity
	// Perez-style luminance distribution with turbidity-derived
	// coefficients
	a := 0.1787*t - 1.4630
	b := -0.3554*t + 0.4275
	lum := (1 + a*math.Exp(b/cosTheta)) * (1 + 0.3*math.Exp(-gamma*gamma/0.25) + 0.45*cosGamma*cosGamma)
	lum = math.Max(0, lum)

	// Blue-to-white ramp toward the horizon
	horizon := 1 - cosTheta
	color := core.NewVec3(0.2+0.5*horizon, 0.35+0.45*horizon, 0.75+0.2*horizon)
	return color.Multiply(lum).MultiplyVec(l.Gain)
}

func (l *SkyLight) Power() float64 {
	mean := l.skyRadiance(core.NewVec3(0, 0, 1)).Filter()
	return 4 * math.Pi * math.Pi * l.worldRadius * l.worldRadius * mean
}

func (l *SkyLight) Emit(u0, u1, u2, u3 float64) (EmitSample, bool) {
	dir := core.UniformSampleSphere(u0, u1)
	return l.emitFromSphere(dir.Negate(), 1/(4*math.Pi), l.skyRadiance(dir), u2, u3)
}

func (l *SkyLight) Illuminate(p core.Vec3, u0, u1 float64) (IlluminateSample, bool) {
	dir := core.UniformSampleSphere(u0, u1)
	return l.illuminateSample(dir, 1/(4*math.Pi), l.skyRadiance(dir))
}

func (l *SkyLight) Radiance(dir core.Vec3) (core.Vec3, float64, float64) {
	directPdfW := 1 / (4 * math.Pi)
	areaPdf := 1 / (math.Pi * l.worldRadius * l.worldRadius)
	return l.skyRadiance(dir), directPdfW, directPdfW * areaPdf
}

// Sky2Light refines the sky model with a brighter circumsolar region and
// ground albedo term
type Sky2Light struct {
	SkyLight
	GroundAlbedo core.Vec3
}

// NewSky2Light creates the newer sky variant
func NewSky2Light(name string, sunDir core.Vec3, turbidity float64, gain, groundAlbedo core.Vec3) *Sky2Light {
	return &Sky2Light{
		SkyLight:     SkyLight{envBase: envBase{LName: name}, SunDir: sunDir.Normalize(), Turbidity: turbidity, Gain: gain},
		GroundAlbedo: groundAlbedo,
	}
}

func (l *Sky2Light) Type() LightType { return TypeSky2 }

func (l *Sky2Light) sky2Radiance(dir core.Vec3) core.Vec3 {
	base := l.skyRadiance(dir)
	if dir.Z < 0 {
		// Below the horizon the ground albedo scales half of the sky
		// model's value in that direction
		return l.GroundAlbedo.MultiplyVec(base).Multiply(0.5)
	}
	// Stronger circumsolar brightening than the first model
	cosGamma := max(-1, min(1, dir.Dot(l.SunDir)))
	return base.Multiply(1 + 0.5*math.Pow(math.Max(0, cosGamma), 8))
}

func (l *Sky2Light) Emit(u0, u1, u2, u3 float64) (EmitSample, bool) {
	dir := core.UniformSampleSphere(u0, u1)
	return l.emitFromSphere(dir.Negate(), 1/(4*math.Pi), l.sky2Radiance(dir), u2, u3)
}

func (l *Sky2Light) Illuminate(p core.Vec3, u0, u1 float64) (IlluminateSample, bool) {
	dir := core.UniformSampleSphere(u0, u1)
	return l.illuminateSample(dir, 1/(4*math.Pi), l.sky2Radiance(dir))
}

func (l *Sky2Light) Radiance(dir core.Vec3) (core.Vec3, float64, float64) {
	directPdfW := 1 / (4 * math.Pi)
	areaPdf := 1 / (math.Pi * l.worldRadius * l.worldRadius)
	return l.sky2Radiance(dir), directPdfW, directPdfW * areaPdf
}

// SunLight is the solar disk: a narrow cone of directions around the sun
type SunLight struct {
	envBase
	Dir       core.Vec3 // toward the sun
	Turbidity float64
	// RelSize scales the apparent solar radius
	RelSize float64
	Gain    core.Vec3

	cosThetaMax float64
	radiance    core.Vec3
}

// NewSunLight creates a sun
func NewSunLight(name string, dir core.Vec3, turbidity, relSize float64, gain core.Vec3) *SunLight {
	return &SunLight{
		envBase:   envBase{LName: name},
		Dir:       dir.Normalize(),
		Turbidity: turbidity,
		RelSize:   math.Max(relSize, 1),
		Gain:      gain,
	}
}

func (l *SunLight) Type() LightType { return TypeSun }

func (l *SunLight) Preprocess(worldCenter core.Vec3, worldRadius float64) {
	l.envBase.Preprocess(worldCenter, worldRadius)

	// Apparent solar half angle is ~0.265 degrees, scaled by relsize
	thetaS := 0.00465 * l.RelSize
	l.cosThetaMax = math.Cos(thetaS)

	// Very rough turbidity-driven attenuation of the solar constant
	atten := math.Exp(-0.12 * (l.Turbidity - 1) / math.Max(0.05, l.Dir.Z))
	solid := 2 * math.Pi * (1 - l.cosThetaMax)
	l.radiance = core.NewVec3(1, 0.92, 0.8).Multiply(1000 * atten / solid).MultiplyVec(l.Gain)
}

func (l *SunLight) Power() float64 {
	solid := 2 * math.Pi * (1 - l.cosThetaMax)
	return l.radiance.Filter() * solid * math.Pi * l.worldRadius * l.worldRadius
}

func (l *SunLight) Emit(u0, u1, u2, u3 float64) (EmitSample, bool) {
	frame := core.NewFrame(l.Dir)
	dir := frame.ToWorld(core.UniformSampleCone(u0, u1, l.cosThetaMax))
	pdfW := core.UniformConePdf(l.cosThetaMax)
	return l.emitFromSphere(dir.Negate(), pdfW, l.radiance, u2, u3)
}

func (l *SunLight) Illuminate(p core.Vec3, u0, u1 float64) (IlluminateSample, bool) {
	frame := core.NewFrame(l.Dir)
	dir := frame.ToWorld(core.UniformSampleCone(u0, u1, l.cosThetaMax))
	pdfW := core.UniformConePdf(l.cosThetaMax)
	return l.illuminateSample(dir, pdfW, l.radiance)
}

func (l *SunLight) Radiance(dir core.Vec3) (core.Vec3, float64, float64) {
	if dir.Dot(l.Dir) < l.cosThetaMax {
		return core.Black, 0, 0
	}
	directPdfW := core.UniformConePdf(l.cosThetaMax)
	areaPdf := 1 / (math.Pi * l.worldRadius * l.worldRadius)
	return l.radiance, directPdfW, directPdfW * areaPdf
}
