package material

import (
	"fmt"
	"math"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/texture"
)

// Volume is a participating medium. A volume is also a material: medium
// scatter events use its phase function through the regular BSDF contract.
type Volume interface {
	Material

	// Priority orders overlapping volumes; the highest priority wins
	Priority() int

	// IOR returns the refraction index of the medium at a point
	IOR(hp *core.HitPoint) float64

	// Scatter advances a ray through the medium. It returns the distance
	// of a scatter event (<= 0 when the ray crosses the segment without
	// scattering) and the medium emission, and multiplies
	// connectionThroughput by the transmittance (with the scattering
	// weight folded in on a scatter event).
	Scatter(ray core.Ray, u float64, scatteredStart bool, connectionThroughput *core.Vec3) (float64, core.Vec3)
}

// BaseVolume carries the shared volume attributes and the
// Henyey-Greenstein phase function every medium uses for its BSDF contract
type BaseVolume struct {
	BaseMaterial
	IORTex      texture.Texture
	VolPriority int
	// G is the scattering asymmetry; 0 is isotropic
	G texture.Texture
	// MultiScattering allows more than one scatter event per path
	// segment inside the medium
	MultiScattering bool
}

func (v *BaseVolume) Priority() int { return v.VolPriority }

func (v *BaseVolume) IOR(hp *core.HitPoint) float64 {
	if v.IORTex == nil {
		return 1
	}
	return v.IORTex.Float(hp)
}

func (v *BaseVolume) IsPassThrough() bool { return false }

func (v *BaseVolume) GetPassThroughTransparency(hp *core.HitPoint, localFixedDir core.Vec3, passThroughEvent float64) core.Vec3 {
	return core.Black
}

func (v *BaseVolume) gValue(hp *core.HitPoint) float64 {
	if v.G == nil {
		return 0
	}
	return max(-0.999, min(0.999, v.G.Float(hp)))
}

// hgPhase evaluates the Henyey-Greenstein phase function for the cosine
// between the two directions
func hgPhase(cosTheta, g float64) float64 {
	denom := 1 + g*g + 2*g*cosTheta
	return (1 / (4 * math.Pi)) * (1 - g*g) / (denom * math.Sqrt(denom))
}

// hgSample draws a direction from the Henyey-Greenstein distribution
// around the fixed direction
func hgSample(fixedDir core.Vec3, g, u0, u1 float64) core.Vec3 {
	var cosTheta float64
	if math.Abs(g) < 1e-3 {
		cosTheta = 1 - 2*u0
	} else {
		sqr := (1 - g*g) / (1 - g + 2*g*u0)
		cosTheta = (1 + g*g - sqr*sqr) / (2 * g)
	}
	sinTheta := math.Sqrt(max(0, 1-cosTheta*cosTheta))
	phi := 2 * math.Pi * u1

	frame := core.NewFrame(fixedDir.Negate())
	return frame.ToWorld(core.SphericalDirection(sinTheta, cosTheta, phi))
}

// phase-function BSDF contract shared by all volumes. Directions are in
// the scatter event's local frame (Z along the fixed direction's frame);
// volumes ignore hemispheres.

func (v *BaseVolume) Evaluate(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (core.Vec3, BSDFEvent, float64, float64) {
	g := v.gValue(hp)
	phase := hgPhase(localLightDir.Dot(localEyeDir), g)
	if phase <= 0 {
		return core.Black, NoneEvent, 0, 0
	}
	// The phase function is its own pdf in both directions
	return core.NewVec3(phase, phase, phase), DiffuseEvent | ReflectEvent, phase, phase
}

func (v *BaseVolume) Sample(hp *core.HitPoint, localFixedDir core.Vec3, u0, u1, passThroughEvent float64) (core.Vec3, core.Vec3, float64, float64, BSDFEvent, bool) {
	g := v.gValue(hp)
	sampledDir := hgSample(localFixedDir, g, u0, u1)
	phase := hgPhase(localFixedDir.Dot(sampledDir), g)
	if phase <= 0 {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}
	// value/pdf cancel for a perfectly importance-sampled phase function
	return sampledDir, core.White, phase, 1, DiffuseEvent | ReflectEvent, true
}

func (v *BaseVolume) Pdf(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (float64, float64) {
	g := v.gValue(hp)
	phase := hgPhase(localLightDir.Dot(localEyeDir), g)
	return phase, phase
}

func (v *BaseVolume) IsDelta(hp *core.HitPoint) bool { return false }

// ClearVolume only absorbs; it never scatters
type ClearVolume struct {
	BaseVolume
	Absorption texture.Texture
}

// NewClearVolume creates a purely absorbing medium
func NewClearVolume(name string, ior texture.Texture, absorption texture.Texture, priority int) *ClearVolume {
	v := &ClearVolume{Absorption: absorption}
	v.BaseMaterial = NewBaseMaterial(name)
	v.IORTex = ior
	v.VolPriority = priority
	return v
}

func (v *ClearVolume) Type() Type          { return ClearVolumeType }
func (v *ClearVolume) Base() *BaseMaterial { return &v.BaseMaterial }

func (v *ClearVolume) Scatter(ray core.Ray, u float64, scatteredStart bool, connectionThroughput *core.Vec3) (float64, core.Vec3) {
	segment := ray.TMax - ray.TMin
	if math.IsInf(segment, 1) {
		segment = 0 // no absorption over an unbounded environment segment
	}
	hp := core.HitPoint{P: ray.At(ray.TMin + segment*0.5)}
	sigmaA := v.Absorption.Spectrum(&hp)
	if segment > 0 && !sigmaA.IsZero() {
		*connectionThroughput = connectionThroughput.MultiplyVec(sigmaA.Multiply(-segment).Exp())
	}
	return -1, core.Black
}

// HomogeneousVolume scatters and absorbs with constant coefficients
type HomogeneousVolume struct {
	BaseVolume
	SigmaA texture.Texture
	SigmaS texture.Texture
}

// NewHomogeneousVolume creates a constant-coefficient medium
func NewHomogeneousVolume(name string, ior, sigmaA, sigmaS, g texture.Texture, priority int, multiScattering bool) *HomogeneousVolume {
	v := &HomogeneousVolume{SigmaA: sigmaA, SigmaS: sigmaS}
	v.BaseMaterial = NewBaseMaterial(name)
	v.IORTex = ior
	v.VolPriority = priority
	v.G = g
	v.MultiScattering = multiScattering
	return v
}

func (v *HomogeneousVolume) Type() Type          { return HomogeneousVolumeType }
func (v *HomogeneousVolume) Base() *BaseMaterial { return &v.BaseMaterial }

func (v *HomogeneousVolume) Scatter(ray core.Ray, u float64, scatteredStart bool, connectionThroughput *core.Vec3) (float64, core.Vec3) {
	segment := ray.TMax - ray.TMin
	if segment <= 0 || math.IsInf(segment, 1) {
		return -1, core.Black
	}

	hp := core.HitPoint{P: ray.At(ray.TMin)}
	sigmaA := v.SigmaA.Spectrum(&hp)
	sigmaS := v.SigmaS.Spectrum(&hp)
	sigmaT := sigmaA.Add(sigmaS)

	scatterAllowed := !sigmaS.IsZero() && (v.MultiScattering || !scatteredStart)

	if scatterAllowed {
		// Sample a scattering distance against the mean extinction
		sigmaTMean := sigmaT.Filter()
		if sigmaTMean > 0 {
			t := -math.Log(1-u) / sigmaTMean
			if t < segment {
				// Scatter event inside the segment: weight by
				// transmittance * sigmaS over the sampling pdf
				pdf := sigmaTMean * math.Exp(-sigmaTMean*t)
				weight := sigmaT.Multiply(-t).Exp().MultiplyVec(sigmaS).Multiply(1 / pdf)
				*connectionThroughput = connectionThroughput.MultiplyVec(weight)
				return ray.TMin + t, v.emitted(&hp)
			}
			// Crossed without scattering: weight by the pass probability
			passProb := math.Exp(-sigmaTMean * segment)
			weight := sigmaT.Multiply(-segment).Exp().Multiply(1 / passProb)
			*connectionThroughput = connectionThroughput.MultiplyVec(weight)
			return -1, v.emitted(&hp)
		}
	}

	// Deterministic transmittance only
	if !sigmaT.IsZero() {
		*connectionThroughput = connectionThroughput.MultiplyVec(sigmaT.Multiply(-segment).Exp())
	}
	return -1, v.emitted(&hp)
}

func (v *HomogeneousVolume) emitted(hp *core.HitPoint) core.Vec3 {
	return v.EmittedRadiance(hp)
}

// HeterogeneousVolume ray-marches spatially varying coefficients
type HeterogeneousVolume struct {
	BaseVolume
	SigmaA texture.Texture
	SigmaS texture.Texture

	StepSize float64
	MaxSteps int
}

// NewHeterogeneousVolume creates a ray-marched medium. A zero or negative
// step size is a configuration error.
func NewHeterogeneousVolume(name string, ior, sigmaA, sigmaS, g texture.Texture, priority int, multiScattering bool, stepSize float64, maxSteps int) (*HeterogeneousVolume, error) {
	if stepSize <= 0 {
		return nil, fmt.Errorf("heterogeneous volume %q: step size must be > 0, got %g", name, stepSize)
	}
	if maxSteps <= 0 {
		maxSteps = 32
	}
	v := &HeterogeneousVolume{SigmaA: sigmaA, SigmaS: sigmaS, StepSize: stepSize, MaxSteps: maxSteps}
	v.BaseMaterial = NewBaseMaterial(name)
	v.IORTex = ior
	v.VolPriority = priority
	v.G = g
	v.MultiScattering = multiScattering
	return v, nil
}

func (v *HeterogeneousVolume) Type() Type          { return HeterogeneousVolumeType }
func (v *HeterogeneousVolume) Base() *BaseMaterial { return &v.BaseMaterial }

func (v *HeterogeneousVolume) Scatter(ray core.Ray, u float64, scatteredStart bool, connectionThroughput *core.Vec3) (float64, core.Vec3) {
	segment := ray.TMax - ray.TMin
	if segment <= 0 || math.IsInf(segment, 1) {
		return -1, core.Black
	}

	steps := int(math.Ceil(segment / v.StepSize))
	if steps > v.MaxSteps {
		steps = v.MaxSteps
	}
	stepLen := segment / float64(steps)

	transmittance := core.White
	// Optical-depth threshold drawn once for the whole march
	targetDepth := -math.Log(1 - u)
	opticalDepth := 0.0

	scatterAllowed := v.MultiScattering || !scatteredStart

	for i := 0; i < steps; i++ {
		tMid := ray.TMin + (float64(i)+0.5)*stepLen
		hp := core.HitPoint{P: ray.At(tMid)}
		sigmaA := v.SigmaA.Spectrum(&hp)
		sigmaS := v.SigmaS.Spectrum(&hp)
		sigmaT := sigmaA.Add(sigmaS)
		sigmaTMean := sigmaT.Filter()

		if scatterAllowed && !sigmaS.IsZero() && sigmaTMean > 0 {
			stepDepth := sigmaTMean * stepLen
			if opticalDepth+stepDepth >= targetDepth {
				// Scatter inside this step
				within := (targetDepth - opticalDepth) / sigmaTMean
				t := ray.TMin + float64(i)*stepLen + within
				pdf := sigmaTMean * math.Exp(-targetDepth)
				weight := transmittance.MultiplyVec(sigmaT.Multiply(-within).Exp()).MultiplyVec(sigmaS).Multiply(1 / pdf)
				*connectionThroughput = connectionThroughput.MultiplyVec(weight)
				return t, v.EmittedRadiance(&hp)
			}
			opticalDepth += stepDepth
		}

		transmittance = transmittance.MultiplyVec(sigmaT.Multiply(-stepLen).Exp())
	}

	if scatterAllowed && opticalDepth > 0 {
		// Survived the whole march: divide by the pass probability
		passProb := math.Exp(-opticalDepth)
		transmittance = transmittance.Multiply(1 / passProb)
	}
	*connectionThroughput = connectionThroughput.MultiplyVec(transmittance)
	return -1, core.Black
}
