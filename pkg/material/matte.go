package material

import (
	"math"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/texture"
)

// Matte is a perfectly diffuse (Lambertian) material
type Matte struct {
	BaseMaterial
	Kd texture.Texture
}

// NewMatte creates a matte material with the given diffuse reflectance
func NewMatte(name string, kd texture.Texture) *Matte {
	return &Matte{BaseMaterial: NewBaseMaterial(name), Kd: kd}
}

func (m *Matte) Type() Type          { return MatteType }
func (m *Matte) Base() *BaseMaterial { return &m.BaseMaterial }

func (m *Matte) IsDelta(hp *core.HitPoint) bool { return false }
func (m *Matte) IsPassThrough() bool            { return false }

func (m *Matte) GetPassThroughTransparency(hp *core.HitPoint, localFixedDir core.Vec3, passThroughEvent float64) core.Vec3 {
	return core.Black
}

func (m *Matte) Evaluate(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (core.Vec3, BSDFEvent, float64, float64) {
	if !core.SameHemisphere(localLightDir, localEyeDir) {
		return core.Black, NoneEvent, 0, 0
	}

	sampledDir := localLightDir
	fixedDir := localEyeDir
	if hp.FromLight {
		sampledDir, fixedDir = fixedDir, sampledDir
	}

	directPdfW := core.AbsCosTheta(sampledDir) * (1 / math.Pi)
	reversePdfW := core.AbsCosTheta(fixedDir) * (1 / math.Pi)

	f := m.Kd.Spectrum(hp).Multiply(1 / math.Pi)
	return f, DiffuseEvent | ReflectEvent, directPdfW, reversePdfW
}

func (m *Matte) Sample(hp *core.HitPoint, localFixedDir core.Vec3, u0, u1, passThroughEvent float64) (core.Vec3, core.Vec3, float64, float64, BSDFEvent, bool) {
	if core.AbsCosTheta(localFixedDir) < 1e-6 {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}

	sampledDir := core.CosineSampleHemisphere(u0, u1)
	absCos := core.AbsCosTheta(sampledDir)
	if absCos < 1e-6 {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}
	// Keep the sampled direction on the fixed direction's side
	if localFixedDir.Z < 0 {
		sampledDir.Z = -sampledDir.Z
	}

	pdfW := absCos * (1 / math.Pi)

	// f * |cos| / pdf collapses to Kd for a cosine-sampled Lambertian
	result := m.Kd.Spectrum(hp)
	return sampledDir, result, pdfW, absCos, DiffuseEvent | ReflectEvent, true
}

func (m *Matte) Pdf(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (float64, float64) {
	if !core.SameHemisphere(localLightDir, localEyeDir) {
		return 0, 0
	}
	sampledDir := localLightDir
	fixedDir := localEyeDir
	if hp.FromLight {
		sampledDir, fixedDir = fixedDir, sampledDir
	}
	return core.AbsCosTheta(sampledDir) * (1 / math.Pi), core.AbsCosTheta(fixedDir) * (1 / math.Pi)
}

// MatteTranslucent scatters diffusely on both sides of the surface
type MatteTranslucent struct {
	BaseMaterial
	Kr texture.Texture
	Kt texture.Texture
}

// NewMatteTranslucent creates a two-sided diffuse material
func NewMatteTranslucent(name string, kr, kt texture.Texture) *MatteTranslucent {
	return &MatteTranslucent{BaseMaterial: NewBaseMaterial(name), Kr: kr, Kt: kt}
}

func (m *MatteTranslucent) Type() Type          { return MatteTranslucentType }
func (m *MatteTranslucent) Base() *BaseMaterial { return &m.BaseMaterial }

func (m *MatteTranslucent) IsDelta(hp *core.HitPoint) bool { return false }
func (m *MatteTranslucent) IsPassThrough() bool            { return false }

func (m *MatteTranslucent) GetPassThroughTransparency(hp *core.HitPoint, localFixedDir core.Vec3, passThroughEvent float64) core.Vec3 {
	return core.Black
}

// ktValue returns the transmission reflectance scaled by (1 - Kr) so Kr+Kt
// conserves energy
func (m *MatteTranslucent) ktValue(hp *core.HitPoint) core.Vec3 {
	kr := m.Kr.Spectrum(hp)
	kt := m.Kt.Spectrum(hp)
	return kt.MultiplyVec(core.White.Subtract(kr))
}

func (m *MatteTranslucent) Evaluate(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (core.Vec3, BSDFEvent, float64, float64) {
	sampledDir := localLightDir
	fixedDir := localEyeDir
	if hp.FromLight {
		sampledDir, fixedDir = fixedDir, sampledDir
	}

	isReflect := core.SameHemisphere(localLightDir, localEyeDir)

	directPdfW := core.AbsCosTheta(sampledDir) * (0.5 / math.Pi)
	reversePdfW := core.AbsCosTheta(fixedDir) * (0.5 / math.Pi)

	if isReflect {
		f := m.Kr.Spectrum(hp).Multiply(1 / math.Pi)
		return f, DiffuseEvent | ReflectEvent, directPdfW, reversePdfW
	}
	f := m.ktValue(hp).Multiply(1 / math.Pi)
	return f, DiffuseEvent | TransmitEvent, directPdfW, reversePdfW
}

func (m *MatteTranslucent) Sample(hp *core.HitPoint, localFixedDir core.Vec3, u0, u1, passThroughEvent float64) (core.Vec3, core.Vec3, float64, float64, BSDFEvent, bool) {
	if core.AbsCosTheta(localFixedDir) < 1e-6 {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}

	sampledDir := core.CosineSampleHemisphere(u0, u1)
	absCos := core.AbsCosTheta(sampledDir)
	if absCos < 1e-6 {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}

	// Choose the transport side with the pass-through event so the choice
	// stays consistent across queries at the same vertex
	var event BSDFEvent
	var f core.Vec3
	if passThroughEvent < 0.5 {
		// reflect: same side as the fixed direction
		if localFixedDir.Z < 0 {
			sampledDir.Z = -sampledDir.Z
		}
		event = DiffuseEvent | ReflectEvent
		f = m.Kr.Spectrum(hp)
	} else {
		// transmit: opposite side
		if localFixedDir.Z > 0 {
			sampledDir.Z = -sampledDir.Z
		}
		event = DiffuseEvent | TransmitEvent
		f = m.ktValue(hp)
	}

	pdfW := absCos * (0.5 / math.Pi)
	return sampledDir, f.Multiply(2), pdfW, absCos, event, true
}

func (m *MatteTranslucent) Pdf(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (float64, float64) {
	sampledDir := localLightDir
	fixedDir := localEyeDir
	if hp.FromLight {
		sampledDir, fixedDir = fixedDir, sampledDir
	}
	return core.AbsCosTheta(sampledDir) * (0.5 / math.Pi), core.AbsCosTheta(fixedDir) * (0.5 / math.Pi)
}
