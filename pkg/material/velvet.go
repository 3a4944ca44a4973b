package material

import (
	"math"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/texture"
)

// Velvet models fabric backscatter with a cubic polynomial in the angle
// between the two directions, over a diffuse base
type Velvet struct {
	BaseMaterial
	Kd texture.Texture
	P1 texture.Texture
	P2 texture.Texture
	P3 texture.Texture
	// Thickness scales the polynomial lobe
	Thickness texture.Texture
}

// NewVelvet creates a velvet material with the usual coefficients
func NewVelvet(name string, kd, p1, p2, p3, thickness texture.Texture) *Velvet {
	return &Velvet{BaseMaterial: NewBaseMaterial(name), Kd: kd, P1: p1, P2: p2, P3: p3, Thickness: thickness}
}

func (m *Velvet) Type() Type          { return VelvetType }
func (m *Velvet) Base() *BaseMaterial { return &m.BaseMaterial }

func (m *Velvet) IsDelta(hp *core.HitPoint) bool { return false }
func (m *Velvet) IsPassThrough() bool            { return false }

func (m *Velvet) GetPassThroughTransparency(hp *core.HitPoint, localFixedDir core.Vec3, passThroughEvent float64) core.Vec3 {
	return core.Black
}

func (m *Velvet) lobe(hp *core.HitPoint, lightDir, eyeDir core.Vec3) float64 {
	cosV := -lightDir.Dot(eyeDir)
	p1 := m.P1.Float(hp)
	p2 := m.P2.Float(hp)
	p3 := m.P3.Float(hp)
	e := m.Thickness.Float(hp)

	value := p1*cosV + p2*cosV*cosV + p3*cosV*cosV*cosV
	// The polynomial can dip negative at grazing configurations
	return math.Max(0, e*value)
}

func (m *Velvet) Evaluate(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (core.Vec3, BSDFEvent, float64, float64) {
	if !core.SameHemisphere(localLightDir, localEyeDir) {
		return core.Black, NoneEvent, 0, 0
	}

	sampledDir := localLightDir
	fixedDir := localEyeDir
	if hp.FromLight {
		sampledDir, fixedDir = fixedDir, sampledDir
	}

	f := m.Kd.Spectrum(hp).Multiply((1 + m.lobe(hp, localLightDir, localEyeDir)) / math.Pi)
	directPdfW := core.AbsCosTheta(sampledDir) * (1 / math.Pi)
	reversePdfW := core.AbsCosTheta(fixedDir) * (1 / math.Pi)
	return f, DiffuseEvent | ReflectEvent, directPdfW, reversePdfW
}

func (m *Velvet) Sample(hp *core.HitPoint, localFixedDir core.Vec3, u0, u1, passThroughEvent float64) (core.Vec3, core.Vec3, float64, float64, BSDFEvent, bool) {
	if core.AbsCosTheta(localFixedDir) < 1e-6 {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}

	sampledDir := core.CosineSampleHemisphere(u0, u1)
	absCos := core.AbsCosTheta(sampledDir)
	if absCos < 1e-6 {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}
	if localFixedDir.Z < 0 {
		sampledDir.Z = -sampledDir.Z
	}

	lightDir, eyeDir := sampledDir, localFixedDir
	if hp.FromLight {
		lightDir, eyeDir = localFixedDir, sampledDir
	}

	pdfW := absCos * (1 / math.Pi)
	result := m.Kd.Spectrum(hp).Multiply(1 + m.lobe(hp, lightDir, eyeDir))
	return sampledDir, result, pdfW, absCos, DiffuseEvent | ReflectEvent, true
}

func (m *Velvet) Pdf(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (float64, float64) {
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
