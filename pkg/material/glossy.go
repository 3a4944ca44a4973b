package material

import (
	"math"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/texture"
)

// Glossy2 is a diffuse base with a Schlick-Fresnel glossy coating
type Glossy2 struct {
	BaseMaterial
	Kd texture.Texture
	Ks texture.Texture
	Nu texture.Texture
	Nv texture.Texture
}

// NewGlossy2 creates a coated diffuse material
func NewGlossy2(name string, kd, ks, nu, nv texture.Texture) *Glossy2 {
	return &Glossy2{BaseMaterial: NewBaseMaterial(name), Kd: kd, Ks: ks, Nu: nu, Nv: nv}
}

func (m *Glossy2) Type() Type          { return Glossy2Type }
func (m *Glossy2) Base() *BaseMaterial { return &m.BaseMaterial }

func (m *Glossy2) IsDelta(hp *core.HitPoint) bool { return false }
func (m *Glossy2) IsPassThrough() bool            { return false }

func (m *Glossy2) GetPassThroughTransparency(hp *core.HitPoint, localFixedDir core.Vec3, passThroughEvent float64) core.Vec3 {
	return core.Black
}

func (m *Glossy2) alphas(hp *core.HitPoint) (float64, float64) {
	return ggxAlpha(m.Nu.Float(hp)), ggxAlpha(m.Nv.Float(hp))
}

// coating evaluates the glossy lobe and its pdf
func (m *Glossy2) coating(hp *core.HitPoint, fixedDir, sampledDir core.Vec3) (core.Vec3, float64) {
	if !core.SameHemisphere(fixedDir, sampledDir) {
		return core.Black, 0
	}

	wh := fixedDir.Add(sampledDir).Normalize()
	if wh.Z < 0 {
		wh = wh.Negate()
	}

	au, av := m.alphas(hp)
	d := ggxD(wh, au, av)
	g := ggxG(fixedDir, sampledDir, au, av)
	fresnel := SchlickFresnel(fixedDir.Dot(wh), m.Ks.Spectrum(hp))

	cosO := math.Abs(core.CosTheta(fixedDir))
	cosI := math.Abs(core.CosTheta(sampledDir))
	if cosO < 1e-6 || cosI < 1e-6 {
		return core.Black, 0
	}

	f := fresnel.Multiply(d * g / (4 * cosO * cosI))
	pdf := ggxPdfH(wh, au, av) / (4 * math.Abs(sampledDir.Dot(wh)))
	return f, pdf
}

func (m *Glossy2) Evaluate(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (core.Vec3, BSDFEvent, float64, float64) {
	if !core.SameHemisphere(localLightDir, localEyeDir) {
		return core.Black, NoneEvent, 0, 0
	}

	sampledDir := localLightDir
	fixedDir := localEyeDir
	if hp.FromLight {
		sampledDir, fixedDir = fixedDir, sampledDir
	}

	// Energy-aware layering: the coating's Schlick reflectance removes
	// energy from the base
	ks := m.Ks.Spectrum(hp)
	baseF := m.Kd.Spectrum(hp).MultiplyVec(core.White.Subtract(ks)).Multiply(1 / math.Pi)
	coatF, coatPdf := m.coating(hp, fixedDir, sampledDir)

	basePdf := core.AbsCosTheta(sampledDir) * (1 / math.Pi)
	baseRevPdf := core.AbsCosTheta(fixedDir) * (1 / math.Pi)
	_, coatRevPdf := m.coating(hp, sampledDir, fixedDir)

	f := baseF.Add(coatF)
	directPdfW := 0.5*basePdf + 0.5*coatPdf
	reversePdfW := 0.5*baseRevPdf + 0.5*coatRevPdf
	return f, GlossyEvent | ReflectEvent, directPdfW, reversePdfW
}

func (m *Glossy2) Sample(hp *core.HitPoint, localFixedDir core.Vec3, u0, u1, passThroughEvent float64) (core.Vec3, core.Vec3, float64, float64, BSDFEvent, bool) {
	if core.AbsCosTheta(localFixedDir) < 1e-6 {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}

	var sampledDir core.Vec3
	if passThroughEvent < 0.5 {
		// Sample the diffuse base
		sampledDir = core.CosineSampleHemisphere(u0, u1)
		if localFixedDir.Z < 0 {
			sampledDir.Z = -sampledDir.Z
		}
	} else {
		// Sample the glossy coating
		au, av := m.alphas(hp)
		wh := ggxSample(u0, u1, au, av)
		if localFixedDir.Z < 0 {
			wh = wh.Negate()
		}
		cosWh := localFixedDir.Dot(wh)
		if cosWh <= 0 {
			return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
		}
		sampledDir = wh.Multiply(2 * cosWh).Subtract(localFixedDir)
		if !core.SameHemisphere(sampledDir, localFixedDir) {
			return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
		}
	}

	lightDir, eyeDir := sampledDir, localFixedDir
	if hp.FromLight {
		lightDir, eyeDir = localFixedDir, sampledDir
	}
	f, event, pdfW, _ := m.Evaluate(hp, lightDir, eyeDir)
	if pdfW <= 0 || f.IsZero() {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}

	absCos := core.AbsCosTheta(sampledDir)
	return sampledDir, f.Multiply(absCos / pdfW), pdfW, absCos, event, true
}

func (m *Glossy2) Pdf(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (float64, float64) {
	_, _, directPdfW, reversePdfW := m.Evaluate(hp, localLightDir, localEyeDir)
	return directPdfW, reversePdfW
}
