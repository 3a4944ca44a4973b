package material

import (
	"math"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/texture"
)

// RoughGlass is a microfacet dielectric (Walter et al. style) with
// anisotropic GGX roughness (nu, nv)
type RoughGlass struct {
	BaseMaterial
	Kr          texture.Texture
	Kt          texture.Texture
	InteriorIOR texture.Texture
	Nu          texture.Texture
	Nv          texture.Texture
}

// NewRoughGlass creates a rough dielectric
func NewRoughGlass(name string, kr, kt, interiorIOR, nu, nv texture.Texture) *RoughGlass {
	return &RoughGlass{
		BaseMaterial: NewBaseMaterial(name),
		Kr:           kr,
		Kt:           kt,
		InteriorIOR:  interiorIOR,
		Nu:           nu,
		Nv:           nv,
	}
}

func (m *RoughGlass) Type() Type          { return RoughGlassType }
func (m *RoughGlass) Base() *BaseMaterial { return &m.BaseMaterial }

func (m *RoughGlass) IsDelta(hp *core.HitPoint) bool { return false }
func (m *RoughGlass) IsPassThrough() bool            { return false }

func (m *RoughGlass) GetPassThroughTransparency(hp *core.HitPoint, localFixedDir core.Vec3, passThroughEvent float64) core.Vec3 {
	return core.Black
}

func (m *RoughGlass) alphas(hp *core.HitPoint) (float64, float64) {
	return ggxAlpha(m.Nu.Float(hp)), ggxAlpha(m.Nv.Float(hp))
}

func (m *RoughGlass) eta(hp *core.HitPoint, fixedDir core.Vec3) float64 {
	nt := 1.5
	if m.InteriorIOR != nil {
		nt = m.InteriorIOR.Float(hp)
	}
	if hp.IntoObject {
		return nt // entering
	}
	return 1 / nt
}

func (m *RoughGlass) Evaluate(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (core.Vec3, BSDFEvent, float64, float64) {
	sampledDir := localLightDir
	fixedDir := localEyeDir
	if hp.FromLight {
		sampledDir, fixedDir = fixedDir, sampledDir
	}

	au, av := m.alphas(hp)
	eta := m.eta(hp, fixedDir)

	cosO := core.CosTheta(fixedDir)
	cosI := core.CosTheta(sampledDir)
	if math.Abs(cosO) < 1e-6 || math.Abs(cosI) < 1e-6 {
		return core.Black, NoneEvent, 0, 0
	}

	if core.SameHemisphere(fixedDir, sampledDir) {
		// Reflection lobe
		wh := fixedDir.Add(sampledDir).Normalize()
		if wh.Z < 0 {
			wh = wh.Negate()
		}
		cosWh := fixedDir.Dot(wh)
		fresnel := FresnelDielectric(cosWh, eta)
		d := ggxD(wh, au, av)
		g := ggxG(fixedDir, sampledDir, au, av)
		f := m.Kr.Spectrum(hp).Multiply(d * g * fresnel / (4 * math.Abs(cosO*cosI)))

		pdfH := ggxPdfH(wh, au, av)
		directPdfW := fresnel * pdfH / (4 * math.Abs(sampledDir.Dot(wh)))
		reversePdfW := fresnel * pdfH / (4 * math.Abs(fixedDir.Dot(wh)))
		return f, GlossyEvent | ReflectEvent, directPdfW, reversePdfW
	}

	// Transmission lobe: half vector per Walter et al.
	wh := fixedDir.Add(sampledDir.Multiply(eta)).Normalize()
	if wh.Z < 0 {
		wh = wh.Negate()
	}
	cosWhO := fixedDir.Dot(wh)
	cosWhI := sampledDir.Dot(wh)
	fresnel := FresnelDielectric(cosWhO, eta)
	if fresnel >= 1 {
		return core.Black, NoneEvent, 0, 0
	}

	d := ggxD(wh, au, av)
	g := ggxG(fixedDir, sampledDir, au, av)

	denom := cosWhO + eta*cosWhI
	denom *= denom
	if denom < 1e-12 {
		return core.Black, NoneEvent, 0, 0
	}

	factor := math.Abs(cosWhO*cosWhI/(cosO*cosI)) * eta * eta / denom
	f := m.Kt.Spectrum(hp).Multiply((1 - fresnel) * d * g * factor)
	if !hp.FromLight {
		f = f.Multiply(1 / (eta * eta))
	}

	pdfH := ggxPdfH(wh, au, av)
	jacobian := eta * eta * math.Abs(cosWhI) / denom
	directPdfW := (1 - fresnel) * pdfH * jacobian
	reversePdfW := (1 - fresnel) * pdfH * math.Abs(cosWhO) / denom
	return f, GlossyEvent | TransmitEvent, directPdfW, reversePdfW
}

func (m *RoughGlass) Sample(hp *core.HitPoint, localFixedDir core.Vec3, u0, u1, passThroughEvent float64) (core.Vec3, core.Vec3, float64, float64, BSDFEvent, bool) {
	if core.AbsCosTheta(localFixedDir) < 1e-6 {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}

	au, av := m.alphas(hp)
	eta := m.eta(hp, localFixedDir)

	wh := ggxSample(u0, u1, au, av)
	if localFixedDir.Z < 0 {
		wh = wh.Negate()
	}
	cosWh := localFixedDir.Dot(wh)
	if cosWh <= 0 {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}

	fresnel := FresnelDielectric(cosWh, eta)

	var sampledDir core.Vec3
	if passThroughEvent < fresnel {
		// Reflect off the sampled microfacet
		sampledDir = wh.Multiply(2 * cosWh).Subtract(localFixedDir)
		if !core.SameHemisphere(sampledDir, localFixedDir) {
			return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
		}
	} else {
		// Refract through the sampled microfacet
		sinT2 := (1 - cosWh*cosWh) / (eta * eta)
		if sinT2 >= 1 {
			return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
		}
		cosT := math.Sqrt(1 - sinT2)
		if localFixedDir.Dot(wh) > 0 {
			cosT = -cosT
		}
		sampledDir = wh.Multiply(cosWh/eta + cosT).Subtract(localFixedDir.Multiply(1 / eta))
		sampledDir = sampledDir.Normalize()
		if core.SameHemisphere(sampledDir, localFixedDir) {
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
	result := f.Multiply(absCos / pdfW)
	return sampledDir, result, pdfW, absCos, event, true
}

func (m *RoughGlass) Pdf(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (float64, float64) {
	_, _, directPdfW, reversePdfW := m.Evaluate(hp, localLightDir, localEyeDir)
	return directPdfW, reversePdfW
}
