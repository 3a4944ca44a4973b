package material

import (
	"math"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/texture"
)

// Metal2 is a microfacet conductor parameterized by full complex IOR
// (eta, k) and anisotropic roughness
type Metal2 struct {
	BaseMaterial
	Eta texture.Texture
	K   texture.Texture
	Nu  texture.Texture
	Nv  texture.Texture
}

// NewMetal2 creates a rough conductor
func NewMetal2(name string, eta, k, nu, nv texture.Texture) *Metal2 {
	return &Metal2{BaseMaterial: NewBaseMaterial(name), Eta: eta, K: k, Nu: nu, Nv: nv}
}

func (m *Metal2) Type() Type          { return Metal2Type }
func (m *Metal2) Base() *BaseMaterial { return &m.BaseMaterial }

func (m *Metal2) IsDelta(hp *core.HitPoint) bool { return false }
func (m *Metal2) IsPassThrough() bool            { return false }

func (m *Metal2) GetPassThroughTransparency(hp *core.HitPoint, localFixedDir core.Vec3, passThroughEvent float64) core.Vec3 {
	return core.Black
}

func (m *Metal2) alphas(hp *core.HitPoint) (float64, float64) {
	return ggxAlpha(m.Nu.Float(hp)), ggxAlpha(m.Nv.Float(hp))
}

func (m *Metal2) Evaluate(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (core.Vec3, BSDFEvent, float64, float64) {
	if !core.SameHemisphere(localLightDir, localEyeDir) {
		return core.Black, NoneEvent, 0, 0
	}

	sampledDir := localLightDir
	fixedDir := localEyeDir
	if hp.FromLight {
		sampledDir, fixedDir = fixedDir, sampledDir
	}

	cosO := core.CosTheta(fixedDir)
	cosI := core.CosTheta(sampledDir)
	if math.Abs(cosO) < 1e-6 || math.Abs(cosI) < 1e-6 {
		return core.Black, NoneEvent, 0, 0
	}

	wh := fixedDir.Add(sampledDir).Normalize()
	if wh.Z < 0 {
		wh = wh.Negate()
	}

	au, av := m.alphas(hp)
	d := ggxD(wh, au, av)
	g := ggxG(fixedDir, sampledDir, au, av)
	fresnel := FresnelConductor(fixedDir.Dot(wh), m.Eta.Spectrum(hp), m.K.Spectrum(hp))

	f := fresnel.Multiply(d * g / (4 * math.Abs(cosO*cosI)))

	pdfH := ggxPdfH(wh, au, av)
	directPdfW := pdfH / (4 * math.Abs(sampledDir.Dot(wh)))
	reversePdfW := pdfH / (4 * math.Abs(fixedDir.Dot(wh)))
	return f, GlossyEvent | ReflectEvent, directPdfW, reversePdfW
}

func (m *Metal2) Sample(hp *core.HitPoint, localFixedDir core.Vec3, u0, u1, passThroughEvent float64) (core.Vec3, core.Vec3, float64, float64, BSDFEvent, bool) {
	if core.AbsCosTheta(localFixedDir) < 1e-6 {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}

	au, av := m.alphas(hp)
	wh := ggxSample(u0, u1, au, av)
	if localFixedDir.Z < 0 {
		wh = wh.Negate()
	}
	cosWh := localFixedDir.Dot(wh)
	if cosWh <= 0 {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}

	sampledDir := wh.Multiply(2 * cosWh).Subtract(localFixedDir)
	if !core.SameHemisphere(sampledDir, localFixedDir) {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}

	lightDir, eyeDir := sampledDir, localFixedDir
	if hp.FromLight {
		lightDir, eyeDir = localFixedDir, sampledDir
	}
	f, event, pdfW, _ := m.Evaluate(hp, lightDir, eyeDir)
	if pdfW <= 0 {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}

	absCos := core.AbsCosTheta(sampledDir)
	return sampledDir, f.Multiply(absCos / pdfW), pdfW, absCos, event, true
}

func (m *Metal2) Pdf(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (float64, float64) {
	_, _, directPdfW, reversePdfW := m.Evaluate(hp, localLightDir, localEyeDir)
	return directPdfW, reversePdfW
}
