package material

import (
	"math"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/texture"
)

// ClothPreset selects one of the tabulated weave parameterizations
type ClothPreset string

const (
	DenimPreset           ClothPreset = "denim"
	SilkCharmeusePreset   ClothPreset = "silk_charmeuse"
	SilkShantungPreset    ClothPreset = "silk_shantung"
	CottonTwillPreset     ClothPreset = "cotton_twill"
	WoolGabardinePreset   ClothPreset = "wool_gabardine"
	PolyesterLiningPreset ClothPreset = "polyester_lining_cloth"
)

// clothParams are the per-preset thread parameters: the warp/weft
// highlight roughness and the specular thread strength, derived from the
// Irawan-Marschner weave measurements
type clothParams struct {
	warpNu, warpNv float64
	weftNu, weftNv float64
	specularScale  float64
	repeatU        float64
	repeatV        float64
}

var clothPresets = map[ClothPreset]clothParams{
	DenimPreset:           {warpNu: 0.45, warpNv: 0.12, weftNu: 0.12, weftNv: 0.45, specularScale: 0.07, repeatU: 100, repeatV: 100},
	SilkCharmeusePreset:   {warpNu: 0.20, warpNv: 0.05, weftNu: 0.05, weftNv: 0.20, specularScale: 0.30, repeatU: 200, repeatV: 100},
	SilkShantungPreset:    {warpNu: 0.30, warpNv: 0.06, weftNu: 0.06, weftNv: 0.30, specularScale: 0.35, repeatU: 100, repeatV: 200},
	CottonTwillPreset:     {warpNu: 0.40, warpNv: 0.15, weftNu: 0.15, weftNv: 0.40, specularScale: 0.10, repeatU: 150, repeatV: 150},
	WoolGabardinePreset:   {warpNu: 0.50, warpNv: 0.20, weftNu: 0.20, weftNv: 0.50, specularScale: 0.05, repeatU: 120, repeatV: 120},
	PolyesterLiningPreset: {warpNu: 0.25, warpNv: 0.08, weftNu: 0.08, weftNv: 0.25, specularScale: 0.20, repeatU: 180, repeatV: 180},
}

// Cloth is a woven fabric with separate warp/weft thread colors. The
// weave alternates anisotropic thread highlights over a diffuse base, one
// lobe per thread direction, with the preset table supplying the measured
// thread parameters.
type Cloth struct {
	BaseMaterial
	Preset ClothPreset
	WarpKd texture.Texture
	WarpKs texture.Texture
	WeftKd texture.Texture
	WeftKs texture.Texture
	params clothParams
}

// NewCloth creates a cloth material from a preset
func NewCloth(name string, preset ClothPreset, warpKd, warpKs, weftKd, weftKs texture.Texture) *Cloth {
	params, ok := clothPresets[preset]
	if !ok {
		params = clothPresets[DenimPreset]
	}
	return &Cloth{
		BaseMaterial: NewBaseMaterial(name),
		Preset:       preset,
		WarpKd:       warpKd,
		WarpKs:       warpKs,
		WeftKd:       weftKd,
		WeftKs:       weftKs,
		params:       params,
	}
}

func (m *Cloth) Type() Type          { return ClothType }
func (m *Cloth) Base() *BaseMaterial { return &m.BaseMaterial }

func (m *Cloth) IsDelta(hp *core.HitPoint) bool { return false }
func (m *Cloth) IsPassThrough() bool            { return false }

func (m *Cloth) GetPassThroughTransparency(hp *core.HitPoint, localFixedDir core.Vec3, passThroughEvent float64) core.Vec3 {
	return core.Black
}

// isWarp picks the thread kind at the shading point from the weave grid
func (m *Cloth) isWarp(hp *core.HitPoint) bool {
	u := int(math.Floor(hp.UV.X * m.params.repeatU))
	v := int(math.Floor(hp.UV.Y * m.params.repeatV))
	return (u+v)%2 == 0
}

func (m *Cloth) threadTextures(hp *core.HitPoint) (texture.Texture, texture.Texture, float64, float64) {
	if m.isWarp(hp) {
		return m.WarpKd, m.WarpKs, ggxAlpha(m.params.warpNu), ggxAlpha(m.params.warpNv)
	}
	return m.WeftKd, m.WeftKs, ggxAlpha(m.params.weftNu), ggxAlpha(m.params.weftNv)
}

func (m *Cloth) Evaluate(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (core.Vec3, BSDFEvent, float64, float64) {
	if !core.SameHemisphere(localLightDir, localEyeDir) {
		return core.Black, NoneEvent, 0, 0
	}

	sampledDir := localLightDir
	fixedDir := localEyeDir
	if hp.FromLight {
		sampledDir, fixedDir = fixedDir, sampledDir
	}

	kd, ks, au, av := m.threadTextures(hp)
	f := kd.Spectrum(hp).Multiply(1 / math.Pi)

	cosO := math.Abs(core.CosTheta(fixedDir))
	cosI := math.Abs(core.CosTheta(sampledDir))
	if cosO > 1e-6 && cosI > 1e-6 {
		wh := fixedDir.Add(sampledDir).Normalize()
		if wh.Z < 0 {
			wh = wh.Negate()
		}
		d := ggxD(wh, au, av)
		g := ggxG(fixedDir, sampledDir, au, av)
		spec := ks.Spectrum(hp).Multiply(m.params.specularScale * d * g / (4 * cosO * cosI))
		f = f.Add(spec)
	}

	directPdfW := core.AbsCosTheta(sampledDir) * (1 / math.Pi)
	reversePdfW := core.AbsCosTheta(fixedDir) * (1 / math.Pi)
	return f, GlossyEvent | ReflectEvent, directPdfW, reversePdfW
}

func (m *Cloth) Sample(hp *core.HitPoint, localFixedDir core.Vec3, u0, u1, passThroughEvent float64) (core.Vec3, core.Vec3, float64, float64, BSDFEvent, bool) {
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
	f, event, pdfW, _ := m.Evaluate(hp, lightDir, eyeDir)
	if pdfW <= 0 {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}

	return sampledDir, f.Multiply(absCos / pdfW), pdfW, absCos, event, true
}

func (m *Cloth) Pdf(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (float64, float64) {
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
