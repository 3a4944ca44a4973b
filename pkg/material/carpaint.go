package material

import (
	"math"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/texture"
)

// CarPaint layers up to three glossy flake lobes over a diffuse base coat.
// Each lobe has its own normal-incidence reflectance and roughness.
type CarPaint struct {
	BaseMaterial
	Kd texture.Texture

	Ks1, Ks2, Ks3 texture.Texture
	M1, M2, M3    texture.Texture
	R1, R2, R3    texture.Texture
}

// carPaintPreset holds the measured coefficients of a named paint
type carPaintPreset struct {
	kd            core.Vec3
	ks1, ks2, ks3 core.Vec3
	m1, m2, m3    float64
	r1, r2, r3    float64
}

// CarPaintPresets are the named paints a scene can refer to by
// scene.materials.<n>.preset
var CarPaintPresets = map[string]carPaintPreset{
	"ford f8": {
		kd:  core.NewVec3(0.0012, 0.0015, 0.0018),
		ks1: core.NewVec3(0.0049, 0.0076, 0.0120), m1: 0.88, r1: 0.15,
		ks2: core.NewVec3(0.0100, 0.0130, 0.0180), m2: 0.80, r2: 0.09,
		ks3: core.NewVec3(0.0070, 0.0065, 0.0077), m3: 0.015, r3: 0.32,
	},
	"polaris silber": {
		kd:  core.NewVec3(0.0555, 0.0578, 0.0564),
		ks1: core.NewVec3(0.0652, 0.0598, 0.0579), m1: 0.38, r1: 0.21,
		ks2: core.NewVec3(0.1120, 0.1060, 0.1070), m2: 0.17, r2: 0.61,
		ks3: core.NewVec3(0.0831, 0.0820, 0.0820), m3: 0.013, r3: 0.38,
	},
	"opel titan": {
		kd:  core.NewVec3(0.0110, 0.0130, 0.0150),
		ks1: core.NewVec3(0.0570, 0.0660, 0.0780), m1: 0.65, r1: 0.11,
		ks2: core.NewVec3(0.1100, 0.1200, 0.1300), m2: 0.40, r2: 0.43,
		ks3: core.NewVec3(0.0560, 0.0620, 0.0710), m3: 0.018, r3: 0.21,
	},
	"bmw339": {
		kd:  core.NewVec3(0.0120, 0.0150, 0.0160),
		ks1: core.NewVec3(0.0620, 0.0720, 0.0800), m1: 0.58, r1: 0.12,
		ks2: core.NewVec3(0.1100, 0.1200, 0.1200), m2: 0.32, r2: 0.41,
		ks3: core.NewVec3(0.0830, 0.0880, 0.0920), m3: 0.012, r3: 0.28,
	},
}

// NewCarPaint creates a car paint with explicit textures
func NewCarPaint(name string, kd, ks1, ks2, ks3, m1, m2, m3, r1, r2, r3 texture.Texture) *CarPaint {
	return &CarPaint{
		BaseMaterial: NewBaseMaterial(name),
		Kd:           kd,
		Ks1:          ks1, Ks2: ks2, Ks3: ks3,
		M1: m1, M2: m2, M3: m3,
		R1: r1, R2: r2, R3: r3,
	}
}

// NewCarPaintPreset creates a car paint from the preset table
func NewCarPaintPreset(name, preset string) *CarPaint {
	p, ok := CarPaintPresets[preset]
	if !ok {
		p = CarPaintPresets["ford f8"]
	}
	return NewCarPaint(name,
		texture.NewConstSpectrum(p.kd),
		texture.NewConstSpectrum(p.ks1), texture.NewConstSpectrum(p.ks2), texture.NewConstSpectrum(p.ks3),
		texture.NewConstFloat(p.m1), texture.NewConstFloat(p.m2), texture.NewConstFloat(p.m3),
		texture.NewConstFloat(p.r1), texture.NewConstFloat(p.r2), texture.NewConstFloat(p.r3),
	)
}

func (m *CarPaint) Type() Type          { return CarPaintType }
func (m *CarPaint) Base() *BaseMaterial { return &m.BaseMaterial }

func (m *CarPaint) IsDelta(hp *core.HitPoint) bool { return false }
func (m *CarPaint) IsPassThrough() bool            { return false }

func (m *CarPaint) GetPassThroughTransparency(hp *core.HitPoint, localFixedDir core.Vec3, passThroughEvent float64) core.Vec3 {
	return core.Black
}

// lobe evaluates one Schlick flake lobe
func (m *CarPaint) lobe(hp *core.HitPoint, fixedDir, sampledDir core.Vec3, ks texture.Texture, roughness, r0 float64) (core.Vec3, float64) {
	wh := fixedDir.Add(sampledDir).Normalize()
	if wh.Z < 0 {
		wh = wh.Negate()
	}

	alpha := ggxAlpha(roughness)
	d := ggxD(wh, alpha, alpha)
	g := ggxG(fixedDir, sampledDir, alpha, alpha)
	fr := SchlickFresnel(fixedDir.Dot(wh), core.NewVec3(r0, r0, r0))

	cosO := math.Abs(core.CosTheta(fixedDir))
	cosI := math.Abs(core.CosTheta(sampledDir))
	if cosO < 1e-6 || cosI < 1e-6 {
		return core.Black, 0
	}

	f := ks.Spectrum(hp).MultiplyVec(fr).Multiply(d * g / (4 * cosO * cosI))
	pdf := ggxPdfH(wh, alpha, alpha) / (4 * math.Abs(sampledDir.Dot(wh)))
	return f, pdf
}

func (m *CarPaint) Evaluate(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (core.Vec3, BSDFEvent, float64, float64) {
	if !core.SameHemisphere(localLightDir, localEyeDir) {
		return core.Black, NoneEvent, 0, 0
	}

	sampledDir := localLightDir
	fixedDir := localEyeDir
	if hp.FromLight {
		sampledDir, fixedDir = fixedDir, sampledDir
	}

	f := m.Kd.Spectrum(hp).Multiply(1 / math.Pi)

	f1, p1 := m.lobe(hp, fixedDir, sampledDir, m.Ks1, m.R1.Float(hp), m.M1.Float(hp))
	f2, p2 := m.lobe(hp, fixedDir, sampledDir, m.Ks2, m.R2.Float(hp), m.M2.Float(hp))
	f3, p3 := m.lobe(hp, fixedDir, sampledDir, m.Ks3, m.R3.Float(hp), m.M3.Float(hp))
	f = f.Add(f1).Add(f2).Add(f3)

	basePdf := core.AbsCosTheta(sampledDir) * (1 / math.Pi)
	directPdfW := (basePdf + p1 + p2 + p3) / 4

	_, rp1 := m.lobe(hp, sampledDir, fixedDir, m.Ks1, m.R1.Float(hp), m.M1.Float(hp))
	_, rp2 := m.lobe(hp, sampledDir, fixedDir, m.Ks2, m.R2.Float(hp), m.M2.Float(hp))
	_, rp3 := m.lobe(hp, sampledDir, fixedDir, m.Ks3, m.R3.Float(hp), m.M3.Float(hp))
	baseRevPdf := core.AbsCosTheta(fixedDir) * (1 / math.Pi)
	reversePdfW := (baseRevPdf + rp1 + rp2 + rp3) / 4

	return f, GlossyEvent | ReflectEvent, directPdfW, reversePdfW
}

func (m *CarPaint) Sample(hp *core.HitPoint, localFixedDir core.Vec3, u0, u1, passThroughEvent float64) (core.Vec3, core.Vec3, float64, float64, BSDFEvent, bool) {
	if core.AbsCosTheta(localFixedDir) < 1e-6 {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}

	var sampledDir core.Vec3
	if passThroughEvent < 0.25 {
		sampledDir = core.CosineSampleHemisphere(u0, u1)
		if localFixedDir.Z < 0 {
			sampledDir.Z = -sampledDir.Z
		}
	} else {
		var roughness float64
		switch {
		case passThroughEvent < 0.5:
			roughness = m.R1.Float(hp)
		case passThroughEvent < 0.75:
			roughness = m.R2.Float(hp)
		default:
			roughness = m.R3.Float(hp)
		}
		alpha := ggxAlpha(roughness)
		wh := ggxSample(u0, u1, alpha, alpha)
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
	if pdfW <= 0 {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}

	absCos := core.AbsCosTheta(sampledDir)
	return sampledDir, f.Multiply(absCos / pdfW), pdfW, absCos, event, true
}

func (m *CarPaint) Pdf(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (float64, float64) {
	_, _, directPdfW, reversePdfW := m.Evaluate(hp, localLightDir, localEyeDir)
	return directPdfW, reversePdfW
}
