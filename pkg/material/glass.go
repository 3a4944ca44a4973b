package material

import (
	"math"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/texture"
)

// Glass is a smooth dielectric splitting between specular reflection and
// refraction by Fresnel reflectance
type Glass struct {
	BaseMaterial
	Kr          texture.Texture
	Kt          texture.Texture
	InteriorIOR texture.Texture
	ExteriorIOR texture.Texture
}

// NewGlass creates a smooth dielectric
func NewGlass(name string, kr, kt, interiorIOR, exteriorIOR texture.Texture) *Glass {
	return &Glass{
		BaseMaterial: NewBaseMaterial(name),
		Kr:           kr,
		Kt:           kt,
		InteriorIOR:  interiorIOR,
		ExteriorIOR:  exteriorIOR,
	}
}

func (m *Glass) Type() Type          { return GlassType }
func (m *Glass) Base() *BaseMaterial { return &m.BaseMaterial }

func (m *Glass) IsDelta(hp *core.HitPoint) bool { return true }
func (m *Glass) IsPassThrough() bool            { return false }

func (m *Glass) GetPassThroughTransparency(hp *core.HitPoint, localFixedDir core.Vec3, passThroughEvent float64) core.Vec3 {
	return core.Black
}

func (m *Glass) Evaluate(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (core.Vec3, BSDFEvent, float64, float64) {
	return core.Black, NoneEvent, 0, 0
}

func (m *Glass) ior(hp *core.HitPoint) (ni, nt float64) {
	ni = 1.0
	if m.ExteriorIOR != nil {
		ni = m.ExteriorIOR.Float(hp)
	}
	nt = 1.5
	if m.InteriorIOR != nil {
		nt = m.InteriorIOR.Float(hp)
	}
	return ni, nt
}

func (m *Glass) Sample(hp *core.HitPoint, localFixedDir core.Vec3, u0, u1, passThroughEvent float64) (core.Vec3, core.Vec3, float64, float64, BSDFEvent, bool) {
	absCosFixed := core.AbsCosTheta(localFixedDir)
	if absCosFixed < 1e-6 {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}

	ni, nt := m.ior(hp)
	// The shading frame is flipped toward the ray, so the crossing
	// direction comes from the hit record
	if !hp.IntoObject {
		ni, nt = nt, ni
	}
	eta := nt / ni

	fresnel := FresnelDielectric(absCosFixed, eta)

	if u0 < fresnel {
		// Specular reflection
		sampledDir := core.NewVec3(-localFixedDir.X, -localFixedDir.Y, localFixedDir.Z)
		result := m.Kr.Spectrum(hp)
		return sampledDir, result, fresnel, core.AbsCosTheta(sampledDir), SpecularEvent | ReflectEvent, true
	}

	// Specular refraction
	sampledDir, ok := refract(localFixedDir, eta)
	if !ok {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}

	result := m.Kt.Spectrum(hp)
	if !hp.FromLight {
		// Radiance is compressed by the squared relative IOR on the way
		// into the denser medium
		result = result.Multiply(1 / (eta * eta))
	}
	return sampledDir, result, 1 - fresnel, core.AbsCosTheta(sampledDir), SpecularEvent | TransmitEvent, true
}

func (m *Glass) Pdf(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (float64, float64) {
	return 0, 0
}

// refract bends the fixed direction through the surface. eta is the ratio
// of transmitted-side to incident-side IOR.
func refract(fixedDir core.Vec3, eta float64) (core.Vec3, bool) {
	sinI2 := core.SinTheta2(fixedDir)
	sinT2 := sinI2 / (eta * eta)
	if sinT2 >= 1 {
		return core.Vec3{}, false // total internal reflection
	}
	cosT := math.Sqrt(1 - sinT2)
	if fixedDir.Z > 0 {
		cosT = -cosT
	}
	invEta := 1 / eta
	return core.NewVec3(-fixedDir.X*invEta, -fixedDir.Y*invEta, cosT), true
}

// ArchGlass is architectural glass: reflection is specular but
// transmission is a pass-through event, so shadow rays go straight through
// without refraction
type ArchGlass struct {
	BaseMaterial
	Kr texture.Texture
	Kt texture.Texture
}

// NewArchGlass creates an architectural glass material
func NewArchGlass(name string, kr, kt texture.Texture) *ArchGlass {
	return &ArchGlass{BaseMaterial: NewBaseMaterial(name), Kr: kr, Kt: kt}
}

func (m *ArchGlass) Type() Type          { return ArchGlassType }
func (m *ArchGlass) Base() *BaseMaterial { return &m.BaseMaterial }

func (m *ArchGlass) IsDelta(hp *core.HitPoint) bool { return true }
func (m *ArchGlass) IsPassThrough() bool            { return true }

// GetPassThroughTransparency returns the transmitted fraction for the
// continuing ray: Kt scaled by one minus the Fresnel reflectance
func (m *ArchGlass) GetPassThroughTransparency(hp *core.HitPoint, localFixedDir core.Vec3, passThroughEvent float64) core.Vec3 {
	absCos := core.AbsCosTheta(localFixedDir)
	if absCos < 1e-6 {
		return core.Black
	}
	fresnel := FresnelDielectric(absCos, 1.5)
	return m.Kt.Spectrum(hp).Multiply(1 - fresnel)
}

func (m *ArchGlass) Evaluate(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (core.Vec3, BSDFEvent, float64, float64) {
	return core.Black, NoneEvent, 0, 0
}

// Sample only ever reflects; transmission happens in the pass-through walk
func (m *ArchGlass) Sample(hp *core.HitPoint, localFixedDir core.Vec3, u0, u1, passThroughEvent float64) (core.Vec3, core.Vec3, float64, float64, BSDFEvent, bool) {
	absCos := core.AbsCosTheta(localFixedDir)
	if absCos < 1e-6 {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}

	fresnel := FresnelDielectric(absCos, 1.5)
	if fresnel <= 0 {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}

	sampledDir := core.NewVec3(-localFixedDir.X, -localFixedDir.Y, localFixedDir.Z)
	return sampledDir, m.Kr.Spectrum(hp), fresnel, core.AbsCosTheta(sampledDir), SpecularEvent | ReflectEvent, true
}

func (m *ArchGlass) Pdf(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (float64, float64) {
	return 0, 0
}
