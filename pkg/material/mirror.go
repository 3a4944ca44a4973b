package material

import (
	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/texture"
)

// Mirror is a perfect specular reflector
type Mirror struct {
	BaseMaterial
	Kr texture.Texture
}

// NewMirror creates a mirror with the given reflectance
func NewMirror(name string, kr texture.Texture) *Mirror {
	return &Mirror{BaseMaterial: NewBaseMaterial(name), Kr: kr}
}

func (m *Mirror) Type() Type          { return MirrorType }
func (m *Mirror) Base() *BaseMaterial { return &m.BaseMaterial }

func (m *Mirror) IsDelta(hp *core.HitPoint) bool { return true }
func (m *Mirror) IsPassThrough() bool            { return false }

func (m *Mirror) GetPassThroughTransparency(hp *core.HitPoint, localFixedDir core.Vec3, passThroughEvent float64) core.Vec3 {
	return core.Black
}

// Evaluate is always zero: the mirror's BSDF is a Dirac delta
func (m *Mirror) Evaluate(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (core.Vec3, BSDFEvent, float64, float64) {
	return core.Black, NoneEvent, 0, 0
}

func (m *Mirror) Sample(hp *core.HitPoint, localFixedDir core.Vec3, u0, u1, passThroughEvent float64) (core.Vec3, core.Vec3, float64, float64, BSDFEvent, bool) {
	sampledDir := core.NewVec3(-localFixedDir.X, -localFixedDir.Y, localFixedDir.Z)
	absCos := core.AbsCosTheta(sampledDir)
	if absCos < 1e-6 {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}
	return sampledDir, m.Kr.Spectrum(hp), 1, absCos, SpecularEvent | ReflectEvent, true
}

func (m *Mirror) Pdf(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (float64, float64) {
	return 0, 0
}
