package material

import (
	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/texture"
)

// Null is fully transparent. It exists to bound volumes and to punch
// cut-outs; the scene intersect helper walks straight through it while
// multiplying the transparency into the path throughput.
type Null struct {
	BaseMaterial
	// Transparency is optional; nil means fully transparent
	Transparency texture.Texture
}

// NewNull creates a null material
func NewNull(name string) *Null {
	return &Null{BaseMaterial: NewBaseMaterial(name)}
}

func (m *Null) Type() Type          { return NullType }
func (m *Null) Base() *BaseMaterial { return &m.BaseMaterial }

func (m *Null) IsDelta(hp *core.HitPoint) bool { return true }
func (m *Null) IsPassThrough() bool            { return true }

func (m *Null) GetPassThroughTransparency(hp *core.HitPoint, localFixedDir core.Vec3, passThroughEvent float64) core.Vec3 {
	if m.Transparency != nil {
		return m.Transparency.Spectrum(hp)
	}
	return core.White
}

func (m *Null) Evaluate(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (core.Vec3, BSDFEvent, float64, float64) {
	return core.Black, NoneEvent, 0, 0
}

// Sample never scatters: pass-through continuation is handled by the
// scene intersect walk, not by direction sampling
func (m *Null) Sample(hp *core.HitPoint, localFixedDir core.Vec3, u0, u1, passThroughEvent float64) (core.Vec3, core.Vec3, float64, float64, BSDFEvent, bool) {
	return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
}

func (m *Null) Pdf(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (float64, float64) {
	return 0, 0
}
