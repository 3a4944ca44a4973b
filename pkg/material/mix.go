package material

import (
	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/texture"
)

// Mix blends two materials with a texture-driven weight. It holds stable
// arena indices rather than pointers so scene edits can swap either child
// without dangling references. The build refuses cyclic mixes.
//
// The pass-through event parameterizes which sub-material a query resolves
// to, so delta detection, transparency and sampling all agree at one path
// vertex.
type Mix struct {
	BaseMaterial
	Collection *Collection
	MaterialA  uint32
	MaterialB  uint32
	Amount     texture.Texture
}

// NewMix creates a mix of the two materials at the given arena indices
func NewMix(name string, c *Collection, a, b uint32, amount texture.Texture) *Mix {
	return &Mix{BaseMaterial: NewBaseMaterial(name), Collection: c, MaterialA: a, MaterialB: b, Amount: amount}
}

func (m *Mix) Type() Type          { return MixType }
func (m *Mix) Base() *BaseMaterial { return &m.BaseMaterial }

func (m *Mix) matA() Material { return m.Collection.Get(m.MaterialA) }
func (m *Mix) matB() Material { return m.Collection.Get(m.MaterialB) }

// weight returns the probability of picking sub-material B
func (m *Mix) weight(hp *core.HitPoint) float64 {
	return max(0, min(1, m.Amount.Float(hp)))
}

// pick resolves the sub-material for the given pass-through event and
// returns it with the event remapped into the sub-material's own range
func (m *Mix) pick(hp *core.HitPoint, passThroughEvent float64) (Material, float64, float64) {
	wB := m.weight(hp)
	wA := 1 - wB
	if passThroughEvent < wA {
		if wA <= 0 {
			return m.matB(), 0, wB
		}
		return m.matA(), passThroughEvent / wA, wA
	}
	if wB <= 0 {
		return m.matA(), 0, wA
	}
	return m.matB(), (passThroughEvent - wA) / wB, wB
}

// IsDelta is true only when both children are delta for this hit point
func (m *Mix) IsDelta(hp *core.HitPoint) bool {
	return m.matA().IsDelta(hp) && m.matB().IsDelta(hp)
}

func (m *Mix) IsPassThrough() bool {
	return m.matA().IsPassThrough() || m.matB().IsPassThrough()
}

func (m *Mix) GetPassThroughTransparency(hp *core.HitPoint, localFixedDir core.Vec3, passThroughEvent float64) core.Vec3 {
	mat, subEvent, _ := m.pick(hp, passThroughEvent)
	return mat.GetPassThroughTransparency(hp, localFixedDir, subEvent)
}

// Evaluate combines both children linearly; pdfs are mixed by the same
// weights
func (m *Mix) Evaluate(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (core.Vec3, BSDFEvent, float64, float64) {
	wB := m.weight(hp)
	wA := 1 - wB

	var f core.Vec3
	var event BSDFEvent
	var directPdfW, reversePdfW float64

	if wA > 0 {
		fA, eventA, dA, rA := m.matA().Evaluate(hp, localLightDir, localEyeDir)
		f = f.Add(fA.Multiply(wA))
		event |= eventA
		directPdfW += wA * dA
		reversePdfW += wA * rA
	}
	if wB > 0 {
		fB, eventB, dB, rB := m.matB().Evaluate(hp, localLightDir, localEyeDir)
		f = f.Add(fB.Multiply(wB))
		event |= eventB
		directPdfW += wB * dB
		reversePdfW += wB * rB
	}

	if f.IsZero() {
		return core.Black, NoneEvent, 0, 0
	}
	return f, event, directPdfW, reversePdfW
}

// Sample delegates to the child selected by the pass-through event and
// folds the selection probability into the returned pdf
func (m *Mix) Sample(hp *core.HitPoint, localFixedDir core.Vec3, u0, u1, passThroughEvent float64) (core.Vec3, core.Vec3, float64, float64, BSDFEvent, bool) {
	mat, subEvent, w := m.pick(hp, passThroughEvent)

	sampledDir, result, pdfW, absCos, event, ok := mat.Sample(hp, localFixedDir, u0, u1, subEvent)
	if !ok {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}

	if event.Has(SpecularEvent) {
		// Delta child: the other child cannot produce this direction,
		// only the selection probability applies
		return sampledDir, result, pdfW * w, absCos, event, true
	}

	// Re-evaluate the full mix so both children contribute to the value
	// and the pdf for the sampled direction
	lightDir, eyeDir := sampledDir, localFixedDir
	if hp.FromLight {
		lightDir, eyeDir = localFixedDir, sampledDir
	}
	f, mixEvent, directPdfW, _ := m.Evaluate(hp, lightDir, eyeDir)
	if directPdfW <= 0 {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}
	return sampledDir, f.Multiply(absCos / directPdfW), directPdfW, absCos, mixEvent, true
}

func (m *Mix) Pdf(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (float64, float64) {
	wB := m.weight(hp)
	wA := 1 - wB

	var directPdfW, reversePdfW float64
	if wA > 0 {
		dA, rA := m.matA().Pdf(hp, localLightDir, localEyeDir)
		directPdfW += wA * dA
		reversePdfW += wA * rA
	}
	if wB > 0 {
		dB, rB := m.matB().Pdf(hp, localLightDir, localEyeDir)
		directPdfW += wB * dB
		reversePdfW += wB * rB
	}
	return directPdfW, reversePdfW
}
