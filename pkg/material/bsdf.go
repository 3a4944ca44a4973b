package material

import (
	"github.com/df07/go-light-transport/pkg/core"
)

// EmissionQuerier answers emission queries for a BSDF sitting on an
// emissive triangle. The scene wires the matching triangle light in when
// it builds the BSDF; the indirection avoids a dependency on the lights
// package here.
type EmissionQuerier interface {
	// Radiance returns the emitted radiance toward hp.FixedDir along
	// with the direct pdf (area at the light) and emission pdf (solid
	// angle)
	Radiance(hp *core.HitPoint) (core.Vec3, float64, float64)
}

// BSDF combines a HitPoint with the referenced Material (or Volume when
// the path vertex is a medium scatter event) and the local shading frame.
type BSDF struct {
	HitPoint core.HitPoint
	Material Material
	// Volume is non-nil for medium scatter events; Material aliases it
	Volume Volume
	Frame  core.Frame

	// TriangleLight answers emission queries for emissive meshes
	TriangleLight EmissionQuerier
}

// NewVolumeBSDF builds a BSDF for a scatter event inside a medium
func NewVolumeBSDF(ray core.Ray, t float64, passThroughEvent float64, fromLight bool, volume Volume) BSDF {
	fixedDir := ray.Direction.Negate()
	hp := core.HitPoint{
		FixedDir:         fixedDir,
		P:                ray.At(t),
		GeometryN:        fixedDir,
		ShadeN:           fixedDir,
		PassThroughEvent: passThroughEvent,
		FromLight:        fromLight,
		MeshIndex:        core.NullIndex,
		TriIndex:         core.NullIndex,
	}
	return BSDF{
		HitPoint: hp,
		Material: volume,
		Volume:   volume,
		Frame:    core.NewFrame(hp.ShadeN),
	}
}

// IsVolume reports whether this vertex is a medium scatter event
func (b *BSDF) IsVolume() bool { return b.Volume != nil }

// IsDelta reports whether every component of the vertex's material is a
// Dirac delta
func (b *BSDF) IsDelta() bool {
	return b.Material.IsDelta(&b.HitPoint)
}

// IsPassThrough reports whether the material can pass the ray through
func (b *BSDF) IsPassThrough() bool {
	return b.Material.IsPassThrough()
}

// IsLightSource reports whether the vertex sits on an emissive surface
func (b *BSDF) IsLightSource() bool {
	return b.Material.Base().IsLightSource()
}

// CanTransmit reports whether the material has any transmitting component
func (b *BSDF) CanTransmit() bool {
	return MaterialCanTransmit(b.Material, &b.HitPoint)
}

// MaterialCanTransmit reports transmission capability per variant; mix
// resolves through its children
func MaterialCanTransmit(m Material, hp *core.HitPoint) bool {
	switch mat := m.(type) {
	case *Glass, *ArchGlass, *RoughGlass, *MatteTranslucent, *Null:
		return true
	case *Mix:
		return MaterialCanTransmit(mat.matA(), hp) || MaterialCanTransmit(mat.matB(), hp)
	default:
		return false
	}
}

// Evaluate evaluates the BSDF for a world-space generated direction.
// Returns the spectrum, event flags and forward/reverse pdfs.
func (b *BSDF) Evaluate(generatedDir core.Vec3) (core.Vec3, BSDFEvent, float64, float64) {
	localFixed := b.Frame.ToLocal(b.HitPoint.FixedDir)
	localGenerated := b.Frame.ToLocal(generatedDir)

	localLightDir, localEyeDir := localGenerated, localFixed
	if b.HitPoint.FromLight {
		localLightDir, localEyeDir = localFixed, localGenerated
	}

	return b.Material.Evaluate(&b.HitPoint, localLightDir, localEyeDir)
}

// Sample draws a scattered direction in world space. The returned
// spectrum is already divided by the pdf and multiplied by the cosine.
func (b *BSDF) Sample(u0, u1 float64) (core.Vec3, core.Vec3, float64, float64, BSDFEvent, bool) {
	localFixed := b.Frame.ToLocal(b.HitPoint.FixedDir)

	localSampled, result, pdfW, absCos, event, ok := b.Material.Sample(
		&b.HitPoint, localFixed, u0, u1, b.HitPoint.PassThroughEvent)
	if !ok {
		return core.Vec3{}, core.Black, 0, 0, NoneEvent, false
	}

	return b.Frame.ToWorld(localSampled), result, pdfW, absCos, event, true
}

// Pdf returns the forward and reverse pdfs of a world-space direction
func (b *BSDF) Pdf(sampledDir core.Vec3) (float64, float64) {
	localFixed := b.Frame.ToLocal(b.HitPoint.FixedDir)
	localSampled := b.Frame.ToLocal(sampledDir)

	localLightDir, localEyeDir := localSampled, localFixed
	if b.HitPoint.FromLight {
		localLightDir, localEyeDir = localFixed, localSampled
	}

	return b.Material.Pdf(&b.HitPoint, localLightDir, localEyeDir)
}

// GetPassThroughTransparency returns the transparency for a ray going
// straight through, zero for opaque materials
func (b *BSDF) GetPassThroughTransparency() core.Vec3 {
	localFixed := b.Frame.ToLocal(b.HitPoint.FixedDir)
	return b.Material.GetPassThroughTransparency(&b.HitPoint, localFixed, b.HitPoint.PassThroughEvent)
}

// EmittedRadiance returns the radiance emitted toward the viewer plus the
// pdfs light-strategy MIS needs. Non-emissive vertices return black.
func (b *BSDF) EmittedRadiance() (core.Vec3, float64, float64) {
	if b.TriangleLight != nil {
		return b.TriangleLight.Radiance(&b.HitPoint)
	}
	if b.Material.Base().IsLightSource() {
		return b.Material.Base().EmittedRadiance(&b.HitPoint), 0, 0
	}
	return core.Black, 0, 0
}
