package material

import (
	"fmt"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/texture"
)

// Type identifies the concrete material variant. The set is closed: the
// hot path switches on it instead of paying an indirect call where that
// matters.
type Type string

const (
	MatteType            Type = "matte"
	MirrorType           Type = "mirror"
	GlassType            Type = "glass"
	ArchGlassType        Type = "archglass"
	RoughGlassType       Type = "roughglass"
	MatteTranslucentType Type = "mattetranslucent"
	Glossy2Type          Type = "glossy2"
	Metal2Type           Type = "metal2"
	VelvetType           Type = "velvet"
	ClothType            Type = "cloth"
	CarPaintType         Type = "carpaint"
	MixType              Type = "mix"
	NullType             Type = "null"

	ClearVolumeType         Type = "clearvolume"
	HomogeneousVolumeType   Type = "homogeneousvolume"
	HeterogeneousVolumeType Type = "heterogeneousvolume"
)

// Material is the uniform contract over the material zoo. All directions
// are expressed in the local shading frame (Z along the shading normal).
//
// Evaluate returns the pure BSDF value f (no cosine folded in), the event
// classification and the pdfs of sampling the generated direction forward
// and in reverse. Delta materials always evaluate to zero.
//
// Sample returns the sampled direction and the BSDF value already divided
// by pdfW and multiplied by |cos| of the sampled direction, so integrators
// multiply throughput by it directly. Delta materials report a SPECULAR
// event; their pdfW is 1 for a mirror, the Fresnel reflectance (reflection)
// or its complement (refraction) for glass, and the Fresnel reflectance for
// archglass, scaled by the pick probability when reached through a mix.
type Material interface {
	Type() Type

	Evaluate(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (core.Vec3, BSDFEvent, float64, float64)

	Sample(hp *core.HitPoint, localFixedDir core.Vec3, u0, u1, passThroughEvent float64) (localSampledDir core.Vec3, result core.Vec3, pdfW float64, absCosSampledDir float64, event BSDFEvent, ok bool)

	Pdf(hp *core.HitPoint, localLightDir, localEyeDir core.Vec3) (directPdfW, reversePdfW float64)

	// IsDelta reports whether every component of this material is a
	// Dirac delta (mirror, smooth glass)
	IsDelta(hp *core.HitPoint) bool

	// IsPassThrough reports whether the material can let a ray continue
	// unchanged (null, archglass, alpha cut-outs)
	IsPassThrough() bool

	// GetPassThroughTransparency returns the transparency spectrum for a
	// ray continuing straight through, zero for opaque
	GetPassThroughTransparency(hp *core.HitPoint, localFixedDir core.Vec3, passThroughEvent float64) core.Vec3

	// Base exposes the attributes shared by every material
	Base() *BaseMaterial
}

// BaseMaterial carries the attributes common to all materials
type BaseMaterial struct {
	Name string
	ID   uint32

	Emission     texture.Texture // optional emission texture
	EmissionGain core.Vec3
	// EmissionMap is an optional IES-like projection map shaping the
	// angular emission
	EmissionMap     *texture.ImageMap
	EmissionSamples int // samples-per-direct-light hint

	BumpTex            texture.Texture
	NormalTex          texture.Texture
	BumpSampleDistance float64

	Interior Volume
	Exterior Volume

	VisibleIndirectDiffuse  bool
	VisibleIndirectGlossy   bool
	VisibleIndirectSpecular bool
}

// NewBaseMaterial returns shared attributes with the usual defaults
func NewBaseMaterial(name string) BaseMaterial {
	return BaseMaterial{
		Name:                    name,
		EmissionGain:            core.White,
		EmissionSamples:         -1,
		BumpSampleDistance:      0.001,
		VisibleIndirectDiffuse:  true,
		VisibleIndirectGlossy:   true,
		VisibleIndirectSpecular: true,
	}
}

// IsLightSource reports whether the material emits
func (b *BaseMaterial) IsLightSource() bool {
	return b.Emission != nil
}

// EmittedRadiance evaluates the emission texture at the hit point
func (b *BaseMaterial) EmittedRadiance(hp *core.HitPoint) core.Vec3 {
	if b.Emission == nil {
		return core.Black
	}
	return b.Emission.Spectrum(hp).MultiplyVec(b.EmissionGain)
}

// Collection is the scene-owned arena of materials. Mix materials hold
// stable indices into it, never pointers, so a scene edit swaps entries
// without dangling references.
type Collection struct {
	materials []Material
	byName    map[string]uint32
}

// NewCollection creates an empty material arena
func NewCollection() *Collection {
	return &Collection{byName: make(map[string]uint32)}
}

// Add registers a material and assigns its stable index
func (c *Collection) Add(m Material) uint32 {
	id := uint32(len(c.materials))
	m.Base().ID = id
	c.materials = append(c.materials, m)
	if name := m.Base().Name; name != "" {
		c.byName[name] = id
	}
	return id
}

// Get returns the material at the given index
func (c *Collection) Get(id uint32) Material {
	return c.materials[id]
}

// GetByName looks a material up by scene name
func (c *Collection) GetByName(name string) (Material, bool) {
	id, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return c.materials[id], true
}

// Replace swaps the material at a stable index, used by scene edits
func (c *Collection) Replace(id uint32, m Material) {
	m.Base().ID = id
	c.materials[id] = m
	if name := m.Base().Name; name != "" {
		c.byName[name] = id
	}
}

// Len returns the number of materials in the arena
func (c *Collection) Len() int {
	return len(c.materials)
}

// CheckMixCycles walks every mix material depth-first and reports an error
// if any mix refers back to itself through its children. Run at scene
// build; a failed check refuses the build.
func (c *Collection) CheckMixCycles() error {
	for id := range c.materials {
		visited := make(map[uint32]bool)
		if err := c.walkMix(uint32(id), visited); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collection) walkMix(id uint32, visited map[uint32]bool) error {
	mix, ok := c.materials[id].(*Mix)
	if !ok {
		return nil
	}
	if visited[id] {
		return fmt.Errorf("mix material cycle through %q", mix.Base().Name)
	}
	visited[id] = true
	if err := c.walkMix(mix.MaterialA, visited); err != nil {
		return err
	}
	if err := c.walkMix(mix.MaterialB, visited); err != nil {
		return err
	}
	delete(visited, id)
	return nil
}
