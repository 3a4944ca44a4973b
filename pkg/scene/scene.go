package scene

import (
	"math"

	"github.com/df07/go-light-transport/pkg/accel"
	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/lights"
	"github.com/df07/go-light-transport/pkg/material"
	"github.com/df07/go-light-transport/pkg/texture"
)

// Scene bundles everything rendering reads: camera, geometry, the
// materials arena, volumes, lights and the accelerator. All of it is
// read-only while workers run; edits go through the engine lifecycle.
type Scene struct {
	Camera *Camera

	Meshes        []*accel.Mesh
	MeshMaterials []material.Material

	Materials *material.Collection
	Textures  map[string]texture.Texture
	Volumes   map[string]material.Volume

	Lights *lights.LightDefinitions

	Accel accel.Accelerator

	// DefaultWorldVolume fills space not claimed by any object volume
	DefaultWorldVolume material.Volume

	Epsilon float64

	ImageMaps *texture.ImageMapCache

	// WorldCenter and WorldRadius describe the scene bounding sphere
	WorldCenter core.Vec3
	WorldRadius float64
}

// Preprocess builds the accelerator and the light table. Call after any
// geometry or light edit.
func (s *Scene) Preprocess() {
	s.Accel = accel.NewBVH(s.Meshes)
	s.WorldCenter, s.WorldRadius = s.Accel.WorldBounds().BoundingSphere()
	if !(s.WorldRadius > 0) || math.IsInf(s.WorldRadius, 1) {
		// Empty scenes still render env lights
		s.WorldCenter = core.Vec3{}
		s.WorldRadius = 100
	}
	s.Lights.Preprocess(s.WorldCenter, s.WorldRadius)
	if s.Epsilon <= 0 {
		s.Epsilon = core.DefaultEpsilon
	}
}

// RebuildLights refreshes only the light table (lights-only edits)
func (s *Scene) RebuildLights() {
	s.Lights.Preprocess(s.WorldCenter, s.WorldRadius)
}

// NewBSDF builds the shading record for a ray/hit pair: world position,
// shading frame with bump/normal mapping applied, interior/exterior
// crossing flags and the matching triangle light.
func (s *Scene) NewBSDF(ray core.Ray, rayHit core.RayHit, passThroughEvent float64, fromLight bool) material.BSDF {
	mesh := s.Meshes[rayHit.MeshIndex]
	mat := s.MeshMaterials[rayHit.MeshIndex]

	p := ray.At(rayHit.T)
	geomN := mesh.GeometricNormal(int(rayHit.TriIndex))
	shadeN := mesh.ShadingNormalAt(int(rayHit.TriIndex), rayHit.B1, rayHit.B2)
	uv := mesh.UVAt(int(rayHit.TriIndex), rayHit.B1, rayHit.B2)
	dpdu, dpdv := mesh.Tangents(int(rayHit.TriIndex))

	intoObject := ray.Direction.Dot(geomN) < 0
	if !intoObject {
		geomN = geomN.Negate()
		shadeN = shadeN.Negate()
	}

	hp := core.HitPoint{
		FixedDir:         ray.Direction.Negate(),
		P:                p,
		UV:               uv,
		GeometryN:        geomN,
		ShadeN:           shadeN,
		DpDu:             dpdu,
		DpDv:             dpdv,
		PassThroughEvent: passThroughEvent,
		MeshIndex:        rayHit.MeshIndex,
		TriIndex:         rayHit.TriIndex,
		IntoObject:       intoObject,
		FromLight:        fromLight,
	}

	s.applyBumpMapping(mat, &hp)

	bsdf := material.BSDF{
		HitPoint: hp,
		Material: mat,
		Frame:    core.NewFrameFromTangents(hp.ShadeN, hp.DpDu),
	}

	if tl := s.Lights.TriangleLightFor(rayHit.MeshIndex, rayHit.TriIndex); tl != nil {
		bsdf.TriangleLight = tl
	}
	return bsdf
}

// applyBumpMapping perturbs the shading normal with the material's bump
// or normal texture. The bump sampling distance applies uniformly, mix
// materials included.
func (s *Scene) applyBumpMapping(mat material.Material, hp *core.HitPoint) {
	base := mat.Base()

	if base.NormalTex != nil {
		// Tangent-space normal map
		rgb := base.NormalTex.Spectrum(hp)
		local := core.NewVec3(2*rgb.X-1, 2*rgb.Y-1, 2*rgb.Z-1)
		frame := core.NewFrameFromTangents(hp.ShadeN, hp.DpDu)
		perturbed := frame.ToWorld(local)
		if perturbed.LengthSquared() > 1e-12 {
			hp.ShadeN = perturbed.Normalize()
		}
		return
	}

	if base.BumpTex != nil {
		dist := base.BumpSampleDistance
		if dist <= 0 {
			dist = 0.001
		}

		center := base.BumpTex.Float(hp)

		hpU := *hp
		hpU.P = hp.P.Add(hp.DpDu.Multiply(dist))
		hpU.UV = core.NewVec2(hp.UV.X+dist, hp.UV.Y)
		du := (base.BumpTex.Float(&hpU) - center) / dist

		hpV := *hp
		hpV.P = hp.P.Add(hp.DpDv.Multiply(dist))
		hpV.UV = core.NewVec2(hp.UV.X, hp.UV.Y+dist)
		dv := (base.BumpTex.Float(&hpV) - center) / dist

		perturbed := hp.ShadeN.Add(hp.DpDu.Multiply(du)).Add(hp.DpDv.Multiply(dv))
		if perturbed.LengthSquared() > 1e-12 {
			hp.ShadeN = perturbed.Normalize()
		}
	}
}

// Intersect answers "what is on this ray" while transparently walking
// pass-through surfaces, the volume priority rule and medium scattering.
// It returns whether something was hit (a surface or a medium scatter
// event), the BSDF of that event, and multiplies connectionThroughput by
// all pass-through transparencies and volume transmittances crossed.
func (s *Scene) Intersect(fromLight bool, volInfo *material.PathVolumeInfo, passThroughEvent float64, ray *core.Ray, connectionThroughput *core.Vec3) (bool, material.BSDF) {
	for {
		hit, found := s.Accel.Intersect(*ray)

		var bsdf material.BSDF
		var currentVolume material.Volume
		if found {
			bsdf = s.NewBSDF(*ray, hit, passThroughEvent, fromLight)
			currentVolume = volInfo.CurrentVolume()
			if currentVolume == nil {
				// Not inside any object volume: pick the side volume
				// of the surface being approached
				if bsdf.HitPoint.IntoObject {
					currentVolume = bsdf.Material.Base().Exterior
				} else {
					currentVolume = bsdf.Material.Base().Interior
				}
			}
		} else {
			currentVolume = volInfo.CurrentVolume()
		}
		if currentVolume == nil {
			currentVolume = s.DefaultWorldVolume
		}

		if currentVolume != nil {
			segment := *ray
			if found {
				segment.TMax = hit.T
			}
			tScatter, _ := currentVolume.Scatter(segment, passThroughEvent, volInfo.ScatteredStart(), connectionThroughput)
			if tScatter > 0 {
				scatterBSDF := material.NewVolumeBSDF(*ray, tScatter, passThroughEvent, fromLight, currentVolume)
				volInfo.SetScatteredStart(true)
				return true, scatterBSDF
			}
		}

		if !found {
			return false, material.BSDF{}
		}

		// Volume priority: a dominated boundary is crossed silently
		if volInfo.ContinueToTrace(&bsdf) {
			volInfo.Update(material.TransmitEvent, &bsdf)
			ray.TMin = hit.T + s.Epsilon
			continue
		}

		if bsdf.IsPassThrough() {
			transparency := bsdf.GetPassThroughTransparency()
			if transparency.IsZero() {
				return true, bsdf // opaque cut-out
			}
			*connectionThroughput = connectionThroughput.MultiplyVec(transparency)
			volInfo.Update(material.TransmitEvent, &bsdf)
			ray.TMin = hit.T + s.Epsilon
			continue
		}

		return true, bsdf
	}
}

// TraceShadow traces a shadow ray, walking through pass-through surfaces.
// It returns false when the ray is blocked; otherwise transmittance holds
// the product of all transparencies and volume transmittances crossed.
func (s *Scene) TraceShadow(volInfo material.PathVolumeInfo, ray core.Ray, passThroughEvent float64) (bool, core.Vec3) {
	transmittance := core.White
	volInfo.SetScatteredStart(true) // shadow rays never scatter in media

	for {
		hit, found := s.Accel.Intersect(ray)
		if !found {
			// Apply residual volume transmittance over the open segment
			if vol := s.currentShadowVolume(&volInfo); vol != nil && !math.IsInf(ray.TMax, 1) {
				vol.Scatter(ray, 1, true, &transmittance)
			}
			return true, transmittance
		}

		bsdf := s.NewBSDF(ray, hit, passThroughEvent, false)

		if vol := s.currentShadowVolume(&volInfo); vol != nil {
			segment := ray
			segment.TMax = hit.T
			vol.Scatter(segment, 1, true, &transmittance)
		}

		if volInfo.ContinueToTrace(&bsdf) {
			volInfo.Update(material.TransmitEvent, &bsdf)
			ray.TMin = hit.T + s.Epsilon
			continue
		}

		if bsdf.IsPassThrough() {
			transparency := bsdf.GetPassThroughTransparency()
			if transparency.IsZero() {
				return false, core.Black
			}
			transmittance = transmittance.MultiplyVec(transparency)
			volInfo.Update(material.TransmitEvent, &bsdf)
			ray.TMin = hit.T + s.Epsilon
			continue
		}

		return false, core.Black // opaque blocker
	}
}

func (s *Scene) currentShadowVolume(volInfo *material.PathVolumeInfo) material.Volume {
	if v := volInfo.CurrentVolume(); v != nil {
		return v
	}
	return s.DefaultWorldVolume
}
