package scene

import (
	"fmt"
	"math"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/df07/go-light-transport/pkg/accel"
	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/lights"
	"github.com/df07/go-light-transport/pkg/loaders"
	"github.com/df07/go-light-transport/pkg/material"
	"github.com/df07/go-light-transport/pkg/texture"
)

// Build constructs a scene from parsed properties. Configuration errors
// (bad values, undefined references, mix cycles) are reported here, before
// the engine starts.
func Build(props *Properties, imageMaps *texture.ImageMapCache) (*Scene, error) {
	if imageMaps == nil {
		imageMaps = texture.NewImageMapCache()
	}

	s := &Scene{
		Materials: material.NewCollection(),
		Textures:  make(map[string]texture.Texture),
		Volumes:   make(map[string]material.Volume),
		Lights:    lights.NewLightDefinitions(),
		ImageMaps: imageMaps,
		Epsilon:   props.GetFloat("scene.epsilon", core.DefaultEpsilon),
	}

	if err := s.buildCamera(props); err != nil {
		return nil, err
	}
	if err := s.buildTextures(props); err != nil {
		return nil, err
	}
	if err := s.buildVolumes(props); err != nil {
		return nil, err
	}
	if err := s.buildMaterials(props); err != nil {
		return nil, err
	}
	if err := s.buildObjects(props); err != nil {
		return nil, err
	}
	if err := s.buildLights(props); err != nil {
		return nil, err
	}

	// Default world volumes
	if name := props.GetString("scene.world.volume.defaultinterior", ""); name != "" {
		vol, ok := s.Volumes[name]
		if !ok {
			return nil, fmt.Errorf("undefined default interior volume %q", name)
		}
		s.DefaultWorldVolume = vol
	}
	if name := props.GetString("scene.world.volume.defaultexterior", ""); name != "" {
		vol, ok := s.Volumes[name]
		if !ok {
			return nil, fmt.Errorf("undefined default exterior volume %q", name)
		}
		if s.DefaultWorldVolume == nil {
			s.DefaultWorldVolume = vol
		}
	}

	if err := s.Materials.CheckMixCycles(); err != nil {
		return nil, err
	}

	s.Preprocess()
	return s, nil
}

func (s *Scene) buildCamera(props *Properties) error {
	lookat, err := props.GetFloats("scene.camera.lookat")
	if err != nil || len(lookat) < 6 {
		return fmt.Errorf("scene.camera.lookat needs 6 floats (orig + target): %v", err)
	}

	eye := core.NewVec3(lookat[0], lookat[1], lookat[2])
	target := core.NewVec3(lookat[3], lookat[4], lookat[5])
	up := props.GetVec3("scene.camera.up", core.NewVec3(0, 0, 1))
	fov := props.GetFloat("scene.camera.fov", 45)

	width := props.GetInt("film.width", 640)
	height := props.GetInt("film.height", 480)

	cam := NewCamera(eye, target, up, fov, width, height)
	cam.LensRadius = props.GetFloat("scene.camera.lensradius", 0)
	cam.FocalDistance = props.GetFloat("scene.camera.focaldistance", 0)
	cam.ClipHither = props.GetFloat("scene.camera.cliphither", 1e-3)
	cam.ClipYon = props.GetFloat("scene.camera.clipyon", math.Inf(1))
	if window, err := props.GetFloats("scene.camera.screenwindow"); err == nil && len(window) == 4 {
		copy(cam.ScreenWindow[:], window)
		cam.HasWindow = true
	}
	cam.Update()

	s.Camera = cam
	return nil
}

// texRef resolves a texture property: inline constants (1 or 3 floats) or
// a reference to a named texture
func (s *Scene) texRef(props *Properties, key string) (texture.Texture, error) {
	values := props.GetStrings(key)
	if len(values) == 0 {
		return nil, nil
	}

	if f0, err := strconv.ParseFloat(values[0], 64); err == nil {
		if len(values) >= 3 {
			f1, err1 := strconv.ParseFloat(values[1], 64)
			f2, err2 := strconv.ParseFloat(values[2], 64)
			if err1 == nil && err2 == nil {
				return texture.NewConstSpectrum(core.NewVec3(f0, f1, f2)), nil
			}
		}
		return texture.NewConstFloat(f0), nil
	}

	tex, ok := s.Textures[values[0]]
	if !ok {
		return nil, fmt.Errorf("%s: undefined texture %q", key, values[0])
	}
	return tex, nil
}

func (s *Scene) texRefDefault(props *Properties, key string, def texture.Texture) (texture.Texture, error) {
	tex, err := s.texRef(props, key)
	if err != nil {
		return nil, err
	}
	if tex == nil {
		return def, nil
	}
	return tex, nil
}

func (s *Scene) buildTextures(props *Properties) error {
	for _, name := range props.Names("scene.textures") {
		prefix := "scene.textures." + name
		texType := props.GetString(prefix+".type", "")

		var tex texture.Texture
		var err error
		switch texType {
		case "constfloat1":
			tex = texture.NewConstFloat(props.GetFloat(prefix+".value", 1))
		case "constfloat3":
			tex = texture.NewConstSpectrum(props.GetVec3(prefix+".value", core.White))
		case "imagemap", "normalmap":
			file := props.GetString(prefix+".file", "")
			defaultGamma := 2.2
			if texType == "normalmap" {
				defaultGamma = 1 // normal maps are linear data
			}
			gamma := props.GetFloat(prefix+".gamma", defaultGamma)
			im, imErr := s.ImageMaps.Get(file, gamma)
			if imErr != nil {
				return imErr
			}
			t := texture.NewImageMapTexture(im)
			t.Gain = props.GetFloat(prefix+".gain", 1)
			t.UScale = props.GetFloat(prefix+".uvscale.u", 1)
			t.VScale = props.GetFloat(prefix+".uvscale.v", 1)
			tex = t
		case "scale":
			tex, err = s.twoTexOp(props, prefix, func(a, b texture.Texture) texture.Texture {
				return &texture.Scale{Tex1: a, Tex2: b}
			})
		case "add":
			tex, err = s.twoTexOp(props, prefix, func(a, b texture.Texture) texture.Texture {
				return &texture.Add{Tex1: a, Tex2: b}
			})
		case "mix":
			amount, aErr := s.texRefDefault(props, prefix+".amount", texture.NewConstFloat(0.5))
			if aErr != nil {
				return aErr
			}
			var t1, t2 texture.Texture
			t1, err = s.texRefDefault(props, prefix+".texture1", texture.NewConstFloat(0))
			if err == nil {
				t2, err = s.texRefDefault(props, prefix+".texture2", texture.NewConstFloat(1))
			}
			if err == nil {
				tex = &texture.Mix{Amount: amount, Tex1: t1, Tex2: t2}
			}
		case "checkerboard2d":
			tex, err = s.twoTexOp(props, prefix, func(a, b texture.Texture) texture.Texture {
				return &texture.Checkerboard2D{Tex1: a, Tex2: b}
			})
		case "checkerboard3d":
			tex, err = s.twoTexOp(props, prefix, func(a, b texture.Texture) texture.Texture {
				return &texture.Checkerboard3D{Tex1: a, Tex2: b}
			})
		case "fbm":
			tex = &texture.FBmTexture{
				Omega:   props.GetFloat(prefix+".omega", 0.5),
				Octaves: props.GetInt(prefix+".octaves", 8),
			}
		case "wrinkled":
			tex = &texture.WrinkledTexture{
				Omega:   props.GetFloat(prefix+".omega", 0.5),
				Octaves: props.GetInt(prefix+".octaves", 8),
			}
		case "windy":
			tex = &texture.WindyTexture{}
		case "marble":
			tex = &texture.MarbleTexture{
				Scale:     props.GetFloat(prefix+".scale", 1),
				Omega:     props.GetFloat(prefix+".omega", 0.5),
				Octaves:   props.GetInt(prefix+".octaves", 8),
				Variation: props.GetFloat(prefix+".variation", 0.2),
			}
		case "brick":
			brickTex, bErr := s.texRefDefault(props, prefix+".bricktex", texture.NewConstSpectrum(core.NewVec3(0.55, 0.25, 0.15)))
			if bErr != nil {
				return bErr
			}
			mortarTex, mErr := s.texRefDefault(props, prefix+".mortartex", texture.NewConstSpectrum(core.NewVec3(0.8, 0.8, 0.8)))
			if mErr != nil {
				return mErr
			}
			b := texture.NewBrick(brickTex, mortarTex)
			b.BrickWidth = props.GetFloat(prefix+".brickwidth", b.BrickWidth)
			b.BrickHeight = props.GetFloat(prefix+".brickheight", b.BrickHeight)
			b.MortarSize = props.GetFloat(prefix+".mortarsize", b.MortarSize)
			tex = b
		case "dots":
			inside, iErr := s.texRefDefault(props, prefix+".inside", texture.NewConstFloat(1))
			if iErr != nil {
				return iErr
			}
			outside, oErr := s.texRefDefault(props, prefix+".outside", texture.NewConstFloat(0))
			if oErr != nil {
				return oErr
			}
			tex = &texture.Dots{Inside: inside, Outside: outside}
		case "uv":
			tex = &texture.UV{}
		case "hitpointcolor":
			tex = &texture.HitPointColor{}
		case "hitpointalpha":
			tex = &texture.HitPointAlpha{}
		case "band":
			amount, aErr := s.texRefDefault(props, prefix+".amount", texture.NewConstFloat(0.5))
			if aErr != nil {
				return aErr
			}
			band := &texture.Band{Amount: amount}
			for i := 0; ; i++ {
				offsetKey := fmt.Sprintf("%s.offset%d", prefix, i)
				if !props.Has(offsetKey) {
					break
				}
				band.Offsets = append(band.Offsets, props.GetFloat(offsetKey, 0))
				band.Values = append(band.Values, props.GetVec3(fmt.Sprintf("%s.value%d", prefix, i), core.Black))
			}
			if len(band.Offsets) == 0 {
				return fmt.Errorf("band texture %q has no offsets", name)
			}
			tex = band
		case "fresnelapproxn":
			inner, iErr := s.texRefDefault(props, prefix+".texture", texture.NewConstFloat(0.5))
			if iErr != nil {
				return iErr
			}
			tex = &texture.FresnelApproxN{Tex: inner}
		case "fresnelapproxk":
			inner, iErr := s.texRefDefault(props, prefix+".texture", texture.NewConstFloat(0.5))
			if iErr != nil {
				return iErr
			}
			tex = &texture.FresnelApproxK{Tex: inner}
		default:
			return fmt.Errorf("texture %q: unknown type %q", name, texType)
		}
		if err != nil {
			return err
		}
		s.Textures[name] = tex
	}
	return nil
}

func (s *Scene) twoTexOp(props *Properties, prefix string, combine func(a, b texture.Texture) texture.Texture) (texture.Texture, error) {
	t1, err := s.texRefDefault(props, prefix+".texture1", texture.NewConstFloat(1))
	if err != nil {
		return nil, err
	}
	t2, err := s.texRefDefault(props, prefix+".texture2", texture.NewConstFloat(1))
	if err != nil {
		return nil, err
	}
	return combine(t1, t2), nil
}

func (s *Scene) buildVolumes(props *Properties) error {
	for _, name := range props.Names("scene.volumes") {
		prefix := "scene.volumes." + name
		volType := props.GetString(prefix+".type", "")

		ior, err := s.texRefDefault(props, prefix+".ior", texture.NewConstFloat(1))
		if err != nil {
			return err
		}
		absorption, err := s.texRefDefault(props, prefix+".absorption", texture.NewConstSpectrum(core.Black))
		if err != nil {
			return err
		}
		scattering, err := s.texRefDefault(props, prefix+".scattering", texture.NewConstSpectrum(core.Black))
		if err != nil {
			return err
		}
		asymmetry, err := s.texRefDefault(props, prefix+".asymmetry", texture.NewConstFloat(0))
		if err != nil {
			return err
		}
		priority := props.GetInt(prefix+".priority", 0)
		multi := props.GetBool(prefix+".multiscattering", false)

		var vol material.Volume
		switch volType {
		case "clear":
			vol = material.NewClearVolume(name, ior, absorption, priority)
		case "homogeneous":
			vol = material.NewHomogeneousVolume(name, ior, absorption, scattering, asymmetry, priority, multi)
		case "heterogeneous":
			stepSize := props.GetFloat(prefix+".steps.size", 0)
			maxSteps := props.GetInt(prefix+".steps.maxcount", 32)
			het, hErr := material.NewHeterogeneousVolume(name, ior, absorption, scattering, asymmetry, priority, multi, stepSize, maxSteps)
			if hErr != nil {
				return hErr
			}
			vol = het
		default:
			return fmt.Errorf("volume %q: unknown type %q", name, volType)
		}

		s.Volumes[name] = vol
		s.Materials.Add(vol)
	}
	return nil
}

// buildMaterials resolves materials in dependency order so mix materials
// can reference previously defined ones; unresolvable references mean an
// undefined material or a definition cycle
func (s *Scene) buildMaterials(props *Properties) error {
	pending := props.Names("scene.materials")

	for len(pending) > 0 {
		progress := false
		var remaining []string

		for _, name := range pending {
			built, err := s.buildMaterial(props, name)
			if err != nil {
				return err
			}
			if built {
				progress = true
			} else {
				remaining = append(remaining, name)
			}
		}

		if !progress {
			return fmt.Errorf("unresolvable material references (undefined or cyclic): %v", remaining)
		}
		pending = remaining
	}
	return nil
}

// buildMaterial returns false when a mix dependency is not defined yet
func (s *Scene) buildMaterial(props *Properties, name string) (bool, error) {
	prefix := "scene.materials." + name
	matType := props.GetString(prefix+".type", "")

	white := texture.NewConstSpectrum(core.White)
	grey := texture.NewConstSpectrum(core.NewVec3(0.75, 0.75, 0.75))

	var mat material.Material
	switch matType {
	case "matte":
		kd, err := s.texRefDefault(props, prefix+".kd", grey)
		if err != nil {
			return false, err
		}
		mat = material.NewMatte(name, kd)
	case "mirror":
		kr, err := s.texRefDefault(props, prefix+".kr", white)
		if err != nil {
			return false, err
		}
		mat = material.NewMirror(name, kr)
	case "glass":
		kr, err := s.texRefDefault(props, prefix+".kr", white)
		if err != nil {
			return false, err
		}
		kt, err := s.texRefDefault(props, prefix+".kt", white)
		if err != nil {
			return false, err
		}
		interior, err := s.texRefDefault(props, prefix+".interiorior", texture.NewConstFloat(1.5))
		if err != nil {
			return false, err
		}
		exterior, err := s.texRefDefault(props, prefix+".exteriorior", texture.NewConstFloat(1))
		if err != nil {
			return false, err
		}
		mat = material.NewGlass(name, kr, kt, interior, exterior)
	case "archglass":
		kr, err := s.texRefDefault(props, prefix+".kr", white)
		if err != nil {
			return false, err
		}
		kt, err := s.texRefDefault(props, prefix+".kt", white)
		if err != nil {
			return false, err
		}
		mat = material.NewArchGlass(name, kr, kt)
	case "roughglass":
		kr, err := s.texRefDefault(props, prefix+".kr", white)
		if err != nil {
			return false, err
		}
		kt, err := s.texRefDefault(props, prefix+".kt", white)
		if err != nil {
			return false, err
		}
		interior, err := s.texRefDefault(props, prefix+".interiorior", texture.NewConstFloat(1.5))
		if err != nil {
			return false, err
		}
		nu, err := s.texRefDefault(props, prefix+".uroughness", texture.NewConstFloat(0.1))
		if err != nil {
			return false, err
		}
		nv, err := s.texRefDefault(props, prefix+".vroughness", texture.NewConstFloat(0.1))
		if err != nil {
			return false, err
		}
		mat = material.NewRoughGlass(name, kr, kt, interior, nu, nv)
	case "mattetranslucent":
		kr, err := s.texRefDefault(props, prefix+".kr", grey)
		if err != nil {
			return false, err
		}
		kt, err := s.texRefDefault(props, prefix+".kt", grey)
		if err != nil {
			return false, err
		}
		mat = material.NewMatteTranslucent(name, kr, kt)
	case "glossy2":
		kd, err := s.texRefDefault(props, prefix+".kd", grey)
		if err != nil {
			return false, err
		}
		ks, err := s.texRefDefault(props, prefix+".ks", texture.NewConstSpectrum(core.NewVec3(0.05, 0.05, 0.05)))
		if err != nil {
			return false, err
		}
		nu, err := s.texRefDefault(props, prefix+".uroughness", texture.NewConstFloat(0.1))
		if err != nil {
			return false, err
		}
		nv, err := s.texRefDefault(props, prefix+".vroughness", texture.NewConstFloat(0.1))
		if err != nil {
			return false, err
		}
		mat = material.NewGlossy2(name, kd, ks, nu, nv)
	case "metal2":
		eta, err := s.texRefDefault(props, prefix+".n", texture.NewConstSpectrum(core.NewVec3(0.2, 0.9, 1.4)))
		if err != nil {
			return false, err
		}
		k, err := s.texRefDefault(props, prefix+".k", texture.NewConstSpectrum(core.NewVec3(3.9, 2.4, 2.1)))
		if err != nil {
			return false, err
		}
		nu, err := s.texRefDefault(props, prefix+".uroughness", texture.NewConstFloat(0.05))
		if err != nil {
			return false, err
		}
		nv, err := s.texRefDefault(props, prefix+".vroughness", texture.NewConstFloat(0.05))
		if err != nil {
			return false, err
		}
		mat = material.NewMetal2(name, eta, k, nu, nv)
	case "velvet":
		kd, err := s.texRefDefault(props, prefix+".kd", grey)
		if err != nil {
			return false, err
		}
		p1, err := s.texRefDefault(props, prefix+".p1", texture.NewConstFloat(-2))
		if err != nil {
			return false, err
		}
		p2, err := s.texRefDefault(props, prefix+".p2", texture.NewConstFloat(20))
		if err != nil {
			return false, err
		}
		p3, err := s.texRefDefault(props, prefix+".p3", texture.NewConstFloat(2))
		if err != nil {
			return false, err
		}
		thickness, err := s.texRefDefault(props, prefix+".thickness", texture.NewConstFloat(0.1))
		if err != nil {
			return false, err
		}
		mat = material.NewVelvet(name, kd, p1, p2, p3, thickness)
	case "cloth":
		preset := material.ClothPreset(props.GetString(prefix+".preset", string(material.DenimPreset)))
		warpKd, err := s.texRefDefault(props, prefix+".warp_kd", grey)
		if err != nil {
			return false, err
		}
		warpKs, err := s.texRefDefault(props, prefix+".warp_ks", white)
		if err != nil {
			return false, err
		}
		weftKd, err := s.texRefDefault(props, prefix+".weft_kd", grey)
		if err != nil {
			return false, err
		}
		weftKs, err := s.texRefDefault(props, prefix+".weft_ks", white)
		if err != nil {
			return false, err
		}
		mat = material.NewCloth(name, preset, warpKd, warpKs, weftKd, weftKs)
	case "carpaint":
		if preset := props.GetString(prefix+".preset", ""); preset != "" {
			mat = material.NewCarPaintPreset(name, preset)
		} else {
			kd, err := s.texRefDefault(props, prefix+".kd", grey)
			if err != nil {
				return false, err
			}
			ks1, err := s.texRefDefault(props, prefix+".ks1", white)
			if err != nil {
				return false, err
			}
			ks2, err := s.texRefDefault(props, prefix+".ks2", white)
			if err != nil {
				return false, err
			}
			ks3, err := s.texRefDefault(props, prefix+".ks3", white)
			if err != nil {
				return false, err
			}
			m1, err := s.texRefDefault(props, prefix+".m1", texture.NewConstFloat(1))
			if err != nil {
				return false, err
			}
			m2, err := s.texRefDefault(props, prefix+".m2", texture.NewConstFloat(1))
			if err != nil {
				return false, err
			}
			m3, err := s.texRefDefault(props, prefix+".m3", texture.NewConstFloat(1))
			if err != nil {
				return false, err
			}
			r1, err := s.texRefDefault(props, prefix+".r1", texture.NewConstFloat(0.2))
			if err != nil {
				return false, err
			}
			r2, err := s.texRefDefault(props, prefix+".r2", texture.NewConstFloat(0.2))
			if err != nil {
				return false, err
			}
			r3, err := s.texRefDefault(props, prefix+".r3", texture.NewConstFloat(0.2))
			if err != nil {
				return false, err
			}
			mat = material.NewCarPaint(name, kd, ks1, ks2, ks3, m1, m2, m3, r1, r2, r3)
		}
	case "mix":
		nameA := props.GetString(prefix+".material1", "")
		nameB := props.GetString(prefix+".material2", "")
		matA, okA := s.Materials.GetByName(nameA)
		matB, okB := s.Materials.GetByName(nameB)
		if !okA || !okB {
			// Dependency not built yet; retry on the next pass
			return false, nil
		}
		amount, err := s.texRefDefault(props, prefix+".amount", texture.NewConstFloat(0.5))
		if err != nil {
			return false, err
		}
		mat = material.NewMix(name, s.Materials, matA.Base().ID, matB.Base().ID, amount)
	case "null":
		mat = material.NewNull(name)
	default:
		return false, fmt.Errorf("material %q: unknown type %q", name, matType)
	}

	if err := s.applySharedMaterialProps(props, prefix, mat); err != nil {
		return false, err
	}

	s.Materials.Add(mat)
	return true, nil
}

func (s *Scene) applySharedMaterialProps(props *Properties, prefix string, mat material.Material) error {
	base := mat.Base()

	emission, err := s.texRef(props, prefix+".emission")
	if err != nil {
		return err
	}
	if emission != nil {
		base.Emission = emission
		base.EmissionGain = props.GetVec3(prefix+".emission.gain", core.White)
		base.EmissionSamples = props.GetInt(prefix+".emission.samples", -1)
		if file := props.GetString(prefix+".emission.mapfile", ""); file != "" {
			im, imErr := s.ImageMaps.Get(file, 1)
			if imErr != nil {
				return imErr
			}
			base.EmissionMap = im
		}
	}

	if base.BumpTex, err = s.texRef(props, prefix+".bumptex"); err != nil {
		return err
	}
	if base.NormalTex, err = s.texRef(props, prefix+".normaltex"); err != nil {
		return err
	}
	base.BumpSampleDistance = props.GetFloat(prefix+".bumpsamplingdistance", 0.001)

	if name := props.GetString(prefix+".volume.interior", ""); name != "" {
		vol, ok := s.Volumes[name]
		if !ok {
			return fmt.Errorf("%s: undefined interior volume %q", prefix, name)
		}
		base.Interior = vol
	}
	if name := props.GetString(prefix+".volume.exterior", ""); name != "" {
		vol, ok := s.Volumes[name]
		if !ok {
			return fmt.Errorf("%s: undefined exterior volume %q", prefix, name)
		}
		base.Exterior = vol
	}

	base.VisibleIndirectDiffuse = props.GetBool(prefix+".visibility.indirect.diffuse.enable", true)
	base.VisibleIndirectGlossy = props.GetBool(prefix+".visibility.indirect.glossy.enable", true)
	base.VisibleIndirectSpecular = props.GetBool(prefix+".visibility.indirect.specular.enable", true)
	return nil
}

func (s *Scene) buildObjects(props *Properties) error {
	for _, name := range props.Names("scene.objects") {
		prefix := "scene.objects." + name

		matName := props.GetString(prefix+".material", "")
		mat, ok := s.Materials.GetByName(matName)
		if !ok {
			return fmt.Errorf("object %q: undefined material %q", name, matName)
		}

		var mesh *accel.Mesh
		var err error
		switch {
		case props.Has(prefix + ".ply"):
			mesh, err = loaders.LoadPLY(props.GetString(prefix+".ply", ""))
		case props.Has(prefix + ".gltf"):
			mesh, err = loaders.LoadGLTF(props.GetString(prefix+".gltf", ""))
		case props.Has(prefix + ".vertices"):
			mesh, err = inlineMesh(props, prefix)
		default:
			err = fmt.Errorf("object %q: no geometry source (ply, gltf or vertices)", name)
		}
		if err != nil {
			return err
		}
		mesh.Name = name

		if xform, xErr := props.GetFloats(prefix + ".transformation"); xErr == nil {
			if len(xform) != 16 {
				return fmt.Errorf("object %q: transformation needs 16 floats", name)
			}
			var m mgl64.Mat4
			// Property order is row-major; mathgl stores column-major
			for row := 0; row < 4; row++ {
				for col := 0; col < 4; col++ {
					m[col*4+row] = xform[row*4+col]
				}
			}
			mesh.Transform(m)
		}

		meshIndex := uint32(len(s.Meshes))
		s.Meshes = append(s.Meshes, mesh)
		s.MeshMaterials = append(s.MeshMaterials, mat)

		// Every triangle of an emissive mesh becomes its own light
		if mat.Base().IsLightSource() {
			for ti := range mesh.Triangles {
				s.Lights.Add(lights.NewTriangleLight(name, mesh, meshIndex, uint32(ti), mat))
			}
		}
	}
	return nil
}

func inlineMesh(props *Properties, prefix string) (*accel.Mesh, error) {
	verts, err := props.GetFloats(prefix + ".vertices")
	if err != nil {
		return nil, err
	}
	if len(verts)%3 != 0 {
		return nil, fmt.Errorf("%s.vertices: length must be a multiple of 3", prefix)
	}
	faces, err := props.GetFloats(prefix + ".faces")
	if err != nil {
		return nil, err
	}
	if len(faces)%3 != 0 {
		return nil, fmt.Errorf("%s.faces: length must be a multiple of 3", prefix)
	}

	mesh := &accel.Mesh{}
	for i := 0; i < len(verts); i += 3 {
		mesh.Vertices = append(mesh.Vertices, core.NewVec3(verts[i], verts[i+1], verts[i+2]))
	}
	vertexCount := len(mesh.Vertices)
	for i := 0; i < len(faces); i += 3 {
		tri := accel.Triangle{V0: uint32(faces[i]), V1: uint32(faces[i+1]), V2: uint32(faces[i+2])}
		if int(tri.V0) >= vertexCount || int(tri.V1) >= vertexCount || int(tri.V2) >= vertexCount {
			return nil, fmt.Errorf("%s.faces: vertex index out of range", prefix)
		}
		mesh.Triangles = append(mesh.Triangles, tri)
	}
	return mesh, nil
}

func (s *Scene) buildLights(props *Properties) error {
	for _, name := range props.Names("scene.lights") {
		prefix := "scene.lights." + name
		lightType := props.GetString(prefix+".type", "")

		gain := props.GetVec3(prefix+".gain", core.White)

		var light lights.LightSource
		switch lightType {
		case "constantinfinite":
			color := props.GetVec3(prefix+".color", core.White)
			light = lights.NewConstantInfiniteLight(name, color, gain)
		case "infinite":
			file := props.GetString(prefix+".file", "")
			im, err := s.ImageMaps.Get(file, props.GetFloat(prefix+".gamma", 1))
			if err != nil {
				return err
			}
			light = lights.NewInfiniteLight(name, im, gain)
		case "sky":
			dir := props.GetVec3(prefix+".dir", core.NewVec3(0, 0, 1))
			light = lights.NewSkyLight(name, dir, props.GetFloat(prefix+".turbidity", 2.2), gain)
		case "sky2":
			dir := props.GetVec3(prefix+".dir", core.NewVec3(0, 0, 1))
			albedo := props.GetVec3(prefix+".groundalbedo", core.NewVec3(0.2, 0.2, 0.2))
			light = lights.NewSky2Light(name, dir, props.GetFloat(prefix+".turbidity", 2.2), gain, albedo)
		case "sun":
			dir := props.GetVec3(prefix+".dir", core.NewVec3(0, 0, 1))
			light = lights.NewSunLight(name, dir,
				props.GetFloat(prefix+".turbidity", 2.2),
				props.GetFloat(prefix+".relsize", 1), gain)
		case "point":
			pos := props.GetVec3(prefix+".position", core.Black)
			color := props.GetVec3(prefix+".color", core.White)
			light = lights.NewPointLight(name, pos, color.MultiplyVec(gain))
		case "mappoint":
			pos := props.GetVec3(prefix+".position", core.Black)
			color := props.GetVec3(prefix+".color", core.White)
			file := props.GetString(prefix+".mapfile", "")
			im, err := s.ImageMaps.Get(file, 1)
			if err != nil {
				return err
			}
			light = lights.NewMapPointLight(name, pos, color.MultiplyVec(gain), im)
		case "spot":
			pos := props.GetVec3(prefix+".position", core.Black)
			target := props.GetVec3(prefix+".target", core.NewVec3(0, 0, 1))
			color := props.GetVec3(prefix+".color", core.White)
			coneAngle := props.GetFloat(prefix+".coneangle", 30) * math.Pi / 180
			coneDelta := props.GetFloat(prefix+".conedeltaangle", 5) * math.Pi / 180
			light = lights.NewSpotLight(name, pos, target, color.MultiplyVec(gain), coneAngle, coneDelta)
		case "projection":
			pos := props.GetVec3(prefix+".position", core.Black)
			target := props.GetVec3(prefix+".target", core.NewVec3(0, 0, 1))
			color := props.GetVec3(prefix+".color", core.White)
			fov := props.GetFloat(prefix+".fov", 45) * math.Pi / 180
			file := props.GetString(prefix+".mapfile", "")
			im, err := s.ImageMaps.Get(file, 2.2)
			if err != nil {
				return err
			}
			light = lights.NewProjectionLight(name, pos, target, color.MultiplyVec(gain), fov, im)
		case "distant":
			dir := props.GetVec3(prefix+".direction", core.NewVec3(0, 0, -1))
			color := props.GetVec3(prefix+".color", core.White)
			theta := props.GetFloat(prefix+".theta", 0.5) * math.Pi / 180
			light = lights.NewDistantLight(name, dir, color.MultiplyVec(gain), theta)
		case "sharpdistant":
			dir := props.GetVec3(prefix+".direction", core.NewVec3(0, 0, -1))
			color := props.GetVec3(prefix+".color", core.White)
			light = lights.NewSharpDistantLight(name, dir, color.MultiplyVec(gain))
		case "triangle":
			// Mesh emitters are declared through emissive materials on
			// objects; nothing to do here
			continue
		default:
			return fmt.Errorf("light %q: unknown type %q", name, lightType)
		}

		s.Lights.Add(light)
	}
	return nil
}
