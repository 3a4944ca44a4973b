package loaders

import (
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/df07/go-light-transport/pkg/accel"
	"github.com/df07/go-light-transport/pkg/core"
)

// LoadGLTF reads a .glb or .gltf file and merges every mesh primitive of
// the document into a single triangle mesh. Materials come from the scene
// properties, not from the glTF document; only the geometry is used.
func LoadGLTF(path string) (*accel.Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltf %q: %w", path, err)
	}

	mesh := &accel.Mesh{}
	hasNormals := true
	hasUVs := true

	for mi, gm := range doc.Meshes {
		for pi, prim := range gm.Primitives {
			posIdx, ok := prim.Attributes["POSITION"]
			if !ok {
				return nil, fmt.Errorf("gltf %q: mesh %d primitive %d has no POSITION", path, mi, pi)
			}
			positions, pErr := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
			if pErr != nil {
				return nil, fmt.Errorf("gltf %q: positions: %w", path, pErr)
			}

			var normals [][3]float32
			if idx, ok := prim.Attributes["NORMAL"]; ok {
				normals, _ = modeler.ReadNormal(doc, doc.Accessors[idx], nil)
			}
			var uvs [][2]float32
			if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
				uvs, _ = modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil)
			}

			baseVertex := uint32(len(mesh.Vertices))
			for i, p := range positions {
				mesh.Vertices = append(mesh.Vertices, core.NewVec3(float64(p[0]), float64(p[1]), float64(p[2])))
				if i < len(normals) {
					n := normals[i]
					mesh.Normals = append(mesh.Normals, core.NewVec3(float64(n[0]), float64(n[1]), float64(n[2])))
				} else {
					hasNormals = false
				}
				if i < len(uvs) {
					mesh.UVs = append(mesh.UVs, core.NewVec2(float64(uvs[i][0]), float64(uvs[i][1])))
				} else {
					hasUVs = false
				}
			}

			var indices []uint32
			if prim.Indices != nil {
				indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
				if err != nil {
					return nil, fmt.Errorf("gltf %q: indices: %w", path, err)
				}
			} else {
				indices = make([]uint32, len(positions))
				for i := range indices {
					indices[i] = uint32(i)
				}
			}

			for i := 0; i+2 < len(indices); i += 3 {
				mesh.Triangles = append(mesh.Triangles, accel.Triangle{
					V0: baseVertex + indices[i],
					V1: baseVertex + indices[i+1],
					V2: baseVertex + indices[i+2],
				})
			}
		}
	}

	if len(mesh.Vertices) == 0 || len(mesh.Triangles) == 0 {
		return nil, fmt.Errorf("gltf %q: no geometry", path)
	}
	// Drop attribute arrays that some primitives were missing
	if !hasNormals {
		mesh.Normals = nil
	}
	if !hasUVs {
		mesh.UVs = nil
	}
	return mesh, nil
}
