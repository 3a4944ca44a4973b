package loaders

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/df07/go-light-transport/pkg/accel"
	"github.com/df07/go-light-transport/pkg/core"
)

// plyProperty describes one property of a PLY element
type plyProperty struct {
	name     string
	typeName string
	isList   bool
	listType string
}

type plyElement struct {
	name       string
	count      int
	properties []plyProperty
}

// LoadPLY reads an ascii or binary little-endian PLY mesh. Positions are
// required; normals and UVs are picked up when present.
func LoadPLY(path string) (*accel.Mesh, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ply %q: %w", path, err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)

	// Header
	line, err := readPLYLine(reader)
	if err != nil || line != "ply" {
		return nil, fmt.Errorf("ply %q: not a PLY file", path)
	}

	format := ""
	var elements []plyElement
	for {
		line, err = readPLYLine(reader)
		if err != nil {
			return nil, fmt.Errorf("ply %q: truncated header: %w", path, err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "comment", "obj_info":
		case "format":
			if len(fields) < 2 {
				return nil, fmt.Errorf("ply %q: malformed format line", path)
			}
			format = fields[1]
		case "element":
			if len(fields) < 3 {
				return nil, fmt.Errorf("ply %q: malformed element line", path)
			}
			count, cErr := strconv.Atoi(fields[2])
			if cErr != nil {
				return nil, fmt.Errorf("ply %q: bad element count: %w", path, cErr)
			}
			elements = append(elements, plyElement{name: fields[1], count: count})
		case "property":
			if len(elements) == 0 || len(fields) < 3 {
				return nil, fmt.Errorf("ply %q: property outside element", path)
			}
			el := &elements[len(elements)-1]
			if fields[1] == "list" {
				if len(fields) < 5 {
					return nil, fmt.Errorf("ply %q: malformed list property", path)
				}
				el.properties = append(el.properties, plyProperty{
					name: fields[4], typeName: fields[3], isList: true, listType: fields[2],
				})
			} else {
				el.properties = append(el.properties, plyProperty{name: fields[2], typeName: fields[1]})
			}
		case "end_header":
			goto body
		default:
			return nil, fmt.Errorf("ply %q: unknown header keyword %q", path, fields[0])
		}
	}

body:
	switch format {
	case "ascii":
		return readPLYAscii(path, reader, elements)
	case "binary_little_endian":
		return readPLYBinary(path, reader, elements)
	default:
		return nil, fmt.Errorf("ply %q: unsupported format %q", path, format)
	}
}

func readPLYLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func readPLYAscii(path string, reader *bufio.Reader, elements []plyElement) (*accel.Mesh, error) {
	mesh := &accel.Mesh{}

	for _, el := range elements {
		for i := 0; i < el.count; i++ {
			line, err := readPLYLine(reader)
			if err != nil {
				return nil, fmt.Errorf("ply %q: truncated data: %w", path, err)
			}
			fields := strings.Fields(line)

			switch el.name {
			case "vertex":
				if err := appendPLYVertex(mesh, el, fields); err != nil {
					return nil, fmt.Errorf("ply %q: %w", path, err)
				}
			case "face":
				if len(fields) < 1 {
					return nil, fmt.Errorf("ply %q: empty face", path)
				}
				n, _ := strconv.Atoi(fields[0])
				if len(fields) < n+1 {
					return nil, fmt.Errorf("ply %q: short face line", path)
				}
				indices := make([]uint32, n)
				for k := 0; k < n; k++ {
					v, _ := strconv.Atoi(fields[k+1])
					indices[k] = uint32(v)
				}
				appendPLYFace(mesh, indices)
			}
		}
	}

	return finishPLYMesh(path, mesh)
}

func appendPLYVertex(mesh *accel.Mesh, el plyElement, fields []string) error {
	if len(fields) < len(el.properties) {
		return fmt.Errorf("short vertex line")
	}
	var x, y, z, nx, ny, nz, u, v float64
	hasNormal, hasUV := false, false

	for i, prop := range el.properties {
		val, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return fmt.Errorf("bad vertex value %q", fields[i])
		}
		switch prop.name {
		case "x":
			x = val
		case "y":
			y = val
		case "z":
			z = val
		case "nx":
			nx, hasNormal = val, true
		case "ny":
			ny = val
		case "nz":
			nz = val
		case "u", "s":
			u, hasUV = val, true
		case "v", "t":
			v = val
		}
	}

	mesh.Vertices = append(mesh.Vertices, core.NewVec3(x, y, z))
	if hasNormal {
		mesh.Normals = append(mesh.Normals, core.NewVec3(nx, ny, nz))
	}
	if hasUV {
		mesh.UVs = append(mesh.UVs, core.NewVec2(u, v))
	}
	return nil
}

// appendPLYFace fan-triangulates polygons
func appendPLYFace(mesh *accel.Mesh, indices []uint32) {
	for k := 2; k < len(indices); k++ {
		mesh.Triangles = append(mesh.Triangles, accel.Triangle{
			V0: indices[0], V1: indices[k-1], V2: indices[k],
		})
	}
}

func readPLYBinary(path string, reader *bufio.Reader, elements []plyElement) (*accel.Mesh, error) {
	mesh := &accel.Mesh{}

	for _, el := range elements {
		for i := 0; i < el.count; i++ {
			switch el.name {
			case "vertex":
				fields := make([]string, len(el.properties))
				for pi, prop := range el.properties {
					val, err := readPLYScalar(reader, prop.typeName)
					if err != nil {
						return nil, fmt.Errorf("ply %q: %w", path, err)
					}
					fields[pi] = strconv.FormatFloat(val, 'g', -1, 64)
				}
				if err := appendPLYVertex(mesh, el, fields); err != nil {
					return nil, fmt.Errorf("ply %q: %w", path, err)
				}
			case "face":
				for _, prop := range el.properties {
					if !prop.isList {
						if _, err := readPLYScalar(reader, prop.typeName); err != nil {
							return nil, fmt.Errorf("ply %q: %w", path, err)
						}
						continue
					}
					nf, err := readPLYScalar(reader, prop.listType)
					if err != nil {
						return nil, fmt.Errorf("ply %q: %w", path, err)
					}
					n := int(nf)
					indices := make([]uint32, n)
					for k := 0; k < n; k++ {
						v, vErr := readPLYScalar(reader, prop.typeName)
						if vErr != nil {
							return nil, fmt.Errorf("ply %q: %w", path, vErr)
						}
						indices[k] = uint32(v)
					}
					if prop.name == "vertex_indices" || prop.name == "vertex_index" {
						appendPLYFace(mesh, indices)
					}
				}
			}
		}
	}

	return finishPLYMesh(path, mesh)
}

func readPLYScalar(r io.Reader, typeName string) (float64, error) {
	switch typeName {
	case "char", "int8":
		var v int8
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return float64(v), nil
	case "uchar", "uint8":
		var v uint8
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return float64(v), nil
	case "short", "int16":
		var v int16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return float64(v), nil
	case "ushort", "uint16":
		var v uint16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return float64(v), nil
	case "int", "int32":
		var v int32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return float64(v), nil
	case "uint", "uint32":
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return float64(v), nil
	case "float", "float32":
		var v float32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return float64(v), nil
	case "double", "float64":
		var v float64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return v, nil
	default:
		return 0, fmt.Errorf("unsupported PLY type %q", typeName)
	}
}

func finishPLYMesh(path string, mesh *accel.Mesh) (*accel.Mesh, error) {
	if len(mesh.Vertices) == 0 || len(mesh.Triangles) == 0 {
		return nil, fmt.Errorf("ply %q: no geometry", path)
	}
	for _, tri := range mesh.Triangles {
		n := uint32(len(mesh.Vertices))
		if tri.V0 >= n || tri.V1 >= n || tri.V2 >= n {
			return nil, fmt.Errorf("ply %q: vertex index out of range", path)
		}
	}
	// Partial attribute arrays are worse than none
	if len(mesh.Normals) != 0 && len(mesh.Normals) != len(mesh.Vertices) {
		mesh.Normals = nil
	}
	if len(mesh.UVs) != 0 && len(mesh.UVs) != len(mesh.Vertices) {
		mesh.UVs = nil
	}
	for i, n := range mesh.Normals {
		if n.LengthSquared() < 1e-12 || math.IsNaN(n.X) {
			mesh.Normals[i] = core.NewVec3(0, 0, 1)
		}
	}
	return mesh, nil
}
