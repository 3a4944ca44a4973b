package accel

import (
	"github.com/df07/go-light-transport/pkg/core"
)

// Accelerator presents a set of meshes as a ray-intersection oracle.
// Implementations must be safe for concurrent use once built.
type Accelerator interface {
	// Intersect finds the closest hit in [ray.TMin, ray.TMax), or the
	// miss sentinel
	Intersect(ray core.Ray) (core.RayHit, bool)
	// WorldBounds returns the bounding box of all geometry
	WorldBounds() AABB
}

// triRef addresses a single triangle across the scene's mesh list
type triRef struct {
	mesh   uint32
	tri    uint32
	bounds AABB
}

// BVHNode represents a node in the bounding volume hierarchy
type BVHNode struct {
	BoundingBox AABB
	Left        *BVHNode
	Right       *BVHNode
	Refs        []triRef // non-nil for leaf nodes
}

// BVH is a bounding volume hierarchy over the triangles of all meshes
type BVH struct {
	Root   *BVHNode
	meshes []*Mesh
	bounds AABB
}

// Leaf threshold: nodes with this many or fewer triangles become leaves
const leafThreshold = 4

// NewBVH builds a BVH over the triangles of the given meshes, splitting
// each node at the midpoint of its bounds along the longest axis, the same
// strategy the scene rebuild uses after geometry edits.
func NewBVH(meshes []*Mesh) *BVH {
	var refs []triRef
	bounds := EmptyAABB()
	for mi, mesh := range meshes {
		for ti := range mesh.Triangles {
			b := mesh.Bounds(ti)
			refs = append(refs, triRef{mesh: uint32(mi), tri: uint32(ti), bounds: b})
			bounds = bounds.Union(b)
		}
	}

	bvh := &BVH{meshes: meshes, bounds: bounds}
	if len(refs) > 0 {
		bvh.Root = buildBVH(refs)
	}
	return bvh
}

func buildBVH(refs []triRef) *BVHNode {
	boundingBox := refs[0].bounds
	for i := 1; i < len(refs); i++ {
		boundingBox = boundingBox.Union(refs[i].bounds)
	}

	if len(refs) <= leafThreshold {
		return &BVHNode{BoundingBox: boundingBox, Refs: refs}
	}

	axis := boundingBox.LongestAxis()
	splitPos := axisValue(boundingBox.Center(), axis)

	var left, right []triRef
	for _, ref := range refs {
		if axisValue(ref.bounds.Center(), axis) < splitPos {
			left = append(left, ref)
		} else {
			right = append(right, ref)
		}
	}

	// Degenerate split (all centers coincident): fall back to a leaf
	if len(left) == 0 || len(right) == 0 {
		return &BVHNode{BoundingBox: boundingBox, Refs: refs}
	}

	return &BVHNode{
		BoundingBox: boundingBox,
		Left:        buildBVH(left),
		Right:       buildBVH(right),
	}
}

func axisValue(v core.Vec3, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// WorldBounds returns the bounding box of all geometry
func (bvh *BVH) WorldBounds() AABB {
	return bvh.bounds
}

// Intersect finds the closest triangle hit along the ray
func (bvh *BVH) Intersect(ray core.Ray) (core.RayHit, bool) {
	hit := core.MissHit()
	if bvh.Root == nil {
		return hit, false
	}
	found := bvh.intersectNode(bvh.Root, &ray, &hit)
	return hit, found
}

func (bvh *BVH) intersectNode(node *BVHNode, ray *core.Ray, best *core.RayHit) bool {
	if !node.BoundingBox.Hit(*ray, ray.TMin, ray.TMax) {
		return false
	}

	if node.Refs != nil {
		found := false
		for _, ref := range node.Refs {
			mesh := bvh.meshes[ref.mesh]
			if t, b1, b2, ok := mesh.intersectTriangle(int(ref.tri), *ray); ok {
				ray.TMax = t // narrow the interval for later tests
				*best = core.RayHit{T: t, B1: b1, B2: b2, MeshIndex: ref.mesh, TriIndex: ref.tri}
				found = true
			}
		}
		return found
	}

	foundLeft := node.Left != nil && bvh.intersectNode(node.Left, ray, best)
	foundRight := node.Right != nil && bvh.intersectNode(node.Right, ray, best)
	return foundLeft || foundRight
}
