package accel

import (
	"math"
	"math/rand"
	"testing"

	"github.com/df07/go-light-transport/pkg/core"
)

// randomTriangleSoup builds a mesh of n random triangles inside the unit
// cube
func randomTriangleSoup(n int, seed int64) *Mesh {
	rng := rand.New(rand.NewSource(seed))
	mesh := &Mesh{}
	for i := 0; i < n; i++ {
		base := core.NewVec3(rng.Float64(), rng.Float64(), rng.Float64())
		for j := 0; j < 3; j++ {
			offset := core.NewVec3(rng.Float64()*0.2, rng.Float64()*0.2, rng.Float64()*0.2)
			mesh.Vertices = append(mesh.Vertices, base.Add(offset))
		}
		mesh.Triangles = append(mesh.Triangles, Triangle{
			V0: uint32(3 * i), V1: uint32(3*i + 1), V2: uint32(3*i + 2),
		})
	}
	return mesh
}

// bruteForceIntersect tests every triangle, the reference the BVH must
// match
func bruteForceIntersect(mesh *Mesh, ray core.Ray) (core.RayHit, bool) {
	best := core.MissHit()
	found := false
	for i := range mesh.Triangles {
		if t, b1, b2, ok := mesh.intersectTriangle(i, ray); ok {
			ray.TMax = t
			best = core.RayHit{T: t, B1: b1, B2: b2, MeshIndex: 0, TriIndex: uint32(i)}
			found = true
		}
	}
	return best, found
}

func TestBVHMatchesBruteForce(t *testing.T) {
	mesh := randomTriangleSoup(200, 17)
	bvh := NewBVH([]*Mesh{mesh})

	rng := rand.New(rand.NewSource(23))
	hits := 0
	for i := 0; i < 2000; i++ {
		origin := core.NewVec3(rng.Float64()*3-1, rng.Float64()*3-1, -1)
		target := core.NewVec3(rng.Float64(), rng.Float64(), rng.Float64())
		ray := core.NewRay(origin, target.Subtract(origin).Normalize())

		bvhHit, bvhFound := bvh.Intersect(ray)
		refHit, refFound := bruteForceIntersect(mesh, ray)

		if bvhFound != refFound {
			t.Fatalf("ray %d: bvh found=%v, brute force found=%v", i, bvhFound, refFound)
		}
		if bvhFound {
			hits++
			if math.Abs(bvhHit.T-refHit.T) > 1e-9 {
				t.Fatalf("ray %d: bvh t=%v, brute force t=%v", i, bvhHit.T, refHit.T)
			}
			if bvhHit.TriIndex != refHit.TriIndex {
				t.Fatalf("ray %d: bvh tri=%d, brute force tri=%d", i, bvhHit.TriIndex, refHit.TriIndex)
			}
		}
	}
	if hits == 0 {
		t.Fatal("no test rays hit the soup")
	}
}

func TestBVHRespectsRayExtent(t *testing.T) {
	mesh := &Mesh{
		Vertices: []core.Vec3{
			{X: -1, Y: -1, Z: 2}, {X: 1, Y: -1, Z: 2}, {X: 0, Y: 1, Z: 2},
		},
		Triangles: []Triangle{{V0: 0, V1: 1, V2: 2}},
	}
	bvh := NewBVH([]*Mesh{mesh})

	// TMax short of the triangle: no hit
	ray := core.NewRayRange(core.NewVec3(0, 0, 0), core.NewVec3(0, 0, 1), 1e-5, 1.5)
	if _, found := bvh.Intersect(ray); found {
		t.Fatal("hit beyond TMax reported")
	}

	// TMin past the triangle: no hit
	ray = core.NewRayRange(core.NewVec3(0, 0, 0), core.NewVec3(0, 0, 1), 2.5, 100)
	if _, found := bvh.Intersect(ray); found {
		t.Fatal("hit before TMin reported")
	}

	ray = core.NewRayRange(core.NewVec3(0, 0, 0), core.NewVec3(0, 0, 1), 1e-5, 100)
	hit, found := bvh.Intersect(ray)
	if !found || math.Abs(hit.T-2) > 1e-9 {
		t.Fatalf("expected hit at t=2, got %v found=%v", hit.T, found)
	}
}

func TestMeshBarycentricInterpolation(t *testing.T) {
	mesh := &Mesh{
		Vertices: []core.Vec3{
			{X: 0, Y: 0, Z: 0}, {X: 2, Y: 0, Z: 0}, {X: 0, Y: 2, Z: 0},
		},
		UVs:       []core.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}},
		Triangles: []Triangle{{V0: 0, V1: 1, V2: 2}},
	}

	p := mesh.PointAt(0, 0.25, 0.5)
	if !p.Equals(core.NewVec3(0.5, 1, 0)) {
		t.Fatalf("interpolated point %v", p)
	}
	uv := mesh.UVAt(0, 0.25, 0.5)
	if uv.X != 0.25 || uv.Y != 0.5 {
		t.Fatalf("interpolated uv %v", uv)
	}
	if got := mesh.TriangleArea(0); got != 2 {
		t.Fatalf("area %v, expected 2", got)
	}
}
