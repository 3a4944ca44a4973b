package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/df07/go-light-transport/pkg/core"
)

// Camera is a perspective camera with an optional thin lens. Raster
// coordinates run [0,width) x [0,height) with y growing downward.
type Camera struct {
	Eye    core.Vec3
	Target core.Vec3
	Up     core.Vec3

	FOV           float64 // vertical field of view, degrees
	LensRadius    float64
	FocalDistance float64
	ClipHither    float64
	ClipYon       float64

	Width  int
	Height int

	// ScreenWindow stores the configured screen window; GenerateRay,
	// WorldToRaster and PdfW do not read it and always map the full raster
	ScreenWindow [4]float64
	HasWindow    bool

	forward core.Vec3
	right   core.Vec3
	up      core.Vec3

	// imagePlaneDist is the distance to the image plane in raster units
	imagePlaneDist float64
}

// NewCamera creates a camera with the usual defaults
func NewCamera(eye, target, up core.Vec3, fov float64, width, height int) *Camera {
	c := &Camera{
		Eye:        eye,
		Target:     target,
		Up:         up,
		FOV:        fov,
		ClipHither: 1e-3,
		ClipYon:    math.Inf(1),
		Width:      width,
		Height:     height,
	}
	c.Update()
	return c
}

// Update recomputes the derived frame after any parameter edit. The
// lookat basis comes out of a mathgl view matrix so camera transforms stay
// consistent with object transforms.
func (c *Camera) Update() {
	view := mgl64.LookAtV(
		mgl64.Vec3{c.Eye.X, c.Eye.Y, c.Eye.Z},
		mgl64.Vec3{c.Target.X, c.Target.Y, c.Target.Z},
		mgl64.Vec3{c.Up.X, c.Up.Y, c.Up.Z},
	).Inv()

	right := view.Mul4x1(mgl64.Vec4{1, 0, 0, 0})
	upv := view.Mul4x1(mgl64.Vec4{0, 1, 0, 0})
	fwd := view.Mul4x1(mgl64.Vec4{0, 0, -1, 0})

	c.right = core.NewVec3(right.X(), right.Y(), right.Z())
	c.up = core.NewVec3(upv.X(), upv.Y(), upv.Z())
	c.forward = core.NewVec3(fwd.X(), fwd.Y(), fwd.Z())

	c.imagePlaneDist = float64(c.Height) / 2 / math.Tan(c.FOV*math.Pi/180/2)
}

// Forward returns the viewing direction
func (c *Camera) Forward() core.Vec3 { return c.forward }

// GenerateRay maps a raster position plus lens samples to a primary ray
func (c *Camera) GenerateRay(filmX, filmY, u0, u1 float64) core.Ray {
	// Raster to camera plane, y flipped
	px := filmX - float64(c.Width)/2
	py := float64(c.Height)/2 - filmY

	dir := c.forward.Multiply(c.imagePlaneDist).
		Add(c.right.Multiply(px)).
		Add(c.up.Multiply(py)).
		Normalize()

	origin := c.Eye
	if c.LensRadius > 0 && c.FocalDistance > 0 {
		// Thin lens: jitter the origin on the lens disk and refocus
		lx, ly := core.ConcentricSampleDisk(u0, u1)
		lensPoint := c.right.Multiply(lx * c.LensRadius).Add(c.up.Multiply(ly * c.LensRadius))

		ft := c.FocalDistance / dir.Dot(c.forward)
		focusPoint := c.Eye.Add(dir.Multiply(ft))

		origin = c.Eye.Add(lensPoint)
		dir = focusPoint.Subtract(origin).Normalize()
	}

	return core.NewRayRange(origin, dir, math.Max(c.ClipHither, core.DefaultEpsilon), c.ClipYon)
}

// WorldToRaster projects a world point back to raster coordinates.
// Visible is false behind the camera or outside the film.
func (c *Camera) WorldToRaster(p core.Vec3) (float64, float64, bool) {
	delta := p.Subtract(c.Eye)
	z := delta.Dot(c.forward)
	if z < c.ClipHither {
		return 0, 0, false
	}

	scale := c.imagePlaneDist / z
	x := delta.Dot(c.right) * scale
	y := delta.Dot(c.up) * scale

	filmX := x + float64(c.Width)/2
	filmY := float64(c.Height)/2 - y
	if filmX < 0 || filmX >= float64(c.Width) || filmY < 0 || filmY >= float64(c.Height) {
		return 0, 0, false
	}
	return filmX, filmY, true
}

// PdfW returns the solid-angle pdf of generating a camera ray through one
// unit of raster area in the given direction, zero outside the frustum
func (c *Camera) PdfW(dir core.Vec3) float64 {
	cosTheta := dir.Dot(c.forward)
	if cosTheta <= 0 {
		return 0
	}
	// One raster-area unit maps to cos^3/d^2 of solid angle
	return c.imagePlaneDist * c.imagePlaneDist / (cosTheta * cosTheta * cosTheta)
}
