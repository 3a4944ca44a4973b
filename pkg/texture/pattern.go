package texture

import (
	"math"

	"github.com/df07/go-light-transport/pkg/core"
)

// Checkerboard2D alternates two textures on the UV grid
type Checkerboard2D struct {
	Tex1, Tex2 Texture
}

func (t *Checkerboard2D) pick(hp *core.HitPoint) Texture {
	u := int(math.Floor(hp.UV.X))
	v := int(math.Floor(hp.UV.Y))
	if (u+v)%2 == 0 {
		return t.Tex1
	}
	return t.Tex2
}

func (t *Checkerboard2D) Float(hp *core.HitPoint) float64      { return t.pick(hp).Float(hp) }
func (t *Checkerboard2D) Spectrum(hp *core.HitPoint) core.Vec3 { return t.pick(hp).Spectrum(hp) }

// Checkerboard3D alternates two textures on the world-space lattice
type Checkerboard3D struct {
	Tex1, Tex2 Texture
}

func (t *Checkerboard3D) pick(hp *core.HitPoint) Texture {
	x := int(math.Floor(hp.P.X))
	y := int(math.Floor(hp.P.Y))
	z := int(math.Floor(hp.P.Z))
	if (x+y+z)%2 == 0 {
		return t.Tex1
	}
	return t.Tex2
}

func (t *Checkerboard3D) Float(hp *core.HitPoint) float64      { return t.pick(hp).Float(hp) }
func (t *Checkerboard3D) Spectrum(hp *core.HitPoint) core.Vec3 { return t.pick(hp).Spectrum(hp) }

// Dots places circular dots of one texture over another on the UV grid
type Dots struct {
	Inside, Outside Texture
}

func (t *Dots) pick(hp *core.HitPoint) Texture {
	sCell := math.Floor(hp.UV.X + 0.5)
	tCell := math.Floor(hp.UV.Y + 0.5)

	// Jitter the dot center per cell with noise
	if Noise(sCell+0.5, tCell+0.5, 0) > 0 {
		radius := 0.35
		maxShift := 0.5 - radius
		sCenter := sCell + maxShift*Noise(sCell+1.5, tCell+2.8, 0)
		tCenter := tCell + maxShift*Noise(sCell+4.5, tCell+9.8, 0)
		ds := hp.UV.X - sCenter
		dt := hp.UV.Y - tCenter
		if ds*ds+dt*dt < radius*radius {
			return t.Inside
		}
	}
	return t.Outside
}

func (t *Dots) Float(hp *core.HitPoint) float64      { return t.pick(hp).Float(hp) }
func (t *Dots) Spectrum(hp *core.HitPoint) core.Vec3 { return t.pick(hp).Spectrum(hp) }

// Brick lays running-bond bricks in UV space with a mortar texture between
type Brick struct {
	BrickTex, MortarTex Texture
	BrickWidth          float64
	BrickHeight         float64
	MortarSize          float64
}

// NewBrick creates a brick texture with standard proportions
func NewBrick(brick, mortar Texture) *Brick {
	return &Brick{
		BrickTex:    brick,
		MortarTex:   mortar,
		BrickWidth:  0.3,
		BrickHeight: 0.1,
		MortarSize:  0.01,
	}
}

func (t *Brick) inBrick(hp *core.HitPoint) bool {
	u := hp.UV.X
	v := hp.UV.Y

	row := math.Floor(v / t.BrickHeight)
	// Offset every other row by half a brick
	if int(row)%2 != 0 {
		u += t.BrickWidth / 2
	}

	bu := u - t.BrickWidth*math.Floor(u/t.BrickWidth)
	bv := v - t.BrickHeight*math.Floor(v/t.BrickHeight)
	return bu > t.MortarSize && bv > t.MortarSize
}

func (t *Brick) Float(hp *core.HitPoint) float64 {
	if t.inBrick(hp) {
		return t.BrickTex.Float(hp)
	}
	return t.MortarTex.Float(hp)
}

func (t *Brick) Spectrum(hp *core.HitPoint) core.Vec3 {
	if t.inBrick(hp) {
		return t.BrickTex.Spectrum(hp)
	}
	return t.MortarTex.Spectrum(hp)
}
