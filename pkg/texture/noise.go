package texture

import (
	"math"

	"github.com/df07/go-light-transport/pkg/core"
)

func sqrtf(v float64) float64 { return math.Sqrt(v) }

// Improved Perlin noise over a repeating 256-entry permutation, the usual
// gradient-noise basis for the procedural textures below.

var noisePerm = buildNoisePerm()

func buildNoisePerm() [512]int {
	base := [256]int{
		151, 160, 137, 91, 90, 15, 131, 13, 201, 95, 96, 53, 194, 233, 7, 225,
		140, 36, 103, 30, 69, 142, 8, 99, 37, 240, 21, 10, 23, 190, 6, 148,
		247, 120, 234, 75, 0, 26, 197, 62, 94, 252, 219, 203, 117, 35, 11, 32,
		57, 177, 33, 88, 237, 149, 56, 87, 174, 20, 125, 136, 171, 168, 68, 175,
		74, 165, 71, 134, 139, 48, 27, 166, 77, 146, 158, 231, 83, 111, 229, 122,
		60, 211, 133, 230, 220, 105, 92, 41, 55, 46, 245, 40, 244, 102, 143, 54,
		65, 25, 63, 161, 1, 216, 80, 73, 209, 76, 132, 187, 208, 89, 18, 169,
		200, 196, 135, 130, 116, 188, 159, 86, 164, 100, 109, 198, 173, 186, 3, 64,
		52, 217, 226, 250, 124, 123, 5, 202, 38, 147, 118, 126, 255, 82, 85, 212,
		207, 206, 59, 227, 47, 16, 58, 17, 182, 189, 28, 42, 223, 183, 170, 213,
		119, 248, 152, 2, 44, 154, 163, 70, 221, 153, 101, 155, 167, 43, 172, 9,
		129, 22, 39, 253, 19, 98, 108, 110, 79, 113, 224, 232, 178, 185, 112, 104,
		218, 246, 97, 228, 251, 34, 242, 193, 238, 210, 144, 12, 191, 179, 162, 241,
		81, 51, 145, 235, 249, 14, 239, 107, 49, 192, 214, 31, 181, 199, 106, 157,
		184, 84, 204, 176, 115, 121, 50, 45, 127, 4, 150, 254, 138, 236, 205, 93,
		222, 114, 67, 29, 24, 72, 243, 141, 128, 195, 78, 66, 215, 61, 156, 180,
	}
	var p [512]int
	for i := 0; i < 512; i++ {
		p[i] = base[i&255]
	}
	return p
}

func fade(t float64) float64 { return t * t * t * (t*(t*6-15) + 10) }

func lerpf(t, a, b float64) float64 { return a + t*(b-a) }

func grad(hash int, x, y, z float64) float64 {
	h := hash & 15
	u := x
	if h >= 8 {
		u = y
	}
	v := y
	if h >= 4 {
		if h == 12 || h == 14 {
			v = x
		} else {
			v = z
		}
	}
	if h&1 != 0 {
		u = -u
	}
	if h&2 != 0 {
		v = -v
	}
	return u + v
}

// Noise returns Perlin gradient noise in [-1, 1]
func Noise(x, y, z float64) float64 {
	xi := int(math.Floor(x)) & 255
	yi := int(math.Floor(y)) & 255
	zi := int(math.Floor(z)) & 255
	x -= math.Floor(x)
	y -= math.Floor(y)
	z -= math.Floor(z)
	u, v, w := fade(x), fade(y), fade(z)

	p := noisePerm[:]
	a := p[xi] + yi
	aa := p[a] + zi
	ab := p[a+1] + zi
	b := p[xi+1] + yi
	ba := p[b] + zi
	bb := p[b+1] + zi

	return lerpf(w,
		lerpf(v,
			lerpf(u, grad(p[aa], x, y, z), grad(p[ba], x-1, y, z)),
			lerpf(u, grad(p[ab], x, y-1, z), grad(p[bb], x-1, y-1, z))),
		lerpf(v,
			lerpf(u, grad(p[aa+1], x, y, z-1), grad(p[ba+1], x-1, y, z-1)),
			lerpf(u, grad(p[ab+1], x, y-1, z-1), grad(p[bb+1], x-1, y-1, z-1))))
}

// FBm sums octaves of Perlin noise
func FBm(p core.Vec3, omega float64, octaves int) float64 {
	sum := 0.0
	lambda := 1.0
	o := 1.0
	for i := 0; i < octaves; i++ {
		sum += o * Noise(p.X*lambda, p.Y*lambda, p.Z*lambda)
		lambda *= 1.99
		o *= omega
	}
	return sum
}

// Turbulence sums absolute octaves of Perlin noise
func Turbulence(p core.Vec3, omega float64, octaves int) float64 {
	sum := 0.0
	lambda := 1.0
	o := 1.0
	for i := 0; i < octaves; i++ {
		sum += o * math.Abs(Noise(p.X*lambda, p.Y*lambda, p.Z*lambda))
		lambda *= 1.99
		o *= omega
	}
	return sum
}

// FBmTexture is the fbm procedural texture
type FBmTexture struct {
	Omega   float64
	Octaves int
}

func (t *FBmTexture) Float(hp *core.HitPoint) float64 {
	return FBm(hp.P, t.Omega, t.Octaves)
}

func (t *FBmTexture) Spectrum(hp *core.HitPoint) core.Vec3 {
	v := t.Float(hp)
	return core.NewVec3(v, v, v)
}

// WrinkledTexture is turbulence-driven
type WrinkledTexture struct {
	Omega   float64
	Octaves int
}

func (t *WrinkledTexture) Float(hp *core.HitPoint) float64 {
	return Turbulence(hp.P, t.Omega, t.Octaves)
}

func (t *WrinkledTexture) Spectrum(hp *core.HitPoint) core.Vec3 {
	v := t.Float(hp)
	return core.NewVec3(v, v, v)
}

// WindyTexture layers two fbm scales for a wave-like pattern
type WindyTexture struct{}

func (t *WindyTexture) Float(hp *core.HitPoint) float64 {
	windStrength := FBm(hp.P.Multiply(0.1), 0.5, 3)
	waveHeight := FBm(hp.P, 0.5, 6)
	return math.Abs(windStrength) * waveHeight
}

func (t *WindyTexture) Spectrum(hp *core.HitPoint) core.Vec3 {
	v := t.Float(hp)
	return core.NewVec3(v, v, v)
}

// MarbleTexture perturbs a sine ramp with turbulence and maps it through a
// fixed color spline
type MarbleTexture struct {
	Scale     float64
	Omega     float64
	Octaves   int
	Variation float64
}

var marbleColors = [9]core.Vec3{
	{X: 0.58, Y: 0.58, Z: 0.6}, {X: 0.58, Y: 0.58, Z: 0.6}, {X: 0.58, Y: 0.58, Z: 0.6},
	{X: 0.5, Y: 0.5, Z: 0.5}, {X: 0.6, Y: 0.59, Z: 0.58}, {X: 0.58, Y: 0.58, Z: 0.6},
	{X: 0.58, Y: 0.58, Z: 0.6}, {X: 0.2, Y: 0.2, Z: 0.33}, {X: 0.58, Y: 0.58, Z: 0.6},
}

func (t *MarbleTexture) Spectrum(hp *core.HitPoint) core.Vec3 {
	p := hp.P.Multiply(t.Scale)
	marble := p.Y + t.Variation*Turbulence(p, t.Omega, t.Octaves)
	tt := 0.5 + 0.5*math.Sin(marble)

	// Evaluate the spline through the marble color knots
	nSeg := len(marbleColors) - 3
	first := min(int(tt*float64(nSeg)), nSeg-1)
	tt = tt*float64(nSeg) - float64(first)
	c0 := marbleColors[first]
	c1 := marbleColors[first+1]
	c2 := marbleColors[first+2]
	c3 := marbleColors[first+3]
	s0 := c0.Lerp(c1, tt)
	s1 := c1.Lerp(c2, tt)
	s2 := c2.Lerp(c3, tt)
	s0 = s0.Lerp(s1, tt)
	s1 = s1.Lerp(s2, tt)
	return s0.Lerp(s1, tt).Multiply(1.5)
}

func (t *MarbleTexture) Float(hp *core.HitPoint) float64 {
	return t.Spectrum(hp).Filter()
}
