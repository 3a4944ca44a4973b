package texture

import (
	"github.com/df07/go-light-transport/pkg/core"
)

// Texture evaluates to a scalar or a spectrum at a shading point
type Texture interface {
	// Float returns the scalar value of the texture at the hit point
	Float(hp *core.HitPoint) float64
	// Spectrum returns the RGB value of the texture at the hit point
	Spectrum(hp *core.HitPoint) core.Vec3
}

// ConstFloat is the constfloat1 texture
type ConstFloat struct {
	Value float64
}

// NewConstFloat creates a constant scalar texture
func NewConstFloat(v float64) *ConstFloat { return &ConstFloat{Value: v} }

func (t *ConstFloat) Float(hp *core.HitPoint) float64 { return t.Value }
func (t *ConstFloat) Spectrum(hp *core.HitPoint) core.Vec3 {
	return core.NewVec3(t.Value, t.Value, t.Value)
}

// ConstSpectrum is the constfloat3 texture
type ConstSpectrum struct {
	Value core.Vec3
}

// NewConstSpectrum creates a constant RGB texture
func NewConstSpectrum(v core.Vec3) *ConstSpectrum { return &ConstSpectrum{Value: v} }

func (t *ConstSpectrum) Float(hp *core.HitPoint) float64      { return t.Value.Filter() }
func (t *ConstSpectrum) Spectrum(hp *core.HitPoint) core.Vec3 { return t.Value }

// Scale multiplies two textures
type Scale struct {
	Tex1, Tex2 Texture
}

func (t *Scale) Float(hp *core.HitPoint) float64 {
	return t.Tex1.Float(hp) * t.Tex2.Float(hp)
}

func (t *Scale) Spectrum(hp *core.HitPoint) core.Vec3 {
	return t.Tex1.Spectrum(hp).MultiplyVec(t.Tex2.Spectrum(hp))
}

// Add sums two textures
type Add struct {
	Tex1, Tex2 Texture
}

func (t *Add) Float(hp *core.HitPoint) float64 {
	return t.Tex1.Float(hp) + t.Tex2.Float(hp)
}

func (t *Add) Spectrum(hp *core.HitPoint) core.Vec3 {
	return t.Tex1.Spectrum(hp).Add(t.Tex2.Spectrum(hp))
}

// Mix blends two textures by a third
type Mix struct {
	Amount     Texture
	Tex1, Tex2 Texture
}

func (t *Mix) Float(hp *core.HitPoint) float64 {
	amt := clamp(t.Amount.Float(hp), 0, 1)
	return t.Tex1.Float(hp)*(1-amt) + t.Tex2.Float(hp)*amt
}

func (t *Mix) Spectrum(hp *core.HitPoint) core.Vec3 {
	amt := clamp(t.Amount.Float(hp), 0, 1)
	return t.Tex1.Spectrum(hp).Lerp(t.Tex2.Spectrum(hp), amt)
}

// Band maps a scalar driver texture through a piecewise-linear gradient
type Band struct {
	Amount  Texture
	Offsets []float64
	Values  []core.Vec3
}

func (t *Band) Float(hp *core.HitPoint) float64 {
	return t.Spectrum(hp).Filter()
}

func (t *Band) Spectrum(hp *core.HitPoint) core.Vec3 {
	a := clamp(t.Amount.Float(hp), 0, 1)
	if len(t.Offsets) == 0 {
		return core.Black
	}
	if a <= t.Offsets[0] {
		return t.Values[0]
	}
	last := len(t.Offsets) - 1
	if a >= t.Offsets[last] {
		return t.Values[last]
	}
	for i := 1; i <= last; i++ {
		if a <= t.Offsets[i] {
			span := t.Offsets[i] - t.Offsets[i-1]
			frac := 0.0
			if span > 0 {
				frac = (a - t.Offsets[i-1]) / span
			}
			return t.Values[i-1].Lerp(t.Values[i], frac)
		}
	}
	return t.Values[last]
}

// UV visualizes the surface parameterization
type UV struct{}

func (t *UV) Float(hp *core.HitPoint) float64 {
	return t.Spectrum(hp).Filter()
}

func (t *UV) Spectrum(hp *core.HitPoint) core.Vec3 {
	return core.NewVec3(hp.UV.X-float64(int(hp.UV.X)), hp.UV.Y-float64(int(hp.UV.Y)), 0)
}

// HitPointColor returns the absolute value of the shading normal as a
// color, used to debug shading-frame construction
type HitPointColor struct{}

func (t *HitPointColor) Float(hp *core.HitPoint) float64 { return t.Spectrum(hp).Filter() }
func (t *HitPointColor) Spectrum(hp *core.HitPoint) core.Vec3 {
	return hp.ShadeN.Abs()
}

// HitPointAlpha exposes the pass-through event value as a texture, mainly
// for test scenes exercising alpha cut-outs
type HitPointAlpha struct{}

func (t *HitPointAlpha) Float(hp *core.HitPoint) float64 { return hp.PassThroughEvent }
func (t *HitPointAlpha) Spectrum(hp *core.HitPoint) core.Vec3 {
	v := hp.PassThroughEvent
	return core.NewVec3(v, v, v)
}

// FresnelApproxN derives a complex-IOR N approximation from reflectance,
// used to feed metal2 from measured colors
type FresnelApproxN struct {
	Tex Texture
}

func (t *FresnelApproxN) Float(hp *core.HitPoint) float64 {
	return fresnelApproxN(t.Tex.Float(hp))
}

func (t *FresnelApproxN) Spectrum(hp *core.HitPoint) core.Vec3 {
	v := t.Tex.Spectrum(hp)
	return core.NewVec3(fresnelApproxN(v.X), fresnelApproxN(v.Y), fresnelApproxN(v.Z))
}

// FresnelApproxK derives a complex-IOR K approximation from reflectance
type FresnelApproxK struct {
	Tex Texture
}

func (t *FresnelApproxK) Float(hp *core.HitPoint) float64 {
	return fresnelApproxK(t.Tex.Float(hp))
}

func (t *FresnelApproxK) Spectrum(hp *core.HitPoint) core.Vec3 {
	v := t.Tex.Spectrum(hp)
	return core.NewVec3(fresnelApproxK(v.X), fresnelApproxK(v.Y), fresnelApproxK(v.Z))
}

func fresnelApproxN(fr float64) float64 {
	sqrtReflectance := sqrtf(clamp(fr, 0, 0.999))
	return (1 + sqrtReflectance) / (1 - sqrtReflectance)
}

func fresnelApproxK(fr float64) float64 {
	reflectance := clamp(fr, 0, 0.999)
	return 2 * sqrtf(reflectance/(1-reflectance))
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
