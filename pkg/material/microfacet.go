package material

import (
	"math"

	"github.com/df07/go-light-transport/pkg/core"
)

// Anisotropic GGX microfacet distribution with Smith shadowing, shared by
// roughglass, glossy2, metal2 and carpaint. nu/nv are the roughness values
// along the two tangent axes.

// ggxAlpha converts user roughness into the distribution parameter,
// guarding against the delta limit
func ggxAlpha(roughness float64) float64 {
	return math.Max(roughness*roughness, 1e-4)
}

// ggxD evaluates the anisotropic GGX normal distribution for a local-frame
// half vector
func ggxD(wh core.Vec3, au, av float64) float64 {
	cos2 := wh.Z * wh.Z
	if cos2 <= 0 {
		return 0
	}
	e := (wh.X*wh.X)/(au*au) + (wh.Y*wh.Y)/(av*av)
	d := e + cos2
	return 1 / (math.Pi * au * av * d * d)
}

// ggxLambda is the Smith auxiliary function. The numerator is
// tan^2(theta) scaled by the direction-dependent roughness.
func ggxLambda(w core.Vec3, au, av float64) float64 {
	cos2 := w.Z * w.Z
	if cos2 <= 0 {
		return 0
	}
	alphaTan2 := (w.X*w.X*au*au + w.Y*w.Y*av*av) / cos2
	return 0.5 * (-1 + math.Sqrt(1+alphaTan2))
}

// ggxG evaluates the Smith shadowing-masking term for the pair of
// directions
func ggxG(wo, wi core.Vec3, au, av float64) float64 {
	return 1 / (1 + ggxLambda(wo, au, av) + ggxLambda(wi, au, av))
}

// ggxSample draws a half-vector proportional to D * |cos|
func ggxSample(u0, u1, au, av float64) core.Vec3 {
	var phi float64
	if au == av {
		phi = 2 * math.Pi * u1
	} else {
		phi = math.Atan(av / au * math.Tan(2*math.Pi*u1+0.5*math.Pi))
		if u1 > 0.5 {
			phi += math.Pi
		}
	}
	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
	a2 := 1 / (cosPhi*cosPhi/(au*au) + sinPhi*sinPhi/(av*av))
	tan2 := u0 / (1 - u0) * a2
	cosTheta := 1 / math.Sqrt(1+tan2)
	sinTheta := math.Sqrt(math.Max(0, 1-cosTheta*cosTheta))

	return core.NewVec3(sinTheta*cosPhi, sinTheta*sinPhi, cosTheta)
}

// ggxPdfH returns the pdf of ggxSample for a half-vector
func ggxPdfH(wh core.Vec3, au, av float64) float64 {
	return ggxD(wh, au, av) * math.Abs(wh.Z)
}
