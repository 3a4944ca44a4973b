package material

import (
	"math"

	"github.com/df07/go-light-transport/pkg/core"
)

// FresnelDielectric returns the unpolarized reflectance at a dielectric
// interface for |cos| of the incident angle and relative IOR eta = nt/ni
func FresnelDielectric(cosI, eta float64) float64 {
	if eta == 1 {
		return 0
	}
	cosI = math.Abs(cosI)
	sinT2 := (1 - cosI*cosI) / (eta * eta)
	if sinT2 >= 1 {
		return 1 // total internal reflection
	}
	cosT := math.Sqrt(1 - sinT2)

	rPar := (eta*cosI - cosT) / (eta*cosI + cosT)
	rPerp := (cosI - eta*cosT) / (cosI + eta*cosT)
	return 0.5 * (rPar*rPar + rPerp*rPerp)
}

// FresnelConductor returns the per-channel reflectance of a conductor with
// complex IOR (eta, k)
func FresnelConductor(cosI float64, eta, k core.Vec3) core.Vec3 {
	cosI = math.Abs(cosI)
	cos2 := cosI * cosI
	sin2 := 1 - cos2

	reflect := func(n, kk float64) float64 {
		n2k2 := n*n + kk*kk
		rPar := (n2k2*cos2 - 2*n*cosI + 1) / (n2k2*cos2 + 2*n*cosI + 1)
		rPerp := (n2k2 - 2*n*cosI + cos2) / (n2k2 + 2*n*cosI + cos2)
		_ = sin2
		return 0.5 * (rPar + rPerp)
	}

	return core.NewVec3(
		reflect(eta.X, k.X),
		reflect(eta.Y, k.Y),
		reflect(eta.Z, k.Z),
	)
}

// SchlickFresnel approximates reflectance from normal-incidence
// reflectance r0
func SchlickFresnel(cosI float64, r0 core.Vec3) core.Vec3 {
	c := 1 - math.Abs(cosI)
	c2 := c * c
	w := c2 * c2 * c
	return r0.Add(core.White.Subtract(r0).Multiply(w))
}
