package material

import (
	"math"
	"testing"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/texture"
)

func TestClearVolumeTransmittance(t *testing.T) {
	vol := NewClearVolume("clear", texture.NewConstFloat(1),
		texture.NewConstSpectrum(core.NewVec3(0.5, 1, 2)), 0)

	ray := core.NewRayRange(core.NewVec3(0, 0, 0), core.NewVec3(0, 0, 1), 0, 3)
	throughput := core.White
	tScatter, _ := vol.Scatter(ray, 0.5, false, &throughput)

	if tScatter > 0 {
		t.Fatal("clear volume must never scatter")
	}
	expected := core.NewVec3(math.Exp(-0.5*3), math.Exp(-1*3), math.Exp(-2*3))
	if !throughput.Equals(expected) {
		t.Fatalf("transmittance %v, expected %v", throughput, expected)
	}
}

func TestHomogeneousVolumeNoScatterMatchesBeerLambert(t *testing.T) {
	// Pure absorption: the sampled estimator must reduce to the
	// analytic transmittance
	vol := NewHomogeneousVolume("homo", texture.NewConstFloat(1),
		texture.NewConstSpectrum(core.NewVec3(0.1, 0.1, 0.1)),
		texture.NewConstSpectrum(core.Black),
		texture.NewConstFloat(0), 0, false)

	ray := core.NewRayRange(core.NewVec3(0, 0, 0), core.NewVec3(0, 0, 1), 0, 2)
	throughput := core.White
	tScatter, _ := vol.Scatter(ray, 0.99, false, &throughput)
	if tScatter > 0 {
		t.Fatal("absorption-only volume must not scatter")
	}
	expected := math.Exp(-0.1 * 2)
	if math.Abs(throughput.X-expected) > 1e-9 {
		t.Fatalf("transmittance %v, expected %v", throughput.X, expected)
	}
}

func TestHomogeneousVolumeScatterUnbiased(t *testing.T) {
	// Over a uniform grid of samples, scatter events must land inside the
	// segment and the pass weights, summed and divided by the total sample
	// count, must reproduce the analytic transmittance.
	sigmaS := 0.5
	sigmaA := 0.1
	vol := NewHomogeneousVolume("homo", texture.NewConstFloat(1),
		texture.NewConstSpectrum(core.NewVec3(sigmaA, sigmaA, sigmaA)),
		texture.NewConstSpectrum(core.NewVec3(sigmaS, sigmaS, sigmaS)),
		texture.NewConstFloat(0), 0, false)

	length := 2.0
	const n = 20000
	passSum := 0.0
	scatterCount := 0
	for i := 0; i < n; i++ {
		u := (float64(i) + 0.5) / n
		ray := core.NewRayRange(core.NewVec3(0, 0, 0), core.NewVec3(0, 0, 1), 0, length)
		throughput := core.White
		tScatter, _ := vol.Scatter(ray, u, false, &throughput)
		if tScatter > 0 {
			scatterCount++
			if tScatter <= ray.TMin || tScatter >= length {
				t.Fatalf("scatter distance %v outside segment", tScatter)
			}
		} else {
			passSum += throughput.X
		}
	}

	// Pass-through weight is transmittance/passProb; its sum divided by
	// all n samples must reproduce exp(-sigmaT L)
	sigmaT := sigmaA + sigmaS
	passProb := math.Exp(-sigmaT * length)
	gotPass := passSum / n
	if math.Abs(gotPass-passProb) > 0.01 {
		t.Errorf("mean pass weight %v, expected %v", gotPass, passProb)
	}
	if scatterCount == 0 {
		t.Error("no scatter events sampled")
	}
}

func TestHeterogeneousVolumeZeroStepFailsLoudly(t *testing.T) {
	_, err := NewHeterogeneousVolume("het", texture.NewConstFloat(1),
		texture.NewConstSpectrum(core.Black), texture.NewConstSpectrum(core.Black),
		texture.NewConstFloat(0), 0, false, 0, 16)
	if err == nil {
		t.Fatal("zero step size must be a configuration error")
	}
}

func TestPathVolumeInfoPriority(t *testing.T) {
	water := NewClearVolume("water", texture.NewConstFloat(1.33),
		texture.NewConstSpectrum(core.Black), 1)
	glass := NewClearVolume("glass", texture.NewConstFloat(1.5),
		texture.NewConstSpectrum(core.Black), 10)

	pvi := NewPathVolumeInfo(nil)
	if pvi.CurrentVolume() != nil {
		t.Fatal("empty stack must have no current volume")
	}

	pvi.AddVolume(water)
	if pvi.CurrentVolume() != water {
		t.Fatal("water must be current")
	}

	// The higher-priority glass dominates the stack
	pvi.AddVolume(glass)
	if pvi.CurrentVolume() != glass {
		t.Fatal("glass must dominate water")
	}

	pvi.RemoveVolume(glass)
	if pvi.CurrentVolume() != water {
		t.Fatal("water must be current again after leaving glass")
	}

	pvi.RemoveVolume(water)
	if pvi.CurrentVolume() != nil {
		t.Fatal("stack must be empty")
	}
}

func TestPathVolumeInfoContinueToTrace(t *testing.T) {
	water := NewClearVolume("water", texture.NewConstFloat(1.33),
		texture.NewConstSpectrum(core.Black), 1)
	glassVol := NewClearVolume("glassvol", texture.NewConstFloat(1.5),
		texture.NewConstSpectrum(core.Black), 10)

	glassMat := NewGlass("glass", grey(1), grey(1), texture.NewConstFloat(1.5), texture.NewConstFloat(1))
	glassMat.Base().Interior = glassVol // high-priority interior

	hp := testHitPoint(false)
	bsdf := &BSDF{
		HitPoint: *hp,
		Material: glassMat,
		Frame:    core.NewFrame(hp.ShadeN),
	}

	// Entering a higher-priority interior from inside the water volume:
	// the boundary is crossed silently
	pvi := NewPathVolumeInfo(nil)
	pvi.AddVolume(water)
	if !pvi.ContinueToTrace(bsdf) {
		t.Fatal("higher-priority interior boundary must be skipped")
	}

	// Entering a lower-priority interior is honored
	waterMat := NewGlass("watermat", grey(1), grey(1), texture.NewConstFloat(1.33), texture.NewConstFloat(1))
	waterMat.Base().Interior = water
	lowBSDF := &BSDF{HitPoint: *hp, Material: waterMat, Frame: core.NewFrame(hp.ShadeN)}
	inGlass := NewPathVolumeInfo(nil)
	inGlass.AddVolume(glassVol)
	if inGlass.ContinueToTrace(lowBSDF) {
		t.Fatal("lower-priority interior boundary must be honored")
	}

	// With no surrounding volume the boundary is honored
	empty := NewPathVolumeInfo(nil)
	if empty.ContinueToTrace(bsdf) {
		t.Fatal("boundary must be honored outside any volume")
	}
}

func TestPathVolumeInfoUpdate(t *testing.T) {
	interior := NewClearVolume("int", texture.NewConstFloat(1.5),
		texture.NewConstSpectrum(core.Black), 5)
	glassMat := NewGlass("glass", grey(1), grey(1), texture.NewConstFloat(1.5), texture.NewConstFloat(1))
	glassMat.Base().Interior = interior

	hp := testHitPoint(false)
	hp.IntoObject = true
	enterBSDF := &BSDF{HitPoint: *hp, Material: glassMat, Frame: core.NewFrame(hp.ShadeN)}

	pvi := NewPathVolumeInfo(nil)

	// Reflection leaves the stack alone
	pvi.Update(ReflectEvent|SpecularEvent, enterBSDF)
	if pvi.CurrentVolume() != nil {
		t.Fatal("reflection must not change the stack")
	}

	// Transmission entering pushes the interior
	pvi.Update(TransmitEvent|SpecularEvent, enterBSDF)
	if pvi.CurrentVolume() != interior {
		t.Fatal("entering transmission must push the interior volume")
	}

	// Transmission leaving pops it
	hp.IntoObject = false
	leaveBSDF := &BSDF{HitPoint: *hp, Material: glassMat, Frame: core.NewFrame(hp.ShadeN)}
	pvi.Update(TransmitEvent|SpecularEvent, leaveBSDF)
	if pvi.CurrentVolume() != nil {
		t.Fatal("leaving transmission must pop the interior volume")
	}
}

func TestHenyeyGreensteinPhaseNormalization(t *testing.T) {
	// The phase function must integrate to 1 over the sphere
	for _, g := range []float64{-0.5, 0, 0.3, 0.8} {
		sum := 0.0
		const n = 200
		for i := 0; i < n; i++ {
			cosTheta := -1 + (float64(i)+0.5)*2/n
			sum += hgPhase(cosTheta, g) * 2 * math.Pi * (2.0 / n)
		}
		if math.Abs(sum-1) > 0.01 {
			t.Errorf("g=%v: phase integral %v, expected 1", g, sum)
		}
	}
}
