package material

import (
	"math"
	"math/rand"
	"testing"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/texture"
)

func testHitPoint(fromLight bool) *core.HitPoint {
	return &core.HitPoint{
		FixedDir:   core.NewVec3(0, 0, 1),
		P:          core.NewVec3(0, 0, 0),
		GeometryN:  core.NewVec3(0, 0, 1),
		ShadeN:     core.NewVec3(0, 0, 1),
		UV:         core.NewVec2(0.3, 0.7),
		IntoObject: true,
		FromLight:  fromLight,
	}
}

func grey(v float64) texture.Texture {
	return texture.NewConstSpectrum(core.NewVec3(v, v, v))
}

// nonDeltaMaterials builds one instance of every material the sampling
// consistency tests cover
func nonDeltaMaterials() map[string]Material {
	c := NewCollection()
	matte := NewMatte("matte", grey(0.7))
	a := c.Add(matte)
	glossy := NewGlossy2("glossy", grey(0.6), grey(0.04), texture.NewConstFloat(0.3), texture.NewConstFloat(0.3))
	b := c.Add(glossy)
	mix := NewMix("mix", c, a, b, texture.NewConstFloat(0.4))
	c.Add(mix)

	return map[string]Material{
		"matte":            matte,
		"mattetranslucent": NewMatteTranslucent("mt", grey(0.4), grey(0.4)),
		"glossy2":          glossy,
		"metal2": NewMetal2("metal",
			texture.NewConstSpectrum(core.NewVec3(0.2, 0.9, 1.4)),
			texture.NewConstSpectrum(core.NewVec3(3.9, 2.4, 2.1)),
			texture.NewConstFloat(0.2), texture.NewConstFloat(0.2)),
		"velvet": NewVelvet("velvet", grey(0.5),
			texture.NewConstFloat(-2), texture.NewConstFloat(20), texture.NewConstFloat(2),
			texture.NewConstFloat(0.02)),
		"cloth":    NewCloth("cloth", DenimPreset, grey(0.5), grey(0.2), grey(0.4), grey(0.2)),
		"carpaint": NewCarPaintPreset("paint", "ford f8"),
		"mix":      mix,
	}
}

// TestSamplePdfConsistency verifies that the pdf returned by Sample
// agrees with Pdf queried for the sampled direction
func TestSamplePdfConsistency(t *testing.T) {
	for name, mat := range nonDeltaMaterials() {
		t.Run(name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(42))
			hp := testHitPoint(false)
			fixedDir := core.NewVec3(0.3, -0.2, 0.9).Normalize()

			checked := 0
			for i := 0; i < 500; i++ {
				u0, u1 := rng.Float64(), rng.Float64()
				event := rng.Float64()

				sampledDir, result, pdfW, _, evType, ok := mat.Sample(hp, fixedDir, u0, u1, event)
				if !ok {
					continue
				}
				if pdfW <= 0 {
					t.Fatalf("Sample returned non-positive pdf %v", pdfW)
				}
				if evType.Has(SpecularEvent) {
					continue // delta components carry no queryable pdf
				}
				if result.X < 0 || result.Y < 0 || result.Z < 0 {
					t.Fatalf("negative sample result %v", result)
				}

				directPdfW, _ := mat.Pdf(hp, sampledDir, fixedDir)
				relErr := math.Abs(directPdfW-pdfW) / pdfW
				if relErr > 1e-6 {
					t.Fatalf("Pdf=%v disagrees with Sample pdf=%v (dir %v)", directPdfW, pdfW, sampledDir)
				}
				checked++
			}
			if checked == 0 {
				t.Fatal("no samples checked")
			}
		})
	}
}

// TestSampleEvaluateConsistency verifies Sample's pre-divided result
// against Evaluate: result == f * |cos| / pdf
func TestSampleEvaluateConsistency(t *testing.T) {
	for name, mat := range nonDeltaMaterials() {
		t.Run(name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(7))
			hp := testHitPoint(false)
			fixedDir := core.NewVec3(-0.1, 0.25, 0.96).Normalize()

			for i := 0; i < 200; i++ {
				event := rng.Float64()
				sampledDir, result, pdfW, absCos, evType, ok := mat.Sample(hp, fixedDir, rng.Float64(), rng.Float64(), event)
				if !ok || evType.Has(SpecularEvent) {
					continue
				}

				f, _, directPdfW, _ := mat.Evaluate(hp, sampledDir, fixedDir)
				if directPdfW <= 0 {
					continue
				}
				expected := f.Multiply(absCos / pdfW)
				diff := expected.Subtract(result).Abs().MaxComponent()
				scale := math.Max(result.MaxComponent(), 1e-3)
				if diff/scale > 1e-6 {
					t.Fatalf("Sample result %v != Evaluate-derived %v", result, expected)
				}
			}
		})
	}
}

// TestAlbedoBounded checks single-scattering albedo: the expectation of
// the pre-divided sample result stays at or below 1 per channel
func TestAlbedoBounded(t *testing.T) {
	for name, mat := range nonDeltaMaterials() {
		t.Run(name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(1234))
			hp := testHitPoint(false)
			fixedDir := core.NewVec3(0, 0, 1)

			var sum core.Vec3
			const n = 20000
			for i := 0; i < n; i++ {
				_, result, _, _, _, ok := mat.Sample(hp, fixedDir, rng.Float64(), rng.Float64(), rng.Float64())
				if !ok {
					continue
				}
				sum = sum.Add(result)
			}
			mean := sum.Multiply(1.0 / n)
			// Allow a little Monte-Carlo slack
			for _, channel := range []float64{mean.X, mean.Y, mean.Z} {
				if channel > 1.05 {
					t.Fatalf("albedo %v exceeds 1", mean)
				}
			}
		})
	}
}

func TestDeltaMaterials(t *testing.T) {
	hp := testHitPoint(false)
	glass := NewGlass("glass", grey(1), grey(1), texture.NewConstFloat(1.5), texture.NewConstFloat(1))

	deltas := map[string]Material{
		"mirror": NewMirror("mirror", grey(0.9)),
		"glass":  glass,
	}

	for name, mat := range deltas {
		t.Run(name, func(t *testing.T) {
			if !mat.IsDelta(hp) {
				t.Fatal("material must be delta")
			}
			f, _, fwd, rev := mat.Evaluate(hp, core.NewVec3(0, 0, 1), core.NewVec3(0, 0, 1))
			if !f.IsZero() || fwd != 0 || rev != 0 {
				t.Fatalf("delta material must evaluate to zero, got %v (%v, %v)", f, fwd, rev)
			}

			dir, _, pdfW, _, event, ok := mat.Sample(hp, core.NewVec3(0.2, 0.1, 0.97).Normalize(), 0.1, 0.5, 0.3)
			if !ok {
				t.Fatal("delta sample failed")
			}
			if !event.Has(SpecularEvent) {
				t.Fatalf("delta sample event %v lacks SPECULAR", event)
			}
			if pdfW <= 0 {
				t.Fatalf("delta pdf %v must be positive", pdfW)
			}
			if dir.IsZero() {
				t.Fatal("empty sampled direction")
			}
		})
	}
}

func TestMirrorReflectionDirection(t *testing.T) {
	mirror := NewMirror("m", grey(1))
	hp := testHitPoint(false)

	fixed := core.NewVec3(0.5, -0.3, 0.8).Normalize()
	dir, _, _, _, _, ok := mirror.Sample(hp, fixed, 0, 0, 0)
	if !ok {
		t.Fatal("mirror sample failed")
	}
	expected := core.NewVec3(-fixed.X, -fixed.Y, fixed.Z)
	if !dir.Equals(expected) {
		t.Fatalf("mirror direction %v, expected %v", dir, expected)
	}
}

func TestGlassFresnelSplit(t *testing.T) {
	glass := NewGlass("glass", grey(1), grey(1), texture.NewConstFloat(1.5), texture.NewConstFloat(1))
	hp := testHitPoint(false)
	fixed := core.NewVec3(0, 0, 1)

	// u0 below the Fresnel reflectance reflects, above transmits
	reflDir, _, _, _, event, ok := glass.Sample(hp, fixed, 0.0, 0.5, 0)
	if !ok || !event.Has(ReflectEvent) {
		t.Fatalf("u0=0 must reflect, got event %v ok=%v", event, ok)
	}
	if reflDir.Z <= 0 {
		t.Fatal("reflection must stay on the fixed side")
	}

	transDir, _, _, _, event, ok := glass.Sample(hp, fixed, 0.99, 0.5, 0)
	if !ok || !event.Has(TransmitEvent) {
		t.Fatalf("u0=0.99 must transmit, got event %v ok=%v", event, ok)
	}
	if transDir.Z >= 0 {
		t.Fatal("transmission must cross to the other side")
	}
}

func TestArchGlassPassThrough(t *testing.T) {
	arch := NewArchGlass("arch", grey(1), grey(0.8))
	hp := testHitPoint(false)

	if !arch.IsPassThrough() {
		t.Fatal("archglass must be pass-through")
	}
	tr := arch.GetPassThroughTransparency(hp, core.NewVec3(0, 0, 1), 0.5)
	if tr.IsZero() {
		t.Fatal("archglass transparency must be non-zero")
	}
	// Transparency = Kt * (1 - Fresnel) at normal incidence
	fresnel := FresnelDielectric(1, 1.5)
	expected := 0.8 * (1 - fresnel)
	if math.Abs(tr.X-expected) > 1e-9 {
		t.Fatalf("transparency %v, expected %v", tr.X, expected)
	}
}

func TestNullTransparency(t *testing.T) {
	null := NewNull("null")
	hp := testHitPoint(false)

	if !null.IsPassThrough() {
		t.Fatal("null must be pass-through")
	}
	if tr := null.GetPassThroughTransparency(hp, core.NewVec3(0, 0, 1), 0); !tr.Equals(core.White) {
		t.Fatalf("null transparency %v, expected white", tr)
	}
	if _, _, _, _, _, ok := null.Sample(hp, core.NewVec3(0, 0, 1), 0.5, 0.5, 0.5); ok {
		t.Fatal("null must not sample a direction")
	}
}

func TestFresnelDielectricLimits(t *testing.T) {
	// Total internal reflection beyond the critical angle
	if got := FresnelDielectric(0.05, 1/1.5); got != 1 {
		t.Errorf("expected total internal reflection, got %v", got)
	}
	// Normal incidence reflectance of glass is about 4%
	r0 := FresnelDielectric(1, 1.5)
	if math.Abs(r0-0.04) > 0.001 {
		t.Errorf("normal incidence reflectance %v, expected ~0.04", r0)
	}
}

func TestMixCycleDetection(t *testing.T) {
	c := NewCollection()
	a := c.Add(NewMatte("a", grey(0.5)))
	mix1 := NewMix("mix1", c, a, a, texture.NewConstFloat(0.5))
	id1 := c.Add(mix1)

	if err := c.CheckMixCycles(); err != nil {
		t.Fatalf("acyclic mix flagged: %v", err)
	}

	// Self-referential mix
	mix2 := NewMix("mix2", c, id1, 0, texture.NewConstFloat(0.5))
	id2 := c.Add(mix2)
	mix2.MaterialB = id2
	if err := c.CheckMixCycles(); err == nil {
		t.Fatal("self-referential mix not detected")
	}
}

func TestMixPassThroughConsistency(t *testing.T) {
	// A mix of null and matte resolves pass-through queries through the
	// same child the pass-through event selects
	c := NewCollection()
	null := c.Add(NewNull("null"))
	matte := c.Add(NewMatte("matte", grey(0.5)))
	mix := NewMix("mix", c, null, matte, texture.NewConstFloat(0.5))
	c.Add(mix)

	hp := testHitPoint(false)
	if !mix.IsPassThrough() {
		t.Fatal("mix with a null child must be pass-through")
	}

	// Event in the null half: fully transparent
	tr := mix.GetPassThroughTransparency(hp, core.NewVec3(0, 0, 1), 0.2)
	if !tr.Equals(core.White) {
		t.Fatalf("transparency %v, expected white for the null child", tr)
	}
	// Event in the matte half: opaque
	tr = mix.GetPassThroughTransparency(hp, core.NewVec3(0, 0, 1), 0.7)
	if !tr.IsZero() {
		t.Fatalf("transparency %v, expected zero for the matte child", tr)
	}
}

func TestEvaluateFromLightSymmetry(t *testing.T) {
	// For a symmetric BRDF the radiance and importance transport
	// evaluations agree when the directions are swapped
	matte := NewMatte("matte", grey(0.6))
	dirA := core.NewVec3(0.3, 0.1, 0.95).Normalize()
	dirB := core.NewVec3(-0.2, 0.4, 0.89).Normalize()

	hpEye := testHitPoint(false)
	hpLight := testHitPoint(true)

	fEye, _, fwdEye, revEye := matte.Evaluate(hpEye, dirA, dirB)
	fLight, _, fwdLight, revLight := matte.Evaluate(hpLight, dirA, dirB)

	if !fEye.Equals(fLight) {
		t.Fatalf("matte transport asymmetry: %v vs %v", fEye, fLight)
	}
	// The pdf roles swap with the transport direction
	if math.Abs(fwdEye-revLight) > 1e-12 || math.Abs(revEye-fwdLight) > 1e-12 {
		t.Fatalf("pdf roles did not swap: (%v,%v) vs (%v,%v)", fwdEye, revEye, fwdLight, revLight)
	}
}
