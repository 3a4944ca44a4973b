package film

import (
	"math"
	"testing"

	"github.com/df07/go-light-transport/pkg/core"
)

func TestFilterLUTNormalization(t *testing.T) {
	// The LUT weights used for a single sample must sum to 1 (the
	// analytic integral normalized over the footprint) within 1e-5
	filters := []Filter{
		NewBoxFilter(0.5, 0.5),
		NewGaussianFilter(1.5, 1.5, 2),
		NewMitchellFilter(1.5, 1.5),
	}

	for _, filter := range filters {
		t.Run(filter.Name(), func(t *testing.T) {
			luts := NewFilterLUTs(filter, 4)
			for sx := 0; sx < 4; sx++ {
				for sy := 0; sy < 4; sy++ {
					lut := luts.Lookup((float64(sx)+0.5)/4, (float64(sy)+0.5)/4)
					sum := 0.0
					for py := 0; py < lut.Size(); py++ {
						for px := 0; px < lut.Size(); px++ {
							sum += lut.Weight(px, py)
						}
					}
					if math.Abs(sum-1) > 1e-5 {
						t.Fatalf("LUT (%d,%d) weights sum to %v, expected 1", sx, sy, sum)
					}
				}
			}
		})
	}
}

func TestFilmPerPixelNormalization(t *testing.T) {
	f := New(4, 4, NewBoxFilter(0.5, 0.5))

	// Two samples of differing radiance in one pixel average out
	for _, radiance := range []float64{1, 3} {
		f.AddSample(&core.SampleResult{
			Type:     core.RadiancePerPixelNormalized,
			FilmX:    1.5,
			FilmY:    1.5,
			Radiance: core.NewVec3(radiance, radiance, radiance),
			Alpha:    1,
		})
	}
	f.AddSampleCount(2)

	got := f.PixelRadiance(1, 1)
	if math.Abs(got.X-2) > 1e-9 {
		t.Fatalf("pixel radiance %v, expected 2", got.X)
	}
}

func TestFilmPerScreenNormalization(t *testing.T) {
	f := New(2, 2, NewBoxFilter(0.5, 0.5))

	// A light-tracing splat divides by the total sample count
	f.AddSample(&core.SampleResult{
		Type:     core.RadiancePerScreenNormalized,
		FilmX:    0.5,
		FilmY:    0.5,
		Radiance: core.NewVec3(8, 8, 8),
	})
	f.AddSampleCount(4) // one sample per pixel

	// final = splat / totalSamples = 8 / 4
	got := f.PixelRadiance(0, 0)
	if math.Abs(got.X-2) > 1e-9 {
		t.Fatalf("pixel radiance %v, expected 2", got.X)
	}
}

func TestFilmRejectsDegenerateSamples(t *testing.T) {
	f := New(2, 2, NewBoxFilter(0.5, 0.5))

	f.AddSample(&core.SampleResult{
		Type:     core.RadiancePerPixelNormalized,
		FilmX:    0.5,
		FilmY:    0.5,
		Radiance: core.NewVec3(math.NaN(), 0, 0),
	})
	f.AddSample(&core.SampleResult{
		Type:     core.RadiancePerPixelNormalized,
		FilmX:    0.5,
		FilmY:    0.5,
		Radiance: core.NewVec3(math.Inf(1), 0, 0),
	})

	if got := f.NaNSampleCount(); got != 2 {
		t.Fatalf("NaN counter %d, expected 2", got)
	}
	if got := f.PixelRadiance(0, 0); !got.IsZero() {
		t.Fatalf("degenerate samples splatted: %v", got)
	}
}

func TestFilmMerge(t *testing.T) {
	a := New(2, 2, NewBoxFilter(0.5, 0.5))
	b := New(2, 2, NewBoxFilter(0.5, 0.5))

	sr := core.SampleResult{
		Type:     core.RadiancePerPixelNormalized,
		FilmX:    0.5,
		FilmY:    0.5,
		Radiance: core.NewVec3(2, 2, 2),
		Alpha:    1,
	}
	a.AddSample(&sr)
	a.AddSampleCount(1)
	b.AddSample(&sr)
	b.AddSampleCount(1)

	a.Merge(b)

	// Two equal samples merged still average to the same radiance
	got := a.PixelRadiance(0, 0)
	if math.Abs(got.X-2) > 1e-9 {
		t.Fatalf("merged radiance %v, expected 2", got.X)
	}
	if a.TotalSampleCount() != 2 {
		t.Fatalf("merged sample count %d, expected 2", a.TotalSampleCount())
	}
}

func TestConvergenceTest(t *testing.T) {
	f := New(2, 2, NewBoxFilter(0.5, 0.5))

	sr := core.SampleResult{
		Type:     core.RadiancePerPixelNormalized,
		FilmX:    0.5,
		FilmY:    0.5,
		Radiance: core.NewVec3(1, 1, 1),
	}
	f.AddSample(&sr)
	f.AddSampleCount(1)

	// First run has no reference: everything counts as changing
	if got := f.RunConvergenceTest(0.01); got != 4 {
		t.Fatalf("first convergence run reported %d, expected 4", got)
	}
	// Nothing changed since
	if got := f.RunConvergenceTest(0.01); got != 0 {
		t.Fatalf("second convergence run reported %d, expected 0", got)
	}

	// A big change in one pixel flags it again
	f.AddSample(&core.SampleResult{
		Type:     core.RadiancePerPixelNormalized,
		FilmX:    0.5,
		FilmY:    0.5,
		Radiance: core.NewVec3(100, 100, 100),
	})
	if got := f.RunConvergenceTest(0.01); got != 1 {
		t.Fatalf("third convergence run reported %d, expected 1", got)
	}
}
