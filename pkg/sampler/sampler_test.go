package sampler

import (
	"math"
	"testing"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/film"
)

func testFilm(w, h int) *film.Film {
	return film.New(w, h, film.NewBoxFilter(0.5, 0.5))
}

func TestRandomSamplerRange(t *testing.T) {
	s := NewRandomSampler(42, testFilm(4, 4))
	s.RequestSamples(8)
	for i := 0; i < 1000; i++ {
		v := s.GetSample(i % 8)
		if v < 0 || v >= 1 {
			t.Fatalf("sample %v outside [0,1)", v)
		}
	}
}

func TestSobolSamplerRangeAndSpread(t *testing.T) {
	s := NewSobolSampler(42, testFilm(4, 4))
	s.RequestSamples(8)

	// First dimension must be well stratified: with 256 samples every
	// 1/16 stratum gets visited
	seen := make([]bool, 16)
	for i := 0; i < 256; i++ {
		v := s.GetSample(0)
		if v < 0 || v >= 1 {
			t.Fatalf("sample %v outside [0,1)", v)
		}
		seen[int(v*16)] = true
		s.NextSample(nil)
	}
	for stratum, ok := range seen {
		if !ok {
			t.Fatalf("stratum %d never sampled", stratum)
		}
	}
}

func TestSharedLuminance(t *testing.T) {
	shared := NewSharedLuminance()
	if got := shared.Mean(); got != 1 {
		t.Fatalf("empty estimator mean %v, expected 1", got)
	}

	shared.Add(2)
	shared.Add(4)
	if got := shared.Mean(); math.Abs(got-3) > 1e-12 {
		t.Fatalf("mean %v, expected 3", got)
	}
	if got := shared.Count(); got != 2 {
		t.Fatalf("count %d, expected 2", got)
	}
}

func TestMetropolisCooldown(t *testing.T) {
	f := testFilm(2, 2) // 4 pixels: cooldown until more than 4 shared samples
	shared := NewSharedLuminance()
	s := NewMetropolisSampler(7, f, shared, DefaultMetropolisConfig())
	s.RequestSamples(4)

	if !s.inCooldown() {
		t.Fatal("fresh sampler must be in cooldown")
	}
	for i := 0; i < 5; i++ {
		shared.Add(1)
	}
	if s.inCooldown() {
		t.Fatal("cooldown must end once shared samples exceed the pixel count")
	}
}

func TestMetropolisMutationStaysInRange(t *testing.T) {
	f := testFilm(4, 4)
	s := NewMetropolisSampler(3, f, NewSharedLuminance(), DefaultMetropolisConfig())
	s.RequestSamples(6)

	results := []core.SampleResult{{
		Type:     core.RadiancePerPixelNormalized,
		FilmX:    1,
		FilmY:    1,
		Radiance: core.NewVec3(0.5, 0.5, 0.5),
	}}

	for iter := 0; iter < 2000; iter++ {
		for dim := 0; dim < 6; dim++ {
			v := s.GetSample(dim)
			if v < 0 || v >= 1 {
				t.Fatalf("iteration %d dim %d: sample %v outside [0,1)", iter, dim, v)
			}
		}
		s.NextSample(results)
	}
}

// TestMetropolisUniformScene verifies the estimator on a constant scene:
// splatting a constant radiance everywhere must fill the film uniformly
func TestMetropolisUniformScene(t *testing.T) {
	f := testFilm(4, 4)
	shared := NewSharedLuminance()
	s := NewMetropolisSampler(11, f, shared, DefaultMetropolisConfig())
	s.RequestSamples(2)

	const n = 60000
	for i := 0; i < n; i++ {
		x := s.GetSample(0) * 4
		y := s.GetSample(1) * 4
		s.NextSample([]core.SampleResult{{
			Type:     core.RadiancePerPixelNormalized,
			FilmX:    x,
			FilmY:    y,
			Radiance: core.White,
		}})
	}

	pixels := f.Pixels()
	for i, p := range pixels {
		if math.Abs(p.X-1) > 0.15 {
			t.Fatalf("pixel %d radiance %v, expected ~1 on a constant scene", i, p.X)
		}
	}
}
