package sampler

import (
	"math/rand"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/film"
)

// RandomSampler draws independent uniform values for every dimension
type RandomSampler struct {
	rng  *rand.Rand
	film *film.Film
}

// NewRandomSampler creates a random sampler seeded deterministically
func NewRandomSampler(seed int64, f *film.Film) *RandomSampler {
	return &RandomSampler{rng: rand.New(rand.NewSource(seed)), film: f}
}

func (s *RandomSampler) RequestSamples(size int) {}

func (s *RandomSampler) GetSample(index int) float64 {
	return s.rng.Float64()
}

func (s *RandomSampler) NextSample(results []core.SampleResult) {
	for i := range results {
		s.film.AddSample(&results[i])
	}
	s.film.AddSampleCount(1)
}

// StratifiedSampler jitters samples inside a per-pixel stratum grid for
// the first two dimensions and falls back to random for the rest
type StratifiedSampler struct {
	RandomSampler
	strataX, strataY int
	cell             int
}

// NewStratifiedSampler creates a stratified sampler with the given strata
// counts
func NewStratifiedSampler(seed int64, f *film.Film, strataX, strataY int) *StratifiedSampler {
	return &StratifiedSampler{
		RandomSampler: RandomSampler{rng: rand.New(rand.NewSource(seed)), film: f},
		strataX:       max(1, strataX),
		strataY:       max(1, strataY),
	}
}

func (s *StratifiedSampler) GetSample(index int) float64 {
	switch index {
	case 0:
		x := s.cell % s.strataX
		return (float64(x) + s.rng.Float64()) / float64(s.strataX)
	case 1:
		y := (s.cell / s.strataX) % s.strataY
		return (float64(y) + s.rng.Float64()) / float64(s.strataY)
	default:
		return s.rng.Float64()
	}
}

func (s *StratifiedSampler) NextSample(results []core.SampleResult) {
	s.RandomSampler.NextSample(results)
	s.cell++
}
