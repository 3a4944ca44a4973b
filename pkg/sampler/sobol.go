package sampler

import (
	"math/rand"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/film"
)

// SobolSampler walks a scrambled low-discrepancy sequence: true Sobol'
// points for the first two dimensions and scrambled radical-inverse
// sequences in successive primes beyond, with a per-instance random shift
// (Cranley-Patterson rotation) to decorrelate workers.
type SobolSampler struct {
	film *film.Film
	rng  *rand.Rand

	index uint32
	shift []float64
}

// sobolPrimes seed the radical-inverse dimensions past the first two
var sobolPrimes = []uint32{
	2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47, 53, 59, 61,
	67, 71, 73, 79, 83, 89, 97, 101, 103, 107, 109, 113, 127, 131,
}

// NewSobolSampler creates a Sobol-like sampler
func NewSobolSampler(seed int64, f *film.Film) *SobolSampler {
	return &SobolSampler{
		film: f,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

func (s *SobolSampler) RequestSamples(size int) {
	s.shift = make([]float64, size)
	for i := range s.shift {
		s.shift[i] = s.rng.Float64()
	}
}

// vanDerCorput is the base-2 radical inverse computed with bit tricks
func vanDerCorput(n uint32) float64 {
	n = (n << 16) | (n >> 16)
	n = ((n & 0x00ff00ff) << 8) | ((n & 0xff00ff00) >> 8)
	n = ((n & 0x0f0f0f0f) << 4) | ((n & 0xf0f0f0f0) >> 4)
	n = ((n & 0x33333333) << 2) | ((n & 0xcccccccc) >> 2)
	n = ((n & 0x55555555) << 1) | ((n & 0xaaaaaaaa) >> 1)
	return float64(n) * (1.0 / 4294967296.0)
}

// sobol2 is the second dimension of the Sobol' sequence
func sobol2(n uint32) float64 {
	var v uint32 = 1 << 31
	var result uint32
	for ; n != 0; n >>= 1 {
		if n&1 != 0 {
			result ^= v
		}
		v ^= v >> 1
	}
	return float64(result) * (1.0 / 4294967296.0)
}

// radicalInverse computes the radical inverse of n in the given base
func radicalInverse(n, base uint32) float64 {
	val := 0.0
	invBase := 1.0 / float64(base)
	invBi := invBase
	for n > 0 {
		val += float64(n%base) * invBi
		n /= base
		invBi *= invBase
	}
	return val
}

func (s *SobolSampler) GetSample(index int) float64 {
	var v float64
	switch {
	case index == 0:
		v = vanDerCorput(s.index)
	case index == 1:
		v = sobol2(s.index)
	case index-2 < len(sobolPrimes):
		v = radicalInverse(s.index, sobolPrimes[index-2])
	default:
		return s.rng.Float64()
	}

	if index < len(s.shift) {
		v += s.shift[index]
		if v >= 1 {
			v -= 1
		}
	}
	return v
}

func (s *SobolSampler) NextSample(results []core.SampleResult) {
	for i := range results {
		s.film.AddSample(&results[i])
	}
	s.film.AddSampleCount(1)
	s.index++
}
