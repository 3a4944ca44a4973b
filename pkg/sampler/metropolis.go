package sampler

import (
	"math"
	"math/rand"
	"sync/atomic"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/film"
)

// SharedLuminance is the process-wide mean-image-luminance estimator all
// Metropolis workers feed. Updates are lock-free atomic adds; the pair is
// the only mutable state shared between render workers.
type SharedLuminance struct {
	totalLuminanceBits uint64 // float64 bits, CAS-updated
	sampleCount        uint64
}

// NewSharedLuminance creates an empty shared estimator
func NewSharedLuminance() *SharedLuminance {
	return &SharedLuminance{}
}

// Add folds one large-mutation sample into the estimator
func (s *SharedLuminance) Add(luminance float64) {
	for {
		oldBits := atomic.LoadUint64(&s.totalLuminanceBits)
		newBits := math.Float64bits(math.Float64frombits(oldBits) + luminance)
		if atomic.CompareAndSwapUint64(&s.totalLuminanceBits, oldBits, newBits) {
			break
		}
	}
	atomic.AddUint64(&s.sampleCount, 1)
}

// Mean returns the current mean luminance estimate, 1 when empty
func (s *SharedLuminance) Mean() float64 {
	count := atomic.LoadUint64(&s.sampleCount)
	if count == 0 {
		return 1
	}
	total := math.Float64frombits(atomic.LoadUint64(&s.totalLuminanceBits))
	if total <= 0 {
		return 1
	}
	return total / float64(count)
}

// Count returns the number of samples folded in so far
func (s *SharedLuminance) Count() uint64 {
	return atomic.LoadUint64(&s.sampleCount)
}

// MetropolisConfig carries the sampler.* knobs
type MetropolisConfig struct {
	LargeMutationProbability float64
	MaxConsecutiveReject     int
	ImageMutationRange       float64
}

// DefaultMetropolisConfig returns the usual values
func DefaultMetropolisConfig() MetropolisConfig {
	return MetropolisConfig{
		LargeMutationProbability: 0.4,
		MaxConsecutiveReject:     512,
		ImageMutationRange:       0.1,
	}
}

// MetropolisSampler implements Kelemen-style Metropolis sampling in
// primary sample space. The image-luminance normalization is shared
// between all workers through a SharedLuminance estimator.
type MetropolisSampler struct {
	rng    *rand.Rand
	film   *film.Film
	shared *SharedLuminance
	config MetropolisConfig

	// pixelCount bounds the cooldown phase
	pixelCount uint64

	sampleSize int

	// working state for the proposal being evaluated
	samples      []float64
	sampleStamps []int
	stamp        int

	// last accepted state
	currentSamples []float64
	currentStamps  []int
	currentStamp   int

	currentResults   []core.SampleResult
	currentLuminance float64
	weight           float64

	isLargeMutation    bool
	consecutiveRejects int
}

// NewMetropolisSampler creates a Metropolis sampler sharing the given
// luminance estimator
func NewMetropolisSampler(seed int64, f *film.Film, shared *SharedLuminance, config MetropolisConfig) *MetropolisSampler {
	return &MetropolisSampler{
		rng:             rand.New(rand.NewSource(seed)),
		film:            f,
		shared:          shared,
		config:          config,
		pixelCount:      uint64(f.Width) * uint64(f.Height),
		isLargeMutation: true,
	}
}

func (s *MetropolisSampler) RequestSamples(size int) {
	s.sampleSize = size
	s.samples = make([]float64, size)
	s.sampleStamps = make([]int, size)
	s.currentSamples = make([]float64, size)
	s.currentStamps = make([]int, size)
	for i := range s.samples {
		s.samples[i] = s.rng.Float64()
	}
	s.stamp = 1
}

// inCooldown reports whether the estimator is still warming up; mutations
// stay aggressive until enough large steps have been recorded
func (s *MetropolisSampler) inCooldown() bool {
	return s.shared.Count() <= s.pixelCount
}

// mutate applies the standard small mutation with magnitudes between
// s1 = 1/512 and s2 = 1/16
func (s *MetropolisSampler) mutate(value float64) float64 {
	const s1 = 1.0 / 512
	const s2 = 1.0 / 16

	randomValue := s.rng.Float64()
	dv := s2 * math.Exp(-math.Log(s2/s1)*randomValue)

	if s.rng.Float64() < 0.5 {
		value += dv
		if value >= 1 {
			value -= 1
		}
	} else {
		value -= dv
		if value < 0 {
			value += 1
		}
	}
	return value
}

// mutateScaled is the image-plane mutation for dimensions 0 and 1,
// scaled to the configured image range
func (s *MetropolisSampler) mutateScaled(value float64) float64 {
	rangeValue := s.config.ImageMutationRange
	const s1 = 32.0

	randomValue := s.rng.Float64()
	dv := rangeValue * math.Exp(-math.Log(s1)*randomValue)

	if s.rng.Float64() < 0.5 {
		value += dv
		if value >= 1 {
			value -= 1
		}
	} else {
		value -= dv
		if value < 0 {
			value += 1
		}
	}
	return value
}

func (s *MetropolisSampler) GetSample(index int) float64 {
	if s.isLargeMutation {
		if s.sampleStamps[index] < s.stamp {
			s.samples[index] = s.rng.Float64()
			s.sampleStamps[index] = s.stamp
		}
		return s.samples[index]
	}

	// Walk the mutation chain from the dimension's last stamp to the
	// global stamp
	for s.sampleStamps[index] < s.stamp {
		if index <= 1 {
			s.samples[index] = s.mutateScaled(s.samples[index])
		} else {
			s.samples[index] = s.mutate(s.samples[index])
		}
		s.sampleStamps[index]++
	}
	return s.samples[index]
}

func (s *MetropolisSampler) NextSample(results []core.SampleResult) {
	newLuminance := 0.0
	for i := range results {
		if results[i].Radiance.IsValid() {
			newLuminance += results[i].Radiance.Luminance()
		}
	}

	if s.isLargeMutation {
		s.shared.Add(newLuminance)
	}
	meanIntensity := s.shared.Mean()

	largeProb := s.config.LargeMutationProbability
	if s.inCooldown() {
		largeProb = 0.5
	}

	// Accept probability, forced to 1 after too many rejects so the
	// chain cannot stall on a bright sample
	accProb := 1.0
	if s.currentLuminance > 0 && s.consecutiveRejects < s.config.MaxConsecutiveReject {
		accProb = math.Min(1, newLuminance/s.currentLuminance)
	}

	newWeight := accProb
	if s.isLargeMutation {
		newWeight += 1
	}
	s.weight += 1 - accProb

	if accProb == 1 || s.rng.Float64() < accProb {
		// Accept: flush the accumulated weight of the departing state
		if s.currentLuminance > 0 {
			norm := s.weight / (s.currentLuminance/meanIntensity + largeProb)
			for i := range s.currentResults {
				s.film.AddWeightedSample(&s.currentResults[i], norm)
			}
		}

		s.currentResults = append(s.currentResults[:0], results...)
		s.currentLuminance = newLuminance
		s.weight = newWeight
		copy(s.currentSamples, s.samples)
		copy(s.currentStamps, s.sampleStamps)
		s.currentStamp = s.stamp
		s.consecutiveRejects = 0
	} else {
		// Reject: splat the proposal's own weight, then restore the
		// accepted state
		if newLuminance > 0 {
			norm := newWeight / (newLuminance/meanIntensity + largeProb)
			for i := range results {
				s.film.AddWeightedSample(&results[i], norm)
			}
		}

		copy(s.samples, s.currentSamples)
		copy(s.sampleStamps, s.currentStamps)
		s.stamp = s.currentStamp
		s.consecutiveRejects++
	}

	s.film.AddSampleCount(1)

	// Decide the mutation kind of the next proposal
	s.isLargeMutation = s.rng.Float64() < largeProb
	s.stamp++
}
