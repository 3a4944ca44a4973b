package core

import (
	"math"
	"math/rand"
	"testing"
)

func TestDistribution1DSampleDiscrete(t *testing.T) {
	// Power-weighted light picking: probabilities must follow the
	// function values
	dist := NewDistribution1D([]float64{1, 3, 0, 4})

	tests := []struct {
		index    int
		expected float64
	}{
		{0, 1.0 / 8},
		{1, 3.0 / 8},
		{2, 0},
		{3, 4.0 / 8},
	}
	for _, tt := range tests {
		if got := dist.DiscretePdf(tt.index); math.Abs(got-tt.expected) > 1e-12 {
			t.Errorf("DiscretePdf(%d) = %v, expected %v", tt.index, got, tt.expected)
		}
	}

	// Empirical check
	rng := rand.New(rand.NewSource(7))
	counts := make([]int, 4)
	const n = 200000
	for i := 0; i < n; i++ {
		index, _ := dist.SampleDiscrete(rng.Float64())
		counts[index]++
	}
	for i, tt := range tests {
		got := float64(counts[i]) / n
		if math.Abs(got-tt.expected) > 0.01 {
			t.Errorf("empirical pdf of %d = %v, expected %v", i, got, tt.expected)
		}
	}
}

func TestDistribution1DContinuousRoundTrip(t *testing.T) {
	dist := NewDistribution1D([]float64{0.5, 2, 1, 0.25})

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 1000; i++ {
		u := rng.Float64()
		x, pdf := dist.SampleContinuous(u)
		if x < 0 || x >= 1 {
			t.Fatalf("sample %v outside [0,1)", x)
		}
		if pdf <= 0 {
			t.Fatalf("pdf %v must be positive for u=%v", pdf, u)
		}
		// The reported pdf must match the function value at the sample
		index := int(x * 4)
		if got := dist.Pdf(index); math.Abs(got-pdf) > 1e-9 {
			t.Fatalf("Pdf(%d) = %v, SampleContinuous reported %v", index, got, pdf)
		}
	}
}

func TestCosineSampleHemisphere(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	// Mean of cos should be 2/3 for pdf = cos/pi
	sum := 0.0
	const n = 100000
	for i := 0; i < n; i++ {
		v := CosineSampleHemisphere(rng.Float64(), rng.Float64())
		if v.Z < 0 {
			t.Fatal("cosine sample below the hemisphere")
		}
		if math.Abs(v.Length()-1) > 1e-9 {
			t.Fatalf("cosine sample %v not normalized", v)
		}
		sum += v.Z
	}
	mean := sum / n
	if math.Abs(mean-2.0/3) > 0.01 {
		t.Errorf("mean cos = %v, expected 2/3", mean)
	}
}

func TestUniformSampleSphere(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	var mean Vec3
	const n = 100000
	for i := 0; i < n; i++ {
		v := UniformSampleSphere(rng.Float64(), rng.Float64())
		if math.Abs(v.Length()-1) > 1e-9 {
			t.Fatalf("sphere sample %v not normalized", v)
		}
		mean = mean.Add(v)
	}
	mean = mean.Multiply(1.0 / n)
	if mean.Length() > 0.01 {
		t.Errorf("sphere sampling is biased: mean %v", mean)
	}
}

func TestUniformSampleTriangle(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	for i := 0; i < 10000; i++ {
		b1, b2 := UniformSampleTriangle(rng.Float64(), rng.Float64())
		if b1 < 0 || b2 < 0 || b1+b2 > 1+1e-12 {
			t.Fatalf("barycentrics (%v, %v) outside the triangle", b1, b2)
		}
	}
}
