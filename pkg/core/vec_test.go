package core

import (
	"math"
	"testing"
)

func TestVec3Operations(t *testing.T) {
	v1 := NewVec3(1, 2, 3)
	v2 := NewVec3(4, 5, 6)

	tests := []struct {
		name     string
		got      Vec3
		expected Vec3
	}{
		{"Add", v1.Add(v2), NewVec3(5, 7, 9)},
		{"Subtract", v2.Subtract(v1), NewVec3(3, 3, 3)},
		{"Multiply", v1.Multiply(2), NewVec3(2, 4, 6)},
		{"MultiplyVec", v1.MultiplyVec(v2), NewVec3(4, 10, 18)},
		{"Negate", v1.Negate(), NewVec3(-1, -2, -3)},
		{"Cross", NewVec3(1, 0, 0).Cross(NewVec3(0, 1, 0)), NewVec3(0, 0, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.got.Equals(tt.expected) {
				t.Errorf("got %v, expected %v", tt.got, tt.expected)
			}
		})
	}
}

func TestVec3DotAndLength(t *testing.T) {
	v := NewVec3(3, 4, 0)
	if got := v.Length(); got != 5 {
		t.Errorf("Length() = %v, expected 5", got)
	}
	if got := v.Dot(NewVec3(1, 0, 0)); got != 3 {
		t.Errorf("Dot() = %v, expected 3", got)
	}
	if got := v.Normalize().Length(); math.Abs(got-1) > 1e-12 {
		t.Errorf("Normalize().Length() = %v, expected 1", got)
	}
}

func TestVec3IsValid(t *testing.T) {
	tests := []struct {
		name  string
		v     Vec3
		valid bool
	}{
		{"finite", NewVec3(1, 2, 3), true},
		{"zero", Black, true},
		{"nan", NewVec3(math.NaN(), 0, 0), false},
		{"inf", NewVec3(0, math.Inf(1), 0), false},
		{"neg inf", NewVec3(0, 0, math.Inf(-1)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, expected %v", got, tt.valid)
			}
		})
	}
}

func TestFrameRoundTrip(t *testing.T) {
	normals := []Vec3{
		NewVec3(0, 0, 1),
		NewVec3(0, 1, 0),
		NewVec3(1, 0, 0).Normalize(),
		NewVec3(1, 2, 3).Normalize(),
		NewVec3(-0.3, 0.4, -0.6).Normalize(),
	}

	for _, n := range normals {
		frame := NewFrame(n)

		// The frame must be orthonormal
		if math.Abs(frame.X.Dot(frame.Y)) > 1e-9 || math.Abs(frame.X.Dot(frame.Z)) > 1e-9 {
			t.Errorf("frame for %v is not orthogonal", n)
		}

		// ToLocal/ToWorld must be inverses
		v := NewVec3(0.3, -0.5, 0.8).Normalize()
		back := frame.ToWorld(frame.ToLocal(v))
		if !back.Equals(v) {
			t.Errorf("round trip for normal %v: got %v, expected %v", n, back, v)
		}
	}
}

func TestRayHitMissSentinel(t *testing.T) {
	miss := MissHit()
	if !miss.Miss() {
		t.Error("MissHit() must report Miss()")
	}
	hit := RayHit{T: 1, MeshIndex: 0, TriIndex: 3}
	if hit.Miss() {
		t.Error("a real hit must not report Miss()")
	}
}

func TestPdfConversionInverse(t *testing.T) {
	pdfW := 1.7
	dist := 3.2
	cos := 0.6

	pdfA := PdfWtoA(pdfW, dist, cos)
	back := PdfAtoW(pdfA, dist, cos)
	if math.Abs(back-pdfW) > 1e-12 {
		t.Errorf("PdfAtoW(PdfWtoA(x)) = %v, expected %v", back, pdfW)
	}
}

func TestPowerHeuristic(t *testing.T) {
	// Partition of unity between the two strategies
	f, g := 0.7, 1.9
	sum := PowerHeuristic(f, g) + PowerHeuristic(g, f)
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("power heuristic weights sum to %v, expected 1", sum)
	}

	if got := PowerHeuristic(0, 1); got != 0 {
		t.Errorf("PowerHeuristic(0, 1) = %v, expected 0", got)
	}
}
