package film

import (
	"math"
)

// Filter is a pixel reconstruction filter evaluated on [-Width, Width] x
// [-Height, Height]
type Filter interface {
	Name() string
	Width() float64
	Height() float64
	Evaluate(x, y float64) float64
}

// BoxFilter weights every sample inside its support equally
type BoxFilter struct {
	W, H float64
}

// NewBoxFilter creates a box filter
func NewBoxFilter(width, height float64) *BoxFilter {
	return &BoxFilter{W: width, H: height}
}

func (f *BoxFilter) Name() string    { return "box" }
func (f *BoxFilter) Width() float64  { return f.W }
func (f *BoxFilter) Height() float64 { return f.H }

func (f *BoxFilter) Evaluate(x, y float64) float64 {
	if math.Abs(x) > f.W || math.Abs(y) > f.H {
		return 0
	}
	return 1
}

// GaussianFilter is a truncated Gaussian
type GaussianFilter struct {
	W, H  float64
	Alpha float64

	expX, expY float64
}

// NewGaussianFilter creates a Gaussian filter with falloff alpha
func NewGaussianFilter(width, height, alpha float64) *GaussianFilter {
	return &GaussianFilter{
		W: width, H: height, Alpha: alpha,
		expX: math.Exp(-alpha * width * width),
		expY: math.Exp(-alpha * height * height),
	}
}

func (f *GaussianFilter) Name() string    { return "gaussian" }
func (f *GaussianFilter) Width() float64  { return f.W }
func (f *GaussianFilter) Height() float64 { return f.H }

func (f *GaussianFilter) Evaluate(x, y float64) float64 {
	gx := math.Max(0, math.Exp(-f.Alpha*x*x)-f.expX)
	gy := math.Max(0, math.Exp(-f.Alpha*y*y)-f.expY)
	return gx * gy
}

// MitchellFilter is the Mitchell-Netravali cubic with the usual B = C = 1/3
type MitchellFilter struct {
	W, H float64
	B, C float64
}

// NewMitchellFilter creates a Mitchell-Netravali filter
func NewMitchellFilter(width, height float64) *MitchellFilter {
	return &MitchellFilter{W: width, H: height, B: 1.0 / 3, C: 1.0 / 3}
}

func (f *MitchellFilter) Name() string    { return "mitchell" }
func (f *MitchellFilter) Width() float64  { return f.W }
func (f *MitchellFilter) Height() float64 { return f.H }

func (f *MitchellFilter) mitchell1D(x float64) float64 {
	x = math.Abs(2 * x)
	b, c := f.B, f.C
	if x > 1 {
		return ((-b-6*c)*x*x*x + (6*b+30*c)*x*x + (-12*b-48*c)*x + (8*b + 24*c)) * (1.0 / 6)
	}
	return ((12-9*b-6*c)*x*x*x + (-18+12*b+6*c)*x*x + (6 - 2*b)) * (1.0 / 6)
}

func (f *MitchellFilter) Evaluate(x, y float64) float64 {
	return f.mitchell1D(x/f.W) * f.mitchell1D(y/f.H)
}

// FilterLUT precomputes the filter weights for one subpixel offset over
// the filter's pixel footprint
type FilterLUT struct {
	weights []float64
	size    int // footprint edge in pixels
	offsetX int
	offsetY int
}

// FilterLUTs tabulates the filter at a grid of subpixel offsets so the
// splat path never evaluates the filter function
type FilterLUTs struct {
	filter  Filter
	luts    []*FilterLUT
	perSide int
	step    float64
}

// NewFilterLUTs tabulates the filter at perSide x perSide subpixel offsets
func NewFilterLUTs(filter Filter, perSide int) *FilterLUTs {
	l := &FilterLUTs{
		filter:  filter,
		luts:    make([]*FilterLUT, perSide*perSide),
		perSide: perSide,
		step:    1.0 / float64(perSide),
	}

	for y := 0; y < perSide; y++ {
		for x := 0; x < perSide; x++ {
			// Subpixel offset at the center of this LUT cell,
			// relative to the pixel center
			ox := (float64(x)+0.5)*l.step - 0.5
			oy := (float64(y)+0.5)*l.step - 0.5
			l.luts[y*perSide+x] = newFilterLUT(filter, ox, oy)
		}
	}
	return l
}

func newFilterLUT(filter Filter, offsetX, offsetY float64) *FilterLUT {
	radius := int(math.Ceil(math.Max(filter.Width(), filter.Height()) - 0.5))
	size := 2*radius + 1

	lut := &FilterLUT{
		weights: make([]float64, size*size),
		size:    size,
		offsetX: -radius,
		offsetY: -radius,
	}

	// Normalize the weights so one splat distributes unit energy
	sum := 0.0
	for py := 0; py < size; py++ {
		for px := 0; px < size; px++ {
			dx := float64(px-radius) - offsetX
			dy := float64(py-radius) - offsetY
			w := filter.Evaluate(dx, dy)
			lut.weights[py*size+px] = w
			sum += w
		}
	}
	if sum > 0 {
		for i := range lut.weights {
			lut.weights[i] /= sum
		}
	}
	return lut
}

// Lookup returns the LUT for a sample's subpixel position
func (l *FilterLUTs) Lookup(subX, subY float64) *FilterLUT {
	x := min(int(subX*float64(l.perSide)), l.perSide-1)
	y := min(int(subY*float64(l.perSide)), l.perSide-1)
	return l.luts[y*l.perSide+x]
}

// Size returns the footprint edge length in pixels
func (lut *FilterLUT) Size() int { return lut.size }

// Weight returns the normalized weight for the footprint cell (px, py)
func (lut *FilterLUT) Weight(px, py int) float64 {
	return lut.weights[py*lut.size+px]
}

// Offsets returns the pixel offset of the footprint's top-left cell
func (lut *FilterLUT) Offsets() (int, int) { return lut.offsetX, lut.offsetY }

// NewFilterByName builds the filter selected by film.filter.type
func NewFilterByName(name string) Filter {
	switch name {
	case "GAUSSIAN", "gaussian":
		return NewGaussianFilter(1.5, 1.5, 2)
	case "MITCHELL", "mitchell":
		return NewMitchellFilter(1.5, 1.5)
	default:
		return NewBoxFilter(0.5, 0.5)
	}
}
