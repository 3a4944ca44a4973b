package film

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/df07/go-light-transport/pkg/core"
)

// Pixel holds the per-pixel accumulation channels. Two radiance buffers
// coexist: one normalized by the local weight (eye-path contributions) and
// one normalized by the total sample count (light-tracing splats).
type Pixel struct {
	RadiancePerPixel  core.Vec3
	Weight            float64
	RadiancePerScreen core.Vec3
	Alpha             float64
	Depth             float64
}

// Film accumulates filtered radiance samples into a pixel grid
type Film struct {
	Width  int
	Height int

	mu     sync.Mutex
	pixels []Pixel

	luts *FilterLUTs

	// totalSampleCount normalizes the per-screen buffer
	totalSampleCount uint64

	// nanCount diagnoses discarded degenerate samples
	nanCount uint64

	// convergence reference frame
	reference []core.Vec3
}

// New creates a film with the given reconstruction filter
func New(width, height int, filter Filter) *Film {
	if filter == nil {
		filter = NewBoxFilter(0.5, 0.5)
	}
	return &Film{
		Width:  width,
		Height: height,
		pixels: make([]Pixel, width*height),
		luts:   NewFilterLUTs(filter, 4),
	}
}

// AddSampleCount adds to the total sample counter used for per-screen
// normalization
func (f *Film) AddSampleCount(n uint64) {
	atomic.AddUint64(&f.totalSampleCount, n)
}

// TotalSampleCount returns the number of samples accumulated so far
func (f *Film) TotalSampleCount() uint64 {
	return atomic.LoadUint64(&f.totalSampleCount)
}

// NaNSampleCount returns the number of degenerate samples discarded
func (f *Film) NaNSampleCount() uint64 {
	return atomic.LoadUint64(&f.nanCount)
}

// AddSample splats one sample result through the filter LUT. Degenerate
// radiance values are discarded and counted, never splatted.
func (f *Film) AddSample(sr *core.SampleResult) {
	f.AddWeightedSample(sr, 1)
}

// AddWeightedSample splats a sample with an extra weight, the entry point
// the Metropolis sampler uses
func (f *Film) AddWeightedSample(sr *core.SampleResult, weight float64) {
	if !sr.Radiance.IsValid() || math.IsNaN(weight) || math.IsInf(weight, 0) {
		atomic.AddUint64(&f.nanCount, 1)
		return
	}

	px := int(sr.FilmX)
	py := int(sr.FilmY)
	if px < 0 || px >= f.Width || py < 0 || py >= f.Height {
		return
	}

	subX := sr.FilmX - float64(px)
	subY := sr.FilmY - float64(py)
	lut := f.luts.Lookup(subX, subY)
	offX, offY := lut.Offsets()
	size := lut.Size()

	f.mu.Lock()
	defer f.mu.Unlock()

	for dy := 0; dy < size; dy++ {
		y := py + offY + dy
		if y < 0 || y >= f.Height {
			continue
		}
		for dx := 0; dx < size; dx++ {
			x := px + offX + dx
			if x < 0 || x >= f.Width {
				continue
			}
			w := lut.Weight(dx, dy) * weight
			if w == 0 {
				continue
			}

			pixel := &f.pixels[y*f.Width+x]
			switch sr.Type {
			case core.RadiancePerPixelNormalized:
				pixel.RadiancePerPixel = pixel.RadiancePerPixel.Add(sr.Radiance.Multiply(w))
				pixel.Weight += w
				pixel.Alpha += sr.Alpha * w
				pixel.Depth = sr.Depth
			case core.RadiancePerScreenNormalized:
				pixel.RadiancePerScreen = pixel.RadiancePerScreen.Add(sr.Radiance.Multiply(w))
			}
		}
	}
}

// Merge folds another film into this one. The engines render into one
// shared film and do not call it.
func (f *Film) Merge(other *Film) {
	other.mu.Lock()
	defer other.mu.Unlock()
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.pixels {
		p := &f.pixels[i]
		o := &other.pixels[i]
		p.RadiancePerPixel = p.RadiancePerPixel.Add(o.RadiancePerPixel)
		p.Weight += o.Weight
		p.RadiancePerScreen = p.RadiancePerScreen.Add(o.RadiancePerScreen)
		p.Alpha += o.Alpha
	}
	atomic.AddUint64(&f.totalSampleCount, other.TotalSampleCount())
	atomic.AddUint64(&f.nanCount, other.NaNSampleCount())
}

// Clear resets all accumulation buffers
func (f *Film) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.pixels {
		f.pixels[i] = Pixel{}
	}
	atomic.StoreUint64(&f.totalSampleCount, 0)
}

// PixelRadiance returns the final radiance of a pixel: the per-pixel
// buffer divided by the local weight plus the per-screen buffer divided by
// the total sample count
func (f *Film) PixelRadiance(x, y int) core.Vec3 {
	p := &f.pixels[y*f.Width+x]

	var out core.Vec3
	if p.Weight > 0 {
		out = p.RadiancePerPixel.Multiply(1 / p.Weight)
	}
	if total := f.TotalSampleCount(); total > 0 {
		out = out.Add(p.RadiancePerScreen.Multiply(1 / float64(total)))
	}
	return out
}

// Pixels returns a snapshot of the final radiance values, row-major
func (f *Film) Pixels() []core.Vec3 {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]core.Vec3, len(f.pixels))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			out[y*f.Width+x] = f.PixelRadiance(x, y)
		}
	}
	return out
}

// RunConvergenceTest compares the current frame against the previous
// reference and returns the number of pixels still changing beyond the
// threshold. The current frame becomes the new reference.
func (f *Film) RunConvergenceTest(threshold float64) int {
	current := f.Pixels()

	f.mu.Lock()
	defer f.mu.Unlock()

	changing := 0
	if f.reference != nil {
		for i, c := range current {
			diff := c.Subtract(f.reference[i]).Abs()
			maxChannel := diff.MaxComponent()
			// Relative difference where the pixel has energy
			if lum := c.Luminance(); lum > 1e-4 {
				maxChannel /= lum
			}
			if maxChannel > threshold {
				changing++
			}
		}
	} else {
		changing = len(current)
	}

	f.reference = current
	return changing
}

// Image converts the film into a gamma-corrected 8-bit image
func (f *Film) Image() *image.RGBA {
	pixels := f.Pixels()
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			c := pixels[y*f.Width+x].GammaCorrect(2.2).Clamp(0, 1)
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(255 * c.X),
				G: uint8(255 * c.Y),
				B: uint8(255 * c.Z),
				A: 255,
			})
		}
	}
	return img
}

// SaveImage writes the film as a PNG file
func (f *Film) SaveImage(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return png.Encode(file, f.Image())
}
