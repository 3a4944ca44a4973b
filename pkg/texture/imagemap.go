package texture

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"sync"

	_ "golang.org/x/image/tiff"

	"github.com/df07/go-light-transport/pkg/core"
)

// ImageMap holds a decoded image as linear float RGB
type ImageMap struct {
	Width, Height int
	Pixels        []core.Vec3
	Gamma         float64
}

// LoadImageMap decodes an image file (png, jpeg or tiff) into linear RGB
func LoadImageMap(path string, gamma float64) (*ImageMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imagemap %q: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("imagemap %q: %w", path, err)
	}

	bounds := img.Bounds()
	im := &ImageMap{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pixels: make([]core.Vec3, bounds.Dx()*bounds.Dy()),
		Gamma:  gamma,
	}

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			c := core.NewVec3(float64(r)/65535, float64(g)/65535, float64(b)/65535)
			if gamma != 1 {
				c = core.NewVec3(math.Pow(c.X, gamma), math.Pow(c.Y, gamma), math.Pow(c.Z, gamma))
			}
			im.Pixels[i] = c
			i++
		}
	}

	return im, nil
}

// Texel returns the pixel at integer coordinates with repeat wrapping
func (im *ImageMap) Texel(x, y int) core.Vec3 {
	x = ((x % im.Width) + im.Width) % im.Width
	y = ((y % im.Height) + im.Height) % im.Height
	return im.Pixels[y*im.Width+x]
}

// Bilinear samples the image at (u, v) with bilinear filtering and repeat
// wrapping. v runs top-down like the stored rows.
func (im *ImageMap) Bilinear(u, v float64) core.Vec3 {
	x := u*float64(im.Width) - 0.5
	y := v*float64(im.Height) - 0.5
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	dx := x - float64(x0)
	dy := y - float64(y0)

	c00 := im.Texel(x0, y0)
	c10 := im.Texel(x0+1, y0)
	c01 := im.Texel(x0, y0+1)
	c11 := im.Texel(x0+1, y0+1)

	top := c00.Lerp(c10, dx)
	bottom := c01.Lerp(c11, dx)
	return top.Lerp(bottom, dy)
}

// ImageMapCache shares decoded image maps between textures and engine
// instances by file name. Entries are reference counted; Purge drops
// unused entries between scene edits.
type ImageMapCache struct {
	mu   sync.Mutex
	maps map[string]*cacheEntry
}

type cacheEntry struct {
	im   *ImageMap
	refs int
}

// NewImageMapCache creates an empty cache
func NewImageMapCache() *ImageMapCache {
	return &ImageMapCache{maps: make(map[string]*cacheEntry)}
}

// Get loads (or reuses) the image map for the given path
func (c *ImageMapCache) Get(path string, gamma float64) (*ImageMap, error) {
	key := fmt.Sprintf("%s|%g", path, gamma)

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.maps[key]; ok {
		entry.refs++
		return entry.im, nil
	}

	im, err := LoadImageMap(path, gamma)
	if err != nil {
		return nil, err
	}
	c.maps[key] = &cacheEntry{im: im, refs: 1}
	return im, nil
}

// Release drops one reference to the image map at path
func (c *ImageMapCache) Release(path string, gamma float64) {
	key := fmt.Sprintf("%s|%g", path, gamma)

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.maps[key]; ok && entry.refs > 0 {
		entry.refs--
	}
}

// Purge removes entries with no references. Only call between scene edits.
func (c *ImageMapCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.maps {
		if entry.refs <= 0 {
			delete(c.maps, key)
		}
	}
}

// ImageMapTexture samples an image map with UV scale/offset
type ImageMapTexture struct {
	Map    *ImageMap
	Gain   float64
	UScale float64
	VScale float64
	UDelta float64
	VDelta float64
}

// NewImageMapTexture creates an imagemap texture with identity mapping
func NewImageMapTexture(im *ImageMap) *ImageMapTexture {
	return &ImageMapTexture{Map: im, Gain: 1, UScale: 1, VScale: 1}
}

func (t *ImageMapTexture) Float(hp *core.HitPoint) float64 {
	return t.Spectrum(hp).Filter()
}

func (t *ImageMapTexture) Spectrum(hp *core.HitPoint) core.Vec3 {
	u := hp.UV.X*t.UScale + t.UDelta
	v := hp.UV.Y*t.VScale + t.VDelta
	return t.Map.Bilinear(u, v).Multiply(t.Gain)
}
