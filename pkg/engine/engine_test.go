package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"testing"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/film"
	"github.com/df07/go-light-transport/pkg/sampler"
	"github.com/df07/go-light-transport/pkg/scene"
)

const testSceneHeader = `
scene.camera.lookat = 0 0 -3 0 0 0
scene.camera.fov = 45
scene.camera.up = 0 1 0
film.width = 8
film.height = 8
`

// boxSceneProps is a small closed box lit by a ceiling quad
const boxSceneProps = testSceneHeader + `
scene.materials.white.type = matte
scene.materials.white.kd = 0.7 0.7 0.7
scene.materials.lamp.type = matte
scene.materials.lamp.kd = 0 0 0
scene.materials.lamp.emission = 20 20 20
scene.objects.back.material = white
scene.objects.back.vertices = -2 -2 2 2 -2 2 2 2 2 -2 2 2
scene.objects.back.faces = 0 1 2 0 2 3
scene.objects.floor.material = white
scene.objects.floor.vertices = -2 -2 -3 2 -2 -3 2 -2 2 -2 -2 2
scene.objects.floor.faces = 0 1 2 0 2 3
scene.objects.lamp.material = lamp
scene.objects.lamp.vertices = -0.5 1.9 -0.5 0.5 1.9 -0.5 0.5 1.9 0.5 -0.5 1.9 0.5
scene.objects.lamp.faces = 0 2 1 0 3 2
`

func buildTestScene(t *testing.T, props string) *scene.Scene {
	t.Helper()
	parsed, err := scene.ParsePropertiesString(props)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	sc, err := scene.Build(parsed, nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return sc
}

func testConfig(engineType string) *RenderConfig {
	cfg := DefaultRenderConfig()
	cfg.RenderEngine = engineType
	cfg.Film.Width = 8
	cfg.Film.Height = 8
	cfg.Threads = 1
	cfg.Seed = 42
	cfg.Path.MaxDepth = 4
	cfg.Bidir.EyeDepth = 4
	cfg.Bidir.LightDepth = 4
	return cfg
}

// filmHash hashes the film accumulators for determinism checks
func filmHash(f *film.Film) [32]byte {
	pixels := f.Pixels()
	h := sha256.New()
	buf := make([]byte, 8)
	for _, p := range pixels {
		for _, channel := range []float64{p.X, p.Y, p.Z} {
			binary.LittleEndian.PutUint64(buf, math.Float64bits(channel))
			h.Write(buf)
		}
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// renderDeterministic runs a fixed number of samples on one thread
func renderDeterministic(t *testing.T, sc *scene.Scene, engineType string, samples int) *film.Film {
	t.Helper()
	cfg := testConfig(engineType)
	flm := film.New(cfg.Film.Width, cfg.Film.Height, film.NewBoxFilter(0.5, 0.5))

	switch engineType {
	case "PATHCPU":
		e := NewPathCPU(sc, cfg, flm)
		smp := sampler.NewRandomSampler(cfg.Seed, flm)
		smp.RequestSamples(e.sampleSize())
		for i := 0; i < samples; i++ {
			result := e.renderSample(smp)
			smp.NextSample([]core.SampleResult{result})
		}
	case "BIDIRCPU":
		e := NewBidirCPU(sc, cfg, flm)
		smp := sampler.NewRandomSampler(cfg.Seed, flm)
		smp.RequestSamples(e.bidirSampleSize())
		results := make([]core.SampleResult, 0, 16)
		for i := 0; i < samples; i++ {
			results = e.renderSample(smp, results[:0])
			smp.NextSample(results)
		}
	default:
		t.Fatalf("unsupported test engine %q", engineType)
	}
	return flm
}

// TestDeterministicRender verifies byte-identical accumulators for two
// single-threaded runs with the same seed
func TestDeterministicRender(t *testing.T) {
	for _, engineType := range []string{"PATHCPU", "BIDIRCPU"} {
		t.Run(engineType, func(t *testing.T) {
			sc1 := buildTestScene(t, boxSceneProps)
			f1 := renderDeterministic(t, sc1, engineType, 512)

			sc2 := buildTestScene(t, boxSceneProps)
			f2 := renderDeterministic(t, sc2, engineType, 512)

			if filmHash(f1) != filmHash(f2) {
				t.Fatal("two identical runs produced different film accumulators")
			}
		})
	}
}

// TestBlockedLightIsBlack renders a scene whose only light is hidden
// behind an opaque blocker: the image must be black
func TestBlockedLightIsBlack(t *testing.T) {
	blocked := testSceneHeader + `
scene.materials.white.type = matte
scene.materials.white.kd = 0.7 0.7 0.7
scene.materials.lamp.type = matte
scene.materials.lamp.kd = 0 0 0
scene.materials.lamp.emission = 50 50 50
scene.objects.lamp.material = lamp
scene.objects.lamp.vertices = -1 -1 4 1 -1 4 0 1 4
scene.objects.lamp.faces = 0 1 2
scene.objects.blocker.material = white
scene.objects.blocker.vertices = -3 -3 2 3 -3 2 3 3 2 -3 3 2
scene.objects.blocker.faces = 0 1 2 0 2 3
`
	sc := buildTestScene(t, blocked)
	flm := renderDeterministic(t, sc, "PATHCPU", 2048)

	// Nothing but the blocker is visible and nothing lights it
	for i, p := range flm.Pixels() {
		if p.MaxComponent() > 1e-9 {
			t.Fatalf("pixel %d has radiance %v in a fully occluded scene", i, p)
		}
	}
}

// TestConstantEnvironmentDirectView renders a scene with no geometry
// inside a constant white environment: every camera ray escapes, so each
// pixel must see exactly the environment radiance 1
func TestConstantEnvironmentDirectView(t *testing.T) {
	env := testSceneHeader + `
scene.lights.sky.type = constantinfinite
scene.lights.sky.color = 1 1 1
`
	sc := buildTestScene(t, env)
	flm := renderDeterministic(t, sc, "PATHCPU", 1024)

	for i, p := range flm.Pixels() {
		if math.Abs(p.X-1) > 1e-6 {
			t.Fatalf("pixel %d radiance %v, expected exactly the env radiance 1", i, p.X)
		}
	}
}

// TestPathVsBidirAgreement renders the same box with both CPU engines
// and requires the mean image brightness to agree within a loose
// statistical tolerance
func TestPathVsBidirAgreement(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical comparison")
	}

	const samples = 20000

	scPath := buildTestScene(t, boxSceneProps)
	fPath := renderDeterministic(t, scPath, "PATHCPU", samples)

	scBidir := buildTestScene(t, boxSceneProps)
	fBidir := renderDeterministic(t, scBidir, "BIDIRCPU", samples)

	meanOf := func(f *film.Film) float64 {
		sum := 0.0
		for _, p := range f.Pixels() {
			sum += p.Luminance()
		}
		return sum / float64(f.Width*f.Height)
	}

	mPath := meanOf(fPath)
	mBidir := meanOf(fBidir)
	if mPath <= 0 || mBidir <= 0 {
		t.Fatalf("black renders: path=%v bidir=%v", mPath, mBidir)
	}
	diff := math.Abs(mPath-mBidir) / mPath
	if diff > 0.15 {
		t.Fatalf("engines disagree: path=%v bidir=%v (%.0f%%)", mPath, mBidir, diff*100)
	}
}

func TestRenderConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RenderConfig)
		valid  bool
	}{
		{"default", func(cfg *RenderConfig) {}, true},
		{"bad engine", func(cfg *RenderConfig) { cfg.RenderEngine = "NOPE" }, false},
		{"bad sampler", func(cfg *RenderConfig) { cfg.Sampler.Type = "NOPE" }, false},
		{"zero depth", func(cfg *RenderConfig) { cfg.Path.MaxDepth = 0 }, false},
		{"zero film", func(cfg *RenderConfig) { cfg.Film.Width = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultRenderConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestEditActionList(t *testing.T) {
	actions := CameraEdit | LightsEdit
	if !actions.Has(CameraEdit) || !actions.Has(LightsEdit) {
		t.Error("set bits not reported")
	}
	if actions.Has(GeometryEdit) {
		t.Error("unset bit reported")
	}
}
