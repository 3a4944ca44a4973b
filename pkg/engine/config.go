package engine

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// RenderConfig carries every engine/sampler/film/halt knob. It loads from
// a YAML render-config file; the scene itself comes from the property
// dialect.
type RenderConfig struct {
	RenderEngine string `yaml:"renderengine.type"`

	Seed    int64 `yaml:"renderengine.seed"`
	Threads int   `yaml:"native.threads.count"`

	Path struct {
		MaxDepth             int     `yaml:"maxdepth"`
		RussianRouletteDepth int     `yaml:"russianroulette.depth"`
		RussianRouletteCap   float64 `yaml:"russianroulette.cap"`
	} `yaml:"path"`

	Light struct {
		MaxDepth int `yaml:"maxdepth"`
	} `yaml:"light"`

	Bidir struct {
		EyeDepth   int `yaml:"eyedepth"`
		LightDepth int `yaml:"lightdepth"`
	} `yaml:"bidir"`

	Sampler struct {
		Type                 string  `yaml:"type"`
		LargeStepRate        float64 `yaml:"largesteprate"`
		MaxConsecutiveReject int     `yaml:"maxconsecutivereject"`
		ImageMutationRate    float64 `yaml:"imagemutationrate"`
	} `yaml:"sampler"`

	Film struct {
		Width      int    `yaml:"width"`
		Height     int    `yaml:"height"`
		FilterType string `yaml:"filter.type"`
	} `yaml:"film"`

	Batch struct {
		HaltTime      float64 `yaml:"halttime"`
		HaltSPP       int     `yaml:"haltspp"`
		HaltThreshold float64 `yaml:"haltthreshold"`
		PeriodicSave  float64 `yaml:"periodicsave"`
	} `yaml:"batch"`
}

// DefaultRenderConfig returns the knobs a bare config starts from
func DefaultRenderConfig() *RenderConfig {
	cfg := &RenderConfig{
		RenderEngine: "PATHCPU",
		Seed:         42,
		Threads:      runtime.NumCPU(),
	}
	cfg.Path.MaxDepth = 6
	cfg.Path.RussianRouletteDepth = 3
	cfg.Path.RussianRouletteCap = 0.125
	cfg.Light.MaxDepth = 6
	cfg.Bidir.EyeDepth = 6
	cfg.Bidir.LightDepth = 6
	cfg.Sampler.Type = "RANDOM"
	cfg.Sampler.LargeStepRate = 0.4
	cfg.Sampler.MaxConsecutiveReject = 512
	cfg.Sampler.ImageMutationRate = 0.1
	cfg.Film.Width = 640
	cfg.Film.Height = 480
	cfg.Film.FilterType = "BOX"
	return cfg
}

// LoadRenderConfig reads a YAML config file over the defaults
func LoadRenderConfig(path string) (*RenderConfig, error) {
	cfg := DefaultRenderConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("render config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("render config %q: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects impossible configurations before the engine starts
func (cfg *RenderConfig) Validate() error {
	switch cfg.RenderEngine {
	case "PATHCPU", "LIGHTCPU", "BIDIRCPU", "BIDIRHYBRID":
	default:
		return fmt.Errorf("unknown renderengine.type %q", cfg.RenderEngine)
	}
	switch cfg.Sampler.Type {
	case "RANDOM", "STRATIFIED", "SOBOL", "METROPOLIS":
	default:
		return fmt.Errorf("unknown sampler.type %q", cfg.Sampler.Type)
	}
	if cfg.Path.MaxDepth <= 0 || cfg.Light.MaxDepth <= 0 ||
		cfg.Bidir.EyeDepth <= 0 || cfg.Bidir.LightDepth <= 0 {
		return fmt.Errorf("path depths must be positive")
	}
	if cfg.Film.Width <= 0 || cfg.Film.Height <= 0 {
		return fmt.Errorf("film size must be positive")
	}
	if cfg.Threads <= 0 {
		cfg.Threads = runtime.NumCPU()
	}
	return nil
}

// Save writes the config as YAML
func (cfg *RenderConfig) Save(path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
