package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/pprof"

	"github.com/df07/go-light-transport/pkg/engine"
	"github.com/df07/go-light-transport/pkg/scene"
	"github.com/df07/go-light-transport/pkg/texture"
	"github.com/df07/go-light-transport/web"
)

// Config holds the command-line configuration
type Config struct {
	ScenePath  string
	ConfigPath string
	Output     string
	Engine     string
	Sampler    string
	HaltTime   float64
	HaltSPP    int
	Seed       int64
	Threads    int
	Monitor    string
	CPUProfile string
}

func main() {
	if err := run(parseFlags()); err != nil {
		slog.Error("rendering failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() Config {
	config := Config{}
	flag.StringVar(&config.ScenePath, "scene", "", "Scene property file")
	flag.StringVar(&config.ConfigPath, "config", "", "Render config YAML file")
	flag.StringVar(&config.Output, "output", "render.png", "Output image path")
	flag.StringVar(&config.Engine, "engine", "", "Override renderengine.type (PATHCPU, LIGHTCPU, BIDIRCPU, BIDIRHYBRID)")
	flag.StringVar(&config.Sampler, "sampler", "", "Override sampler.type (RANDOM, STRATIFIED, SOBOL, METROPOLIS)")
	flag.Float64Var(&config.HaltTime, "halttime", 0, "Override batch.halttime (seconds)")
	flag.IntVar(&config.HaltSPP, "haltspp", 0, "Override batch.haltspp")
	flag.Int64Var(&config.Seed, "seed", 0, "Override renderengine.seed")
	flag.IntVar(&config.Threads, "threads", 0, "Override native.threads.count")
	flag.StringVar(&config.Monitor, "monitor", "", "Monitor server address (e.g. :8080), empty disables")
	flag.StringVar(&config.CPUProfile, "cpuprofile", "", "Write CPU profile to file")
	flag.Parse()
	return config
}

func run(config Config) error {
	if config.ScenePath == "" {
		flag.Usage()
		return fmt.Errorf("missing -scene")
	}

	if config.CPUProfile != "" {
		f, err := os.Create(config.CPUProfile)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	renderConfig := engine.DefaultRenderConfig()
	if config.ConfigPath != "" {
		loaded, err := engine.LoadRenderConfig(config.ConfigPath)
		if err != nil {
			return err
		}
		renderConfig = loaded
	}
	applyOverrides(renderConfig, config)
	if err := renderConfig.Validate(); err != nil {
		return err
	}

	sceneFile, err := os.Open(config.ScenePath)
	if err != nil {
		return err
	}
	props, err := scene.ParseProperties(sceneFile)
	sceneFile.Close()
	if err != nil {
		return fmt.Errorf("scene %q: %w", config.ScenePath, err)
	}

	// Scene properties may carry film settings the render config lacks
	if props.Has("film.width") {
		renderConfig.Film.Width = props.GetInt("film.width", renderConfig.Film.Width)
		renderConfig.Film.Height = props.GetInt("film.height", renderConfig.Film.Height)
	}
	if props.Has("batch.halttime") && renderConfig.Batch.HaltTime == 0 {
		renderConfig.Batch.HaltTime = props.GetFloat("batch.halttime", 0)
	}
	if props.Has("batch.haltspp") && renderConfig.Batch.HaltSPP == 0 {
		renderConfig.Batch.HaltSPP = props.GetInt("batch.haltspp", 0)
	}

	sc, err := scene.Build(props, texture.NewImageMapCache())
	if err != nil {
		return fmt.Errorf("scene build: %w", err)
	}

	eng, err := engine.NewEngine(sc, renderConfig)
	if err != nil {
		return err
	}

	if config.Monitor != "" {
		monitor := web.NewMonitor(eng)
		go func() {
			if err := monitor.ListenAndServe(config.Monitor); err != nil {
				slog.Warn("monitor server stopped", "error", err)
			}
		}()
		slog.Info("monitor listening", "addr", config.Monitor)
	}

	slog.Info("rendering",
		"scene", config.ScenePath,
		"engine", renderConfig.RenderEngine,
		"film", fmt.Sprintf("%dx%d", renderConfig.Film.Width, renderConfig.Film.Height))

	if renderConfig.Batch.HaltTime == 0 && renderConfig.Batch.HaltSPP == 0 &&
		renderConfig.Batch.HaltThreshold == 0 {
		// Never-halting batch renders are almost always a mistake on
		// the command line
		renderConfig.Batch.HaltSPP = 64
	}

	eng.Start()
	<-eng.Done()
	eng.Stop()

	for key, value := range eng.Statistics() {
		slog.Info("stat", "key", key, "value", value)
	}

	if err := eng.Film().SaveImage(config.Output); err != nil {
		return fmt.Errorf("saving %q: %w", config.Output, err)
	}
	slog.Info("render saved", "path", config.Output)
	return nil
}

func applyOverrides(cfg *engine.RenderConfig, config Config) {
	if config.Engine != "" {
		cfg.RenderEngine = config.Engine
	}
	if config.Sampler != "" {
		cfg.Sampler.Type = config.Sampler
	}
	if config.HaltTime > 0 {
		cfg.Batch.HaltTime = config.HaltTime
	}
	if config.HaltSPP > 0 {
		cfg.Batch.HaltSPP = config.HaltSPP
	}
	if config.Seed != 0 {
		cfg.Seed = config.Seed
	}
	if config.Threads > 0 {
		cfg.Threads = config.Threads
	}
}
