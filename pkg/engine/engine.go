package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/film"
	"github.com/df07/go-light-transport/pkg/sampler"
	"github.com/df07/go-light-transport/pkg/scene"
)

// EditActionList is a bit set describing the minimum work a scene edit
// requires before rendering restarts
type EditActionList int

const (
	CameraEdit EditActionList = 1 << iota
	GeometryEdit
	MaterialsEdit
	LightsEdit
	ImageMapsEdit
)

// Has reports whether an action bit is set
func (e EditActionList) Has(action EditActionList) bool {
	return e&action != 0
}

// Engine drives render workers over a scene. Implementations share the
// lifecycle in engineBase and differ in their per-worker sample loop.
type Engine interface {
	Type() string

	Start()
	Stop()

	BeginSceneEdit()
	EndSceneEdit(actions EditActionList)

	Film() *film.Film
	Statistics() map[string]string

	// Done closes when a halt condition fires
	Done() <-chan struct{}
}

// workerFunc is one worker's sample loop; it returns when interrupted
type workerFunc func(workerIndex int, smp core.Sampler)

// engineBase carries the shared lifecycle: worker threads, interrupt
// handling, scene-edit serialization, halt conditions and statistics
type engineBase struct {
	engineType string

	scene  *scene.Scene
	config *RenderConfig
	film   *film.Film

	worker workerFunc

	// sharedLuminance backs Metropolis samplers across all workers
	sharedLuminance *sampler.SharedLuminance

	interrupted atomic.Bool
	wg          sync.WaitGroup
	editMu      sync.Mutex
	running     bool

	startTime time.Time
	done      chan struct{}
	doneOnce  sync.Once

	convergenceBits atomic.Uint64
}

func newEngineBase(engineType string, sc *scene.Scene, config *RenderConfig, flm *film.Film) engineBase {
	return engineBase{
		engineType:      engineType,
		scene:           sc,
		config:          config,
		film:            flm,
		sharedLuminance: sampler.NewSharedLuminance(),
		done:            make(chan struct{}),
	}
}

func (e *engineBase) Type() string     { return e.engineType }
func (e *engineBase) Film() *film.Film { return e.film }

// Done closes when a halt condition fires
func (e *engineBase) Done() <-chan struct{} { return e.done }

// newSampler builds the configured sampler for one worker
func (e *engineBase) newSampler(workerIndex int) core.Sampler {
	seed := e.config.Seed + int64(workerIndex)
	switch e.config.Sampler.Type {
	case "SOBOL":
		return sampler.NewSobolSampler(seed, e.film)
	case "STRATIFIED":
		return sampler.NewStratifiedSampler(seed, e.film, 8, 8)
	case "METROPOLIS":
		cfg := sampler.MetropolisConfig{
			LargeMutationProbability: e.config.Sampler.LargeStepRate,
			MaxConsecutiveReject:     e.config.Sampler.MaxConsecutiveReject,
			ImageMutationRange:       e.config.Sampler.ImageMutationRate,
		}
		return sampler.NewMetropolisSampler(seed, e.film, e.sharedLuminance, cfg)
	default:
		return sampler.NewRandomSampler(seed, e.film)
	}
}

// Start launches the worker threads and the halt monitor
func (e *engineBase) Start() {
	e.editMu.Lock()
	defer e.editMu.Unlock()
	e.startLocked()
}

func (e *engineBase) startLocked() {
	if e.running {
		return
	}
	e.running = true
	e.interrupted.Store(false)
	e.startTime = time.Now()

	slog.Info("render engine starting",
		"engine", e.engineType,
		"threads", e.config.Threads,
		"sampler", e.config.Sampler.Type)

	for i := 0; i < e.config.Threads; i++ {
		e.wg.Add(1)
		go func(index int) {
			defer e.wg.Done()
			e.worker(index, e.newSampler(index))
		}(i)
	}

	e.wg.Add(1)
	go e.haltMonitor()
}

// Stop interrupts the workers and joins them; in-flight work is discarded
func (e *engineBase) Stop() {
	e.editMu.Lock()
	defer e.editMu.Unlock()
	e.stopLocked()
}

func (e *engineBase) stopLocked() {
	if !e.running {
		return
	}
	e.interrupted.Store(true)
	e.wg.Wait()
	e.running = false
	slog.Info("render engine stopped", "engine", e.engineType,
		"samples", e.film.TotalSampleCount(),
		"elapsed", time.Since(e.startTime).Round(time.Millisecond))
}

// BeginSceneEdit interrupts rendering and holds the engine mutex so the
// caller can mutate the scene
func (e *engineBase) BeginSceneEdit() {
	e.editMu.Lock()
	e.stopLocked()
}

// EndSceneEdit redoes the minimum work the edit requires and restarts
func (e *engineBase) EndSceneEdit(actions EditActionList) {
	defer e.editMu.Unlock()

	if actions.Has(GeometryEdit) {
		e.scene.Preprocess()
	} else if actions.Has(LightsEdit) || actions.Has(MaterialsEdit) {
		e.scene.RebuildLights()
	}
	if actions.Has(CameraEdit) {
		e.scene.Camera.Update()
	}
	if actions.Has(ImageMapsEdit) {
		e.scene.ImageMaps.Purge()
	}

	e.film.Clear()
	e.startLocked()
}

func (e *engineBase) interruptedNow() bool {
	return e.interrupted.Load()
}

// haltMonitor enforces batch.halttime / haltspp / haltthreshold
func (e *engineBase) haltMonitor() {
	defer e.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	pixelCount := uint64(e.film.Width * e.film.Height)
	lastConvergenceTest := time.Now()

	for range ticker.C {
		if e.interrupted.Load() {
			return
		}

		cfg := e.config.Batch
		if cfg.HaltTime > 0 && time.Since(e.startTime).Seconds() >= cfg.HaltTime {
			e.halt("halttime")
			return
		}
		if cfg.HaltSPP > 0 && e.film.TotalSampleCount() >= uint64(cfg.HaltSPP)*pixelCount {
			e.halt("haltspp")
			return
		}
		if cfg.HaltThreshold > 0 && time.Since(lastConvergenceTest) > 2*time.Second {
			lastConvergenceTest = time.Now()
			stillChanging := e.film.RunConvergenceTest(cfg.HaltThreshold)
			convergence := 1 - float64(stillChanging)/float64(pixelCount)
			e.convergenceBits.Store(math.Float64bits(convergence))
			if stillChanging == 0 {
				e.halt("haltthreshold")
				return
			}
		}
	}
}

func (e *engineBase) halt(reason string) {
	slog.Info("halt condition reached", "engine", e.engineType, "reason", reason)
	e.interrupted.Store(true)
	e.doneOnce.Do(func() { close(e.done) })
}

// Convergence returns the last measured convergence in [0, 1]
func (e *engineBase) Convergence() float64 {
	return math.Float64frombits(e.convergenceBits.Load())
}

// Statistics exposes the engine counters as a read-only properties view
func (e *engineBase) Statistics() map[string]string {
	elapsed := time.Since(e.startTime).Seconds()
	samples := e.film.TotalSampleCount()
	samplesPerSec := 0.0
	if elapsed > 0 {
		samplesPerSec = float64(samples) / elapsed
	}
	return map[string]string{
		"stats.renderengine.type":          e.engineType,
		"stats.renderengine.time":          fmt.Sprintf("%.2f", elapsed),
		"stats.renderengine.total.samples": fmt.Sprintf("%d", samples),
		"stats.renderengine.samples.sec":   fmt.Sprintf("%.0f", samplesPerSec),
		"stats.renderengine.convergence":   fmt.Sprintf("%.4f", e.Convergence()),
		"stats.film.nan.samples":           fmt.Sprintf("%d", e.film.NaNSampleCount()),
	}
}

// NewEngine builds the engine selected by renderengine.type
func NewEngine(sc *scene.Scene, config *RenderConfig) (Engine, error) {
	flm := film.New(config.Film.Width, config.Film.Height, film.NewFilterByName(config.Film.FilterType))

	switch config.RenderEngine {
	case "PATHCPU":
		return NewPathCPU(sc, config, flm), nil
	case "LIGHTCPU":
		return NewLightCPU(sc, config, flm), nil
	case "BIDIRCPU":
		return NewBidirCPU(sc, config, flm), nil
	case "BIDIRHYBRID":
		return NewBidirHybrid(sc, config, flm), nil
	default:
		return nil, fmt.Errorf("unknown renderengine.type %q", config.RenderEngine)
	}
}
