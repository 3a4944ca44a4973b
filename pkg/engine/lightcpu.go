package engine

import (
	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/film"
	"github.com/df07/go-light-transport/pkg/material"
	"github.com/df07/go-light-transport/pkg/scene"
)

// LightCPU traces particles from the lights and splats them through the
// camera lens. Contributions are per-screen normalized: one sample equals
// one light subpath.
type LightCPU struct {
	engineBase
}

// NewLightCPU creates a LIGHTCPU engine
func NewLightCPU(sc *scene.Scene, config *RenderConfig, flm *film.Film) *LightCPU {
	e := &LightCPU{engineBase: newEngineBase("LIGHTCPU", sc, config, flm)}
	e.worker = e.renderWorker
	return e
}

func (e *LightCPU) sampleSize() int {
	// light pick + 4 emit dims per path plus a block per bounce
	return 5 + e.config.Light.MaxDepth*sampleStepSize
}

func (e *LightCPU) renderWorker(workerIndex int, smp core.Sampler) {
	smp.RequestSamples(e.sampleSize())

	results := make([]core.SampleResult, 0, e.config.Light.MaxDepth)
	for !e.interruptedNow() {
		results = e.renderLightPath(smp, results[:0])
		smp.NextSample(results)
	}
}

func (e *LightCPU) renderLightPath(smp core.Sampler, results []core.SampleResult) []core.SampleResult {
	cfg := e.config.Light

	light, pickPdf, _ := e.scene.Lights.SampleLight(smp.GetSample(0))
	if light == nil || pickPdf <= 0 {
		return results
	}

	emit, ok := light.Emit(smp.GetSample(1), smp.GetSample(2), smp.GetSample(3), smp.GetSample(4))
	if !ok || emit.EmissionPdfW <= 0 {
		return results
	}

	// Particle flux: Le * cos / (pick * emission pdf)
	throughput := emit.Radiance.Multiply(emit.CosThetaAtLight / (pickPdf * emit.EmissionPdfW))
	ray := emit.Ray
	volInfo := material.NewPathVolumeInfo(e.scene.DefaultWorldVolume)

	for depth := 0; depth < cfg.MaxDepth; depth++ {
		base := 5 + depth*sampleStepSize
		passThrough := smp.GetSample(base)

		connectionThroughput := core.White
		hit, bsdf := e.scene.Intersect(true, &volInfo, passThrough, &ray, &connectionThroughput)
		throughput = throughput.MultiplyVec(connectionThroughput)
		if !hit {
			break
		}

		// Splat this vertex through the camera lens
		if !bsdf.IsDelta() {
			if sr, ok := connectToCamera(e.scene, &bsdf, volInfo, throughput, smp.GetSample(base+7)); ok {
				results = append(results, sr)
			}
		}

		sampledDir, bsdfResult, _, _, event, ok := bsdf.Sample(smp.GetSample(base+1), smp.GetSample(base+2))
		if !ok {
			break
		}

		if depth >= e.config.Path.RussianRouletteDepth {
			prob := rrProb(bsdfResult, e.config.Path.RussianRouletteCap)
			if smp.GetSample(base+3) >= prob {
				break
			}
			bsdfResult = bsdfResult.Multiply(1 / prob)
		}

		throughput = throughput.MultiplyVec(bsdfResult)
		volInfo.Update(event, &bsdf)
		ray = core.NewRay(bsdf.HitPoint.P, sampledDir)
	}

	return results
}

// connectToCamera evaluates the light-vertex-to-lens connection and
// returns the per-screen-normalized splat at the resulting raster
// position
func connectToCamera(sc *scene.Scene, bsdf *material.BSDF, volInfo material.PathVolumeInfo, throughput core.Vec3, uShadow float64) (core.SampleResult, bool) {
	cam := sc.Camera

	filmX, filmY, visible := cam.WorldToRaster(bsdf.HitPoint.P)
	if !visible {
		return core.SampleResult{}, false
	}

	delta := cam.Eye.Subtract(bsdf.HitPoint.P)
	distance := delta.Length()
	if distance < 1e-6 {
		return core.SampleResult{}, false
	}
	dirToCamera := delta.Multiply(1 / distance)

	f, _, _, _ := bsdf.Evaluate(dirToCamera)
	if f.IsZero() {
		return core.SampleResult{}, false
	}

	shadowRay := core.NewRayRange(bsdf.HitPoint.P, dirToCamera, core.DefaultEpsilon, distance*(1-1e-4))
	clear, transmittance := sc.TraceShadow(volInfo, shadowRay, uShadow)
	if !clear {
		return core.SampleResult{}, false
	}

	var cosAtSurface float64
	if bsdf.IsVolume() {
		cosAtSurface = 1
	} else {
		cosAtSurface = dirToCamera.AbsDot(bsdf.HitPoint.ShadeN)
	}

	// Importance of one raster-area unit converted to surface measure
	cameraPdfW := cam.PdfW(dirToCamera.Negate())
	if cameraPdfW <= 0 {
		return core.SampleResult{}, false
	}
	cameraPdfA := cameraPdfW * cosAtSurface / (distance * distance)

	radiance := throughput.MultiplyVec(f).MultiplyVec(transmittance).Multiply(cameraPdfA)
	if !radiance.IsValid() {
		return core.SampleResult{}, false
	}

	return core.SampleResult{
		Type:     core.RadiancePerScreenNormalized,
		FilmX:    filmX,
		FilmY:    filmY,
		Radiance: radiance,
		Alpha:    1,
	}, true
}
