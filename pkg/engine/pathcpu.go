package engine

import (
	"math"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/film"
	"github.com/df07/go-light-transport/pkg/lights"
	"github.com/df07/go-light-transport/pkg/material"
	"github.com/df07/go-light-transport/pkg/scene"
)

// Per-sample dimension layout: a fixed header for the camera sample
// followed by a fixed-size block per path bounce, so the Metropolis
// sampler mutates a stable vector.
const (
	sampleBootSize = 4 // image x/y + lens u0/u1
	sampleStepSize = 8 // pass-through, bsdf u0/u1, rr, light pick, light u0/u1, shadow pass-through
)

// PathCPU is the unidirectional path tracer with next-event estimation
// and MIS between light and BSDF sampling
type PathCPU struct {
	engineBase
}

// NewPathCPU creates a PATHCPU engine
func NewPathCPU(sc *scene.Scene, config *RenderConfig, flm *film.Film) *PathCPU {
	e := &PathCPU{engineBase: newEngineBase("PATHCPU", sc, config, flm)}
	e.worker = e.renderWorker
	return e
}

func (e *PathCPU) sampleSize() int {
	return sampleBootSize + e.config.Path.MaxDepth*sampleStepSize
}

func (e *PathCPU) renderWorker(workerIndex int, smp core.Sampler) {
	smp.RequestSamples(e.sampleSize())

	for !e.interruptedNow() {
		result := e.renderSample(smp)
		smp.NextSample([]core.SampleResult{result})
	}
}

// rrProb is the Russian roulette continuation probability: the sampled
// throughput filter clamped to [cap, 1]
func rrProb(result core.Vec3, cap float64) float64 {
	return math.Min(1, math.Max(result.Filter(), cap))
}

func (e *PathCPU) renderSample(smp core.Sampler) core.SampleResult {
	cfg := e.config.Path

	filmX := smp.GetSample(0) * float64(e.film.Width)
	filmY := smp.GetSample(1) * float64(e.film.Height)
	ray := e.scene.Camera.GenerateRay(filmX, filmY, smp.GetSample(2), smp.GetSample(3))

	radiance := core.Black
	throughput := core.White
	volInfo := material.NewPathVolumeInfo(e.scene.DefaultWorldVolume)

	lastPdfW := 1.0
	lastSpecular := true
	alpha := 1.0
	firstDepth := 0.0

	for depth := 0; depth < cfg.MaxDepth; depth++ {
		base := sampleBootSize + depth*sampleStepSize
		passThrough := smp.GetSample(base)

		connectionThroughput := core.White
		hit, bsdf := e.scene.Intersect(false, &volInfo, passThrough, &ray, &connectionThroughput)
		throughput = throughput.MultiplyVec(connectionThroughput)

		if !hit {
			// The ray escaped: gather environmental emission
			radiance = radiance.Add(throughput.MultiplyVec(
				envRadiance(e.scene, ray.Direction, lastPdfW, lastSpecular)))
			if depth == 0 {
				alpha = 0
			}
			break
		}

		if depth == 0 {
			firstDepth = bsdf.HitPoint.P.Subtract(ray.Origin).Length()
		}

		// Direct-hit emission with MIS against the light strategy
		if bsdf.IsLightSource() {
			emitted, directPdfA, _ := bsdf.EmittedRadiance()
			if !emitted.IsZero() {
				weight := 1.0
				if tl, isLight := bsdf.TriangleLight.(lights.LightSource); isLight && !lastSpecular {
					distance := bsdf.HitPoint.P.Subtract(ray.Origin).Length()
					cosAtLight := bsdf.HitPoint.FixedDir.AbsDot(bsdf.HitPoint.GeometryN)
					pickPdf := e.scene.Lights.LightPickPdf(e.scene.Lights.IndexOf(tl))
					directPdfW := core.PdfAtoW(directPdfA*pickPdf, distance, cosAtLight)
					weight = core.PowerHeuristic(lastPdfW, directPdfW)
				}
				radiance = radiance.Add(throughput.MultiplyVec(emitted).Multiply(weight))
			}
		}

		// Direct light sampling at non-delta vertices
		if !bsdf.IsDelta() {
			direct := sampleOneLight(e.scene, &bsdf, volInfo,
				smp.GetSample(base+4), smp.GetSample(base+5), smp.GetSample(base+6), smp.GetSample(base+7))
			radiance = radiance.Add(throughput.MultiplyVec(direct))
		}

		// Continue the path
		sampledDir, bsdfResult, pdfW, _, event, ok := bsdf.Sample(smp.GetSample(base+1), smp.GetSample(base+2))
		if !ok {
			break
		}

		// Russian roulette past the configured depth
		if depth >= cfg.RussianRouletteDepth {
			prob := rrProb(bsdfResult, cfg.RussianRouletteCap)
			if smp.GetSample(base+3) >= prob {
				break
			}
			bsdfResult = bsdfResult.Multiply(1 / prob)
			pdfW *= prob
		}

		throughput = throughput.MultiplyVec(bsdfResult)
		lastSpecular = event.Has(material.SpecularEvent)
		lastPdfW = pdfW

		volInfo.Update(event, &bsdf)
		ray = core.NewRay(bsdf.HitPoint.P, sampledDir)
	}

	return core.SampleResult{
		Type:     core.RadiancePerPixelNormalized,
		FilmX:    filmX,
		FilmY:    filmY,
		Radiance: radiance,
		Alpha:    alpha,
		Depth:    firstDepth,
	}
}

// envRadiance sums the environmental lights' emission for an escaped ray,
// MIS-weighted against direct light sampling
func envRadiance(sc *scene.Scene, dir core.Vec3, lastPdfW float64, lastSpecular bool) core.Vec3 {
	out := core.Black
	for _, env := range sc.Lights.EnvLights() {
		emitted, directPdfW, _ := env.Radiance(dir)
		if emitted.IsZero() {
			continue
		}
		weight := 1.0
		if !lastSpecular {
			pickPdf := sc.Lights.LightPickPdf(sc.Lights.IndexOf(env))
			weight = core.PowerHeuristic(lastPdfW, directPdfW*pickPdf)
		}
		out = out.Add(emitted.Multiply(weight))
	}
	return out
}

// sampleOneLight draws one power-picked light, traces the shadow ray and
// returns the MIS-weighted direct contribution (to be scaled by the path
// throughput)
func sampleOneLight(sc *scene.Scene, bsdf *material.BSDF, volInfo material.PathVolumeInfo, uPick, u0, u1, uShadow float64) core.Vec3 {
	light, pickPdf, _ := sc.Lights.SampleLight(uPick)
	if light == nil || pickPdf <= 0 {
		return core.Black
	}

	sample, ok := light.Illuminate(bsdf.HitPoint.P, u0, u1)
	if !ok || sample.DirectPdfW <= 0 {
		return core.Black
	}

	f, _, bsdfPdfW, _ := bsdf.Evaluate(sample.Direction)
	if f.IsZero() {
		return core.Black
	}

	// Shadow ray, clipped short of the light itself
	var shadowRay core.Ray
	if math.IsInf(sample.Distance, 1) {
		shadowRay = core.NewRay(bsdf.HitPoint.P, sample.Direction)
	} else {
		shadowRay = core.NewRayRange(bsdf.HitPoint.P, sample.Direction,
			core.DefaultEpsilon, sample.Distance*(1-1e-4))
	}
	visible, transmittance := sc.TraceShadow(volInfo, shadowRay, uShadow)
	if !visible {
		return core.Black
	}

	// Delta lights cannot be hit by BSDF sampling: no MIS
	weight := 1.0
	if !light.IsDelta() {
		weight = core.PowerHeuristic(sample.DirectPdfW*pickPdf, bsdfPdfW)
	}

	var cosToLight float64
	if bsdf.IsVolume() {
		cosToLight = 1
	} else {
		cosToLight = sample.Direction.AbsDot(bsdf.HitPoint.ShadeN)
	}

	return sample.Radiance.MultiplyVec(f).MultiplyVec(transmittance).
		Multiply(weight * cosToLight / (sample.DirectPdfW * pickPdf))
}
