package engine

import (
	"math"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/film"
	"github.com/df07/go-light-transport/pkg/lights"
	"github.com/df07/go-light-transport/pkg/material"
	"github.com/df07/go-light-transport/pkg/scene"
)

// BidirCPU is the bidirectional path tracer. Eye and light subpaths are
// connected with every viable strategy; each vertex carries the dVC/dVCM
// recursive MIS accumulators so every connection is weighted in O(1).
type BidirCPU struct {
	engineBase
}

// NewBidirCPU creates a BIDIRCPU engine
func NewBidirCPU(sc *scene.Scene, config *RenderConfig, flm *film.Film) *BidirCPU {
	e := &BidirCPU{engineBase: newEngineBase("BIDIRCPU", sc, config, flm)}
	e.worker = e.renderWorker
	return e
}

// pathVertex is one vertex of either subpath with its MIS accumulators
type pathVertex struct {
	bsdf       material.BSDF
	throughput core.Vec3
	depth      int
	dVC, dVCM  float64
	volInfo    material.PathVolumeInfo
}

// bidir dimension layout: header + light subpath block + eye subpath
// block, every bounce a fixed stride
const (
	bidirBootSize      = 9 // image x/y, lens u0/u1, light pick, emit u0..u3
	bidirLightStepSize = 5 // pass-through, bsdf u0/u1, rr, camera shadow pass-through
	bidirEyeStepSize   = 10
)

func (e *engineBase) bidirSampleSize() int {
	return bidirBootSize +
		e.config.Bidir.LightDepth*bidirLightStepSize +
		e.config.Bidir.EyeDepth*(bidirEyeStepSize+e.config.Bidir.LightDepth)
}

func (e *BidirCPU) renderWorker(workerIndex int, smp core.Sampler) {
	smp.RequestSamples(e.bidirSampleSize())

	results := make([]core.SampleResult, 0, 16)
	for !e.interruptedNow() {
		results = e.renderSample(smp, results[:0])
		smp.NextSample(results)
	}
}

func (e *BidirCPU) renderSample(smp core.Sampler, results []core.SampleResult) []core.SampleResult {
	lightPath, lightResults := e.traceLightSubpath(smp)
	results = append(results, lightResults...)

	eyeResult := e.traceEyeSubpath(smp, lightPath)
	results = append(results, eyeResult)
	return results
}

// traceLightSubpath builds the light subpath, splatting light-to-eye
// connections along the way, and returns the connectable vertices
func (e *engineBase) traceLightSubpath(smp core.Sampler) ([]pathVertex, []core.SampleResult) {
	cfg := e.config.Bidir
	var results []core.SampleResult
	var vertices []pathVertex

	light, pickPdf, _ := e.scene.Lights.SampleLight(smp.GetSample(4))
	if light == nil || pickPdf <= 0 {
		return vertices, results
	}

	emit, ok := light.Emit(smp.GetSample(5), smp.GetSample(6), smp.GetSample(7), smp.GetSample(8))
	if !ok || emit.EmissionPdfW <= 0 {
		return vertices, results
	}

	emissionPdfW := emit.EmissionPdfW * pickPdf
	directPdfA := emit.DirectPdfA * pickPdf

	throughput := emit.Radiance.Multiply(emit.CosThetaAtLight / emissionPdfW)

	dVCM := core.Mis(directPdfA / emissionPdfW)
	var dVC float64
	if !light.IsDelta() {
		dVC = core.Mis(emit.CosThetaAtLight / emissionPdfW)
	}

	ray := emit.Ray
	volInfo := material.NewPathVolumeInfo(e.scene.DefaultWorldVolume)

	for depth := 0; depth < cfg.LightDepth; depth++ {
		base := bidirBootSize + depth*bidirLightStepSize
		passThrough := smp.GetSample(base)

		connectionThroughput := core.White
		hit, bsdf := e.scene.Intersect(true, &volInfo, passThrough, &ray, &connectionThroughput)
		throughput = throughput.MultiplyVec(connectionThroughput)
		if !hit {
			break
		}

		// Arrival: convert the accumulators into area measure at this
		// vertex
		distance := bsdf.HitPoint.P.Subtract(ray.Origin).Length()
		cosIn := cosAtVertex(&bsdf)
		if cosIn <= 0 || distance <= 0 {
			break
		}
		dVCM *= core.Mis(distance * distance)
		dVCM /= core.Mis(cosIn)
		dVC /= core.Mis(cosIn)

		vertex := pathVertex{
			bsdf:       bsdf,
			throughput: throughput,
			depth:      depth + 1,
			dVC:        dVC,
			dVCM:       dVCM,
			volInfo:    volInfo,
		}

		if !bsdf.IsDelta() {
			vertices = append(vertices, vertex)

			// Light-to-eye connection (t=1 strategy)
			if sr, ok := e.connectVertexToCamera(&vertex, smp.GetSample(base+4)); ok {
				results = append(results, sr)
			}
		}

		// Extend the subpath
		sampledDir, bsdfResult, pdfW, cosOut, event, ok := bsdf.Sample(smp.GetSample(base+1), smp.GetSample(base+2))
		if !ok {
			break
		}
		_, revPdfW := bsdf.Pdf(sampledDir)

		if depth >= e.config.Path.RussianRouletteDepth {
			prob := rrProb(bsdfResult, e.config.Path.RussianRouletteCap)
			if smp.GetSample(base+3) >= prob {
				break
			}
			bsdfResult = bsdfResult.Multiply(1 / prob)
			pdfW *= prob
			revPdfW *= prob
		}

		// MIS accumulator update per bounce
		if event.Has(material.SpecularEvent) {
			dVC *= core.Mis(cosOut)
			dVCM = 0
		} else {
			dVC = core.Mis(cosOut/pdfW) * (dVC*core.Mis(revPdfW) + dVCM)
			dVCM = core.Mis(1 / pdfW)
		}

		throughput = throughput.MultiplyVec(bsdfResult)
		volInfo.Update(event, &bsdf)
		ray = core.NewRay(bsdf.HitPoint.P, sampledDir)
	}

	return vertices, results
}

// traceEyeSubpath builds the eye subpath, accumulating direct hits,
// direct light sampling and vertex-to-vertex connections
func (e *engineBase) traceEyeSubpath(smp core.Sampler, lightPath []pathVertex) core.SampleResult {
	cfg := e.config.Bidir

	filmX := smp.GetSample(0) * float64(e.film.Width)
	filmY := smp.GetSample(1) * float64(e.film.Height)
	ray := e.scene.Camera.GenerateRay(filmX, filmY, smp.GetSample(2), smp.GetSample(3))

	cameraPdfW := e.scene.Camera.PdfW(ray.Direction)
	if cameraPdfW <= 0 {
		cameraPdfW = 1
	}

	radiance := core.Black
	throughput := core.White
	volInfo := material.NewPathVolumeInfo(e.scene.DefaultWorldVolume)

	dVCM := core.Mis(1 / cameraPdfW)
	dVC := 0.0
	alpha := 1.0
	firstDepth := 0.0

	eyeBase := bidirBootSize + cfg.LightDepth*bidirLightStepSize
	stride := bidirEyeStepSize + cfg.LightDepth

	for depth := 0; depth < cfg.EyeDepth; depth++ {
		base := eyeBase + depth*stride
		passThrough := smp.GetSample(base)

		connectionThroughput := core.White
		hit, bsdf := e.scene.Intersect(false, &volInfo, passThrough, &ray, &connectionThroughput)
		throughput = throughput.MultiplyVec(connectionThroughput)

		if !hit {
			radiance = radiance.Add(throughput.MultiplyVec(e.envHitRadiance(ray.Direction, dVC, dVCM)))
			if depth == 0 {
				alpha = 0
			}
			break
		}

		distance := bsdf.HitPoint.P.Subtract(ray.Origin).Length()
		cosIn := cosAtVertex(&bsdf)
		if cosIn <= 0 || distance <= 0 {
			break
		}
		dVCM *= core.Mis(distance * distance)
		dVCM /= core.Mis(cosIn)
		dVC /= core.Mis(cosIn)

		if depth == 0 {
			firstDepth = distance
		}

		// s=0: the eye path walked into an emitter
		if bsdf.IsLightSource() {
			radiance = radiance.Add(throughput.MultiplyVec(e.directHitLight(&bsdf, dVC, dVCM)))
		}

		vertex := pathVertex{
			bsdf:       bsdf,
			throughput: throughput,
			depth:      depth + 1,
			dVC:        dVC,
			dVCM:       dVCM,
			volInfo:    volInfo,
		}

		if !bsdf.IsDelta() {
			// s=1: direct light sampling
			radiance = radiance.Add(e.connectToLight(&vertex,
				smp.GetSample(base+4), smp.GetSample(base+5), smp.GetSample(base+6), smp.GetSample(base+7)))

			// s>=2: connect to every stored light vertex
			for li := range lightPath {
				if vertex.depth+lightPath[li].depth > cfg.EyeDepth+cfg.LightDepth {
					continue
				}
				radiance = radiance.Add(e.connectVertices(&vertex, &lightPath[li],
					smp.GetSample(base+bidirEyeStepSize+li)))
			}
		}

		// Extend the subpath
		sampledDir, bsdfResult, pdfW, cosOut, event, ok := bsdf.Sample(smp.GetSample(base+1), smp.GetSample(base+2))
		if !ok {
			break
		}
		_, revPdfW := bsdf.Pdf(sampledDir)

		if depth >= e.config.Path.RussianRouletteDepth {
			prob := rrProb(bsdfResult, e.config.Path.RussianRouletteCap)
			if smp.GetSample(base+3) >= prob {
				break
			}
			bsdfResult = bsdfResult.Multiply(1 / prob)
			pdfW *= prob
			revPdfW *= prob
		}

		if event.Has(material.SpecularEvent) {
			dVC *= core.Mis(cosOut)
			dVCM = 0
		} else {
			dVC = core.Mis(cosOut/pdfW) * (dVC*core.Mis(revPdfW) + dVCM)
			dVCM = core.Mis(1 / pdfW)
		}

		throughput = throughput.MultiplyVec(bsdfResult)
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

// cosAtVertex returns |cos| between the arrival direction and the surface
// normal, 1 for medium scatter events
func cosAtVertex(bsdf *material.BSDF) float64 {
	if bsdf.IsVolume() {
		return 1
	}
	return bsdf.HitPoint.FixedDir.AbsDot(bsdf.HitPoint.ShadeN)
}

// directHitLight weights the s=0 strategy: the eye subpath reached an
// emitter by BSDF sampling
func (e *engineBase) directHitLight(bsdf *material.BSDF, dVC, dVCM float64) core.Vec3 {
	emitted, directPdfA, emissionPdfW := bsdf.EmittedRadiance()
	if emitted.IsZero() {
		return core.Black
	}

	tl, isLight := bsdf.TriangleLight.(lights.LightSource)
	if !isLight {
		return emitted
	}
	pickPdf := e.scene.Lights.LightPickPdf(e.scene.Lights.IndexOf(tl))

	wCamera := core.Mis(directPdfA*pickPdf)*dVCM + core.Mis(emissionPdfW*pickPdf)*dVC
	weight := 1 / (1 + wCamera)
	return emitted.Multiply(weight)
}

// envHitRadiance weights the s=0 strategy against environmental lights
func (e *engineBase) envHitRadiance(dir core.Vec3, dVC, dVCM float64) core.Vec3 {
	out := core.Black
	for _, env := range e.scene.Lights.EnvLights() {
		emitted, directPdfW, emissionPdfW := env.Radiance(dir)
		if emitted.IsZero() {
			continue
		}
		pickPdf := e.scene.Lights.LightPickPdf(e.scene.Lights.IndexOf(env))
		wCamera := core.Mis(directPdfW*pickPdf)*dVCM + core.Mis(emissionPdfW*pickPdf)*dVC
		out = out.Add(emitted.Multiply(1 / (1 + wCamera)))
	}
	return out
}

// connectToLight is the s=1 strategy: explicit light sampling from an eye
// vertex
func (e *engineBase) connectToLight(vertex *pathVertex, uPick, u0, u1, uShadow float64) core.Vec3 {
	light, pickPdf, _ := e.scene.Lights.SampleLight(uPick)
	if light == nil || pickPdf <= 0 {
		return core.Black
	}

	sample, ok := light.Illuminate(vertex.bsdf.HitPoint.P, u0, u1)
	if !ok || sample.DirectPdfW <= 0 {
		return core.Black
	}

	f, _, bsdfPdfW, bsdfRevPdfW := vertex.bsdf.Evaluate(sample.Direction)
	if f.IsZero() {
		return core.Black
	}

	var shadowRay core.Ray
	if math.IsInf(sample.Distance, 1) {
		shadowRay = core.NewRay(vertex.bsdf.HitPoint.P, sample.Direction)
	} else {
		shadowRay = core.NewRayRange(vertex.bsdf.HitPoint.P, sample.Direction,
			core.DefaultEpsilon, sample.Distance*(1-1e-4))
	}
	clear, transmittance := e.scene.TraceShadow(vertex.volInfo, shadowRay, uShadow)
	if !clear {
		return core.Black
	}

	cosToLight := 1.0
	if !vertex.bsdf.IsVolume() {
		cosToLight = sample.Direction.AbsDot(vertex.bsdf.HitPoint.ShadeN)
	}

	// MIS against BSDF sampling and against the light subpath strategies
	wLight := 0.0
	if !light.IsDelta() {
		wLight = core.Mis(bsdfPdfW / (pickPdf * sample.DirectPdfW))
	}
	cosAtLight := math.Max(sample.CosThetaAtLight, 1e-6)
	wCamera := core.Mis(sample.EmissionPdfW*cosToLight/(sample.DirectPdfW*cosAtLight)) *
		(vertex.dVCM + vertex.dVC*core.Mis(bsdfRevPdfW))
	weight := 1 / (wLight + 1 + wCamera)

	return vertex.throughput.MultiplyVec(sample.Radiance).MultiplyVec(f).MultiplyVec(transmittance).
		Multiply(weight * cosToLight / (pickPdf * sample.DirectPdfW))
}

// connectVertexToCamera is the t=1 strategy: splat a light vertex through
// the lens
func (e *engineBase) connectVertexToCamera(vertex *pathVertex, uShadow float64) (core.SampleResult, bool) {
	cam := e.scene.Camera

	filmX, filmY, visible := cam.WorldToRaster(vertex.bsdf.HitPoint.P)
	if !visible {
		return core.SampleResult{}, false
	}

	delta := cam.Eye.Subtract(vertex.bsdf.HitPoint.P)
	distance := delta.Length()
	if distance < 1e-6 {
		return core.SampleResult{}, false
	}
	dirToCamera := delta.Multiply(1 / distance)

	f, _, _, bsdfRevPdfW := vertex.bsdf.Evaluate(dirToCamera)
	if f.IsZero() {
		return core.SampleResult{}, false
	}

	shadowRay := core.NewRayRange(vertex.bsdf.HitPoint.P, dirToCamera, core.DefaultEpsilon, distance*(1-1e-4))
	clear, transmittance := e.scene.TraceShadow(vertex.volInfo, shadowRay, uShadow)
	if !clear {
		return core.SampleResult{}, false
	}

	cosAtSurface := 1.0
	if !vertex.bsdf.IsVolume() {
		cosAtSurface = dirToCamera.AbsDot(vertex.bsdf.HitPoint.ShadeN)
	}

	cameraPdfW := cam.PdfW(dirToCamera.Negate())
	if cameraPdfW <= 0 {
		return core.SampleResult{}, false
	}
	cameraPdfA := cameraPdfW * cosAtSurface / (distance * distance)

	// cameraPdfA is a per-pixel density but this strategy's pdf lives on
	// the whole image plane, so normalize by the pixel count before
	// blending against the pixel-targeted strategies
	pixelCount := float64(e.film.Width * e.film.Height)
	wLight := core.Mis(cameraPdfA/pixelCount) * (vertex.dVCM + vertex.dVC*core.Mis(bsdfRevPdfW))
	weight := 1 / (wLight + 1)

	radiance := vertex.throughput.MultiplyVec(f).MultiplyVec(transmittance).Multiply(weight * cameraPdfA)
	if !radiance.IsValid() || radiance.IsZero() {
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

// connectVertices joins one eye vertex and one light vertex (s>=2, t>=2)
func (e *engineBase) connectVertices(eyeVertex, lightVertex *pathVertex, uShadow float64) core.Vec3 {
	delta := lightVertex.bsdf.HitPoint.P.Subtract(eyeVertex.bsdf.HitPoint.P)
	distanceSquared := delta.LengthSquared()
	if distanceSquared < 1e-12 {
		return core.Black
	}
	distance := math.Sqrt(distanceSquared)
	dir := delta.Multiply(1 / distance)

	eyeF, _, eyePdfW, eyeRevPdfW := eyeVertex.bsdf.Evaluate(dir)
	if eyeF.IsZero() {
		return core.Black
	}
	lightF, _, lightPdfW, lightRevPdfW := lightVertex.bsdf.Evaluate(dir.Negate())
	if lightF.IsZero() {
		return core.Black
	}

	cosAtEye := 1.0
	if !eyeVertex.bsdf.IsVolume() {
		cosAtEye = dir.AbsDot(eyeVertex.bsdf.HitPoint.ShadeN)
	}
	cosAtLight := 1.0
	if !lightVertex.bsdf.IsVolume() {
		cosAtLight = dir.AbsDot(lightVertex.bsdf.HitPoint.ShadeN)
	}

	geometryTerm := cosAtEye * cosAtLight / distanceSquared

	shadowRay := core.NewRayRange(eyeVertex.bsdf.HitPoint.P, dir, core.DefaultEpsilon, distance*(1-1e-4))
	clear, transmittance := e.scene.TraceShadow(eyeVertex.volInfo, shadowRay, uShadow)
	if !clear {
		return core.Black
	}

	// Forward pdfs converted to area measure at the receiving vertex
	eyePdfA := core.PdfWtoA(eyePdfW, distance, cosAtLight)
	lightPdfA := core.PdfWtoA(lightPdfW, distance, cosAtEye)

	wLight := core.Mis(eyePdfA) * (lightVertex.dVCM + lightVertex.dVC*core.Mis(lightRevPdfW))
	wCamera := core.Mis(lightPdfA) * (eyeVertex.dVCM + eyeVertex.dVC*core.Mis(eyeRevPdfW))
	weight := 1 / (wLight + 1 + wCamera)

	return eyeVertex.throughput.MultiplyVec(eyeF).
		MultiplyVec(lightVertex.throughput).MultiplyVec(lightF).
		MultiplyVec(transmittance).
		Multiply(weight * geometryTerm)
}
