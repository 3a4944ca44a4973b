package engine

import (
	"math"

	"github.com/df07/go-light-transport/pkg/core"
	"github.com/df07/go-light-transport/pkg/device"
	"github.com/df07/go-light-transport/pkg/film"
	"github.com/df07/go-light-transport/pkg/material"
	"github.com/df07/go-light-transport/pkg/scene"
)

// BidirHybrid runs bidirectional path tracing with the eye subpath's ray
// queries batched through the intersection dispatch layer. Each in-flight
// path is a resumable state record; a worker advances a whole cohort of
// paths one ray round at a time, so each round sends the rays of every
// path in the cohort to the device in a single buffer.
//
// Like the original hybrid engines, participating media are not traced
// here; volume scenes belong to the CPU engines.
type BidirHybrid struct {
	engineBase

	virtual *device.VirtualM2ODevice
}

// paths kept in flight per worker; each queues its extension or shadow
// ray, or its connection rays, per round
const hybridPathCount = 1024

type hybridStateKind int

const (
	stateInitial hybridStateKind = iota
	stateExtending
	statePendingShadow
	statePendingConnection
	stateFinal
)

// pendingRay is one queued visibility or extension ray of a path
type pendingRay struct {
	ray core.Ray
	// accumulated pass-through transmittance along this ray
	transmittance core.Vec3
	// contribution added if the ray reaches its target unoccluded
	contribution core.Vec3
	// splat target for t=1 strategies; isSplat false folds the
	// contribution into the eye sample instead
	isSplat      bool
	filmX, filmY float64
	bufferIndex  int
	done         bool
}

// hybridPath is the coroutine-like record of one in-flight sample
type hybridPath struct {
	state hybridStateKind

	smp core.Sampler

	filmX, filmY float64
	radiance     core.Vec3
	splats       []core.SampleResult

	throughput core.Vec3
	ray        core.Ray
	rayTrans   core.Vec3 // pass-through transmittance of the extension ray
	depth      int
	dVC, dVCM  float64
	volInfo    material.PathVolumeInfo
	alpha      float64

	lightPath []pathVertex

	// current vertex awaiting its shadow/connection results
	vertex pathVertex

	shadow  pendingRay
	direct  core.Vec3 // contribution of the pending direct-light ray
	connect []pendingRay
}

// NewBidirHybrid creates a BIDIRHYBRID engine over a native thread device
func NewBidirHybrid(sc *scene.Scene, config *RenderConfig, flm *film.Film) *BidirHybrid {
	e := &BidirHybrid{engineBase: newEngineBase("BIDIRHYBRID", sc, config, flm)}
	e.worker = e.renderWorker
	return e
}

func (e *BidirHybrid) Start() {
	native := device.NewNativeDevice("native-hybrid", e.scene.Accel, e.config.Threads)
	e.virtual = device.NewVirtualM2ODevice(native)
	e.virtual.Start()
	e.engineBase.Start()
}

func (e *BidirHybrid) Stop() {
	e.engineBase.Stop()
	if e.virtual != nil {
		e.virtual.Stop()
		e.virtual = nil
	}
}

func (e *BidirHybrid) renderWorker(workerIndex int, smp core.Sampler) {
	producer := e.virtual.AddProducer()

	// Every path owns a sampler so Metropolis state stays per-chain
	paths := make([]*hybridPath, hybridPathCount)
	for i := range paths {
		pathSmp := smp
		if i > 0 {
			pathSmp = e.newSampler(workerIndex*hybridPathCount + i)
		}
		pathSmp.RequestSamples(e.bidirSampleSize())
		paths[i] = &hybridPath{state: stateInitial, smp: pathSmp}
	}

	buffer := device.NewRayBuffer(device.RayBufferSize)

	for !e.interruptedNow() {
		buffer.Reset()

		// Phase 1: every path contributes its pending rays
		for _, p := range paths {
			e.queueRays(p, buffer)
		}
		if buffer.RayCount() == 0 {
			continue
		}

		// Phase 2: one device round trip; nothing blocks in between
		producer.PushRayBuffer(buffer)
		buffer = producer.PopRayBuffer()

		// Phase 3: resume every path on its results
		for _, p := range paths {
			e.advance(p, buffer)
		}
	}
}

// queueRays adds the rays a path is waiting on to the buffer
func (e *BidirHybrid) queueRays(p *hybridPath, buffer *device.RayBuffer) {
	switch p.state {
	case stateInitial:
		e.initPath(p)
		fallthrough
	case stateExtending:
		p.shadow.bufferIndex = -1
		if buffer.LeftSpace() > 0 {
			p.shadow.bufferIndex = buffer.AddRay(p.ray)
		}
	case statePendingShadow:
		if !p.shadow.done && buffer.LeftSpace() > 0 {
			p.shadow.bufferIndex = buffer.AddRay(p.shadow.ray)
		}
	case statePendingConnection:
		for i := range p.connect {
			if !p.connect[i].done && buffer.LeftSpace() > 0 {
				p.connect[i].bufferIndex = buffer.AddRay(p.connect[i].ray)
			}
		}
	}
}

// initPath starts a fresh sample: synchronous light subpath, camera ray
func (e *BidirHybrid) initPath(p *hybridPath) {
	smp := p.smp

	lightPath, lightResults := e.traceLightSubpath(smp)
	p.lightPath = lightPath
	p.splats = append(p.splats[:0], lightResults...)

	p.filmX = smp.GetSample(0) * float64(e.film.Width)
	p.filmY = smp.GetSample(1) * float64(e.film.Height)
	p.ray = e.scene.Camera.GenerateRay(p.filmX, p.filmY, smp.GetSample(2), smp.GetSample(3))
	p.rayTrans = core.White

	cameraPdfW := e.scene.Camera.PdfW(p.ray.Direction)
	if cameraPdfW <= 0 {
		cameraPdfW = 1
	}

	p.radiance = core.Black
	p.throughput = core.White
	p.volInfo = material.NewPathVolumeInfo(e.scene.DefaultWorldVolume)
	p.depth = 0
	p.dVCM = core.Mis(1 / cameraPdfW)
	p.dVC = 0
	p.alpha = 1
	p.state = stateExtending
}

// advance resumes a path on the popped buffer
func (e *BidirHybrid) advance(p *hybridPath, buffer *device.RayBuffer) {
	switch p.state {
	case stateExtending:
		e.advanceExtension(p, buffer)
	case statePendingShadow:
		e.advanceShadow(p, buffer)
	case statePendingConnection:
		e.advanceConnections(p, buffer)
	case stateFinal:
		e.finishPath(p)
	}
}

// advanceExtension consumes the eye extension ray result
func (e *BidirHybrid) advanceExtension(p *hybridPath, buffer *device.RayBuffer) {
	if p.shadow.bufferIndex < 0 {
		return // buffer was full; retry next round
	}
	hit := buffer.GetRayHit(p.shadow.bufferIndex)

	if hit.Miss() {
		p.radiance = p.radiance.Add(p.throughput.MultiplyVec(
			e.envHitRadiance(p.ray.Direction, p.dVC, p.dVCM)))
		if p.depth == 0 {
			p.alpha = 0
		}
		p.state = stateFinal
		e.finishPath(p)
		return
	}

	bsdf := e.scene.NewBSDF(p.ray, *hit, p.smp.GetSample(e.eyeOffset(p.depth)), false)

	// Pass-through and dominated boundaries resubmit the advanced ray
	if p.volInfo.ContinueToTrace(&bsdf) {
		p.volInfo.Update(material.TransmitEvent, &bsdf)
		p.ray.TMin = hit.T + e.scene.Epsilon
		return
	}
	if bsdf.IsPassThrough() {
		transparency := bsdf.GetPassThroughTransparency()
		if !transparency.IsZero() {
			p.throughput = p.throughput.MultiplyVec(transparency)
			p.volInfo.Update(material.TransmitEvent, &bsdf)
			p.ray.TMin = hit.T + e.scene.Epsilon
			return
		}
	}

	distance := bsdf.HitPoint.P.Subtract(p.ray.Origin).Length()
	cosIn := cosAtVertex(&bsdf)
	if cosIn <= 0 || distance <= 0 {
		p.state = stateFinal
		e.finishPath(p)
		return
	}
	p.dVCM *= core.Mis(distance * distance)
	p.dVCM /= core.Mis(cosIn)
	p.dVC /= core.Mis(cosIn)

	if bsdf.IsLightSource() {
		p.radiance = p.radiance.Add(p.throughput.MultiplyVec(
			e.directHitLight(&bsdf, p.dVC, p.dVCM)))
	}

	p.vertex = pathVertex{
		bsdf:       bsdf,
		throughput: p.throughput,
		depth:      p.depth + 1,
		dVC:        p.dVC,
		dVCM:       p.dVCM,
		volInfo:    p.volInfo,
	}

	if bsdf.IsDelta() {
		// No connections possible: extend immediately next round
		e.sampleNextBounce(p)
		return
	}

	// Queue the s=1 shadow ray
	base := e.eyeOffset(p.depth)
	contribution, shadowRay, ok := e.directLightContribution(&p.vertex,
		p.smp.GetSample(base+4), p.smp.GetSample(base+5), p.smp.GetSample(base+6))
	if ok {
		p.direct = contribution
		p.shadow = pendingRay{ray: shadowRay, transmittance: core.White}
		p.state = statePendingShadow
		return
	}

	e.queueConnections(p)
}

// eyeOffset returns the sample dimension base of one eye bounce
func (e *BidirHybrid) eyeOffset(depth int) int {
	return bidirBootSize + e.config.Bidir.LightDepth*bidirLightStepSize +
		depth*(bidirEyeStepSize+e.config.Bidir.LightDepth)
}

// directLightContribution computes the s=1 contribution assuming the
// shadow ray is clear, plus the ray to verify it
func (e *BidirHybrid) directLightContribution(vertex *pathVertex, uPick, u0, u1 float64) (core.Vec3, core.Ray, bool) {
	light, pickPdf, _ := e.scene.Lights.SampleLight(uPick)
	if light == nil || pickPdf <= 0 {
		return core.Black, core.Ray{}, false
	}
	sample, ok := light.Illuminate(vertex.bsdf.HitPoint.P, u0, u1)
	if !ok || sample.DirectPdfW <= 0 {
		return core.Black, core.Ray{}, false
	}

	f, _, bsdfPdfW, bsdfRevPdfW := vertex.bsdf.Evaluate(sample.Direction)
	if f.IsZero() {
		return core.Black, core.Ray{}, false
	}

	cosToLight := sample.Direction.AbsDot(vertex.bsdf.HitPoint.ShadeN)

	wLight := 0.0
	if !light.IsDelta() {
		wLight = core.Mis(bsdfPdfW / (pickPdf * sample.DirectPdfW))
	}
	cosAtLight := math.Max(sample.CosThetaAtLight, 1e-6)
	wCamera := core.Mis(sample.EmissionPdfW*cosToLight/(sample.DirectPdfW*cosAtLight)) *
		(vertex.dVCM + vertex.dVC*core.Mis(bsdfRevPdfW))
	weight := 1 / (wLight + 1 + wCamera)

	contribution := vertex.throughput.MultiplyVec(sample.Radiance).MultiplyVec(f).
		Multiply(weight * cosToLight / (pickPdf * sample.DirectPdfW))

	var shadowRay core.Ray
	if math.IsInf(sample.Distance, 1) {
		shadowRay = core.NewRay(vertex.bsdf.HitPoint.P, sample.Direction)
	} else {
		shadowRay = core.NewRayRange(vertex.bsdf.HitPoint.P, sample.Direction,
			core.DefaultEpsilon, sample.Distance*(1-1e-4))
	}
	return contribution, shadowRay, true
}

// advanceShadow consumes the s=1 shadow ray result
func (e *BidirHybrid) advanceShadow(p *hybridPath, buffer *device.RayBuffer) {
	if p.shadow.bufferIndex < 0 {
		return
	}
	hit := buffer.GetRayHit(p.shadow.bufferIndex)

	if hit.Miss() {
		p.radiance = p.radiance.Add(p.direct.MultiplyVec(p.shadow.transmittance))
	} else {
		// A pass-through occluder advances the shadow ray; anything
		// else blocks it
		bsdf := e.scene.NewBSDF(p.shadow.ray, *hit, p.shadow.ray.TMin, false)
		if bsdf.IsPassThrough() {
			transparency := bsdf.GetPassThroughTransparency()
			if !transparency.IsZero() {
				p.shadow.transmittance = p.shadow.transmittance.MultiplyVec(transparency)
				p.shadow.ray.TMin = hit.T + e.scene.Epsilon
				return // resubmit next round
			}
		}
	}

	e.queueConnections(p)
}

// queueConnections prepares the s>=2 vertex-connection visibility rays for
// the current eye vertex
func (e *BidirHybrid) queueConnections(p *hybridPath) {
	cfg := e.config.Bidir
	p.connect = p.connect[:0]

	base := e.eyeOffset(p.depth)
	for li := range p.lightPath {
		lightVertex := &p.lightPath[li]
		if p.vertex.depth+lightVertex.depth > cfg.EyeDepth+cfg.LightDepth {
			continue
		}
		contribution, ray, ok := e.vertexConnection(&p.vertex, lightVertex)
		if !ok {
			continue
		}
		// Burn the connection dimension so the layout matches the
		// CPU engine's sample vector
		_ = p.smp.GetSample(base + bidirEyeStepSize + li)
		p.connect = append(p.connect, pendingRay{
			ray:           ray,
			transmittance: core.White,
			contribution:  contribution,
		})
	}

	if len(p.connect) == 0 {
		e.sampleNextBounce(p)
		return
	}
	p.state = statePendingConnection
}

// vertexConnection computes an s>=2 connection contribution assuming
// visibility
func (e *BidirHybrid) vertexConnection(eyeVertex, lightVertex *pathVertex) (core.Vec3, core.Ray, bool) {
	delta := lightVertex.bsdf.HitPoint.P.Subtract(eyeVertex.bsdf.HitPoint.P)
	distanceSquared := delta.LengthSquared()
	if distanceSquared < 1e-12 {
		return core.Black, core.Ray{}, false
	}
	distance := math.Sqrt(distanceSquared)
	dir := delta.Multiply(1 / distance)

	eyeF, _, eyePdfW, eyeRevPdfW := eyeVertex.bsdf.Evaluate(dir)
	if eyeF.IsZero() {
		return core.Black, core.Ray{}, false
	}
	lightF, _, lightPdfW, lightRevPdfW := lightVertex.bsdf.Evaluate(dir.Negate())
	if lightF.IsZero() {
		return core.Black, core.Ray{}, false
	}

	cosAtEye := dir.AbsDot(eyeVertex.bsdf.HitPoint.ShadeN)
	cosAtLight := dir.AbsDot(lightVertex.bsdf.HitPoint.ShadeN)
	geometryTerm := cosAtEye * cosAtLight / distanceSquared

	eyePdfA := core.PdfWtoA(eyePdfW, distance, cosAtLight)
	lightPdfA := core.PdfWtoA(lightPdfW, distance, cosAtEye)

	wLight := core.Mis(eyePdfA) * (lightVertex.dVCM + lightVertex.dVC*core.Mis(lightRevPdfW))
	wCamera := core.Mis(lightPdfA) * (eyeVertex.dVCM + eyeVertex.dVC*core.Mis(eyeRevPdfW))
	weight := 1 / (wLight + 1 + wCamera)

	contribution := eyeVertex.throughput.MultiplyVec(eyeF).
		MultiplyVec(lightVertex.throughput).MultiplyVec(lightF).
		Multiply(weight * geometryTerm)

	ray := core.NewRayRange(eyeVertex.bsdf.HitPoint.P, dir, core.DefaultEpsilon, distance*(1-1e-4))
	return contribution, ray, true
}

// advanceConnections consumes the connection visibility results
func (e *BidirHybrid) advanceConnections(p *hybridPath, buffer *device.RayBuffer) {
	unresolved := false
	for i := range p.connect {
		pr := &p.connect[i]
		if pr.done || pr.bufferIndex < 0 {
			continue
		}
		hit := buffer.GetRayHit(pr.bufferIndex)

		if hit.Miss() {
			p.radiance = p.radiance.Add(pr.contribution.MultiplyVec(pr.transmittance))
			pr.done = true
			continue
		}

		bsdf := e.scene.NewBSDF(pr.ray, *hit, pr.ray.TMin, false)
		if bsdf.IsPassThrough() {
			transparency := bsdf.GetPassThroughTransparency()
			if !transparency.IsZero() {
				pr.transmittance = pr.transmittance.MultiplyVec(transparency)
				pr.ray.TMin = hit.T + e.scene.Epsilon
				unresolved = true
				continue
			}
		}
		pr.done = true // blocked
	}

	if unresolved {
		return
	}
	e.sampleNextBounce(p)
}

// sampleNextBounce extends the eye subpath or ends the sample
func (e *BidirHybrid) sampleNextBounce(p *hybridPath) {
	cfg := e.config.Bidir
	bsdf := p.vertex.bsdf

	if p.depth+1 >= cfg.EyeDepth {
		p.state = stateFinal
		e.finishPath(p)
		return
	}

	base := e.eyeOffset(p.depth)
	sampledDir, bsdfResult, pdfW, cosOut, event, ok := bsdf.Sample(
		p.smp.GetSample(base+1), p.smp.GetSample(base+2))
	if !ok {
		p.state = stateFinal
		e.finishPath(p)
		return
	}
	_, revPdfW := bsdf.Pdf(sampledDir)

	if p.depth >= e.config.Path.RussianRouletteDepth {
		prob := rrProb(bsdfResult, e.config.Path.RussianRouletteCap)
		if p.smp.GetSample(base+3) >= prob {
			p.state = stateFinal
			e.finishPath(p)
			return
		}
		bsdfResult = bsdfResult.Multiply(1 / prob)
		pdfW *= prob
		revPdfW *= prob
	}

	if event.Has(material.SpecularEvent) {
		p.dVC *= core.Mis(cosOut)
		p.dVCM = 0
	} else {
		p.dVC = core.Mis(cosOut/pdfW) * (p.dVC*core.Mis(revPdfW) + p.dVCM)
		p.dVCM = core.Mis(1 / pdfW)
	}

	p.throughput = p.throughput.MultiplyVec(bsdfResult)
	p.volInfo.Update(event, &bsdf)
	p.ray = core.NewRay(bsdf.HitPoint.P, sampledDir)
	p.depth++
	p.state = stateExtending
}

// finishPath forwards the sample's results and restarts the record
func (e *BidirHybrid) finishPath(p *hybridPath) {
	results := append(p.splats, core.SampleResult{
		Type:     core.RadiancePerPixelNormalized,
		FilmX:    p.filmX,
		FilmY:    p.filmY,
		Radiance: p.radiance,
		Alpha:    p.alpha,
	})
	p.smp.NextSample(results)
	p.state = stateInitial
	p.splats = p.splats[:0]
}
