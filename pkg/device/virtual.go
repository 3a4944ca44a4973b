package device

import (
	"sync"
)

// VirtualM2ODevice multiplexes many producers onto one real device. Each
// producer obtains its own interface; completed buffers are routed back to
// the producer that pushed them, preserving per-producer FIFO order.
type VirtualM2ODevice struct {
	real IntersectionDevice

	mu        sync.Mutex
	producers []*virtualProducer
	started   bool
	stop      chan struct{}
	wg        sync.WaitGroup
}

// virtualProducer is one producer's view of a shared device
type virtualProducer struct {
	parent    bufferRouter
	id        int
	doneQueue *RayBufferQueue

	pushSeq uint64

	mu      sync.Mutex
	nextSeq uint64
	pending map[uint64]*RayBuffer
}

type bufferRouter interface {
	push(p *virtualProducer, rb *RayBuffer)
	popDone(p *virtualProducer) *RayBuffer
	producerStats() *DeviceStats
}

// NewVirtualM2ODevice wraps a real device for sharing
func NewVirtualM2ODevice(real IntersectionDevice) *VirtualM2ODevice {
	return &VirtualM2ODevice{real: real, stop: make(chan struct{})}
}

// AddProducer returns a new virtual interface onto the shared device
func (v *VirtualM2ODevice) AddProducer() IntersectionDevice {
	v.mu.Lock()
	defer v.mu.Unlock()

	p := &virtualProducer{
		parent:    v,
		id:        len(v.producers),
		doneQueue: NewRayBufferQueue(64),
		nextSeq:   1,
		pending:   make(map[uint64]*RayBuffer),
	}
	v.producers = append(v.producers, p)
	return p
}

// Start launches the real device and the router thread
func (v *VirtualM2ODevice) Start() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.started {
		return
	}
	v.started = true

	v.real.Start()
	v.wg.Add(1)
	go v.routerThread()
}

// routerThread returns completed buffers to their producers
func (v *VirtualM2ODevice) routerThread() {
	defer v.wg.Done()
	for {
		rb := v.real.PopRayBuffer()
		if rb == nil {
			return
		}
		v.mu.Lock()
		p := v.producers[rb.producerID]
		v.mu.Unlock()
		p.deliver(rb)
	}
}

func (v *VirtualM2ODevice) push(p *virtualProducer, rb *RayBuffer) {
	rb.producerID = p.id
	v.real.PushRayBuffer(rb)
}

func (v *VirtualM2ODevice) popDone(p *virtualProducer) *RayBuffer {
	return p.doneQueue.Pop()
}

func (v *VirtualM2ODevice) producerStats() *DeviceStats {
	return v.real.Stats()
}

// Stop shuts down the router and the real device
func (v *VirtualM2ODevice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.started {
		return
	}
	v.started = false
	v.real.Stop()
	close(v.stop)
}

// deliver hands a completed buffer to the producer in push order: buffers
// completing out of order wait in the reorder map
func (p *virtualProducer) deliver(rb *RayBuffer) {
	p.mu.Lock()
	ready := make([]*RayBuffer, 0, 1)
	p.pending[rb.sequence] = rb
	for {
		next, ok := p.pending[p.nextSeq]
		if !ok {
			break
		}
		delete(p.pending, p.nextSeq)
		p.nextSeq++
		ready = append(ready, next)
	}
	p.mu.Unlock()

	for _, next := range ready {
		p.doneQueue.Push(next)
	}
}

func (p *virtualProducer) Name() string { return "virtual" }

func (p *virtualProducer) Start()     {}
func (p *virtualProducer) Interrupt() {}
func (p *virtualProducer) Stop()      {}

func (p *virtualProducer) Intersect(rb *RayBuffer) {
	// Synchronous fallback routes through the push/pop pair
	p.PushRayBuffer(rb)
	out := p.PopRayBuffer()
	*rb = *out
}

func (p *virtualProducer) PushRayBuffer(rb *RayBuffer) {
	p.pushSeq++
	rb.sequence = p.pushSeq
	p.parent.push(p, rb)
}

func (p *virtualProducer) PopRayBuffer() *RayBuffer {
	return p.parent.popDone(p)
}

func (p *virtualProducer) Stats() *DeviceStats {
	return p.parent.producerStats()
}

// VirtualM2MDevice shares many producers across many real devices,
// handing each pushed buffer to the device with the most spare measured
// throughput. Per-producer FIFO is preserved by the same reorder scheme
// as the many-to-one device.
type VirtualM2MDevice struct {
	devices []IntersectionDevice

	mu        sync.Mutex
	producers []*virtualProducer
	inFlight  []int64
	started   bool
	wg        sync.WaitGroup
}

// NewVirtualM2MDevice wraps a set of real devices
func NewVirtualM2MDevice(devices []IntersectionDevice) *VirtualM2MDevice {
	return &VirtualM2MDevice{
		devices:  devices,
		inFlight: make([]int64, len(devices)),
	}
}

// AddProducer returns a new virtual interface onto the device group
func (v *VirtualM2MDevice) AddProducer() IntersectionDevice {
	v.mu.Lock()
	defer v.mu.Unlock()

	p := &virtualProducer{
		parent:    v,
		id:        len(v.producers),
		doneQueue: NewRayBufferQueue(64),
		nextSeq:   1,
		pending:   make(map[uint64]*RayBuffer),
	}
	v.producers = append(v.producers, p)
	return p
}

// Start launches every real device plus one router per device
func (v *VirtualM2MDevice) Start() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.started {
		return
	}
	v.started = true

	for i, d := range v.devices {
		d.Start()
		v.wg.Add(1)
		go v.routerThread(i, d)
	}
}

func (v *VirtualM2MDevice) routerThread(index int, d IntersectionDevice) {
	defer v.wg.Done()
	for {
		rb := d.PopRayBuffer()
		if rb == nil {
			return
		}
		v.mu.Lock()
		v.inFlight[index]--
		p := v.producers[rb.producerID]
		v.mu.Unlock()
		p.deliver(rb)
	}
}

// push schedules the buffer onto the device with the best spare
// throughput: measured rays/sec divided by queued work
func (v *VirtualM2MDevice) push(p *virtualProducer, rb *RayBuffer) {
	rb.producerID = p.id

	v.mu.Lock()
	best := 0
	bestScore := -1.0
	for i, d := range v.devices {
		throughput := d.Stats().RaysPerSec()
		if throughput <= 0 {
			throughput = 1 // no measurement yet: treat devices equally
		}
		score := throughput / float64(v.inFlight[i]+1)
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	v.inFlight[best]++
	target := v.devices[best]
	v.mu.Unlock()

	target.PushRayBuffer(rb)
}

func (v *VirtualM2MDevice) popDone(p *virtualProducer) *RayBuffer {
	return p.doneQueue.Pop()
}

func (v *VirtualM2MDevice) producerStats() *DeviceStats {
	// Report the first device's stats; per-device numbers stay
	// available through Devices
	return v.devices[0].Stats()
}

// Devices exposes the wrapped devices for statistics reporting
func (v *VirtualM2MDevice) Devices() []IntersectionDevice { return v.devices }

// Stop shuts down all devices and routers
func (v *VirtualM2MDevice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.started {
		return
	}
	v.started = false
	for _, d := range v.devices {
		d.Stop()
	}
}
