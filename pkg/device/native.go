package device

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/df07/go-light-transport/pkg/accel"
	"github.com/df07/go-light-transport/pkg/core"
)

// NativeDevice traces rays on CPU threads against the scene accelerator.
// One worker goroutine per hardware thread pops to-do buffers, traces
// them, and pushes them to the done queue.
type NativeDevice struct {
	name        string
	accelerator accel.Accelerator
	threadCount int

	todoQueue *RayBufferQueue
	doneQueue *RayBufferQueue

	stats *DeviceStats

	wg      sync.WaitGroup
	started bool
}

// NewNativeDevice creates a CPU intersection device; threadCount <= 0
// uses every hardware thread
func NewNativeDevice(name string, accelerator accel.Accelerator, threadCount int) *NativeDevice {
	if threadCount <= 0 {
		threadCount = runtime.NumCPU()
	}
	return &NativeDevice{
		name:        name,
		accelerator: accelerator,
		threadCount: threadCount,
		todoQueue:   NewRayBufferQueue(threadCount * 8),
		doneQueue:   NewRayBufferQueue(threadCount * 8),
		stats:       NewDeviceStats(name),
	}
}

func (d *NativeDevice) Name() string { return d.name }

// Start launches the intersection worker threads
func (d *NativeDevice) Start() {
	if d.started {
		return
	}
	d.started = true

	for i := 0; i < d.threadCount; i++ {
		d.wg.Add(1)
		go d.intersectionThread()
	}
	slog.Info("native intersection device started",
		"device", d.name, "threads", d.threadCount)
}

func (d *NativeDevice) intersectionThread() {
	defer d.wg.Done()

	for {
		rb := d.todoQueue.Pop()
		if rb == nil {
			return
		}
		d.Intersect(rb)
		d.doneQueue.Push(rb)
	}
}

// Intersect traces every ray in the buffer synchronously. A failed ray
// is marked as a miss rather than failing the buffer.
func (d *NativeDevice) Intersect(rb *RayBuffer) {
	start := time.Now()

	rb.Hits = rb.Hits[:0]
	for i := range rb.Rays {
		hit := d.traceRay(&rb.Rays[i])
		rb.Hits = append(rb.Hits, hit)
	}

	d.stats.AddRays(uint64(len(rb.Rays)))
	d.stats.AddBusyTime(time.Since(start))
}

func (d *NativeDevice) traceRay(ray *core.Ray) (hit core.RayHit) {
	defer func() {
		if r := recover(); r != nil {
			// A transient failure completes the ray as a miss and
			// keeps rendering going
			slog.Warn("ray intersection failed, marking as miss",
				"device", d.name, "error", fmt.Sprint(r))
			hit = core.MissHit()
		}
	}()

	result, ok := d.accelerator.Intersect(*ray)
	if !ok {
		return core.MissHit()
	}
	return result
}

func (d *NativeDevice) PushRayBuffer(rb *RayBuffer) {
	d.todoQueue.Push(rb)
}

func (d *NativeDevice) PopRayBuffer() *RayBuffer {
	return d.doneQueue.Pop()
}

// Interrupt drains the to-do queue without waiting for producers
func (d *NativeDevice) Interrupt() {
	for {
		if _, ok := d.todoQueue.TryPop(); !ok {
			break
		}
	}
}

// Stop closes the to-do queue, waits for the worker threads to trace the
// buffers still queued, then closes the done queue
func (d *NativeDevice) Stop() {
	if !d.started {
		return
	}
	d.started = false
	d.todoQueue.Close()
	d.wg.Wait()
	d.doneQueue.Close() // releases routers blocked on Pop
}

func (d *NativeDevice) Stats() *DeviceStats { return d.stats }
