package device

import (
	"math"
	"sync/atomic"
	"time"
)

// IntersectionDevice fills in the hit for every ray handed to it. The
// synchronous Intersect form serves CPU engines; the buffer-queue form
// (PushRayBuffer/PopRayBuffer) serves hybrid engines batching rays.
//
// Contract: every buffer pushed to the to-do queue eventually appears
// exactly once in the done queue with every ray carrying a valid hit or
// the miss sentinel. Ordering across buffers follows completion time;
// virtual devices additionally preserve per-producer FIFO.
type IntersectionDevice interface {
	Name() string

	Start()
	Interrupt()
	Stop()

	// Intersect traces a buffer synchronously on the calling thread
	Intersect(rb *RayBuffer)

	// PushRayBuffer enqueues a buffer for asynchronous intersection
	PushRayBuffer(rb *RayBuffer)
	// PopRayBuffer blocks until a completed buffer is available
	PopRayBuffer() *RayBuffer

	Stats() *DeviceStats
}

// DeviceStats tracks the performance counters every device exposes. The
// work-sharing virtual device schedules by these.
type DeviceStats struct {
	name string

	totalRays uint64
	busyNanos int64
	startTime time.Time
}

// NewDeviceStats creates counters for a named device
func NewDeviceStats(name string) *DeviceStats {
	return &DeviceStats{name: name, startTime: time.Now()}
}

// AddRays records traced rays
func (s *DeviceStats) AddRays(n uint64) {
	atomic.AddUint64(&s.totalRays, n)
}

// AddBusyTime records time spent tracing
func (s *DeviceStats) AddBusyTime(d time.Duration) {
	atomic.AddInt64(&s.busyNanos, int64(d))
}

// TotalRays returns the number of rays traced so far
func (s *DeviceStats) TotalRays() uint64 {
	return atomic.LoadUint64(&s.totalRays)
}

// RaysPerSec returns the measured throughput over the device lifetime
func (s *DeviceStats) RaysPerSec() float64 {
	elapsed := time.Since(s.startTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.TotalRays()) / elapsed
}

// BusyTime returns the cumulative tracing time
func (s *DeviceStats) BusyTime() time.Duration {
	return time.Duration(atomic.LoadInt64(&s.busyNanos))
}

// IdleFraction returns the fraction of wall time the device sat idle
func (s *DeviceStats) IdleFraction() float64 {
	elapsed := time.Since(s.startTime)
	if elapsed <= 0 {
		return 0
	}
	idle := 1 - float64(s.BusyTime())/float64(elapsed)
	return math.Max(0, math.Min(1, idle))
}
