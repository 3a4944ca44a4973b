package device

import (
	"github.com/df07/go-light-transport/pkg/core"
)

// RayBufferSize is the default buffer capacity. A single buffer has to
// carry enough rays to saturate a device, so the default sits in the tens
// of thousands.
const RayBufferSize = 65536

// RayBuffer is a fixed-capacity batch of rays and their hits. Within a
// buffer, the hit at index i always answers the ray at index i.
type RayBuffer struct {
	Rays []core.Ray
	Hits []core.RayHit

	// UserData lets the producer tag the buffer with its own state
	// (e.g. which path states the rays belong to)
	UserData interface{}

	producerID int
	sequence   uint64
}

// NewRayBuffer creates a buffer with the given capacity
func NewRayBuffer(capacity int) *RayBuffer {
	return &RayBuffer{
		Rays: make([]core.Ray, 0, capacity),
		Hits: make([]core.RayHit, 0, capacity),
	}
}

// AddRay appends a ray and returns its index in the buffer
func (rb *RayBuffer) AddRay(ray core.Ray) int {
	rb.Rays = append(rb.Rays, ray)
	return len(rb.Rays) - 1
}

// GetRayHit returns the hit for the ray at the given index
func (rb *RayBuffer) GetRayHit(index int) *core.RayHit {
	return &rb.Hits[index]
}

// RayCount returns the number of rays in the buffer
func (rb *RayBuffer) RayCount() int {
	return len(rb.Rays)
}

// IsFull reports whether the buffer reached its capacity
func (rb *RayBuffer) IsFull() bool {
	return len(rb.Rays) == cap(rb.Rays)
}

// LeftSpace returns the remaining capacity
func (rb *RayBuffer) LeftSpace() int {
	return cap(rb.Rays) - len(rb.Rays)
}

// Reset clears the buffer for reuse, keeping its allocation
func (rb *RayBuffer) Reset() {
	rb.Rays = rb.Rays[:0]
	rb.Hits = rb.Hits[:0]
	rb.UserData = nil
}

// RayBufferQueue is a synchronized FIFO of ray buffers. Two of these
// attach every device: a to-do queue owning rays awaiting intersection
// and a done queue holding completed buffers.
type RayBufferQueue struct {
	ch chan *RayBuffer
}

// NewRayBufferQueue creates a queue with room for the given number of
// in-flight buffers
func NewRayBufferQueue(capacity int) *RayBufferQueue {
	return &RayBufferQueue{ch: make(chan *RayBuffer, capacity)}
}

// Push enqueues a buffer
func (q *RayBufferQueue) Push(rb *RayBuffer) {
	q.ch <- rb
}

// Pop blocks until a buffer is available, returning nil once the queue is
// closed and drained
func (q *RayBufferQueue) Pop() *RayBuffer {
	return <-q.ch
}

// TryPop returns immediately; ok is false when the queue is empty
func (q *RayBufferQueue) TryPop() (*RayBuffer, bool) {
	select {
	case rb, ok := <-q.ch:
		return rb, ok
	default:
		return nil, false
	}
}

// Close releases blocked poppers
func (q *RayBufferQueue) Close() {
	close(q.ch)
}

// Len returns the number of queued buffers
func (q *RayBufferQueue) Len() int {
	return len(q.ch)
}
