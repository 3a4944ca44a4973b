package device

import (
	"math/rand"
	"testing"
	"time"

	"github.com/df07/go-light-transport/pkg/accel"
	"github.com/df07/go-light-transport/pkg/core"
)

// unitCubeAccel builds a small accelerator for tracing tests
func unitCubeAccel() accel.Accelerator {
	mesh := &accel.Mesh{
		Vertices: []core.Vec3{
			{X: -1, Y: -1, Z: 0}, {X: 1, Y: -1, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: -1, Y: 1, Z: 0},
		},
		Triangles: []accel.Triangle{{V0: 0, V1: 1, V2: 2}, {V0: 0, V1: 2, V2: 3}},
	}
	return accel.NewBVH([]*accel.Mesh{mesh})
}

func TestNativeDeviceIntersect(t *testing.T) {
	dev := NewNativeDevice("test", unitCubeAccel(), 1)

	rb := NewRayBuffer(4)
	rb.AddRay(core.NewRay(core.NewVec3(0, 0, -1), core.NewVec3(0, 0, 1)))   // hits the quad
	rb.AddRay(core.NewRay(core.NewVec3(5, 5, -1), core.NewVec3(0, 0, 1)))   // misses
	rb.AddRay(core.NewRay(core.NewVec3(0.5, 0, -2), core.NewVec3(0, 0, 1))) // hits

	dev.Intersect(rb)

	if rb.GetRayHit(0).Miss() {
		t.Error("ray 0 must hit")
	}
	if !rb.GetRayHit(1).Miss() {
		t.Error("ray 1 must miss")
	}
	if rb.GetRayHit(2).Miss() {
		t.Error("ray 2 must hit")
	}
	if got := rb.GetRayHit(0).T; got < 0.99 || got > 1.01 {
		t.Errorf("ray 0 hit at t=%v, expected 1", got)
	}
}

func TestNativeDevicePushPop(t *testing.T) {
	dev := NewNativeDevice("test", unitCubeAccel(), 2)
	dev.Start()
	defer dev.Stop()

	const buffers = 16
	for i := 0; i < buffers; i++ {
		rb := NewRayBuffer(8)
		for j := 0; j < 8; j++ {
			rb.AddRay(core.NewRay(core.NewVec3(0, 0, -1), core.NewVec3(0, 0, 1)))
		}
		rb.UserData = i
		dev.PushRayBuffer(rb)
	}

	seen := make(map[int]bool)
	for i := 0; i < buffers; i++ {
		rb := dev.PopRayBuffer()
		if rb == nil {
			t.Fatal("unexpected nil buffer")
		}
		id := rb.UserData.(int)
		if seen[id] {
			t.Fatalf("buffer %d completed twice", id)
		}
		seen[id] = true
		for j := 0; j < rb.RayCount(); j++ {
			if rb.GetRayHit(j).Miss() {
				t.Fatal("all rays must hit")
			}
		}
	}
	if len(seen) != buffers {
		t.Fatalf("completed %d buffers, expected %d", len(seen), buffers)
	}
}

// delayDevice wraps a device adding an artificial per-buffer delay, used
// to provoke out-of-order completion
type delayDevice struct {
	*NativeDevice
	delay func() time.Duration
}

func (d *delayDevice) Intersect(rb *RayBuffer) {
	time.Sleep(d.delay())
	d.NativeDevice.Intersect(rb)
}

func (d *delayDevice) Start() {
	// Single worker thread running our delayed Intersect
	go func() {
		for {
			rb := d.todoQueue.Pop()
			if rb == nil {
				return
			}
			d.Intersect(rb)
			d.doneQueue.Push(rb)
		}
	}()
}

func TestVirtualM2OPreservesProducerFIFO(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	native := NewNativeDevice("real", unitCubeAccel(), 0)
	slow := &delayDevice{NativeDevice: native, delay: func() time.Duration {
		return time.Duration(rng.Intn(3)) * time.Millisecond
	}}

	virtual := NewVirtualM2ODevice(slow)
	producer := virtual.AddProducer()
	virtual.Start()
	defer virtual.Stop()

	const buffers = 32
	go func() {
		for i := 0; i < buffers; i++ {
			rb := NewRayBuffer(4)
			rb.AddRay(core.NewRay(core.NewVec3(0, 0, -1), core.NewVec3(0, 0, 1)))
			rb.UserData = i
			producer.PushRayBuffer(rb)
		}
	}()

	for i := 0; i < buffers; i++ {
		rb := producer.PopRayBuffer()
		if got := rb.UserData.(int); got != i {
			t.Fatalf("buffer %d popped at position %d: per-producer FIFO violated", got, i)
		}
	}
}

// TestVirtualM2MOrderingAndThroughput pushes 10000 rays through a
// many-to-many device wrapping two artificially delayed native devices:
// completion must match push ordering per producer and every ray must
// resolve
func TestVirtualM2MOrderingAndThroughput(t *testing.T) {
	acc := unitCubeAccel()

	fast := &delayDevice{
		NativeDevice: NewNativeDevice("fast", acc, 0),
		delay:        func() time.Duration { return time.Millisecond },
	}
	slow := &delayDevice{
		NativeDevice: NewNativeDevice("slow", acc, 0),
		delay:        func() time.Duration { return 3 * time.Millisecond },
	}

	m2m := NewVirtualM2MDevice([]IntersectionDevice{fast, slow})
	producer := m2m.AddProducer()
	m2m.Start()
	defer m2m.Stop()

	const totalRays = 10000
	const raysPerBuffer = 250
	const buffers = totalRays / raysPerBuffer

	go func() {
		for i := 0; i < buffers; i++ {
			rb := NewRayBuffer(raysPerBuffer)
			for j := 0; j < raysPerBuffer; j++ {
				rb.AddRay(core.NewRay(core.NewVec3(0, 0, -1), core.NewVec3(0, 0, 1)))
			}
			rb.UserData = i
			producer.PushRayBuffer(rb)
		}
	}()

	completed := 0
	for i := 0; i < buffers; i++ {
		rb := producer.PopRayBuffer()
		if got := rb.UserData.(int); got != i {
			t.Fatalf("buffer %d popped at position %d: push ordering violated", got, i)
		}
		for j := 0; j < rb.RayCount(); j++ {
			if rb.GetRayHit(j).Miss() {
				t.Fatal("ray resolved as miss, expected hit")
			}
		}
		completed += rb.RayCount()
	}
	if completed != totalRays {
		t.Fatalf("completed %d rays, expected %d", completed, totalRays)
	}

	// Work sharing must have exercised both devices
	if fast.Stats().TotalRays() == 0 || slow.Stats().TotalRays() == 0 {
		t.Errorf("work sharing left a device idle: fast=%d slow=%d rays",
			fast.Stats().TotalRays(), slow.Stats().TotalRays())
	}
}

func TestRayBufferReset(t *testing.T) {
	rb := NewRayBuffer(16)
	rb.AddRay(core.NewRay(core.Black, core.NewVec3(0, 0, 1)))
	rb.UserData = "tag"
	rb.Reset()
	if rb.RayCount() != 0 || rb.UserData != nil {
		t.Fatal("reset must clear rays and user data")
	}
	if rb.LeftSpace() != 16 {
		t.Fatalf("reset kept capacity %d, expected 16", rb.LeftSpace())
	}
}
