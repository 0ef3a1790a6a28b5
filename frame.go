package vkframe

import (
	"time"

	"github.com/pkg/errors"
)

const (
	MinFrameOverlap     = 2
	MaxFrameOverlap     = 3
	DefaultFrameOverlap = 2

	slotQueueCapacity = 16
)

// FrameSlot is the per-frame context: a command pool and primary command
// buffer, the two semaphores ordering acquire, render and present, the fence
// guarding reuse of everything in the slot and the slot's deletion queue.
type FrameSlot struct {
	Index          int
	Pool           CommandPool
	Cmd            CommandBuffer
	ImageAcquired  Semaphore
	RenderComplete Semaphore
	// Fence is created signaled so the first wait on a fresh slot returns at once.
	Fence     Fence
	Deletions *DeletionQueue
}

func newFrameSlot(drv Driver, index int) (slot *FrameSlot, err error) {
	slot = &FrameSlot{Index: index, Deletions: NewDeletionQueue(slotQueueCapacity)}
	rollback := NewDeletionQueue(4)
	defer func() {
		if err != nil {
			rollback.Flush()
		}
	}()

	if slot.Pool, err = drv.CreateCommandPool(); err != nil {
		return nil, errors.Wrap(err, "command pool")
	}
	rollback.Push(commandPoolReleaser{drv, slot.Pool})
	if slot.Cmd, err = drv.AllocateCommandBuffer(slot.Pool); err != nil {
		return nil, errors.Wrap(err, "command buffer")
	}
	if slot.ImageAcquired, err = drv.CreateSemaphore(); err != nil {
		return nil, errors.Wrap(err, "image acquired semaphore")
	}
	rollback.Push(semaphoreReleaser{drv, slot.ImageAcquired})
	if slot.RenderComplete, err = drv.CreateSemaphore(); err != nil {
		return nil, errors.Wrap(err, "render complete semaphore")
	}
	rollback.Push(semaphoreReleaser{drv, slot.RenderComplete})
	if slot.Fence, err = drv.CreateFence(true); err != nil {
		return nil, errors.Wrap(err, "frame fence")
	}
	return slot, nil
}

func (s *FrameSlot) destroy(drv Driver) {
	s.Deletions.Flush()
	drv.DestroyFence(s.Fence)
	drv.DestroySemaphore(s.RenderComplete)
	drv.DestroySemaphore(s.ImageAcquired)
	drv.DestroyCommandPool(s.Pool)
}

// FrameRing is a fixed ring of frame slots indexed by the frame counter.
// With depth N, the CPU may record frame k while frames k-1 .. k-N+1 are
// still executing on the GPU.
type FrameRing struct {
	drv     Driver
	slots   []*FrameSlot
	counter uint64
}

func NewFrameRing(dev *Device, depth int) (*FrameRing, error) {
	if depth < MinFrameOverlap || depth > MaxFrameOverlap {
		return nil, invalidArgf("frame overlap %d outside [%d,%d]", depth, MinFrameOverlap, MaxFrameOverlap)
	}
	ring := &FrameRing{drv: dev.drv, slots: make([]*FrameSlot, 0, depth)}
	for i := 0; i < depth; i++ {
		slot, err := newFrameSlot(dev.drv, i)
		if err != nil {
			ring.Destroy()
			return nil, errors.Wrapf(err, "frame slot %d", i)
		}
		ring.slots = append(ring.slots, slot)
	}
	return ring, nil
}

// Slot returns the slot the current frame counter maps to.
func (r *FrameRing) Slot() *FrameSlot {
	return r.slots[r.Index()]
}

func (r *FrameRing) Index() int {
	return int(r.counter % uint64(len(r.slots)))
}

func (r *FrameRing) Counter() uint64 { return r.counter }
func (r *FrameRing) Depth() int      { return len(r.slots) }

// Wait blocks until the GPU is done with the current slot, then runs the
// slot's deferred deletions. Expiry of timeout means the GPU is hung.
func (r *FrameRing) Wait(timeout time.Duration) error {
	slot := r.Slot()
	if err := r.drv.WaitFence(slot.Fence, timeout); err != nil {
		return errors.Wrapf(err, "frame %d slot %d", r.counter, slot.Index)
	}
	slot.Deletions.Flush()
	return nil
}

// Advance moves to the next frame. Call it only once the current frame has
// been submitted.
func (r *FrameRing) Advance() {
	r.counter++
}

// Retire defers rel until every slot has been waited on once more. A fence
// covers only its own submission, so this is the point where no frame
// submitted before the call can still be using what rel frees. Destroy runs
// whatever is still pending.
func (r *FrameRing) Retire(rel Releaser) {
	if rel == nil {
		return
	}
	remaining := len(r.slots)
	for _, slot := range r.slots {
		slot.Deletions.PushFunc(func() {
			remaining--
			if remaining == 0 {
				rel.Release()
			}
		})
	}
}

// Destroy flushes every slot's deletion queue and destroys the slots. The
// caller waits for the device to go idle first.
func (r *FrameRing) Destroy() {
	for i := len(r.slots) - 1; i >= 0; i-- {
		r.slots[i].destroy(r.drv)
	}
	r.slots = nil
}

// Frame is the recording context handed to draw logic for one tick.
type Frame struct {
	Number     uint64
	Slot       int
	ImageIndex uint32
	Cmd        CommandBuffer
	Image      Image
	View       ImageView
	DepthView  ImageView
	Extent     Extent2D
	Format     Format
	// Deletions is the slot's queue. Objects pushed here are released after
	// the GPU has finished this frame.
	Deletions *DeletionQueue

	ring *FrameRing
}

// Retire releases fn once every frame in flight, not only this one, has
// finished. Use it for objects shared across frames, such as a replaced
// pipeline.
func (f *Frame) Retire(fn func()) {
	if fn == nil {
		return
	}
	if f.ring == nil {
		f.Deletions.PushFunc(fn)
		return
	}
	f.ring.Retire(ReleaseFunc(fn))
}
