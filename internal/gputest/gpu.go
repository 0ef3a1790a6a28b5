// Package gputest provides an in-memory GPU implementing vkframe.Driver.
//
// Submissions complete lazily: a fence only signals once something waits on
// it (or on the whole device), which is enough to observe ordering bugs such
// as reusing a slot before its fence was waited on. Every driver call is
// appended to a call log that tests inspect.
package gputest

import (
	"fmt"
	"sync"
	"time"

	"github.com/andewx/vkframe"
	"github.com/pkg/errors"
)

type Fence struct {
	ID       int
	Signaled bool
}

type Semaphore struct{ ID int }

type CommandPool struct{ ID int }

type CommandBuffer struct {
	ID        int
	Pool      *CommandPool
	Recording bool
	Copies    []Copy
}

type Buffer struct {
	ID        int
	Size      uint64
	Usage     vkframe.BufferUsage
	Residency vkframe.Residency
}

type Allocation struct {
	ID   int
	Data []byte
}

type Image struct {
	ID   int
	Desc vkframe.ImageDesc
}

type ImageView struct {
	ID    int
	Image *Image
}

type Swapchain struct {
	ID     int
	Extent vkframe.Extent2D
	Format vkframe.Format
	Images []vkframe.Image
	next   uint32
}

// Copy is a recorded buffer copy.
type Copy struct {
	Src, Dst *Buffer
	Region   vkframe.BufferCopy
}

// Call is one entry of the call log. Handle is the main object the call
// acted on, if any.
type Call struct {
	Op     string
	Handle interface{}
}

func (c Call) String() string {
	if c.Handle == nil {
		return c.Op
	}
	return fmt.Sprintf("%s(%v)", c.Op, c.Handle)
}

type submission struct {
	info vkframe.SubmitInfo
}

// GPU is a fake Driver. The zero value is not usable; call New.
type GPU struct {
	mu sync.Mutex

	nextID  int
	calls   []Call
	pending []submission
	live    map[interface{}]string

	surface     vkframe.Extent2D
	minImages   uint32
	maxImages   uint32
	format      vkframe.Format
	acquireNext []vkframe.AcquireStatus
	presentNext []vkframe.AcquireStatus
	failNext    map[string]error

	// Submitted holds every submission in queue order.
	Submitted []vkframe.SubmitInfo
}

// New returns a GPU whose surface is width x height pixels and supports
// 2 to 3 swapchain images in B8G8R8A8 sRGB.
func New(width, height uint32) *GPU {
	return &GPU{
		live:      make(map[interface{}]string),
		surface:   vkframe.Extent2D{Width: width, Height: height},
		minImages: 2,
		maxImages: 3,
		format:    vkframe.FormatB8G8R8A8Srgb,
		failNext:  make(map[string]error),
	}
}

func (g *GPU) id() int {
	g.nextID++
	return g.nextID
}

func (g *GPU) record(op string, handle interface{}) {
	g.calls = append(g.calls, Call{Op: op, Handle: handle})
}

func (g *GPU) injected(op string) error {
	if err, ok := g.failNext[op]; ok {
		delete(g.failNext, op)
		return err
	}
	return nil
}

// FailNext makes the next call of op return err.
func (g *GPU) FailNext(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext[op] = err
}

// SetSurfaceExtent changes the surface size. A swapchain built for another
// size reports out of date on its next acquire and present.
func (g *GPU) SetSurfaceExtent(width, height uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.surface = vkframe.Extent2D{Width: width, Height: height}
}

// ScriptAcquire queues statuses returned by the next acquires, in order.
func (g *GPU) ScriptAcquire(statuses ...vkframe.AcquireStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.acquireNext = append(g.acquireNext, statuses...)
}

// ScriptPresent queues statuses returned by the next presents, in order.
func (g *GPU) ScriptPresent(statuses ...vkframe.AcquireStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.presentNext = append(g.presentNext, statuses...)
}

// Calls returns a copy of the call log.
func (g *GPU) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

// Ops returns the operation names of the call log.
func (g *GPU) Ops() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ops := make([]string, len(g.calls))
	for i, c := range g.calls {
		ops[i] = c.Op
	}
	return ops
}

// Count returns how many times op was called.
func (g *GPU) Count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log.
func (g *GPU) ResetCalls() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = nil
}

// Live returns the number of objects created and not yet destroyed.
func (g *GPU) Live() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.live)
}

// LiveKinds returns the kind of every live object.
func (g *GPU) LiveKinds() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	kinds := make([]string, 0, len(g.live))
	for _, k := range g.live {
		kinds = append(kinds, k)
	}
	return kinds
}

func (g *GPU) track(h interface{}, kind string) {
	g.live[h] = kind
}

func (g *GPU) untrack(h interface{}, kind string) {
	if _, ok := g.live[h]; !ok {
		panic(fmt.Sprintf("gputest: destroy of unknown or already destroyed %s %v", kind, h))
	}
	delete(g.live, h)
}

// complete retires pending submissions up to and including the one that
// signals fence; a nil fence retires everything. It reports false when no
// pending submission signals fence.
func (g *GPU) complete(fence *Fence) bool {
	end := len(g.pending)
	if fence != nil {
		end = -1
		for i, sub := range g.pending {
			if sub.info.Fence == fence {
				end = i + 1
				break
			}
		}
		if end < 0 {
			return false
		}
	}
	for _, sub := range g.pending[:end] {
		if f, ok := sub.info.Fence.(*Fence); ok && f != nil {
			f.Signaled = true
		}
	}
	g.pending = g.pending[end:]
	return true
}

func (g *GPU) Info() vkframe.DeviceInfo {
	return vkframe.DeviceInfo{Name: "gputest", APIVersion: 1 << 22, QueueFamily: 0}
}

func (g *GPU) WaitIdle() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("WaitIdle", nil)
	if err := g.injected("WaitIdle"); err != nil {
		return err
	}
	g.complete(nil)
	return nil
}

func (g *GPU) Destroy() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("Destroy", nil)
}

func (g *GPU) CreateFence(signaled bool) (vkframe.Fence, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("CreateFence", nil)
	if err := g.injected("CreateFence"); err != nil {
		return nil, err
	}
	f := &Fence{ID: g.id(), Signaled: signaled}
	g.track(f, "fence")
	return f, nil
}

func (g *GPU) DestroyFence(f vkframe.Fence) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("DestroyFence", f)
	g.untrack(f, "fence")
}

// WaitFence retires queued work up to f. A fence nothing will ever signal
// times out immediately instead of blocking.
func (g *GPU) WaitFence(f vkframe.Fence, timeout time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("WaitFence", f)
	if err := g.injected("WaitFence"); err != nil {
		return err
	}
	fence := f.(*Fence)
	if fence.Signaled {
		return nil
	}
	if g.complete(fence) {
		return nil
	}
	return errors.Wrapf(vkframe.ErrFenceTimeout, "fence %d after %s", fence.ID, timeout)
}

func (g *GPU) ResetFence(f vkframe.Fence) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("ResetFence", f)
	if err := g.injected("ResetFence"); err != nil {
		return err
	}
	f.(*Fence).Signaled = false
	return nil
}

func (g *GPU) CreateSemaphore() (vkframe.Semaphore, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("CreateSemaphore", nil)
	if err := g.injected("CreateSemaphore"); err != nil {
		return nil, err
	}
	s := &Semaphore{ID: g.id()}
	g.track(s, "semaphore")
	return s, nil
}

func (g *GPU) DestroySemaphore(s vkframe.Semaphore) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("DestroySemaphore", s)
	g.untrack(s, "semaphore")
}

func (g *GPU) CreateCommandPool() (vkframe.CommandPool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("CreateCommandPool", nil)
	if err := g.injected("CreateCommandPool"); err != nil {
		return nil, err
	}
	p := &CommandPool{ID: g.id()}
	g.track(p, "command pool")
	return p, nil
}

func (g *GPU) DestroyCommandPool(p vkframe.CommandPool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("DestroyCommandPool", p)
	g.untrack(p, "command pool")
}

func (g *GPU) AllocateCommandBuffer(p vkframe.CommandPool) (vkframe.CommandBuffer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("AllocateCommandBuffer", p)
	if err := g.injected("AllocateCommandBuffer"); err != nil {
		return nil, err
	}
	return &CommandBuffer{ID: g.id(), Pool: p.(*CommandPool)}, nil
}

func (g *GPU) ResetCommandBuffer(cmd vkframe.CommandBuffer) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("ResetCommandBuffer", cmd)
	cb := cmd.(*CommandBuffer)
	cb.Recording = false
	cb.Copies = nil
	return g.injected("ResetCommandBuffer")
}

func (g *GPU) BeginCommandBuffer(cmd vkframe.CommandBuffer) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("BeginCommandBuffer", cmd)
	cb := cmd.(*CommandBuffer)
	if cb.Recording {
		return errors.Errorf("command buffer %d already recording", cb.ID)
	}
	cb.Recording = true
	return g.injected("BeginCommandBuffer")
}

func (g *GPU) EndCommandBuffer(cmd vkframe.CommandBuffer) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("EndCommandBuffer", cmd)
	cb := cmd.(*CommandBuffer)
	if !cb.Recording {
		return errors.Errorf("command buffer %d not recording", cb.ID)
	}
	cb.Recording = false
	return g.injected("EndCommandBuffer")
}

func (g *GPU) CmdCopyBuffer(cmd vkframe.CommandBuffer, src, dst vkframe.Buffer, regions ...vkframe.BufferCopy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("CmdCopyBuffer", cmd)
	cb := cmd.(*CommandBuffer)
	for _, r := range regions {
		cb.Copies = append(cb.Copies, Copy{Src: src.(*Buffer), Dst: dst.(*Buffer), Region: r})
	}
}

// Submit queues info. Submitting with a fence that is still signaled is
// rejected the way validation layers would flag it.
func (g *GPU) Submit(info vkframe.SubmitInfo) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("Submit", info.Fence)
	if err := g.injected("Submit"); err != nil {
		return err
	}
	if f, ok := info.Fence.(*Fence); ok && f != nil && f.Signaled {
		return errors.Errorf("submit with signaled fence %d", f.ID)
	}
	if len(info.Wait) != len(info.WaitStages) {
		return errors.Errorf("%d wait semaphores with %d stages", len(info.Wait), len(info.WaitStages))
	}
	for _, c := range info.CommandBuffers {
		if c.(*CommandBuffer).Recording {
			return errors.Errorf("submit of command buffer %d still recording", c.(*CommandBuffer).ID)
		}
	}
	g.pending = append(g.pending, submission{info: info})
	g.Submitted = append(g.Submitted, info)
	return nil
}

func (g *GPU) CreateBuffer(size uint64, usage vkframe.BufferUsage, res vkframe.Residency) (vkframe.Buffer, vkframe.Allocation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("CreateBuffer", nil)
	if err := g.injected("CreateBuffer"); err != nil {
		return nil, nil, err
	}
	b := &Buffer{ID: g.id(), Size: size, Usage: usage, Residency: res}
	a := &Allocation{ID: g.id(), Data: make([]byte, size)}
	g.track(b, "buffer")
	g.track(a, "allocation")
	return b, a, nil
}

func (g *GPU) DestroyBuffer(b vkframe.Buffer, a vkframe.Allocation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("DestroyBuffer", b)
	g.untrack(b, "buffer")
	g.untrack(a, "allocation")
}

func (g *GPU) WriteMemory(a vkframe.Allocation, offset uint64, data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("WriteMemory", a)
	if err := g.injected("WriteMemory"); err != nil {
		return err
	}
	alloc := a.(*Allocation)
	if offset+uint64(len(data)) > uint64(len(alloc.Data)) {
		return errors.Errorf("write past end of allocation %d", alloc.ID)
	}
	copy(alloc.Data[offset:], data)
	return nil
}

func (g *GPU) CreateImage(desc vkframe.ImageDesc, res vkframe.Residency) (vkframe.Image, vkframe.Allocation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("CreateImage", nil)
	if err := g.injected("CreateImage"); err != nil {
		return nil, nil, err
	}
	img := &Image{ID: g.id(), Desc: desc}
	a := &Allocation{ID: g.id()}
	g.track(img, "image")
	g.track(a, "allocation")
	return img, a, nil
}

func (g *GPU) DestroyImage(img vkframe.Image, a vkframe.Allocation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("DestroyImage", img)
	g.untrack(img, "image")
	g.untrack(a, "allocation")
}

func (g *GPU) CreateImageView(img vkframe.Image, format vkframe.Format, aspect vkframe.ImageAspect) (vkframe.ImageView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("CreateImageView", img)
	if err := g.injected("CreateImageView"); err != nil {
		return nil, err
	}
	v := &ImageView{ID: g.id(), Image: img.(*Image)}
	g.track(v, "image view")
	return v, nil
}

func (g *GPU) DestroyImageView(v vkframe.ImageView) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("DestroyImageView", v)
	g.untrack(v, "image view")
}

func (g *GPU) CreateSwapchain(desc vkframe.SwapchainDesc) (vkframe.SwapchainInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("CreateSwapchain", nil)
	if err := g.injected("CreateSwapchain"); err != nil {
		return vkframe.SwapchainInfo{}, err
	}
	if g.surface.Zero() {
		return vkframe.SwapchainInfo{}, errors.Wrap(vkframe.ErrZeroExtent, "surface")
	}
	count := desc.ImageCount
	if count < g.minImages {
		count = g.minImages
	}
	if count > g.maxImages {
		count = g.maxImages
	}
	sc := &Swapchain{ID: g.id(), Extent: g.surface, Format: g.format}
	for i := uint32(0); i < count; i++ {
		img := &Image{ID: g.id(), Desc: vkframe.ImageDesc{
			Extent: g.surface,
			Format: g.format,
			Usage:  vkframe.ImageUsageColorAttachment,
			Aspect: vkframe.ImageAspectColor,
		}}
		sc.Images = append(sc.Images, img)
	}
	g.track(sc, "swapchain")
	return vkframe.SwapchainInfo{
		Handle: sc,
		Images: sc.Images,
		Format: sc.Format,
		Extent: sc.Extent,
	}, nil
}

func (g *GPU) DestroySwapchain(h vkframe.SwapchainHandle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("DestroySwapchain", h)
	g.untrack(h, "swapchain")
}

func (g *GPU) AcquireNextImage(h vkframe.SwapchainHandle, timeout time.Duration, signal vkframe.Semaphore) (uint32, vkframe.AcquireStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("Acquire", signal)
	if err := g.injected("Acquire"); err != nil {
		return 0, vkframe.AcquireOK, err
	}
	sc := h.(*Swapchain)
	status := vkframe.AcquireOK
	if len(g.acquireNext) > 0 {
		status, g.acquireNext = g.acquireNext[0], g.acquireNext[1:]
	} else if sc.Extent != g.surface {
		status = vkframe.AcquireOutOfDate
	}
	if status == vkframe.AcquireOutOfDate || status == vkframe.AcquireTimedOut {
		return 0, status, nil
	}
	index := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.Images))
	return index, status, nil
}

func (g *GPU) Present(h vkframe.SwapchainHandle, index uint32, wait vkframe.Semaphore) (vkframe.AcquireStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("Present", wait)
	if err := g.injected("Present"); err != nil {
		return vkframe.AcquireOK, err
	}
	sc := h.(*Swapchain)
	if int(index) >= len(sc.Images) {
		return vkframe.AcquireOK, errors.Errorf("present of image %d out of range", index)
	}
	if len(g.presentNext) > 0 {
		var status vkframe.AcquireStatus
		status, g.presentNext = g.presentNext[0], g.presentNext[1:]
		return status, nil
	}
	if sc.Extent != g.surface {
		return vkframe.AcquireOutOfDate, nil
	}
	return vkframe.AcquireOK, nil
}

var _ vkframe.Driver = (*GPU)(nil)
