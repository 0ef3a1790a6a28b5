package vkframe

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultFenceTimeout   = time.Second
	DefaultAcquireTimeout = time.Second
	DefaultMinimizedPoll  = 100 * time.Millisecond
)

// Options configures a Renderer. Zero values fall back to the defaults.
type Options struct {
	FrameOverlap   int
	Swapchain      SwapchainConfig
	FenceTimeout   time.Duration
	AcquireTimeout time.Duration
	MinimizedPoll  time.Duration
	Logger         *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		FrameOverlap:   DefaultFrameOverlap,
		Swapchain:      DefaultSwapchainConfig(),
		FenceTimeout:   DefaultFenceTimeout,
		AcquireTimeout: DefaultAcquireTimeout,
		MinimizedPoll:  DefaultMinimizedPoll,
	}
}

func (o *Options) fill(dev *Device) {
	def := DefaultOptions()
	if o.FrameOverlap == 0 {
		o.FrameOverlap = def.FrameOverlap
	}
	if o.Swapchain.Format == FormatUndefined {
		o.Swapchain.Format = def.Swapchain.Format
	}
	if o.Swapchain.ImageCount == 0 {
		o.Swapchain.ImageCount = def.Swapchain.ImageCount
	}
	if o.FenceTimeout <= 0 {
		o.FenceTimeout = def.FenceTimeout
	}
	if o.AcquireTimeout <= 0 {
		o.AcquireTimeout = def.AcquireTimeout
	}
	if o.MinimizedPoll <= 0 {
		o.MinimizedPoll = def.MinimizedPoll
	}
	if o.Logger == nil {
		o.Logger = dev.log
	}
}

// TickResult tells what a call to Tick did.
type TickResult int

const (
	// TickPresented means a frame was recorded, submitted and queued for present.
	TickPresented TickResult = iota
	// TickMinimized means the window has no drawable area and nothing was done.
	TickMinimized
	// TickStale means the swapchain went out of date on acquire. The swapchain
	// is recreated at the start of the next tick.
	TickStale
	// TickFailed accompanies every error returned by Tick.
	TickFailed
)

func (r TickResult) String() string {
	switch r {
	case TickPresented:
		return "presented"
	case TickMinimized:
		return "minimized"
	case TickStale:
		return "stale"
	case TickFailed:
		return "failed"
	}
	return "unknown"
}

// Renderer is the frame orchestrator. It owns the swapchain and the frame
// ring and runs one frame per Tick on the calling goroutine.
type Renderer struct {
	dev     *Device
	win     Window
	drawer  Drawer
	targets TargetBuilder
	opts    Options
	log     *slog.Logger

	swapchain     *Swapchain
	ring          *FrameRing
	stats         *FrameStats
	resizePending bool
	closed        bool
}

// NewRenderer creates the swapchain for the window's current framebuffer,
// the frame ring and, if drawer is a TargetBuilder, its render targets.
func NewRenderer(dev *Device, win Window, drawer Drawer, opts Options) (*Renderer, error) {
	if dev == nil || win == nil || drawer == nil {
		return nil, invalidArgf("renderer needs a device, a window and a drawer")
	}
	opts.fill(dev)
	if opts.FrameOverlap < MinFrameOverlap || opts.FrameOverlap > MaxFrameOverlap {
		return nil, invalidArgf("frame overlap %d outside [%d,%d]", opts.FrameOverlap, MinFrameOverlap, MaxFrameOverlap)
	}
	r := &Renderer{
		dev:    dev,
		win:    win,
		drawer: drawer,
		opts:   opts,
		log:    opts.Logger,
		stats:  NewFrameStats(),
	}
	if tb, ok := drawer.(TargetBuilder); ok {
		r.targets = tb
	}

	steps := NewInitPipeline(r.log).
		Add("swapchain", func(rollback *DeletionQueue) error {
			w, h := win.FramebufferSize()
			if w <= 0 || h <= 0 {
				return errors.Wrapf(ErrZeroExtent, "window framebuffer %dx%d", w, h)
			}
			sc := NewSwapchain(dev, opts.Swapchain)
			if err := sc.Create(uint32(w), uint32(h)); err != nil {
				return err
			}
			r.swapchain = sc
			rollback.PushFunc(sc.Destroy)
			return nil
		}).
		Add("frame ring", func(rollback *DeletionQueue) error {
			ring, err := NewFrameRing(dev, opts.FrameOverlap)
			if err != nil {
				return err
			}
			r.ring = ring
			rollback.PushFunc(ring.Destroy)
			return nil
		}).
		Add("render targets", func(rollback *DeletionQueue) error {
			if r.targets == nil {
				return nil
			}
			if err := r.targets.BuildTargets(r.swapchain); err != nil {
				return err
			}
			rollback.PushFunc(r.targets.ReleaseTargets)
			return nil
		})
	if _, err := steps.Run(); err != nil {
		return nil, err
	}
	r.log.Info("renderer ready",
		"frame_overlap", opts.FrameOverlap,
		"extent", r.swapchain.Extent().String(),
		"images", r.swapchain.ImageCount())
	return r, nil
}

// NotifyResize marks the swapchain for recreation at the start of the next
// tick. Hook it to the window's framebuffer resize event.
func (r *Renderer) NotifyResize() {
	r.resizePending = true
}

func (r *Renderer) ResizePending() bool   { return r.resizePending }
func (r *Renderer) Swapchain() *Swapchain { return r.swapchain }
func (r *Renderer) Ring() *FrameRing      { return r.ring }
func (r *Renderer) Stats() *FrameStats    { return r.stats }
func (r *Renderer) FrameCounter() uint64  { return r.ring.Counter() }

// Tick runs one frame: wait for the slot, reclaim its deferred deletions,
// acquire, record, submit and present. A minimized window costs no GPU work,
// and neither does a surface that reports a zero extent while the swapchain
// is being recreated: the recreation is retried on the next tick. Errors
// returned by Tick are fatal and come with TickFailed.
func (r *Renderer) Tick() (TickResult, error) {
	if r.closed {
		return TickFailed, ErrClosed
	}
	w, h := r.win.FramebufferSize()
	if r.win.Minimized() || w <= 0 || h <= 0 {
		return TickMinimized, nil
	}
	if r.resizePending {
		if err := r.recreate(uint32(w), uint32(h)); err != nil {
			if errors.Cause(err) == ErrZeroExtent {
				r.log.Debug("surface has no area, swapchain recreation deferred", "err", err)
				return TickMinimized, nil
			}
			return TickFailed, err
		}
	}

	slot := r.ring.Slot()
	if err := r.ring.Wait(r.opts.FenceTimeout); err != nil {
		return TickFailed, err
	}

	index, status, err := r.swapchain.AcquireNextImage(r.opts.AcquireTimeout, slot.ImageAcquired)
	if err != nil {
		return TickFailed, err
	}
	switch status {
	case AcquireOutOfDate:
		// The fence stays signaled and the counter stays put, so the next
		// tick reuses this slot as if nothing happened.
		r.resizePending = true
		r.log.Debug("swapchain out of date on acquire", "frame", r.ring.Counter())
		return TickStale, nil
	case AcquireTimedOut:
		return TickFailed, errors.Wrapf(ErrAcquireTimeout, "frame %d", r.ring.Counter())
	case AcquireSuboptimal:
		r.resizePending = true
	}

	if err := r.record(slot, index); err != nil {
		return TickFailed, err
	}
	if err := r.submit(slot); err != nil {
		return TickFailed, err
	}

	status, err = r.swapchain.Present(index, slot.RenderComplete)
	if err != nil {
		return TickFailed, err
	}
	if status == AcquireOutOfDate || status == AcquireSuboptimal {
		r.resizePending = true
	}

	r.ring.Advance()
	r.stats.Frame()
	return TickPresented, nil
}

func (r *Renderer) record(slot *FrameSlot, index uint32) error {
	drv := r.dev.drv
	if err := drv.ResetCommandBuffer(slot.Cmd); err != nil {
		return errors.Wrap(err, "reset command buffer")
	}
	if err := drv.BeginCommandBuffer(slot.Cmd); err != nil {
		return errors.Wrap(err, "begin command buffer")
	}
	frame := &Frame{
		Number:     r.ring.Counter(),
		Slot:       slot.Index,
		ImageIndex: index,
		Cmd:        slot.Cmd,
		Image:      r.swapchain.Image(int(index)),
		View:       r.swapchain.View(int(index)),
		DepthView:  r.swapchain.DepthView(),
		Extent:     r.swapchain.Extent(),
		Format:     r.swapchain.Format(),
		Deletions:  slot.Deletions,
		ring:       r.ring,
	}
	if err := r.drawer.Draw(frame); err != nil {
		return errors.Wrapf(err, "draw frame %d", frame.Number)
	}
	return errors.Wrap(drv.EndCommandBuffer(slot.Cmd), "end command buffer")
}

// submit resets the slot fence and hands the command buffer to the queue.
// The reset happens here and nowhere else, so an early return earlier in the
// tick can never leave an unsignaled fence behind.
func (r *Renderer) submit(slot *FrameSlot) error {
	drv := r.dev.drv
	if err := drv.ResetFence(slot.Fence); err != nil {
		return errors.Wrap(err, "reset frame fence")
	}
	err := drv.Submit(SubmitInfo{
		CommandBuffers: []CommandBuffer{slot.Cmd},
		Wait:           []Semaphore{slot.ImageAcquired},
		WaitStages:     []PipelineStage{StageColorAttachmentOutput},
		Signal:         []Semaphore{slot.RenderComplete},
		Fence:          slot.Fence,
	})
	return errors.Wrapf(err, "submit frame %d", r.ring.Counter())
}

func (r *Renderer) recreate(width, height uint32) error {
	if err := r.dev.WaitIdle(); err != nil {
		return err
	}
	if r.targets != nil {
		r.targets.ReleaseTargets()
	}
	if err := r.swapchain.Recreate(width, height); err != nil {
		return errors.Wrap(err, "recreate swapchain")
	}
	if r.targets != nil {
		if err := r.targets.BuildTargets(r.swapchain); err != nil {
			return errors.Wrap(err, "rebuild render targets")
		}
	}
	r.resizePending = false
	r.log.Info("swapchain recreated",
		"extent", r.swapchain.Extent().String(),
		"images", r.swapchain.ImageCount(),
		"generation", r.swapchain.Generation())
	return nil
}

// Run ticks until events asks to close, ctx is cancelled or a tick fails.
// Cancellation is observed between ticks only. While the window is minimized
// the loop sleeps for MinimizedPoll between polls.
func (r *Renderer) Run(ctx context.Context, events EventSource) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		events.PollEvents()
		if events.ShouldClose() {
			return nil
		}
		res, err := r.Tick()
		if err != nil {
			return err
		}
		if res != TickMinimized {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.opts.MinimizedPoll):
		}
	}
}

// Close waits for the device to go idle and destroys everything the renderer
// created. The device itself stays alive.
func (r *Renderer) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.dev.WaitIdle()
	if r.targets != nil {
		r.targets.ReleaseTargets()
	}
	r.ring.Destroy()
	r.swapchain.Destroy()
	r.log.Info("renderer closed", "frames", r.stats.Frames)
	return err
}
