package vkframe_test

import (
	"context"
	"testing"
	"time"

	"github.com/andewx/vkframe"
	"github.com/andewx/vkframe/internal/gputest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRenderer(t *testing.T, overlap int, drawer vkframe.Drawer) (*gputest.GPU, *gputest.Window, *vkframe.Renderer) {
	t.Helper()
	gpu, dev := newDevice(t)
	win := gputest.NewWindow(800, 600)
	r, err := vkframe.NewRenderer(dev, win, drawer, testOptions(overlap))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, r.Close())
		assert.NoError(t, dev.Destroy())
		assert.Equal(t, 0, gpu.Live(), "leaked %v", gpu.LiveKinds())
	})
	gpu.ResetCalls()
	return gpu, win, r
}

func tick(t *testing.T, r *vkframe.Renderer, want vkframe.TickResult) {
	t.Helper()
	got, err := r.Tick()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestTickCallOrder(t *testing.T) {
	gpu, _, r := newRenderer(t, 2, nopDraw)
	tick(t, r, vkframe.TickPresented)
	assert.Equal(t, []string{
		"WaitFence",
		"Acquire",
		"ResetCommandBuffer",
		"BeginCommandBuffer",
		"EndCommandBuffer",
		"ResetFence",
		"Submit",
		"Present",
	}, gpu.Ops())

	slot := r.Ring().Slot()
	require.Len(t, gpu.Submitted, 1)
	sub := gpu.Submitted[0]
	assert.NotEqual(t, slot.Fence, sub.Fence, "counter advanced to the next slot")
	assert.Equal(t, []vkframe.PipelineStage{vkframe.StageColorAttachmentOutput}, sub.WaitStages)
	require.Len(t, sub.Wait, 1)
	require.Len(t, sub.Signal, 1)
	assert.NotEqual(t, sub.Wait[0], sub.Signal[0])
}

func TestTenTicks(t *testing.T) {
	for _, overlap := range []int{2, 3} {
		gpu, _, r := newRenderer(t, overlap, nopDraw)
		for i := 0; i < 10; i++ {
			tick(t, r, vkframe.TickPresented)
		}
		assert.EqualValues(t, 10, r.FrameCounter())
		assert.Equal(t, 10, gpu.Count("Present"))
		assert.Equal(t, 10, gpu.Count("Submit"))
		assert.Equal(t, 0, gpu.Count("CreateSwapchain"))
		assert.EqualValues(t, 10, r.Stats().Frames)
	}
}

// Every submission with a slot fence must be preceded, since that fence's
// previous submission, by a wait on it and by exactly one reset.
func TestFenceWaitedBeforeSlotReuse(t *testing.T) {
	for _, overlap := range []int{2, 3} {
		gpu, _, r := newRenderer(t, overlap, nopDraw)
		for i := 0; i < 3*overlap+1; i++ {
			tick(t, r, vkframe.TickPresented)
		}

		type state struct {
			inFlight bool
			resets   int
		}
		fences := map[interface{}]*state{}
		get := func(f interface{}) *state {
			if fences[f] == nil {
				fences[f] = &state{}
			}
			return fences[f]
		}
		for _, c := range gpu.Calls() {
			switch c.Op {
			case "WaitFence":
				get(c.Handle).inFlight = false
			case "ResetFence":
				s := get(c.Handle)
				assert.False(t, s.inFlight, "reset of a fence the GPU may still signal")
				s.resets++
			case "Submit":
				s := get(c.Handle)
				assert.False(t, s.inFlight, "slot reused before its fence was waited on")
				assert.Equal(t, 1, s.resets, "one reset per submission")
				s.inFlight = true
				s.resets = 0
			}
		}
		assert.Len(t, fences, overlap)
	}
}

func TestOutOfDateOnAcquire(t *testing.T) {
	gpu, _, r := newRenderer(t, 2, nopDraw)
	tick(t, r, vkframe.TickPresented)
	gpu.ResetCalls()

	gpu.ScriptAcquire(vkframe.AcquireOutOfDate)
	tick(t, r, vkframe.TickStale)
	assert.EqualValues(t, 1, r.FrameCounter())
	assert.True(t, r.ResizePending())
	assert.Equal(t, []string{"WaitFence", "Acquire"}, gpu.Ops(), "no reset, submit or present")

	gpu.ResetCalls()
	tick(t, r, vkframe.TickPresented)
	assert.EqualValues(t, 2, r.FrameCounter())
	assert.False(t, r.ResizePending())
	assert.Equal(t, 1, gpu.Count("CreateSwapchain"))
	assert.Equal(t, 1, gpu.Count("Present"))
	assert.Equal(t, 2, r.Swapchain().Generation())
}

func TestSuboptimalAcquireStillPresents(t *testing.T) {
	gpu, _, r := newRenderer(t, 2, nopDraw)
	gpu.ScriptAcquire(vkframe.AcquireSuboptimal)
	tick(t, r, vkframe.TickPresented)
	assert.True(t, r.ResizePending())
	assert.Equal(t, 1, gpu.Count("Present"))

	tick(t, r, vkframe.TickPresented)
	assert.Equal(t, 1, gpu.Count("CreateSwapchain"))
}

func TestOutOfDateOnPresent(t *testing.T) {
	gpu, _, r := newRenderer(t, 2, nopDraw)
	gpu.ScriptPresent(vkframe.AcquireOutOfDate)
	tick(t, r, vkframe.TickPresented)
	assert.EqualValues(t, 1, r.FrameCounter(), "the frame was submitted, so the counter moves")
	assert.True(t, r.ResizePending())

	tick(t, r, vkframe.TickPresented)
	assert.False(t, r.ResizePending())
	assert.Equal(t, 1, gpu.Count("DestroySwapchain"))
}

func TestMinimizedTickDoesNoGPUWork(t *testing.T) {
	gpu, win, r := newRenderer(t, 2, nopDraw)
	win.Iconified = true
	for i := 0; i < 5; i++ {
		tick(t, r, vkframe.TickMinimized)
	}
	win.Iconified = false
	win.Width, win.Height = 0, 0
	r.NotifyResize()
	tick(t, r, vkframe.TickMinimized)

	assert.Empty(t, gpu.Calls())
	assert.EqualValues(t, 0, r.FrameCounter())
}

func TestResizeBetweenTicks(t *testing.T) {
	drawer := &targets{}
	gpu, win, r := newRenderer(t, 2, drawer)
	require.Equal(t, 1, drawer.builds)

	for i := 0; i < 3; i++ {
		tick(t, r, vkframe.TickPresented)
	}
	gpu.SetSurfaceExtent(1024, 768)
	win.Width, win.Height = 1024, 768
	r.NotifyResize()
	for i := 3; i < 10; i++ {
		tick(t, r, vkframe.TickPresented)
	}

	assert.EqualValues(t, 10, r.FrameCounter())
	assert.Equal(t, 10, gpu.Count("Present"))
	assert.Equal(t, 1, gpu.Count("DestroySwapchain"))
	assert.Equal(t, 1, gpu.Count("CreateSwapchain"))
	assert.Equal(t, vkframe.Extent2D{Width: 1024, Height: 768}, r.Swapchain().Extent())

	assert.Equal(t, 2, drawer.builds)
	assert.Equal(t, 1, drawer.releases)
	assert.Equal(t, []int{1, 2}, drawer.generations)
	require.Len(t, drawer.frames, 10)
	assert.Equal(t, vkframe.Extent2D{Width: 800, Height: 600}, drawer.frames[2].Extent)
	assert.Equal(t, vkframe.Extent2D{Width: 1024, Height: 768}, drawer.frames[3].Extent)

	ops := gpu.Ops()
	assert.Less(t, indexOf(ops, "WaitIdle"), indexOf(ops, "DestroySwapchain"))
}

func TestFrameContext(t *testing.T) {
	drawer := &targets{}
	_, _, r := newRenderer(t, 3, drawer)
	for i := 0; i < 4; i++ {
		tick(t, r, vkframe.TickPresented)
	}
	require.Len(t, drawer.frames, 4)
	for i, f := range drawer.frames {
		assert.EqualValues(t, i, f.Number)
		assert.Equal(t, i%3, f.Slot)
		assert.EqualValues(t, i%3, f.ImageIndex)
		assert.Same(t, r.Swapchain().View(int(f.ImageIndex)), f.View)
		assert.NotNil(t, f.DepthView)
		assert.NotNil(t, f.Deletions)
		assert.Equal(t, vkframe.FormatB8G8R8A8Srgb, f.Format)
	}
}

func TestFrameDeletionsWaitForSlotFence(t *testing.T) {
	released := -1
	frames := 0
	drawer := vkframe.DrawFunc(func(f *vkframe.Frame) error {
		if f.Number == 0 {
			f.Deletions.PushFunc(func() { released = frames })
		}
		frames++
		return nil
	})
	_, _, r := newRenderer(t, 2, drawer)

	tick(t, r, vkframe.TickPresented)
	tick(t, r, vkframe.TickPresented)
	assert.Equal(t, -1, released, "slot 0 still in flight")
	tick(t, r, vkframe.TickPresented)
	assert.Equal(t, 2, released, "released at the start of frame 2, before it is drawn")
}

func TestFrameRetireOutlivesFramesInFlight(t *testing.T) {
	released := -1
	frames := 0
	drawer := vkframe.DrawFunc(func(f *vkframe.Frame) error {
		if f.Number == 0 {
			f.Retire(func() { released = frames })
		}
		frames++
		return nil
	})
	_, _, r := newRenderer(t, 3, drawer)

	for i := 0; i < 3; i++ {
		tick(t, r, vkframe.TickPresented)
		assert.Equal(t, -1, released, "after frame %d", i)
	}
	tick(t, r, vkframe.TickPresented)
	assert.Equal(t, 3, released, "released once slots 1, 2 and 0 were all waited on")
}

func TestZeroSurfaceExtentDefersRecreate(t *testing.T) {
	drawer := &targets{}
	gpu, _, r := newRenderer(t, 2, drawer)
	tick(t, r, vkframe.TickPresented)

	gpu.SetSurfaceExtent(0, 0)
	r.NotifyResize()
	tick(t, r, vkframe.TickMinimized)
	tick(t, r, vkframe.TickMinimized)
	assert.True(t, r.ResizePending())
	assert.Nil(t, r.Swapchain().Handle())
	assert.False(t, drawer.live)
	assert.Equal(t, 1, gpu.Count("Present"))

	gpu.SetSurfaceExtent(800, 600)
	tick(t, r, vkframe.TickPresented)
	assert.False(t, r.ResizePending())
	assert.Equal(t, 2, r.Swapchain().Generation())
	assert.True(t, drawer.live)
	assert.EqualValues(t, 2, r.FrameCounter())
}

func TestRunSurvivesZeroSurfaceExtent(t *testing.T) {
	gpu, dev := newDevice(t)
	win := gputest.NewWindow(800, 600)
	opts := testOptions(2)
	opts.MinimizedPoll = time.Millisecond
	r, err := vkframe.NewRenderer(dev, win, nopDraw, opts)
	require.NoError(t, err)
	tick(t, r, vkframe.TickPresented)

	gpu.SetSurfaceExtent(0, 0)
	r.NotifyResize()
	win.OnPoll = func(n int) {
		if n == 3 {
			gpu.SetSurfaceExtent(800, 600)
		}
	}
	win.CloseAfter = 5
	err = r.Run(context.Background(), win)
	require.NoError(t, err, "fatal=%v", vkframe.IsFatal(err))
	assert.EqualValues(t, 3, r.FrameCounter(), "polls 3 and 4 present")
	assert.False(t, r.ResizePending())

	require.NoError(t, r.Close())
	require.NoError(t, dev.Destroy())
	assert.Equal(t, 0, gpu.Live(), "leaked %v", gpu.LiveKinds())
}

func TestFenceTimeoutIsFatal(t *testing.T) {
	gpu, _, r := newRenderer(t, 2, nopDraw)
	gpu.FailNext("WaitFence", errors.Wrap(vkframe.ErrFenceTimeout, "1s"))
	res, err := r.Tick()
	assert.Equal(t, vkframe.TickFailed, res)
	assert.Equal(t, vkframe.ErrFenceTimeout, errors.Cause(err))
	assert.True(t, vkframe.IsFatal(err))
	assert.Equal(t, 0, gpu.Count("Acquire"))
}

func TestAcquireTimeoutIsFatal(t *testing.T) {
	gpu, _, r := newRenderer(t, 2, nopDraw)
	gpu.ScriptAcquire(vkframe.AcquireTimedOut)
	res, err := r.Tick()
	assert.Equal(t, vkframe.TickFailed, res)
	assert.Equal(t, vkframe.ErrAcquireTimeout, errors.Cause(err))
	assert.Equal(t, 0, gpu.Count("Submit"))
}

func TestDrawErrorIsReturned(t *testing.T) {
	gpu, _, r := newRenderer(t, 2, vkframe.DrawFunc(func(*vkframe.Frame) error {
		return errors.New("pipeline missing")
	}))
	_, err := r.Tick()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline missing")
	assert.Equal(t, 0, gpu.Count("Submit"))
}

func TestRunStopsWhenWindowCloses(t *testing.T) {
	_, win, r := newRenderer(t, 2, nopDraw)
	win.CloseAfter = 5
	require.NoError(t, r.Run(context.Background(), win))
	assert.EqualValues(t, 4, r.FrameCounter())
}

func TestRunStopsOnCancel(t *testing.T) {
	_, win, r := newRenderer(t, 2, nopDraw)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	win.OnPoll = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	require.NoError(t, r.Run(ctx, win))
	assert.EqualValues(t, 3, r.FrameCounter(), "the tick in progress completes")
}

func TestRunWhileMinimized(t *testing.T) {
	gpu, dev := newDevice(t)
	win := gputest.NewWindow(800, 600)
	opts := testOptions(2)
	opts.MinimizedPoll = time.Millisecond
	r, err := vkframe.NewRenderer(dev, win, nopDraw, opts)
	require.NoError(t, err)
	gpu.ResetCalls()

	win.Iconified = true
	win.CloseAfter = 4
	start := time.Now()
	require.NoError(t, r.Run(context.Background(), win))
	assert.GreaterOrEqual(t, time.Since(start), 3*time.Millisecond)
	assert.Empty(t, gpu.Calls())

	require.NoError(t, r.Close())
	require.NoError(t, dev.Destroy())
}

func TestCloseReleasesEverything(t *testing.T) {
	gpu, dev := newDevice(t)
	drawer := &targets{}
	r, err := vkframe.NewRenderer(dev, gputest.NewWindow(800, 600), drawer, testOptions(3))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		tick(t, r, vkframe.TickPresented)
	}

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.False(t, drawer.live)
	assert.Equal(t, 2, gpu.Live(), "only the device's immediate context is left")

	res, err := r.Tick()
	assert.Equal(t, vkframe.ErrClosed, err)
	assert.Equal(t, vkframe.TickFailed, res)

	require.NoError(t, dev.Destroy())
	assert.Equal(t, 0, gpu.Live())
}

func TestNewRendererRollsBack(t *testing.T) {
	gpu, dev := newDevice(t)
	base := gpu.Live()
	gpu.FailNext("CreateSemaphore", errors.New("no semaphores"))

	_, err := vkframe.NewRenderer(dev, gputest.NewWindow(800, 600), &targets{}, testOptions(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init frame ring")
	assert.Equal(t, base, gpu.Live())
}

func TestNewRendererValidation(t *testing.T) {
	_, dev := newDevice(t)

	_, err := vkframe.NewRenderer(dev, gputest.NewWindow(0, 0), nopDraw, testOptions(2))
	assert.Equal(t, vkframe.ErrZeroExtent, errors.Cause(err))

	_, err = vkframe.NewRenderer(dev, gputest.NewWindow(800, 600), nopDraw, testOptions(4))
	assert.Equal(t, vkframe.ErrInvalidArgument, errors.Cause(err))

	_, err = vkframe.NewRenderer(dev, nil, nopDraw, testOptions(2))
	assert.Equal(t, vkframe.ErrInvalidArgument, errors.Cause(err))
}
