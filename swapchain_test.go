package vkframe_test

import (
	"testing"

	"github.com/andewx/vkframe"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwapchainCreateDestroyCreate(t *testing.T) {
	gpu, dev := newDevice(t)
	base := gpu.Live()
	sc := vkframe.NewSwapchain(dev, vkframe.DefaultSwapchainConfig())

	require.NoError(t, sc.Create(800, 600))
	count, format := sc.ImageCount(), sc.Format()
	assert.Equal(t, 3, count)
	assert.Equal(t, vkframe.FormatB8G8R8A8Srgb, format)
	assert.Equal(t, vkframe.Extent2D{Width: 800, Height: 600}, sc.Extent())
	assert.NotNil(t, sc.DepthView())
	assert.Equal(t, 1, sc.Generation())

	sc.Destroy()
	assert.Equal(t, base, gpu.Live())
	sc.Destroy()

	require.NoError(t, sc.Create(800, 600))
	assert.Equal(t, count, sc.ImageCount())
	assert.Equal(t, format, sc.Format())
	assert.Equal(t, 2, sc.Generation())
	sc.Destroy()
}

func TestSwapchainImageCountClamped(t *testing.T) {
	_, dev := newDevice(t)
	cfg := vkframe.DefaultSwapchainConfig()
	cfg.ImageCount = 8
	sc := vkframe.NewSwapchain(dev, cfg)
	require.NoError(t, sc.Create(800, 600))
	assert.Equal(t, 3, sc.ImageCount())
	for i := 0; i < sc.ImageCount(); i++ {
		assert.NotNil(t, sc.Image(i))
		assert.NotNil(t, sc.View(i))
	}
}

func TestSwapchainWithoutDepth(t *testing.T) {
	_, dev := newDevice(t)
	cfg := vkframe.DefaultSwapchainConfig()
	cfg.DepthFormat = vkframe.FormatUndefined
	sc := vkframe.NewSwapchain(dev, cfg)
	require.NoError(t, sc.Create(640, 480))
	assert.Nil(t, sc.DepthView())
	assert.Nil(t, sc.Depth())
}

func TestSwapchainZeroExtent(t *testing.T) {
	gpu, dev := newDevice(t)
	sc := vkframe.NewSwapchain(dev, vkframe.DefaultSwapchainConfig())
	gpu.ResetCalls()

	err := sc.Create(0, 600)
	assert.Equal(t, vkframe.ErrZeroExtent, errors.Cause(err))
	assert.Empty(t, gpu.Ops())
}

func TestSwapchainCreateRollsBack(t *testing.T) {
	gpu, dev := newDevice(t)
	base := gpu.Live()
	sc := vkframe.NewSwapchain(dev, vkframe.DefaultSwapchainConfig())

	gpu.FailNext("CreateImage", errors.Wrap(vkframe.ErrOutOfMemory, "depth"))
	err := sc.Create(800, 600)
	assert.Equal(t, vkframe.ErrOutOfMemory, errors.Cause(err))
	assert.Equal(t, base, gpu.Live())
	assert.Nil(t, sc.Handle())

	require.NoError(t, sc.Create(800, 600), "a failed create leaves the manager reusable")
}

func TestSwapchainRecreateWaitsIdleFirst(t *testing.T) {
	gpu, dev := newDevice(t)
	sc := vkframe.NewSwapchain(dev, vkframe.DefaultSwapchainConfig())
	require.NoError(t, sc.Create(800, 600))
	gpu.SetSurfaceExtent(1280, 720)
	gpu.ResetCalls()

	require.NoError(t, sc.Recreate(1280, 720))
	ops := gpu.Ops()
	assert.Equal(t, "WaitIdle", ops[0])
	assert.Less(t, indexOf(ops, "DestroySwapchain"), indexOf(ops, "CreateSwapchain"))
	assert.Equal(t, vkframe.Extent2D{Width: 1280, Height: 720}, sc.Extent())
}

func TestSwapchainAcquireAfterDestroy(t *testing.T) {
	_, dev := newDevice(t)
	sc := vkframe.NewSwapchain(dev, vkframe.DefaultSwapchainConfig())
	_, _, err := sc.AcquireNextImage(0, nil)
	assert.Equal(t, vkframe.ErrClosed, errors.Cause(err))
	_, err = sc.Present(0, nil)
	assert.Equal(t, vkframe.ErrClosed, errors.Cause(err))
}

func indexOf(ops []string, op string) int {
	for i, o := range ops {
		if o == op {
			return i
		}
	}
	return -1
}
