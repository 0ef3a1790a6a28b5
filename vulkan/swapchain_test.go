package vulkan

import (
	"testing"

	"github.com/andewx/vkframe"
	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"
)

func TestChooseExtent(t *testing.T) {
	lo := vkframe.Extent2D{Width: 1, Height: 1}
	hi := vkframe.Extent2D{Width: 4096, Height: 2048}

	current := vkframe.Extent2D{Width: 640, Height: 480}
	assert.Equal(t, current, chooseExtent(vkframe.Extent2D{Width: 800, Height: 600}, current, lo, hi))

	undefined := vkframe.Extent2D{Width: vk.MaxUint32, Height: vk.MaxUint32}
	assert.Equal(t, vkframe.Extent2D{Width: 800, Height: 600},
		chooseExtent(vkframe.Extent2D{Width: 800, Height: 600}, undefined, lo, hi))
	assert.Equal(t, vkframe.Extent2D{Width: 4096, Height: 1},
		chooseExtent(vkframe.Extent2D{Width: 9000, Height: 0}, undefined, lo, hi))

	// a minimized window reports a zero current extent
	zero := chooseExtent(vkframe.Extent2D{Width: 800, Height: 600}, vkframe.Extent2D{}, lo, hi)
	assert.True(t, zero.Zero())
}

func TestChooseImageCount(t *testing.T) {
	assert.Equal(t, uint32(3), chooseImageCount(3, 2, 8))
	assert.Equal(t, uint32(2), chooseImageCount(1, 2, 8))
	assert.Equal(t, uint32(2), chooseImageCount(3, 1, 2))
	assert.Equal(t, uint32(5), chooseImageCount(5, 2, 0))
}

func TestChooseSurfaceFormat(t *testing.T) {
	want := vk.Format(vkframe.FormatB8G8R8A8Srgb)

	undefinedOnly := []vk.SurfaceFormat{{Format: vk.FormatUndefined}}
	assert.Equal(t, want, chooseSurfaceFormat(undefinedOnly, want).Format)

	formats := []vk.SurfaceFormat{
		{Format: vk.Format(vkframe.FormatB8G8R8A8Unorm), ColorSpace: vk.ColorSpaceSrgbNonlinear},
		{Format: want, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	}
	assert.Equal(t, want, chooseSurfaceFormat(formats, want).Format)
	assert.Equal(t, vk.Format(vkframe.FormatB8G8R8A8Unorm),
		chooseSurfaceFormat(formats, vk.Format(vkframe.FormatR16G16B16A16Sfloat)).Format)
}

func TestChoosePresentMode(t *testing.T) {
	modes := []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}
	assert.Equal(t, vk.PresentModeMailbox, choosePresentMode(modes, vk.PresentModeMailbox))
	assert.Equal(t, vk.PresentModeFifo, choosePresentMode(modes, vk.PresentModeImmediate))
}

func TestPresentStatus(t *testing.T) {
	cases := map[vk.Result]vkframe.AcquireStatus{
		vk.Success:        vkframe.AcquireOK,
		vk.Suboptimal:     vkframe.AcquireSuboptimal,
		vk.ErrorOutOfDate: vkframe.AcquireOutOfDate,
		vk.Timeout:        vkframe.AcquireTimedOut,
		vk.NotReady:       vkframe.AcquireTimedOut,
	}
	for ret, want := range cases {
		status, err := presentStatus(ret, "acquire")
		assert.NoError(t, err)
		assert.Equal(t, want, status)
	}

	_, err := presentStatus(vk.ErrorDeviceLost, "present")
	assert.ErrorIs(t, err, vkframe.ErrDeviceLost)
	assert.True(t, vkframe.IsFatal(err))
}
