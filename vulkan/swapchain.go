package vulkan

import (
	"time"

	"github.com/andewx/vkframe"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

func (d *Driver) CreateSwapchain(desc vkframe.SwapchainDesc) (vkframe.SwapchainInfo, error) {
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(d.gpu, d.surface, &caps)
	if err := check(ret, "vkGetPhysicalDeviceSurfaceCapabilities"); err != nil {
		return vkframe.SwapchainInfo{}, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	extent := chooseExtent(desc.Extent,
		vkframe.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
		vkframe.Extent2D{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
		vkframe.Extent2D{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height})
	if extent.Zero() {
		return vkframe.SwapchainInfo{}, errors.Wrapf(vkframe.ErrZeroExtent, "surface extent %s", extent)
	}

	format, err := d.surfaceFormat(desc.Format)
	if err != nil {
		return vkframe.SwapchainInfo{}, err
	}
	present, err := d.presentMode(desc.PresentMode)
	if err != nil {
		return vkframe.SwapchainInfo{}, err
	}

	preTransform := vk.SurfaceTransformIdentityBit
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&preTransform == 0 {
		preTransform = caps.CurrentTransform
	}
	compositeAlpha := vk.CompositeAlphaOpaqueBit
	for _, flag := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(flag) != 0 {
			compositeAlpha = flag
			break
		}
	}

	var swapchain vk.Swapchain
	ret = vk.CreateSwapchain(d.device, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.surface,
		MinImageCount:    chooseImageCount(desc.ImageCount, caps.MinImageCount, caps.MaxImageCount),
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      vk.Extent2D{Width: extent.Width, Height: extent.Height},
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		PreTransform:     preTransform,
		CompositeAlpha:   compositeAlpha,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		PresentMode:      present,
		OldSwapchain:     vk.NullSwapchain,
		Clipped:          vk.True,
	}, nil, &swapchain)
	if err := check(ret, "vkCreateSwapchainKHR"); err != nil {
		return vkframe.SwapchainInfo{}, err
	}

	var count uint32
	ret = vk.GetSwapchainImages(d.device, swapchain, &count, nil)
	if err := check(ret, "vkGetSwapchainImagesKHR"); err != nil {
		vk.DestroySwapchain(d.device, swapchain, nil)
		return vkframe.SwapchainInfo{}, err
	}
	images := make([]vk.Image, count)
	ret = vk.GetSwapchainImages(d.device, swapchain, &count, images)
	if err := check(ret, "vkGetSwapchainImagesKHR"); err != nil {
		vk.DestroySwapchain(d.device, swapchain, nil)
		return vkframe.SwapchainInfo{}, err
	}

	info := vkframe.SwapchainInfo{
		Handle: swapchain,
		Images: make([]vkframe.Image, count),
		Format: vkframe.Format(format.Format),
		Extent: extent,
	}
	for i, img := range images {
		info.Images[i] = img
	}
	d.log.Debug("vulkan: swapchain created",
		"extent", extent.String(), "images", count, "format", info.Format.String(), "present", vkframe.PresentMode(present).String())
	return info, nil
}

func (d *Driver) DestroySwapchain(sc vkframe.SwapchainHandle) {
	vk.DestroySwapchain(d.device, handle[vk.Swapchain](sc), nil)
}

func (d *Driver) AcquireNextImage(sc vkframe.SwapchainHandle, timeout time.Duration, signal vkframe.Semaphore) (uint32, vkframe.AcquireStatus, error) {
	var index uint32
	ret := vk.AcquireNextImage(d.device, handle[vk.Swapchain](sc), uint64(timeout.Nanoseconds()),
		handle[vk.Semaphore](signal), vk.NullFence, &index)
	status, err := presentStatus(ret, "vkAcquireNextImageKHR")
	return index, status, err
}

func (d *Driver) Present(sc vkframe.SwapchainHandle, index uint32, wait vkframe.Semaphore) (vkframe.AcquireStatus, error) {
	info := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{handle[vk.Swapchain](sc)},
		PImageIndices:  []uint32{index},
	}
	if wait != nil {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{handle[vk.Semaphore](wait)}
	}
	return presentStatus(vk.QueuePresent(d.queue, &info), "vkQueuePresentKHR")
}

// presentStatus turns the swapchain results the frame loop recovers from
// into statuses.
func presentStatus(ret vk.Result, op string) (vkframe.AcquireStatus, error) {
	switch ret {
	case vk.Success:
		return vkframe.AcquireOK, nil
	case vk.Suboptimal:
		return vkframe.AcquireSuboptimal, nil
	case vk.ErrorOutOfDate:
		return vkframe.AcquireOutOfDate, nil
	case vk.Timeout, vk.NotReady:
		return vkframe.AcquireTimedOut, nil
	}
	return vkframe.AcquireOK, check(ret, op)
}

func (d *Driver) surfaceFormat(want vkframe.Format) (vk.SurfaceFormat, error) {
	var count uint32
	ret := vk.GetPhysicalDeviceSurfaceFormats(d.gpu, d.surface, &count, nil)
	if err := check(ret, "vkGetPhysicalDeviceSurfaceFormats"); err != nil {
		return vk.SurfaceFormat{}, err
	}
	if count == 0 {
		return vk.SurfaceFormat{}, errors.New("surface has no pixel formats")
	}
	formats := make([]vk.SurfaceFormat, count)
	ret = vk.GetPhysicalDeviceSurfaceFormats(d.gpu, d.surface, &count, formats)
	if err := check(ret, "vkGetPhysicalDeviceSurfaceFormats"); err != nil {
		return vk.SurfaceFormat{}, err
	}
	for i := range formats {
		formats[i].Deref()
	}
	return chooseSurfaceFormat(formats, vk.Format(want)), nil
}

func (d *Driver) presentMode(want vkframe.PresentMode) (vk.PresentMode, error) {
	var count uint32
	ret := vk.GetPhysicalDeviceSurfacePresentModes(d.gpu, d.surface, &count, nil)
	if err := check(ret, "vkGetPhysicalDeviceSurfacePresentModes"); err != nil {
		return vk.PresentModeFifo, err
	}
	modes := make([]vk.PresentMode, count)
	ret = vk.GetPhysicalDeviceSurfacePresentModes(d.gpu, d.surface, &count, modes)
	if err := check(ret, "vkGetPhysicalDeviceSurfacePresentModes"); err != nil {
		return vk.PresentModeFifo, err
	}
	return choosePresentMode(modes, vk.PresentMode(want)), nil
}

// chooseSurfaceFormat prefers want in the sRGB non-linear color space. A
// single undefined entry means the surface takes any format.
func chooseSurfaceFormat(formats []vk.SurfaceFormat, want vk.Format) vk.SurfaceFormat {
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return vk.SurfaceFormat{Format: want, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	}
	for _, f := range formats {
		if f.Format == want && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	for _, f := range formats {
		if f.Format == want {
			return f
		}
	}
	return formats[0]
}

// choosePresentMode falls back to FIFO, which every surface supports.
func choosePresentMode(modes []vk.PresentMode, want vk.PresentMode) vk.PresentMode {
	for _, m := range modes {
		if m == want {
			return m
		}
	}
	return vk.PresentModeFifo
}

// chooseExtent uses the surface's current extent unless the window system
// leaves it to the swapchain, in which case want is clamped to the limits.
func chooseExtent(want, current, lo, hi vkframe.Extent2D) vkframe.Extent2D {
	if current.Width != vk.MaxUint32 {
		return current
	}
	return vkframe.Extent2D{
		Width:  clamp(want.Width, lo.Width, hi.Width),
		Height: clamp(want.Height, lo.Height, hi.Height),
	}
}

// chooseImageCount clamps want to the surface limits; a max of zero means
// no upper limit.
func chooseImageCount(want, lo, hi uint32) uint32 {
	if want < lo {
		want = lo
	}
	if hi > 0 && want > hi {
		want = hi
	}
	return want
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
