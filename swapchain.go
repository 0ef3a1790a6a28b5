package vkframe

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

// SwapchainConfig holds the requested swapchain shape. The driver clamps
// ImageCount to what the surface supports.
type SwapchainConfig struct {
	ImageCount  uint32
	Format      Format
	PresentMode PresentMode
	// DepthFormat enables a depth image matching the swapchain extent.
	// FormatUndefined disables it.
	DepthFormat Format
}

func DefaultSwapchainConfig() SwapchainConfig {
	return SwapchainConfig{
		ImageCount:  3,
		Format:      FormatB8G8R8A8Srgb,
		PresentMode: PresentModeFifo,
		DepthFormat: FormatD32Sfloat,
	}
}

// Swapchain manages the presentable image chain: images, their views, the
// optional depth image, acquire and present. It reports surface status and
// leaves the decision to recreate to its owner.
type Swapchain struct {
	dev *Device
	cfg SwapchainConfig
	log *slog.Logger

	handle     SwapchainHandle
	images     []Image
	views      []ImageView
	format     Format
	extent     Extent2D
	depth      *AllocatedImage
	generation int
}

func NewSwapchain(dev *Device, cfg SwapchainConfig) *Swapchain {
	return &Swapchain{dev: dev, cfg: cfg, log: dev.log}
}

// Create builds the swapchain for a framebuffer of width x height pixels.
func (s *Swapchain) Create(width, height uint32) (err error) {
	if s.handle != nil {
		return invalidArgf("swapchain already created")
	}
	if width == 0 || height == 0 {
		return errors.Wrapf(ErrZeroExtent, "create swapchain %dx%d", width, height)
	}
	drv := s.dev.drv
	info, err := drv.CreateSwapchain(SwapchainDesc{
		Extent:      Extent2D{width, height},
		ImageCount:  s.cfg.ImageCount,
		Format:      s.cfg.Format,
		PresentMode: s.cfg.PresentMode,
	})
	if err != nil {
		return errors.Wrap(err, "create swapchain")
	}

	rollback := NewDeletionQueue(len(info.Images) + 2)
	defer func() {
		if err != nil {
			rollback.Flush()
		}
	}()
	rollback.PushFunc(func() { drv.DestroySwapchain(info.Handle) })

	views := make([]ImageView, 0, len(info.Images))
	for i, img := range info.Images {
		view, err := drv.CreateImageView(img, info.Format, ImageAspectColor)
		if err != nil {
			return errors.Wrapf(err, "create view for swapchain image %d", i)
		}
		rollback.Push(imageViewReleaser{drv, view})
		views = append(views, view)
	}

	var depth *AllocatedImage
	if s.cfg.DepthFormat != FormatUndefined {
		depth, err = s.dev.CreateImage(ImageDesc{
			Extent: info.Extent,
			Format: s.cfg.DepthFormat,
			Usage:  ImageUsageDepthStencilAttachment,
			Aspect: ImageAspectDepth,
		}, ResidencyGPUOnly)
		if err != nil {
			return errors.Wrap(err, "create depth image")
		}
	}

	s.handle = info.Handle
	s.images = info.Images
	s.views = views
	s.format = info.Format
	s.extent = info.Extent
	s.depth = depth
	s.generation++
	s.log.Debug("swapchain created",
		"extent", s.extent.String(),
		"images", len(s.images),
		"format", uint32(s.format),
		"generation", s.generation)
	return nil
}

// Destroy releases the depth image, the image views and the swapchain. The
// caller guarantees the GPU no longer uses any of them. Destroy on a
// destroyed swapchain does nothing.
func (s *Swapchain) Destroy() {
	if s.handle == nil {
		return
	}
	drv := s.dev.drv
	if s.depth != nil {
		s.depth.Release()
		s.depth = nil
	}
	for i := len(s.views) - 1; i >= 0; i-- {
		drv.DestroyImageView(s.views[i])
	}
	drv.DestroySwapchain(s.handle)
	s.handle = nil
	s.images = nil
	s.views = nil
}

// Recreate waits for the device to go idle, destroys the swapchain and
// creates it again at the new size.
func (s *Swapchain) Recreate(width, height uint32) error {
	if err := s.dev.WaitIdle(); err != nil {
		return err
	}
	s.Destroy()
	return s.Create(width, height)
}

// AcquireNextImage asks for the next presentable image; signal is signaled
// once the image may be rendered to.
func (s *Swapchain) AcquireNextImage(timeout time.Duration, signal Semaphore) (uint32, AcquireStatus, error) {
	if s.handle == nil {
		return 0, AcquireOutOfDate, errors.Wrap(ErrClosed, "acquire on destroyed swapchain")
	}
	index, status, err := s.dev.drv.AcquireNextImage(s.handle, timeout, signal)
	if err != nil {
		return 0, status, errors.Wrap(err, "acquire next image")
	}
	if (status == AcquireOK || status == AcquireSuboptimal) && int(index) >= len(s.images) {
		return 0, status, errors.Errorf("acquired image index %d out of range [0,%d)", index, len(s.images))
	}
	return index, status, nil
}

// Present queues image index for presentation once wait is signaled.
func (s *Swapchain) Present(index uint32, wait Semaphore) (AcquireStatus, error) {
	if s.handle == nil {
		return AcquireOutOfDate, errors.Wrap(ErrClosed, "present on destroyed swapchain")
	}
	status, err := s.dev.drv.Present(s.handle, index, wait)
	return status, errors.Wrap(err, "present")
}

func (s *Swapchain) Handle() SwapchainHandle { return s.handle }
func (s *Swapchain) Extent() Extent2D        { return s.extent }
func (s *Swapchain) Format() Format          { return s.format }
func (s *Swapchain) ImageCount() int         { return len(s.images) }
func (s *Swapchain) Image(i int) Image       { return s.images[i] }
func (s *Swapchain) View(i int) ImageView    { return s.views[i] }
func (s *Swapchain) Generation() int         { return s.generation }
func (s *Swapchain) Config() SwapchainConfig { return s.cfg }
func (s *Swapchain) Depth() *AllocatedImage  { return s.depth }

// DepthView returns the depth image view, or nil without a depth image.
func (s *Swapchain) DepthView() ImageView {
	if s.depth == nil {
		return nil
	}
	return s.depth.View
}
