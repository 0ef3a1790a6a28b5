package vkframe

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultImmediateTimeout bounds the fence wait of an immediate submission.
	DefaultImmediateTimeout = 10 * time.Second

	globalQueueCapacity = 64
)

// Device is the graphics device context. It wraps a Driver, owns the global
// deletion queue for long-lived objects and the immediate-submit context.
// Create one per process; destroy it after every renderer built on it.
type Device struct {
	drv              Driver
	info             DeviceInfo
	log              *slog.Logger
	deletions        *DeletionQueue
	immediate        *ImmediateSubmit
	immediateTimeout time.Duration
	destroyed        bool
}

type DeviceOption func(*Device)

func WithLogger(log *slog.Logger) DeviceOption {
	return func(d *Device) {
		if log != nil {
			d.log = log
		}
	}
}

func WithImmediateTimeout(timeout time.Duration) DeviceOption {
	return func(d *Device) {
		if timeout > 0 {
			d.immediateTimeout = timeout
		}
	}
}

func NewDevice(drv Driver, opts ...DeviceOption) (*Device, error) {
	if drv == nil {
		return nil, invalidArgf("nil driver")
	}
	d := &Device{
		drv:              drv,
		info:             drv.Info(),
		log:              slog.Default(),
		deletions:        NewDeletionQueue(globalQueueCapacity),
		immediateTimeout: DefaultImmediateTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	imm, err := newImmediateSubmit(drv, d.immediateTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "create immediate submit context")
	}
	d.immediate = imm
	d.deletions.Push(imm)
	d.log.Info("device ready",
		"gpu", d.info.Name,
		"queue_family", d.info.QueueFamily,
		"api", apiVersionString(d.info.APIVersion))
	return d, nil
}

func (d *Device) Driver() Driver            { return d.drv }
func (d *Device) Info() DeviceInfo          { return d.info }
func (d *Device) Logger() *slog.Logger      { return d.log }
func (d *Device) Deletions() *DeletionQueue { return d.deletions }

func (d *Device) WaitIdle() error {
	return errors.Wrap(d.drv.WaitIdle(), "device wait idle")
}

// Immediate records a one-off command buffer with record, submits it and
// blocks until the GPU has executed it.
func (d *Device) Immediate(record func(cmd CommandBuffer) error) error {
	if d.destroyed {
		return ErrClosed
	}
	return d.immediate.Run(record)
}

// CreateBuffer allocates a buffer and its memory. The caller owns the result
// and usually pushes it onto a deletion queue.
func (d *Device) CreateBuffer(size uint64, usage BufferUsage, res Residency) (*AllocatedBuffer, error) {
	if size == 0 {
		return nil, invalidArgf("zero sized buffer")
	}
	if err := checkResidency(res); err != nil {
		return nil, err
	}
	buf, alloc, err := d.drv.CreateBuffer(size, usage, res)
	if err != nil {
		return nil, errors.Wrapf(err, "create %d byte %s buffer", size, res)
	}
	return &AllocatedBuffer{
		Buffer:     buf,
		Allocation: alloc,
		Size:       size,
		Usage:      usage,
		Residency:  res,
		drv:        d.drv,
	}, nil
}

// CreateImage allocates an image, its memory and a view over it.
func (d *Device) CreateImage(desc ImageDesc, res Residency) (*AllocatedImage, error) {
	if desc.Extent.Zero() {
		return nil, errors.Wrapf(ErrZeroExtent, "create image %s", desc.Extent)
	}
	if desc.Format == FormatUndefined {
		return nil, invalidArgf("undefined image format")
	}
	if err := checkResidency(res); err != nil {
		return nil, err
	}
	img, alloc, err := d.drv.CreateImage(desc, res)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s image", desc.Extent)
	}
	view, err := d.drv.CreateImageView(img, desc.Format, desc.Aspect)
	if err != nil {
		d.drv.DestroyImage(img, alloc)
		return nil, errors.Wrap(err, "create image view")
	}
	return &AllocatedImage{
		Image:      img,
		View:       view,
		Allocation: alloc,
		Desc:       desc,
		drv:        d.drv,
	}, nil
}

// Destroy waits for the GPU without a bound, flushes the global deletion
// queue and destroys the driver. It must run after every renderer using the
// device has been closed.
func (d *Device) Destroy() error {
	if d.destroyed {
		return nil
	}
	d.destroyed = true
	err := d.drv.WaitIdle()
	d.deletions.Flush()
	d.drv.Destroy()
	d.log.Info("device destroyed")
	return errors.Wrap(err, "device wait idle")
}

func checkResidency(res Residency) error {
	switch res {
	case ResidencyGPUOnly, ResidencyCPUToGPU:
		return nil
	}
	return invalidArgf("unknown residency %s", res)
}

func apiVersionString(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v>>22, (v>>12)&0x3ff, v&0xfff)
}

// AllocatedBuffer is a buffer together with the memory backing it.
type AllocatedBuffer struct {
	Buffer     Buffer
	Allocation Allocation
	Size       uint64
	Usage      BufferUsage
	Residency  Residency

	drv Driver
}

// Write copies data into a CPU-writable buffer at offset.
func (b *AllocatedBuffer) Write(offset uint64, data []byte) error {
	if b.Residency != ResidencyCPUToGPU {
		return invalidArgf("write to %s buffer", b.Residency)
	}
	if offset+uint64(len(data)) > b.Size {
		return invalidArgf("write of %d bytes at %d overflows %d byte buffer", len(data), offset, b.Size)
	}
	return errors.Wrap(b.drv.WriteMemory(b.Allocation, offset, data), "write buffer")
}

// Release destroys the buffer and frees its memory. Releasing twice is a no-op.
func (b *AllocatedBuffer) Release() {
	if b.Buffer == nil {
		return
	}
	b.drv.DestroyBuffer(b.Buffer, b.Allocation)
	b.Buffer, b.Allocation = nil, nil
}

// AllocatedImage is an image, its memory and a single view over it.
type AllocatedImage struct {
	Image      Image
	View       ImageView
	Allocation Allocation
	Desc       ImageDesc

	drv Driver
}

func (img *AllocatedImage) Release() {
	if img.Image == nil {
		return
	}
	img.drv.DestroyImageView(img.View)
	img.drv.DestroyImage(img.Image, img.Allocation)
	img.Image, img.View, img.Allocation = nil, nil, nil
}
