package vkframe

import (
	"fmt"
	"time"
)

// Opaque GPU handles. The vulkan backend stores vulkan-go handles in them,
// the test GPU stores pointers to its own bookkeeping structs. A nil handle
// is the null handle.
type (
	Fence           interface{}
	Semaphore       interface{}
	CommandPool     interface{}
	CommandBuffer   interface{}
	SwapchainHandle interface{}
	Buffer          interface{}
	Image           interface{}
	ImageView       interface{}
	Allocation      interface{}
)

// Format mirrors the numeric values of VkFormat for the formats the engine
// negotiates, so backends convert with a plain cast.
type Format uint32

const (
	FormatUndefined          Format = 0
	FormatR8G8B8A8Unorm      Format = 37
	FormatR8G8B8A8Srgb       Format = 43
	FormatB8G8R8A8Unorm      Format = 44
	FormatB8G8R8A8Srgb       Format = 50
	FormatR16G16B16A16Sfloat Format = 97
	FormatD32Sfloat          Format = 126
	FormatD24UnormS8Uint     Format = 129
	FormatD32SfloatS8Uint    Format = 130
)

// IsDepth reports whether f carries a depth component.
func (f Format) IsDepth() bool {
	switch f {
	case FormatD32Sfloat, FormatD24UnormS8Uint, FormatD32SfloatS8Uint:
		return true
	}
	return false
}

var formatNames = map[Format]string{
	FormatUndefined:          "undefined",
	FormatR8G8B8A8Unorm:      "r8g8b8a8-unorm",
	FormatR8G8B8A8Srgb:       "r8g8b8a8-srgb",
	FormatB8G8R8A8Unorm:      "b8g8r8a8-unorm",
	FormatB8G8R8A8Srgb:       "b8g8r8a8-srgb",
	FormatR16G16B16A16Sfloat: "r16g16b16a16-sfloat",
	FormatD32Sfloat:          "d32-sfloat",
	FormatD24UnormS8Uint:     "d24-unorm-s8-uint",
	FormatD32SfloatS8Uint:    "d32-sfloat-s8-uint",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("format(%d)", uint32(f))
}

// ParseFormat is the inverse of Format.String.
func ParseFormat(s string) (Format, error) {
	for f, name := range formatNames {
		if name == s {
			return f, nil
		}
	}
	return FormatUndefined, invalidArgf("unknown format %q", s)
}

// PresentMode mirrors VkPresentModeKHR.
type PresentMode uint32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFifo        PresentMode = 2
	PresentModeFifoRelaxed PresentMode = 3
)

var presentModeNames = map[PresentMode]string{
	PresentModeImmediate:   "immediate",
	PresentModeMailbox:     "mailbox",
	PresentModeFifo:        "fifo",
	PresentModeFifoRelaxed: "fifo-relaxed",
}

func (m PresentMode) String() string {
	if name, ok := presentModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("present-mode(%d)", uint32(m))
}

func ParsePresentMode(s string) (PresentMode, error) {
	for m, name := range presentModeNames {
		if name == s {
			return m, nil
		}
	}
	return PresentModeFifo, invalidArgf("unknown present mode %q", s)
}

// BufferUsage mirrors VkBufferUsageFlagBits.
type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 0x001
	BufferUsageTransferDst BufferUsage = 0x002
	BufferUsageUniform     BufferUsage = 0x010
	BufferUsageStorage     BufferUsage = 0x020
	BufferUsageIndex       BufferUsage = 0x040
	BufferUsageVertex      BufferUsage = 0x080
	BufferUsageIndirect    BufferUsage = 0x100
)

// ImageUsage mirrors VkImageUsageFlagBits.
type ImageUsage uint32

const (
	ImageUsageTransferSrc            ImageUsage = 0x01
	ImageUsageTransferDst            ImageUsage = 0x02
	ImageUsageSampled                ImageUsage = 0x04
	ImageUsageStorage                ImageUsage = 0x08
	ImageUsageColorAttachment        ImageUsage = 0x10
	ImageUsageDepthStencilAttachment ImageUsage = 0x20
)

// ImageAspect mirrors VkImageAspectFlagBits.
type ImageAspect uint32

const (
	ImageAspectColor ImageAspect = 0x1
	ImageAspectDepth ImageAspect = 0x2
)

// PipelineStage mirrors VkPipelineStageFlagBits.
type PipelineStage uint32

const (
	StageTopOfPipe             PipelineStage = 0x00001
	StageColorAttachmentOutput PipelineStage = 0x00400
	StageTransfer              PipelineStage = 0x01000
	StageAllCommands           PipelineStage = 0x10000
)

// Residency selects the memory class of an allocation.
type Residency int

const (
	// ResidencyGPUOnly is device-local memory, not host visible.
	ResidencyGPUOnly Residency = iota + 1
	// ResidencyCPUToGPU is host-visible, coherent memory used for staging.
	ResidencyCPUToGPU
)

func (r Residency) String() string {
	switch r {
	case ResidencyGPUOnly:
		return "gpu-only"
	case ResidencyCPUToGPU:
		return "cpu-to-gpu"
	}
	return fmt.Sprintf("residency(%d)", int(r))
}

// AcquireStatus is the outcome of an acquire or present operation.
type AcquireStatus int

const (
	AcquireOK AcquireStatus = iota
	AcquireSuboptimal
	AcquireOutOfDate
	AcquireTimedOut
)

func (s AcquireStatus) String() string {
	switch s {
	case AcquireOK:
		return "ok"
	case AcquireSuboptimal:
		return "suboptimal"
	case AcquireOutOfDate:
		return "out-of-date"
	case AcquireTimedOut:
		return "timed-out"
	}
	return fmt.Sprintf("acquire-status(%d)", int(s))
}

type Extent2D struct {
	Width  uint32
	Height uint32
}

func (e Extent2D) Zero() bool {
	return e.Width == 0 || e.Height == 0
}

func (e Extent2D) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

type ImageDesc struct {
	Extent Extent2D
	Format Format
	Usage  ImageUsage
	Aspect ImageAspect
}

type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// SubmitInfo describes a single queue submission. WaitStages must have the
// same length as Wait.
type SubmitInfo struct {
	CommandBuffers []CommandBuffer
	Wait           []Semaphore
	WaitStages     []PipelineStage
	Signal         []Semaphore
	Fence          Fence
}

// SwapchainDesc is what the engine asks for. The backend clamps it to the
// surface capabilities and reports the result in SwapchainInfo.
type SwapchainDesc struct {
	Extent      Extent2D
	ImageCount  uint32
	Format      Format
	PresentMode PresentMode
}

type SwapchainInfo struct {
	Handle SwapchainHandle
	Images []Image
	Format Format
	Extent Extent2D
}

type DeviceInfo struct {
	Name        string
	APIVersion  uint32
	QueueFamily uint32
}

// SyncDriver creates and drives CPU/GPU synchronization primitives.
type SyncDriver interface {
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(f Fence)
	// WaitFence blocks until f is signaled. It returns an error wrapping
	// ErrFenceTimeout when the timeout expires first.
	WaitFence(f Fence, timeout time.Duration) error
	ResetFence(f Fence) error
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(s Semaphore)
}

// CommandDriver allocates and records command buffers and submits them to
// the graphics queue.
type CommandDriver interface {
	// CreateCommandPool creates a pool whose buffers can be reset individually.
	CreateCommandPool() (CommandPool, error)
	DestroyCommandPool(p CommandPool)
	AllocateCommandBuffer(p CommandPool) (CommandBuffer, error)
	ResetCommandBuffer(cmd CommandBuffer) error
	// BeginCommandBuffer begins recording for a single submission.
	BeginCommandBuffer(cmd CommandBuffer) error
	EndCommandBuffer(cmd CommandBuffer) error
	CmdCopyBuffer(cmd CommandBuffer, src, dst Buffer, regions ...BufferCopy)
	Submit(info SubmitInfo) error
}

// MemoryDriver allocates buffers and images together with their backing memory.
type MemoryDriver interface {
	CreateBuffer(size uint64, usage BufferUsage, res Residency) (Buffer, Allocation, error)
	DestroyBuffer(b Buffer, a Allocation)
	// WriteMemory copies data into a host-visible allocation at offset.
	WriteMemory(a Allocation, offset uint64, data []byte) error
	CreateImage(desc ImageDesc, res Residency) (Image, Allocation, error)
	DestroyImage(img Image, a Allocation)
	CreateImageView(img Image, format Format, aspect ImageAspect) (ImageView, error)
	DestroyImageView(v ImageView)
}

// PresentDriver owns the surface side: swapchains, acquire and present.
// Acquire and present report OutOfDate, Suboptimal and Timeout as statuses,
// never as errors.
type PresentDriver interface {
	CreateSwapchain(desc SwapchainDesc) (SwapchainInfo, error)
	DestroySwapchain(sc SwapchainHandle)
	AcquireNextImage(sc SwapchainHandle, timeout time.Duration, signal Semaphore) (uint32, AcquireStatus, error)
	Present(sc SwapchainHandle, index uint32, wait Semaphore) (AcquireStatus, error)
}

// Driver is the graphics device a Device runs on: one physical GPU, one
// logical device and one graphics queue that can also present.
type Driver interface {
	SyncDriver
	CommandDriver
	MemoryDriver
	PresentDriver

	Info() DeviceInfo
	// WaitIdle blocks, without a bound, until the queue is idle.
	WaitIdle() error
	// Destroy releases the logical device and everything the driver created
	// during its own initialization.
	Destroy()
}
