package vulkan

import (
	"unsafe"

	"github.com/andewx/vkframe"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// allocation is one dedicated vkAllocateMemory block.
type allocation struct {
	memory      vk.DeviceMemory
	size        uint64
	hostVisible bool
}

const (
	deviceLocal = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	hostShared  = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
)

// memoryTypes flattens the property flags of every memory type the GPU
// exposes, indexed by memory type index.
func memoryTypes(props vk.PhysicalDeviceMemoryProperties) []vk.MemoryPropertyFlags {
	types := make([]vk.MemoryPropertyFlags, props.MemoryTypeCount)
	for i := range types {
		props.MemoryTypes[i].Deref()
		types[i] = props.MemoryTypes[i].PropertyFlags
	}
	return types
}

// findMemoryType returns the first memory type allowed by typeBits whose
// flags contain all of required.
func findMemoryType(types []vk.MemoryPropertyFlags, typeBits uint32, required vk.MemoryPropertyFlags) (uint32, bool) {
	for i, flags := range types {
		if typeBits&(1<<uint(i)) == 0 {
			continue
		}
		if flags&required == required {
			return uint32(i), true
		}
	}
	return 0, false
}

// pickMemoryType maps a residency onto a memory type. Device-local memory
// falls back to any allowed type so integrated GPUs without a separate
// device heap still work; host-visible memory has no fallback.
func pickMemoryType(types []vk.MemoryPropertyFlags, typeBits uint32, res vkframe.Residency) (uint32, bool, error) {
	switch res {
	case vkframe.ResidencyCPUToGPU:
		if i, ok := findMemoryType(types, typeBits, hostShared); ok {
			return i, true, nil
		}
		return 0, false, errors.Wrap(vkframe.ErrOutOfMemory, "no host-visible coherent memory type")
	case vkframe.ResidencyGPUOnly:
		if i, ok := findMemoryType(types, typeBits, deviceLocal); ok {
			return i, types[i]&hostShared == hostShared, nil
		}
		if i, ok := findMemoryType(types, typeBits, 0); ok {
			return i, types[i]&hostShared == hostShared, nil
		}
		return 0, false, errors.Wrap(vkframe.ErrOutOfMemory, "no memory type for resource")
	}
	return 0, false, invalidf("unknown residency %v", res)
}

func (d *Driver) allocate(reqs vk.MemoryRequirements, res vkframe.Residency) (*allocation, error) {
	index, hostVisible, err := pickMemoryType(memoryTypes(d.memoryProperties), reqs.MemoryTypeBits, res)
	if err != nil {
		return nil, err
	}
	var memory vk.DeviceMemory
	ret := vk.AllocateMemory(d.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: index,
	}, nil, &memory)
	if err := check(ret, "vkAllocateMemory"); err != nil {
		return nil, err
	}
	return &allocation{memory: memory, size: uint64(reqs.Size), hostVisible: hostVisible}, nil
}

func (d *Driver) free(a vkframe.Allocation) {
	if alloc, ok := a.(*allocation); ok && alloc != nil {
		vk.FreeMemory(d.device, alloc.memory, nil)
	}
}

func (d *Driver) CreateBuffer(size uint64, usage vkframe.BufferUsage, res vkframe.Residency) (vkframe.Buffer, vkframe.Allocation, error) {
	var buffer vk.Buffer
	ret := vk.CreateBuffer(d.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buffer)
	if err := check(ret, "vkCreateBuffer"); err != nil {
		return nil, nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, buffer, &reqs)
	reqs.Deref()
	alloc, err := d.allocate(reqs, res)
	if err != nil {
		vk.DestroyBuffer(d.device, buffer, nil)
		return nil, nil, errors.WithMessagef(err, "buffer of %d bytes", size)
	}
	if err := check(vk.BindBufferMemory(d.device, buffer, alloc.memory, 0), "vkBindBufferMemory"); err != nil {
		vk.FreeMemory(d.device, alloc.memory, nil)
		vk.DestroyBuffer(d.device, buffer, nil)
		return nil, nil, err
	}
	return buffer, alloc, nil
}

func (d *Driver) DestroyBuffer(b vkframe.Buffer, a vkframe.Allocation) {
	vk.DestroyBuffer(d.device, BufferOf(b), nil)
	d.free(a)
}

func (d *Driver) WriteMemory(a vkframe.Allocation, offset uint64, data []byte) error {
	alloc, ok := a.(*allocation)
	if !ok || alloc == nil {
		return invalidf("write to unknown allocation")
	}
	if !alloc.hostVisible {
		return invalidf("write to memory that is not host visible")
	}
	if offset+uint64(len(data)) > alloc.size {
		return invalidf("write of %d bytes at %d overflows %d byte allocation", len(data), offset, alloc.size)
	}
	if len(data) == 0 {
		return nil
	}
	var ptr unsafe.Pointer
	ret := vk.MapMemory(d.device, alloc.memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &ptr)
	if err := check(ret, "vkMapMemory"); err != nil {
		return err
	}
	vk.Memcopy(ptr, data)
	vk.UnmapMemory(d.device, alloc.memory)
	return nil
}

func (d *Driver) CreateImage(desc vkframe.ImageDesc, res vkframe.Residency) (vkframe.Image, vkframe.Allocation, error) {
	var image vk.Image
	ret := vk.CreateImage(d.device, &vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        vk.Format(desc.Format),
		Extent:        vk.Extent3D{Width: desc.Extent.Width, Height: desc.Extent.Height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &image)
	if err := check(ret, "vkCreateImage"); err != nil {
		return nil, nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, image, &reqs)
	reqs.Deref()
	alloc, err := d.allocate(reqs, res)
	if err != nil {
		vk.DestroyImage(d.device, image, nil)
		return nil, nil, errors.WithMessagef(err, "%s image %s", desc.Format, desc.Extent)
	}
	if err := check(vk.BindImageMemory(d.device, image, alloc.memory, 0), "vkBindImageMemory"); err != nil {
		vk.FreeMemory(d.device, alloc.memory, nil)
		vk.DestroyImage(d.device, image, nil)
		return nil, nil, err
	}
	return image, alloc, nil
}

func (d *Driver) DestroyImage(img vkframe.Image, a vkframe.Allocation) {
	vk.DestroyImage(d.device, ImageOf(img), nil)
	d.free(a)
}

func (d *Driver) CreateImageView(img vkframe.Image, format vkframe.Format, aspect vkframe.ImageAspect) (vkframe.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(d.device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    ImageOf(img),
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(aspect),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	if err := check(ret, "vkCreateImageView"); err != nil {
		return nil, err
	}
	return view, nil
}

func (d *Driver) DestroyImageView(v vkframe.ImageView) {
	vk.DestroyImageView(d.device, ImageViewOf(v), nil)
}
