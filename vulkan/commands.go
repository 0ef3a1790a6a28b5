package vulkan

import (
	"github.com/andewx/vkframe"
	vk "github.com/vulkan-go/vulkan"
)

func (d *Driver) CreateCommandPool() (vkframe.CommandPool, error) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(d.device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: d.queueFamily,
	}, nil, &pool)
	if err := check(ret, "vkCreateCommandPool"); err != nil {
		return nil, err
	}
	return pool, nil
}

func (d *Driver) DestroyCommandPool(p vkframe.CommandPool) {
	vk.DestroyCommandPool(d.device, handle[vk.CommandPool](p), nil)
}

func (d *Driver) AllocateCommandBuffer(p vkframe.CommandPool) (vkframe.CommandBuffer, error) {
	buffers := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(d.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        handle[vk.CommandPool](p),
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, buffers)
	if err := check(ret, "vkAllocateCommandBuffers"); err != nil {
		return nil, err
	}
	return buffers[0], nil
}

func (d *Driver) ResetCommandBuffer(cmd vkframe.CommandBuffer) error {
	return check(vk.ResetCommandBuffer(CommandBufferOf(cmd), 0), "vkResetCommandBuffer")
}

func (d *Driver) BeginCommandBuffer(cmd vkframe.CommandBuffer) error {
	ret := vk.BeginCommandBuffer(CommandBufferOf(cmd), &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	return check(ret, "vkBeginCommandBuffer")
}

func (d *Driver) EndCommandBuffer(cmd vkframe.CommandBuffer) error {
	return check(vk.EndCommandBuffer(CommandBufferOf(cmd)), "vkEndCommandBuffer")
}

func (d *Driver) CmdCopyBuffer(cmd vkframe.CommandBuffer, src, dst vkframe.Buffer, regions ...vkframe.BufferCopy) {
	if len(regions) == 0 {
		return
	}
	copies := make([]vk.BufferCopy, len(regions))
	for i, r := range regions {
		copies[i] = vk.BufferCopy{
			SrcOffset: vk.DeviceSize(r.SrcOffset),
			DstOffset: vk.DeviceSize(r.DstOffset),
			Size:      vk.DeviceSize(r.Size),
		}
	}
	vk.CmdCopyBuffer(CommandBufferOf(cmd), BufferOf(src), BufferOf(dst), uint32(len(copies)), copies)
}

func (d *Driver) Submit(info vkframe.SubmitInfo) error {
	if len(info.Wait) != len(info.WaitStages) {
		return invalidf("submit: %d wait semaphores but %d wait stages", len(info.Wait), len(info.WaitStages))
	}
	cmds := make([]vk.CommandBuffer, len(info.CommandBuffers))
	for i, c := range info.CommandBuffers {
		cmds[i] = CommandBufferOf(c)
	}
	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: uint32(len(cmds)),
		PCommandBuffers:    cmds,
	}
	if n := len(info.Wait); n > 0 {
		waits := make([]vk.Semaphore, n)
		stages := make([]vk.PipelineStageFlags, n)
		for i := range info.Wait {
			waits[i] = handle[vk.Semaphore](info.Wait[i])
			stages[i] = vk.PipelineStageFlags(info.WaitStages[i])
		}
		submit.WaitSemaphoreCount = uint32(n)
		submit.PWaitSemaphores = waits
		submit.PWaitDstStageMask = stages
	}
	if n := len(info.Signal); n > 0 {
		signals := make([]vk.Semaphore, n)
		for i, s := range info.Signal {
			signals[i] = handle[vk.Semaphore](s)
		}
		submit.SignalSemaphoreCount = uint32(n)
		submit.PSignalSemaphores = signals
	}
	ret := vk.QueueSubmit(d.queue, 1, []vk.SubmitInfo{submit}, handle[vk.Fence](info.Fence))
	return check(ret, "vkQueueSubmit")
}
