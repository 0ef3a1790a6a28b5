package vulkan

import (
	"github.com/andewx/vkframe"
	vk "github.com/vulkan-go/vulkan"
)

var _ vkframe.Driver = (*Driver)(nil)

func (d *Driver) Info() vkframe.DeviceInfo {
	return vkframe.DeviceInfo{
		Name:        vk.ToString(d.gpuProperties.DeviceName[:]),
		APIVersion:  d.gpuProperties.ApiVersion,
		QueueFamily: d.queueFamily,
	}
}

func (d *Driver) WaitIdle() error {
	return check(vk.DeviceWaitIdle(d.device), "vkDeviceWaitIdle")
}

// Destroy waits for the device and tears down everything New created, in
// reverse order. Objects created through the driver afterwards must already
// be destroyed.
func (d *Driver) Destroy() {
	if d.teardown == nil {
		return
	}
	d.teardown.Flush()
	d.teardown = nil
	d.log.Debug("vulkan driver destroyed")
}

func (d *Driver) Instance() vk.Instance             { return d.instance }
func (d *Driver) PhysicalDevice() vk.PhysicalDevice { return d.gpu }
func (d *Driver) Device() vk.Device                 { return d.device }
func (d *Driver) Queue() vk.Queue                   { return d.queue }
func (d *Driver) Surface() vk.Surface               { return d.surface }

// handle unwraps an engine handle; the null handle and foreign values come
// back as the zero vulkan handle.
func handle[T any](h interface{}) T {
	v, _ := h.(T)
	return v
}

// CommandBufferOf returns the vulkan command buffer behind an engine handle.
func CommandBufferOf(cmd vkframe.CommandBuffer) vk.CommandBuffer {
	return handle[vk.CommandBuffer](cmd)
}

func ImageOf(img vkframe.Image) vk.Image {
	return handle[vk.Image](img)
}

func ImageViewOf(v vkframe.ImageView) vk.ImageView {
	return handle[vk.ImageView](v)
}

func BufferOf(b vkframe.Buffer) vk.Buffer {
	return handle[vk.Buffer](b)
}
