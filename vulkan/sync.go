package vulkan

import (
	"time"

	"github.com/andewx/vkframe"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

func (d *Driver) CreateFence(signaled bool) (vkframe.Fence, error) {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := check(vk.CreateFence(d.device, &info, nil, &fence), "vkCreateFence"); err != nil {
		return nil, err
	}
	return fence, nil
}

func (d *Driver) DestroyFence(f vkframe.Fence) {
	vk.DestroyFence(d.device, handle[vk.Fence](f), nil)
}

func (d *Driver) WaitFence(f vkframe.Fence, timeout time.Duration) error {
	fences := []vk.Fence{handle[vk.Fence](f)}
	ret := vk.WaitForFences(d.device, 1, fences, vk.True, uint64(timeout.Nanoseconds()))
	if ret == vk.Timeout {
		return errors.Wrapf(vkframe.ErrFenceTimeout, "after %s", timeout)
	}
	return check(ret, "vkWaitForFences")
}

func (d *Driver) ResetFence(f vkframe.Fence) error {
	return check(vk.ResetFences(d.device, 1, []vk.Fence{handle[vk.Fence](f)}), "vkResetFences")
}

func (d *Driver) CreateSemaphore() (vkframe.Semaphore, error) {
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(d.device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sem)
	if err := check(ret, "vkCreateSemaphore"); err != nil {
		return nil, err
	}
	return sem, nil
}

func (d *Driver) DestroySemaphore(s vkframe.Semaphore) {
	vk.DestroySemaphore(d.device, handle[vk.Semaphore](s), nil)
}
