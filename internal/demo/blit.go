package demo

import (
	"github.com/andewx/vkframe"
	vk "github.com/vulkan-go/vulkan"
)

var colorRange = vk.ImageSubresourceRange{
	AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	LevelCount: 1,
	LayerCount: 1,
}

var colorLayers = vk.ImageSubresourceLayers{
	AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	LayerCount: 1,
}

// blitRegion stretches all of src over all of dst.
func blitRegion(src, dst vkframe.Extent2D) vk.ImageBlit {
	return vk.ImageBlit{
		SrcSubresource: colorLayers,
		SrcOffsets:     [2]vk.Offset3D{{}, {X: int32(src.Width), Y: int32(src.Height), Z: 1}},
		DstSubresource: colorLayers,
		DstOffsets:     [2]vk.Offset3D{{}, {X: int32(dst.Width), Y: int32(dst.Height), Z: 1}},
	}
}

func imageBarrier(img vk.Image, from, to vk.ImageLayout, srcAccess, dstAccess vk.AccessFlagBits) vk.ImageMemoryBarrier {
	return vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(srcAccess),
		DstAccessMask:       vk.AccessFlags(dstAccess),
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange:    colorRange,
	}
}

// blitToSwapchain copies the draw image, already in transfer source layout,
// onto the acquired swapchain image and leaves that image ready to present.
// The first barrier starts at color attachment output, the stage the image
// acquired semaphore is waited at.
func blitToSwapchain(cmd vk.CommandBuffer, draw vk.Image, drawSize vkframe.Extent2D, target vk.Image, targetSize vkframe.Extent2D) {
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{
			imageBarrier(target, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal,
				0, vk.AccessTransferWriteBit),
		})
	vk.CmdBlitImage(cmd,
		draw, vk.ImageLayoutTransferSrcOptimal,
		target, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageBlit{blitRegion(drawSize, targetSize)}, vk.FilterLinear)
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{
			imageBarrier(target, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutPresentSrc,
				vk.AccessTransferWriteBit, 0),
		})
}
