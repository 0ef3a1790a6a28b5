package demo

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/andewx/vkframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func TestVertexBytesLayout(t *testing.T) {
	data := vertexBytes(triangleVertices)
	require.Len(t, data, len(triangleVertices)*vertexStride)

	float := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
	}
	second := vertexStride
	assert.Equal(t, float32(-0.5), float(second))
	assert.Equal(t, float32(-0.5), float(second+4))
	assert.Equal(t, float32(0.2), float(second+vertexColorOffset))
	assert.Equal(t, float32(1), float(second+vertexColorOffset+4))
	assert.Equal(t, float32(1), float(second+vertexColorOffset+12))
}

func TestIndexBytes(t *testing.T) {
	data := indexBytes(triangleIndices)
	require.Len(t, data, 12)
	assert.EqualValues(t, 2, binary.LittleEndian.Uint32(data[8:]))
}

func TestDrawExtent(t *testing.T) {
	full := vkframe.Extent2D{Width: 800, Height: 600}
	assert.Equal(t, full, drawExtent(full, 1))
	assert.Equal(t, vkframe.Extent2D{Width: 400, Height: 300}, drawExtent(full, 0.5))
	assert.Equal(t, full, drawExtent(full, 0), "unset scale renders at full size")
	assert.Equal(t, full, drawExtent(full, 2), "never larger than the swapchain")
	assert.Equal(t, vkframe.Extent2D{Width: 1, Height: 1}, drawExtent(vkframe.Extent2D{Width: 2, Height: 1}, 0.3))
}

func TestBlitRegionCoversBothImages(t *testing.T) {
	r := blitRegion(vkframe.Extent2D{Width: 400, Height: 300}, vkframe.Extent2D{Width: 800, Height: 600})
	assert.Equal(t, vk.Offset3D{}, r.SrcOffsets[0])
	assert.Equal(t, vk.Offset3D{X: 400, Y: 300, Z: 1}, r.SrcOffsets[1])
	assert.Equal(t, vk.Offset3D{X: 800, Y: 600, Z: 1}, r.DstOffsets[1])
	assert.EqualValues(t, 1, r.SrcSubresource.LayerCount)
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectColorBit), r.DstSubresource.AspectMask)
}

func TestImageBarrierIgnoresQueueOwnership(t *testing.T) {
	b := imageBarrier(vk.NullImage, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal, 0, vk.AccessTransferWriteBit)
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, b.NewLayout)
	assert.Equal(t, vk.AccessFlags(vk.AccessTransferWriteBit), b.DstAccessMask)
	assert.Zero(t, b.SrcAccessMask)
	assert.EqualValues(t, vk.QueueFamilyIgnored, b.SrcQueueFamilyIndex)
}
