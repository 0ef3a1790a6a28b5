package demo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func TestPipelineBuilderState(t *testing.T) {
	p := newPipelineBuilder(vk.NullShaderModule, vk.NullShaderModule, false)
	assert.Len(t, p.stages, 2)
	assert.Equal(t, vk.ShaderStageVertexBit, p.stages[0].Stage)
	assert.Equal(t, vk.ShaderStageFragmentBit, p.stages[1].Stage)
	assert.Equal(t, []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}, p.dynamicStates)
	assert.Equal(t, vk.Bool32(vk.False), p.depthStencil.DepthTestEnable)

	require.Len(t, p.vertexBindings, 1)
	assert.EqualValues(t, vertexStride, p.vertexBindings[0].Stride)
	require.Len(t, p.vertexAttributes, 2)
	assert.Equal(t, vk.FormatR32g32b32Sfloat, p.vertexAttributes[0].Format)
	assert.EqualValues(t, vertexColorOffset, p.vertexAttributes[1].Offset)

	d := newPipelineBuilder(vk.NullShaderModule, vk.NullShaderModule, true)
	assert.Equal(t, vk.Bool32(vk.True), d.depthStencil.DepthTestEnable)
	assert.Equal(t, vk.Bool32(vk.True), d.depthStencil.DepthWriteEnable)
}

func TestPushConstantFitsGuarantee(t *testing.T) {
	// 128 bytes is the minimum maxPushConstantsSize every device supports.
	assert.Equal(t, uint32(64), pushConstantSize)
	assert.LessOrEqual(t, pushConstantSize, uint32(128))
}
