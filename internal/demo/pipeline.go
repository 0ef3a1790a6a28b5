package demo

import (
	"unsafe"

	"github.com/andewx/vkframe/shader"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// pushConstantSize is one column-major mat4.
const pushConstantSize = uint32(unsafe.Sizeof(mgl32.Mat4{}))

type pipelineBuilder struct {
	stages               []vk.PipelineShaderStageCreateInfo
	vertexBindings       []vk.VertexInputBindingDescription
	vertexAttributes     []vk.VertexInputAttributeDescription
	inputAssembly        vk.PipelineInputAssemblyStateCreateInfo
	rasterizer           vk.PipelineRasterizationStateCreateInfo
	multisampling        vk.PipelineMultisampleStateCreateInfo
	colorBlendAttachment vk.PipelineColorBlendAttachmentState
	depthStencil         vk.PipelineDepthStencilStateCreateInfo
	dynamicStates        []vk.DynamicState
}

// newPipelineBuilder describes the pipeline drawing Vertex meshes. Viewport
// and scissor are dynamic so the pipeline survives swapchain recreation.
func newPipelineBuilder(vert, frag vk.ShaderModule, depth bool) *pipelineBuilder {
	p := &pipelineBuilder{
		stages: []vk.PipelineShaderStageCreateInfo{
			{
				SType:  vk.StructureTypePipelineShaderStageCreateInfo,
				Stage:  vk.ShaderStageVertexBit,
				Module: vert,
				PName:  "main\x00",
			},
			{
				SType:  vk.StructureTypePipelineShaderStageCreateInfo,
				Stage:  vk.ShaderStageFragmentBit,
				Module: frag,
				PName:  "main\x00",
			},
		},
		vertexBindings: []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    vertexStride,
			InputRate: vk.VertexInputRateVertex,
		}},
		vertexAttributes: []vk.VertexInputAttributeDescription{{
			Location: 0,
			Binding:  0,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   0,
		}, {
			Location: 1,
			Binding:  0,
			Format:   vk.FormatR32g32b32a32Sfloat,
			Offset:   vertexColorOffset,
		}},
		inputAssembly: vk.PipelineInputAssemblyStateCreateInfo{
			SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology:               vk.PrimitiveTopologyTriangleList,
			PrimitiveRestartEnable: vk.False,
		},
		rasterizer: vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    vk.CullModeFlags(vk.CullModeNone),
			FrontFace:   vk.FrontFaceClockwise,
			LineWidth:   1.0,
		},
		multisampling: vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
			MinSampleShading:     1.0,
		},
		colorBlendAttachment: vk.PipelineColorBlendAttachmentState{
			ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
				vk.ColorComponentBBit | vk.ColorComponentABit),
			BlendEnable: vk.False,
		},
		depthStencil: vk.PipelineDepthStencilStateCreateInfo{
			SType: vk.StructureTypePipelineDepthStencilStateCreateInfo,
		},
		dynamicStates: []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
	}
	if depth {
		p.depthStencil.DepthTestEnable = vk.True
		p.depthStencil.DepthWriteEnable = vk.True
		p.depthStencil.DepthCompareOp = vk.CompareOpLessOrEqual
		p.depthStencil.MaxDepthBounds = 1.0
	}
	return p
}

func (p *pipelineBuilder) build(device vk.Device, pass vk.RenderPass, layout vk.PipelineLayout) (vk.Pipeline, error) {
	info := vk.GraphicsPipelineCreateInfo{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: uint32(len(p.stages)),
		PStages:    p.stages,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
			VertexBindingDescriptionCount:   uint32(len(p.vertexBindings)),
			PVertexBindingDescriptions:      p.vertexBindings,
			VertexAttributeDescriptionCount: uint32(len(p.vertexAttributes)),
			PVertexAttributeDescriptions:    p.vertexAttributes,
		},
		PInputAssemblyState: &p.inputAssembly,
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &p.rasterizer,
		PMultisampleState:   &p.multisampling,
		PDepthStencilState:  &p.depthStencil,
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			LogicOpEnable:   vk.False,
			LogicOp:         vk.LogicOpCopy,
			AttachmentCount: 1,
			PAttachments:    []vk.PipelineColorBlendAttachmentState{p.colorBlendAttachment},
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(p.dynamicStates)),
			PDynamicStates:    p.dynamicStates,
		},
		Layout:     layout,
		RenderPass: pass,
	}
	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(device, nil, 1,
		[]vk.GraphicsPipelineCreateInfo{info}, nil, pipelines)
	if ret != vk.Success {
		return vk.NullPipeline, errors.Wrap(vk.Error(ret), "vkCreateGraphicsPipelines")
	}
	return pipelines[0], nil
}

// createPipelineLayout declares the MVP push constant read by the vertex stage.
func createPipelineLayout(device vk.Device) (vk.PipelineLayout, error) {
	var layout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(device, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		PushConstantRangeCount: 1,
		PPushConstantRanges: []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
			Size:       pushConstantSize,
		}},
	}, nil, &layout)
	if ret != vk.Success {
		return vk.NullPipelineLayout, errors.Wrap(vk.Error(ret), "vkCreatePipelineLayout")
	}
	return layout, nil
}

// loadShaderModule reads a SPIR-V file and wraps it in a shader module.
func loadShaderModule(device vk.Device, path string) (vk.ShaderModule, error) {
	code, err := shader.Load(path)
	if err != nil {
		return vk.NullShaderModule, err
	}
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    shader.Words(code),
	}, nil, &module)
	if ret != vk.Success {
		return vk.NullShaderModule, errors.Wrapf(vk.Error(ret), "vkCreateShaderModule %s", path)
	}
	return module, nil
}
