// Package demo is example draw logic for the renderer: one rotating
// triangle mesh drawn with a push-constant MVP into an offscreen image that
// is scaled onto the swapchain.
package demo

//go:generate glslangValidator -V shaders/triangle.vert -o shaders/triangle.vert.spv
//go:generate glslangValidator -V shaders/triangle.frag -o shaders/triangle.frag.spv

import (
	"log/slog"
	"unsafe"

	"github.com/andewx/vkframe"
	"github.com/andewx/vkframe/shader"
	"github.com/andewx/vkframe/vulkan"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// radiansPerFrame spins the triangle once every six seconds at 60 fps.
const radiansPerFrame = 2 * 3.14159265 / 360

// drawFormat is the format of the offscreen draw image. It is blitted onto
// the swapchain image, whatever that format is.
const drawFormat = vkframe.FormatR16G16B16A16Sfloat

type Options struct {
	VertexShader   string
	FragmentShader string
	// Watch rebuilds the pipeline when a shader file changes.
	Watch bool
	// RenderScale sizes the draw image relative to the swapchain, in (0, 1].
	RenderScale float32
	Logger      *slog.Logger
}

// Triangle implements vkframe.Drawer and vkframe.TargetBuilder. It renders
// an uploaded mesh into an offscreen draw image and blits that onto the
// swapchain image.
type Triangle struct {
	dev    *vkframe.Device
	device vk.Device
	log    *slog.Logger
	opts   Options

	watcher *shader.Watcher
	mesh    *vkframe.MeshBuffers

	layout      vk.PipelineLayout
	renderPass  vk.RenderPass
	pipeline    vk.Pipeline
	depthFormat vkframe.Format

	drawImage   *vkframe.AllocatedImage
	drawSize    vkframe.Extent2D
	framebuffer vk.Framebuffer
}

var (
	_ vkframe.Drawer        = (*Triangle)(nil)
	_ vkframe.TargetBuilder = (*Triangle)(nil)
)

// NewTriangle uploads the mesh and creates the long-lived objects of the
// demo. They are released through the device's deletion queue.
func NewTriangle(dev *vkframe.Device, drv *vulkan.Driver, opts Options) (*Triangle, error) {
	t := &Triangle{dev: dev, device: drv.Device(), log: opts.Logger, opts: opts}
	if t.log == nil {
		t.log = dev.Logger()
	}
	for _, path := range []string{opts.VertexShader, opts.FragmentShader} {
		if _, err := shader.Load(path); err != nil {
			return nil, err
		}
	}

	mesh, err := dev.UploadMesh(vertexBytes(triangleVertices), indexBytes(triangleIndices))
	if err != nil {
		return nil, errors.Wrap(err, "triangle mesh")
	}
	t.mesh = mesh

	layout, err := createPipelineLayout(t.device)
	if err != nil {
		return nil, err
	}
	t.layout = layout
	dev.Deletions().PushFunc(func() { vk.DestroyPipelineLayout(t.device, layout, nil) })
	dev.Deletions().PushFunc(t.destroyPipeline)

	if opts.Watch {
		w, err := shader.NewWatcher(t.log, opts.VertexShader, opts.FragmentShader)
		if err != nil {
			return nil, err
		}
		t.watcher = w
		dev.Deletions().PushFunc(func() { w.Close() })
	}
	return t, nil
}

// BuildTargets creates the draw image at the scaled swapchain extent and its
// framebuffer. The render pass and pipeline are rebuilt only when the depth
// format changes.
func (t *Triangle) BuildTargets(sc *vkframe.Swapchain) error {
	depth := vkframe.FormatUndefined
	if sc.Depth() != nil {
		depth = sc.Depth().Desc.Format
	}
	if t.renderPass == vk.NullRenderPass || depth != t.depthFormat {
		t.destroyPipeline()
		pass, err := createRenderPass(t.device, drawFormat, depth)
		if err != nil {
			return err
		}
		t.renderPass, t.depthFormat = pass, depth
		pipeline, err := t.buildPipeline()
		if err != nil {
			return err
		}
		t.pipeline = pipeline
	}

	size := drawExtent(sc.Extent(), t.opts.RenderScale)
	img, err := t.dev.CreateImage(vkframe.ImageDesc{
		Extent: size,
		Format: drawFormat,
		Usage:  vkframe.ImageUsageColorAttachment | vkframe.ImageUsageTransferSrc,
		Aspect: vkframe.ImageAspectColor,
	}, vkframe.ResidencyGPUOnly)
	if err != nil {
		return errors.Wrap(err, "draw image")
	}
	t.drawImage, t.drawSize = img, size

	attachments := []vk.ImageView{vulkan.ImageViewOf(img.View)}
	if depth != vkframe.FormatUndefined {
		attachments = append(attachments, vulkan.ImageViewOf(sc.DepthView()))
	}
	var fb vk.Framebuffer
	ret := vk.CreateFramebuffer(t.device, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      t.renderPass,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           size.Width,
		Height:          size.Height,
		Layers:          1,
	}, nil, &fb)
	if ret != vk.Success {
		t.ReleaseTargets()
		return errors.Wrap(vk.Error(ret), "draw framebuffer")
	}
	t.framebuffer = fb
	t.log.Debug("demo targets built", "draw_extent", size.String(), "swapchain_extent", sc.Extent().String())
	return nil
}

func (t *Triangle) ReleaseTargets() {
	if t.framebuffer != vk.NullFramebuffer {
		vk.DestroyFramebuffer(t.device, t.framebuffer, nil)
		t.framebuffer = vk.NullFramebuffer
	}
	if t.drawImage != nil {
		t.drawImage.Release()
		t.drawImage = nil
	}
}

func (t *Triangle) Draw(f *vkframe.Frame) error {
	if t.framebuffer == vk.NullFramebuffer {
		return errors.Errorf("no render targets for frame %d", f.Number)
	}
	t.reload(f)

	cmd := vulkan.CommandBufferOf(f.Cmd)
	area := vk.Rect2D{Extent: vk.Extent2D{Width: t.drawSize.Width, Height: t.drawSize.Height}}
	clear := []vk.ClearValue{vk.NewClearValue([]float32{0.02, 0.02, 0.05, 1})}
	if t.depthFormat != vkframe.FormatUndefined {
		clear = append(clear, vk.NewClearDepthStencil(1, 0))
	}
	vk.CmdBeginRenderPass(cmd, &vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      t.renderPass,
		Framebuffer:     t.framebuffer,
		RenderArea:      area,
		ClearValueCount: uint32(len(clear)),
		PClearValues:    clear,
	}, vk.SubpassContentsInline)

	vk.CmdSetViewport(cmd, 0, 1, []vk.Viewport{{
		Width:    float32(t.drawSize.Width),
		Height:   float32(t.drawSize.Height),
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(cmd, 0, 1, []vk.Rect2D{area})
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, t.pipeline)
	vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{vulkan.BufferOf(t.mesh.Vertices.Buffer)}, []vk.DeviceSize{0})
	vk.CmdBindIndexBuffer(cmd, vulkan.BufferOf(t.mesh.Indices.Buffer), 0, vk.IndexTypeUint32)

	mvp := MVP(t.drawSize, float32(f.Number)*radiansPerFrame)
	vk.CmdPushConstants(cmd, t.layout, vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0,
		pushConstantSize, unsafe.Pointer(&mvp[0]))
	vk.CmdDrawIndexed(cmd, t.mesh.IndexCount, 1, 0, 0, 0)
	vk.CmdEndRenderPass(cmd)

	blitToSwapchain(cmd, vulkan.ImageOf(t.drawImage.Image), t.drawSize, vulkan.ImageOf(f.Image), f.Extent)
	return nil
}

// reload swaps in a new pipeline after a shader change. Every frame in
// flight may still use the old pipeline, so it is retired across the whole
// ring. A broken shader keeps the old pipeline.
func (t *Triangle) reload(f *vkframe.Frame) {
	if t.watcher == nil {
		return
	}
	select {
	case path := <-t.watcher.Changes():
		t.log.Info("shader changed", "path", path)
		pipeline, err := t.buildPipeline()
		if err != nil {
			t.log.Warn("shader reload failed, keeping previous pipeline", "err", err)
			return
		}
		old, device := t.pipeline, t.device
		f.Retire(func() { vk.DestroyPipeline(device, old, nil) })
		t.pipeline = pipeline
	default:
	}
}

func (t *Triangle) buildPipeline() (vk.Pipeline, error) {
	vert, err := loadShaderModule(t.device, t.opts.VertexShader)
	if err != nil {
		return vk.NullPipeline, err
	}
	defer vk.DestroyShaderModule(t.device, vert, nil)
	frag, err := loadShaderModule(t.device, t.opts.FragmentShader)
	if err != nil {
		return vk.NullPipeline, err
	}
	defer vk.DestroyShaderModule(t.device, frag, nil)

	depth := t.depthFormat != vkframe.FormatUndefined
	return newPipelineBuilder(vert, frag, depth).build(t.device, t.renderPass, t.layout)
}

func (t *Triangle) destroyPipeline() {
	if t.pipeline != vk.NullPipeline {
		vk.DestroyPipeline(t.device, t.pipeline, nil)
		t.pipeline = vk.NullPipeline
	}
	if t.renderPass != vk.NullRenderPass {
		vk.DestroyRenderPass(t.device, t.renderPass, nil)
		t.renderPass = vk.NullRenderPass
	}
}
