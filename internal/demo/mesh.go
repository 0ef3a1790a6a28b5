package demo

import (
	"encoding/binary"
	"math"

	"github.com/andewx/vkframe"
)

// Vertex matches the vertex input of shaders/triangle.vert.
type Vertex struct {
	Position [3]float32
	Color    [4]float32
}

const (
	vertexStride      = 7 * 4
	vertexColorOffset = 3 * 4
)

var (
	triangleVertices = []Vertex{
		{Position: [3]float32{0, 0.5, 0}, Color: [4]float32{1, 0.2, 0.2, 1}},
		{Position: [3]float32{-0.5, -0.5, 0}, Color: [4]float32{0.2, 1, 0.2, 1}},
		{Position: [3]float32{0.5, -0.5, 0}, Color: [4]float32{0.2, 0.2, 1, 1}},
	}
	triangleIndices = []uint32{0, 1, 2}
)

// vertexBytes packs vertices the way the pipeline's vertex binding reads them.
func vertexBytes(vertices []Vertex) []byte {
	out := make([]byte, 0, len(vertices)*vertexStride)
	for _, v := range vertices {
		for _, f := range v.Position {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
		}
		for _, f := range v.Color {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
		}
	}
	return out
}

func indexBytes(indices []uint32) []byte {
	out := make([]byte, 0, len(indices)*4)
	for _, i := range indices {
		out = binary.LittleEndian.AppendUint32(out, i)
	}
	return out
}

// drawExtent is the size of the offscreen draw image: the swapchain extent
// scaled by scale, at least one pixel on each side. Scales outside (0, 1]
// render at full size.
func drawExtent(swapchain vkframe.Extent2D, scale float32) vkframe.Extent2D {
	if scale <= 0 || scale > 1 {
		scale = 1
	}
	side := func(n uint32) uint32 {
		v := uint32(float32(n) * scale)
		if v == 0 {
			return 1
		}
		return v
	}
	return vkframe.Extent2D{Width: side(swapchain.Width), Height: side(swapchain.Height)}
}
