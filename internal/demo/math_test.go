package demo

import (
	"testing"

	"github.com/andewx/vkframe"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestClipCorrection(t *testing.T) {
	top := clipCorrection.Mul4x1(mgl32.Vec4{0, 1, -1, 1})
	assert.Equal(t, mgl32.Vec4{0, -1, 0, 1}, top)

	far := clipCorrection.Mul4x1(mgl32.Vec4{0, 0, 1, 1})
	assert.Equal(t, float32(1), far.Z())
}

func TestVulkanProjectionDepthRange(t *testing.T) {
	proj := VulkanProjection(mgl32.DegToRad(45), 1, 0.1, 10)

	near := proj.Mul4x1(mgl32.Vec4{0, 0, -0.1, 1})
	assert.InDelta(t, 0, near.Z()/near.W(), 1e-5)

	far := proj.Mul4x1(mgl32.Vec4{0, 0, -10, 1})
	assert.InDelta(t, 1, far.Z()/far.W(), 1e-5)

	up := proj.Mul4x1(mgl32.Vec4{0, 0.05, -1, 1})
	assert.Less(t, up.Y(), float32(0))
}

func TestMVPKeepsTriangleInView(t *testing.T) {
	for _, extent := range []vkframe.Extent2D{{Width: 800, Height: 600}, {}} {
		mvp := MVP(extent, 0.3)
		p := mvp.Mul4x1(mgl32.Vec4{0, 0.5, 0, 1})
		ndc := p.Vec3().Mul(1 / p.W())
		assert.True(t, ndc.X() > -1 && ndc.X() < 1, "x %v", ndc.X())
		assert.True(t, ndc.Y() > -1 && ndc.Y() < 1, "y %v", ndc.Y())
		assert.True(t, ndc.Z() > 0 && ndc.Z() < 1, "z %v", ndc.Z())
	}
}
