package demo

import (
	"github.com/andewx/vkframe"
	"github.com/go-gl/mathgl/mgl32"
)

// clipCorrection maps GL clip space onto Vulkan's: Y points down and depth
// runs over [0, 1] instead of [-1, 1].
var clipCorrection = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// VulkanProjection is mgl32.Perspective with the Vulkan clip fixup applied.
func VulkanProjection(fovy, aspect, near, far float32) mgl32.Mat4 {
	return clipCorrection.Mul4(mgl32.Perspective(fovy, aspect, near, far))
}

// MVP returns the transform for the demo triangle rotated by angle radians
// around Z, seen from in front.
func MVP(extent vkframe.Extent2D, angle float32) mgl32.Mat4 {
	aspect := float32(1)
	if !extent.Zero() {
		aspect = float32(extent.Width) / float32(extent.Height)
	}
	proj := VulkanProjection(mgl32.DegToRad(45), aspect, 0.1, 10)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 2.5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	model := mgl32.HomogRotate3DZ(angle)
	return proj.Mul4(view).Mul4(model)
}
