package vkframe

// Window is what the renderer needs from the platform window.
type Window interface {
	// FramebufferSize is the drawable size in pixels. Zero while minimized
	// on most platforms.
	FramebufferSize() (width, height int)
	Minimized() bool

	// DECORATORS:
	// EventSource
}

// EventSource drives the Run loop. Windows usually implement it themselves.
type EventSource interface {
	PollEvents()
	ShouldClose() bool
}

// Drawer records the draw commands of one frame into f.Cmd. It never touches
// synchronization primitives and never sees an out-of-date swapchain.
type Drawer interface {
	Draw(f *Frame) error

	// DECORATORS:
	// TargetBuilder
}

// TargetBuilder is implemented by draw logic owning render targets that
// depend on the swapchain, such as framebuffers. BuildTargets runs after
// every swapchain creation and ReleaseTargets before every destruction, both
// with the device idle. ReleaseTargets must tolerate being called when no
// targets exist.
type TargetBuilder interface {
	BuildTargets(sc *Swapchain) error
	ReleaseTargets()
}

// DrawFunc adapts a function to a Drawer.
type DrawFunc func(f *Frame) error

func (fn DrawFunc) Draw(f *Frame) error { return fn(f) }
