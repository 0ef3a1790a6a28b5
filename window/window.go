// Package window provides the GLFW window the renderer draws into. All
// functions must be called from the main goroutine with the OS thread locked.
package window

import (
	"log/slog"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Init initializes GLFW and loads the Vulkan loader through it. Call
// Terminate when done.
func Init() error {
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "glfw init")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.New("glfw: vulkan is not supported on this system")
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		glfw.Terminate()
		return errors.Wrap(err, "vulkan loader init")
	}
	return nil
}

func Terminate() {
	glfw.Terminate()
}

type Config struct {
	Title     string
	Width     int
	Height    int
	Resizable bool
	Logger    *slog.Logger
}

// Window wraps a GLFW window created without a client API.
type Window struct {
	win       *glfw.Window
	log       *slog.Logger
	minimized bool
	onResize  func(width, height int)
}

func New(cfg Config) (*Window, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.Errorf("invalid window size %dx%d", cfg.Width, cfg.Height)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Visible, glfw.True)
	resizable := glfw.False
	if cfg.Resizable {
		resizable = glfw.True
	}
	glfw.WindowHint(glfw.Resizable, resizable)

	win, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create window")
	}
	w := &Window{win: win, log: cfg.Logger}
	if w.log == nil {
		w.log = slog.Default()
	}
	w.minimized = win.GetAttrib(glfw.Iconified) == glfw.True

	win.SetIconifyCallback(func(_ *glfw.Window, iconified bool) {
		w.minimized = iconified
		w.log.Debug("window iconify", "minimized", iconified)
	})
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.log.Debug("framebuffer resized", "width", width, "height", height)
		if w.onResize != nil {
			w.onResize(width, height)
		}
	})
	return w, nil
}

// OnResize registers fn to run when the framebuffer size changes.
func (w *Window) OnResize(fn func(width, height int)) {
	w.onResize = fn
}

func (w *Window) FramebufferSize() (int, int) {
	return w.win.GetFramebufferSize()
}

func (w *Window) Minimized() bool {
	return w.minimized
}

func (w *Window) PollEvents() {
	glfw.PollEvents()
}

func (w *Window) ShouldClose() bool {
	return w.win.ShouldClose()
}

// Close asks the window to close; ShouldClose reports true afterwards.
func (w *Window) Close() {
	w.win.SetShouldClose(true)
}

func (w *Window) SetTitle(title string) {
	w.win.SetTitle(title)
}

// RequiredInstanceExtensions lists the instance extensions the window system
// needs to present.
func (w *Window) RequiredInstanceExtensions() []string {
	return w.win.GetRequiredInstanceExtensions()
}

// Surface creates a presentation surface for instance.
func (w *Window) Surface(instance vk.Instance) (vk.Surface, error) {
	ptr, err := w.win.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, errors.Wrap(err, "create window surface")
	}
	return vk.SurfaceFromPointer(ptr), nil
}

func (w *Window) Destroy() {
	if w.win == nil {
		return
	}
	w.win.Destroy()
	w.win = nil
}
