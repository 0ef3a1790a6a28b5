// Package config loads the TOML configuration of the vkframe executable.
package config

import (
	"bytes"
	"log/slog"
	"os"
	"time"

	"github.com/andewx/vkframe"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

type Config struct {
	Window   Window   `toml:"window"`
	Renderer Renderer `toml:"renderer"`
	Vulkan   Vulkan   `toml:"vulkan"`
	Log      Log      `toml:"log"`
	Shaders  Shaders  `toml:"shaders"`
}

type Window struct {
	Title     string `toml:"title"`
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	Resizable bool   `toml:"resizable"`
}

type Renderer struct {
	FrameOverlap       int  `toml:"frame_overlap"`
	SwapchainImages    int  `toml:"swapchain_images"`
	FenceTimeoutMS     int  `toml:"fence_timeout_ms"`
	AcquireTimeoutMS   int  `toml:"acquire_timeout_ms"`
	ImmediateTimeoutMS int  `toml:"immediate_timeout_ms"`
	MinimizedPollMS    int  `toml:"minimized_poll_ms"`
	VSync              bool `toml:"vsync"`
	Depth              bool `toml:"depth"`
	// RenderScale sizes the demo's offscreen draw image relative to the
	// swapchain.
	RenderScale float64 `toml:"render_scale"`
}

type Vulkan struct {
	AppName          string   `toml:"app_name"`
	Validation       bool     `toml:"validation"`
	Layers           []string `toml:"layers"`
	DeviceExtensions []string `toml:"device_extensions"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	// File, when set, receives the log in append mode instead of stderr.
	File string `toml:"file"`
}

type Shaders struct {
	Vertex   string `toml:"vertex"`
	Fragment string `toml:"fragment"`
	Watch    bool   `toml:"watch"`
}

// MinRenderScale is the smallest accepted renderer.render_scale.
const MinRenderScale = 0.3

func Default() Config {
	return Config{
		Window: Window{Title: "vkframe", Width: 800, Height: 600, Resizable: true},
		Renderer: Renderer{
			FrameOverlap:       vkframe.DefaultFrameOverlap,
			SwapchainImages:    3,
			FenceTimeoutMS:     int(vkframe.DefaultFenceTimeout / time.Millisecond),
			AcquireTimeoutMS:   int(vkframe.DefaultAcquireTimeout / time.Millisecond),
			ImmediateTimeoutMS: int(vkframe.DefaultImmediateTimeout / time.Millisecond),
			MinimizedPollMS:    int(vkframe.DefaultMinimizedPoll / time.Millisecond),
			VSync:              true,
			Depth:              true,
			RenderScale:        1,
		},
		Vulkan: Vulkan{AppName: "vkframe"},
		Log:    Log{Level: "info", Format: "text"},
		Shaders: Shaders{
			Vertex:   "internal/demo/shaders/triangle.vert.spv",
			Fragment: "internal/demo/shaders/triangle.frag.spv",
		},
	}
}

// Load reads path on top of the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.WithMessage(err, path)
	}
	return cfg, nil
}

// Parse decodes TOML on top of the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, errors.Errorf("config: %s", strict.String())
		}
		return Config{}, errors.Wrap(err, "config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	return data, errors.Wrap(err, "encode config")
}

func (c Config) Validate() error {
	r := c.Renderer
	switch {
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return errors.Errorf("config: window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	case r.FrameOverlap < vkframe.MinFrameOverlap || r.FrameOverlap > vkframe.MaxFrameOverlap:
		return errors.Errorf("config: frame_overlap %d outside [%d, %d]",
			r.FrameOverlap, vkframe.MinFrameOverlap, vkframe.MaxFrameOverlap)
	case r.SwapchainImages < 2 || r.SwapchainImages > 8:
		return errors.Errorf("config: swapchain_images %d outside [2, 8]", r.SwapchainImages)
	case r.FenceTimeoutMS <= 0 || r.AcquireTimeoutMS <= 0 || r.ImmediateTimeoutMS <= 0:
		return errors.New("config: timeouts must be positive")
	case r.MinimizedPollMS <= 0:
		return errors.Errorf("config: minimized_poll_ms %d must be positive", r.MinimizedPollMS)
	case r.RenderScale < MinRenderScale || r.RenderScale > 1:
		return errors.Errorf("config: render_scale %g outside [%g, 1]", r.RenderScale, MinRenderScale)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.Errorf("config: log format %q, want text or json", c.Log.Format)
	}
	if c.Shaders.Vertex == "" || c.Shaders.Fragment == "" {
		return errors.New("config: vertex and fragment shaders are required")
	}
	return nil
}

// ParseLevel maps a level name onto slog.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.Errorf("config: unknown log level %q", s)
	}
	return level, nil
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// RendererOptions converts the renderer section; the logger is left for
// the caller.
func (c Config) RendererOptions() vkframe.Options {
	r := c.Renderer
	opts := vkframe.DefaultOptions()
	opts.FrameOverlap = r.FrameOverlap
	opts.Swapchain.ImageCount = uint32(r.SwapchainImages)
	if !r.VSync {
		opts.Swapchain.PresentMode = vkframe.PresentModeMailbox
	}
	if !r.Depth {
		opts.Swapchain.DepthFormat = vkframe.FormatUndefined
	}
	opts.FenceTimeout = ms(r.FenceTimeoutMS)
	opts.AcquireTimeout = ms(r.AcquireTimeoutMS)
	opts.MinimizedPoll = ms(r.MinimizedPollMS)
	return opts
}

func (c Config) ImmediateTimeout() time.Duration {
	return ms(c.Renderer.ImmediateTimeoutMS)
}
