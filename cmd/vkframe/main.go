// Command vkframe opens a window and renders the demo triangle through the
// frame engine until the window is closed or the process is interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/andewx/vkframe"
	"github.com/andewx/vkframe/internal/config"
	"github.com/andewx/vkframe/internal/demo"
	"github.com/andewx/vkframe/internal/logx"
	"github.com/andewx/vkframe/vulkan"
	"github.com/andewx/vkframe/window"
)

func init() {
	// glfw and the presentation engine require the main thread.
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	frames := flag.Uint64("frames", 0, "exit after this many presented frames (0 runs until closed)")
	dumpConfig := flag.Bool("dump-config", false, "print the effective config and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *dumpConfig {
		data, err := cfg.Encode()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Stdout.Write(data)
		return
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	log, closeLog, err := logx.New(logx.Options{Level: level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, log, *frames)
	stop()
	if err != nil {
		log.Error("vkframe failed", "err", err, "fatal", vkframe.IsFatal(err))
		closeLog()
		os.Exit(1)
	}
	closeLog()
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger, frames uint64) error {
	if err := window.Init(); err != nil {
		return err
	}
	defer window.Terminate()

	win, err := window.New(window.Config{
		Title:     cfg.Window.Title,
		Width:     cfg.Window.Width,
		Height:    cfg.Window.Height,
		Resizable: cfg.Window.Resizable,
		Logger:    log,
	})
	if err != nil {
		return err
	}
	defer win.Destroy()

	drv, err := vulkan.New(vulkan.Config{
		AppName:            cfg.Vulkan.AppName,
		Validation:         cfg.Vulkan.Validation,
		Layers:             cfg.Vulkan.Layers,
		InstanceExtensions: win.RequiredInstanceExtensions(),
		DeviceExtensions:   cfg.Vulkan.DeviceExtensions,
		Logger:             log,
	}, win.Surface)
	if err != nil {
		return err
	}

	dev, err := vkframe.NewDevice(drv,
		vkframe.WithLogger(log),
		vkframe.WithImmediateTimeout(cfg.ImmediateTimeout()))
	if err != nil {
		drv.Destroy()
		return err
	}
	defer func() {
		if err := dev.Destroy(); err != nil {
			log.Error("device destroy", "err", err)
		}
	}()

	tri, err := demo.NewTriangle(dev, drv, demo.Options{
		VertexShader:   cfg.Shaders.Vertex,
		FragmentShader: cfg.Shaders.Fragment,
		Watch:          cfg.Shaders.Watch,
		RenderScale:    float32(cfg.Renderer.RenderScale),
		Logger:         log,
	})
	if err != nil {
		return err
	}

	opts := cfg.RendererOptions()
	opts.Logger = log
	r, err := vkframe.NewRenderer(dev, win, tri, opts)
	if err != nil {
		return err
	}
	defer r.Close()
	win.OnResize(func(int, int) { r.NotifyResize() })

	events := &titleEvents{win: win, stats: r.Stats(), title: cfg.Window.Title, limit: frames}
	if err := r.Run(ctx, events); err != nil {
		return err
	}
	log.Info("vkframe done", "frames", r.Stats().Frames)
	return nil
}

// titleEvents shows the frame rate in the window title and closes the loop
// once the frame limit is reached.
type titleEvents struct {
	win   *window.Window
	stats *vkframe.FrameStats
	title string
	limit uint64
	shown uint64
}

func (e *titleEvents) PollEvents() {
	e.win.PollEvents()
	if e.stats.Frames-e.shown >= 60 {
		e.shown = e.stats.Frames
		e.win.SetTitle(fmt.Sprintf("%s - %.0f fps", e.title, e.stats.FPS))
	}
}

func (e *titleEvents) ShouldClose() bool {
	if e.limit > 0 && e.stats.Frames >= e.limit {
		return true
	}
	return e.win.ShouldClose()
}
