package vkframe_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/andewx/vkframe"
	"github.com/andewx/vkframe/internal/gputest"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newDevice(t *testing.T) (*gputest.GPU, *vkframe.Device) {
	t.Helper()
	gpu := gputest.New(800, 600)
	dev, err := vkframe.NewDevice(gpu, vkframe.WithLogger(quietLogger()))
	require.NoError(t, err)
	return gpu, dev
}

func testOptions(overlap int) vkframe.Options {
	opts := vkframe.DefaultOptions()
	opts.FrameOverlap = overlap
	opts.Logger = quietLogger()
	return opts
}

var nopDraw = vkframe.DrawFunc(func(*vkframe.Frame) error { return nil })

// targets is draw logic with swapchain dependent render targets.
type targets struct {
	builds      int
	releases    int
	live        bool
	generations []int
	frames      []vkframe.Frame
}

func (d *targets) Draw(f *vkframe.Frame) error {
	d.frames = append(d.frames, *f)
	return nil
}

func (d *targets) BuildTargets(sc *vkframe.Swapchain) error {
	d.builds++
	d.live = true
	d.generations = append(d.generations, sc.Generation())
	return nil
}

func (d *targets) ReleaseTargets() {
	if d.live {
		d.releases++
	}
	d.live = false
}
