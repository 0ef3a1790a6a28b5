package vkframe

import (
	"time"

	"github.com/loov/hrtime"
)

// FrameStats counts presented frames and keeps a frames-per-second figure
// averaged over one second windows.
type FrameStats struct {
	Frames    uint64
	FrameTime time.Duration
	FPS       float64

	now          func() time.Duration
	started      bool
	last         time.Duration
	windowStart  time.Duration
	windowFrames int
}

func NewFrameStats() *FrameStats {
	return &FrameStats{now: hrtime.Now}
}

// Frame records one presented frame.
func (s *FrameStats) Frame() {
	t := s.now()
	s.Frames++
	if !s.started {
		s.started = true
		s.last = t
		s.windowStart = t
		return
	}
	s.FrameTime = t - s.last
	s.last = t
	s.windowFrames++
	if elapsed := t - s.windowStart; elapsed >= time.Second {
		s.FPS = float64(s.windowFrames) / elapsed.Seconds()
		s.windowStart = t
		s.windowFrames = 0
	}
}
