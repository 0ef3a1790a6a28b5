package gputest

// Window is a scripted vkframe.Window and vkframe.EventSource.
type Window struct {
	Width, Height int
	Iconified     bool
	// CloseAfter makes ShouldClose report true once PollEvents has been
	// called that many times. Zero never closes.
	CloseAfter int
	// OnPoll runs on every PollEvents with the poll count, starting at 1.
	OnPoll func(n int)

	polls int
}

func NewWindow(width, height int) *Window {
	return &Window{Width: width, Height: height}
}

func (w *Window) FramebufferSize() (int, int) { return w.Width, w.Height }
func (w *Window) Minimized() bool             { return w.Iconified }

func (w *Window) PollEvents() {
	w.polls++
	if w.OnPoll != nil {
		w.OnPoll(w.polls)
	}
}

func (w *Window) ShouldClose() bool {
	return w.CloseAfter > 0 && w.polls >= w.CloseAfter
}

func (w *Window) Polls() int { return w.polls }
