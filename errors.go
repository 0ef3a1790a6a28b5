package vkframe

import "github.com/pkg/errors"

var (
	// ErrFenceTimeout is returned when a frame or immediate fence did not
	// signal within its timeout. The GPU is considered hung.
	ErrFenceTimeout = errors.New("fence wait timed out")
	// ErrAcquireTimeout is returned when no swapchain image became available
	// within the acquire timeout.
	ErrAcquireTimeout = errors.New("swapchain acquire timed out")
	ErrOutOfMemory    = errors.New("out of memory")
	ErrDeviceLost     = errors.New("device lost")
	// ErrZeroExtent is returned when a swapchain is created for a zero-sized
	// (usually minimized) window.
	ErrZeroExtent      = errors.New("zero extent")
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrImmediateBusy is returned when the immediate-submit context is
	// entered while another submission is still in flight.
	ErrImmediateBusy = errors.New("immediate submit already in progress")
	ErrClosed        = errors.New("renderer closed")
)

// IsFatal reports whether err leaves the device in a state the frame loop
// cannot recover from.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch errors.Cause(err) {
	case ErrZeroExtent, ErrInvalidArgument, ErrImmediateBusy:
		return false
	}
	return true
}

func invalidArgf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}
