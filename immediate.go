package vkframe

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// ImmediateSubmit runs one-off GPU work, such as uploads, synchronously. It
// has its own command pool, command buffer and fence and never touches the
// frame ring.
type ImmediateSubmit struct {
	drv     Driver
	pool    CommandPool
	cmd     CommandBuffer
	fence   Fence
	timeout time.Duration
	busy    atomic.Bool
}

func newImmediateSubmit(drv Driver, timeout time.Duration) (s *ImmediateSubmit, err error) {
	s = &ImmediateSubmit{drv: drv, timeout: timeout}
	rollback := NewDeletionQueue(2)
	defer func() {
		if err != nil {
			rollback.Flush()
		}
	}()

	if s.pool, err = drv.CreateCommandPool(); err != nil {
		return nil, errors.Wrap(err, "command pool")
	}
	rollback.Push(commandPoolReleaser{drv, s.pool})
	if s.cmd, err = drv.AllocateCommandBuffer(s.pool); err != nil {
		return nil, errors.Wrap(err, "command buffer")
	}
	// Signaled, so the first Run finds it in the state every later Run leaves it in.
	if s.fence, err = drv.CreateFence(true); err != nil {
		return nil, errors.Wrap(err, "fence")
	}
	return s, nil
}

// Run resets the context, lets record fill the command buffer, submits it and
// waits for the fence. A wait that outlives the timeout returns
// ErrFenceTimeout and should be treated as fatal.
func (s *ImmediateSubmit) Run(record func(cmd CommandBuffer) error) error {
	if record == nil {
		return invalidArgf("nil record function")
	}
	if !s.busy.CompareAndSwap(false, true) {
		return ErrImmediateBusy
	}
	defer s.busy.Store(false)

	if err := s.drv.ResetFence(s.fence); err != nil {
		return errors.Wrap(err, "immediate: reset fence")
	}
	if err := s.drv.ResetCommandBuffer(s.cmd); err != nil {
		return errors.Wrap(err, "immediate: reset command buffer")
	}
	if err := s.drv.BeginCommandBuffer(s.cmd); err != nil {
		return errors.Wrap(err, "immediate: begin command buffer")
	}
	if err := record(s.cmd); err != nil {
		return errors.Wrap(err, "immediate: record")
	}
	if err := s.drv.EndCommandBuffer(s.cmd); err != nil {
		return errors.Wrap(err, "immediate: end command buffer")
	}
	err := s.drv.Submit(SubmitInfo{
		CommandBuffers: []CommandBuffer{s.cmd},
		Fence:          s.fence,
	})
	if err != nil {
		return errors.Wrap(err, "immediate: submit")
	}
	return errors.Wrap(s.drv.WaitFence(s.fence, s.timeout), "immediate: wait")
}

func (s *ImmediateSubmit) Release() {
	s.drv.DestroyFence(s.fence)
	s.drv.DestroyCommandPool(s.pool)
}
