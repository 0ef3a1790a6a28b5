package vkframe

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

// InitPipeline runs named initialization steps in order. Each step registers
// the cleanup of what it created on the rollback queue it is handed; when a
// step fails the rollback queue is flushed, undoing the earlier steps in
// reverse.
type InitPipeline struct {
	log   *slog.Logger
	steps []initStep
}

type initStep struct {
	name string
	run  func(rollback *DeletionQueue) error
}

func NewInitPipeline(log *slog.Logger) *InitPipeline {
	if log == nil {
		log = slog.Default()
	}
	return &InitPipeline{log: log}
}

func (p *InitPipeline) Add(name string, run func(rollback *DeletionQueue) error) *InitPipeline {
	p.steps = append(p.steps, initStep{name: name, run: run})
	return p
}

// Run executes the steps. On success the returned queue holds the cleanup of
// every step, for owners that want to tear down in the same order.
func (p *InitPipeline) Run() (*DeletionQueue, error) {
	rollback := NewDeletionQueue(len(p.steps))
	for _, step := range p.steps {
		start := time.Now()
		if err := step.run(rollback); err != nil {
			p.log.Error("init step failed", "step", step.name, "err", err)
			rollback.Flush()
			return nil, errors.Wrapf(err, "init %s", step.name)
		}
		p.log.Debug("init step done", "step", step.name, "elapsed", time.Since(start))
	}
	return rollback, nil
}
