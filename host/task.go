package host

import (
	"context"
	"sync"

	"github.com/beaglecam/camlink/logger"
)

// taskManager owns the camera's background goroutines. Tasks run until their
// function reports done, the manager's context is canceled, or they panic;
// panics are recovered and logged so one bad message cannot take down the
// process.
type taskManager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
}

func newTaskManager(parent context.Context, l logger.Logger) *taskManager {
	ctx, cancel := context.WithCancel(parent)
	return &taskManager{ctx: ctx, cancel: cancel, logger: l}
}

// Context returns the context shared by all tasks.
func (m *taskManager) Context() context.Context { return m.ctx }

// Start launches a looping task. fn is invoked repeatedly until it returns
// false or the manager is stopped.
func (m *taskManager) Start(name string, fn func() bool) {
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("task panic", "task", name, "recovered", r)
			}
		}()

		m.logger.Debug("task started", "task", name)
		defer m.logger.Debug("task stopped", "task", name)

		for m.ctx.Err() == nil {
			if !fn() {
				return
			}
		}
	}()
}

// Stop cancels all tasks and waits for them to exit.
func (m *taskManager) Stop() {
	m.cancel()
	m.wg.Wait()
}
