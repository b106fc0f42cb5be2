package event

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// ErrLoopStopped is returned by Do once the loop has been stopped.
var ErrLoopStopped = fmt.Errorf("event: loop stopped")

type task struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Loop runs tasks one at a time on a single goroutine, in submission order.
// Everything a task touches is therefore owned by the loop without locking.
// A task must not call Do on its own loop: it would wait for itself.
type Loop struct {
	tasks chan task
	quit  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

func NewLoop() *Loop {
	l := &Loop{
		tasks: make(chan task),
		quit:  make(chan struct{}),
	}

	l.wg.Add(1)
	go l.run()

	return l
}

func (l *Loop) run() {
	defer l.wg.Done()

	for {
		select {
		case t := <-l.tasks:
			t.done <- l.exec(t)
		case <-l.quit:
			return
		}
	}
}

func (l *Loop) exec(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event: loop task panic: %v, stack: %s", r, debug.Stack())
		}
	}()

	return t.fn(t.ctx)
}

// Do submits fn and waits for it to complete. If ctx ends first, Do returns
// ctx.Err() while fn, if already started, still runs to completion on the loop.
func (l *Loop) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}

	select {
	case l.tasks <- t:
	case <-l.quit:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop waits for the running task, if any, and stops the loop.
func (l *Loop) Stop() {
	l.once.Do(func() {
		close(l.quit)
	})
	l.wg.Wait()
}
