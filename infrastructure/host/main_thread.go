package host

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	pkgerrors "graphengine/pkg/errors"
)

// ErrThreadClosed is returned by Do after Close
var ErrThreadClosed = errors.New("main thread is closed")

type onThreadKey struct{}

type task struct {
	ctx    context.Context
	fn     func(ctx context.Context) error
	result chan error
}

// MainThread runs every task on one goroutine, in submission order.
type MainThread struct {
	tasks  chan task
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

// NewMainThread starts the loop. queue is how many tasks may wait before Do
// blocks on submission.
func NewMainThread(queue int, logger *zap.Logger) *MainThread {
	if queue < 0 {
		queue = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &MainThread{
		tasks:  make(chan task, queue),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
	go t.loop()
	return t
}

// Do runs fn on the loop and waits for it to return. A call made from a task
// already on the loop runs inline. A task whose context is cancelled before
// it starts is skipped.
func (t *MainThread) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(onThreadKey{}) != nil {
		return t.run(ctx, fn)
	}

	tk := task{ctx: ctx, fn: fn, result: make(chan error, 1)}
	select {
	case <-t.stop:
		return ErrThreadClosed
	case <-ctx.Done():
		return ctx.Err()
	case t.tasks <- tk:
	}

	select {
	case err := <-tk.result:
		return err
	case <-t.done:
		// The loop exited with the task still queued.
		select {
		case err := <-tk.result:
			return err
		default:
			return ErrThreadClosed
		}
	}
}

// Close stops the loop after the task in progress. Queued tasks fail with
// ErrThreadClosed.
func (t *MainThread) Close() {
	t.once.Do(func() { close(t.stop) })
	<-t.done
}

func (t *MainThread) loop() {
	defer close(t.done)
	for {
		select {
		case <-t.stop:
			t.drain()
			return
		case tk := <-t.tasks:
			if err := tk.ctx.Err(); err != nil {
				tk.result <- err
				continue
			}
			tk.result <- t.run(context.WithValue(tk.ctx, onThreadKey{}, true), tk.fn)
		}
	}
}

func (t *MainThread) drain() {
	for {
		select {
		case tk := <-t.tasks:
			tk.result <- ErrThreadClosed
		default:
			return
		}
	}
}

func (t *MainThread) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			t.logger.Error("Main thread task panicked",
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()),
			)
			err = pkgerrors.New(pkgerrors.KindInternal, fmt.Sprintf("main thread task panicked: %v", p))
		}
	}()
	return fn(ctx)
}
