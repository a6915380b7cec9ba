// Package async provides the executor that runs chat connection logic and
// suspending harness operations as independently schedulable units of work.
package async

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultMaxTasks is the number of concurrent task slots used when New is
// given a non-positive capacity.
const DefaultMaxTasks = 64

var (
	// ErrExecutorClosed is returned when work is submitted after Close.
	ErrExecutorClosed = errors.New("executor closed")

	// ErrNoCapacity is returned by Spawn when every task slot is taken.
	ErrNoCapacity = errors.New("no free task slot")
)

// Executor runs units of work on goroutines, bounded by a fixed number of
// task slots. Close cancels the context handed to every task and waits for
// all of them to return.
type Executor struct {
	slots chan struct{}

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an executor with maxTasks concurrent task slots.
func New(maxTasks int, logger zerolog.Logger) *Executor {
	if maxTasks <= 0 {
		maxTasks = DefaultMaxTasks
	}

	slots := make(chan struct{}, maxTasks)
	for i := 0; i < maxTasks; i++ {
		slots <- struct{}{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		slots:  slots,
		logger: logger.With().Str("com", "executor").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Spawn schedules fn as a unit of work. It never blocks waiting for a slot:
// if all slots are taken it fails with ErrNoCapacity.
func (e *Executor) Spawn(name string, fn func(ctx context.Context)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("spawn %s: %w", name, ErrExecutorClosed)
	}

	select {
	case <-e.slots:
	default:
		return fmt.Errorf("spawn %s: %w", name, ErrNoCapacity)
	}

	e.run(name, fn)
	return nil
}

// SpawnWait is Spawn, but waits for a free slot until ctx is done or the
// executor is closed.
func (e *Executor) SpawnWait(ctx context.Context, name string, fn func(ctx context.Context)) error {
	select {
	case <-e.slots:
	case <-ctx.Done():
		return fmt.Errorf("spawn %s: %w", name, ctx.Err())
	case <-e.ctx.Done():
		return fmt.Errorf("spawn %s: %w", name, ErrExecutorClosed)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		e.slots <- struct{}{}
		return fmt.Errorf("spawn %s: %w", name, ErrExecutorClosed)
	}

	e.run(name, fn)
	return nil
}

// run starts fn on a slot already taken. e.mu must be held.
func (e *Executor) run(name string, fn func(ctx context.Context)) {
	e.wg.Add(1)
	go func() {
		defer func() {
			e.slots <- struct{}{}
			e.wg.Done()
		}()
		e.logger.Trace().Str("task", name).Msg("task started")
		fn(e.ctx)
		e.logger.Trace().Str("task", name).Msg("task finished")
	}()
}

// Available returns the number of free task slots.
func (e *Executor) Available() int {
	return len(e.slots)
}

// Close stops accepting work, cancels running tasks and waits for them.
// Calling Close more than once is a no-op.
func (e *Executor) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
	e.logger.Debug().Msg("executor closed")
	return nil
}

type result[T any] struct {
	value T
	err   error
}

// Invoke runs fn on the executor and waits for its result. If every slot is
// taken it waits for one. The context passed to fn is cancelled when either
// ctx or the executor is done.
func Invoke[T any](ctx context.Context, e *Executor, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	resultCh := make(chan result[T], 1)
	err := e.SpawnWait(ctx, "invoke", func(execCtx context.Context) {
		taskCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(execCtx, cancel)
		defer stop()

		v, err := fn(taskCtx)
		resultCh <- result[T]{value: v, err: err}
	})
	if err != nil {
		return zero, err
	}

	res := <-resultCh
	return res.value, res.err
}
