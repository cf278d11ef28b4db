// Package oneshot provides a future that settles exactly once.
package oneshot

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrAbandoned is returned if the future was abandoned
	// instead of being resolved with a value.
	ErrAbandoned = errors.New("future abandoned")

	// ErrNotSettled is returned by Get if the future is still pending.
	ErrNotSettled = errors.New("future not settled")
)

// Future holds a value that is delivered at most once. The first call
// to Resolve or Abandon settles the future, later calls are no-ops.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	value     T
	abandoned bool
	settled   bool
	callbacks []func(T)
}

// New creates an unsettled future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved creates a future that is already resolved with v.
func Resolved[T any](v T) *Future[T] {
	f := New[T]()
	f.Resolve(v)
	return f
}

// Abandoned creates a future that is already abandoned.
func Abandoned[T any]() *Future[T] {
	f := New[T]()
	f.Abandon()
	return f
}

// Resolve settles the future with v and runs registered callbacks.
// It reports whether this call settled the future.
func (f *Future[T]) Resolve(v T) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}

	f.settled = true
	f.value = v
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(v)
	}

	return true
}

// Abandon settles the future without a value. Callbacks never run.
func (f *Future[T]) Abandon() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.settled {
		return false
	}

	f.settled = true
	f.abandoned = true
	f.callbacks = nil
	close(f.done)

	return true
}

// Then registers cb to run once the future is resolved. If the future
// is already resolved, cb runs immediately on the calling goroutine.
func (f *Future[T]) Then(cb func(T)) {
	f.mu.Lock()
	if !f.settled {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}

	abandoned, v := f.abandoned, f.value
	f.mu.Unlock()

	if !abandoned {
		cb(v)
	}
}

// Done returns a channel that is closed once the future is settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future was resolved or abandoned.
func (f *Future[T]) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.settled
}

// Wait blocks until the future settles or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.Get()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Get returns the value without blocking. It fails with ErrNotSettled
// while the future is pending and with ErrAbandoned once abandoned.
func (f *Future[T]) Get() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var zero T

	if !f.settled {
		return zero, ErrNotSettled
	}

	if f.abandoned {
		return zero, ErrAbandoned
	}

	return f.value, nil
}
