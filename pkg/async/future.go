// Package async provides a single-result task handle that a control loop can
// poll without blocking.
package async

import "sync/atomic"

// Future is the handle of a task running on its own goroutine.
//
// Ready and Drain never block. Drain hands the result out exactly once, so a
// poller that sees the same future twice cannot consume it twice.
type Future[T any] struct {
	done    chan struct{}
	value   T
	drained atomic.Bool
}

// Spawn runs fn on a new goroutine and returns its handle.
func Spawn[T any](fn func() T) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.value = fn()
	}()
	return f
}

// Ready reports whether the task has completed.
func (f *Future[T]) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Drain returns the result and true the first time it is called on a
// completed future. It returns the zero value and false while the task is
// running and on every call after the first successful one.
func (f *Future[T]) Drain() (T, bool) {
	var zero T
	if !f.Ready() {
		return zero, false
	}
	if !f.drained.CompareAndSwap(false, true) {
		return zero, false
	}
	return f.value, true
}

// Drained reports whether Drain has already handed out the result.
func (f *Future[T]) Drained() bool {
	return f.drained.Load()
}

// Wait blocks until the task completes and returns its result without
// draining it.
func (f *Future[T]) Wait() T {
	<-f.done
	return f.value
}
