// Package latch provides a one-shot completion primitive shared by every
// exit path of a single asynchronous operation.
package latch

import (
	"context"
	"sync/atomic"
)

// Latch delivers exactly one value. The first Fire wins; later calls are
// ignored. Latch is safe for concurrent use.
type Latch[T any] struct {
	fired atomic.Bool
	value T
	done  chan struct{}
}

// New returns an unfired latch.
func New[T any]() *Latch[T] {
	return &Latch[T]{done: make(chan struct{})}
}

// Fire stores v and releases waiters. It reports whether this call won.
func (l *Latch[T]) Fire(v T) bool {
	if !l.fired.CompareAndSwap(false, true) {
		return false
	}
	l.value = v
	close(l.done)
	return true
}

// Fired reports whether the latch has completed.
func (l *Latch[T]) Fired() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Done is closed once the latch fires.
func (l *Latch[T]) Done() <-chan struct{} {
	return l.done
}

// Value returns the fired value. Only meaningful after Done is closed.
func (l *Latch[T]) Value() T {
	<-l.done
	return l.value
}

// Wait blocks until the latch fires or ctx is done.
func (l *Latch[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-l.done:
		return l.value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
