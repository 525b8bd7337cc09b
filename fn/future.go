package fn

import (
	"context"
	"sync"
)

// Callback receives the outcome of an asynchronous operation.
type Callback[T any] func(value T, err error)

// Future is the handle side of an asynchronous operation. The outcome is
// delivered once to the handle and once to each callback given at creation.
type Future[T any] struct {
	once      sync.Once
	done      chan struct{}
	result    Result[T]
	callbacks []Callback[T]
}

func NewFuture[T any](callbacks ...Callback[T]) *Future[T] {
	cbs := make([]Callback[T], 0, len(callbacks))
	for _, cb := range callbacks {
		if cb != nil {
			cbs = append(cbs, cb)
		}
	}
	return &Future[T]{
		done:      make(chan struct{}),
		callbacks: cbs,
	}
}

// Resolved returns a future that already holds value and err.
func Resolved[T any](value T, err error, callbacks ...Callback[T]) *Future[T] {
	f := NewFuture(callbacks...)
	f.Complete(value, err)
	return f
}

// Complete settles the future. Only the first call has any effect; it
// reports whether this call was the one that settled it.
func (f *Future[T]) Complete(value T, err error) bool {
	fired := false
	f.once.Do(func() {
		fired = true
		f.result = Try(value, err)
		close(f.done)
		for _, cb := range f.callbacks {
			cb(value, err)
		}
	})
	return fired
}

func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future settles or ctx ends. Giving up on ctx does
// not cancel the underlying operation.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result.Get()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait blocks until the future settles.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.result.Get()
}

// Result returns the outcome and whether the future has settled yet.
func (f *Future[T]) Result() (Result[T], bool) {
	select {
	case <-f.done:
		return f.result, true
	default:
		return Result[T]{}, false
	}
}

// Submit runs job through submit and settles the returned future with its
// outcome. If submit itself fails the future settles with that error.
func Submit[T any](submit func(func()) error, job func() (T, error), callbacks ...Callback[T]) *Future[T] {
	f := NewFuture(callbacks...)
	if err := submit(func() {
		f.Complete(job())
	}); err != nil {
		var zero T
		f.Complete(zero, err)
	}
	return f
}

// Go runs job on a new goroutine.
func Go[T any](job func() (T, error), callbacks ...Callback[T]) *Future[T] {
	return Submit(func(task func()) error {
		go task()
		return nil
	}, job, callbacks...)
}
