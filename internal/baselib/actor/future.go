package actor

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Future is the read side of a Promise/Future pair, the plumbing behind
// every Request/Ask call. The interface and its method set mirror the
// teacher's own Future[T] contract exactly.
type Future[T any] interface {
	// Await blocks until the future completes or ctx is done, whichever
	// happens first.
	Await(ctx context.Context) fn.Result[T]

	// ThenApply returns a derived future that applies fn to a successful
	// result, or propagates the same error.
	ThenApply(ctx context.Context, fn func(T) T) Future[T]

	// OnComplete schedules cb to run (on its own goroutine) once the
	// future completes or ctx is done.
	OnComplete(ctx context.Context, cb func(fn.Result[T]))
}

// Promise is the write side. Complete is safe to call from any goroutine
// and is idempotent: only the first call has an effect.
type Promise[T any] interface {
	Future() Future[T]
	Complete(result fn.Result[T]) bool
}

type futureImpl[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	result    fn.Result[T]
	completed bool
}

func newFutureImpl[T any]() *futureImpl[T] {
	return &futureImpl[T]{done: make(chan struct{})}
}

func (f *futureImpl[T]) Await(ctx context.Context) fn.Result[T] {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.result
	case <-ctx.Done():
		return fn.Err[T](ctx.Err())
	}
}

func (f *futureImpl[T]) ThenApply(ctx context.Context, apply func(T) T) Future[T] {
	next := NewPromise[T]()
	go func() {
		res := f.Await(ctx)
		val, err := res.Unpack()
		if err != nil {
			next.Complete(fn.Err[T](err))
			return
		}
		next.Complete(fn.Ok(apply(val)))
	}()
	return next.Future()
}

func (f *futureImpl[T]) OnComplete(ctx context.Context, cb func(fn.Result[T])) {
	go cb(f.Await(ctx))
}

type promiseImpl[T any] struct {
	fut  *futureImpl[T]
	once sync.Once
}

// NewPromise constructs a fresh, uncompleted Promise[T]. The teacher's
// retrieved actor package referenced NewPromise from call sites but never
// shipped its definition; this implementation fulfils that same contract
// (Future()/Complete()) from scratch.
func NewPromise[T any]() Promise[T] {
	return &promiseImpl[T]{fut: newFutureImpl[T]()}
}

func (p *promiseImpl[T]) Future() Future[T] { return p.fut }

func (p *promiseImpl[T]) Complete(result fn.Result[T]) bool {
	completed := false
	p.once.Do(func() {
		p.fut.mu.Lock()
		p.fut.result = result
		p.fut.completed = true
		p.fut.mu.Unlock()
		close(p.fut.done)
		completed = true
	})
	return completed
}
