package actor

import (
	"context"
	"time"
)

// Loop is the abstract adapter a locality's leader drives its work queue
// through. Concrete backends (a dedicated goroutine, an existing event
// loop, a UI toolkit's main thread) live outside this package; this
// package ships one reference implementation, goroutineLoop, in
// loop_goroutine.go.
type Loop interface {
	// Start begins running the loop on whatever thread/goroutine the
	// backend uses, invoking drain every time work might be available.
	Start(ctx context.Context, drain func())

	// Shutdown stops the loop, blocking until its goroutine/thread has
	// returned.
	Shutdown()

	// Enqueue wakes the loop so it calls drain again soon; ActorCore.Send
	// calls it after every push, local queue or cross-locality MPSC, so an
	// envelope pushed from outside the loop's own goroutine is drained.
	Enqueue()

	// StartTimer arranges for fire to be called, on the loop's own
	// goroutine, after d elapses. It returns a cancel token string handed
	// back to CancelTimer.
	StartTimer(d time.Duration, fire func()) string

	// CancelTimer cancels a pending timer by the token StartTimer
	// returned. Canceling an already-fired or unknown token is a no-op.
	CancelTimer(token string)
}
