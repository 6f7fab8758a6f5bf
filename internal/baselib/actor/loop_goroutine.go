package actor

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// goroutineLoop is the reference Loop backend: a single dedicated
// goroutine that wakes on a buffered signal channel and on expiring
// timers. NewGoroutineLoop returns it for passing to NewRootSupervisor,
// and it is what cmd/rotorctl's demo scenarios run against.
//
// A timer's fire callback must run on this same goroutine -- everything
// it touches (ActorCore state, the request table) assumes single-threaded
// access. time.AfterFunc itself fires on a runtime timer goroutine, so
// StartTimer only ever queues fire into pending and wakes the loop; the
// loop's own goroutine is what actually calls it, via runPendingTimers.
type goroutineLoop struct {
	wake chan struct{}
	stop chan struct{}
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending []func()
	nextID  uint64
}

// NewGoroutineLoop constructs a Loop backed by a single dedicated
// goroutine.
func NewGoroutineLoop() Loop {
	return &goroutineLoop{
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		timers: make(map[string]*time.Timer),
	}
}

func (l *goroutineLoop) Start(ctx context.Context, drain func()) {
	go func() {
		defer close(l.done)
		for {
			l.runPendingTimers()
			drain()
			select {
			case <-l.wake:
			case <-l.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (l *goroutineLoop) Shutdown() {
	l.once.Do(func() { close(l.stop) })
	<-l.done
}

func (l *goroutineLoop) Enqueue() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *goroutineLoop) StartTimer(d time.Duration, fire func()) string {
	l.mu.Lock()
	l.nextID++
	token := "t" + strconv.FormatUint(l.nextID, 10)
	t := time.AfterFunc(d, func() {
		l.mu.Lock()
		_, stillPending := l.timers[token]
		if stillPending {
			delete(l.timers, token)
			l.pending = append(l.pending, fire)
		}
		l.mu.Unlock()
		if stillPending {
			l.Enqueue()
		}
	})
	l.timers[token] = t
	l.mu.Unlock()
	return token
}

func (l *goroutineLoop) CancelTimer(token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.timers[token]; ok {
		t.Stop()
		delete(l.timers, token)
	}
}

func (l *goroutineLoop) runPendingTimers() {
	l.mu.Lock()
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, fire := range pending {
		fire()
	}
}
