// Package uiloop is a sample UI/event-loop Loop backend: a single
// dispatch goroutine, same as any other backend must guarantee, paired
// with a Hub that streams every actor lifecycle transition out over a
// websocket so a browser can watch a locality live. It is the backend the
// spec names but leaves unspecified ("UI/event-loop adapters").
package uiloop

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Loop is a Loop backend identical in dispatch guarantees to a plain
// goroutine loop: do_start_timer/do_cancel_timer and handler dispatch all
// run on the one goroutine Start spawns. What distinguishes it is purely
// that its owner is expected to pair it with a Hub (see hub.go) so a UI
// can observe the locality it drives.
type Loop struct {
	wake chan struct{}
	stop chan struct{}
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending []func()
	nextID  uint64
}

// NewLoop constructs a UI-facing Loop backend.
func NewLoop() *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		timers: make(map[string]*time.Timer),
	}
}

func (l *Loop) Start(ctx context.Context, drain func()) {
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

func (l *Loop) Shutdown() {
	l.once.Do(func() { close(l.stop) })
	<-l.done
}

func (l *Loop) Enqueue() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) StartTimer(d time.Duration, fire func()) string {
	l.mu.Lock()
	l.nextID++
	token := "ui" + strconv.FormatUint(l.nextID, 10)
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

func (l *Loop) CancelTimer(token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.timers[token]; ok {
		t.Stop()
		delete(l.timers, token)
	}
}

func (l *Loop) runPendingTimers() {
	l.mu.Lock()
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, fire := range pending {
		fire()
	}
}
