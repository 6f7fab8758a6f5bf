package actor

import (
	"context"
	"sync"
)

// System is the top-level handle a process holds: it tracks every root
// supervisor created against it and provides a single place to configure
// dead-letter handling and to shut everything down together. It mirrors
// the teacher's ActorSystem in role, generalized from a single
// per-(M,R)-typed actor registry to one spanning arbitrarily many
// localities.
type System struct {
	mu             sync.Mutex
	supervisors    map[uint64]*Supervisor
	onDeadLetterFn func(Envelope)
	shuttingDown   bool
}

// NewSystem constructs an empty System. onDeadLetter, if non-nil, is
// called for every message delivered to an address with no matching
// subscription; if nil, dead letters are logged and dropped.
func NewSystem(onDeadLetter func(Envelope)) *System {
	return &System{
		supervisors:    make(map[uint64]*Supervisor),
		onDeadLetterFn: onDeadLetter,
	}
}

func (sys *System) deadLetter(env Envelope) {
	if sys.onDeadLetterFn != nil {
		sys.onDeadLetterFn(env)
		return
	}
	log.WarnS(context.Background(), "dead letter (no subscriber)",
		"dest", env.Dest.String(), "type", env.Msg.MessageType())
}

func (sys *System) registerSupervisor(s *Supervisor) {
	sys.mu.Lock()
	defer sys.mu.Unlock()
	sys.supervisors[s.address.id] = s
}

// Shutdown requests an orderly shutdown of every registered root
// supervisor, then blocks until every locality's loop has returned, or
// ctx is done first.
func (sys *System) Shutdown(ctx context.Context, reason *ExtendedError) {
	sys.mu.Lock()
	sys.shuttingDown = true
	sups := make([]*Supervisor, 0, len(sys.supervisors))
	for _, s := range sys.supervisors {
		sups = append(sups, s)
	}
	sys.mu.Unlock()

	for _, s := range sups {
		s.Shutdown(reason)
	}

	done := make(chan struct{})
	go func() {
		for _, s := range sups {
			select {
			case <-s.Done():
			case <-ctx.Done():
				close(done)
				return
			}
			s.loc.reqTable.cancelAll(ErrSystemShuttingDown)
			s.loc.loop.Shutdown()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// ShuttingDown reports whether System.Shutdown has been called.
func (sys *System) ShuttingDown() bool {
	sys.mu.Lock()
	defer sys.mu.Unlock()
	return sys.shuttingDown
}
