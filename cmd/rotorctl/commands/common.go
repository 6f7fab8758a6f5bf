package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/roasbeef/rotorgo/internal/baselib/actor"
	"github.com/roasbeef/rotorgo/internal/journal"
)

// harness bundles a freshly started System and root Supervisor, plus an
// in-memory journal every scenario command records lifecycle transitions
// into. Each subcommand builds its own harness so scenarios never share
// state.
type harness struct {
	sys     *actor.System
	sup     *actor.Supervisor
	journal *journal.Store
	cancel  context.CancelFunc
}

func newHarness() (*harness, error) {
	store, err := journal.OpenInMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	sys := actor.NewSystem(nil)
	cfg := actor.DefaultSupervisorConfig()
	cfg.Journal = store
	sup := actor.NewRootSupervisor(sys, actor.NewGoroutineLoop(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	sup.Start(ctx)

	return &harness{sys: sys, sup: sup, journal: store, cancel: cancel}, nil
}

func (h *harness) close() {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	h.sys.Shutdown(shutdownCtx, actor.NewExtendedError("scenario complete", actor.CodeCancelled))
	h.cancel()
	h.journal.Close()
}

// waitFor polls cond every 5ms until it reports true or timeout elapses,
// returning an error in the latter case.
func waitFor(timeout time.Duration, cond func() bool) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	if cond() {
		return nil
	}
	return fmt.Errorf("condition not met within %s", timeout)
}
