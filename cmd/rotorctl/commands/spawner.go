package commands

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/roasbeef/rotorgo/internal/baselib/actor"
)

var spawnerCmd = &cobra.Command{
	Use:   "spawner",
	Short: "Scenario 5: restart policies bound how many times a failing child respawns",
	Long: `A factory shuts its child down with an error three times, then
shuts down normally. With fail_only, expect 3 respawns then no further
one. A second child, always-failing with max_attempts=2, is expected to
run exactly 2 extra times (3 total starts) before the supervisor gives up.`,
	RunE: runSpawner,
}

type failThenNormal struct {
	failures *atomic.Int64
	limit    int64
}

func (b *failThenNormal) OnActorStart(core *actor.ActorCore) {
	if b.failures.Add(1) <= b.limit {
		core.RequestShutdown(actor.NewExtendedError("injected failure", actor.CodeUnknown))
		return
	}
	core.RequestShutdown(nil)
}

func runSpawner(cmd *cobra.Command, args []string) error {
	h, err := newHarness()
	if err != nil {
		return err
	}
	defer h.close()

	failOnlyStarts := &atomic.Int64{}
	failOnlyPolicy := actor.ChildPolicy{
		Restart: actor.RestartFailOnly, Period: time.Minute, MaxAttempts: 10,
	}
	h.sup.CreateActor("flaky", &failThenNormal{failures: failOnlyStarts, limit: 3}, failOnlyPolicy)

	if err := waitFor(time.Second, func() bool { return failOnlyStarts.Load() == 4 }); err != nil {
		return fmt.Errorf("fail_only child did not reach 4 starts: %w", err)
	}
	time.Sleep(20 * time.Millisecond)
	if got := failOnlyStarts.Load(); got != 4 {
		return fmt.Errorf("fail_only child restarted past its failure streak: got %d starts, want 4", got)
	}
	fmt.Println("spawner: fail_only child stopped respawning after its 3 failures, 4 starts total")

	alwaysStarts := &atomic.Int64{}
	alwaysPolicy := actor.ChildPolicy{
		Restart: actor.RestartAlways, Period: time.Minute, MaxAttempts: 2,
	}
	h.sup.CreateActor("always-fails", &failThenNormal{failures: alwaysStarts, limit: 1_000_000}, alwaysPolicy)

	if err := waitFor(time.Second, func() bool { return alwaysStarts.Load() == 3 }); err != nil {
		return fmt.Errorf("always-failing child did not reach 3 starts: %w", err)
	}
	time.Sleep(20 * time.Millisecond)
	if got := alwaysStarts.Load(); got != 3 {
		return fmt.Errorf("always-failing child exceeded max_attempts: got %d starts, want 3", got)
	}
	fmt.Println("spawner: max_attempts=2 capped the always-failing child at 3 starts total")
	return nil
}
