package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roasbeef/rotorgo/internal/baselib/actor"
)

var timeoutCmd = &cobra.Command{
	Use:   "timeout",
	Short: "Scenario 2: a request that is never answered times out exactly once",
	Long: `caller sends a request to an actor that never replies, with a 1ms
timeout. Expect a single request_timeout error, never a hang.`,
	RunE: runTimeout,
}

func runTimeout(cmd *cobra.Command, args []string) error {
	h, err := newHarness()
	if err != nil {
		return err
	}
	defer h.close()

	silent := h.sup.CreateActor("silent", nil, actor.DefaultChildPolicy())
	caller := h.sup.CreateActor("caller", nil, actor.DefaultChildPolicy())

	if err := waitFor(time.Second, func() bool {
		return silent.State() == actor.StateOperational && caller.State() == actor.StateOperational
	}); err != nil {
		return fmt.Errorf("actors never reached OPERATIONAL: %w", err)
	}

	fut := actor.Ask(caller, silent.Address(), time.Millisecond,
		func(meta actor.RequestMeta) actor.Request { return &pingMsg{RequestMeta: meta} })

	_, err = fut.Await(context.Background()).Unpack()
	if err == nil {
		return fmt.Errorf("expected a request_timeout error, got none")
	}

	ext, ok := actor.AsExtended(err)
	if !ok || ext.Code() != actor.CodeRequestTimeout {
		return fmt.Errorf("expected code %q, got %v", actor.CodeRequestTimeout, err)
	}

	fmt.Printf("timeout: request resolved with %s, as expected\n", ext.Code())
	return nil
}
