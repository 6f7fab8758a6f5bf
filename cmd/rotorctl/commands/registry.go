package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roasbeef/rotorgo/internal/baselib/actor"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Scenario 3: a discovery promise that resolves once the name registers",
	Long: `A client discovers "srv" before the server registers; the server
registers 10ms later. Expect the client to resolve to the server's address
exactly once. A second client then discovers a name that never arrives and
cancels instead, observing cancelled rather than a hang.`,
	RunE: runRegistry,
}

func runRegistry(cmd *cobra.Command, args []string) error {
	h, err := newHarness()
	if err != nil {
		return err
	}
	defer h.close()

	reg := h.sup.CreateActor("registry", actor.NewRegistry(), actor.DefaultChildPolicy())
	caller := h.sup.CreateActor("caller", nil, actor.DefaultChildPolicy())
	server := h.sup.CreateActor("server", nil, actor.DefaultChildPolicy())

	if err := waitFor(time.Second, func() bool {
		return reg.State() == actor.StateOperational &&
			caller.State() == actor.StateOperational &&
			server.State() == actor.StateOperational
	}); err != nil {
		return fmt.Errorf("actors never reached OPERATIONAL: %w", err)
	}

	client := actor.NewRegistryClient(caller, reg.Address())

	discoverFut := client.DiscoverNamePromise("srv")
	time.Sleep(10 * time.Millisecond)

	if _, err := client.Register("srv", server.Address()).Await(context.Background()).Unpack(); err != nil {
		return fmt.Errorf("register failed: %w", err)
	}

	resp, err := discoverFut.Await(context.Background()).Unpack()
	if err != nil {
		return fmt.Errorf("discovery never resolved: %w", err)
	}
	fmt.Printf("registry: discovered %s before register resolved it\n", resp.MessageType())

	// A second discovery that never arrives, cancelled explicitly instead
	// of waiting forever.
	staleFut := client.DiscoverNamePromise("never-registered")
	time.Sleep(20 * time.Millisecond)

	regBehavior := reg.Behavior().(*actor.Registry)
	regBehavior.CancelDiscovery(reg, "never-registered", caller.Address())

	_, err = staleFut.Await(context.Background()).Unpack()
	if err == nil {
		return fmt.Errorf("expected cancelled discovery to fail")
	}
	ext, ok := actor.AsExtended(err)
	if !ok || ext.Code() != actor.CodeCancelled {
		return fmt.Errorf("expected code %q, got %v", actor.CodeCancelled, err)
	}
	fmt.Printf("registry: cancelled discovery resolved with %s, as expected\n", ext.Code())
	return nil
}
