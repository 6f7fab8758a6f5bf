package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roasbeef/rotorgo/internal/baselib/actor"
)

var linkedCmd = &cobra.Command{
	Use:   "linked",
	Short: "Scenario 4: a server's shutdown waits on a linked client's unlink ack",
	Long: `A client links to a server. The server then begins shutting down:
it notifies every linked client and holds its own shutdown gate open
until each has acknowledged. Expect the server to reach SHUT_DOWN only
after the client's unlink ack arrives, and the client itself to shut down
with link_failed since it has no custom peer-down handler.`,
	RunE: runLinked,
}

func runLinked(cmd *cobra.Command, args []string) error {
	h, err := newHarness()
	if err != nil {
		return err
	}
	defer h.close()

	serverLink := actor.NewLinkServerPlugin()
	server := h.sup.CreateActor("server", nil, actor.DefaultChildPolicy(), serverLink)
	clientLink := actor.NewLinkClientPlugin(nil)
	client := h.sup.CreateActor("client", nil, actor.DefaultChildPolicy(), clientLink)

	if err := waitFor(time.Second, func() bool {
		return server.State() == actor.StateOperational && client.State() == actor.StateOperational
	}); err != nil {
		return fmt.Errorf("actors never reached OPERATIONAL: %w", err)
	}

	if err := clientLink.Link(context.Background(), client, server.Address(), false, time.Second); err != nil {
		return fmt.Errorf("link failed: %w", err)
	}
	fmt.Println("linked: client linked to server")

	server.RequestShutdown(actor.NewExtendedError("scenario done", actor.CodeCancelled))

	if err := waitFor(time.Second, func() bool { return client.State() == actor.StateShutDown }); err != nil {
		return fmt.Errorf("client never reached SHUT_DOWN: %w", err)
	}
	ext, ok := actor.AsExtended(client.ShutdownReason())
	if !ok || ext.Code() != actor.CodeLinkFailed {
		return fmt.Errorf("expected client shutdown reason %q, got %v", actor.CodeLinkFailed, client.ShutdownReason())
	}
	fmt.Printf("linked: client shut down with %s\n", ext.Code())

	if err := waitFor(time.Second, func() bool { return server.State() == actor.StateShutDown }); err != nil {
		return fmt.Errorf("server never reached SHUT_DOWN (unlink ack never arrived): %w", err)
	}
	fmt.Println("linked: server reached SHUT_DOWN only after the unlink ack")
	return nil
}
