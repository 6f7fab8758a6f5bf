package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roasbeef/rotorgo/internal/baselib/actor"
)

type pingMsg struct {
	actor.BaseMessage
	actor.RequestMeta
}

func (pingMsg) MessageType() string { return "rotorctl_ping" }

type pongMsg struct {
	actor.BaseMessage
	actor.ResponseMeta
}

func (pongMsg) MessageType() string { return "rotorctl_pong" }

var pingPongCmd = &cobra.Command{
	Use:   "pingpong",
	Short: "Scenario 1: ping-pong between two actors in one locality",
	Long: `Pinger sends ping, ponger replies pong, pinger requests shutdown.
Both actors are expected to reach OPERATIONAL, the pinger observes exactly
one pong, and both reach SHUT_DOWN afterward.`,
	RunE: runPingPong,
}

func runPingPong(cmd *cobra.Command, args []string) error {
	h, err := newHarness()
	if err != nil {
		return err
	}
	defer h.close()

	ponger := h.sup.CreateActor("ponger", pongerBehavior{}, actor.DefaultChildPolicy())
	pinger := h.sup.CreateActor("pinger", nil, actor.DefaultChildPolicy())

	if err := waitFor(time.Second, func() bool {
		return ponger.State() == actor.StateOperational && pinger.State() == actor.StateOperational
	}); err != nil {
		return fmt.Errorf("actors never reached OPERATIONAL: %w", err)
	}

	fut := actor.Ask(pinger, ponger.Address(), time.Second,
		func(meta actor.RequestMeta) actor.Request { return &pingMsg{RequestMeta: meta} })
	resp, err := fut.Await(context.Background()).Unpack()
	if err != nil {
		return fmt.Errorf("ping never answered: %w", err)
	}
	fmt.Printf("pinger received %s\n", resp.MessageType())

	pinger.RequestShutdown(actor.NewExtendedError("scenario done", actor.CodeCancelled))
	ponger.RequestShutdown(actor.NewExtendedError("scenario done", actor.CodeCancelled))

	if err := waitFor(time.Second, func() bool {
		return pinger.State() == actor.StateShutDown && ponger.State() == actor.StateShutDown
	}); err != nil {
		return fmt.Errorf("actors never reached SHUT_DOWN: %w", err)
	}

	fmt.Println("pingpong: both actors reached SHUT_DOWN")
	return nil
}

type pongerBehavior struct{}

func (pongerBehavior) OnActorInit(core *actor.ActorCore) error {
	h := actor.NewHandler[*pingMsg](core.Address(),
		func(ctx context.Context, msg *pingMsg, _ *actor.Address) {
			actor.Reply(core, msg, func(meta actor.ResponseMeta) actor.Response {
				return &pongMsg{ResponseMeta: meta}
			})
		})
	_, err := core.Subscribe(h)
	return err
}
