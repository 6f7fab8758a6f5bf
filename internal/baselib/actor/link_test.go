package actor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestLinkedShutdownOrdering exercises end-to-end scenario 4: when a server
// with a linked client begins shutting down, its link_server plugin sends
// the client an unlinkNotice, and the client, having no custom peer-down
// hook, acks and shuts itself down with CodeLinkFailed.
func TestLinkedShutdownOrdering(t *testing.T) {
	t.Parallel()

	sup := newTestSupervisor(t, DefaultSupervisorConfig())
	serverClient := NewLinkServerPlugin()
	server := sup.CreateActor("server", nil, DefaultChildPolicy(), serverClient)

	clientPlugin := NewLinkClientPlugin(nil)
	client := sup.CreateActor("client", nil, DefaultChildPolicy(), clientPlugin)

	require.Eventually(t, func() bool {
		return server.State() == StateOperational && client.State() == StateOperational
	}, time.Second, 5*time.Millisecond)

	err := clientPlugin.Link(context.Background(), client, server.Address(), false, time.Second)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(serverClient.clients) == 1 },
		time.Second, 5*time.Millisecond)

	// Server begins shutting down: its link_server plugin notifies every
	// linked client via unlinkNotice, and by default the client's
	// link_client plugin shuts itself down too in response.
	server.RequestShutdown(NewExtendedError("server shutdown", CodeCancelled))

	require.Eventually(t, func() bool { return client.State() == StateShutDown },
		time.Second, 5*time.Millisecond)
	ext, ok := AsExtended(client.ShutdownReason())
	require.True(t, ok)
	require.Equal(t, CodeLinkFailed, ext.Code())
}

// TestLinkAlreadyLinkedRejected checks LinkClientPlugin's own-side
// idempotence: linking twice to the same peer fails the second time
// without re-sending a link_request.
func TestLinkAlreadyLinkedRejected(t *testing.T) {
	t.Parallel()

	sup := newTestSupervisor(t, DefaultSupervisorConfig())
	server := sup.CreateActor("server", nil, DefaultChildPolicy(), NewLinkServerPlugin())
	clientPlugin := NewLinkClientPlugin(nil)
	client := sup.CreateActor("client", nil, DefaultChildPolicy(), clientPlugin)

	require.Eventually(t, func() bool {
		return server.State() == StateOperational && client.State() == StateOperational
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, clientPlugin.Link(context.Background(), client, server.Address(), false, time.Second))
	err := clientPlugin.Link(context.Background(), client, server.Address(), false, time.Second)
	require.ErrorIs(t, err, ErrAlreadyLinked)
}

// TestLinkPastOperationalRejected checks that linking to a server that has
// already begun shutting down fails with ErrNotLinkable (the server's
// "past OPERATIONAL" rejection, wire-coded CodeActorNotLinkable).
func TestLinkPastOperationalRejected(t *testing.T) {
	t.Parallel()

	sup := newTestSupervisor(t, DefaultSupervisorConfig())
	server := sup.CreateActor("server", nil, DefaultChildPolicy(), NewLinkServerPlugin())
	clientPlugin := NewLinkClientPlugin(nil)
	client := sup.CreateActor("client", nil, DefaultChildPolicy(), clientPlugin)

	require.Eventually(t, func() bool {
		return server.State() == StateOperational && client.State() == StateOperational
	}, time.Second, 5*time.Millisecond)

	server.RequestShutdown(NewExtendedError("test shutdown", CodeCancelled))
	require.Eventually(t, func() bool { return server.State() == StateShutDown },
		time.Second, 5*time.Millisecond)

	err := clientPlugin.Link(context.Background(), client, server.Address(), false, time.Second)
	require.ErrorIs(t, err, ErrNotLinkable)
}

// TestLinkServerSideAlreadyLinkedRejected sends two raw linkRequests from
// the same sender address (bypassing LinkClientPlugin's own client-side
// dedup entirely) and checks the server rejects the second with
// CodeAlreadyLinked.
func TestLinkServerSideAlreadyLinkedRejected(t *testing.T) {
	t.Parallel()

	sup := newTestSupervisor(t, DefaultSupervisorConfig())
	server := sup.CreateActor("server", nil, DefaultChildPolicy(), NewLinkServerPlugin())
	client := sup.CreateActor("client", nil, DefaultChildPolicy())

	require.Eventually(t, func() bool {
		return server.State() == StateOperational && client.State() == StateOperational
	}, time.Second, 5*time.Millisecond)

	ask := func() (Response, error) {
		fut := Ask(client, server.Address(), time.Second, func(meta RequestMeta) Request {
			return &linkRequest{RequestMeta: meta}
		})
		return fut.Await(context.Background()).Unpack()
	}

	resp1, err1 := ask()
	require.NoError(t, err1)
	lr1, ok := resp1.(*linkResponse)
	require.True(t, ok)
	require.True(t, lr1.Accepted)

	_, err2 := ask()
	require.Error(t, err2)
	ext, ok := AsExtended(err2)
	require.True(t, ok)
	require.Equal(t, CodeAlreadyLinked, ext.Code())
}

// gateTrigger flips gatedInitPlugin's readiness and re-polls INIT, from
// inside the actor's own locality goroutine -- the safe way to unstick a
// held-open INIT gate from a test, mirroring how any other cross-goroutine
// nudge in this package goes through Send rather than touching state
// directly.
type gateTrigger struct{ BaseMessage }

func (gateTrigger) MessageType() string { return "gate_trigger" }

// gatedInitPlugin holds INIT open until it receives a gateTrigger,
// simulating a server that takes a while to finish initializing.
type gatedInitPlugin struct {
	BasePlugin
	ready bool
}

func (p *gatedInitPlugin) PollInit(core *ActorCore) bool { return p.ready }

func (p *gatedInitPlugin) Activate(core *ActorCore) {
	h := NewHandler[*gateTrigger](core.address, func(ctx context.Context, _ *gateTrigger, _ *Address) {
		p.ready = true
		core.tryCompleteInit()
	})
	core.Subscribe(h)
}

// TestLinkOperationalOnlyQueuesUntilServerStarts exercises the PENDING path:
// a client links with operationalOnly=true to a server still INITIALIZING,
// and the link only resolves once the server reaches OPERATIONAL.
func TestLinkOperationalOnlyQueuesUntilServerStarts(t *testing.T) {
	t.Parallel()

	sup := newTestSupervisor(t, DefaultSupervisorConfig())
	gate := &gatedInitPlugin{BasePlugin: BasePlugin{id: UserPluginID, reactions: ReactionInit}}
	serverLink := NewLinkServerPlugin()
	server := sup.CreateActor("server", nil, DefaultChildPolicy(), serverLink, gate)
	clientPlugin := NewLinkClientPlugin(nil)
	client := sup.CreateActor("client", nil, DefaultChildPolicy(), clientPlugin)

	require.Eventually(t, func() bool { return client.State() == StateOperational },
		time.Second, 5*time.Millisecond)
	require.Equal(t, StateInitializing, server.State())

	linkErr := make(chan error, 1)
	go func() {
		linkErr <- clientPlugin.Link(context.Background(), client, server.Address(), true, 2*time.Second)
	}()

	require.Eventually(t, func() bool { return len(serverLink.clients) == 1 },
		time.Second, 5*time.Millisecond)
	require.Equal(t, StateInitializing, server.State(),
		"link must stay pending, not resolve, while the server is still initializing")

	server.Send(server.Address(), &gateTrigger{})
	require.Eventually(t, func() bool { return server.State() == StateOperational },
		time.Second, 5*time.Millisecond)

	select {
	case err := <-linkErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pending link request was never resolved once the server became operational")
	}
}
