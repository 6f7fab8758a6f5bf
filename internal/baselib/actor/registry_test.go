package actor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newRegistryHarness(t *testing.T) (*Supervisor, *ActorCore) {
	t.Helper()
	sup := newTestSupervisor(t, DefaultSupervisorConfig())
	reg := sup.CreateActor("registry", NewRegistry(), DefaultChildPolicy())
	require.Eventually(t, func() bool { return reg.State() == StateOperational },
		time.Second, 5*time.Millisecond)
	return sup, reg
}

// TestRegistryRoundTrip checks the round-trip law: register(n,a) ;
// deregister(a) ; discovery_promise(n) that is later cancelled yields
// cancelled, not unknown_service -- proven here by queuing a promise
// against the now-unbound name, cancelling it, and observing CodeCancelled
// rather than a stale address or CodeUnknownService.
func TestRegistryRoundTrip(t *testing.T) {
	t.Parallel()

	sup, reg := newRegistryHarness(t)
	caller := sup.CreateActor("caller", nil, DefaultChildPolicy())
	require.Eventually(t, func() bool { return caller.State() == StateOperational },
		time.Second, 5*time.Millisecond)

	client := NewRegistryClient(caller, reg.Address())
	target := sup.CreateActor("target", nil, DefaultChildPolicy())

	regRes, err := client.Register("svc", target.Address()).Await(context.Background()).Unpack()
	require.NoError(t, err)
	require.Equal(t, "registry_register_ack", regRes.MessageType())

	_, err = client.Deregister(target.Address()).Await(context.Background()).Unpack()
	require.NoError(t, err)

	// The name is now unbound. A plain DiscoverName (discovery_request)
	// would fail synchronously with unknown_service; use the promise
	// variant instead so it queues, then cancel it and confirm it
	// resolves with CodeCancelled, not CodeUnknownService or a stale
	// address.
	regBehavior := reg.Behavior().(*Registry)

	discoverFut := client.DiscoverNamePromise("svc")
	require.Eventually(t, func() bool {
		regBehavior.mu.Lock()
		defer regBehavior.mu.Unlock()
		return len(regBehavior.pending["svc"]) == 1
	}, time.Second, 5*time.Millisecond)

	regBehavior.CancelDiscovery(reg, "svc", caller.Address())
	_, err = discoverFut.Await(context.Background()).Unpack()
	require.Error(t, err)
	ext, ok := AsExtended(err)
	require.True(t, ok)
	require.Equal(t, CodeCancelled, ext.Code())
}

// TestRegistryDiscoverRequestUnknownService checks discovery_request's
// (non-promise) synchronous failure path: discovering a name with no
// binding returns CodeUnknownService immediately instead of queuing.
func TestRegistryDiscoverRequestUnknownService(t *testing.T) {
	t.Parallel()

	sup, reg := newRegistryHarness(t)
	caller := sup.CreateActor("caller", nil, DefaultChildPolicy())
	require.Eventually(t, func() bool { return caller.State() == StateOperational },
		time.Second, 5*time.Millisecond)

	client := NewRegistryClient(caller, reg.Address())
	_, err := client.DiscoverName("never-registered").Await(context.Background()).Unpack()
	require.Error(t, err)
	ext, ok := AsExtended(err)
	require.True(t, ok)
	require.Equal(t, CodeUnknownService, ext.Code())
}

// TestRegistryDiscoveryPromise exercises end-to-end scenario 3: a client
// discovers "srv" before the server registers; registering later resolves
// the pending promise exactly once, with the correct address.
func TestRegistryDiscoveryPromise(t *testing.T) {
	t.Parallel()

	sup, reg := newRegistryHarness(t)
	caller := sup.CreateActor("caller", nil, DefaultChildPolicy())
	server := sup.CreateActor("server", nil, DefaultChildPolicy())
	require.Eventually(t, func() bool {
		return caller.State() == StateOperational && server.State() == StateOperational
	}, time.Second, 5*time.Millisecond)

	client := NewRegistryClient(caller, reg.Address())
	discoverFut := client.DiscoverNamePromise("srv")

	time.Sleep(10 * time.Millisecond)
	_, err := client.Register("srv", server.Address()).Await(context.Background()).Unpack()
	require.NoError(t, err)

	resp, err := discoverFut.Await(context.Background()).Unpack()
	require.NoError(t, err)
	dr, ok := resp.(*discoverResponse)
	require.True(t, ok)
	require.Equal(t, server.Address(), dr.Addr)
}

// TestRegistryDuplicateNameRejected checks register_request's
// already-registered-by-a-different-address failure path resolves with
// the distinct already_registered code, not registration_failed.
func TestRegistryDuplicateNameRejected(t *testing.T) {
	t.Parallel()

	sup, reg := newRegistryHarness(t)
	caller := sup.CreateActor("caller", nil, DefaultChildPolicy())
	require.Eventually(t, func() bool { return caller.State() == StateOperational },
		time.Second, 5*time.Millisecond)

	client := NewRegistryClient(caller, reg.Address())
	a := sup.CreateActor("a", nil, DefaultChildPolicy())
	b := sup.CreateActor("b", nil, DefaultChildPolicy())

	_, err := client.Register("dup", a.Address()).Await(context.Background()).Unpack()
	require.NoError(t, err)

	_, err = client.Register("dup", b.Address()).Await(context.Background()).Unpack()
	require.Error(t, err)
	ext, ok := AsExtended(err)
	require.True(t, ok)
	require.Equal(t, CodeAlreadyRegistered, ext.Code())
}
