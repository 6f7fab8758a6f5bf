package actor

import (
	"context"
	"testing"

	"github.com/lightningnetwork/lnd/fn/v2"
	"pgregory.net/rapid"
)

// rapidMsg is a throwaway message type used only to drive the subscription
// map property tests below; its concrete type is what the map keys on.
type rapidMsg struct{ BaseMessage }

func (rapidMsg) MessageType() string { return "rapid_msg" }

// shuffleDraw draws a random permutation of items by repeatedly picking a
// random remaining index, without relying on any one rapid generator's
// exact permutation API.
func shuffleDraw[T any](rt *rapid.T, label string, items []T) []T {
	remaining := append([]T(nil), items...)
	out := make([]T, 0, len(items))
	for len(remaining) > 0 {
		i := rapid.IntRange(0, len(remaining)-1).Draw(rt, label)
		out = append(out, remaining[i])
		remaining = append(remaining[:i], remaining[i+1:]...)
	}
	return out
}

// TestSubscribeUnsubscribeRoundTrip checks the round-trip law from the
// testable properties: subscribe(h,A) ; unsubscribe(h,A) leaves the
// subscription map unchanged, for any sequence of distinct handlers.
func TestSubscribeUnsubscribeRoundTrip(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		loc := newLocality(NewGoroutineLoop())
		addr := &Address{id: 1, locality: loc, label: "target"}

		n := rapid.IntRange(1, 20).Draw(rt, "n")
		handlers := make([]*Handler, n)
		for i := range handlers {
			owner := &Address{id: uint64(i + 2), locality: loc, label: "owner"}
			handlers[i] = NewHandler[*rapidMsg](owner, func(_ context.Context, _ *rapidMsg, _ *Address) {})
		}

		for _, h := range handlers {
			_, err := loc.subs.Subscribe(addr, h)
			if err != nil {
				rt.Fatalf("unexpected subscribe error: %v", err)
			}
		}
		before := loc.subs.Count(addr)
		if before != n {
			rt.Fatalf("expected %d subscriptions, got %d", n, before)
		}

		// Unsubscribe every handler in a randomly chosen order; after each
		// removal Count drops by exactly one, ending at zero.
		order := shuffleDraw(rt, "order_pick", handlers)
		for i, h := range order {
			if err := loc.subs.Unsubscribe(addr, h); err != nil {
				rt.Fatalf("unexpected unsubscribe error: %v", err)
			}
			want := n - i - 1
			if got := loc.subs.Count(addr); got != want {
				rt.Fatalf("after %d removals: want count %d, got %d", i+1, want, got)
			}
		}

		if got := loc.subs.Count(addr); got != 0 {
			rt.Fatalf("expected empty map after full round trip, got count %d", got)
		}
	})
}

// TestSubscribeDuplicateRejected checks the uniqueness invariant: the same
// (address, handler) pair can never be registered twice.
func TestSubscribeDuplicateRejected(t *testing.T) {
	t.Parallel()

	loc := newLocality(NewGoroutineLoop())
	addr := &Address{id: 1, locality: loc, label: "target"}
	owner := &Address{id: 2, locality: loc, label: "owner"}
	h := NewHandler[*rapidMsg](owner, func(context.Context, *rapidMsg, *Address) {})

	_, err := loc.subs.Subscribe(addr, h)
	if err != nil {
		t.Fatalf("first subscribe failed: %v", err)
	}
	if _, err := loc.subs.Subscribe(addr, h); err == nil {
		t.Fatal("expected duplicate subscription to fail")
	}
}

// TestRequestTableInvariant checks that every allocated request has exactly
// one live entry until it is resolved, and that resolving it exactly once
// (a second resolve is a no-op) matches the "response after discard is
// dropped" boundary behavior.
func TestRequestTableInvariant(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		table := newRequestTable()
		n := rapid.IntRange(1, 30).Draw(rt, "n")

		ids := make([]uint64, n)
		completions := make([]int, n)
		for i := range ids {
			idx := i
			ids[i] = table.allocate(func(fn.Result[Response]) { completions[idx]++ })
		}

		seen := make(map[uint64]struct{}, n)
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				rt.Fatalf("request id %d allocated twice", id)
			}
			seen[id] = struct{}{}
			if _, ok := table.pending[id]; !ok {
				rt.Fatalf("request id %d has no pending entry", id)
			}
		}

		resolveOrder := shuffleDraw(rt, "resolve_order_pick", ids)
		for _, id := range resolveOrder {
			ok := table.resolve(id, fn.Ok[Response](nil))
			if !ok {
				rt.Fatalf("resolve for live request id %d unexpectedly failed", id)
			}
			if _, stillPending := table.pending[id]; stillPending {
				rt.Fatalf("request id %d still pending after resolve", id)
			}
			// A second resolve for the same id must be a no-op, matching
			// "a real response arriving after timeout is dropped".
			if again := table.resolve(id, fn.Ok[Response](nil)); again {
				rt.Fatalf("request id %d resolved twice", id)
			}
		}

		for i, got := range completions {
			if got != 1 {
				rt.Fatalf("request %d completed %d times, want exactly 1", i, got)
			}
		}
	})
}

// TestRequestTableCancelAllClearsEverything checks that cancelAll fails
// every pending request exactly once and leaves the table empty.
func TestRequestTableCancelAllClearsEverything(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		table := newRequestTable()
		n := rapid.IntRange(0, 20).Draw(rt, "n")

		completions := make([]int, n)
		for i := 0; i < n; i++ {
			idx := i
			table.allocate(func(fn.Result[Response]) { completions[idx]++ })
		}

		table.cancelAll(ErrSystemShuttingDown)

		if len(table.pending) != 0 {
			rt.Fatalf("expected empty table after cancelAll, got %d entries", len(table.pending))
		}
		for i, got := range completions {
			if got != 1 {
				rt.Fatalf("request %d completed %d times after cancelAll, want exactly 1", i, got)
			}
		}
	})
}
