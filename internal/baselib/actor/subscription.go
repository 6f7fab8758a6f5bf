package actor

import (
	"reflect"
	"sync"
)

// SubscriptionState tracks a subscription point's own lifecycle, separate
// from the owning actor's lifecycle. Subscribe is synchronous in this
// single-process implementation, so every point it returns is already
// StateEstablished; StateSubscribing and StateUnsubscribing are declared
// but never assigned by this package.
type SubscriptionState int

const (
	StateSubscribing SubscriptionState = iota
	StateEstablished
	StateUnsubscribing
)

// SubscriptionInfo is the durable record of one subscription point: who
// subscribed (Handler.Owner), to what address and message type, and
// whether the subscriber and the target address are co-local.
type SubscriptionInfo struct {
	Address  *Address
	Handler  *Handler
	State    SubscriptionState
	Internal bool
}

type subKey struct {
	addr *Address
	typ  reflect.Type
}

// SubscriptionMap is owned by exactly one locality's leader and records
// every (address, message type) -> handler binding for addresses in that
// locality, including bindings whose subscriber lives in a different
// locality (Internal == false). It is safe for concurrent use because a
// foreign locality's leader calls Subscribe/Unsubscribe directly, not
// through the owning locality's loop.
type SubscriptionMap struct {
	mu     sync.RWMutex
	points map[subKey][]*SubscriptionInfo
}

func newSubscriptionMap() *SubscriptionMap {
	return &SubscriptionMap{points: make(map[subKey][]*SubscriptionInfo)}
}

// Subscribe materializes a subscription point for h at addr. Internal is
// computed from whether h's owner shares addr's locality.
func (m *SubscriptionMap) Subscribe(addr *Address, h *Handler) (*SubscriptionInfo, error) {
	key := subKey{addr: addr, typ: h.msgType}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.points[key] {
		if existing.Handler == h {
			return nil, ErrDuplicateSubscription
		}
	}

	info := &SubscriptionInfo{
		Address:  addr,
		Handler:  h,
		State:    StateEstablished,
		Internal: h.owner.SameLocality(addr),
	}
	m.points[key] = append(m.points[key], info)
	return info, nil
}

// Unsubscribe removes the subscription point registered for h at addr.
func (m *SubscriptionMap) Unsubscribe(addr *Address, h *Handler) error {
	key := subKey{addr: addr, typ: h.msgType}

	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.points[key]
	for i, existing := range list {
		if existing.Handler == h {
			m.points[key] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotSubscribed
}

// UnsubscribeAllForOwner removes every subscription point owned by owner,
// called by ActorCore.tryCompleteShutdown as an actor reaches SHUT_DOWN.
func (m *SubscriptionMap) UnsubscribeAllForOwner(owner *Address) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, list := range m.points {
		filtered := list[:0]
		for _, info := range list {
			if info.Handler.owner != owner {
				filtered = append(filtered, info)
			}
		}
		if len(filtered) == 0 {
			delete(m.points, key)
		} else {
			m.points[key] = filtered
		}
	}
}

// Recipients returns every subscription point registered for msg's
// concrete type at dest, split into those whose owner is co-local with
// dest (delivered synchronously, same goroutine) and those that are not
// (delivered by enqueueing into the owner's locality).
func (m *SubscriptionMap) Recipients(dest *Address, msg Message) (internal, external []*SubscriptionInfo) {
	key := subKey{addr: dest, typ: typeOf(msg)}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, info := range m.points[key] {
		if info.Internal {
			internal = append(internal, info)
		} else {
			external = append(external, info)
		}
	}
	return internal, external
}

// Count returns the number of subscription points registered for dest
// across all message types.
func (m *SubscriptionMap) Count(dest *Address) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for key, list := range m.points {
		if key.addr == dest {
			total += len(list)
		}
	}
	return total
}
