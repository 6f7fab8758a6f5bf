package actorutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/roasbeef/rotorgo/internal/baselib/actor"
)

// Pool distributes requests across a set of sibling actors created under a
// common supervisor, using round-robin scheduling. This is how a single
// logical service scales horizontally: the supervisor owns each member's
// lifecycle (restarts, escalation) exactly as it would a single child, and
// Pool only adds the round-robin member selection on top.
type Pool struct {
	id      string
	sup     *actor.Supervisor
	members []*actor.ActorCore
	next    atomic.Uint64
}

// PoolConfig holds configuration for creating a new actor pool.
type PoolConfig struct {
	// ID is the identifier for the pool; each member's label is
	// "<ID>-<index>".
	ID string

	// Size is the number of actor instances to create.
	Size int

	// Policy governs restart behavior for every member, applied
	// per-child exactly as Supervisor.CreateActor would for a
	// standalone actor.
	Policy actor.ChildPolicy

	// Factory builds the behavior value for member idx.
	Factory func(idx int) any
}

// NewPool creates a pool of cfg.Size sibling actors under sup, each built
// from cfg.Factory and activated immediately.
func NewPool(sup *actor.Supervisor, cfg PoolConfig) *Pool {
	if cfg.Size <= 0 {
		cfg.Size = 1
	}

	p := &Pool{
		id:      cfg.ID,
		sup:     sup,
		members: make([]*actor.ActorCore, cfg.Size),
	}

	for i := 0; i < cfg.Size; i++ {
		label := fmt.Sprintf("%s-%d", cfg.ID, i)
		p.members[i] = sup.CreateActor(label, cfg.Factory(i), cfg.Policy)
	}

	return p
}

// ID returns the identifier for this pool.
func (p *Pool) ID() string {
	return p.id
}

// pick selects the next member in round-robin order.
func (p *Pool) pick() *actor.ActorCore {
	idx := p.next.Add(1) % uint64(len(p.members))
	return p.members[idx]
}

// Ask sends a request built by buildReq, from caller, to the next pool
// member in round-robin order, returning a Future for its response.
func (p *Pool) Ask(
	caller *actor.ActorCore,
	timeout time.Duration,
	buildReq func(actor.RequestMeta) actor.Request,
) actor.Future[actor.Response] {

	dest := p.pick()
	return actor.Ask(caller, dest.Address(), timeout, buildReq)
}

// Tell sends a fire-and-forget message from caller to the next pool member
// in round-robin order.
func (p *Pool) Tell(caller *actor.ActorCore, msg actor.Message) {
	dest := p.pick()
	caller.Send(dest.Address(), msg)
}

// Broadcast sends msg to every member of the pool. Useful for cache
// invalidation, configuration updates, or coordinated shutdown signals.
func (p *Pool) Broadcast(caller *actor.ActorCore, msg actor.Message) {
	for _, m := range p.members {
		caller.Send(m.Address(), msg)
	}
}

// BroadcastAsk sends a request built by buildReq to every member of the
// pool and returns one Future per member, in member order.
func (p *Pool) BroadcastAsk(
	caller *actor.ActorCore,
	timeout time.Duration,
	buildReq func(actor.RequestMeta) actor.Request,
) []actor.Future[actor.Response] {

	futures := make([]actor.Future[actor.Response], len(p.members))
	for i, m := range p.members {
		futures[i] = actor.Ask(caller, m.Address(), timeout, buildReq)
	}
	return futures
}

// Size returns the number of actors in the pool.
func (p *Pool) Size() int {
	return len(p.members)
}

// Members returns the addresses of every actor in the pool.
func (p *Pool) Members() []*actor.Address {
	addrs := make([]*actor.Address, len(p.members))
	for i, m := range p.members {
		addrs[i] = m.Address()
	}
	return addrs
}

// Shutdown requests shutdown of every member of the pool with reason. The
// pool's supervisor applies each member's restart policy exactly as it
// would for a standalone child, so a pool with a restarting policy will
// respawn members rather than stay down.
func (p *Pool) Shutdown(reason *actor.ExtendedError) {
	for _, m := range p.members {
		m.RequestShutdown(reason)
	}
}
