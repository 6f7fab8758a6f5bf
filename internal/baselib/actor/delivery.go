package actor

import (
	"context"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// deliver runs one envelope to completion: Response fast-pathing into the
// request table, then subscription-map dispatch (direct invoke for
// co-local recipients, hand-off to the owner's locality for everyone
// else), falling back to the dead-letter sink when nothing claims it.
func (loc *Locality) deliver(ctx context.Context, env Envelope) {
	if env.directHandler != nil {
		env.directHandler.Invoke(ctx, env)
		loc.afterDeliver(env.directHandler.Owner())
		return
	}

	if resp, ok := env.Msg.(Response); ok {
		meta := resp.responseMeta()
		var result fn.Result[Response]
		if meta.Failed() {
			result = fn.Err[Response](meta.Err())
		} else {
			result = fn.Ok(resp)
		}
		if loc.reqTable.resolve(meta.InReplyTo(), result) {
			return
		}
	}

	internal, external := loc.subs.Recipients(env.Dest, env.Msg)
	if len(internal) == 0 && len(external) == 0 {
		if env.Fallback != nil {
			loc.route(Envelope{Dest: env.Fallback, Msg: env.Msg, Sender: env.Sender})
			return
		}
		loc.deadLetter(env)
		return
	}

	for _, info := range internal {
		info.Handler.Invoke(ctx, env)
		loc.afterDeliver(info.Handler.Owner())
	}
	for _, info := range external {
		ownerLoc := info.Handler.Owner().locality
		ownerLoc.inbound.push(Envelope{
			Dest:          env.Dest,
			Msg:           env.Msg,
			Sender:        env.Sender,
			directHandler: info.Handler,
		})
		ownerLoc.loop.Enqueue()
	}
}

// afterDeliver re-polls the INIT/SHUTDOWN gate for owner if it is
// mid-transition, since a just-delivered message is the only event that
// could have changed a plugin's readiness.
func (loc *Locality) afterDeliver(owner *Address) {
	loc.actorsMu.RLock()
	core := loc.actors[owner.id]
	loc.actorsMu.RUnlock()
	if core == nil {
		return
	}
	switch core.state {
	case StateInitializing:
		core.tryCompleteInit()
	case StateShuttingDown:
		core.tryCompleteShutdown()
	}
}

// route pushes env at its (possibly just re-targeted) Dest, direct to the
// local queue if Dest is co-local with loc, or onto the destination
// locality's inbound MPSC with a wake-up otherwise -- the same split Send
// makes, but sourced from the locality currently running instead of a
// sending actor's own.
func (loc *Locality) route(env Envelope) {
	destLoc := env.Dest.locality
	if destLoc == loc {
		destLoc.queue.push(env)
		return
	}
	destLoc.inbound.push(env)
	destLoc.loop.Enqueue()
}

// deadLetter hands env to the locality's configured sink, defaulting to a
// log line if none was configured.
func (loc *Locality) deadLetter(env Envelope) {
	if loc.onDeadLetter != nil {
		loc.onDeadLetter(env)
		return
	}
	log.WarnS(context.Background(), "dead letter",
		"dest", env.Dest.String(), "type", env.Msg.MessageType())
}

// drain merges the inbound MPSC into the local queue and then processes
// every envelope now queued, until the queue is empty. This is what a
// Loop backend calls on every wake-up.
func (loc *Locality) drain(ctx context.Context) {
	loc.inbound.drainInto(loc.queue)
	for {
		env, ok := loc.queue.popFront()
		if !ok {
			return
		}
		loc.deliver(ctx, env)
	}
}

// registerActor indexes core under its own address id so afterDeliver and
// cross-locality lookups can find it.
func (loc *Locality) registerActor(core *ActorCore) {
	loc.actorsMu.Lock()
	if loc.actors == nil {
		loc.actors = make(map[uint64]*ActorCore)
	}
	loc.actors[core.address.id] = core
	loc.actorsMu.Unlock()
}

func (loc *Locality) unregisterActor(core *ActorCore) {
	loc.actorsMu.Lock()
	delete(loc.actors, core.address.id)
	loc.actorsMu.Unlock()
}
