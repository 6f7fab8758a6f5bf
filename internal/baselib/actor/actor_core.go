package actor

import "context"

// ActorState is the actor lifecycle FSM: a strictly linear progression
// except for the terminal SHUT_DOWN state, which is never left.
type ActorState int32

const (
	StateNew ActorState = iota
	StateInitializing
	StateInitialized
	StateOperational
	StateShuttingDown
	StateShutDown
)

func (s ActorState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInitializing:
		return "initializing"
	case StateInitialized:
		return "initialized"
	case StateOperational:
		return "operational"
	case StateShuttingDown:
		return "shutting_down"
	case StateShutDown:
		return "shut_down"
	default:
		return "unknown"
	}
}

// ActorCore is the common machinery shared by every plain actor and every
// Supervisor (a Supervisor embeds one). It owns exactly one Address, a
// fixed chain of Plugins, and the lifecycle FSM those plugins gate. It has
// no goroutine or mutex of its own: every method on it is only ever called
// from its locality's single leader goroutine.
type ActorCore struct {
	address *Address
	plugins []Plugin

	reactions       map[PluginID]Reaction
	pendingInit     map[PluginID]struct{}
	pendingShutdown map[PluginID]struct{}

	state          ActorState
	shutdownReason *ExtendedError

	subsOwned []*SubscriptionInfo

	// parent is the supervisor that created this actor, used to report
	// lifecycle transitions up to the child manager. Root supervisors
	// have parent == nil.
	parent *Supervisor

	doneCh chan struct{}
}

func newActorCore(addr *Address, parent *Supervisor, plugins []Plugin) *ActorCore {
	return &ActorCore{
		address:   addr,
		plugins:   plugins,
		reactions: make(map[PluginID]Reaction, len(plugins)),
		parent:    parent,
		state:     StateNew,
		doneCh:    make(chan struct{}),
	}
}

// Done returns a channel closed once the actor reaches SHUT_DOWN.
func (a *ActorCore) Done() <-chan struct{} { return a.doneCh }

// Address returns the actor's own address.
func (a *ActorCore) Address() *Address { return a.address }

// State returns the current lifecycle state.
func (a *ActorCore) State() ActorState { return a.state }

// ShutdownReason returns why the actor began shutting down, valid once
// State is StateShuttingDown or later.
func (a *ActorCore) ShutdownReason() *ExtendedError { return a.shutdownReason }

// Behavior returns the user-supplied behavior passed to CreateActor, or
// nil for an actor created with behavior == nil. Callers that need to
// reach into a known concrete behavior (the registry actor's
// CancelDiscovery, for instance) type-assert the result themselves.
func (a *ActorCore) Behavior() any {
	for _, p := range a.plugins {
		if rp, ok := p.(*resourcesPlugin); ok {
			return rp.behavior
		}
	}
	return nil
}

// Send routes msg to dest, crossing localities transparently: if dest is
// co-local, the envelope lands on the local queue; otherwise it is pushed
// onto dest's locality's inbound MPSC. Either way the destination loop is
// woken, so a Send made from outside the loop goroutine is still drained.
//
// A Response is additionally uplifted to the front of a co-local queue
// right after it lands: Reply/ReplyError are always called mid-delivery of
// the request they answer, so whatever else this locality already queued
// in the meantime would otherwise run ahead of the reply it caused,
// breaking request/response ordering (see queue.go's upliftLast).
func (a *ActorCore) Send(dest *Address, msg Message) {
	env := Envelope{Dest: dest, Msg: msg, Sender: a.address}
	loc := dest.locality
	if loc == a.address.locality {
		loc.queue.push(env)
		if _, ok := msg.(Response); ok {
			loc.queue.upliftLast()
		}
		loc.loop.Enqueue()
		return
	}
	loc.inbound.push(env)
	loc.loop.Enqueue()
}

// SendRouted is Send with a dropped-message fallback: if dest has no
// recipients, the delivery engine re-targets msg to fallback instead of
// dead-lettering it (spec's "routed message" variant).
func (a *ActorCore) SendRouted(dest, fallback *Address, msg Message) {
	env := Envelope{Dest: dest, Msg: msg, Sender: a.address, Fallback: fallback}
	loc := dest.locality
	if loc == a.address.locality {
		loc.queue.push(env)
		loc.loop.Enqueue()
		return
	}
	loc.inbound.push(env)
	loc.loop.Enqueue()
}

// Subscribe materializes a subscription point for h at the actor's own
// address.
func (a *ActorCore) Subscribe(h *Handler) (*SubscriptionInfo, error) {
	return a.SubscribeAt(a.address, h)
}

// SubscribeAt materializes a subscription point for h at addr, which need
// not be a.address (a registry plugin, for instance, subscribes on behalf
// of whatever address a discovery request names).
func (a *ActorCore) SubscribeAt(addr *Address, h *Handler) (*SubscriptionInfo, error) {
	info, err := addr.locality.subs.Subscribe(addr, h)
	if err != nil {
		return nil, err
	}
	a.subsOwned = append(a.subsOwned, info)
	a.notifySubscriptionReactors(info, true)
	return info, nil
}

// Unsubscribe removes a previously established subscription point.
func (a *ActorCore) Unsubscribe(info *SubscriptionInfo) error {
	if err := info.Address.locality.subs.Unsubscribe(info.Address, info.Handler); err != nil {
		return err
	}
	for i, owned := range a.subsOwned {
		if owned == info {
			a.subsOwned = append(a.subsOwned[:i], a.subsOwned[i+1:]...)
			break
		}
	}
	a.notifySubscriptionReactors(info, false)
	return nil
}

func (a *ActorCore) notifySubscriptionReactors(info *SubscriptionInfo, added bool) {
	for _, p := range a.plugins {
		if !a.reactions[p.ID()].has(ReactionSubscription) {
			continue
		}
		if sr, ok := p.(SubscriptionReactor); ok {
			sr.HandleSubscription(a, info, added)
		}
	}
}

// activate runs every plugin's Activate hook in chain order and attempts
// to complete INIT immediately (the common case: no plugin has pending
// async work).
func (a *ActorCore) activate() {
	a.state = StateInitializing
	a.pendingInit = make(map[PluginID]struct{})
	for _, p := range a.plugins {
		a.reactions[p.ID()] = p.Reactions()
		if p.Reactions().has(ReactionInit) {
			a.pendingInit[p.ID()] = struct{}{}
		}
	}
	for _, p := range a.plugins {
		p.Activate(a)
	}
	a.tryCompleteInit()
}

// tryCompleteInit polls every plugin with ReactionInit set; a plugin
// without an InitReactor implementation is treated as always-ready. Once
// every such plugin reports ready, the actor moves to INITIALIZED and, if
// its parent has not asked it to wait for sibling synchronization, starts
// immediately.
func (a *ActorCore) tryCompleteInit() {
	if a.state != StateInitializing {
		return
	}
	for _, p := range a.plugins {
		if !a.reactions[p.ID()].has(ReactionInit) {
			continue
		}
		ready := true
		if ir, ok := p.(InitReactor); ok {
			ready = ir.PollInit(a)
		}
		if !ready {
			return
		}
	}

	a.state = StateInitialized
	log.DebugS(context.Background(), "actor initialized", "address", a.address.String())

	if a.parent != nil {
		a.parent.onChildInitialized(a)
		return
	}
	a.start()
}

// start transitions INITIALIZED -> OPERATIONAL and fires every
// StartReactor plugin. Called either directly by tryCompleteInit (no
// parent, or the parent does not synchronize starts) or by a Supervisor
// once synchronize_start's sibling wait is satisfied.
func (a *ActorCore) start() {
	if a.state != StateInitialized {
		return
	}
	a.state = StateOperational
	for _, p := range a.plugins {
		if !a.reactions[p.ID()].has(ReactionStart) {
			continue
		}
		if sr, ok := p.(StartReactor); ok {
			sr.HandleStart(a)
		}
	}
	log.DebugS(context.Background(), "actor operational", "address", a.address.String())
	if a.parent != nil {
		a.parent.onChildOperational(a)
	}
}

// DoShutdown asks a to shut down by sending it a shutdownTrigger rather
// than calling RequestShutdown directly, so it is always safe to call from
// outside a's own locality goroutine (e.g. from a Behavior reacting to
// something other than a message delivered to a).
func (a *ActorCore) DoShutdown(reason *ExtendedError) {
	a.Send(a.address, &shutdownTrigger{reason: reason})
}

// RequestShutdown begins an orderly shutdown with reason, deactivating
// every plugin in reverse chain order and then polling for completion.
// Calling it on an actor already shutting down or shut down is a no-op.
func (a *ActorCore) RequestShutdown(reason *ExtendedError) {
	if a.state == StateShuttingDown || a.state == StateShutDown {
		return
	}
	a.state = StateShuttingDown
	a.shutdownReason = reason
	a.pendingShutdown = make(map[PluginID]struct{})
	for _, p := range a.plugins {
		if p.Reactions().has(ReactionShutdown) {
			a.pendingShutdown[p.ID()] = struct{}{}
		}
	}
	for i := len(a.plugins) - 1; i >= 0; i-- {
		a.plugins[i].Deactivate(a)
	}
	a.tryCompleteShutdown()
}

// tryCompleteShutdown mirrors tryCompleteInit for the shutdown gate.
func (a *ActorCore) tryCompleteShutdown() {
	if a.state != StateShuttingDown {
		return
	}
	for _, p := range a.plugins {
		if !a.reactions[p.ID()].has(ReactionShutdown) {
			continue
		}
		done := true
		if sr, ok := p.(ShutdownReactor); ok {
			done = sr.PollShutdown(a)
		}
		if !done {
			return
		}
	}

	a.address.locality.subs.UnsubscribeAllForOwner(a.address)
	a.state = StateShutDown
	log.DebugS(context.Background(), "actor shut down", "address",
		a.address.String(), "reason", a.shutdownReason)
	close(a.doneCh)

	if a.parent != nil {
		a.parent.onChildShutDown(a, a.shutdownReason)
	}
}
