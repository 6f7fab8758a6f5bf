package actor

import "context"

// addressMakerPlugin has no reactions; it exists purely so every actor's
// chain carries a PluginAddressMaker slot matching the canonical chain
// this package's actors are built from (address allocation itself already
// happened in newAddress before the chain runs).
type addressMakerPlugin struct{ BasePlugin }

func newAddressMakerPlugin() *addressMakerPlugin {
	return &addressMakerPlugin{BasePlugin{id: PluginAddressMaker}}
}

// lifetimePlugin has no behavior and no reactions of its own (the
// subscriptions an actor owns are tracked by ActorCore itself, in
// subsOwned); it exists as the canonical chain slot the teacher's design
// notes describe as owning "linked objects and scheduled work" bookkeeping.
type lifetimePlugin struct{ BasePlugin }

func newLifetimePlugin() *lifetimePlugin {
	return &lifetimePlugin{BasePlugin{id: PluginLifetime}}
}

// childStartTrigger is sent by a supervisor to one of its children once
// that child may leave INITIALIZED and become OPERATIONAL.
type childStartTrigger struct{ BaseMessage }

func (childStartTrigger) MessageType() string { return "child_start_trigger" }

// childShutdownTrigger is sent by a supervisor to one of its children to
// ask it to begin shutting down, the async counterpart to childStartTrigger
// used whenever the child is not co-local with its supervisor -- a
// supervisor's own leader goroutine must never touch a foreign locality's
// ActorCore directly (see actor_core.go's single-leader-goroutine
// invariant).
type childShutdownTrigger struct {
	BaseMessage
	reason *ExtendedError
}

func (childShutdownTrigger) MessageType() string { return "child_shutdown_trigger" }

// starterPlugin subscribes every actor to its own childStartTrigger and
// childShutdownTrigger so that a supervisor's start/shutdown decisions can
// always be delivered as ordinary messages, whether or not the child is
// co-local.
type starterPlugin struct {
	BasePlugin
}

func newStarterPlugin() *starterPlugin {
	return &starterPlugin{BasePlugin{id: PluginStarter}}
}

func (p *starterPlugin) Activate(core *ActorCore) {
	startH := NewHandler[*childStartTrigger](core.address,
		func(ctx context.Context, _ *childStartTrigger, _ *Address) {
			core.start()
		})
	core.Subscribe(startH)

	shutdownH := NewHandler[*childShutdownTrigger](core.address,
		func(ctx context.Context, msg *childShutdownTrigger, _ *Address) {
			core.RequestShutdown(msg.reason)
		})
	core.Subscribe(shutdownH)
}

// shutdownTrigger is the message form of ActorCore.DoShutdown: a
// self-addressed request to begin shutdown, delivered through the normal
// queue rather than calling RequestShutdown synchronously. This is how an
// actor can ask itself (or be asked, from outside its own locality's
// goroutine) to shut down without violating the single-leader-goroutine
// invariant.
type shutdownTrigger struct {
	BaseMessage
	reason *ExtendedError
}

func (shutdownTrigger) MessageType() string { return "shutdown_trigger" }

// initShutdownPlugin is the canonical chain's init_shutdown slot: it
// subscribes the handler that turns a shutdownTrigger message into an
// actual RequestShutdown call, giving DoShutdown somewhere to land.
type initShutdownPlugin struct{ BasePlugin }

func newInitShutdownPlugin() *initShutdownPlugin {
	return &initShutdownPlugin{BasePlugin{id: PluginInitShutdown}}
}

func (p *initShutdownPlugin) Activate(core *ActorCore) {
	h := NewHandler[*shutdownTrigger](core.address,
		func(ctx context.Context, msg *shutdownTrigger, _ *Address) {
			core.RequestShutdown(msg.reason)
		})
	core.Subscribe(h)
}

// resourcesPlugin adapts a user-supplied behavior (any subset of
// Initializer/Starter/Shutdowner) into the plugin lifecycle, the same
// optional-interface idiom the teacher uses for Stoppable.OnStop.
type resourcesPlugin struct {
	BasePlugin
	behavior any
	initErr  *ExtendedError
	ready    bool
}

// Initializer is implemented by a behavior that needs to run setup work
// before its actor leaves INITIALIZING. Returning an error fails init and
// shuts the actor down with that error as the shutdown reason.
type Initializer interface {
	OnActorInit(core *ActorCore) error
}

// Starter is implemented by a behavior that wants to run exactly once,
// when its actor becomes OPERATIONAL.
type Starter interface {
	OnActorStart(core *ActorCore)
}

// Shutdowner is implemented by a behavior that needs to release resources
// as its actor shuts down.
type Shutdowner interface {
	OnActorShutdown(core *ActorCore, reason *ExtendedError)
}

func newResourcesPlugin(behavior any) *resourcesPlugin {
	reactions := ReactionShutdown
	if _, ok := behavior.(Initializer); ok {
		reactions |= ReactionInit
	}
	if _, ok := behavior.(Starter); ok {
		reactions |= ReactionStart
	}
	return &resourcesPlugin{
		BasePlugin: BasePlugin{id: PluginResources, reactions: reactions},
		behavior:   behavior,
	}
}

func (p *resourcesPlugin) Activate(core *ActorCore) {
	init, ok := p.behavior.(Initializer)
	if !ok {
		p.ready = true
		return
	}
	if err := init.OnActorInit(core); err != nil {
		p.initErr = NewExtendedError("actor init failed", CodeActorMisconfigured).
			WithCause(err)
		core.RequestShutdown(p.initErr)
		return
	}
	p.ready = true
}

func (p *resourcesPlugin) PollInit(core *ActorCore) bool { return p.ready }

func (p *resourcesPlugin) HandleStart(core *ActorCore) {
	if starter, ok := p.behavior.(Starter); ok {
		starter.OnActorStart(core)
	}
}

func (p *resourcesPlugin) PollShutdown(core *ActorCore) bool {
	if shutdowner, ok := p.behavior.(Shutdowner); ok {
		shutdowner.OnActorShutdown(core, core.ShutdownReason())
	}
	return true
}

// deliveryPlugin marks the slot the design notes reserve for wiring an
// actor into its locality's delivery engine; address registration already
// happens in Supervisor.CreateActor/CreateChildSupervisor, so this plugin
// carries no behavior of its own.
type deliveryPlugin struct{ BasePlugin }

func newDeliveryPlugin() *deliveryPlugin {
	return &deliveryPlugin{BasePlugin{id: PluginDelivery}}
}

// defaultChain builds the canonical plugin chain every plain (non
// supervisor) actor is constructed with, matching the documented order
// address_maker -> lifetime -> init_shutdown -> link_server -> link_client
// -> registry -> resources -> starter -> delivery. extra carries the
// link/registry slots (in that relative order) for actors that use them;
// resources and starter always run after them, since Deactivate unwinds in
// reverse chain order and resources/starter must release before the
// link/registry plugins they may depend on.
func defaultChain(behavior any, extra ...Plugin) []Plugin {
	chain := []Plugin{
		newAddressMakerPlugin(),
		newLifetimePlugin(),
		newInitShutdownPlugin(),
	}
	chain = append(chain, extra...)
	if behavior != nil {
		chain = append(chain, newResourcesPlugin(behavior))
	}
	chain = append(chain, newStarterPlugin(), newDeliveryPlugin())
	return chain
}
