package actor

// PluginID identifies a built-in plugin slot. Identity is compared by
// value, never by type-switching on the Plugin interface, so a user
// plugin can freely wrap or delegate to a built-in without confusing the
// chain's bookkeeping.
type PluginID string

const (
	PluginAddressMaker  PluginID = "address_maker"
	PluginLifetime      PluginID = "lifetime"
	PluginInitShutdown  PluginID = "init_shutdown"
	PluginStarter       PluginID = "starter"
	PluginResources     PluginID = "resources"
	PluginChildManager  PluginID = "child_manager"
	PluginDelivery      PluginID = "delivery"
	PluginLinkClient    PluginID = "link_client"
	PluginLinkServer    PluginID = "link_server"
	PluginRegistryActor PluginID = "registry_actor"
	// UserPluginID is the one extension slot reserved for a caller's own
	// plugin, distinguishing it from all built-ins above.
	UserPluginID PluginID = "user"
)

// Reaction is a bitmask of the lifecycle gates a Plugin wants the actor
// core to consult it on.
type Reaction uint8

const (
	ReactionInit Reaction = 1 << iota
	ReactionShutdown
	ReactionSubscription
	ReactionStart
)

func (r Reaction) has(bit Reaction) bool { return r&bit != 0 }

// Plugin is the unit of composable actor behavior. Every actor (including
// every Supervisor, which embeds an ActorCore of its own) is built from an
// ordered chain of plugins; the built-in chain members live in
// plugins_builtin.go.
type Plugin interface {
	ID() PluginID
	Reactions() Reaction

	// Activate runs once, in chain order, when the actor core begins
	// INITIALIZING. A plugin typically subscribes handlers here.
	Activate(core *ActorCore)

	// Deactivate runs once, in REVERSE chain order, while the actor core
	// is SHUTTING_DOWN. A plugin unwinds whatever it set up in Activate.
	Deactivate(core *ActorCore)
}

// InitReactor is implemented by a plugin with ReactionInit set. PollInit
// reports whether the plugin is satisfied that INIT may complete; the
// actor core treats "ready" as the default for any plugin with the bit
// set that does not also implement this interface.
type InitReactor interface {
	Plugin
	PollInit(core *ActorCore) bool
}

// ShutdownReactor is implemented by a plugin with ReactionShutdown set.
// PollShutdown reports whether the plugin has finished unwinding and the
// actor core may proceed to SHUT_DOWN.
type ShutdownReactor interface {
	Plugin
	PollShutdown(core *ActorCore) bool
}

// StartReactor is implemented by a plugin with ReactionStart set.
// HandleStart runs once, when the actor core transitions to OPERATIONAL.
type StartReactor interface {
	Plugin
	HandleStart(core *ActorCore)
}

// SubscriptionReactor is implemented by a plugin with ReactionSubscription
// set. HandleSubscription runs whenever a subscription point is
// materialized or removed at one of the actor's own addresses.
type SubscriptionReactor interface {
	Plugin
	HandleSubscription(core *ActorCore, info *SubscriptionInfo, added bool)
}

// BasePlugin is embedded by built-in plugins that don't need every hook,
// giving them no-op Activate/Deactivate for free -- the same
// optional-interface idiom the teacher uses for Stoppable.OnStop.
type BasePlugin struct {
	id        PluginID
	reactions Reaction
}

func (b BasePlugin) ID() PluginID        { return b.id }
func (b BasePlugin) Reactions() Reaction { return b.reactions }
func (b BasePlugin) Activate(*ActorCore)   {}
func (b BasePlugin) Deactivate(*ActorCore) {}
