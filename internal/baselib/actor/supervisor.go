package actor

import (
	"context"
	"sync/atomic"
	"time"
)

// RestartPolicy governs whether a supervisor respawns a child after it
// reaches SHUT_DOWN.
type RestartPolicy int

const (
	RestartNever RestartPolicy = iota
	RestartAlways
	RestartNormalOnly
	RestartFailOnly
	RestartAskActor
)

// ChildPolicy is attached to a child when it is created via CreateActor or
// CreateChildSupervisor.
type ChildPolicy struct {
	Restart RestartPolicy

	// Period bounds the sliding window MaxAttempts is counted over; once
	// Period has elapsed since the first restart in the current window,
	// the attempt counter resets.
	Period      time.Duration
	MaxAttempts int

	// Autoshutdown, if true, means that once this child is not going to
	// be restarted (policy said no, or MaxAttempts was exhausted), the
	// supervisor itself begins shutting down rather than continuing with
	// one fewer child.
	Autoshutdown bool

	// EscalateFailure, if true, means a non-normal shutdown reason from
	// this child becomes the supervisor's own shutdown reason (wrapped,
	// so RootCause() still reaches the child's original error) instead
	// of merely being logged.
	EscalateFailure bool

	// AskActor is consulted instead of Restart when Restart ==
	// RestartAskActor: it receives the shutdown reason and decides.
	AskActor func(reason *ExtendedError) bool

	// ShutdownTimeout, if positive, bounds how long the supervisor waits
	// for this child to confirm SHUT_DOWN after RequestShutdown before
	// reporting it as hung via SupervisorConfig.ShutdownReporter. Zero
	// means the supervisor never watches this child's shutdown.
	ShutdownTimeout time.Duration
}

// DefaultChildPolicy restarts a child whose shutdown reason is non-nil (any
// abnormal shutdown, whoever requested it), up to 3 times per minute.
func DefaultChildPolicy() ChildPolicy {
	return ChildPolicy{
		Restart:     RestartFailOnly,
		Period:      time.Minute,
		MaxAttempts: 3,
	}
}

type childRecord struct {
	core        *ActorCore
	policy      ChildPolicy
	factory     func(sup *Supervisor) *ActorCore
	initialized bool
	attempts    int
	windowStart time.Time
}

// SupervisorConfig configures a Supervisor's own behavior, independent of
// any per-child ChildPolicy.
type SupervisorConfig struct {
	// SynchronizeStart holds every initialized child at INITIALIZED
	// until every sibling has also reached INITIALIZED (or, per the
	// documented Open Question decision, until a sibling shuts down
	// without ever reaching it), then triggers them all together.
	SynchronizeStart bool

	// ShutdownFlag, when non-nil, is polled at ShutdownPollInterval; once
	// it reads true the supervisor begins shutting itself down, matching
	// the design notes' "external shutdown flag" integration point for a
	// host process that wants to request shutdown without holding a
	// reference to any particular actor.
	ShutdownFlag         *atomic.Bool
	ShutdownPollInterval time.Duration

	// Journal, when non-nil, receives a record of every lifecycle
	// transition this supervisor's children go through.
	Journal Journal

	// ShutdownReporter is consulted whenever a child fails to reach
	// SHUT_DOWN within its ChildPolicy.ShutdownTimeout. Defaults to
	// logging via rotorlog and, if Journal is set, recording the hang
	// there too.
	ShutdownReporter ShutdownReporter

	Label string
}

// ShutdownReporter stands in for the design notes' "system context"
// collaborator: the thing a hung child shutdown gets reported to
// (on_shutdown_fail) when the supervisor's configured ShutdownTimeout
// elapses before the child confirms.
type ShutdownReporter interface {
	ReportShutdownFailure(ctx context.Context, childLabel string, timeout time.Duration)
}

// defaultShutdownReporter is used whenever SupervisorConfig.ShutdownReporter
// is nil.
type defaultShutdownReporter struct {
	journal Journal
}

func (r defaultShutdownReporter) ReportShutdownFailure(ctx context.Context, childLabel string, timeout time.Duration) {
	log.ErrorS(ctx, "child shutdown timed out", "child", childLabel, "timeout", timeout)
	if r.journal != nil {
		r.journal.RecordTransition(ctx, childLabel, StateShuttingDown, StateShuttingDown,
			NewExtendedError("shutdown timed out", CodeRequestTimeout))
	}
}

// DefaultSupervisorConfig mirrors the teacher's DefaultXxxConfig
// convention.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{ShutdownPollInterval: 500 * time.Millisecond}
}

// Journal is implemented by internal/journal.Store; it is declared here,
// not imported, so that actor never depends on a concrete storage
// backend. A Supervisor with Journal == nil simply does not record.
type Journal interface {
	RecordTransition(ctx context.Context, actor string, from, to ActorState, reason *ExtendedError)
	RecordSpawn(ctx context.Context, parent, child string, policy ChildPolicy)
}

// childLifecycleEvent tags the reason a childLifecycleMsg was sent.
type childLifecycleEvent int

const (
	childEventInitialized childLifecycleEvent = iota
	childEventOperational
	childEventShutDown
)

// childLifecycleMsg is how a child reports a lifecycle transition to its
// parent when the two do not share a locality (the same-locality case
// calls the parent's handler inline instead, see Supervisor.onChild*).
type childLifecycleMsg struct {
	BaseMessage
	event   childLifecycleEvent
	childID uint64
	reason  *ExtendedError
}

func (childLifecycleMsg) MessageType() string { return "child_lifecycle" }

// Supervisor is both an actor in its own right (it embeds ActorCore, and
// is itself subject to a parent supervisor's restart policy) and the
// owner of a set of children it creates, tracks and restarts. Exactly one
// Supervisor per Locality is that locality's leader and drives its Loop;
// every other Supervisor or Actor sharing that locality only ever runs on
// the leader's goroutine.
type Supervisor struct {
	ActorCore

	loc *Locality
	cfg SupervisorConfig
	sys *System

	children map[uint64]*childRecord
	pendingSync map[uint64]struct{}
	syncAbandoned bool

	spawners map[uint64]*Spawner
}

// NewRootSupervisor creates a fresh Locality (with loop as its Loop
// backend) and a Supervisor that leads it. Call Start to actually run the
// loop and begin the supervisor's own INITIALIZING phase.
func NewRootSupervisor(sys *System, loop Loop, cfg SupervisorConfig) *Supervisor {
	sup := &Supervisor{
		cfg:      cfg,
		sys:      sys,
		children: make(map[uint64]*childRecord),
		spawners: make(map[uint64]*Spawner),
	}
	loc := newLocality(loop)
	loc.setLeader(sup)
	loc.onDeadLetter = sys.deadLetter

	label := cfg.Label
	if label == "" {
		label = "supervisor"
	}
	addr := newAddress(loc, sup, label)
	chain := []Plugin{
		newAddressMakerPlugin(),
		newLifetimePlugin(),
		newInitShutdownPlugin(),
		&childManagerPlugin{sup: sup},
		newStarterPlugin(),
		newDeliveryPlugin(),
	}
	sup.ActorCore = *newActorCore(addr, nil, chain)
	sup.loc = loc
	loc.registerActor(&sup.ActorCore)

	sys.registerSupervisor(sup)
	return sup
}

// Start runs the supervisor's locality loop and activates its plugin
// chain. For a root supervisor this must be called once, from outside any
// locality's own goroutine; CreateChildSupervisor calls it automatically
// for child supervisors that get their own locality.
func (s *Supervisor) Start(ctx context.Context) {
	s.loc.loop.Start(ctx, func() { s.loc.drain(ctx) })
	s.activate()
	if s.cfg.ShutdownFlag != nil {
		s.pollShutdownFlag(ctx)
	}
}

func (s *Supervisor) pollShutdownFlag(ctx context.Context) {
	interval := s.cfg.ShutdownPollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	s.loc.loop.StartTimer(interval, func() {
		if s.cfg.ShutdownFlag.Load() {
			s.RequestShutdown(NewExtendedError(
				"external shutdown flag set", CodeSupervisorShutdown))
			return
		}
		s.pollShutdownFlag(ctx)
	})
}

// CreateActor builds a new leaf actor as a child of s, sharing s's
// locality, and activates it. behavior may be nil for an actor whose only
// job is to Subscribe handlers (an Initializer would be odd without
// state, but it's not required).
func (s *Supervisor) CreateActor(label string, behavior any, policy ChildPolicy, extraPlugins ...Plugin) *ActorCore {
	addr := newAddress(s.loc, s, label)
	chain := defaultChain(behavior, extraPlugins...)
	core := newActorCore(addr, s, chain)
	s.loc.registerActor(core)

	s.children[addr.id] = &childRecord{
		core:   core,
		policy: policy,
		factory: func(sup *Supervisor) *ActorCore {
			return sup.CreateActor(label, behavior, policy, extraPlugins...)
		},
	}
	if s.cfg.SynchronizeStart {
		if s.pendingSync == nil {
			s.pendingSync = make(map[uint64]struct{})
		}
		s.pendingSync[addr.id] = struct{}{}
	}
	if s.cfg.Journal != nil {
		s.cfg.Journal.RecordSpawn(context.Background(), s.address.String(), addr.String(), policy)
	}

	core.activate()
	return core
}

// CreateChildSupervisor builds a nested Supervisor. When sameLocality is
// true (the common case) the child shares s's locality and goroutine;
// when false, it gets its own fresh Locality driven by newLoop, i.e. its
// own goroutine.
func (s *Supervisor) CreateChildSupervisor(label string, cfg SupervisorConfig, policy ChildPolicy, sameLocality bool, newLoop Loop) *Supervisor {
	child := &Supervisor{
		cfg:      cfg,
		sys:      s.sys,
		children: make(map[uint64]*childRecord),
		spawners: make(map[uint64]*Spawner),
	}

	var loc *Locality
	if sameLocality {
		loc = s.loc
	} else {
		loc = newLocality(newLoop)
		loc.setLeader(child)
		loc.onDeadLetter = s.sys.deadLetter
	}

	addr := newAddress(loc, s, label)
	chain := []Plugin{
		newAddressMakerPlugin(),
		newLifetimePlugin(),
		newInitShutdownPlugin(),
		&childManagerPlugin{sup: child},
		newStarterPlugin(),
		newDeliveryPlugin(),
	}
	child.ActorCore = *newActorCore(addr, s, chain)
	child.loc = loc
	loc.registerActor(&child.ActorCore)
	s.sys.registerSupervisor(child)

	s.children[addr.id] = &childRecord{
		core:   &child.ActorCore,
		policy: policy,
		factory: func(sup *Supervisor) *ActorCore {
			c := sup.CreateChildSupervisor(label, cfg, policy, sameLocality, newLoop)
			return &c.ActorCore
		},
	}
	if s.cfg.SynchronizeStart {
		if s.pendingSync == nil {
			s.pendingSync = make(map[uint64]struct{})
		}
		s.pendingSync[addr.id] = struct{}{}
	}

	if !sameLocality {
		child.Start(context.Background())
	} else {
		child.activate()
	}
	return child
}

// onChildInitialized is called from a child's ActorCore.tryCompleteInit,
// which runs on the child's own locality goroutine. It relays to the
// parent's goroutine via a message unless the two are already co-local.
func (s *Supervisor) onChildInitialized(child *ActorCore) {
	if s.address.SameLocality(child.address) {
		s.handleChildInitialized(child.address.id)
		return
	}
	child.Send(s.address, &childLifecycleMsg{event: childEventInitialized, childID: child.address.id})
}

func (s *Supervisor) onChildOperational(child *ActorCore) {
	if s.address.SameLocality(child.address) {
		s.handleChildOperational(child.address.id)
		return
	}
	child.Send(s.address, &childLifecycleMsg{event: childEventOperational, childID: child.address.id})
}

func (s *Supervisor) onChildShutDown(child *ActorCore, reason *ExtendedError) {
	if s.address.SameLocality(child.address) {
		s.handleChildShutDown(child.address.id, reason)
		return
	}
	child.Send(s.address, &childLifecycleMsg{event: childEventShutDown, childID: child.address.id, reason: reason})
}

func (s *Supervisor) handleChildInitialized(childID uint64) {
	rec, ok := s.children[childID]
	if !ok {
		return
	}
	rec.initialized = true

	if s.cfg.Journal != nil {
		s.cfg.Journal.RecordTransition(context.Background(), rec.core.address.String(),
			StateInitializing, StateInitialized, nil)
	}

	if !s.cfg.SynchronizeStart || s.syncAbandoned {
		s.triggerStart(rec)
		return
	}

	delete(s.pendingSync, childID)
	if len(s.pendingSync) == 0 && !s.syncAbandoned {
		for _, r := range s.children {
			if r.initialized {
				s.triggerStart(r)
			}
		}
	}
}

func (s *Supervisor) handleChildOperational(childID uint64) {
	if s.cfg.Journal != nil {
		if rec, ok := s.children[childID]; ok {
			s.cfg.Journal.RecordTransition(context.Background(), rec.core.address.String(),
				StateInitialized, StateOperational, nil)
		}
	}
}

func (s *Supervisor) handleChildShutDown(childID uint64, reason *ExtendedError) {
	rec, ok := s.children[childID]
	if !ok {
		return
	}
	s.loc.unregisterActor(rec.core)
	delete(s.pendingSync, childID)

	// Open Question decision: synchronize_start is abandoned for
	// remaining siblings once any sibling shuts down before reaching
	// INITIALIZED, rather than waiting on a child that will never get
	// there.
	if s.cfg.SynchronizeStart && !rec.initialized && !s.syncAbandoned {
		s.syncAbandoned = true
		for _, other := range s.children {
			if other.initialized {
				s.triggerStart(other)
			}
		}
		s.pendingSync = nil
	}

	if s.cfg.Journal != nil {
		s.cfg.Journal.RecordTransition(context.Background(), rec.core.address.String(),
			StateShuttingDown, StateShutDown, reason)
	}

	if rec.policy.EscalateFailure && reason != nil && reason.Code() != CodeCancelled {
		escalated := NewExtendedError("child failure escalated", CodeFailureEscalation).
			WithCause(reason)
		s.RequestShutdown(escalated)
		delete(s.children, childID)
		return
	}

	restart := s.shouldRestart(rec, reason)
	delete(s.children, childID)

	if restart {
		s.respawn(rec)
		return
	}

	if rec.policy.Autoshutdown {
		s.RequestShutdown(NewExtendedError("required child exited", CodeActorMisconfigured).
			WithCause(reason))
	}
}

func (s *Supervisor) shouldRestart(rec *childRecord, reason *ExtendedError) bool {
	normal := reason == nil
	switch rec.policy.Restart {
	case RestartNever:
		return false
	case RestartAlways:
	case RestartNormalOnly:
		if !normal {
			return false
		}
	case RestartFailOnly:
		if normal {
			return false
		}
	case RestartAskActor:
		if rec.policy.AskActor == nil || !rec.policy.AskActor(reason) {
			return false
		}
	default:
		return false
	}

	now := time.Now()
	if rec.windowStart.IsZero() || now.Sub(rec.windowStart) > rec.policy.Period {
		rec.windowStart = now
		rec.attempts = 0
	}
	rec.attempts++
	if rec.policy.MaxAttempts > 0 && rec.attempts > rec.policy.MaxAttempts {
		log.WarnS(context.Background(), "restart attempts exhausted",
			"child", rec.core.address.String())
		return false
	}
	return true
}

func (s *Supervisor) respawn(rec *childRecord) {
	newCore := rec.factory(s)
	if newRec, ok := s.children[newCore.address.id]; ok {
		newRec.attempts = rec.attempts
		newRec.windowStart = rec.windowStart
	}
}

// triggerStart delivers the start trigger to a child, crossing localities
// like any other Send when the child lives elsewhere.
func (s *Supervisor) triggerStart(rec *childRecord) {
	if s.address.SameLocality(rec.core.address) {
		rec.core.start()
		return
	}
	s.Send(rec.core.address, &childStartTrigger{})
}

// childManagerPlugin is the canonical chain member every Supervisor
// carries; its only job is subscribing the control-message handler that
// lets children report lifecycle transitions across a locality boundary.
type childManagerPlugin struct {
	BasePlugin
	sup *Supervisor
}

func (p *childManagerPlugin) ID() PluginID        { return PluginChildManager }
func (p *childManagerPlugin) Reactions() Reaction { return 0 }

func (p *childManagerPlugin) Activate(core *ActorCore) {
	h := NewHandler[*childLifecycleMsg](core.address,
		func(ctx context.Context, msg *childLifecycleMsg, _ *Address) {
			switch msg.event {
			case childEventInitialized:
				p.sup.handleChildInitialized(msg.childID)
			case childEventOperational:
				p.sup.handleChildOperational(msg.childID)
			case childEventShutDown:
				p.sup.handleChildShutDown(msg.childID, msg.reason)
			}
		})
	core.Subscribe(h)
}

func (p *childManagerPlugin) Deactivate(core *ActorCore) {}

// Shutdown begins an orderly shutdown of s and, transitively, every child
// still alive (each child's own Deactivate/RequestShutdown chain runs
// independently; this just fires RequestShutdown on every child still in
// the map before shutting the supervisor itself down).
func (s *Supervisor) Shutdown(reason *ExtendedError) {
	for _, rec := range s.children {
		// A child brought down by its supervisor's own shutdown is not
		// restarted, whatever its policy.
		rec.policy.Restart = RestartNever
		rec.policy.Autoshutdown = false
		s.requestChildShutdown(rec, reason)
	}
	s.RequestShutdown(reason)
}

// requestChildShutdown asks rec's actor to shut down and, if its policy
// sets a ShutdownTimeout, arms a watchdog timer that reports a hang to
// SupervisorConfig.ShutdownReporter instead of blocking the supervisor
// itself. A co-local child's ActorCore is mutated directly; a child in a
// different locality must never be touched off s's own leader goroutine,
// so it gets an async childShutdownTrigger instead, mirroring triggerStart.
func (s *Supervisor) requestChildShutdown(rec *childRecord, reason *ExtendedError) {
	if s.address.SameLocality(rec.core.address) {
		rec.core.RequestShutdown(reason)
	} else {
		s.Send(rec.core.address, &childShutdownTrigger{reason: reason})
	}
	if rec.policy.ShutdownTimeout <= 0 {
		return
	}

	childLabel := rec.core.address.String()
	timeout := rec.policy.ShutdownTimeout
	doneCh := rec.core.Done()
	s.loc.loop.StartTimer(timeout, func() {
		select {
		case <-doneCh:
			return
		default:
		}
		reporter := s.cfg.ShutdownReporter
		if reporter == nil {
			reporter = defaultShutdownReporter{journal: s.cfg.Journal}
		}
		reporter.ReportShutdownFailure(context.Background(), childLabel, timeout)
	})
}
