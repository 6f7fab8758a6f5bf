package actor

import (
	"context"
	"time"
)

// linkRequest is sent by a LinkClientPlugin to the server side of a link.
// OperationalOnly mirrors spec's link_request{operational_only}: when set,
// the server defers its reply (queuing the client as PENDING) until it
// reaches OPERATIONAL itself, instead of accepting the link immediately.
type linkRequest struct {
	BaseMessage
	RequestMeta
	OperationalOnly bool
}

func (linkRequest) MessageType() string { return "link_request" }

// linkResponse answers an accepted linkRequest. A rejected linkRequest
// gets an error response instead (CodeActorNotLinkable/CodeAlreadyLinked
// via ReplyError), so Accepted is always true on a delivered linkResponse.
type linkResponse struct {
	BaseMessage
	ResponseMeta
	Accepted bool
}

func (linkResponse) MessageType() string { return "link_response" }

// unlinkNotice is sent by a LinkServerPlugin to every linked client when
// its actor begins shutting down (the server's half of the spec's
// unlink_request/unlink_response handshake), and by a LinkClientPlugin
// back to the server when the client itself unlinks voluntarily.
type unlinkNotice struct {
	BaseMessage
	From *Address
}

func (unlinkNotice) MessageType() string { return "unlink_notice" }

// unlinkAck is the client's reply to a server-initiated unlinkNotice,
// completing the handshake so the server's shutdown gate can clear. A
// voluntary client-initiated unlinkNotice (client shutting down, or an
// explicit Unlink call) carries no matching ack -- the server simply drops
// that client from its tracked set.
type unlinkAck struct {
	BaseMessage
	From *Address
}

func (unlinkAck) MessageType() string { return "unlink_ack" }

// linkClientRecord tracks one client known to a LinkServerPlugin. pending
// is non-nil while the client's link_request is held back (operational_only
// set, server not yet OPERATIONAL); it is replied to and cleared once this
// actor starts.
type linkClientRecord struct {
	addr    *Address
	pending *linkRequest
}

// LinkServerPlugin makes an actor linkable. Peers send linkRequest; whether
// it is accepted, queued, or rejected depends on this actor's own
// lifecycle phase and OperationalOnly:
//   - past OPERATIONAL (shutting down/shut down): rejected, actor_not_linkable.
//   - sender already tracked (pending or active): rejected, already_linked.
//   - OperationalOnly and not yet OPERATIONAL: queued as PENDING, no reply
//     yet -- HandleStart replies success to every PENDING client once this
//     actor becomes OPERATIONAL.
//   - otherwise: accepted immediately.
//
// When this actor begins shutting down, it sends every active (non-PENDING)
// client an unlink_request (unlinkNotice) and holds its own shutdown gate
// open until each has replied with unlinkAck -- matching the spec's
// "client unlinks before the server it depends on may complete shutdown"
// invariant. A client that never acks (already gone, or misbehaving) keeps
// this actor in SHUTTING_DOWN indefinitely; if the owning supervisor set a
// ChildPolicy.ShutdownTimeout, SupervisorConfig.ShutdownReporter is told of
// the hang when it fires, but the gate itself stays open.
type LinkServerPlugin struct {
	BasePlugin
	clients       map[uint64]*linkClientRecord
	awaitingUnack map[uint64]struct{}
}

// NewLinkServerPlugin constructs a link_server chain member.
func NewLinkServerPlugin() *LinkServerPlugin {
	return &LinkServerPlugin{
		BasePlugin:    BasePlugin{id: PluginLinkServer, reactions: ReactionShutdown | ReactionStart},
		clients:       make(map[uint64]*linkClientRecord),
		awaitingUnack: make(map[uint64]struct{}),
	}
}

func (p *LinkServerPlugin) Activate(core *ActorCore) {
	core.Subscribe(NewHandler[*linkRequest](core.address, func(ctx context.Context, req *linkRequest, sender *Address) {
		p.handleLinkRequest(core, req, sender)
	}))
	core.Subscribe(NewHandler[*unlinkNotice](core.address, func(ctx context.Context, notice *unlinkNotice, _ *Address) {
		// A client unlinking voluntarily; stop tracking it, no ack owed.
		delete(p.clients, notice.From.id)
	}))
	core.Subscribe(NewHandler[*unlinkAck](core.address, func(ctx context.Context, ack *unlinkAck, _ *Address) {
		delete(p.awaitingUnack, ack.From.id)
	}))
}

func (p *LinkServerPlugin) handleLinkRequest(core *ActorCore, req *linkRequest, sender *Address) {
	if core.State() == StateShuttingDown || core.State() == StateShutDown {
		ReplyError(core, req, NewExtendedError(
			"server past operational", CodeActorNotLinkable))
		return
	}
	if sender == nil {
		return
	}
	if _, tracked := p.clients[sender.id]; tracked {
		ReplyError(core, req, NewExtendedError(
			"client already linked", CodeAlreadyLinked))
		return
	}

	if req.OperationalOnly && core.State() != StateOperational {
		p.clients[sender.id] = &linkClientRecord{addr: sender, pending: req}
		return
	}

	p.clients[sender.id] = &linkClientRecord{addr: sender}
	Reply(core, req, func(meta ResponseMeta) Response {
		return &linkResponse{ResponseMeta: meta, Accepted: true}
	})
}

// HandleStart replies success to every client whose link_request was held
// as PENDING because it set OperationalOnly before this actor reached
// OPERATIONAL.
func (p *LinkServerPlugin) HandleStart(core *ActorCore) {
	for _, rec := range p.clients {
		if rec.pending == nil {
			continue
		}
		req := rec.pending
		rec.pending = nil
		Reply(core, req, func(meta ResponseMeta) Response {
			return &linkResponse{ResponseMeta: meta, Accepted: true}
		})
	}
}

func (p *LinkServerPlugin) Deactivate(core *ActorCore) {
	for id, rec := range p.clients {
		if rec.pending != nil {
			// Never replied; the client's own Ask times out on its own.
			continue
		}
		p.awaitingUnack[id] = struct{}{}
		core.Send(rec.addr, &unlinkNotice{From: core.address})
	}
	p.clients = make(map[uint64]*linkClientRecord)
}

// PollShutdown reports ready once every client notified in Deactivate has
// acknowledged the unlink.
func (p *LinkServerPlugin) PollShutdown(core *ActorCore) bool {
	return len(p.awaitingUnack) == 0
}

// LinkClientPlugin lets an actor link to a peer's LinkServerPlugin. A peer
// that is not yet OPERATIONAL accepts the link at once, or, when Link is
// called with operationalOnly, holds it as PENDING until it starts.
type LinkClientPlugin struct {
	BasePlugin
	linked     map[uint64]*Address
	onPeerDown func(core *ActorCore, peer *Address)
}

// NewLinkClientPlugin constructs a link_client chain member. onPeerDown,
// if non-nil, is invoked (on this actor's own locality goroutine) when a
// linked peer shuts down; the default behavior is to shut this actor down
// too with ShutdownLinkFailed, mirroring classic actor-link semantics.
func NewLinkClientPlugin(onPeerDown func(core *ActorCore, peer *Address)) *LinkClientPlugin {
	return &LinkClientPlugin{
		BasePlugin: BasePlugin{id: PluginLinkClient},
		linked:     make(map[uint64]*Address),
		onPeerDown: onPeerDown,
	}
}

func (p *LinkClientPlugin) Activate(core *ActorCore) {
	h := NewHandler[*unlinkNotice](core.address, func(ctx context.Context, notice *unlinkNotice, _ *Address) {
		delete(p.linked, notice.From.id)
		core.Send(notice.From, &unlinkAck{From: core.address})
		if p.onPeerDown != nil {
			p.onPeerDown(core, notice.From)
			return
		}
		core.RequestShutdown(NewExtendedError("linked peer shut down", CodeLinkFailed))
	})
	core.Subscribe(h)
}

func (p *LinkClientPlugin) Deactivate(core *ActorCore) {
	for _, peer := range p.linked {
		core.Send(peer, &unlinkNotice{From: core.address})
	}
	p.linked = make(map[uint64]*Address)
}

// Link attempts to establish a link to peer, blocking (respecting ctx and
// timeout) for the server's accept/reject response. If operationalOnly is
// set and peer has not yet reached OPERATIONAL, the server queues the
// request as PENDING and only replies once it starts -- Link simply keeps
// waiting (up to timeout) rather than failing fast. It fails with
// ErrNotLinkable (CodeActorNotLinkable on the wire) if peer rejected the
// link outright, and with ErrAlreadyLinked (CodeAlreadyLinked) if this
// client, or the server's own bookkeeping, already considers the pair
// linked.
func (p *LinkClientPlugin) Link(ctx context.Context, core *ActorCore, peer *Address, operationalOnly bool, timeout time.Duration) error {
	if _, already := p.linked[peer.id]; already {
		return ErrAlreadyLinked
	}

	fut := Ask(core, peer, timeout, func(meta RequestMeta) Request {
		return &linkRequest{RequestMeta: meta, OperationalOnly: operationalOnly}
	})
	result := fut.Await(ctx)
	resp, err := result.Unpack()
	if err != nil {
		if ee, ok := AsExtended(err); ok {
			switch ee.Code() {
			case CodeActorNotLinkable:
				return ErrNotLinkable
			case CodeAlreadyLinked:
				return ErrAlreadyLinked
			}
		}
		return err
	}

	lr, ok := resp.(*linkResponse)
	if !ok || !lr.Accepted {
		return ErrNotLinkable
	}
	p.linked[peer.id] = peer
	return nil
}

// Unlink tears down a previously established link, notifying the server
// side so it stops tracking this client.
func (p *LinkClientPlugin) Unlink(core *ActorCore, peer *Address) {
	if _, ok := p.linked[peer.id]; !ok {
		return
	}
	delete(p.linked, peer.id)
	core.Send(peer, &unlinkNotice{From: core.address})
}
