package actor

import (
	"context"
	"sync"
)

// registerRequest asks the registry actor to bind name to addr.
type registerRequest struct {
	BaseMessage
	RequestMeta
	Name string
	Addr *Address
}

func (registerRequest) MessageType() string { return "registry_register" }

// registerResponse answers a registerRequest.
type registerResponse struct {
	BaseMessage
	ResponseMeta
}

func (registerResponse) MessageType() string { return "registry_register_ack" }

// discoverRequest asks the registry actor for the address bound to Name.
// Delayed distinguishes spec's two discovery operations: false is
// discovery_request (resolve now or fail with unknown_service), true is
// discovery_promise (resolve now, or queue and wait for a matching
// register, answered in arrival order).
type discoverRequest struct {
	BaseMessage
	RequestMeta
	Name    string
	Delayed bool
}

func (discoverRequest) MessageType() string { return "registry_discover" }

// discoverResponse answers a discoverRequest with the bound address, or an
// ExtendedError (CodeUnknownService for a failed discovery_request,
// CodeCancelled for a cancelled discovery_promise) otherwise.
type discoverResponse struct {
	BaseMessage
	ResponseMeta
	Addr *Address
}

func (discoverResponse) MessageType() string { return "registry_discover_ack" }

// deregisterRequest clears every name addr holds, per the documented
// interpretation of deregister_notify: it only clears bindings, it never
// fails other names' pending discovery promises.
type deregisterRequest struct {
	BaseMessage
	RequestMeta
	Addr *Address
}

func (deregisterRequest) MessageType() string { return "registry_deregister" }

type deregisterResponse struct {
	BaseMessage
	ResponseMeta
}

func (deregisterResponse) MessageType() string { return "registry_deregister_ack" }

// pendingDiscovery is one outstanding discoverRequest waiting on a name
// that has not been registered yet, kept in arrival order so multiple
// waiters on the same name are served in the order they asked.
type pendingDiscovery struct {
	req    *discoverRequest
	sender *Address
}

// Registry is the registry actor's behavior: a name -> address map plus a
// FIFO of pending discovery requests per unresolved name. It is installed
// as a resourcesPlugin Initializer so it can subscribe its own handlers.
type Registry struct {
	mu       sync.Mutex
	byName   map[string]*Address
	byAddr   map[uint64][]string
	pending  map[string][]pendingDiscovery
}

// NewRegistry constructs an empty Registry behavior.
func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]*Address),
		byAddr:  make(map[uint64][]string),
		pending: make(map[string][]pendingDiscovery),
	}
}

// OnActorInit subscribes the registry's request handlers. It is part of
// the Initializer optional interface resourcesPlugin looks for.
func (r *Registry) OnActorInit(core *ActorCore) error {
	core.Subscribe(NewHandler[*registerRequest](core.address, func(ctx context.Context, req *registerRequest, sender *Address) {
		r.handleRegister(core, req, sender)
	}))
	core.Subscribe(NewHandler[*discoverRequest](core.address, func(ctx context.Context, req *discoverRequest, sender *Address) {
		r.handleDiscover(core, req, sender)
	}))
	core.Subscribe(NewHandler[*deregisterRequest](core.address, func(ctx context.Context, req *deregisterRequest, sender *Address) {
		r.handleDeregister(core, req, sender)
	}))
	return nil
}

func (r *Registry) handleRegister(core *ActorCore, req *registerRequest, sender *Address) {
	r.mu.Lock()
	if existing, ok := r.byName[req.Name]; ok && existing != req.Addr {
		r.mu.Unlock()
		ReplyError(core, req, NewExtendedError("name already bound", CodeAlreadyRegistered))
		return
	}
	r.byName[req.Name] = req.Addr
	r.byAddr[req.Addr.id] = append(r.byAddr[req.Addr.id], req.Name)
	waiters := r.pending[req.Name]
	delete(r.pending, req.Name)
	r.mu.Unlock()

	Reply(core, req, func(meta ResponseMeta) Response { return &registerResponse{ResponseMeta: meta} })

	// Serve queued discoverers in the order they asked, per the
	// configured discovery-promise ordering invariant.
	for _, w := range waiters {
		Reply(core, w.req, func(meta ResponseMeta) Response {
			return &discoverResponse{ResponseMeta: meta, Addr: req.Addr}
		})
	}
}

func (r *Registry) handleDiscover(core *ActorCore, req *discoverRequest, sender *Address) {
	r.mu.Lock()
	addr, ok := r.byName[req.Name]
	if !ok {
		if req.Delayed {
			r.pending[req.Name] = append(r.pending[req.Name], pendingDiscovery{req: req, sender: sender})
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()
		ReplyError(core, req, NewExtendedError("name not registered", CodeUnknownService))
		return
	}
	r.mu.Unlock()

	Reply(core, req, func(meta ResponseMeta) Response {
		return &discoverResponse{ResponseMeta: meta, Addr: addr}
	})
}

func (r *Registry) handleDeregister(core *ActorCore, req *deregisterRequest, sender *Address) {
	r.mu.Lock()
	names := r.byAddr[req.Addr.id]
	delete(r.byAddr, req.Addr.id)
	for _, name := range names {
		if bound, ok := r.byName[name]; ok && bound == req.Addr {
			delete(r.byName, name)
		}
	}
	r.mu.Unlock()

	Reply(core, req, func(meta ResponseMeta) Response { return &deregisterResponse{ResponseMeta: meta} })
}

// CancelDiscovery removes any pending discoverRequest for name whose
// sender is addr, completing it with CodeCancelled -- a cancelled
// discovery_promise resolves as cancelled, never as unknown_service, per
// the round-trip law. Used when a caller's own Ask context is canceled and
// it no longer wants to wait.
func (r *Registry) CancelDiscovery(core *ActorCore, name string, addr *Address) {
	r.mu.Lock()
	list := r.pending[name]
	kept := list[:0]
	var canceled []pendingDiscovery
	for _, w := range list {
		if w.sender != nil && w.sender.id == addr.id {
			canceled = append(canceled, w)
		} else {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		delete(r.pending, name)
	} else {
		r.pending[name] = kept
	}
	r.mu.Unlock()

	for _, w := range canceled {
		ReplyError(core, w.req, NewExtendedError("discovery canceled", CodeCancelled))
	}
}

// RegistryClient is a small convenience wrapper any actor can use to talk
// to a known registry address without hand-building the request types.
type RegistryClient struct {
	core *ActorCore
	reg  *Address
}

// NewRegistryClient builds a client bound to core (for Ask/reply-to
// plumbing) and reg (the registry actor's address).
func NewRegistryClient(core *ActorCore, reg *Address) *RegistryClient {
	return &RegistryClient{core: core, reg: reg}
}

// Register binds name to addr. The returned Future resolves with either
// a *registerResponse (success) or an ExtendedError.
func (c *RegistryClient) Register(name string, addr *Address) Future[Response] {
	return Ask(c.core, c.reg, 0, func(meta RequestMeta) Request {
		return &registerRequest{RequestMeta: meta, Name: name, Addr: addr}
	})
}

// DiscoverName issues a discovery_request: resolves immediately, either
// with the bound address or an ExtendedError (CodeUnknownService) if name
// has no binding yet. It is sent with a zero Ask timeout, so no
// CodeRequestTimeout is ever synthesized: if the registry never answers,
// the Future stays pending until the caller's Await context ends.
func (c *RegistryClient) DiscoverName(name string) Future[Response] {
	return Ask(c.core, c.reg, 0, func(meta RequestMeta) Request {
		return &discoverRequest{RequestMeta: meta, Name: name}
	})
}

// DiscoverNamePromise issues a discovery_promise: resolves immediately if
// name is already bound, otherwise queues and waits for a matching
// register_name call (or an explicit CancelDiscovery) to resolve it.
func (c *RegistryClient) DiscoverNamePromise(name string) Future[Response] {
	return Ask(c.core, c.reg, 0, func(meta RequestMeta) Request {
		return &discoverRequest{RequestMeta: meta, Name: name, Delayed: true}
	})
}

// Deregister clears every name addr holds in the registry.
func (c *RegistryClient) Deregister(addr *Address) Future[Response] {
	return Ask(c.core, c.reg, 0, func(meta RequestMeta) Request {
		return &deregisterRequest{RequestMeta: meta, Addr: addr}
	})
}
