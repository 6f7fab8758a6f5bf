package actor

import (
	"context"
	"reflect"
)

// Handler is a type-erased, type-checked callback bound to exactly one
// concrete Message type. Built generically via NewHandler, which computes
// the selector reflect.Type once at construction and closes over a checked
// Message-to-M type assertion that runs on each delivered message.
type Handler struct {
	msgType reflect.Type
	owner   *Address
	tag     string
	invoke  func(ctx context.Context, env Envelope)
}

// NewHandler builds a Handler bound to owner that only ever fires for
// messages of concrete type M. fn receives the sender address alongside
// the typed message so request/response plumbing can reply without the
// message itself carrying a reply-to field.
func NewHandler[M Message](owner *Address, fn func(ctx context.Context, msg M, sender *Address)) *Handler {
	var zero M
	t := reflect.TypeOf(zero)

	return &Handler{
		msgType: t,
		owner:   owner,
		invoke: func(ctx context.Context, env Envelope) {
			typed, ok := env.Msg.(M)
			if !ok {
				return
			}
			fn(ctx, typed, env.Sender)
		},
	}
}

// Selects reports whether msg's concrete type matches this handler.
func (h *Handler) Selects(msg Message) bool {
	return reflect.TypeOf(msg) == h.msgType
}

// Owner returns the address this handler was subscribed on behalf of.
func (h *Handler) Owner() *Address { return h.owner }

// Invoke runs the handler's callback against env. Callers must already
// have confirmed Selects(env.Msg).
func (h *Handler) Invoke(ctx context.Context, env Envelope) { h.invoke(ctx, env) }

// Upgrade wraps h with an interceptor tag, used by the supervisor's
// interceptor chain (logging, metrics, rate limiting) to wrap a handler's
// invocation without the handler itself knowing about interception.
// Upgrading with a tag the handler already carries is a no-op, so a plugin
// re-activating on resubscribe does not stack interceptors.
func (h *Handler) Upgrade(tag string, around func(ctx context.Context, env Envelope, next func())) *Handler {
	if h.tag == tag {
		return h
	}
	inner := h.invoke
	return &Handler{
		msgType: h.msgType,
		owner:   h.owner,
		tag:     tag,
		invoke: func(ctx context.Context, env Envelope) {
			around(ctx, env, func() { inner(ctx, env) })
		},
	}
}
