package actor

import (
	"errors"
	"fmt"
)

// Code enumerates the stable error codes a *ExtendedError carries, per the
// configured error-code table.
type Code string

const (
	CodeUnknown             Code = "unknown"
	CodeCancelled           Code = "cancelled"
	CodeRequestTimeout      Code = "request_timeout"
	CodeActorMisconfigured  Code = "actor_misconfigured"
	CodeActorNotLinkable    Code = "actor_not_linkable"
	CodeAlreadyLinked       Code = "already_linked"
	CodeLinkFailed          Code = "link_failed"
	CodeFailureEscalation   Code = "failure_escalation"
	CodeUnknownService      Code = "unknown_service"
	CodeDiscoveryFailed     Code = "discovery_failed"
	CodeRegistrationFailed  Code = "registration_failed"
	CodeAlreadyRegistered   Code = "already_registered"
	CodeDuplicateSubscribe  Code = "duplicate_subscription"
	CodeNotSubscribed       Code = "not_subscribed"
	CodeSupervisorShutdown  Code = "supervisor_shutdown"
	CodeSpawnFailed         Code = "spawn_failed"
	CodeMailboxFull         Code = "mailbox_full"
)

// ShutdownReason labels why an actor transitioned into SHUTTING_DOWN.
type ShutdownReason string

const (
	ShutdownNormal             ShutdownReason = "normal"
	ShutdownSupervisorRequest  ShutdownReason = "supervisor_shutdown"
	ShutdownChildInitFailed    ShutdownReason = "child_init_failed"
	ShutdownChildDown          ShutdownReason = "child_down"
	ShutdownInitFailed         ShutdownReason = "init_failed"
	ShutdownLinkFailed         ShutdownReason = "link_failed"
	ShutdownUnlinkRequested    ShutdownReason = "unlink_requested"
	ShutdownEscalatedFailure   ShutdownReason = "escalated_failure"
)

// ExtendedError is the error type threaded through responses, shutdown
// reasons and failure escalation. It wraps an optional cause with %w
// semantics so errors.Is/As/Unwrap all work against it, while also
// carrying a stable Code, the request (if any) that triggered it, and a
// human-readable context string.
type ExtendedError struct {
	context string
	code    Code
	cause   error
	request Request
}

// NewExtendedError builds a bare ExtendedError with no cause.
func NewExtendedError(context string, code Code) *ExtendedError {
	return &ExtendedError{context: context, code: code}
}

// WithCause returns a copy of e with cause attached.
func (e *ExtendedError) WithCause(cause error) *ExtendedError {
	cp := *e
	cp.cause = cause
	return &cp
}

// WithRequest returns a copy of e tagged with the request that failed.
func (e *ExtendedError) WithRequest(req Request) *ExtendedError {
	cp := *e
	cp.request = req
	return &cp
}

// Code returns the stable error code.
func (e *ExtendedError) Code() Code { return e.code }

// Context returns the human-readable context string.
func (e *ExtendedError) Context() string { return e.context }

// Cause returns the immediate wrapped error, or nil.
func (e *ExtendedError) Cause() error { return e.cause }

// Request returns the request this error is in response to, if any.
func (e *ExtendedError) Request() (Request, bool) {
	return e.request, e.request != nil
}

func (e *ExtendedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.context, e.code, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.context, e.code)
}

// Unwrap exposes the immediate cause to the errors package.
func (e *ExtendedError) Unwrap() error { return e.cause }

// RootCause walks the Unwrap chain to the deepest non-wrapping error,
// which is typically the original failure that triggered an escalation.
func (e *ExtendedError) RootCause() error {
	var cur error = e
	for {
		next := errors.Unwrap(cur)
		if next == nil {
			return cur
		}
		cur = next
	}
}

// AsExtended unwraps err looking for an *ExtendedError, the way
// errors.As would, returning ok=false if none is found anywhere in the
// chain.
func AsExtended(err error) (*ExtendedError, bool) {
	var ee *ExtendedError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

var (
	// ErrActorTerminated is declared for callers' own use; nothing in this
	// package returns it. A pending Ask whose target shuts down without
	// replying completes only through its own timeout, if one was set.
	ErrActorTerminated = errors.New("actor terminated before reply")

	// ErrSystemShuttingDown is the error every request still pending on a
	// root supervisor's locality completes with when System.Shutdown
	// tears that locality down.
	ErrSystemShuttingDown = errors.New("system is shutting down")

	// ErrDuplicateSubscription is returned when the same (address,
	// handler) subscription point is registered twice.
	ErrDuplicateSubscription = errors.New("duplicate subscription")

	// ErrNotSubscribed is returned by Unsubscribe for an unknown point.
	ErrNotSubscribed = errors.New("subscription not found")

	// ErrNotLinkable is returned by LinkClientPlugin.Link when the peer's
	// link_server rejects the link with CodeActorNotLinkable (it is
	// shutting down), or answers with anything but an accepted
	// linkResponse.
	ErrNotLinkable = errors.New("target actor is not linkable")

	// ErrAlreadyLinked is returned by LinkClientPlugin.Link for a pair of
	// addresses that are already linked.
	ErrAlreadyLinked = errors.New("addresses already linked")
)
