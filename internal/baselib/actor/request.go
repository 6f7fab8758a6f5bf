package actor

import (
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Ask sends a request built by buildReq to dest and returns a Future that
// completes either with the matching Response or, if timeout elapses
// first (timeout <= 0 disables the synthetic timeout), with an
// ExtendedError of CodeRequestTimeout. buildReq receives the RequestMeta
// (id and reply-to address) it must embed in the concrete request value
// it returns.
func Ask(core *ActorCore, dest *Address, timeout time.Duration, buildReq func(meta RequestMeta) Request) Future[Response] {
	loc := core.address.locality
	promise := NewPromise[Response]()

	var req Request
	id := loc.reqTable.allocate(func(r fn.Result[Response]) { promise.Complete(r) })
	req = buildReq(NewRequestMeta(id, core.address))

	if timeout > 0 {
		token := loc.loop.StartTimer(timeout, func() {
			loc.reqTable.resolve(id, fn.Err[Response](
				NewExtendedError("request timed out", CodeRequestTimeout).
					WithRequest(req)))
		})
		loc.reqTable.attachTimer(id, token)
	}

	core.Send(dest, req)
	return promise.Future()
}

// Reply sends a response for req back to its reply-to address. buildResp
// receives the ResponseMeta (correlation id) it must embed.
func Reply(core *ActorCore, req Request, buildResp func(meta ResponseMeta) Response) {
	meta := req.requestMeta()
	resp := buildResp(NewResponseMeta(meta.RequestID()))
	core.Send(meta.ReplyTo(), resp)
}

// ReplyError sends a failure response for req, carrying err as the
// response's ExtendedError.
func ReplyError(core *ActorCore, req Request, err *ExtendedError) {
	meta := req.requestMeta()
	core.Send(meta.ReplyTo(), &errorResponse{
		meta: NewErrorResponseMeta(meta.RequestID(), err),
	})
}

// errorResponse is the concrete Response sent by ReplyError; callers that
// Ask and then Await only ever see the *ExtendedError via
// fn.Result[Response].Unpack(), never this type directly, since the
// Response fast-path in delivery.go converts a failed response straight
// into an fn.Err.
type errorResponse struct {
	BaseMessage
	meta ResponseMeta
}

func (errorResponse) MessageType() string { return "error_response" }

func (r *errorResponse) responseMeta() ResponseMeta { return r.meta }
