package actor

import "reflect"

// Message is the sealed interface every payload routed through a locality
// must implement. The marker method keeps the interface closed to this
// package's BaseMessage embedding, mirroring the sealed-Message convention
// the teacher uses in its own actor package.
type Message interface {
	messageMarker()

	// MessageType returns a human-readable tag, used in logging and in the
	// dead-letter record; it is never used for dispatch (dispatch uses the
	// concrete Go type via reflect.Type, computed once per Handler).
	MessageType() string
}

// BaseMessage is embedded by every concrete message type to satisfy the
// sealed marker. It carries no data.
type BaseMessage struct{}

func (BaseMessage) messageMarker() {}

// RequestMeta is embedded by request message types to carry the
// correlation id and reply-to address a Request/Response exchange needs.
// Embedding promotes requestMeta(), which satisfies the Request interface.
type RequestMeta struct {
	id      uint64
	replyTo *Address
}

func (r RequestMeta) requestMeta() RequestMeta { return r }

// RequestID returns the correlation id assigned when the request was sent.
func (r RequestMeta) RequestID() uint64 { return r.id }

// ReplyTo returns the address the response must be routed to.
func (r RequestMeta) ReplyTo() *Address { return r.replyTo }

// Request is implemented by any message embedding RequestMeta.
type Request interface {
	Message
	requestMeta() RequestMeta
}

// ResponseMeta is embedded by response message types.
type ResponseMeta struct {
	requestID uint64
	err       *ExtendedError
}

func (r ResponseMeta) responseMeta() ResponseMeta { return r }

// InReplyTo returns the correlation id of the request this responds to.
func (r ResponseMeta) InReplyTo() uint64 { return r.requestID }

// Failed reports whether the response carries an ExtendedError instead of
// a payload.
func (r ResponseMeta) Failed() bool { return r.err != nil }

// Err returns the carried error, or nil on success.
func (r ResponseMeta) Err() *ExtendedError { return r.err }

// Response is implemented by any message embedding ResponseMeta.
type Response interface {
	Message
	responseMeta() ResponseMeta
}

// NewRequestMeta is used by callers building a request message by hand
// (Ask in request.go builds one for its buildReq callback).
func NewRequestMeta(id uint64, replyTo *Address) RequestMeta {
	return RequestMeta{id: id, replyTo: replyTo}
}

// NewResponseMeta builds the metadata for a successful response.
func NewResponseMeta(requestID uint64) ResponseMeta {
	return ResponseMeta{requestID: requestID}
}

// NewErrorResponseMeta builds the metadata for a failed response.
func NewErrorResponseMeta(requestID uint64, err *ExtendedError) ResponseMeta {
	return ResponseMeta{requestID: requestID, err: err}
}

// typeOf recovers the concrete reflect.Type carried by a Message value,
// used as the subscription-map and Handler selector key.
func typeOf(msg Message) reflect.Type {
	return reflect.TypeOf(msg)
}
