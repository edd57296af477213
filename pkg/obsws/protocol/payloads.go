package protocol

import (
	"encoding/json"
	"fmt"

	obserrors "github.com/tsarna/obsws/pkg/obsws/errors"
)

// Payload is the typed content of an Envelope's "d" field. The set of
// implementations is closed: one per OpCode.
type Payload interface {
	OpCode() OpCode
	payload()
}

var (
	_ Payload = (*Hello)(nil)
	_ Payload = (*Identify)(nil)
	_ Payload = (*Identified)(nil)
	_ Payload = (*Reidentify)(nil)
	_ Payload = (*Event)(nil)
	_ Payload = (*Request)(nil)
	_ Payload = (*RequestResponse)(nil)
	_ Payload = (*RequestBatch)(nil)
	_ Payload = (*RequestBatchResponse)(nil)
)

// Authentication is the challenge announced in Hello when the server
// requires a password.
type Authentication struct {
	Challenge  string `json:"challenge"`
	Salt       string `json:"salt"`
	RPCVersion int    `json:"rpcVersion,omitempty"`
}

// Hello is the first message sent by the server.
type Hello struct {
	ObsWebSocketVersion string          `json:"obsWebSocketVersion,omitempty"`
	RPCVersion          int             `json:"rpcVersion,omitempty"`
	Authentication      *Authentication `json:"authentication,omitempty"`
}

// RequiresAuth reports whether the server announced an authentication challenge.
func (h *Hello) RequiresAuth() bool {
	return h.Authentication != nil
}

// NegotiableRPCVersion returns the RPC version to put in Identify. A version
// inside the authentication object wins over the top-level one.
func (h *Hello) NegotiableRPCVersion() (int, error) {
	if h.Authentication != nil && h.Authentication.RPCVersion > 0 {
		return h.Authentication.RPCVersion, nil
	}
	if h.RPCVersion > 0 {
		return h.RPCVersion, nil
	}
	return 0, obserrors.NewProtocolError(int(OpHello), "rpcVersion", "missing or not a positive integer")
}

// Identify answers Hello.
type Identify struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions uint32 `json:"eventSubscriptions"`
}

// Identified acknowledges Identify or Reidentify.
type Identified struct {
	NegotiatedRPCVersion int `json:"negotiatedRpcVersion"`
}

// Reidentify changes session parameters after the handshake.
type Reidentify struct {
	EventSubscriptions uint32 `json:"eventSubscriptions"`
}

// Event is an unsolicited notification from the server.
type Event struct {
	EventType   string   `json:"eventType"`
	EventIntent uint32   `json:"eventIntent"`
	EventData   Document `json:"eventData,omitempty"`
}

// Request asks the server to perform RequestType.
type Request struct {
	RequestType string   `json:"requestType"`
	RequestID   string   `json:"requestId"`
	RequestData Document `json:"requestData"`
}

// NewRequest builds a Request with a fresh request id.
func NewRequest(requestType string, data Document) *Request {
	if data == nil {
		data = Document{}
	}
	return &Request{
		RequestType: requestType,
		RequestID:   NewRequestID(),
		RequestData: data,
	}
}

// RequestStatus reports how the server handled a request.
type RequestStatus struct {
	Result  bool   `json:"result"`
	Code    int    `json:"code"`
	Comment string `json:"comment,omitempty"`
}

// Request status codes with special meaning to the client.
const (
	StatusUnknown = 0
	StatusSuccess = 100
)

// RequestResponse answers a Request, correlated by RequestID.
type RequestResponse struct {
	RequestType   string        `json:"requestType"`
	RequestID     string        `json:"requestId,omitempty"`
	RequestStatus RequestStatus `json:"requestStatus"`
	ResponseData  Document      `json:"responseData,omitempty"`
}

// Err returns a *RequestError when the server reported failure, nil otherwise.
func (r *RequestResponse) Err() error {
	if r.RequestStatus.Result {
		return nil
	}
	return &RequestError{
		RequestType: r.RequestType,
		RequestID:   r.RequestID,
		Code:        r.RequestStatus.Code,
		Comment:     r.RequestStatus.Comment,
	}
}

// RequestError is a request the server processed and rejected.
type RequestError struct {
	RequestType string
	RequestID   string
	Code        int
	Comment     string
}

func (e *RequestError) Error() string {
	if e.Comment != "" {
		return fmt.Sprintf("request %s failed with code %d: %s", e.RequestType, e.Code, e.Comment)
	}
	return fmt.Sprintf("request %s failed with code %d", e.RequestType, e.Code)
}

// BatchRequest is one entry of a RequestBatch.
type BatchRequest struct {
	RequestType string   `json:"requestType"`
	RequestID   string   `json:"requestId,omitempty"`
	RequestData Document `json:"requestData,omitempty"`
}

// Batch execution types.
const (
	ExecutionSerialRealtime = 0
	ExecutionSerialFrame    = 1
	ExecutionParallel       = 2
)

// RequestBatch sends several requests in one message.
type RequestBatch struct {
	RequestID     string         `json:"requestId"`
	HaltOnFailure bool           `json:"haltOnFailure,omitempty"`
	ExecutionType *int           `json:"executionType,omitempty"`
	Requests      []BatchRequest `json:"requests"`
}

// NewRequestBatch builds a RequestBatch with a fresh request id.
func NewRequestBatch(requests []BatchRequest, haltOnFailure bool) *RequestBatch {
	if requests == nil {
		requests = []BatchRequest{}
	}
	return &RequestBatch{
		RequestID:     NewRequestID(),
		HaltOnFailure: haltOnFailure,
		Requests:      requests,
	}
}

// RequestBatchResponse answers a RequestBatch.
type RequestBatchResponse struct {
	RequestID string            `json:"requestId"`
	Results   []RequestResponse `json:"results"`
}

func (*Hello) OpCode() OpCode                { return OpHello }
func (*Identify) OpCode() OpCode             { return OpIdentify }
func (*Identified) OpCode() OpCode           { return OpIdentified }
func (*Reidentify) OpCode() OpCode           { return OpReidentify }
func (*Event) OpCode() OpCode                { return OpEvent }
func (*Request) OpCode() OpCode              { return OpRequest }
func (*RequestResponse) OpCode() OpCode      { return OpRequestResponse }
func (*RequestBatch) OpCode() OpCode         { return OpRequestBatch }
func (*RequestBatchResponse) OpCode() OpCode { return OpRequestBatchResponse }

func (*Hello) payload()                {}
func (*Identify) payload()             {}
func (*Identified) payload()           {}
func (*Reidentify) payload()           {}
func (*Event) payload()                {}
func (*Request) payload()              {}
func (*RequestResponse) payload()      {}
func (*RequestBatch) payload()         {}
func (*RequestBatchResponse) payload() {}

// newPayload returns an empty payload for op.
func newPayload(op OpCode) (Payload, error) {
	switch op {
	case OpHello:
		return &Hello{}, nil
	case OpIdentify:
		return &Identify{}, nil
	case OpIdentified:
		return &Identified{}, nil
	case OpReidentify:
		return &Reidentify{}, nil
	case OpEvent:
		return &Event{}, nil
	case OpRequest:
		return &Request{}, nil
	case OpRequestResponse:
		return &RequestResponse{}, nil
	case OpRequestBatch:
		return &RequestBatch{}, nil
	case OpRequestBatchResponse:
		return &RequestBatchResponse{}, nil
	default:
		return nil, obserrors.NewProtocolError(int(op), "op", "unknown operation code")
	}
}

// DecodePayload validates the envelope data against the schema for its
// op code and unmarshals it into the matching typed payload.
func DecodePayload(env Envelope) (Payload, error) {
	p, err := newPayload(env.Op)
	if err != nil {
		return nil, err
	}

	if err := validate(env.Op, env.Data); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(env.Data, p); err != nil {
		return nil, obserrors.NewProtocolError(int(env.Op), "", err.Error())
	}

	return p, nil
}

// DecodeAs decodes env and asserts it holds a payload of type T.
func DecodeAs[T Payload](env Envelope) (T, error) {
	var zero T
	p, err := DecodePayload(env)
	if err != nil {
		return zero, err
	}
	typed, ok := p.(T)
	if !ok {
		return zero, obserrors.NewProtocolError(int(env.Op), "op", fmt.Sprintf("unexpected %s", env.Op))
	}
	return typed, nil
}
