package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	obserrors "github.com/tsarna/obsws/pkg/obsws/errors"
)

// Document is a generic structured JSON object.
type Document map[string]any

// Envelope is one protocol message. It follows the obs-websocket wire format
// with short field names:
//
//	{"op": 6, "d": {"requestType": "GetVersion", "requestId": "...", "requestData": {}}}
type Envelope struct {
	Op   OpCode          `json:"op"`
	Data json.RawMessage `json:"d"`
}

// NewRequestID returns a fresh identifier for correlating a request with its response.
func NewRequestID() string {
	return uuid.NewString()
}

// NewEnvelope wraps a typed payload in an Envelope.
func NewEnvelope(p Payload) (Envelope, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", p.OpCode(), err)
	}
	return Envelope{Op: p.OpCode(), Data: data}, nil
}

// BuildMessage builds an Envelope for op from loose fields.
//
// For Request, fields become requestData next to requestType and a fresh
// requestId; they are not merged into d. RequestBatch gets a fresh requestId
// with fields merged beside it; a requestId in fields is ignored. Every other code merges fields into d.
// The generated request id is returned, empty for codes that carry none.
func BuildMessage(op OpCode, requestType string, fields Document) (Envelope, string, error) {
	if !op.Valid() {
		return Envelope{}, "", obserrors.NewProtocolError(int(op), "op", "unknown operation code")
	}

	data := Document{}
	var requestID string

	switch op {
	case OpRequest:
		requestID = NewRequestID()
		if fields == nil {
			fields = Document{}
		}
		data["requestType"] = requestType
		data["requestId"] = requestID
		data["requestData"] = fields
		fields = nil
	case OpRequestBatch:
		requestID = NewRequestID()
	}

	for k, v := range fields {
		data[k] = v
	}
	if op == OpRequestBatch {
		data["requestId"] = requestID
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, "", fmt.Errorf("failed to marshal %s data: %w", op, err)
	}

	return Envelope{Op: op, Data: raw}, requestID, nil
}

// Encode serializes an envelope to its text form.
func Encode(env Envelope) ([]byte, error) {
	if !env.Op.Valid() {
		return nil, obserrors.NewProtocolError(int(env.Op), "op", "unknown operation code")
	}
	if len(env.Data) == 0 {
		env.Data = json.RawMessage("{}")
	} else if !isObject(env.Data) {
		return nil, fmt.Errorf("%w: d must be an object", obserrors.ErrMalformedMessage)
	}

	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", obserrors.ErrMalformedMessage, err)
	}
	return out, nil
}

// EncodePayload is NewEnvelope followed by Encode.
func EncodePayload(p Payload) ([]byte, error) {
	env, err := NewEnvelope(p)
	if err != nil {
		return nil, err
	}
	return Encode(env)
}

// Decode parses a text frame into an Envelope.
//
// The frame must be an object with an integer "op" and an object "d",
// otherwise the error wraps ErrMalformedMessage. An op outside the defined
// set yields the envelope together with a *ProtocolError.
func Decode(text []byte) (Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(text, &fields); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", obserrors.ErrMalformedMessage, err)
	}
	if fields == nil {
		return Envelope{}, fmt.Errorf("%w: not an object", obserrors.ErrMalformedMessage)
	}

	rawOp, ok := fields["op"]
	if !ok {
		return Envelope{}, fmt.Errorf("%w: missing op", obserrors.ErrMalformedMessage)
	}
	var op int
	if err := json.Unmarshal(rawOp, &op); err != nil {
		return Envelope{}, fmt.Errorf("%w: op is not an integer: %s", obserrors.ErrMalformedMessage, rawOp)
	}

	data, ok := fields["d"]
	if !ok {
		return Envelope{}, fmt.Errorf("%w: missing d", obserrors.ErrMalformedMessage)
	}
	if !isObject(data) {
		return Envelope{}, fmt.Errorf("%w: d is not an object", obserrors.ErrMalformedMessage)
	}

	env := Envelope{Op: OpCode(op), Data: data}
	if !env.Op.Valid() {
		return env, obserrors.NewProtocolError(op, "op", "unknown operation code")
	}
	return env, nil
}

// Document decodes the envelope data into a generic document.
func (e Envelope) Document() (Document, error) {
	var doc Document
	if err := json.Unmarshal(e.Data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", obserrors.ErrMalformedMessage, err)
	}
	return doc, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
