package protocol

import "fmt"

// OpCode identifies the kind of message carried by an Envelope.
type OpCode int

// The closed set of obs-websocket operation codes. 4 is unassigned.
const (
	OpHello                OpCode = 0 // server -> client on connect
	OpIdentify             OpCode = 1 // client -> server, answers Hello
	OpIdentified           OpCode = 2 // server -> client, handshake complete
	OpReidentify           OpCode = 3 // client -> server, change session parameters
	OpEvent                OpCode = 5 // server -> client
	OpRequest              OpCode = 6 // client -> server
	OpRequestResponse      OpCode = 7 // server -> client
	OpRequestBatch         OpCode = 8 // client -> server
	OpRequestBatchResponse OpCode = 9 // server -> client
)

// OpCodes lists every valid operation code in ascending order.
var OpCodes = []OpCode{
	OpHello,
	OpIdentify,
	OpIdentified,
	OpReidentify,
	OpEvent,
	OpRequest,
	OpRequestResponse,
	OpRequestBatch,
	OpRequestBatchResponse,
}

// Valid reports whether op is one of the defined operation codes.
func (op OpCode) Valid() bool {
	switch op {
	case OpHello, OpIdentify, OpIdentified, OpReidentify, OpEvent,
		OpRequest, OpRequestResponse, OpRequestBatch, OpRequestBatchResponse:
		return true
	}
	return false
}

// FromServer reports whether op is sent by the server.
func (op OpCode) FromServer() bool {
	switch op {
	case OpHello, OpIdentified, OpEvent, OpRequestResponse, OpRequestBatchResponse:
		return true
	}
	return false
}

func (op OpCode) String() string {
	switch op {
	case OpHello:
		return "Hello"
	case OpIdentify:
		return "Identify"
	case OpIdentified:
		return "Identified"
	case OpReidentify:
		return "Reidentify"
	case OpEvent:
		return "Event"
	case OpRequest:
		return "Request"
	case OpRequestResponse:
		return "RequestResponse"
	case OpRequestBatch:
		return "RequestBatch"
	case OpRequestBatchResponse:
		return "RequestBatchResponse"
	default:
		return fmt.Sprintf("OpCode(%d)", int(op))
	}
}
