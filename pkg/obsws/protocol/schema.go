package protocol

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	obserrors "github.com/tsarna/obsws/pkg/obsws/errors"
)

func str() *jsonschema.Schema     { return &jsonschema.Schema{Type: "string"} }
func integer() *jsonschema.Schema { return &jsonschema.Schema{Type: "integer"} }
func boolean() *jsonschema.Schema { return &jsonschema.Schema{Type: "boolean"} }

// document allows an object or an explicit null.
func document() *jsonschema.Schema { return &jsonschema.Schema{Types: []string{"object", "null"}} }

func objectOf(required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

func requestStatusSchema() *jsonschema.Schema {
	return objectOf([]string{"result", "code"}, map[string]*jsonschema.Schema{
		"result":  boolean(),
		"code":    integer(),
		"comment": str(),
	})
}

func resultSchema(required ...string) *jsonschema.Schema {
	return objectOf(required, map[string]*jsonschema.Schema{
		"requestType":   str(),
		"requestId":     str(),
		"requestStatus": requestStatusSchema(),
		"responseData":  document(),
	})
}

// payloadSchemas describes the "d" field of each op code. Unknown extra
// fields are allowed so newer servers keep working.
func payloadSchemas() map[OpCode]*jsonschema.Schema {
	return map[OpCode]*jsonschema.Schema{
		OpHello: objectOf(nil, map[string]*jsonschema.Schema{
			"obsWebSocketVersion": str(),
			"rpcVersion":          integer(),
			"authentication": objectOf([]string{"challenge", "salt"}, map[string]*jsonschema.Schema{
				"challenge":  str(),
				"salt":       str(),
				"rpcVersion": integer(),
			}),
		}),
		OpIdentify: objectOf([]string{"rpcVersion"}, map[string]*jsonschema.Schema{
			"rpcVersion":         integer(),
			"authentication":     str(),
			"eventSubscriptions": integer(),
		}),
		OpIdentified: objectOf([]string{"negotiatedRpcVersion"}, map[string]*jsonschema.Schema{
			"negotiatedRpcVersion": integer(),
		}),
		OpReidentify: objectOf(nil, map[string]*jsonschema.Schema{
			"eventSubscriptions": integer(),
		}),
		OpEvent: objectOf([]string{"eventType", "eventIntent"}, map[string]*jsonschema.Schema{
			"eventType":   str(),
			"eventIntent": integer(),
			"eventData":   document(),
		}),
		OpRequest: objectOf([]string{"requestType", "requestId"}, map[string]*jsonschema.Schema{
			"requestType": str(),
			"requestId":   str(),
			"requestData": document(),
		}),
		OpRequestResponse: resultSchema("requestType", "requestId", "requestStatus"),
		OpRequestBatch: objectOf([]string{"requestId", "requests"}, map[string]*jsonschema.Schema{
			"requestId":     str(),
			"haltOnFailure": boolean(),
			"executionType": integer(),
			"requests": {
				Type: "array",
				Items: objectOf([]string{"requestType"}, map[string]*jsonschema.Schema{
					"requestType": str(),
					"requestId":   str(),
					"requestData": document(),
				}),
			},
		}),
		OpRequestBatchResponse: objectOf([]string{"requestId", "results"}, map[string]*jsonschema.Schema{
			"requestId": str(),
			"results": {
				Type:  "array",
				Items: resultSchema("requestType", "requestStatus"),
			},
		}),
	}
}

var (
	resolveOnce sync.Once
	resolved    map[OpCode]*jsonschema.Resolved
	resolveErr  error
)

func resolvedSchemas() (map[OpCode]*jsonschema.Resolved, error) {
	resolveOnce.Do(func() {
		resolved = make(map[OpCode]*jsonschema.Resolved)
		for op, schema := range payloadSchemas() {
			rs, err := schema.Resolve(nil)
			if err != nil {
				resolveErr = fmt.Errorf("resolving %s schema: %w", op, err)
				return
			}
			resolved[op] = rs
		}
	})
	return resolved, resolveErr
}

// validate checks raw against the schema registered for op.
func validate(op OpCode, raw json.RawMessage) error {
	schemas, err := resolvedSchemas()
	if err != nil {
		return err
	}

	rs, ok := schemas[op]
	if !ok {
		return obserrors.NewProtocolError(int(op), "op", "no schema for operation code")
	}

	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("%w: %v", obserrors.ErrMalformedMessage, err)
	}

	if err := rs.Validate(instance); err != nil {
		return obserrors.NewProtocolError(int(op), "", err.Error())
	}
	return nil
}
