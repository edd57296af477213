// Package transform applies jq queries to response and event data.
package transform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"

	"github.com/tsarna/obsws/pkg/obsws/events"
	"github.com/tsarna/obsws/pkg/obsws/protocol"
)

// JQ is a compiled jq query.
//
// Queries can refer to two variables:
//   - $topic: "<category>/<eventType>" for events, "requests/<requestType>" for responses
//   - $type: the event or request type
//
// Example queries:
//
//	.sceneName
//	.inputs[] | select(.inputKind == "ffmpeg_source") | .inputName
//	{scene: .sceneName, source: $topic}
type JQ struct {
	query string
	code  *gojq.Code
}

// CompileJQ parses and compiles query.
func CompileJQ(query string) (*JQ, error) {
	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JQ query '%s': %w", query, err)
	}

	code, err := gojq.Compile(parsed, gojq.WithVariables([]string{"$topic", "$type"}))
	if err != nil {
		return nil, fmt.Errorf("failed to compile JQ query '%s': %w", query, err)
	}

	return &JQ{query: query, code: code}, nil
}

// String returns the query text.
func (j *JQ) String() string {
	return j.query
}

// Apply runs the query over input. A single result is returned as is and
// several are collected into a slice. ok is false when the query produced
// no result at all.
func (j *JQ) Apply(ctx context.Context, input any, topic, typ string) (out any, ok bool, err error) {
	normalized, err := normalize(input)
	if err != nil {
		return nil, false, fmt.Errorf("JQ query '%s': %w", j.query, err)
	}

	iter := j.code.RunWithContext(ctx, normalized, topic, typ)

	var results []any
	for {
		result, hasResult := iter.Next()
		if !hasResult {
			break
		}
		if execErr, isErr := result.(error); isErr {
			return nil, false, fmt.Errorf("JQ query '%s': %w", j.query, execErr)
		}
		results = append(results, result)
	}

	switch len(results) {
	case 0:
		return nil, false, nil
	case 1:
		return results[0], true, nil
	default:
		return results, true, nil
	}
}

// ApplyEvent runs the query over the event's data.
func (j *JQ) ApplyEvent(ctx context.Context, ev *protocol.Event) (any, bool, error) {
	return j.Apply(ctx, ev.EventData, events.Topic(ev), ev.EventType)
}

// ApplyResponse runs the query over the response's data.
func (j *JQ) ApplyResponse(ctx context.Context, resp *protocol.RequestResponse) (any, bool, error) {
	return j.Apply(ctx, resp.ResponseData, "requests/"+resp.RequestType, resp.RequestType)
}

// normalize turns input into the plain maps, slices and scalars gojq
// accepts. Strings and byte slices holding JSON are parsed.
func normalize(input any) (any, error) {
	switch v := input.(type) {
	case nil, bool, int, float64:
		return v, nil
	case string:
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			return v, nil
		}
		return parsed, nil
	case []byte:
		var parsed any
		if err := json.Unmarshal(v, &parsed); err != nil {
			return string(v), nil
		}
		return parsed, nil
	case protocol.Document:
		if v == nil {
			return nil, nil
		}
	}

	data, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", input, err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %T: %w", input, err)
	}
	return out, nil
}
