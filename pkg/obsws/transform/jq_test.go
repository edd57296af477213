package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsarna/obsws/pkg/obsws/protocol"
)

func TestCompileJQ(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		jq, err := CompileJQ(".sceneName")
		require.NoError(t, err)
		assert.Equal(t, ".sceneName", jq.String())
	})

	t.Run("parse error", func(t *testing.T) {
		_, err := CompileJQ(".[")
		assert.ErrorContains(t, err, "failed to parse JQ query")
	})

	t.Run("unknown variable", func(t *testing.T) {
		_, err := CompileJQ("$nope")
		assert.ErrorContains(t, err, "failed to compile JQ query")
	})
}

func TestApply(t *testing.T) {
	ctx := context.Background()

	t.Run("field extraction", func(t *testing.T) {
		jq, err := CompileJQ(".name")
		require.NoError(t, err)

		out, ok, err := jq.Apply(ctx, map[string]any{"name": "Alice"}, "", "")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Alice", out)
	})

	t.Run("missing field returns null", func(t *testing.T) {
		jq, err := CompileJQ(".nonexistent")
		require.NoError(t, err)

		out, ok, err := jq.Apply(ctx, map[string]any{"name": "Alice"}, "", "")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Nil(t, out)
	})

	t.Run("multiple results are collected", func(t *testing.T) {
		jq, err := CompileJQ(".scenes[] | select(.active) | .name")
		require.NoError(t, err)

		input := protocol.Document{"scenes": []any{
			protocol.Document{"name": "Intro", "active": true},
			protocol.Document{"name": "Live", "active": false},
			protocol.Document{"name": "Outro", "active": true},
		}}
		out, ok, err := jq.Apply(ctx, input, "", "")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []any{"Intro", "Outro"}, out)
	})

	t.Run("no results", func(t *testing.T) {
		jq, err := CompileJQ("empty")
		require.NoError(t, err)

		out, ok, err := jq.Apply(ctx, nil, "", "")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, out)
	})

	t.Run("runtime error", func(t *testing.T) {
		jq, err := CompileJQ(".a + 1")
		require.NoError(t, err)

		_, _, err = jq.Apply(ctx, map[string]any{"a": "text"}, "", "")
		assert.Error(t, err)
	})

	t.Run("JSON text input is parsed", func(t *testing.T) {
		jq, err := CompileJQ(".x")
		require.NoError(t, err)

		out, _, err := jq.Apply(ctx, `{"x": 5}`, "", "")
		require.NoError(t, err)
		assert.Equal(t, float64(5), out)

		out, _, err = jq.Apply(ctx, []byte(`{"x": true}`), "", "")
		require.NoError(t, err)
		assert.Equal(t, true, out)
	})

	t.Run("plain string input", func(t *testing.T) {
		jq, err := CompileJQ("ascii_upcase")
		require.NoError(t, err)

		out, _, err := jq.Apply(ctx, "hello", "", "")
		require.NoError(t, err)
		assert.Equal(t, "HELLO", out)
	})

	t.Run("structs are converted", func(t *testing.T) {
		jq, err := CompileJQ(".requestStatus.code")
		require.NoError(t, err)

		out, _, err := jq.Apply(ctx, protocol.RequestResponse{
			RequestType:   "GetVersion",
			RequestStatus: protocol.RequestStatus{Result: true, Code: 100},
		}, "", "")
		require.NoError(t, err)
		assert.Equal(t, float64(100), out)
	})
}

func TestApplyEvent(t *testing.T) {
	jq, err := CompileJQ("{scene: .sceneName, topic: $topic, type: $type}")
	require.NoError(t, err)

	out, ok, err := jq.ApplyEvent(context.Background(), &protocol.Event{
		EventType:   "CurrentProgramSceneChanged",
		EventIntent: protocol.SubscriptionScenes,
		EventData:   protocol.Document{"sceneName": "Live"},
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]any{
		"scene": "Live",
		"topic": "scenes/CurrentProgramSceneChanged",
		"type":  "CurrentProgramSceneChanged",
	}, out)
}

func TestApplyResponse(t *testing.T) {
	jq, err := CompileJQ(`"\($type): \(.obsVersion)"`)
	require.NoError(t, err)

	out, ok, err := jq.ApplyResponse(context.Background(), &protocol.RequestResponse{
		RequestType:  "GetVersion",
		ResponseData: protocol.Document{"obsVersion": "30.1.2"},
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "GetVersion: 30.1.2", out)
}
