package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	obserrors "github.com/tsarna/obsws/pkg/obsws/errors"
)

func TestParse(t *testing.T) {
	t.Run("password from first path segment", func(t *testing.T) {
		ep, err := Parse("obsws://127.0.0.1:4455/secret")
		require.NoError(t, err)
		assert.Equal(t, "obsws", ep.Scheme)
		assert.Equal(t, "127.0.0.1", ep.Host)
		assert.Equal(t, 4455, ep.Port)
		assert.Equal(t, "secret", ep.Password)
		assert.Equal(t, "", ep.ResourcePath)
		assert.Equal(t, "ws://127.0.0.1:4455/", ep.WebSocketURL())
	})

	t.Run("remaining segments are the resource path", func(t *testing.T) {
		ep, err := Parse("obsws://studio.local:9000/pw/api/v5")
		require.NoError(t, err)
		assert.Equal(t, "pw", ep.Password)
		assert.Equal(t, "api/v5", ep.ResourcePath)
		assert.Equal(t, "ws://studio.local:9000/api/v5", ep.WebSocketURL())
	})

	t.Run("scheme is case-insensitive", func(t *testing.T) {
		ep, err := Parse("OBSWS://localhost/pw")
		require.NoError(t, err)
		assert.Equal(t, "obsws", ep.Scheme)
	})

	t.Run("default port", func(t *testing.T) {
		ep, err := Parse("obsws://localhost")
		require.NoError(t, err)
		assert.Equal(t, DefaultPort, ep.Port)
		assert.False(t, ep.HasPassword())
	})

	t.Run("percent-encoded password", func(t *testing.T) {
		ep, err := Parse("obsws://localhost:4455/p%2Fw%20d")
		require.NoError(t, err)
		assert.Equal(t, "p/w d", ep.Password)
	})

	t.Run("userinfo password when path is empty", func(t *testing.T) {
		ep, err := Parse("obsws://:hunter2@localhost:4455")
		require.NoError(t, err)
		assert.Equal(t, "hunter2", ep.Password)

		ep, err = Parse("obsws://hunter3@localhost:4455")
		require.NoError(t, err)
		assert.Equal(t, "hunter3", ep.Password)
	})

	t.Run("path password wins over userinfo", func(t *testing.T) {
		ep, err := Parse("obsws://:ignored@localhost:4455/used")
		require.NoError(t, err)
		assert.Equal(t, "used", ep.Password)
	})

	t.Run("query is kept on the websocket url", func(t *testing.T) {
		ep, err := Parse("obsws://localhost:4455/pw?x=1")
		require.NoError(t, err)
		assert.Equal(t, "ws://localhost:4455/?x=1", ep.WebSocketURL())
	})

	t.Run("ipv6 host", func(t *testing.T) {
		ep, err := Parse("obsws://[::1]:4455/pw")
		require.NoError(t, err)
		assert.Equal(t, "::1", ep.Host)
		assert.Equal(t, "ws://[::1]:4455/", ep.WebSocketURL())
	})

	for _, uri := range []string{
		"http://localhost:4455/pw",
		"ws://localhost:4455/pw",
		"obsws:///pw",
		"obsws://localhost:0/pw",
		"obsws://localhost:70000/pw",
		"://broken",
	} {
		t.Run("rejects "+uri, func(t *testing.T) {
			_, err := Parse(uri)
			assert.ErrorIs(t, err, obserrors.ErrInvalidURI)
		})
	}
}

func TestString(t *testing.T) {
	ep, err := Parse("obsws://localhost:4455/secret/api")
	require.NoError(t, err)
	assert.Equal(t, "obsws://localhost:4455/***/api", ep.String())
	assert.NotContains(t, ep.String(), "secret")

	ep, err = Parse("obsws://localhost")
	require.NoError(t, err)
	assert.Equal(t, "obsws://localhost:4455", ep.String())
}
