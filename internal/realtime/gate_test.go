package realtime_test

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suvankar11223/chatzi-sub000/internal/realtime"
	"github.com/suvankar11223/chatzi-sub000/pkg/utils"
)

func handshake(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return *u
}

func TestGateAuthenticate(t *testing.T) {
	verifier := utils.NewJWTVerifier("test-secret", time.Hour)
	gate := realtime.NewGate(verifier)
	token, err := verifier.GenerateToken("u1", "u1@example.com", "User One")
	require.NoError(t, err)

	t.Run("query token", func(t *testing.T) {
		sess, err := gate.Authenticate("c1", handshake(t, "/socket.io/?token="+token), http.Header{})
		require.NoError(t, err)
		assert.Equal(t, "u1", sess.UserID)
		assert.Equal(t, "c1", sess.ConnID)
		assert.Equal(t, "User One", sess.Name)
	})

	t.Run("auth_token fallback", func(t *testing.T) {
		sess, err := gate.Authenticate("c2", handshake(t, "/socket.io/?auth_token="+token), http.Header{})
		require.NoError(t, err)
		assert.Equal(t, "u1", sess.UserID)
	})

	t.Run("bearer header", func(t *testing.T) {
		h := http.Header{}
		h.Set("Authorization", "Bearer "+token)
		sess, err := gate.Authenticate("c3", handshake(t, "/socket.io/"), h)
		require.NoError(t, err)
		assert.Equal(t, "u1", sess.UserID)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := gate.Authenticate("c4", handshake(t, "/socket.io/"), http.Header{})
		assert.ErrorIs(t, err, realtime.ErrMissingCredential)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := gate.Authenticate("c5", handshake(t, "/socket.io/?token=garbage"), http.Header{})
		assert.ErrorIs(t, err, realtime.ErrInvalidCredential)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := utils.NewJWTVerifier("other-secret", time.Hour).GenerateToken("u1", "", "")
		require.NoError(t, err)
		_, err = gate.Authenticate("c6", handshake(t, "/socket.io/?token="+other), http.Header{})
		assert.ErrorIs(t, err, realtime.ErrInvalidCredential)
	})
}
