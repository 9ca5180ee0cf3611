package sipgateway

import (
	"testing"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSigner_RoundTrip(t *testing.T) {
	s, err := NewTokenSigner("APIkey", "secret-secret-secret")
	require.NoError(t, err)

	before := time.Now().Add(-time.Second)
	tok, err := s.MintWorkerToken("worker-a1", WorkerTokenTTL, map[string]any{
		"agentId":      "a1",
		"businessName": "Acme Plumbing",
	})
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	claims, md, err := s.ParseWorkerToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "worker-a1", claims.Subject)
	assert.Equal(t, "APIkey", claims.Issuer)
	assert.WithinDuration(t, before.Add(WorkerTokenTTL), claims.ExpiresAt.Time, 5*time.Second)
	require.NotNil(t, claims.Video)
	assert.True(t, claims.Video.RoomJoin)
	assert.True(t, claims.Video.Agent)
	require.NotNil(t, claims.Video.CanPublish)
	assert.True(t, *claims.Video.CanPublish)
	require.NotNil(t, claims.Video.CanSubscribe)
	assert.True(t, *claims.Video.CanSubscribe)
	assert.Equal(t, "a1", md["agentId"])
	assert.Equal(t, "Acme Plumbing", md["businessName"])
}

func TestTokenSigner_GatewayVerifierAcceptsToken(t *testing.T) {
	s, err := NewTokenSigner("APIkey", "secret-secret-secret")
	require.NoError(t, err)

	tok, err := s.MintWorkerToken("worker-a1", time.Hour, map[string]any{"agentId": "a1"})
	require.NoError(t, err)

	v, err := auth.ParseAPIToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "APIkey", v.APIKey())
	assert.Equal(t, "worker-a1", v.Identity())

	grants, err := v.Verify("secret-secret-secret")
	require.NoError(t, err)
	require.NotNil(t, grants.Video)
	assert.True(t, grants.Video.Agent)
	assert.JSONEq(t, `{"agentId":"a1"}`, grants.Metadata)
}

func TestTokenSigner_RejectsForeignSecret(t *testing.T) {
	a, err := NewTokenSigner("APIkey", "secret-a")
	require.NoError(t, err)
	b, err := NewTokenSigner("APIkey", "secret-b")
	require.NoError(t, err)

	tok, err := a.MintWorkerToken("worker-a1", time.Hour, nil)
	require.NoError(t, err)

	_, _, err = b.ParseWorkerToken(tok)
	require.Error(t, err)
}

func TestTokenSigner_RejectsExpired(t *testing.T) {
	s, err := NewTokenSigner("APIkey", "secret")
	require.NoError(t, err)

	tok, err := s.MintWorkerToken("worker-a1", time.Hour, nil)
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, _, err = s.ParseWorkerToken(tok)
	require.Error(t, err)
}

func TestTokenSigner_ValidatesInput(t *testing.T) {
	_, err := NewTokenSigner("", "secret")
	require.Error(t, err)

	s, err := NewTokenSigner("APIkey", "secret")
	require.NoError(t, err)

	_, err = s.MintWorkerToken("", time.Hour, nil)
	assert.Equal(t, KindInvalid, KindOf(err))

	_, err = s.MintWorkerToken("worker-a1", 0, nil)
	assert.Equal(t, KindInvalid, KindOf(err))
}
