// internal/pkg/jwt/jwt_test.go
package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	return NewManagerFromKeys(priv, &priv.PublicKey, Config{
		Issuer:   "stocksense",
		Audience: "stocksense-dashboard",
		TTL:      ttl,
		KID:      "test-key",
	})
}

func TestGenerateAndVerifyAccessToken(t *testing.T) {
	m := newTestManager(t, time.Hour)

	token, jti, err := m.Generator.GenerateAccessToken(42, "investor@example.com", "investor")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NotEmpty(t, jti)

	claims, err := m.Verifier.VerifyAccessToken(token)
	require.NoError(t, err)

	assert.Equal(t, int64(42), claims.IdentityID)
	assert.Equal(t, "investor@example.com", claims.Email)
	assert.Equal(t, "investor", claims.Role)
	assert.Equal(t, jti, claims.ID)
	assert.False(t, claims.IsAdmin())
}

func TestAdminRoleClaim(t *testing.T) {
	m := newTestManager(t, time.Hour)

	token, _, err := m.Generator.GenerateAccessToken(7, "admin@example.com", "admin")
	require.NoError(t, err)

	claims, err := m.Verifier.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
}

func TestRefreshTokenRejectedAsAccessToken(t *testing.T) {
	m := newTestManager(t, time.Hour)

	token, _, err := m.Generator.GenerateRefreshToken(42)
	require.NoError(t, err)

	_, err = m.Verifier.VerifyAccessToken(token)
	assert.Error(t, err)

	claims, err := m.Verifier.VerifyRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.IdentityID)
	assert.Empty(t, claims.Role)
}

func TestExpiredTokenRejected(t *testing.T) {
	m := newTestManager(t, -time.Minute)

	token, _, err := m.Generator.GenerateAccessToken(42, "investor@example.com", "investor")
	require.NoError(t, err)

	_, err = m.Verifier.VerifyAccessToken(token)
	assert.Error(t, err)
}

func TestWrongIssuerRejected(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	gen := NewGenerator(priv, "someone-else", "stocksense-dashboard", "", time.Hour)
	ver := NewVerifier(&priv.PublicKey, "stocksense", "stocksense-dashboard")

	token, _, err := gen.GenerateAccessToken(1, "a@b.c", "investor")
	require.NoError(t, err)

	_, err = ver.Verify(token)
	assert.Error(t, err)
}
