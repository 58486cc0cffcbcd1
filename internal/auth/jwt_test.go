package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqicast/aqicast/internal/auth"
)

func newService(key string) *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{SigningKey: key})
}

func TestJWTService_IssueAndValidate(t *testing.T) {
	svc := newService("test-secret-key-for-testing-only")

	token, expiresAt, err := svc.Issue("oncall@aqicast", time.Hour, auth.ScopeOps)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "oncall@aqicast", claims.Subject)
	assert.Equal(t, auth.DefaultIssuer, claims.Issuer)
	assert.True(t, claims.HasScope(auth.ScopeOps))
	assert.NotEmpty(t, claims.ID)
}

func TestJWTService_DefaultTTL(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	svc := auth.NewJWTService(auth.JWTConfig{SigningKey: "k", Now: func() time.Time { return now }})

	_, expiresAt, err := svc.Issue("ops", 0)
	require.NoError(t, err)
	assert.Equal(t, now.Add(auth.DefaultTokenTTL), expiresAt)
}

func TestJWTService_Expired(t *testing.T) {
	issued := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	clock := issued
	svc := auth.NewJWTService(auth.JWTConfig{SigningKey: "k", Now: func() time.Time { return clock }})

	token, _, err := svc.Issue("ops", time.Hour, auth.ScopeOps)
	require.NoError(t, err)

	clock = issued.Add(2 * time.Hour)
	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := newService("test-secret-key-for-testing-only")

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Validate(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestJWTService_WrongSigningKey(t *testing.T) {
	token, _, err := newService("key-one").Issue("ops", time.Hour, auth.ScopeOps)
	require.NoError(t, err)

	_, err = newService("key-two").Validate(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWTService_WrongIssuerOrAudience(t *testing.T) {
	token, _, err := newService("k").Issue("ops", time.Hour, auth.ScopeOps)
	require.NoError(t, err)

	otherIssuer := auth.NewJWTService(auth.JWTConfig{SigningKey: "k", Issuer: "someone-else"})
	_, err = otherIssuer.Validate(token)
	assert.Error(t, err)

	otherAudience := auth.NewJWTService(auth.JWTConfig{SigningKey: "k", Audience: "public"})
	_, err = otherAudience.Validate(token)
	assert.Error(t, err)
}

func TestJWTService_Authorize(t *testing.T) {
	svc := newService("k")

	withScope, _, err := svc.Issue("ops", time.Hour, auth.ScopeOps)
	require.NoError(t, err)
	withoutScope, _, err := svc.Issue("ops", time.Hour)
	require.NoError(t, err)

	_, err = svc.Authorize(withScope, auth.ScopeOps)
	assert.NoError(t, err)

	_, err = svc.Authorize(withoutScope, auth.ScopeOps)
	assert.ErrorIs(t, err, auth.ErrMissingScope)
}

func TestJWTService_NoSigningKey(t *testing.T) {
	svc := newService("")

	_, _, err := svc.Issue("ops", time.Hour)
	assert.ErrorIs(t, err, auth.ErrNoSigningKey)

	_, err = svc.Validate("a.b.c")
	assert.ErrorIs(t, err, auth.ErrNoSigningKey)
}

func TestJWTService_EmptySubject(t *testing.T) {
	_, _, err := newService("k").Issue("", time.Hour)
	assert.ErrorIs(t, err, auth.ErrInvalidSubject)
}
