package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosuke-kagatsume/construction-todo-system/internal/config"
)

func newAuthServiceForTest(secret string, expiry time.Duration) AuthService {
	return NewAuthService(&config.Config{JWTSecret: secret, JWTExpiry: expiry})
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newAuthServiceForTest("test-secret", time.Hour)
	userID := uuid.New()
	tenantID := uuid.New()

	token, err := svc.GenerateToken(userID, tenantID, "foreman@example.co.jp", false)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, tenantID, claims.TenantID)
	assert.Equal(t, "foreman@example.co.jp", claims.Email)
	assert.False(t, claims.IsSuperuser)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := newAuthServiceForTest("secret-a", time.Hour)
	verifier := newAuthServiceForTest("secret-b", time.Hour)

	token, err := issuer.GenerateToken(uuid.New(), uuid.New(), "", false)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := newAuthServiceForTest("test-secret", -time.Minute)

	token, err := svc.GenerateToken(uuid.New(), uuid.New(), "", false)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthServiceForTest("test-secret", time.Hour)

	_, err := svc.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRequiresIdentity(t *testing.T) {
	svc := newAuthServiceForTest("test-secret", time.Hour)

	// a token without user or tenant id is useless to the API
	token, err := svc.GenerateToken(uuid.Nil, uuid.Nil, "", false)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
