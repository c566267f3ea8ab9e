package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms/shopsync/internal/infrastructure/config"
)

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret: "test-secret-key-at-least-32-chars",
		Issuer: "wms",
	})
}

func TestJWTService_IssueAndValidate(t *testing.T) {
	svc := newTestJWTService()
	userID := uuid.New()
	clientID := uuid.New()

	token, err := svc.Issue(IssueInput{UserID: userID, ClientID: clientID, Roles: []string{RoleOperator}, TTL: time.Hour})
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.True(t, claims.HasRole(RoleOperator))
	assert.False(t, claims.HasRole(RoleViewer))

	scope, err := claims.ClientUUID()
	require.NoError(t, err)
	assert.Equal(t, clientID, scope)
}

func TestJWTService_UnscopedToken(t *testing.T) {
	svc := newTestJWTService()
	token, err := svc.Issue(IssueInput{UserID: uuid.New(), Roles: []string{RoleViewer}, TTL: time.Hour})
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	scope, err := claims.ClientUUID()
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, scope)
}

func TestJWTService_Validate_Errors(t *testing.T) {
	svc := newTestJWTService()

	t.Run("expired", func(t *testing.T) {
		token, err := svc.Issue(IssueInput{UserID: uuid.New(), TTL: -time.Minute})
		require.NoError(t, err)
		_, err = svc.Validate(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{Secret: "another-secret-key-at-least-32-chars", Issuer: "wms"})
		token, err := other.Issue(IssueInput{UserID: uuid.New(), TTL: time.Hour})
		require.NoError(t, err)
		_, err = svc.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{Secret: "test-secret-key-at-least-32-chars", Issuer: "elsewhere"})
		token, err := other.Issue(IssueInput{UserID: uuid.New(), TTL: time.Hour})
		require.NoError(t, err)
		_, err = svc.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Validate("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm rejected", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: uuid.New().String()})
		s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.Validate(s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing user id", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "wms",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		s, err := token.SignedString([]byte("test-secret-key-at-least-32-chars"))
		require.NoError(t, err)
		_, err = svc.Validate(s)
		assert.ErrorIs(t, err, ErrMissingUserID)
	})

	t.Run("malformed client scope", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "wms",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			UserID:   uuid.New().String(),
			ClientID: "acme",
		})
		s, err := token.SignedString([]byte("test-secret-key-at-least-32-chars"))
		require.NoError(t, err)
		_, err = svc.Validate(s)
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})
}
