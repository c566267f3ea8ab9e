package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/infrastructure/auth"
	"github.com/wms/shopsync/internal/infrastructure/logger"
	"github.com/wms/shopsync/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

const (
	claimsKey = "jwt_claims"
	userIDKey = "user_id"
)

type authenticator struct {
	tokens      *auth.JWTService
	revocations auth.RevocationChecker
	logger      *zap.Logger
}

type AuthOption func(*authenticator)

// WithRevocations rejects tokens the checker reports as revoked
func WithRevocations(r auth.RevocationChecker) AuthOption {
	return func(a *authenticator) { a.revocations = r }
}

func WithAuthLogger(l *zap.Logger) AuthOption {
	return func(a *authenticator) { a.logger = l }
}

// Authenticate requires a valid "Authorization: Bearer" token and stores
// its claims on the request. Failures answer 401 with TOKEN_EXPIRED or
// TOKEN_INVALID.
func Authenticate(tokens *auth.JWTService, opts ...AuthOption) gin.HandlerFunc {
	a := &authenticator{tokens: tokens, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a.handle
}

func (a *authenticator) handle(c *gin.Context) {
	raw, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		a.reject(c, auth.ErrInvalidToken, "missing bearer token")
		return
	}
	claims, err := a.tokens.Validate(raw)
	if err != nil {
		a.reject(c, err, "token validation failed")
		return
	}
	if a.revocations != nil {
		// fail open on a store outage; the signature is already verified
		revoked, err := a.revocations.IsRevoked(c.Request.Context(), claims)
		switch {
		case err != nil:
			a.logger.Error("Failed to check token revocation", zap.String("user_id", claims.UserID), zap.Error(err))
		case revoked:
			a.reject(c, auth.ErrInvalidToken, "token revoked")
			return
		}
	}
	SetPrincipal(c, claims)
	c.Next()
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func (a *authenticator) reject(c *gin.Context, err error, reason string) {
	a.logger.Warn("JWT authentication failed",
		zap.String("reason", reason),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	code, message := dto.ErrCodeTokenInvalid, "Invalid token"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		message = "Token is not yet valid"
	}
	abort(c, http.StatusUnauthorized, code, message)
}

// SetPrincipal attaches authenticated claims to the request and its logger
// context
func SetPrincipal(c *gin.Context, claims *auth.Claims) {
	c.Set(claimsKey, claims)
	c.Set(userIDKey, claims.UserID)
	c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), claims.UserID))
}

// RequireRole lets through callers holding any of roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			abort(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
			return
		}
		if !slices.ContainsFunc(roles, claims.HasRole) {
			abort(c, http.StatusForbidden, dto.ErrCodeForbidden, "Insufficient role")
			return
		}
		c.Next()
	}
}

func GetJWTClaims(c *gin.Context) *auth.Claims {
	v, _ := c.Get(claimsKey)
	claims, _ := v.(*auth.Claims)
	return claims
}

func GetJWTUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// ClientScope returns the client the caller is limited to. ok is false for
// staff tokens that span every client.
func ClientScope(c *gin.Context) (clientID uuid.UUID, ok bool) {
	claims := GetJWTClaims(c)
	if claims == nil {
		return uuid.Nil, false
	}
	id, err := claims.ClientUUID()
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
