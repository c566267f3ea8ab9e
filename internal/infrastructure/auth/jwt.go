package auth

import (
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/infrastructure/config"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingUserID    = errors.New("missing user_id in claims")
)

const (
	RoleOperator = "operator" // trigger syncs, manage mappings
	RoleViewer   = "viewer"   // read sync logs
)

// Claims of a WMS operator token. The WMS session service signs them; this
// service only checks them.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string   `json:"user_id"`
	ClientID string   `json:"client_id,omitempty"` // empty for staff spanning all clients
	Roles    []string `json:"roles,omitempty"`
}

func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// ClientUUID returns the client scope, or uuid.Nil for unscoped tokens
func (c *Claims) ClientUUID() (uuid.UUID, error) {
	if c.ClientID == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(c.ClientID)
}

// JWTService checks HS256 operator tokens against the shared secret and,
// when configured, the issuer.
type JWTService struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

func NewJWTService(cfg config.JWTConfig) *JWTService {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &JWTService{secret: []byte(cfg.Secret), issuer: cfg.Issuer, parser: jwt.NewParser(opts...)}
}

// IssueInput describes a token to sign. A zero ClientID issues a staff token.
type IssueInput struct {
	UserID   uuid.UUID
	ClientID uuid.UUID
	Roles    []string
	TTL      time.Duration
}

// Issue signs a token the way the WMS does. Production tokens never come
// from here.
func (s *JWTService) Issue(in IssueInput) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   in.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(in.TTL)),
		},
		UserID: in.UserID.String(),
		Roles:  in.Roles,
	}
	if in.ClientID != uuid.Nil {
		claims.ClientID = in.ClientID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *JWTService) key(*jwt.Token) (any, error) { return s.secret, nil }

// Validate returns the claims of a well-formed, signed, current token
func (s *JWTService) Validate(raw string) (*Claims, error) {
	claims := new(Claims)
	token, err := s.parser.ParseWithClaims(raw, claims, s.key)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return nil, ErrTokenNotYetValid
	case err != nil:
		return nil, ErrInvalidToken
	case !token.Valid:
		return nil, ErrInvalidClaims
	}

	if claims.UserID == "" {
		return nil, ErrMissingUserID
	}
	if _, err := claims.ClientUUID(); err != nil {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}
