package auth

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRevocationPrefix is the key namespace the WMS session service
// writes revocations under
const DefaultRevocationPrefix = "wms:session:revoked:"

// RevocationChecker reports tokens revoked before they expire. The WMS
// session service owns revocation; this service only reads it.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, claims *Claims) (bool, error)
}

// RedisRevocations reads revocations from the Redis shared with the WMS.
//
// Two kinds of key are consulted:
//
//	<prefix>jti:<token id>   any value; the single token is revoked
//	<prefix>user:<user id>   unix seconds; tokens issued at or before it are revoked
type RedisRevocations struct {
	client *redis.Client
	prefix string
}

// NewRedisRevocations creates a checker over client. An empty prefix
// selects DefaultRevocationPrefix.
func NewRedisRevocations(client *redis.Client, prefix string) *RedisRevocations {
	if prefix == "" {
		prefix = DefaultRevocationPrefix
	}
	return &RedisRevocations{client: client, prefix: prefix}
}

// TokenKey returns the key revoking one token
func (r *RedisRevocations) TokenKey(jti string) string {
	return r.prefix + "jti:" + jti
}

// UserKey returns the key holding a user's revocation cutoff
func (r *RedisRevocations) UserKey(userID string) string {
	return r.prefix + "user:" + userID
}

// IsRevoked checks both keys in one round trip
func (r *RedisRevocations) IsRevoked(ctx context.Context, claims *Claims) (bool, error) {
	values, err := r.client.MGet(ctx, r.TokenKey(claims.ID), r.UserKey(claims.UserID)).Result()
	if err != nil {
		return false, fmt.Errorf("read token revocations: %w", err)
	}
	if claims.ID != "" && values[0] != nil {
		return true, nil
	}
	if values[1] == nil || claims.IssuedAt == nil {
		return false, nil
	}
	raw, _ := values[1].(string)
	cutoff, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse revocation cutoff for user %s: %w", claims.UserID, err)
	}
	return claims.IssuedAt.Unix() <= cutoff, nil
}

// MemoryRevocations keeps revocations in process. It serves tests and
// deployments without Redis, where nothing can revoke a token early.
type MemoryRevocations struct {
	mu      sync.RWMutex
	tokens  map[string]struct{}
	cutoffs map[string]time.Time
}

// NewMemoryRevocations creates an empty revocation list
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{
		tokens:  make(map[string]struct{}),
		cutoffs: make(map[string]time.Time),
	}
}

// RevokeToken revokes the token with id jti
func (m *MemoryRevocations) RevokeToken(jti string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[jti] = struct{}{}
}

// RevokeUser revokes every token of userID issued at or before cutoff
func (m *MemoryRevocations) RevokeUser(userID string, cutoff time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs[userID] = cutoff
}

// IsRevoked implements RevocationChecker
func (m *MemoryRevocations) IsRevoked(_ context.Context, claims *Claims) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.tokens[claims.ID]; ok && claims.ID != "" {
		return true, nil
	}
	cutoff, ok := m.cutoffs[claims.UserID]
	if !ok || claims.IssuedAt == nil {
		return false, nil
	}
	return !claims.IssuedAt.After(cutoff), nil
}

var (
	_ RevocationChecker = (*RedisRevocations)(nil)
	_ RevocationChecker = (*MemoryRevocations)(nil)
)
