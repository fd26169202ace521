/**
 * @description
 * Redis-backed implementation of the SessionRevoker used to give logout a
 * concrete effect with stateless tokens. Each revoked jti is stored under a
 * namespaced key with a TTL equal to the token's remaining lifetime, so the
 * deny-list cleans itself up. The implementation is nil-safe: an
 * unconfigured revoker simply reports nothing as revoked.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: Redis client.
 */

package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSessionRevoker implements SessionRevoker on a shared Redis instance,
// which keeps revocation consistent across horizontally scaled API processes.
type RedisSessionRevoker struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisSessionRevoker creates a revoker namespaced under prefix.
func NewRedisSessionRevoker(client redis.UniversalClient, prefix string) *RedisSessionRevoker {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "portal:revoked_sessions"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisSessionRevoker{
		client: client,
		prefix: trimmedPrefix,
	}
}

func (r *RedisSessionRevoker) key(tokenID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, tokenID)
}

// Revoke deny-lists the token id for the given remaining lifetime.
func (r *RedisSessionRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if r == nil || r.client == nil || strings.TrimSpace(tokenID) == "" {
		return nil
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return r.client.Set(ctx, r.key(tokenID), "1", ttl).Err()
}

// IsRevoked reports whether the token id is on the deny-list.
func (r *RedisSessionRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if r == nil || r.client == nil || strings.TrimSpace(tokenID) == "" {
		return false, nil
	}
	n, err := r.client.Exists(ctx, r.key(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
