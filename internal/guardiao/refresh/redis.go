package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "guardiao:refresh:"

// RedisRegistry stores one key per token with a TTL equal to its remaining
// lifetime, plus a set per user for bulk revocation.
type RedisRegistry struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRegistry(client redis.UniversalClient) *RedisRegistry {
	return &RedisRegistry{client: client, prefix: defaultRedisPrefix}
}

func (r *RedisRegistry) tokenKey(hash string) string { return r.prefix + "t:" + hash }
func (r *RedisRegistry) userKey(userID string) string { return r.prefix + "u:" + userID }

func (r *RedisRegistry) Save(ctx context.Context, hash, userID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.tokenKey(hash), userID, ttl)
	pipe.SAdd(ctx, r.userKey(userID), hash)
	pipe.ExpireGT(ctx, r.userKey(userID), ttl)
	pipe.ExpireNX(ctx, r.userKey(userID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("persist refresh token: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Consume(ctx context.Context, hash string, _ time.Time) (string, error) {
	userID, err := r.client.GetDel(ctx, r.tokenKey(hash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrUnknownToken
		}
		return "", fmt.Errorf("consume refresh token: %w", err)
	}
	if err := r.client.SRem(ctx, r.userKey(userID), hash).Err(); err != nil {
		return "", fmt.Errorf("untrack refresh token: %w", err)
	}
	return userID, nil
}

func (r *RedisRegistry) Revoke(ctx context.Context, hash string) error {
	userID, err := r.client.GetDel(ctx, r.tokenKey(hash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return r.client.SRem(ctx, r.userKey(userID), hash).Err()
}

func (r *RedisRegistry) RevokeUser(ctx context.Context, userID string) error {
	hashes, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("list user refresh tokens: %w", err)
	}

	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, r.tokenKey(h))
	}
	keys = append(keys, r.userKey(userID))

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// Sweep is a no-op: redis expires token keys on its own.
func (r *RedisRegistry) Sweep(context.Context, time.Time) (int64, error) {
	return 0, nil
}
