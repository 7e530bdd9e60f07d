package redis

import (
	"context"
	"fmt"
	"time"

	"dealerhub/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisRevocationRepository keeps one key per revoked token that expires
// together with the token.
type RedisRevocationRepository struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisRevocationRepository(client *redis.Client) ports.RevocationRepository {
	return &RedisRevocationRepository{
		client: client,
		prefix: keyPrefix + "revoked:",
		now:    time.Now,
	}
}

func (r *RedisRevocationRepository) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.prefix+tokenID, until.Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token in Redis: %w", err)
	}
	return nil
}

func (r *RedisRevocationRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation in Redis: %w", err)
	}
	return n > 0, nil
}
