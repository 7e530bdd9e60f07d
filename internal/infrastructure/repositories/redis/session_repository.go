package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"dealerhub/internal/core/domain"
	"dealerhub/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "dealerhub:"

// sessionRecord is the stored form of a session. Unlike the API form it
// keeps the upstream token.
type sessionRecord struct {
	ID            domain.SessionID `json:"id"`
	UserID        domain.UserID    `json:"user_id"`
	Username      string           `json:"username"`
	Role          domain.Role      `json:"role"`
	DealerID      string           `json:"dealer_id,omitempty"`
	IssuedAt      time.Time        `json:"issued_at"`
	ExpiresAt     time.Time        `json:"expires_at"`
	UpstreamToken string           `json:"upstream_token,omitempty"`
}

func toRecord(s *domain.Session) sessionRecord {
	return sessionRecord{
		ID:            s.ID,
		UserID:        s.UserID,
		Username:      s.Username,
		Role:          s.Role,
		DealerID:      s.DealerID,
		IssuedAt:      s.IssuedAt,
		ExpiresAt:     s.ExpiresAt,
		UpstreamToken: s.UpstreamToken,
	}
}

// toSession re-derives permissions from the role, so a changed role table
// applies to stored sessions too.
func (r sessionRecord) toSession() *domain.Session {
	identity := domain.Identity{
		UserID:        r.UserID,
		Username:      r.Username,
		Role:          r.Role,
		DealerID:      r.DealerID,
		UpstreamToken: r.UpstreamToken,
	}
	return domain.NewSession(r.ID, identity, r.IssuedAt, r.ExpiresAt.Sub(r.IssuedAt))
}

type RedisSessionRepository struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisSessionRepository(client *redis.Client) ports.SessionRepository {
	return &RedisSessionRepository{
		client: client,
		prefix: keyPrefix + "session:",
		now:    time.Now,
	}
}

func (r *RedisSessionRepository) sessionKey(id domain.SessionID) string {
	return r.prefix + string(id)
}

// activeSessionsKey is a sorted set of session ids scored by expiry.
func (r *RedisSessionRepository) activeSessionsKey() string {
	return r.prefix + "active"
}

func (r *RedisSessionRepository) Save(ctx context.Context, session *domain.Session) error {
	ttl := session.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return domain.ErrSessionExpired
	}

	data, err := json.Marshal(toRecord(session))
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(session.ID), data, ttl)
		pipe.ZAdd(ctx, r.activeSessionsKey(), redis.Z{
			Score:  float64(session.ExpiresAt.Unix()),
			Member: string(session.ID),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session in Redis: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var record sessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return record.toSession(), nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, id domain.SessionID) error {
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, r.sessionKey(id))
		pipe.ZRem(ctx, r.activeSessionsKey(), string(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session from Redis: %w", err)
	}
	if del.Val() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *RedisSessionRepository) CountActive(ctx context.Context) (int, error) {
	key := r.activeSessionsKey()
	cutoff := strconv.FormatInt(r.now().Unix(), 10)

	if err := r.client.ZRemRangeByScore(ctx, key, "-inf", cutoff).Err(); err != nil {
		return 0, fmt.Errorf("failed to prune expired sessions: %w", err)
	}
	count, err := r.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return int(count), nil
}
