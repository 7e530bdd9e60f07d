package distributed

import (
	"context"
	"errors"
	"time"

	"dealerhub/internal/core/ports"
	"dealerhub/pkg/distributed"
	"dealerhub/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LoginGate keeps a single login per username in flight across all
// instances sharing one Redis.
type LoginGate struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	logger *zap.SugaredLogger
}

var _ ports.LoginGate = (*LoginGate)(nil)

// NewLoginGate holds each lock at most ttl, which should exceed the
// backend login timeout.
func NewLoginGate(client redis.Cmdable, ttl time.Duration, logger *zap.SugaredLogger) *LoginGate {
	return &LoginGate{
		client: client,
		prefix: "dealerhub:lock:login:",
		ttl:    ttl,
		logger: logger,
	}
}

func (g *LoginGate) TryAcquire(ctx context.Context, username string) (func(), bool, error) {
	lock := distributed.NewLock(g.client, g.prefix+utils.NormalizeUsername(username), g.ttl)

	acquired, err := lock.TryLock(ctx)
	if err != nil || !acquired {
		return nil, false, err
	}

	release := func() {
		// The login request may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := lock.Unlock(ctx); err != nil && !errors.Is(err, distributed.ErrNotHeld) {
			g.logger.Warnw("failed to release login lock", "key", lock.Key(), "error", err)
		}
	}
	return release, true, nil
}
