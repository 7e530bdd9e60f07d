package repositories

import (
	"context"

	"dealerhub/internal/core/ports"
	"dealerhub/internal/infrastructure/repositories/memory"
	redisrepo "dealerhub/internal/infrastructure/repositories/redis"
	"dealerhub/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates session storage, Redis when reachable and
// memory otherwise.
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

func NewRepositoryFactory(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) *RepositoryFactory {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(ctx, redisrepo.Options{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, logger)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory
}

func (f *RepositoryFactory) UsesRedis() bool {
	return f.useRedis && f.redisClient != nil
}

// RedisClient is nil when running on memory repositories.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

func (f *RepositoryFactory) CreateSessionRepository() ports.SessionRepository {
	if f.UsesRedis() {
		return redisrepo.NewRedisSessionRepository(f.redisClient)
	}
	return memory.NewMemorySessionRepository()
}

func (f *RepositoryFactory) CreateRevocationRepository() ports.RevocationRepository {
	if f.UsesRedis() {
		return redisrepo.NewRedisRevocationRepository(f.redisClient)
	}
	return memory.NewMemoryRevocationRepository()
}

func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.UsesRedis() {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
