package repositories

import (
	"context"
	"testing"

	"dealerhub/internal/infrastructure/repositories/memory"
	"dealerhub/pkg/config"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestRepositoryFactory_MemoryByDefault(t *testing.T) {
	factory := NewRepositoryFactory(context.Background(), config.DefaultConfig(), zaptest.NewLogger(t).Sugar())
	defer factory.Close()

	assert.False(t, factory.UsesRedis())
	assert.Nil(t, factory.RedisClient())
	assert.IsType(t, &memory.MemorySessionRepository{}, factory.CreateSessionRepository())
	assert.IsType(t, &memory.MemoryRevocationRepository{}, factory.CreateRevocationRepository())
	assert.NoError(t, factory.HealthCheck(context.Background()))
}

func TestRepositoryFactory_FallsBackWhenRedisUnreachable(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Address = "127.0.0.1:1"

	factory := NewRepositoryFactory(context.Background(), cfg, zaptest.NewLogger(t).Sugar())
	defer factory.Close()

	assert.False(t, factory.UsesRedis())
	assert.IsType(t, &memory.MemorySessionRepository{}, factory.CreateSessionRepository())
}
