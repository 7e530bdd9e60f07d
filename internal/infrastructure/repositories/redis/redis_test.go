package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"dealerhub/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSessionRecord_KeepsUpstreamToken(t *testing.T) {
	issued := time.Now().UTC().Truncate(time.Second)
	session := domain.NewSession("s-1", domain.Identity{
		UserID:        "u-1",
		Username:      "staff",
		Role:          domain.RoleDealerStaff,
		DealerID:      "d-1",
		UpstreamToken: "backend-token",
	}, issued, time.Hour)

	restored := toRecord(session).toSession()
	assert.Equal(t, session.ID, restored.ID)
	assert.Equal(t, session.Role, restored.Role)
	assert.Equal(t, "backend-token", restored.UpstreamToken)
	assert.True(t, session.ExpiresAt.Equal(restored.ExpiresAt))
	assert.Equal(t, session.Permissions.Sorted(), restored.Permissions.Sorted())
}

// The remaining tests need a live server, e.g.
// DEALERHUB_TEST_REDIS=localhost:6379 go test ./...
func testOptions(t *testing.T) *Options {
	t.Helper()
	addr := os.Getenv("DEALERHUB_TEST_REDIS")
	if addr == "" {
		t.Skip("DEALERHUB_TEST_REDIS not set")
	}
	return &Options{Address: addr, DB: 15, PoolSize: 2}
}

func TestRedisRepositories(t *testing.T) {
	opts := testOptions(t)
	ctx := context.Background()

	client, err := NewRedisClient(ctx, *opts, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer CloseRedisClient(client)

	sessions := NewRedisSessionRepository(client)
	revocations := NewRedisRevocationRepository(client)

	id := domain.SessionID(uuid.NewString())
	session := domain.NewSession(id, domain.Identity{
		UserID:   "u-1",
		Username: "customer",
		Role:     domain.RoleCustomer,
	}, time.Now(), time.Minute)

	require.NoError(t, sessions.Save(ctx, session))
	got, err := sessions.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCustomer, got.Role)

	count, err := sessions.CountActive(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 1)

	require.NoError(t, sessions.Delete(ctx, id))
	_, err = sessions.GetByID(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, sessions.Delete(ctx, id), domain.ErrSessionNotFound)

	require.NoError(t, revocations.Revoke(ctx, string(id), time.Now().Add(time.Minute)))
	revoked, err := revocations.IsRevoked(ctx, string(id))
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = revocations.IsRevoked(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisSessionRepository_RejectsExpired(t *testing.T) {
	opts := testOptions(t)
	ctx := context.Background()

	client, err := NewRedisClient(ctx, *opts, nil)
	require.NoError(t, err)
	defer CloseRedisClient(client)

	session := domain.NewSession(domain.SessionID(uuid.NewString()), domain.Identity{
		UserID: "u-1",
		Role:   domain.RoleAdmin,
	}, time.Now().Add(-2*time.Hour), time.Hour)

	assert.ErrorIs(t, NewRedisSessionRepository(client).Save(ctx, session), domain.ErrSessionExpired)
}
