package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/weave/pkg/adapters/redis"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err, "Failed to start miniredis")
	t.Cleanup(mr.Close)
	return mr, backend.NewClient(&backend.Options{Addr: mr.Addr()})
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := setup(t)
	ports.RunInstanceStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_IdleTTL(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client, redis.WithIdleTTL(time.Second))
	ctx := context.Background()

	running := &domain.Snapshot{ID: "running", Status: domain.StatusRunning, Active: []string{"wait"}}
	idle := &domain.Snapshot{ID: "idle", Status: domain.StatusIdle}
	require.NoError(t, store.Save(ctx, running))
	require.NoError(t, store.Save(ctx, idle))

	mr.FastForward(2 * time.Second)

	_, err := store.Load(ctx, "idle")
	assert.ErrorIs(t, err, domain.ErrInstanceNotFound, "idle snapshots expire")

	loaded, err := store.Load(ctx, "running")
	require.NoError(t, err, "running snapshots never expire")
	assert.Equal(t, []string{"wait"}, loaded.Active)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.Snapshot{ID: "my-instance", Procedure: "blink"}))

	assert.True(t, mr.Exists("custom:app:my-instance"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, list, "my-instance")
}
