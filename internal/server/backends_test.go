package server

import (
	"context"
	"testing"

	"cardroom-server/internal/config"
	"cardroom-server/internal/registry"
	"cardroom-server/internal/room"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackends_Memory(t *testing.T) {
	log, _ := test.NewNullLogger()
	b, err := OpenBackends(context.Background(), testConfig(), log)
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &room.MemoryStore{}, b.Store)
	assert.IsType(t, &registry.LocalLocker{}, b.Locker)
	assert.Nil(t, b.Redis)

	health := b.Health(context.Background())
	assert.Equal(t, "up", health["store"]["status"])
	assert.NotContains(t, health, "redis")
}

func TestOpenBackends_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	log, _ := test.NewNullLogger()

	cfg := testConfig()
	cfg.StoreBackend = config.StoreRedis
	cfg.LockBackend = config.LockRedis
	cfg.RedisAddr = mr.Addr()
	cfg.RedisPrefix = "test:"

	b, err := OpenBackends(context.Background(), cfg, log)
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &room.RedisStore{}, b.Store)
	assert.IsType(t, &registry.RedisLocker{}, b.Locker)

	health := b.Health(context.Background())
	assert.Equal(t, "up", health["redis"]["status"])
	assert.Equal(t, "redis", health["store"]["backend"])

	mr.Close()
	health = b.Health(context.Background())
	assert.Equal(t, "down", health["redis"]["status"])
	assert.Equal(t, "down", health["store"]["status"])
}

func TestOpenBackends_Errors(t *testing.T) {
	log, _ := test.NewNullLogger()

	cfg := testConfig()
	cfg.StoreBackend = "sqlite"
	_, err := OpenBackends(context.Background(), cfg, log)
	assert.ErrorContains(t, err, "unknown store backend")

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg = testConfig()
	cfg.StoreBackend = config.StoreRedis
	cfg.RedisAddr = addr
	_, err = OpenBackends(context.Background(), cfg, log)
	assert.ErrorContains(t, err, "redis ping error")
}
