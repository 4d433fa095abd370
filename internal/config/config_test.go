package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	assert := assert.New(t)
	t.Setenv("PORT", "8080")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(8080, c.Port)
	assert.Equal(":8080", c.Addr())
	assert.Equal("info", c.LogLevel)
	assert.Equal(StoreMemory, c.StoreBackend)
	assert.Equal(LockLocal, c.LockBackend)
	assert.Equal("cardroom:", c.RedisPrefix)
	assert.Equal(24*time.Hour, c.RoomTTL)
	assert.Equal(5*time.Second, c.LockLease)
	assert.Equal(3*time.Second, c.LockWait)
	assert.Equal("reject", c.DuplicateNamePolicy)
	assert.Equal(10, c.RateLimit)
	assert.Equal(time.Second, c.RateWindow)
	assert.Equal(2*time.Minute, c.IdleTimeout)
	assert.False(c.UsesRedis())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("LOCK_LEASE", "2s")
	t.Setenv("DUPLICATE_NAME_POLICY", "evict")
	t.Setenv("LOG_FORMAT", "json")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", c.Addr())
	assert.Equal(t, "redis:6379", c.RedisAddr)
	assert.Equal(t, 2*time.Second, c.LockLease)
	assert.Equal(t, "evict", c.DuplicateNamePolicy)
	assert.True(t, c.UsesRedis())

	_, isJSON := c.NewLogger().Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad store", map[string]string{"STORE_BACKEND": "mongo"}, "STORE_BACKEND"},
		{"postgres without url", map[string]string{"STORE_BACKEND": "postgres", "DATABASE_URL": ""}, "DATABASE_URL"},
		{"bad lock", map[string]string{"LOCK_BACKEND": "zookeeper"}, "LOCK_BACKEND"},
		{"bad policy", map[string]string{"DUPLICATE_NAME_POLICY": "kick"}, "DUPLICATE_NAME_POLICY"},
		{"bad level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"bad format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
		{"bad port", map[string]string{"PORT": "70000"}, "PORT"},
		{"zero rate", map[string]string{"RATE_LIMIT": "0"}, "RATE_LIMIT"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestNewLogger_Level(t *testing.T) {
	c := Config{LogLevel: "debug", LogFormat: "text"}
	log := c.NewLogger()
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
}
