package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"

	LockLocal = "local"
	LockRedis = "redis"
)

type Config struct {
	Port      int    `env:"PORT,default=8080"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`

	StoreBackend string        `env:"STORE_BACKEND,default=memory"`
	RedisAddr    string        `env:"REDIS_ADDR,default=localhost:6379"`
	RedisDB      int           `env:"REDIS_DB,default=0"`
	RedisPrefix  string        `env:"REDIS_PREFIX,default=cardroom:"`
	RoomTTL      time.Duration `env:"ROOM_TTL,default=24h"`
	DatabaseURL  string        `env:"DATABASE_URL"`

	LockBackend string        `env:"LOCK_BACKEND,default=local"`
	LockLease   time.Duration `env:"LOCK_LEASE,default=5s"`
	LockWait    time.Duration `env:"LOCK_WAIT,default=3s"`

	DuplicateNamePolicy string `env:"DUPLICATE_NAME_POLICY,default=reject"`

	RateLimit   int           `env:"RATE_LIMIT,default=10"`
	RateWindow  time.Duration `env:"RATE_WINDOW,default=1s"`
	IdleTimeout time.Duration `env:"IDLE_TIMEOUT,default=2m"`
}

// Load reads the configuration from the environment, after any .env file in
// the working directory has been applied.
func Load() (Config, error) {
	var c Config
	if err := envdecode.Decode(&c); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("failed to decode environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q (want text or json)", c.LogFormat)
	}

	switch c.StoreBackend {
	case StoreMemory:
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required when STORE_BACKEND=redis")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.LockBackend {
	case LockLocal:
	case LockRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required when LOCK_BACKEND=redis")
		}
		if c.LockLease <= 0 {
			return errors.New("LOCK_LEASE must be positive")
		}
	default:
		return fmt.Errorf("invalid LOCK_BACKEND %q", c.LockBackend)
	}

	switch c.DuplicateNamePolicy {
	case "reject", "evict":
	default:
		return fmt.Errorf("invalid DUPLICATE_NAME_POLICY %q", c.DuplicateNamePolicy)
	}

	if c.RateLimit <= 0 || c.RateWindow <= 0 {
		return errors.New("RATE_LIMIT and RATE_WINDOW must be positive")
	}
	return nil
}

// UsesRedis reports whether any component needs a Redis client.
func (c Config) UsesRedis() bool {
	return c.StoreBackend == StoreRedis || c.LockBackend == LockRedis
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
