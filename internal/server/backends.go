package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cardroom-server/internal/config"
	"cardroom-server/internal/database"
	"cardroom-server/internal/registry"
	"cardroom-server/internal/room"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Backends holds the storage and locking chosen by configuration together
// with the clients behind them.
type Backends struct {
	Store  room.Store
	Locker registry.Locker
	Redis  *redis.Client
	Pool   *pgxpool.Pool
}

// OpenBackends connects to whatever STORE_BACKEND and LOCK_BACKEND require.
// Postgres migrations are applied before the store is returned.
func OpenBackends(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*Backends, error) {
	b := &Backends{}

	if cfg.UsesRedis() {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			rdb.Close()
			return nil, fmt.Errorf("redis ping error: %w", err)
		}
		b.Redis = rdb
		log.WithField("addr", cfg.RedisAddr).Info("Connected to Redis")
	}

	switch cfg.StoreBackend {
	case config.StoreMemory:
		b.Store = room.NewMemoryStore()
	case config.StoreRedis:
		b.Store = room.NewRedisStore(b.Redis, cfg.RedisPrefix, cfg.RoomTTL)
	case config.StorePostgres:
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Pool = pool
		if err := database.Migrate(ctx, pool); err != nil {
			b.Close()
			return nil, err
		}
		b.Store = room.NewPostgresStore(pool)
		log.Info("Database migrations applied successfully")
	default:
		b.Close()
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if cfg.LockBackend == config.LockRedis {
		b.Locker = registry.NewRedisLocker(b.Redis, cfg.RedisPrefix, cfg.LockLease, log)
	} else {
		b.Locker = registry.NewLocalLocker()
	}

	log.WithFields(logrus.Fields{
		"store": cfg.StoreBackend,
		"lock":  cfg.LockBackend,
	}).Info("Backends ready")
	return b, nil
}

// Health reports the status of every backend in use, keyed by backend.
func (b *Backends) Health(ctx context.Context) map[string]map[string]string {
	out := map[string]map[string]string{
		"store": {"status": "up", "backend": storeName(b.Store)},
	}
	if b.Pool != nil {
		out["database"] = database.Health(ctx, b.Pool)
		out["store"]["status"] = out["database"]["status"]
	}
	if b.Redis != nil {
		pingCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		stats := map[string]string{"status": "up"}
		if err := b.Redis.Ping(pingCtx).Err(); err != nil {
			stats["status"] = "down"
			stats["error"] = fmt.Sprintf("redis down: %v", err)
		}
		out["redis"] = stats
		if _, ok := b.Store.(*room.RedisStore); ok {
			out["store"]["status"] = stats["status"]
		}
	}
	return out
}

func storeName(s room.Store) string {
	switch s.(type) {
	case *room.RedisStore:
		return config.StoreRedis
	case *room.PostgresStore:
		return config.StorePostgres
	default:
		return config.StoreMemory
	}
}

func (b *Backends) Close() error {
	var errs []error
	if b.Redis != nil {
		errs = append(errs, b.Redis.Close())
	}
	if b.Pool != nil {
		b.Pool.Close()
	}
	return errors.Join(errs...)
}
