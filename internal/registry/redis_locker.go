package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var errLockHeld = errors.New("lock held")

// Deletes the lock only if it still carries our token, so a holder whose
// lease already expired cannot release someone else's section.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lease-based lock shared by every process using the same
// Redis. A holder that dies without unlocking loses the section once the
// lease runs out.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
	lease  time.Duration
	log    logrus.FieldLogger
}

func NewRedisLocker(rdb *redis.Client, prefix string, lease time.Duration, log logrus.FieldLogger) *RedisLocker {
	return &RedisLocker{
		rdb:    rdb,
		prefix: prefix,
		lease:  lease,
		log:    log,
	}
}

func (l *RedisLocker) key(name string) string {
	return l.prefix + "lock:" + name
}

func (l *RedisLocker) Lock(ctx context.Context, name string) (func(), error) {
	key := l.key(name)
	token := uuid.NewString()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 0 // bounded by ctx

	acquire := func() error {
		ok, err := l.rdb.SetNX(ctx, key, token, l.lease).Result()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to acquire lock %s: %w", name, err))
		}
		if !ok {
			return errLockHeld
		}
		return nil
	}

	if err := backoff.Retry(acquire, backoff.WithContext(b, ctx)); err != nil {
		if errors.Is(err, errLockHeld) || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, name)
		}
		return nil, err
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true

		// The caller's context may already be done; release regardless.
		relCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		n, err := releaseScript.Run(relCtx, l.rdb, []string{key}, token).Int()
		if err != nil {
			l.log.WithField("room", name).WithError(err).Warn("Failed to release room lock")
			return
		}
		if n == 0 {
			l.log.WithField("room", name).Warn("Room lock lease expired before release")
		}
	}, nil
}

