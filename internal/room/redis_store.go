package room

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one JSON document per room under <prefix>room:<name>.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps an existing client. A zero ttl keeps documents until
// they are deleted; otherwise every Save refreshes the expiry.
func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + "room:" + name
}

func (s *RedisStore) Load(ctx context.Context, name string) (*Room, error) {
	data, err := s.rdb.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotStored
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room %s: %w", name, err)
	}
	return Decode(data)
}

func (s *RedisStore) Save(ctx context.Context, r *Room) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key(r.Name), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save room %s: %w", r.Name, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, name string) error {
	if err := s.rdb.Del(ctx, s.key(name)).Err(); err != nil {
		return fmt.Errorf("failed to delete room %s: %w", name, err)
	}
	return nil
}

func (s *RedisStore) Names(ctx context.Context) ([]string, error) {
	var names []string
	pattern := s.key("*")

	iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), s.key("")))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan rooms: %w", err)
	}

	slices.Sort(names)
	return names, nil
}
