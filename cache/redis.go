package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string
	DB       int
	Password string
	// Prefix namespaces all keys, so several deployments can share one Redis.
	Prefix string
}

// RedisRegistry keeps one hash per generation and a set with all generation names.
type RedisRegistry struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisRegistry(cfg RedisConfig) *RedisRegistry {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})
	return NewRedisRegistryFromClient(rdb, cfg.Prefix)
}

func NewRedisRegistryFromClient(rdb *redis.Client, prefix string) *RedisRegistry {
	if prefix == "" {
		prefix = "offline-cache:"
	}
	return &RedisRegistry{rdb: rdb, prefix: prefix}
}

func (r *RedisRegistry) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisRegistry) Close() error {
	return r.rdb.Close()
}

func (r *RedisRegistry) namesKey() string {
	return r.prefix + "generations"
}

func (r *RedisRegistry) entriesKey(name string) string {
	return r.prefix + "gen:" + name
}

func (r *RedisRegistry) Open(ctx context.Context, name string) (Store, error) {
	if err := r.rdb.SAdd(ctx, r.namesKey(), name).Err(); err != nil {
		return nil, fmt.Errorf("open store %s: %w", name, err)
	}
	return redisStore{registry: r, name: name}, nil
}

func (r *RedisRegistry) Names(ctx context.Context) ([]string, error) {
	names, err := r.rdb.SMembers(ctx, r.namesKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (r *RedisRegistry) Delete(ctx context.Context, name string) (bool, error) {
	var removed *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.entriesKey(name))
		removed = pipe.SRem(ctx, r.namesKey(), name)
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed.Val() > 0, nil
}

type redisStore struct {
	registry *RedisRegistry
	name     string
}

func (s redisStore) Name() string {
	return s.name
}

func (s redisStore) Match(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.registry.rdb.HGet(ctx, s.registry.entriesKey(s.name), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s redisStore) Put(ctx context.Context, key string, value []byte) error {
	member, err := s.registry.rdb.SIsMember(ctx, s.registry.namesKey(), s.name).Result()
	if err != nil {
		return err
	}
	if !member {
		return ErrStoreDeleted
	}
	return s.registry.rdb.HSet(ctx, s.registry.entriesKey(s.name), key, value).Err()
}

func (s redisStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.registry.rdb.HKeys(ctx, s.registry.entriesKey(s.name)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}
