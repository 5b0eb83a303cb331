package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces record values so counter cells and other state can
// share the same Redis database.
const keyPrefix = "url:"

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	const op = "storage.NewRedisClient"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     100,
		MinIdleConns: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to connect to redis: %w", op, err)
	}

	return client, nil
}

// RedisStore implements Store on a Redis database. Values are plain strings
// under the url: prefix, expiry uses the native SET TTL, and listing walks
// the keyspace with SCAN.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Store backed by the given Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	const op = "storage.RedisStore.Get"

	value, err := s.client.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("%s: failed to get key: %w", op, err)
	}

	return value, nil
}

func (s *RedisStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	const op = "storage.RedisStore.Put"

	if ttl < 0 {
		ttl = 0
	}

	if err := s.client.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%s: failed to set key: %w", op, err)
	}

	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	const op = "storage.RedisStore.Delete"

	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("%s: failed to delete key: %w", op, err)
	}

	return nil
}

func (s *RedisStore) List(ctx context.Context, cursor string, limit int64) (ListResult, error) {
	const op = "storage.RedisStore.List"

	var scanCursor uint64
	if cursor != "" {
		parsed, err := strconv.ParseUint(cursor, 10, 64)
		if err != nil {
			return ListResult{}, fmt.Errorf("%s: invalid cursor %q: %w", op, cursor, err)
		}
		scanCursor = parsed
	}

	keys, next, err := s.client.Scan(ctx, scanCursor, keyPrefix+"*", limit).Result()
	if err != nil {
		return ListResult{}, fmt.Errorf("%s: failed to scan keys: %w", op, err)
	}

	result := ListResult{
		Keys:     make([]string, 0, len(keys)),
		Complete: next == 0,
	}
	for _, key := range keys {
		result.Keys = append(result.Keys, strings.TrimPrefix(key, keyPrefix))
	}
	if !result.Complete {
		result.Cursor = strconv.FormatUint(next, 10)
	}

	return result, nil
}
