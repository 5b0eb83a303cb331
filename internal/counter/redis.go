package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/gearzhan/shortURL/internal/clock"
)

const (
	cellPrefix = "hits:"

	countField        = "count"
	lastAccessedField = "lastAccessed"
)

// RedisCounter stores each cell as a Redis hash under hits:<code>. The
// server executes commands for one key serially, so concurrent increments
// of the same code never lose updates.
type RedisCounter struct {
	client *redis.Client
	clock  clock.Clock
}

// NewRedisCounter creates a counter backed by the given Redis client.
func NewRedisCounter(client *redis.Client, clk clock.Clock) *RedisCounter {
	return &RedisCounter{
		client: client,
		clock:  clk,
	}
}

func (c *RedisCounter) Increment(ctx context.Context, code string) (Hit, error) {
	const op = "counter.RedisCounter.Increment"

	now := c.clock.Now().UnixMilli()
	key := cellPrefix + code

	pipe := c.client.TxPipeline()
	incr := pipe.HIncrBy(ctx, key, countField, 1)
	pipe.HSet(ctx, key, lastAccessedField, now)

	if _, err := pipe.Exec(ctx); err != nil {
		return Hit{}, fmt.Errorf("%s: failed to increment cell: %w", op, err)
	}

	return Hit{Count: incr.Val(), LastAccessed: now}, nil
}

func (c *RedisCounter) Stats(ctx context.Context, code string) (Hit, bool, error) {
	const op = "counter.RedisCounter.Stats"

	values, err := c.client.HGetAll(ctx, cellPrefix+code).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Hit{}, false, fmt.Errorf("%s: failed to read cell: %w", op, err)
	}
	if len(values) == 0 {
		return Hit{}, false, nil
	}

	var hit Hit
	if raw, ok := values[countField]; ok {
		hit.Count, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Hit{}, false, fmt.Errorf("%s: malformed count %q: %w", op, raw, err)
		}
	}
	if raw, ok := values[lastAccessedField]; ok {
		hit.LastAccessed, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Hit{}, false, fmt.Errorf("%s: malformed timestamp %q: %w", op, raw, err)
		}
	}

	return hit, true, nil
}

func (c *RedisCounter) Reset(ctx context.Context, code string) error {
	const op = "counter.RedisCounter.Reset"

	if err := c.client.Del(ctx, cellPrefix+code).Err(); err != nil {
		return fmt.Errorf("%s: failed to reset cell: %w", op, err)
	}

	return nil
}
