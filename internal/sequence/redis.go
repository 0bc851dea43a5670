package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisTTL keeps a day's counter around long enough to span any
// timezone offset and late corrections.
const DefaultRedisTTL = 48 * time.Hour

// RedisAllocator keeps counters in Redis under queue:seq:<day>:<provider>.
// Each allocation runs INCR and EXPIRE in one MULTI/EXEC, so a counter
// never outlives TTL past its last use and never lacks an expiry.
//
// Redis must be persistent: a reset counter restarts at 1 and the entry
// insert then fails on the (day, provider, sequence) unique index.
type RedisAllocator struct {
	Client redis.Cmdable
	TTL    time.Duration
	Prefix string
}

// NewRedisAllocator returns an allocator over client with default settings.
func NewRedisAllocator(client redis.Cmdable) *RedisAllocator {
	return &RedisAllocator{Client: client, TTL: DefaultRedisTTL, Prefix: "queue:seq"}
}

// Key returns the Redis key of the (day, provider) counter.
func (a *RedisAllocator) Key(day, provider string) string {
	prefix := a.Prefix
	if prefix == "" {
		prefix = "queue:seq"
	}
	return fmt.Sprintf("%s:%s:%s", prefix, day, provider)
}

// Allocate implements Allocator.
func (a *RedisAllocator) Allocate(ctx context.Context, day, provider string) (int64, error) {
	key := a.Key(day, provider)
	if a.TTL <= 0 {
		seq, err := a.Client.Incr(ctx, key).Result()
		if err != nil {
			return 0, fmt.Errorf("redis incr %s: %w", key, err)
		}
		return seq, nil
	}

	var incr *redis.IntCmd
	if _, err := a.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.Expire(ctx, key, a.TTL)
		return nil
	}); err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Reset implements Resetter.
func (a *RedisAllocator) Reset(ctx context.Context, day, provider string, seq int64) error {
	key := a.Key(day, provider)
	if err := a.Client.Set(ctx, key, seq, a.TTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// NewRedisClient parses url (redis://...) or treats it as a host:port
// address, and verifies the connection with PING.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	opts.PoolSize = 20
	opts.MinIdleConns = 2
	opts.MaxRetries = 3

	client := redis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
