package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBlobs stores each collection as a plain string value under
// "<prefix>:<collection>".
type RedisBlobs struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisBlobs(rdb *redis.Client, prefix string) *RedisBlobs {
	if prefix == "" {
		prefix = "cafeplease"
	}
	return &RedisBlobs{rdb: rdb, prefix: prefix}
}

func (r *RedisBlobs) key(name string) string {
	return fmt.Sprintf("%s:%s", r.prefix, name)
}

func (r *RedisBlobs) Get(ctx context.Context, name string) ([]byte, bool, error) {
	data, err := r.rdb.Get(ctx, r.key(name)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", r.key(name), err)
	}
	return data, true, nil
}

func (r *RedisBlobs) Put(ctx context.Context, name string, data []byte) error {
	if err := r.rdb.Set(ctx, r.key(name), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", r.key(name), err)
	}
	return nil
}
