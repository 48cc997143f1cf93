package change

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash key content digests are stored under.
const DefaultRedisKey = "politecrawler:content_hashes"

// redisTimeout bounds a single Redis command.
const redisTimeout = 2 * time.Second

// RedisStore keeps content hashes in a Redis hash, field per URL, so
// several crawler processes and later runs share change history.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to the Redis server at addr and verifies the
// connection with PING.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // connection failed anyway
		return nil, fmt.Errorf("%w: connect to redis at %s: %v", ErrStore, addr, err)
	}
	return NewRedisStoreWithClient(client, DefaultRedisKey), nil
}

// NewRedisStoreWithClient wraps an existing client. key names the Redis
// hash; an empty key uses DefaultRedisKey.
func NewRedisStoreWithClient(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// LastHash implements Store.
func (r *RedisStore) LastHash(ctx context.Context, url string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	hash, err := r.client.HGet(ctx, r.key, url).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hash, true, nil
}

// SetHash implements Store.
func (r *RedisStore) SetHash(ctx context.Context, url, hash string) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	return r.client.HSet(ctx, r.key, url, hash).Err()
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
