package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Default Redis key namespaces for the two backings.
const (
	RedisCookiePrefix = "lotto:cookie:"
	RedisLocalPrefix  = "lotto:local:"
)

// redisOpTimeout bounds every Redis round trip; Storage has no context.
const redisOpTimeout = 3 * time.Second

// Redis stores entries in Redis under a key prefix. Two Redis storages with
// different prefixes never see each other's keys.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	owned  bool
}

// RedisOptions configures NewRedis and DialRedis.
type RedisOptions struct {
	Prefix string
	// TTL is applied to every Set; zero means no expiry.
	TTL time.Duration
}

// NewRedis wraps an existing client. The caller keeps ownership of client.
func NewRedis(client redis.UniversalClient, opts RedisOptions) *Redis {
	return &Redis{client: client, prefix: opts.Prefix, ttl: opts.TTL}
}

// DialRedis connects to addr and pings it. The returned storage owns the
// connection and closes it on Close.
func DialRedis(ctx context.Context, addr, password string, db int, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	r := NewRedis(client, opts)
	r.owned = true
	return r, nil
}

// Get implements Storage.
func (r *Redis) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

// Set implements Storage.
func (r *Redis) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := r.client.Set(ctx, r.prefix+key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Remove implements Storage.
func (r *Redis) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Close releases the connection if this storage opened it.
func (r *Redis) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}
