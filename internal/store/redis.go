// Package store owns the redis connection used by the notice feed.
package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const healthTimeout = time.Second

// RedisOptions selects the redis server and database.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// Redis is the shared client plus the checks the kiosk health endpoint needs.
type Redis struct {
	Client *redis.Client
}

// OpenRedis creates a lazily connecting client. Nothing is dialed until first use.
func OpenRedis(opts RedisOptions) *Redis {
	return &Redis{Client: redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})}
}

// Ping round-trips a PING within a bounded time.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return redis.ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return r.Client.Ping(ctx).Err()
}

// Healthy reports whether Ping succeeds.
func (r *Redis) Healthy(ctx context.Context) bool {
	return r.Ping(ctx) == nil
}

func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
