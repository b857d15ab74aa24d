package cache

import (
	"context"
	"errors"
	"time"

	"github.com/nulzo/generation-router/internal/config"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// purgeInterval is how often the in-process cache drops expired entries.
const purgeInterval = time.Minute

// Service is a small key/value cache with per-entry expiry.
type Service interface {
	// Get unmarshals the cached value into dest.
	Get(ctx context.Context, key string, dest any) error

	// Set marshals value and stores it for ttl.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	Delete(ctx context.Context, key string) error
}

// New returns a Redis-backed cache when Redis is enabled and an in-process
// cache otherwise. The in-process cache is purged in the background until ctx
// is done.
func New(ctx context.Context, cfg config.RedisConfig) (Service, error) {
	if !cfg.Enabled {
		m := NewMemory()
		m.StartJanitor(ctx, purgeInterval)
		return m, nil
	}
	return NewRedis(ctx, cfg)
}
