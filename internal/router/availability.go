package router

import (
	"context"
	"time"

	"github.com/nulzo/generation-router/internal/llm"
	"github.com/nulzo/generation-router/internal/store/cache"
	"golang.org/x/sync/errgroup"
)

// AvailabilityChecker decides whether a backend should be offered as a candidate.
type AvailabilityChecker interface {
	Available(ctx context.Context, b llm.Backend) bool
}

// DirectChecker probes the backend on every call.
type DirectChecker struct{}

func (DirectChecker) Available(ctx context.Context, b llm.Backend) bool {
	return b.IsAvailable(ctx)
}

// CachedChecker remembers probe results for ttl. Cache failures fall through to
// a live probe.
type CachedChecker struct {
	cache cache.Service
	ttl   time.Duration
	probe AvailabilityChecker
}

func NewCachedChecker(c cache.Service, ttl time.Duration) *CachedChecker {
	return &CachedChecker{cache: c, ttl: ttl, probe: DirectChecker{}}
}

func (c *CachedChecker) Available(ctx context.Context, b llm.Backend) bool {
	key := "availability:" + string(b.ID())

	var up bool
	if err := c.cache.Get(ctx, key, &up); err == nil {
		return up
	}

	up = c.probe.Available(ctx, b)
	_ = c.cache.Set(ctx, key, up, c.ttl)
	return up
}

// filterAvailable probes candidates concurrently and keeps the available ones
// in their original order.
func filterAvailable(ctx context.Context, checker AvailabilityChecker, candidates []llm.Backend) []llm.Backend {
	up := make([]bool, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range candidates {
		g.Go(func() error {
			up[i] = checker.Available(gctx, b)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]llm.Backend, 0, len(candidates))
	for i, b := range candidates {
		if up[i] {
			out = append(out, b)
		}
	}
	return out
}
