package router

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/nulzo/generation-router/internal/llm"
)

// Strategy names a ranking over candidate backends.
type Strategy string

const (
	StrategyLatencyFirst Strategy = "latency_first"
	StrategyCostFirst    Strategy = "cost_first"
)

// RankFunc orders candidates by preference. It must not mutate its input.
type RankFunc func(candidates []llm.Backend) []llm.Backend

var strategies = map[Strategy]RankFunc{
	StrategyLatencyFirst: LatencyFirst,
	StrategyCostFirst:    CostFirst,
}

// ParseStrategy validates a strategy name.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(name)
	if _, ok := strategies[s]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStrategy, name)
	}
	return s, nil
}

// Strategies lists the known strategy names.
func Strategies() []Strategy {
	return []Strategy{StrategyLatencyFirst, StrategyCostFirst}
}

// Rank applies the named strategy.
func Rank(s Strategy, candidates []llm.Backend) ([]llm.Backend, error) {
	fn, ok := strategies[s]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStrategy, s)
	}
	return fn(candidates), nil
}

// LatencyFirst orders by rolling average latency. Backends with no successful
// history report tracker.UnknownLatency and therefore sort last.
func LatencyFirst(candidates []llm.Backend) []llm.Backend {
	return sortedBy(candidates, func(b llm.Backend) int64 {
		return int64(b.AverageLatency())
	})
}

// CostFirst orders by the price of each backend's default model.
func CostFirst(candidates []llm.Backend) []llm.Backend {
	return sortedBy(candidates, func(b llm.Backend) float64 {
		return b.CostPerThousandTokens(b.DefaultModel())
	})
}

// sortedBy evaluates key once per backend and stable-sorts a copy.
func sortedBy[K cmp.Ordered](candidates []llm.Backend, key func(llm.Backend) K) []llm.Backend {
	type keyed struct {
		b llm.Backend
		k K
	}
	items := make([]keyed, len(candidates))
	for i, b := range candidates {
		items[i] = keyed{b: b, k: key(b)}
	}

	slices.SortStableFunc(items, func(a, b keyed) int {
		return cmp.Compare(a.k, b.k)
	})

	out := make([]llm.Backend, len(items))
	for i, it := range items {
		out[i] = it.b
	}
	return out
}
