package llm

import (
	"maps"
	"time"

	"github.com/nulzo/generation-router/internal/config"
	"github.com/nulzo/generation-router/internal/tracker"
)

// Pricing maps a model name to its cost per thousand tokens.
type Pricing map[string]float64

// Base carries the state every adapter shares: identity, prices and its own
// rolling window. Adapters embed it and only implement the remote calls.
type Base struct {
	id           BackendID
	kind         string
	defaultModel string
	pricing      Pricing
	window       *tracker.Window
}

// NewBase merges the adapter's built-in price table with the configured overrides.
func NewBase(cfg config.BackendConfig, kind string, builtin Pricing) *Base {
	prices := make(Pricing, len(builtin)+len(cfg.Pricing))
	maps.Copy(prices, builtin)
	maps.Copy(prices, cfg.Pricing)

	return &Base{
		id:           BackendID(cfg.ID),
		kind:         kind,
		defaultModel: cfg.DefaultModel,
		pricing:      prices,
		window:       tracker.NewWindow(cfg.WindowSize),
	}
}

func (b *Base) ID() BackendID        { return b.id }
func (b *Base) Type() string         { return b.kind }
func (b *Base) DefaultModel() string { return b.defaultModel }

func (b *Base) AverageLatency() time.Duration {
	return b.window.Average()
}

func (b *Base) CostPerThousandTokens(model string) float64 {
	if price, ok := b.pricing[model]; ok {
		return price
	}
	return b.pricing[b.defaultModel]
}

func (b *Base) Record(o tracker.Outcome) {
	if o.Backend == "" {
		o.Backend = string(b.id)
	}
	b.window.Record(o)
}

func (b *Base) Stats() tracker.Stats {
	return b.window.Stats()
}

// Window exposes the backend's outcome history for inspection.
func (b *Base) Window() *tracker.Window {
	return b.window
}

// AdoptWindow replaces the backend's history with w. It must be called before
// the backend is published to a registry.
func (b *Base) AdoptWindow(w *tracker.Window) {
	b.window = w
}
