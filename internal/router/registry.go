package router

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/nulzo/generation-router/internal/config"
	"github.com/nulzo/generation-router/internal/llm"
	"github.com/nulzo/generation-router/internal/tracker"
	"go.uber.org/zap"
)

// backendSet is an immutable snapshot of the registry contents.
type backendSet struct {
	byID  map[llm.BackendID]llm.Backend
	order []llm.Backend
}

// Registry holds the live backend instances. Reads are lock-free; Replace swaps
// the whole set at once so readers never see a partially updated registry.
type Registry struct {
	set atomic.Pointer[backendSet]
}

// NewRegistry registers backends in the given order. Duplicate IDs are an error.
func NewRegistry(backends ...llm.Backend) (*Registry, error) {
	r := &Registry{}
	if err := r.Replace(backends); err != nil {
		return nil, err
	}
	return r, nil
}

// Replace atomically swaps in a new set of backends.
func (r *Registry) Replace(backends []llm.Backend) error {
	set := &backendSet{
		byID:  make(map[llm.BackendID]llm.Backend, len(backends)),
		order: make([]llm.Backend, 0, len(backends)),
	}
	for _, b := range backends {
		if _, dup := set.byID[b.ID()]; dup {
			return fmt.Errorf("duplicate backend id %q", b.ID())
		}
		set.byID[b.ID()] = b
		set.order = append(set.order, b)
	}
	r.set.Store(set)
	return nil
}

// windowed is implemented by backends built on llm.Base.
type windowed interface {
	Window() *tracker.Window
	AdoptWindow(*tracker.Window)
}

// Reload swaps in backends like Replace. A backend whose ID, type and window
// capacity match a currently registered one takes over that backend's window,
// so latency history survives configuration reloads. It returns how many
// windows were carried over.
func (r *Registry) Reload(backends []llm.Backend) (int, error) {
	current := r.set.Load()
	carried := 0
	for _, next := range backends {
		prev, ok := current.byID[next.ID()]
		if !ok || prev.Type() != next.Type() {
			continue
		}
		from, okPrev := prev.(windowed)
		to, okNext := next.(windowed)
		if !okPrev || !okNext || from.Window().Capacity() != to.Window().Capacity() {
			continue
		}
		to.AdoptWindow(from.Window())
		carried++
	}
	if err := r.Replace(backends); err != nil {
		return 0, err
	}
	return carried, nil
}

// Get resolves an identity to its live instance.
func (r *Registry) Get(id llm.BackendID) (llm.Backend, bool) {
	b, ok := r.set.Load().byID[id]
	return b, ok
}

// All returns every registered backend. The slice is a copy.
func (r *Registry) All() []llm.Backend {
	return slices.Clone(r.set.Load().order)
}

// IDs returns the registered identities in registry order.
func (r *Registry) IDs() []llm.BackendID {
	order := r.set.Load().order
	ids := make([]llm.BackendID, len(order))
	for i, b := range order {
		ids[i] = b.ID()
	}
	return ids
}

func (r *Registry) Len() int {
	return len(r.set.Load().order)
}

// BuildBackends constructs one backend per enabled, valid configuration through
// the adapter factories. Configurations that fail validation or construction are
// skipped and logged. Higher priority comes first; ties keep configuration order.
func BuildBackends(cfgs []config.BackendConfig, log *zap.Logger) []llm.Backend {
	validate := validator.New()

	ordered := slices.Clone(cfgs)
	slices.SortStableFunc(ordered, func(a, b config.BackendConfig) int {
		return b.Priority - a.Priority
	})

	backends := make([]llm.Backend, 0, len(ordered))
	for _, cfg := range ordered {
		if !cfg.Enabled {
			continue
		}

		if err := validate.Struct(&cfg); err != nil {
			log.Warn("Skipping backend with invalid configuration",
				zap.String("backend", cfg.ID),
				zap.Error(err),
			)
			continue
		}

		backend, err := llm.New(cfg)
		if err != nil {
			log.Error("Failed to initialize backend",
				zap.String("backend", cfg.ID),
				zap.String("type", cfg.Type),
				zap.Error(err),
			)
			continue
		}

		backends = append(backends, backend)
		log.Info("Registered backend",
			zap.String("backend", cfg.ID),
			zap.String("type", cfg.Type),
			zap.String("default_model", cfg.DefaultModel),
		)
	}

	if len(backends) == 0 {
		log.Warn("No backends were registered. Generation requests will fail.")
	}
	return backends
}

// BuildRegistry is BuildBackends followed by NewRegistry.
func BuildRegistry(cfgs []config.BackendConfig, log *zap.Logger) (*Registry, error) {
	return NewRegistry(BuildBackends(cfgs, log)...)
}
