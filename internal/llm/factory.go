package llm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nulzo/generation-router/internal/config"
)

// Factory builds a backend from its configuration.
type Factory func(cfg config.BackendConfig) (Backend, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes an adapter type available. It is called from adapter init functions.
func Register(backendType string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[backendType]; exists {
		panic(fmt.Sprintf("backend factory %s already registered", backendType))
	}
	factories[backendType] = f
}

func Get(backendType string) (Factory, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[backendType]
	if !ok {
		return nil, fmt.Errorf("backend factory not found for type: %s", backendType)
	}
	return f, nil
}

// New looks up the factory for cfg.Type and invokes it.
func New(cfg config.BackendConfig) (Backend, error) {
	f, err := Get(cfg.Type)
	if err != nil {
		return nil, err
	}
	return f(cfg)
}

// Types lists the registered adapter types.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for t := range factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
