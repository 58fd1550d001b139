package arbitrage

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry resolves strategies by configured name. Lookups ignore case,
// surrounding space and the '-'/'_' distinction, and accept aliases.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	aliases    map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
		aliases:    make(map[string]string),
	}
}

func normalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
}

// Register adds s under its own name and any aliases. A later registration
// under the same name replaces the earlier one.
func (r *Registry) Register(s Strategy, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := normalizeName(s.Name())
	r.strategies[name] = s
	for _, a := range aliases {
		r.aliases[normalizeName(a)] = name
	}
}

// Get returns the strategy registered under name or one of its aliases.
func (r *Registry) Get(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key := normalizeName(name)
	if canonical, ok := r.aliases[key]; ok {
		key = canonical
	}
	if s, ok := r.strategies[key]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("arbitrage: strategy %q not found (have %s)", name, strings.Join(r.names(), ", "))
}

// List returns the canonical strategy names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.strategies))
	for n := range r.strategies {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
