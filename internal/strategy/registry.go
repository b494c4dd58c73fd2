package strategy

import (
	"fmt"
	"slices"
	"sync"
)

// Registry maps strategy identifiers to implementations. It is populated at
// startup and read concurrently by the scheduler and every firing.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	aliases    map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy), aliases: make(map[string]string)}
}

// Register adds s under id. Registering an id twice is an error.
func (r *Registry) Register(id string, s Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.takenLocked(id) {
		return fmt.Errorf("%w: %q", ErrDuplicateStrategy, id)
	}
	r.strategies[id] = s
	return nil
}

// Alias makes alias resolve to the strategy registered under id. Aliases
// are not listed by IDs.
func (r *Registry) Alias(alias, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.strategies[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, id)
	}
	if r.takenLocked(alias) {
		return fmt.Errorf("%w: %q", ErrDuplicateStrategy, alias)
	}
	r.aliases[alias] = id
	return nil
}

func (r *Registry) takenLocked(id string) bool {
	_, registered := r.strategies[id]
	_, aliased := r.aliases[id]
	return registered || aliased
}

// MustRegister is like Register but panics on error. Intended for wiring
// code where a duplicate is a programming mistake.
func (r *Registry) MustRegister(id string, s Strategy) {
	if err := r.Register(id, s); err != nil {
		panic(err)
	}
}

// Lookup returns the strategy registered under id.
func (r *Registry) Lookup(id string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if target, ok := r.aliases[id]; ok {
		id = target
	}
	s, ok := r.strategies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, id)
	}
	return s, nil
}

// IDs returns the registered identifiers, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.strategies))
	for id := range r.strategies {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
