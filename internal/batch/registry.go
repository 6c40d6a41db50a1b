package batch

import (
	"fmt"
	"sort"
)

// Registry maps names to custom handlers and entity names to repositories.
// Custom operations carry a handler name rather than a closure, so batch files
// and retried operations resolve handlers the same way.
type Registry struct {
	handlers map[string]Handler
	repos    map[string]Repository
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		repos:    make(map[string]Repository),
	}
}

// RegisterHandler registers a custom handler under name.
func (r *Registry) RegisterHandler(name string, h Handler) error {
	if name == "" {
		return fmt.Errorf("register handler: empty name")
	}
	if h == nil {
		return fmt.Errorf("register handler %q: nil handler", name)
	}
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("register handler %q: already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// Handler returns the handler registered under name.
func (r *Registry) Handler(name string) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	h, ok := r.handlers[name]
	return h, ok
}

// RegisterRepository registers repo under its entity name.
func (r *Registry) RegisterRepository(repo Repository) error {
	if repo == nil {
		return fmt.Errorf("register repository: nil repository")
	}
	name := repo.Entity()
	if name == "" {
		return fmt.Errorf("register repository: empty entity name")
	}
	if _, exists := r.repos[name]; exists {
		return fmt.Errorf("register repository %q: already registered", name)
	}
	r.repos[name] = repo
	return nil
}

// Repository returns the repository registered for entity.
func (r *Registry) Repository(entity string) (Repository, bool) {
	if r == nil {
		return nil, false
	}
	repo, ok := r.repos[entity]
	return repo, ok
}

// Entities returns registered entity names, sorted.
func (r *Registry) Entities() []string {
	return sortedKeys(r.repos)
}

// Handlers returns registered handler names, sorted.
func (r *Registry) Handlers() []string {
	return sortedKeys(r.handlers)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
