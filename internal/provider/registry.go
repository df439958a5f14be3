package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bytedance/gg/gmap"
)

var (
	defaultRegistry = NewRegistry()

	Get        = defaultRegistry.Get
	List       = defaultRegistry.List
	Register   = defaultRegistry.Register
	Unregister = defaultRegistry.Unregister
)

type Registry struct {
	providers map[string]Provider
	mu        sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

func (r *Registry) Register(p Provider) error {
	if p == nil || p.ID() == "" {
		return fmt.Errorf("provider must have an id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
	return nil
}

func (r *Registry) Get(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
	}
	return p, nil
}

// List returns providers ordered by id.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := gmap.ToSlice(r.providers, func(_ string, v Provider) Provider { return v })
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[id]; ok {
		_ = p.Close()
		delete(r.providers, id)
	}
}
