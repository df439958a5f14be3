package channel

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/bytedance/gg/gmap"
)

var (
	defaultRegistry = NewRegistry()

	Get        = defaultRegistry.Get
	Len        = defaultRegistry.Len
	List       = defaultRegistry.List
	Register   = defaultRegistry.Register
	Unregister = defaultRegistry.Unregister
)

func registryKey(t Type, accountID string) string {
	return string(t) + "/" + accountID
}

// Registry holds messengers keyed by (channel type, account id).
type Registry struct {
	msgrs map[string]Messenger

	cnt atomic.Int64
	mu  sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		msgrs: make(map[string]Messenger, 8),
	}
}

func (r *Registry) Register(m Messenger) error {
	if m == nil {
		return fmt.Errorf("messenger is nil")
	}
	key := registryKey(m.Type(), m.AccountID())

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.msgrs[key]; !ok {
		r.cnt.Add(1)
	}
	r.msgrs[key] = m
	return nil
}

func (r *Registry) Get(t Type, accountID string) (Messenger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.msgrs[registryKey(t, accountID)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrMessengerNotFound, t, accountID)
	}
	return m, nil
}

// List returns the registered messengers ordered by key.
func (r *Registry) List() []Messenger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := gmap.ToSlice(r.msgrs, func(k string, _ Messenger) string { return k })
	sort.Strings(keys)
	out := make([]Messenger, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.msgrs[k])
	}
	return out
}

func (r *Registry) Len() int {
	return int(r.cnt.Load())
}

func (r *Registry) Unregister(t Type, accountID string) {
	key := registryKey(t, accountID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.msgrs[key]; ok {
		delete(r.msgrs, key)
		r.cnt.Add(-1)
	}
}

// Close closes every messenger that holds resources and empties the registry.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for key, m := range r.msgrs {
		if c, ok := m.(Closer); ok {
			if err := c.Close(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		delete(r.msgrs, key)
	}
	r.cnt.Store(0)
	return firstErr
}
