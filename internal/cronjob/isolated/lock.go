package isolated

import (
	"context"
	"sync"
)

// keyedMutex serializes holders of the same key. Idle keys are dropped.
type keyedMutex struct {
	mu    sync.Mutex
	slots map[string]*keySlot
}

type keySlot struct {
	ch   chan struct{}
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{slots: make(map[string]*keySlot)}
}

// Lock blocks until key is free or ctx is done. The returned func
// releases the key.
func (k *keyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	slot, ok := k.slots[key]
	if !ok {
		slot = &keySlot{ch: make(chan struct{}, 1)}
		k.slots[key] = slot
	}
	slot.refs++
	k.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		return func() {
			<-slot.ch
			k.drop(key, slot)
		}, nil
	case <-ctx.Done():
		k.drop(key, slot)
		return nil, ctx.Err()
	}
}

func (k *keyedMutex) drop(key string, slot *keySlot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(k.slots, key)
	}
}

func (k *keyedMutex) len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}
