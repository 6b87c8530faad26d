package bus

import (
	"context"
	"sync"
)

// Memory is an in-process Bus for single-node deployments and tests.
// Delivery is synchronous, which preserves per-channel publish order.
type Memory struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewMemory() *Memory {
	return &Memory{handlers: make(map[string]Handler)}
}

func (b *Memory) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	h := b.handlers[channel]
	b.mu.RUnlock()
	if h != nil {
		h(payload)
	}
	return nil
}

func (b *Memory) Subscribe(_ context.Context, channel string, h Handler) error {
	b.mu.Lock()
	if _, ok := b.handlers[channel]; !ok {
		b.handlers[channel] = h
	}
	b.mu.Unlock()
	return nil
}

func (b *Memory) Unsubscribe(_ context.Context, channel string) error {
	b.mu.Lock()
	delete(b.handlers, channel)
	b.mu.Unlock()
	return nil
}

func (b *Memory) Close() error { return nil }

// Subscribed reports whether channel currently has a handler. Used by tests
// to check the registry's reference-counting behavior.
func (b *Memory) Subscribed(channel string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.handlers[channel]
	return ok
}
