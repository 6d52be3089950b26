// Package cache carries collection invalidations between processes that share
// a notes account, so a change made in one place re-fetches everywhere.
package cache

import (
	"context"
	"sync"
)

// Bus is a fire-and-forget pub/sub transport.
type Bus interface {
	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channel string, handler func(message []byte)) error
}

// Invalidation announces that a collection changed on the server.
type Invalidation struct {
	Origin     string `json:"origin"`
	Collection string `json:"collection"`
	Scope      string `json:"scope"`
}

// Channel is the pub/sub channel for a collection kind, e.g. "notes".
func Channel(collection string) string {
	return "notesync:invalidate:{" + collection + "}"
}

// MemoryBus delivers messages to subscribers in the same process.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]func(message []byte)
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[string][]func(message []byte))}
}

func (b *MemoryBus) Publish(ctx context.Context, channel string, message []byte) error {
	b.mu.RLock()
	handlers := append([]func(message []byte){}, b.handlers[channel]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		msg := append([]byte(nil), message...)
		go handler(msg)
	}
	return nil
}

// Subscribe registers handler until ctx is done.
func (b *MemoryBus) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	b.mu.Lock()
	b.handlers[channel] = append(b.handlers[channel], handler)
	idx := len(b.handlers[channel]) - 1
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		hs := b.handlers[channel]
		if idx < len(hs) {
			hs[idx] = func([]byte) {}
		}
	}()
	return nil
}
