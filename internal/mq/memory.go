package mq

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryBackend fans messages out to subscribers in the same process.
// Messages for a subscriber whose buffer is full are dropped.
type MemoryBackend struct {
	mu     sync.RWMutex
	subs   map[string][]chan Message
	closed bool
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{subs: make(map[string][]chan Message)}
}

func (b *MemoryBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("memory channel is required")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return "", errors.New("memory backend closed")
	}

	msg := Message{ID: uuid.NewString(), Data: append([]byte(nil), data...), Attributes: attrs}
	for _, sub := range b.subs[channel] {
		select {
		case sub <- msg:
		default:
			// subscriber buffer full; drop
		}
	}
	return msg.ID, nil
}

// Subscribe blocks until ctx is done. Handler errors are dropped; there is
// no redelivery.
func (b *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("memory channel is required")
	}

	sub := make(chan Message, 16)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("memory backend closed")
	}
	b.subs[channel] = append(b.subs[channel], sub)
	b.mu.Unlock()

	defer b.unsubscribe(channel, sub)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-sub:
			_ = handler(ctx, msg)
		}
	}
}

func (b *MemoryBackend) unsubscribe(channel string, sub chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[channel]
	for i, candidate := range subs {
		if candidate == sub {
			b.subs[channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// subscribers reports how many subscribers are attached to channel.
func (b *MemoryBackend) subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}
