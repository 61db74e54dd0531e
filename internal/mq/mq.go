package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/esgportal/apiserver/config"
)

// Well-known message attributes. Backends map them onto native fields
// where the broker has one.
const (
	ContentTypeAttr = "content_type"
	CorrelationAttr = "correlation_id"
	OrderingKeyAttr = "ordering_key"
)

// Attributed is implemented by payloads that carry their own message
// attributes, such as a correlation id.
type Attributed interface {
	MessageAttributes() map[string]string
}

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// InProcess reports whether backend names the in-process memory backend,
// which cannot carry messages between processes.
func InProcess(backend string) bool {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "none", "memory":
		return true
	}
	return false
}

// Open builds the backend selected by cfg.Backend. The "none" backend
// delivers in-process only and drops messages nobody is subscribed to.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	if InProcess(cfg.Backend) {
		return New(NewMemoryBackend()), nil
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "rabbitmq":
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return New(client), nil
	case "pubsub":
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return New(client), nil
	default:
		return nil, fmt.Errorf("unsupported mq backend %q", cfg.Backend)
	}
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// PublishJSON encodes v as JSON and publishes it to the named channel.
func (m *MQ) PublishJSON(ctx context.Context, channel string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}
	return m.backend.Publish(ctx, channel, data, jsonAttributes(v))
}

func jsonAttributes(v any) map[string]string {
	attrs := map[string]string{}
	if a, ok := v.(Attributed); ok {
		for key, value := range a.MessageAttributes() {
			if value != "" {
				attrs[key] = value
			}
		}
	}
	attrs[ContentTypeAttr] = "application/json"
	return attrs
}

// Subscribe consumes messages from the named channel.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
