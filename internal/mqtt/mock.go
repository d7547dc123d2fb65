package mqtt

import (
	"context"
	"sync"

	"github.com/tphakala/train-spotter/internal/errors"
)

// Message is a message captured by MockClient.
type Message struct {
	Topic   string
	Payload string
}

// MockClient is an in-memory Client for tests. Deliver hands a payload to
// the handler subscribed to a topic.
type MockClient struct {
	mu         sync.Mutex
	connected  bool
	published  []Message
	handlers   map[string]MessageHandler
	PublishErr error
	ConnectErr error
}

// NewMockClient returns a disconnected mock.
func NewMockClient() *MockClient {
	return &MockClient{handlers: make(map[string]MessageHandler)}
}

func (m *MockClient) Connect(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	m.connected = true
	return nil
}

func (m *MockClient) Publish(_ context.Context, topic, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	if !m.connected {
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Build()
	}
	m.published = append(m.published, Message{Topic: topic, Payload: payload})
	return nil
}

func (m *MockClient) Subscribe(topic string, handler MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *MockClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	return nil
}

func (m *MockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockClient) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

// Published returns a copy of the published messages.
func (m *MockClient) Published() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.published...)
}

// Deliver simulates an inbound message. It reports whether a handler was
// subscribed to topic.
func (m *MockClient) Deliver(topic string, payload []byte) bool {
	m.mu.Lock()
	handler, ok := m.handlers[topic]
	m.mu.Unlock()
	if !ok {
		return false
	}
	handler(topic, payload)
	return true
}
