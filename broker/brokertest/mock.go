// Package brokertest provides an in-memory mqtt.Client for tests.
package brokertest

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Token struct{ Err error }

func (t *Token) Wait() bool                     { return true }
func (t *Token) WaitTimeout(time.Duration) bool { return true }
func (t *Token) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (t *Token) Error() error                   { return t.Err }

type Published struct {
	Topic   string
	Payload []byte
}

// Client records publishes and subscriptions. Deliver calls the handler
// registered for a topic.
type Client struct {
	mu         sync.Mutex
	published  []Published
	handlers   map[string]mqtt.MessageHandler
	ConnectErr error
	PublishErr error
}

func (m *Client) IsConnected() bool      { return true }
func (m *Client) IsConnectionOpen() bool { return true }
func (m *Client) Connect() mqtt.Token    { return &Token{Err: m.ConnectErr} }
func (m *Client) Disconnect(uint)        {}

func (m *Client) Subscribe(topic string, _ byte, h mqtt.MessageHandler) mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handlers == nil {
		m.handlers = map[string]mqtt.MessageHandler{}
	}
	m.handlers[topic] = h
	return &Token{}
}

func (m *Client) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return &Token{}
}

func (m *Client) Unsubscribe(topics ...string) mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range topics {
		delete(m.handlers, t)
	}
	return &Token{}
}

func (m *Client) AddRoute(string, mqtt.MessageHandler) {}

func (m *Client) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.NewOptionsReader(mqtt.NewClientOptions())
}

func (m *Client) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	var b []byte
	switch v := payload.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, Published{Topic: topic, Payload: b})
	return &Token{Err: m.PublishErr}
}

func (m *Client) Messages() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := make([]Published, len(m.published))
	copy(ret, m.published)
	return ret
}

// Deliver hands payload to the subscriber of topic. It returns false when
// nothing is subscribed.
func (m *Client) Deliver(topic string, payload []byte) bool {
	m.mu.Lock()
	h, ok := m.handlers[topic]
	m.mu.Unlock()
	if !ok {
		return false
	}
	h(m, &Message{topic: topic, payload: payload})
	return true
}

type Message struct {
	topic   string
	payload []byte
}

func (m *Message) Duplicate() bool   { return false }
func (m *Message) Qos() byte         { return 0 }
func (m *Message) Retained() bool    { return false }
func (m *Message) Topic() string     { return m.topic }
func (m *Message) MessageID() uint16 { return 0 }
func (m *Message) Payload() []byte   { return m.payload }
func (m *Message) Ack()              {}
