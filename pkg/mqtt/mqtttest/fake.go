// Package mqtttest provides an in-memory mqtt.Client for tests.
package mqtttest

import (
	"context"
	"sync"

	"github.com/autopeer-io/fleethub/pkg/mqtt"
)

// Message is a publish recorded by the fake client.
type Message struct {
	Topic   string
	QoS     int
	Retain  bool
	Payload []byte
	Options mqtt.PublishOptions
}

// Client is an in-memory mqtt.Client. Publishes are recorded and, when PublishFunc
// is set, delegated to it so tests can inject failures or block until released.
type Client struct {
	// PublishFunc overrides the default (always succeeding) publish behaviour.
	PublishFunc func(ctx context.Context, msg Message) error

	mu        sync.Mutex
	started   bool
	connected bool
	published []Message
	handlers  map[string]mqtt.MessageHandler
}

var _ mqtt.Client = (*Client)(nil)

// NewClient returns a connected fake client.
func NewClient() *Client {
	return &Client{connected: true, handlers: map[string]mqtt.MessageHandler{}}
}

func (c *Client) Start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	return nil
}

func (c *Client) Disconnect(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *Client) Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte, opts ...mqtt.PublishOption) error {
	msg := Message{Topic: topic, QoS: qos, Retain: retain, Payload: payload, Options: mqtt.ApplyPublishOptions(opts...)}

	c.mu.Lock()
	c.published = append(c.published, msg)
	fn := c.PublishFunc
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, msg)
	}
	return ctx.Err()
}

func (c *Client) Subscribe(_ context.Context, topic string, _ int, handler mqtt.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	return nil
}

func (c *Client) Unsubscribe(_ context.Context, topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, topic)
	return nil
}

func (c *Client) AwaitConnection(ctx context.Context) error {
	return ctx.Err()
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Deliver synchronously routes an inbound message to every matching handler and
// reports how many handlers received it.
func (c *Client) Deliver(ctx context.Context, topic string, payload []byte) int {
	c.mu.Lock()
	var hs []mqtt.MessageHandler
	for filter, h := range c.handlers {
		if mqtt.TopicMatches(filter, topic) {
			hs = append(hs, h)
		}
	}
	c.mu.Unlock()

	for _, h := range hs {
		h(ctx, topic, payload)
	}
	return len(hs)
}

// Published returns a copy of every publish seen so far.
func (c *Client) Published() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.published...)
}

// Subscriptions returns the registered topic filters.
func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.handlers))
	for f := range c.handlers {
		out = append(out, f)
	}
	return out
}

// Started reports whether Start was called.
func (c *Client) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}
