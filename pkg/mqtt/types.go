package mqtt

import (
	"context"
)

// MessageHandler defines the callback function for processing received MQTT messages.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// PublishOptions carries the optional MQTT v5 properties of an outgoing message.
type PublishOptions struct {
	// CorrelationData is attached as the v5 correlation-data property.
	CorrelationData []byte

	// ContentType is attached as the v5 content-type property.
	ContentType string
}

// PublishOption mutates PublishOptions.
type PublishOption func(*PublishOptions)

// WithCorrelationData tags the message so responses and acknowledgements can be matched.
func WithCorrelationData(data []byte) PublishOption {
	return func(o *PublishOptions) { o.CorrelationData = data }
}

// WithContentType sets the v5 content-type property.
func WithContentType(ct string) PublishOption {
	return func(o *PublishOptions) { o.ContentType = ct }
}

// ApplyPublishOptions folds opts into a PublishOptions value.
func ApplyPublishOptions(opts ...PublishOption) PublishOptions {
	var po PublishOptions
	for _, opt := range opts {
		opt(&po)
	}
	return po
}

// Client defines the interface for a generic MQTT client.
// It abstracts the underlying paho implementation details.
type Client interface {
	// Start initiates the connection to the broker.
	// It is non-blocking and returns immediately. Use AwaitConnection to wait.
	Start(ctx context.Context) error

	// Disconnect cleanly closes the connection.
	Disconnect(ctx context.Context)

	// Publish sends a message to the specified topic.
	// For QoS > 0 it returns once the broker has acknowledged the message.
	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte, opts ...PublishOption) error

	// Subscribe registers a handler for a specific topic filter.
	// It handles the underlying MQTT subscription packet sending.
	// If the connection is lost and restored, this client will automatically re-subscribe.
	Subscribe(ctx context.Context, topic string, qos int, handler MessageHandler) error

	// Unsubscribe removes the handler and sends an UNSUBSCRIBE packet.
	Unsubscribe(ctx context.Context, topic string) error

	// AwaitConnection blocks until the client is connected to the broker.
	AwaitConnection(ctx context.Context) error

	// IsConnected returns true if the client is currently connected.
	IsConnected() bool
}
