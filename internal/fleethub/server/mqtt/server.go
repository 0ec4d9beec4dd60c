package mqtt

import (
	"context"
	"fmt"
	"time"

	"github.com/autopeer-io/fleethub/internal/pkg/metrics"
	"github.com/autopeer-io/fleethub/pkg/log"
	pkgmqtt "github.com/autopeer-io/fleethub/pkg/mqtt"
	"github.com/autopeer-io/fleethub/pkg/mqtt/topic"
)

// statusQoS is the subscription QoS of the status channel.
const statusQoS = 1

// connectivityInterval is how often the broker connectivity gauge is refreshed.
const connectivityInterval = 5 * time.Second

// Server implements the MQTT ingress layer.
type Server struct {
	client  pkgmqtt.Client
	topics  *topic.Builder
	handler pkgmqtt.MessageHandler
}

// NewServer creates a new MQTT server. handler receives every status message.
func NewServer(client pkgmqtt.Client, builder *topic.Builder, handler pkgmqtt.MessageHandler) *Server {
	return &Server{
		client:  client,
		topics:  builder,
		handler: handler,
	}
}

// Start connects to the broker and subscribes to topics.
func (s *Server) Start(ctx context.Context) error {
	// 1. Start the connection manager (Non-blocking)
	if err := s.client.Start(ctx); err != nil {
		return err
	}

	// Ensure MQTT disconnects when Start exits
	defer func() {
		log.Info("Disconnecting MQTT client...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.client.Disconnect(shutdownCtx)
		metrics.BrokerConnectivityStatus.Set(0)
		log.Info("MQTT client disconnected")
	}()

	// 2. Wait for the initial connection to be established
	log.Info("Waiting for MQTT connection...")
	if err := s.client.AwaitConnection(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	log.Info("MQTT Connected")

	if err := s.initMQTTSubscriptions(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(connectivityInterval)
	defer ticker.Stop()
	for {
		s.reportConnectivity()
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Ready reports whether the broker session is up.
func (s *Server) Ready() error {
	if !s.client.IsConnected() {
		return fmt.Errorf("mqtt broker not connected")
	}
	return nil
}

func (s *Server) initMQTTSubscriptions(ctx context.Context) error {
	fullTopic := s.topics.StatusWildcard()
	if err := s.client.Subscribe(ctx, fullTopic, statusQoS, s.handler); err != nil {
		return fmt.Errorf("failed to subscribe to topic: %s, err: %w", fullTopic, err)
	}
	log.Info("Subscribed to vehicle status", "topic", fullTopic)
	return nil
}

func (s *Server) reportConnectivity() {
	if s.client.IsConnected() {
		metrics.BrokerConnectivityStatus.Set(1)
	} else {
		metrics.BrokerConnectivityStatus.Set(0)
	}
}
