package server

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/fleethub/internal/fleethub/core/service"
	"github.com/autopeer-io/fleethub/internal/fleethub/server/grpc"
	"github.com/autopeer-io/fleethub/internal/fleethub/server/http"
	"github.com/autopeer-io/fleethub/internal/fleethub/server/mqtt"
	"github.com/autopeer-io/fleethub/pkg/log"
	pkgmqtt "github.com/autopeer-io/fleethub/pkg/mqtt"
)

// Server defines the common interface for all sub-servers (grpc, mqtt, http)
// and background workers such as the command dispatcher.
type Server interface {
	Start(ctx context.Context) error
}

// Manager manages the lifecycle of all protocol servers.
type Manager struct {
	servers []Server
}

// NewManager creates a new server manager and initializes all sub-servers.
// Workers run alongside the servers and stop with them.
func NewManager(cfg *Config, svc *service.Service, client pkgmqtt.Client, handler pkgmqtt.MessageHandler, workers ...Server) (*Manager, error) {
	var servers []Server

	// 1. Initialize MQTT Server (The Data Plane Gateway)
	mqttSrv := mqtt.NewServer(client, cfg.MqttOptions.Topics(), handler)
	servers = append(servers, mqttSrv)

	// 2. Initialize gRPC Server (Health)
	grpcSrv, err := grpc.NewServer(cfg.GrpcOptions, mqttSrv.Ready)
	if err != nil {
		return nil, fmt.Errorf("failed to init grpc server: %w", err)
	}
	servers = append(servers, grpcSrv)

	// 3. Initialize HTTP Server (API, Health & Metrics)
	httpSrv := http.NewServer(cfg.HttpOptions, svc, mqttSrv.Ready)
	servers = append(servers, httpSrv)

	servers = append(servers, workers...)

	return &Manager{
		servers: servers,
	}, nil
}

// Start launches all servers in parallel and waits for termination.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range m.servers {
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	log.Info("All servers starting...")
	return g.Wait()
}
