// Package fleethub assembles the fleet telemetry hub from its components.
package fleethub

import (
	"context"
	"time"

	"github.com/autopeer-io/fleethub/internal/fleethub/server"
	"github.com/autopeer-io/fleethub/pkg/log"
)

// FleetHubServer is the main application struct of the hub.
type FleetHubServer struct {
	serverManager *server.Manager
	startedAt     time.Time
}

// Run blocks until ctx is done or a server fails.
func (a *FleetHubServer) Run(ctx context.Context) error {
	log.Info("Starting FleetHub Application...")
	err := a.serverManager.Start(ctx)
	log.Info("FleetHub stopped", "uptime", time.Since(a.startedAt).Round(time.Second).String())
	return err
}
