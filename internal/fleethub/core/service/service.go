package service

import (
	"errors"
	"time"

	"github.com/autopeer-io/fleethub/internal/fleethub/command"
	"github.com/autopeer-io/fleethub/internal/fleethub/geofence"
	"github.com/autopeer-io/fleethub/internal/fleethub/geometry"
	"github.com/autopeer-io/fleethub/internal/fleethub/registry"
)

var (
	ErrVehicleNotFound    = errors.New("vehicle not found")
	ErrVehicleUnavailable = errors.New("vehicle is not available")
	ErrVehicleRestricted  = errors.New("vehicle is inside a restricted zone")
	ErrInvalidPosition    = errors.New("invalid position")
	ErrCommandNotFound    = errors.New("no command in flight")
)

// Service implements the caller-facing use cases of the hub.
// It orchestrates the registry, the geofence monitor and the command dispatcher.
type Service struct {
	registry       *registry.Registry
	geometry       *geometry.Store
	monitor        *geofence.Monitor
	dispatcher     *command.Dispatcher
	confirmTimeout time.Duration
}

// New creates a new instance of the hub core service.
func New(
	reg *registry.Registry,
	geo *geometry.Store,
	monitor *geofence.Monitor,
	dispatcher *command.Dispatcher,
	confirmTimeout time.Duration,
) *Service {
	return &Service{
		registry:       reg,
		geometry:       geo,
		monitor:        monitor,
		dispatcher:     dispatcher,
		confirmTimeout: confirmTimeout,
	}
}
