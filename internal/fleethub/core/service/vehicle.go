package service

import (
	"context"
	"fmt"
	"time"

	"github.com/autopeer-io/fleethub/internal/fleethub/command"
	"github.com/autopeer-io/fleethub/internal/fleethub/containment"
	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
	"github.com/autopeer-io/fleethub/internal/pkg/metrics"
	"github.com/autopeer-io/fleethub/pkg/log"
)

// Unlock is an accepted unlock request.
type Unlock struct {
	*command.Pending

	// Before is the vehicle state the request was checked against.
	Before model.VehicleState
}

// ListVehicles returns a snapshot of every known vehicle, sorted by ID.
func (s *Service) ListVehicles() []model.VehicleState {
	return s.registry.List()
}

// GetVehicle returns the current state of one vehicle.
func (s *Service) GetVehicle(id string) (model.VehicleState, error) {
	v, ok := s.registry.Get(id)
	if !ok {
		return model.VehicleState{}, fmt.Errorf("%w: %s", ErrVehicleNotFound, id)
	}
	return v, nil
}

// RemoveVehicle forgets a vehicle and its geofence state.
func (s *Service) RemoveVehicle(id string) error {
	if !s.registry.Remove(id) {
		return fmt.Errorf("%w: %s", ErrVehicleNotFound, id)
	}
	s.monitor.Close(id)
	metrics.VehiclesTracked.Set(float64(s.registry.Len()))
	log.Info("Vehicle removed", "vehicle", id)
	return nil
}

// RequestUnlock issues an unlock command. Unknown and unavailable vehicles are
// refused, and so is a vehicle parked inside a restricted zone.
func (s *Service) RequestUnlock(ctx context.Context, id string) (*Unlock, error) {
	v, err := s.GetVehicle(id)
	if err != nil {
		return nil, err
	}
	if !v.Available {
		return nil, fmt.Errorf("%w: %s", ErrVehicleUnavailable, id)
	}
	if zone, inside := containment.NearestZone(v.Position, s.geometry.Zones()); inside {
		return nil, fmt.Errorf("%w: %s is in %s", ErrVehicleRestricted, id, zone.ID)
	}

	p, err := s.dispatcher.Send(ctx, id, model.ActionUnlock)
	if err != nil {
		return nil, fmt.Errorf("failed to send unlock to %s: %w", id, err)
	}
	log.Info("Unlock requested", "vehicle", id, "token", p.Token())
	return &Unlock{Pending: p, Before: v}, nil
}

// ConfirmUnlock waits for the broker ack of u and then for the vehicle to
// report itself unavailable. A zero timeout uses the configured default.
func (s *Service) ConfirmUnlock(ctx context.Context, u *Unlock, timeout time.Duration) (model.VehicleState, error) {
	if timeout <= 0 {
		timeout = s.confirmTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := u.Wait(ctx); err != nil {
		return model.VehicleState{}, err
	}
	select {
	case <-u.Done():
	default:
		return model.VehicleState{}, fmt.Errorf("%w: no broker ack within %s", command.ErrCommandTimeout, timeout)
	}

	deadline, _ := ctx.Deadline()
	return s.dispatcher.AwaitConfirmation(ctx, u.Before.ID, u.Before.Version, time.Until(deadline))
}

// LookupCommand returns an in-flight command by its correlation token.
func (s *Service) LookupCommand(token string) (model.Command, bool) {
	p, ok := s.dispatcher.Lookup(token)
	if !ok {
		return model.Command{}, false
	}
	cmd, _ := p.Result()
	return cmd, true
}

// CancelCommand abandons an in-flight command. A broker ack arriving later no
// longer marks the vehicle unavailable. The command is returned as resolved;
// one that completed in the meantime keeps its own status.
func (s *Service) CancelCommand(token string) (model.Command, error) {
	p, ok := s.dispatcher.Lookup(token)
	if !ok {
		return model.Command{}, fmt.Errorf("%w: %s", ErrCommandNotFound, token)
	}
	if p.Cancel() {
		log.Info("Command cancelled", "token", token)
	}
	cmd, _ := p.Result()
	return cmd, nil
}
