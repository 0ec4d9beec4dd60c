package service

import (
	"context"
	"fmt"

	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
	"github.com/autopeer-io/fleethub/internal/fleethub/geofence"
)

// ReportPosition feeds a user position into the geofence monitor and returns
// the event it caused, if any.
func (s *Service) ReportPosition(ctx context.Context, subject string, lat, lon float64) (model.GeofenceEvent, bool, error) {
	p := model.Point{Latitude: lat, Longitude: lon}
	if subject == "" || !p.Valid() {
		return model.GeofenceEvent{}, false, fmt.Errorf("%w: subject %q at %v,%v", ErrInvalidPosition, subject, lat, lon)
	}
	ev, ok := s.monitor.Observe(ctx, subject, model.SubjectUser, p)
	return ev, ok, nil
}

// ObserveGeofenceEvents streams the future events of subject until cancel is
// called or the subject is closed.
func (s *Service) ObserveGeofenceEvents(subject string) (<-chan model.GeofenceEvent, func()) {
	return s.monitor.Subscribe(subject)
}

// CloseSubject drops the geofence state of subject.
func (s *Service) CloseSubject(subject string) bool {
	return s.monitor.Close(subject)
}

// SubjectState returns the geofence state of subject.
func (s *Service) SubjectState(subject string) (geofence.SubjectState, bool) {
	return s.monitor.State(subject)
}

// Zones returns the restricted zones.
func (s *Service) Zones() []model.RestrictionZone {
	return s.geometry.Zones()
}

// Borders returns the advisory boundary lines.
func (s *Service) Borders() []model.BoundaryLine {
	return s.geometry.Borders()
}
