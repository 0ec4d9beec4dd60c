package core

import (
	"context"

	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
)

// Notifier receives the events the hub produces for the outside world.
// Implementations must not block the caller for long; delivery is best effort.
type Notifier interface {
	// NotifyGeofence is called once per geofence membership transition.
	NotifyGeofence(ctx context.Context, ev model.GeofenceEvent)

	// NotifyDiagnostic reports an inbound message that was dropped.
	NotifyDiagnostic(ctx context.Context, d model.Diagnostic)
}

// StateMirror copies accepted vehicle states to an external store.
type StateMirror interface {
	MirrorState(ctx context.Context, s model.VehicleState) error
}
