// Package notifier implements core.Notifier on top of the hub's outbound channels.
package notifier

import (
	"context"

	"github.com/autopeer-io/fleethub/internal/fleethub/core"
	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
	"github.com/autopeer-io/fleethub/pkg/log"
)

var _ core.Notifier = (*LogNotifier)(nil)

// LogNotifier writes every event to the structured log.
type LogNotifier struct {
	logger log.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: log.WithName("notifier")}
}

func (n *LogNotifier) NotifyGeofence(_ context.Context, ev model.GeofenceEvent) {
	n.logger.Info("Geofence alert",
		"subject", ev.SubjectID,
		"subjectKind", ev.SubjectKind,
		"type", ev.Type,
		"zone", ev.ZoneID,
		"latitude", ev.Position.Latitude,
		"longitude", ev.Position.Longitude,
	)
}

func (n *LogNotifier) NotifyDiagnostic(_ context.Context, d model.Diagnostic) {
	n.logger.Warn("Inbound message dropped",
		"kind", d.Kind,
		"topic", d.Topic,
		"vehicle", d.VehicleID,
		"reason", d.Reason,
	)
}

// Fanout delivers every event to each notifier in order.
type Fanout []core.Notifier

var _ core.Notifier = Fanout(nil)

func (f Fanout) NotifyGeofence(ctx context.Context, ev model.GeofenceEvent) {
	for _, n := range f {
		n.NotifyGeofence(ctx, ev)
	}
}

func (f Fanout) NotifyDiagnostic(ctx context.Context, d model.Diagnostic) {
	for _, n := range f {
		n.NotifyDiagnostic(ctx, d)
	}
}
