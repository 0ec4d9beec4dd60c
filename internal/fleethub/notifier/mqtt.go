package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/autopeer-io/fleethub/internal/fleethub/core"
	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
	"github.com/autopeer-io/fleethub/pkg/log"
	pkgmqtt "github.com/autopeer-io/fleethub/pkg/mqtt"
	"github.com/autopeer-io/fleethub/pkg/mqtt/topic"
)

var _ core.Notifier = (*MQTTNotifier)(nil)

// MQTTNotifier publishes geofence events back onto the broker so map clients
// can subscribe to {namespace}/{subjectID}/{kind}. Diagnostics stay local.
type MQTTNotifier struct {
	client pkgmqtt.Client
	topics *topic.Builder
	kind   string
	logger log.Logger
}

// NewMQTTNotifier shares the hub's client; it never starts or stops it.
func NewMQTTNotifier(client pkgmqtt.Client, topics *topic.Builder, kind string) *MQTTNotifier {
	return &MQTTNotifier{
		client: client,
		topics: topics,
		kind:   kind,
		logger: log.WithName("notifier.mqtt"),
	}
}

func (n *MQTTNotifier) NotifyGeofence(ctx context.Context, ev model.GeofenceEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.Error(err, "Failed to marshal geofence event")
		return
	}

	dest := n.topics.Build(ev.SubjectID, n.kind)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := n.client.Publish(ctx, dest, 0, false, payload, pkgmqtt.WithContentType("application/json")); err != nil {
		n.logger.Warn("Failed to publish geofence event", "topic", dest, "err", err.Error())
	}
}

func (n *MQTTNotifier) NotifyDiagnostic(context.Context, model.Diagnostic) {}
