// Package ingest turns inbound status messages into registry updates.
package ingest

import (
	"context"
	"fmt"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/fleethub/internal/fleethub/core"
	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
	"github.com/autopeer-io/fleethub/internal/fleethub/registry"
	"github.com/autopeer-io/fleethub/internal/pkg/metrics"
	"github.com/autopeer-io/fleethub/pkg/log"
	"github.com/autopeer-io/fleethub/pkg/mqtt/topic"
)

// PositionSink receives the position of every accepted status.
type PositionSink interface {
	Observe(ctx context.Context, subjectID string, kind model.SubjectKind, p model.Point) (model.GeofenceEvent, bool)
}

// Ingestor parses status messages and applies them to the registry.
// OnMessage is safe for concurrent use and never returns an error.
type Ingestor struct {
	topics   *topic.Builder
	registry *registry.Registry
	notifier core.Notifier
	sink     PositionSink
	mirror   core.StateMirror
	clock    clock.PassiveClock
	logger   log.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithPositionSink forwards accepted positions to sink. The sink is called
// while the vehicle's registry entry is locked and must not block.
func WithPositionSink(sink PositionSink) Option {
	return func(i *Ingestor) { i.sink = sink }
}

// WithStateMirror copies every accepted state to m. Like the sink, m must not
// block; wrap slow stores in a notifier.Queue.
func WithStateMirror(m core.StateMirror) Option {
	return func(i *Ingestor) { i.mirror = m }
}

// WithClock replaces the clock stamping messages without an embedded timestamp.
func WithClock(c clock.PassiveClock) Option {
	return func(i *Ingestor) { i.clock = c }
}

func New(topics *topic.Builder, reg *registry.Registry, notifier core.Notifier, opts ...Option) *Ingestor {
	i := &Ingestor{
		topics:   topics,
		registry: reg,
		notifier: notifier,
		clock:    clock.RealClock{},
		logger:   log.WithName("ingest"),
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// OnMessage handles one inbound message. It matches the mqtt.MessageHandler signature.
func (i *Ingestor) OnMessage(ctx context.Context, raw string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error(fmt.Errorf("%v", r), "Recovered from panic while ingesting", "topic", raw)
		}
	}()

	t, ok := ParseTopic(i.topics, raw)
	if !ok {
		metrics.MessagesReceivedTotal.WithLabelValues(KindUnrecognized.String()).Inc()
		metrics.MessagesDroppedTotal.WithLabelValues("topic").Inc()
		i.logger.Debug("Dropping message on foreign topic", "topic", raw)
		return
	}
	metrics.MessagesReceivedTotal.WithLabelValues(t.Kind.String()).Inc()

	switch t.Kind {
	case KindStatus:
		i.handleStatus(ctx, raw, t.VehicleID, payload)
	case KindCommand:
		metrics.MessagesDroppedTotal.WithLabelValues("echo").Inc()
		i.logger.Debug("Dropping command echo", "topic", raw)
	default:
		metrics.MessagesDroppedTotal.WithLabelValues("topic").Inc()
		i.logger.Debug("Dropping message of unrecognized kind", "topic", raw)
	}
}

func (i *Ingestor) handleStatus(ctx context.Context, raw, id string, payload []byte) {
	status, ts, err := decodeStatus(payload)
	if err != nil {
		metrics.MessagesDroppedTotal.WithLabelValues("malformed").Inc()
		i.logger.Warn("Dropping malformed status", "vehicle", id, "err", err.Error())
		if i.notifier != nil {
			i.notifier.NotifyDiagnostic(ctx, model.Diagnostic{
				Kind:      model.DiagnosticMalformedPayload,
				Topic:     raw,
				VehicleID: id,
				Reason:    err.Error(),
				Time:      i.clock.Now(),
			})
		}
		return
	}
	if ts.IsZero() {
		ts = i.clock.Now()
	}

	// Mirror and sink run inside the vehicle's writer lane, so they see the
	// states of one vehicle in commit order even when deliveries race.
	state, applied := i.registry.UpsertFunc(id, status, ts, func(s model.VehicleState) {
		if i.mirror != nil {
			if err := i.mirror.MirrorState(ctx, s); err != nil {
				i.logger.Debug("State not mirrored", "vehicle", id, "err", err.Error())
			}
		}
		if i.sink != nil {
			i.sink.Observe(ctx, id, model.SubjectVehicle, s.Position)
		}
	})
	metrics.VehiclesTracked.Set(float64(i.registry.Len()))
	if !applied {
		metrics.MessagesDroppedTotal.WithLabelValues("stale").Inc()
		i.logger.Debug("Ignoring stale status", "vehicle", id, "timestamp", ts, "current", state.Timestamp)
	}
}
