package notifier

import (
	"context"
	"errors"
	"time"

	"github.com/autopeer-io/fleethub/internal/fleethub/core"
	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
	"github.com/autopeer-io/fleethub/internal/pkg/metrics"
	"github.com/autopeer-io/fleethub/pkg/log"
)

// ErrQueueFull is returned by MirrorState when the state was dropped.
var ErrQueueFull = errors.New("outbound queue is full")

// drainTimeout bounds the delivery of the backlog on shutdown.
const drainTimeout = 5 * time.Second

var (
	_ core.Notifier    = (*Queue)(nil)
	_ core.StateMirror = (*Queue)(nil)
)

type job struct {
	kind string
	run  func(ctx context.Context)
}

// Queue buffers notifications and state mirrors in front of slow outbound
// channels. Enqueuing never blocks: a full queue drops the item and counts it.
// A single worker delivers items in the order they were accepted.
type Queue struct {
	notifier core.Notifier
	mirror   core.StateMirror
	jobs     chan job
	logger   log.Logger
}

// NewQueue delivers notifications to notifier and states to mirror. Either may be nil.
func NewQueue(notifier core.Notifier, mirror core.StateMirror, size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{
		notifier: notifier,
		mirror:   mirror,
		jobs:     make(chan job, size),
		logger:   log.WithName("notifier.queue"),
	}
}

func (q *Queue) NotifyGeofence(_ context.Context, ev model.GeofenceEvent) {
	if q.notifier == nil {
		return
	}
	q.enqueue("geofence", func(ctx context.Context) { q.notifier.NotifyGeofence(ctx, ev) })
}

func (q *Queue) NotifyDiagnostic(_ context.Context, d model.Diagnostic) {
	if q.notifier == nil {
		return
	}
	q.enqueue("diagnostic", func(ctx context.Context) { q.notifier.NotifyDiagnostic(ctx, d) })
}

// MirrorState accepts s for asynchronous mirroring. Delivery errors are logged
// by the worker; only a full queue is reported here.
func (q *Queue) MirrorState(_ context.Context, s model.VehicleState) error {
	if q.mirror == nil {
		return nil
	}
	ok := q.enqueue("state", func(ctx context.Context) {
		if err := q.mirror.MirrorState(ctx, s); err != nil {
			q.logger.Warn("Failed to mirror vehicle state", "vehicle", s.ID, "err", err.Error())
		}
	})
	if !ok {
		return ErrQueueFull
	}
	return nil
}

// Start delivers queued items until ctx is done, then flushes the backlog for
// at most drainTimeout.
func (q *Queue) Start(ctx context.Context) error {
	log.Info("Starting outbound queue", "size", cap(q.jobs))

	for {
		select {
		case <-ctx.Done():
			q.drain()
			log.Info("Outbound queue stopped")
			return nil
		case j := <-q.jobs:
			q.run(ctx, j)
		}
	}
}

func (q *Queue) enqueue(kind string, run func(context.Context)) bool {
	select {
	case q.jobs <- job{kind: kind, run: run}:
		metrics.OutboundQueueDepth.Inc()
		return true
	default:
		metrics.OutboundDroppedTotal.WithLabelValues(kind).Inc()
		q.logger.Debug("Outbound queue full, dropping", "kind", kind)
		return false
	}
}

func (q *Queue) run(ctx context.Context, j job) {
	metrics.OutboundQueueDepth.Dec()
	defer func() {
		if r := recover(); r != nil {
			q.logger.Warn("Recovered from panic in outbound delivery", "kind", j.kind, "panic", r)
		}
	}()
	j.run(ctx)
}

func (q *Queue) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case j := <-q.jobs:
			if ctx.Err() != nil {
				metrics.OutboundQueueDepth.Dec()
				metrics.OutboundDroppedTotal.WithLabelValues(j.kind).Inc()
				continue
			}
			q.run(ctx, j)
		default:
			return
		}
	}
}
