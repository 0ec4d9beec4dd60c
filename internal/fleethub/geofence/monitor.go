// Package geofence tracks subjects against the restricted zones and alerts
// once per entry.
package geofence

import (
	"context"
	"sync"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/fleethub/internal/fleethub/containment"
	"github.com/autopeer-io/fleethub/internal/fleethub/core"
	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
	"github.com/autopeer-io/fleethub/internal/pkg/metrics"
	fsmutil "github.com/autopeer-io/fleethub/internal/pkg/util/fsm"
	"github.com/autopeer-io/fleethub/pkg/log"
)

// watcherBuffer is the per-subscriber event backlog. A subscriber that lets it
// fill up is disconnected.
const watcherBuffer = 16

// ZoneSource provides the zones positions are checked against.
type ZoneSource interface {
	Zones() []model.RestrictionZone
}

// SubjectState is a point-in-time view of one subject.
type SubjectState struct {
	ID         string            `json:"id"`
	Kind       model.SubjectKind `json:"kind"`
	State      string            `json:"state"`
	ZoneID     string            `json:"zoneID,omitempty"`
	HasAlerted bool              `json:"hasAlerted"`
}

type subject struct {
	mu      sync.Mutex
	id      string
	kind    model.SubjectKind
	machine *subjectMachine
	zoneID  string
	closed  bool
}

type watcher struct {
	ch   chan model.GeofenceEvent
	once sync.Once
}

func (w *watcher) close() { w.once.Do(func() { close(w.ch) }) }

// Monitor owns the geofence state of every subject.
type Monitor struct {
	zones    ZoneSource
	notifier core.Notifier
	emitExit bool
	clock    clock.PassiveClock
	logger   log.Logger

	mu       sync.RWMutex
	subjects map[string]*subject
	watchers map[string]map[*watcher]struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithExitEvents toggles exited events. They are on by default.
func WithExitEvents(enabled bool) Option {
	return func(m *Monitor) { m.emitExit = enabled }
}

// WithClock replaces the clock stamping events.
func WithClock(c clock.PassiveClock) Option {
	return func(m *Monitor) { m.clock = c }
}

func New(zones ZoneSource, notifier core.Notifier, opts ...Option) *Monitor {
	m := &Monitor{
		zones:    zones,
		notifier: notifier,
		emitExit: true,
		clock:    clock.RealClock{},
		logger:   log.WithName("geofence"),
		subjects: make(map[string]*subject),
		watchers: make(map[string]map[*watcher]struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Observe feeds one position of a subject through its state machine and
// returns the event it produced, if any. Observations of the same subject are
// applied in call order. Subscribers get the event before the subject is
// released; the notifier is called after.
func (m *Monitor) Observe(ctx context.Context, id string, kind model.SubjectKind, p model.Point) (model.GeofenceEvent, bool) {
	var zones []model.RestrictionZone
	if m.zones != nil {
		zones = m.zones.Zones()
	}
	zone, inside := containment.Locate(p, zones, func(z model.RestrictionZone, err error) {
		m.logger.Warn("Skipping degenerate zone", "zone", z.ID, "err", err.Error())
	})

	for {
		s := m.subject(id, kind)
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			continue
		}
		ev, ok := m.transition(ctx, s, zone, inside, p)
		if ok {
			m.broadcast(ev)
		}
		s.mu.Unlock()

		if ok && m.notifier != nil {
			m.notifier.NotifyGeofence(ctx, ev)
		}
		return ev, ok
	}
}

// transition runs the state machine. Callers hold s.mu.
func (m *Monitor) transition(ctx context.Context, s *subject, zone model.RestrictionZone, inside bool, p model.Point) (model.GeofenceEvent, bool) {
	event := EventObserveOutside
	if inside {
		event = EventObserveInside
	}

	prevZone := s.zoneID
	s.machine.emitted = nil
	if err := fsmutil.Fire(context.WithoutCancel(ctx), s.machine.FSM, event); err != nil {
		m.logger.Error(err, "Geofence transition failed", "subject", s.id, "event", event)
		return model.GeofenceEvent{}, false
	}

	if inside {
		s.zoneID = zone.ID
	} else {
		s.zoneID = ""
	}

	if s.machine.emitted == nil {
		return model.GeofenceEvent{}, false
	}
	ev := model.GeofenceEvent{
		SubjectID:   s.id,
		SubjectKind: s.kind,
		Type:        *s.machine.emitted,
		ZoneID:      zone.ID,
		Position:    p,
		Time:        m.clock.Now(),
	}
	if ev.Type == model.GeofenceExited {
		ev.ZoneID = prevZone
	}
	return ev, true
}

// broadcast records ev and hands it to the subscribers of its subject.
// A subscriber whose backlog is full is closed rather than silently skipped.
func (m *Monitor) broadcast(ev model.GeofenceEvent) {
	metrics.GeofenceEventsTotal.WithLabelValues(string(ev.Type), string(ev.SubjectKind)).Inc()
	m.logger.Info("Geofence event", "subject", ev.SubjectID, "kind", ev.SubjectKind, "type", ev.Type, "zone", ev.ZoneID)

	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.watchers[ev.SubjectID]
	for w := range set {
		select {
		case w.ch <- ev:
		default:
			m.logger.Warn("Disconnecting slow geofence subscriber", "subject", ev.SubjectID)
			delete(set, w)
			w.close()
		}
	}
	if len(set) == 0 {
		delete(m.watchers, ev.SubjectID)
	}
}

// Subscribe returns a channel receiving every future event of subject id.
// The channel is closed by cancel and by Close. It is also closed once the
// subscriber falls watcherBuffer events behind.
func (m *Monitor) Subscribe(id string) (<-chan model.GeofenceEvent, func()) {
	w := &watcher{ch: make(chan model.GeofenceEvent, watcherBuffer)}

	m.mu.Lock()
	set, ok := m.watchers[id]
	if !ok {
		set = make(map[*watcher]struct{})
		m.watchers[id] = set
	}
	set[w] = struct{}{}
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if set, ok := m.watchers[id]; ok {
			delete(set, w)
			if len(set) == 0 {
				delete(m.watchers, id)
			}
		}
		m.mu.Unlock()
		w.close()
	}
	return w.ch, cancel
}

// Close drops all state of subject id and closes its subscriptions.
// It reports whether the subject had any state or subscribers.
func (m *Monitor) Close(id string) bool {
	m.mu.Lock()
	s, hadState := m.subjects[id]
	delete(m.subjects, id)
	ws := m.watchers[id]
	delete(m.watchers, id)
	metrics.GeofenceSubjects.Set(float64(len(m.subjects)))
	m.mu.Unlock()

	if hadState {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	}
	for w := range ws {
		w.close()
	}
	return hadState || len(ws) > 0
}

// State returns the current state of subject id.
func (m *Monitor) State(id string) (SubjectState, bool) {
	m.mu.RLock()
	s, ok := m.subjects[id]
	m.mu.RUnlock()
	if !ok {
		return SubjectState{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return SubjectState{
		ID:         s.id,
		Kind:       s.kind,
		State:      s.machine.Current(),
		ZoneID:     s.zoneID,
		HasAlerted: s.machine.hasAlerted,
	}, true
}

// Len returns the number of subjects with state.
func (m *Monitor) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subjects)
}

func (m *Monitor) subject(id string, kind model.SubjectKind) *subject {
	m.mu.RLock()
	s, ok := m.subjects[id]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subjects[id]; ok {
		return s
	}
	s = &subject{id: id, kind: kind, machine: newSubjectMachine(m.emitExit)}
	m.subjects[id] = s
	metrics.GeofenceSubjects.Set(float64(len(m.subjects)))
	return s
}
