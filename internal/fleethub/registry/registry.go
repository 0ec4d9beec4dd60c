// Package registry keeps the authoritative in-memory state of every unit.
package registry

import (
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
)

// Registry maps vehicle IDs to their latest state.
//
// Every ID owns an entry with its own mutex, so writers to different vehicles
// never contend. Committed states are published through an atomic pointer swap:
// readers never take a lock and never observe a half-written state.
type Registry struct {
	entries sync.Map // string -> *entry
	size    atomic.Int64
}

type entry struct {
	mu      sync.Mutex
	removed bool
	cur     atomic.Pointer[snapshot]
}

// snapshot is an immutable committed state plus the channel closed when it is replaced.
type snapshot struct {
	state   model.VehicleState
	present bool
	changed chan struct{}
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{}
}

// Upsert applies an authoritative status for id stamped with ts.
// A status older than the stored one is ignored, so out-of-order delivery
// converges on the newest timestamp. A status whose position is not finite and
// in range is refused. It returns the state now stored and whether this call
// changed it.
func (r *Registry) Upsert(id string, status model.VehicleStatus, ts time.Time) (model.VehicleState, bool) {
	return r.UpsertFunc(id, status, ts, nil)
}

// UpsertFunc is Upsert with a hook. When the status is applied, onCommit runs
// with the new state before the writer lane of id is released, so hooks of the
// same vehicle observe states in commit order. onCommit must not block.
func (r *Registry) UpsertFunc(id string, status model.VehicleStatus, ts time.Time, onCommit func(model.VehicleState)) (model.VehicleState, bool) {
	if !status.Position.Valid() {
		s, _ := r.Get(id)
		return s, false
	}

	for {
		if s, applied, retry := r.upsert(id, status, ts, onCommit); !retry {
			return s, applied
		}
	}
}

// upsert makes one attempt under the writer lane of id. retry is set when the
// entry was removed concurrently and a fresh one must be used.
func (r *Registry) upsert(id string, status model.VehicleStatus, ts time.Time, onCommit func(model.VehicleState)) (s model.VehicleState, applied, retry bool) {
	e := r.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return model.VehicleState{}, false, true
	}

	old := e.cur.Load()
	if old.present && ts.Before(old.state.Timestamp) {
		return old.state, false, false
	}

	next := model.VehicleState{
		ID:        id,
		Position:  status.Position,
		Battery:   model.ClampBattery(status.Battery),
		Available: status.Available,
		Timestamp: ts,
		Name:      status.Name,
	}
	if next.Name == nil && old.present {
		next.Name = old.state.Name
	}
	next = r.commit(e, old, next)
	if onCommit != nil {
		onCommit(next)
	}
	return next, true, false
}

// Load inserts a bulk snapshot, applying the same ordering and position rules per item.
func (r *Registry) Load(states []model.VehicleState) int {
	applied := 0
	for _, s := range states {
		status := model.VehicleStatus{Position: s.Position, Battery: s.Battery, Available: s.Available, Name: s.Name}
		if _, ok := r.Upsert(s.ID, status, s.Timestamp); ok {
			applied++
		}
	}
	return applied
}

// SetAvailability records an optimistic local availability change. The stored
// timestamp is kept so the next authoritative Upsert always overrides it.
func (r *Registry) SetAvailability(id string, available bool) (model.VehicleState, bool) {
	v, ok := r.entries.Load(id)
	if !ok {
		return model.VehicleState{}, false
	}
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()

	old := e.cur.Load()
	if e.removed || !old.present {
		return model.VehicleState{}, false
	}

	next := old.state
	next.Available = available
	next.Optimistic = true
	return r.commit(e, old, next), true
}

// Get returns the current state of id.
func (r *Registry) Get(id string) (model.VehicleState, bool) {
	v, ok := r.entries.Load(id)
	if !ok {
		return model.VehicleState{}, false
	}
	s := v.(*entry).cur.Load()
	return s.state, s.present
}

// List returns a point-in-time copy of every known vehicle, sorted by ID.
// The slice is owned by the caller and never touched by later writes.
func (r *Registry) List() []model.VehicleState {
	out := make([]model.VehicleState, 0, r.size.Load())
	r.entries.Range(func(_, v any) bool {
		if s := v.(*entry).cur.Load(); s.present {
			out = append(out, s.state)
		}
		return true
	})
	slices.SortFunc(out, func(a, b model.VehicleState) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Len returns the number of known vehicles.
func (r *Registry) Len() int {
	return int(r.size.Load())
}

// Remove deletes id. Waiters on id are released with the removal.
func (r *Registry) Remove(id string) bool {
	v, ok := r.entries.Load(id)
	if !ok {
		return false
	}
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return false
	}
	e.removed = true
	r.entries.CompareAndDelete(id, e)

	old := e.cur.Load()
	if old.present {
		r.size.Add(-1)
	}
	e.cur.Store(&snapshot{changed: make(chan struct{})})
	close(old.changed)
	return old.present
}

// WaitFor blocks until the state of id satisfies pred or ctx is done. The
// current state is checked first; a vehicle that does not exist yet is waited for.
func (r *Registry) WaitFor(ctx context.Context, id string, pred func(model.VehicleState) bool) (model.VehicleState, error) {
	for {
		e := r.entry(id)
		s := e.cur.Load()
		if s.present && pred(s.state) {
			return s.state, nil
		}
		select {
		case <-s.changed:
		case <-ctx.Done():
			return s.state, ctx.Err()
		}
	}
}

func (r *Registry) entry(id string) *entry {
	if v, ok := r.entries.Load(id); ok {
		return v.(*entry)
	}
	e := &entry{}
	e.cur.Store(&snapshot{changed: make(chan struct{})})
	v, _ := r.entries.LoadOrStore(id, e)
	return v.(*entry)
}

// commit publishes next and returns it as stored. Callers hold e.mu.
func (r *Registry) commit(e *entry, old *snapshot, next model.VehicleState) model.VehicleState {
	next.Version = old.state.Version + 1
	if !old.present {
		r.size.Add(1)
	}
	e.cur.Store(&snapshot{state: next, present: true, changed: make(chan struct{})})
	close(old.changed)
	return next
}
