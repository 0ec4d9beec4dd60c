package geofence

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
	fsmutil "github.com/autopeer-io/fleethub/internal/pkg/util/fsm"
)

// Subject states.
const (
	StateUnknown = "unknown"
	StateOutside = "outside"
	StateInside  = "inside"
)

const (
	// EventObserveInside is fired for a position inside some zone.
	EventObserveInside = "observe_inside"
	// EventObserveOutside is fired for a position inside no zone.
	EventObserveOutside = "observe_outside"
)

// subjectMachine wraps the hysteresis state machine of one subject.
// Transitions into a state fire the enter callbacks; staying in a state is a
// fsm.NoTransitionError and fires nothing.
type subjectMachine struct {
	*fsm.FSM

	hasAlerted bool

	// emitted is set by a callback during a transition and drained by the caller.
	emitted  *model.GeofenceEventType
	emitExit bool
}

func newSubjectMachine(emitExit bool) *subjectMachine {
	m := &subjectMachine{emitExit: emitExit}

	events := fsm.Events{
		{Name: EventObserveInside, Src: []string{StateUnknown, StateOutside, StateInside}, Dst: StateInside},
		{Name: EventObserveOutside, Src: []string{StateUnknown, StateOutside, StateInside}, Dst: StateOutside},
	}

	callbacks := fsm.Callbacks{
		"enter_" + StateInside:  fsmutil.WrapEvent(m.ActionEnterInside),
		"enter_" + StateOutside: fsmutil.WrapEvent(m.ActionEnterOutside),
	}

	m.FSM = fsm.NewFSM(StateUnknown, events, callbacks)
	return m
}

// ActionEnterInside alerts on outside -> inside. The first observation only sets state.
func (m *subjectMachine) ActionEnterInside(_ context.Context, e *fsm.Event) error {
	if e.Src == StateOutside && !m.hasAlerted {
		m.hasAlerted = true
		t := model.GeofenceEntered
		m.emitted = &t
	}
	return nil
}

// ActionEnterOutside re-arms the alert on inside -> outside.
func (m *subjectMachine) ActionEnterOutside(_ context.Context, e *fsm.Event) error {
	if e.Src != StateInside {
		return nil
	}
	m.hasAlerted = false
	if m.emitExit {
		t := model.GeofenceExited
		m.emitted = &t
	}
	return nil
}
