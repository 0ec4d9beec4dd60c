// Package fsm holds helpers around looplab/fsm.
package fsm

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// WrapEvent adapts an error-returning action to a looplab callback. A
// non-nil error is stored on the event and returned by FSM.Event.
func WrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Err = err
		}
	}
}

// Fire sends event to machine. Re-entering the current state is not an error.
func Fire(ctx context.Context, machine *fsm.FSM, event string, args ...any) error {
	err := machine.Event(ctx, event, args...)
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return err
}
