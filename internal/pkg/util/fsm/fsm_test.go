package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/looplab/fsm"
	"github.com/stretchr/testify/assert"
)

func newDoor(onOpen func(ctx context.Context, e *fsm.Event) error) *fsm.FSM {
	return fsm.NewFSM("closed",
		fsm.Events{
			{Name: "open", Src: []string{"closed", "open"}, Dst: "open"},
			{Name: "close", Src: []string{"open"}, Dst: "closed"},
		},
		fsm.Callbacks{"enter_open": WrapEvent(onOpen)},
	)
}

func TestFireIgnoresSelfTransition(t *testing.T) {
	calls := 0
	door := newDoor(func(context.Context, *fsm.Event) error { calls++; return nil })

	assert.NoError(t, Fire(context.Background(), door, "open"))
	assert.NoError(t, Fire(context.Background(), door, "open"))
	assert.Equal(t, "open", door.Current())
	assert.Equal(t, 1, calls)
}

func TestFireReportsInvalidEvent(t *testing.T) {
	door := newDoor(func(context.Context, *fsm.Event) error { return nil })

	var invalid fsm.InvalidEventError
	assert.True(t, errors.As(Fire(context.Background(), door, "close"), &invalid))
}

func TestWrapEventStoresError(t *testing.T) {
	boom := errors.New("jammed")
	door := newDoor(func(context.Context, *fsm.Event) error { return boom })

	assert.ErrorIs(t, Fire(context.Background(), door, "open"), boom)
}
