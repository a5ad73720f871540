package status

import (
	"testing"

	"github.com/matheus3301/matchchat/internal/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	assert.Equal(t, Unloaded, m.Current())
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		path []State
	}{
		{[]State{Loading, Ready}},
		{[]State{Loading, Unavailable, Loading, Ready}},
		{[]State{Ready, Stale, Ready}},
		{[]State{Loading, AuthRequired, Loading, Ready}},
		{[]State{Ready, Closed}},
	}
	for _, tt := range tests {
		m := NewMachine(nil)
		for _, s := range tt.path {
			require.NoError(t, m.Transition(s), "path %v at %s", tt.path, s)
		}
		assert.Equal(t, tt.path[len(tt.path)-1], m.Current())
	}
}

func TestSelfTransitionIsNoop(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	require.NoError(t, m.Transition(Ready))
	require.NoError(t, m.Transition(Ready))
	assert.Len(t, ch, 1)
}

// A list that loaded once never goes back to blocking on a later failure.
func TestReadyCannotBecomeUnavailable(t *testing.T) {
	m := NewMachine(nil)
	require.NoError(t, m.Transition(Ready))
	assert.Error(t, m.Transition(Unavailable))
	assert.Equal(t, Ready, m.Current())
}

func TestClosedIsTerminal(t *testing.T) {
	m := NewMachine(nil)
	require.NoError(t, m.Transition(Closed))
	assert.Error(t, m.Transition(Loading))
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	require.NoError(t, m.Transition(Loading))

	evt := <-ch
	assert.Equal(t, bus.StatusChanged, evt.Kind)
	change, ok := evt.Payload.(StatusChange)
	require.True(t, ok, "payload type = %T", evt.Payload)
	assert.Equal(t, StatusChange{From: Unloaded, To: Loading}, change)
}

func TestBlocking(t *testing.T) {
	assert.True(t, Unavailable.Blocking())
	assert.True(t, AuthRequired.Blocking())
	assert.False(t, Stale.Blocking())
	assert.False(t, Ready.Blocking())
}
