package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/matchchat/internal/bus"
)

// State is the availability of the conversation list as seen by the presentation layer.
type State string

const (
	Unloaded     State = "UNLOADED"
	Loading      State = "LOADING"
	Ready        State = "READY"
	Stale        State = "STALE"
	Unavailable  State = "UNAVAILABLE"
	AuthRequired State = "AUTH_REQUIRED"
	Closed       State = "CLOSED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Unloaded:     {Loading, Ready, Stale, Unavailable, AuthRequired, Closed},
	Loading:      {Ready, Stale, Unavailable, AuthRequired, Closed},
	Ready:        {Loading, Stale, AuthRequired, Closed},
	Stale:        {Loading, Ready, AuthRequired, Closed},
	Unavailable:  {Loading, Ready, AuthRequired, Closed},
	AuthRequired: {Loading, Ready, Closed},
	Closed:       {},
}

// Blocking reports whether the state should be surfaced as a blocking error.
func (s State) Blocking() bool {
	return s == Unavailable || s == AuthRequired
}

// Machine tracks and enforces availability transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Unloaded state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Unloaded,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Moving to the current state is a no-op.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.bus.Emit(bus.StatusChanged, StatusChange{From: from, To: to})
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
