package session

import (
	"fmt"
	"sync"
)

// State is one node of the session lifecycle state machine from §4.L.
type State string

const (
	Idle         State = "Idle"
	Initializing State = "Initializing"
	Running      State = "Running"
	Stopping     State = "Stopping"
	Stopped      State = "Stopped"
	Error        State = "Error"
)

// transitions enumerates the edges allowed out of each state. Only Stopped
// and Error are terminal.
var transitions = map[State][]State{
	Idle:         {Initializing},
	Initializing: {Running, Error},
	Running:      {Stopping, Error},
	Stopping:     {Stopped, Error},
	Stopped:      {},
	Error:        {},
}

// stateMachine guards transitions with a mutex; callers never observe a
// torn state under concurrent Start/Stop calls.
type stateMachine struct {
	mu    sync.Mutex
	state State
}

func newStateMachine() *stateMachine {
	return &stateMachine{state: Idle}
}

func (m *stateMachine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// transition moves to next if the edge is legal, returning false (and
// leaving state unchanged) otherwise. The caller decides whether an
// illegal transition is an error or a no-op — per §4.L, "start" on an
// already-Running session is specifically a no-op, not a failure.
func (m *stateMachine) transition(next State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			return true
		}
	}
	return false
}

func (m *stateMachine) String() string {
	return fmt.Sprintf("session.State(%s)", m.current())
}
