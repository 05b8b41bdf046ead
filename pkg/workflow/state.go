package workflow

import "fmt"

// State is where a run stands in the portal workflow.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateReportRequested
	StateExportTriggered
	StateArtifactCaptured
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateReportRequested:
		return "report_requested"
	case StateExportTriggered:
		return "export_triggered"
	case StateArtifactCaptured:
		return "artifact_captured"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state by name in reports.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal reports whether no further transition is possible.
func IsTerminal(s State) bool {
	return s == StateClosed
}

// Machine tracks the state of one run. Forward transitions move one step at
// a time; Close is allowed from anywhere.
type Machine struct {
	state   State
	history []State
}

// NewMachine returns a machine in StateUnauthenticated.
func NewMachine() *Machine {
	return &Machine{
		state:   StateUnauthenticated,
		history: []State{StateUnauthenticated},
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// History returns every state visited, in order.
func (m *Machine) History() []State {
	out := make([]State, len(m.history))
	copy(out, m.history)
	return out
}

// Advance moves the machine to to, rejecting anything but the next step.
func (m *Machine) Advance(to State) error {
	if !isAllowedTransition(m.state, to) {
		return fmt.Errorf("disallowed transition: %s -> %s", m.state, to)
	}
	m.state = to
	m.history = append(m.history, to)
	return nil
}

// Close performs the teardown transition. It reports false when the machine
// was already closed.
func (m *Machine) Close() bool {
	if IsTerminal(m.state) {
		return false
	}
	m.state = StateClosed
	m.history = append(m.history, StateClosed)
	return true
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateUnauthenticated:
		return to == StateAuthenticated
	case StateAuthenticated:
		return to == StateReportRequested
	case StateReportRequested:
		return to == StateExportTriggered
	case StateExportTriggered:
		return to == StateArtifactCaptured
	default:
		return false
	}
}
