// Package execution contains the ExecutionRequest/ExecutionResult data model
// and the state machine one execute() call moves through.
package execution

import (
	"time"

	"github.com/codemode-gw/codemode/internal/domain/catalog"
	"github.com/codemode-gw/codemode/internal/domain/diagnostic"
)

// DefaultTimeout is applied when a request does not specify one.
const DefaultTimeout = 10 * time.Second

// MaxTimeout is the hard ceiling no request may exceed regardless of what it
// requests (spec §4.5: timeout_ms clamped to [1, 10_000]).
const MaxTimeout = 10 * time.Second

// MinTimeout is the floor a request's timeout is clamped to.
const MinTimeout = 1 * time.Millisecond

// ClampTimeout bounds a requested timeout to [MinTimeout, MaxTimeout],
// substituting DefaultTimeout when d <= 0.
func ClampTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	if d < MinTimeout {
		return MinTimeout
	}
	if d > MaxTimeout {
		return MaxTimeout
	}
	return d
}

// Request is the transient input to one execute() call: the user's
// TypeScript source, a clamped timeout, and a Catalog snapshot pinned for
// the lifetime of this request so upstream refreshes cannot mutate its view
// mid-flight (snapshot isolation, spec §3).
type Request struct {
	Code     string
	Timeout  time.Duration
	Snapshot *catalog.Catalog
}

// NewRequest builds a Request, clamping the requested timeout.
func NewRequest(code string, timeout time.Duration, snapshot *catalog.Catalog) Request {
	return Request{Code: code, Timeout: ClampTimeout(timeout), Snapshot: snapshot}
}

// Result is the output of one execute() call. Success is true iff the type
// check passed, the VM settled without an unhandled error, and the deadline
// was not reached.
type Result struct {
	Success     bool                     `json:"success"`
	Stdout      []string                 `json:"stdout"`
	Stderr      []string                 `json:"stderr"`
	ReturnValue any                      `json:"return_value"`
	Diagnostics []diagnostic.Diagnostic  `json:"diagnostics"`
}

// State is a value of the execution state machine (spec §4.4).
type State string

const (
	StateNew              State = "new"
	StateTypechecking     State = "typechecking"
	StateFailedTypecheck  State = "failed_typecheck"
	StateRunning          State = "running"
	StateCompleted        State = "completed"
	StateTimedOut         State = "timed_out"
	StateFailedRuntime    State = "failed_runtime"
	StateDisposed         State = "disposed"
)

// terminalStates are the states from which Disposed is reachable.
var terminalStates = map[State]struct{}{
	StateFailedTypecheck: {},
	StateCompleted:       {},
	StateTimedOut:        {},
	StateFailedRuntime:   {},
}

// IsTerminal reports whether s is one of the states that transitions only
// to Disposed.
func IsTerminal(s State) bool {
	_, ok := terminalStates[s]
	return ok
}

// Machine tracks the current state of one execution and rejects invalid
// transitions, matching the diagram in spec §4.4.
type Machine struct {
	state State
}

// NewMachine creates a Machine in StateNew.
func NewMachine() *Machine {
	return &Machine{state: StateNew}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// validTransitions enumerates the state machine's edges.
var validTransitions = map[State]map[State]bool{
	StateNew:             {StateTypechecking: true},
	StateTypechecking:    {StateFailedTypecheck: true, StateRunning: true},
	StateRunning:         {StateCompleted: true, StateTimedOut: true, StateFailedRuntime: true},
	StateFailedTypecheck: {StateDisposed: true},
	StateCompleted:       {StateDisposed: true},
	StateTimedOut:        {StateDisposed: true},
	StateFailedRuntime:   {StateDisposed: true},
}

// Transition moves the machine to next, returning false if the transition
// is not legal from the current state.
func (m *Machine) Transition(next State) bool {
	edges, ok := validTransitions[m.state]
	if !ok || !edges[next] {
		return false
	}
	m.state = next
	return true
}
