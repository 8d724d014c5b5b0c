package director

import "time"

// switchStateMachine holds the current output state and its entry time,
// enforcing minimum-dwell discipline (spec.md §4.c). It is not safe for
// concurrent use; the Director's own mutex protects it.
type switchStateMachine struct {
	state   SwitchState
	entered time.Time
}

func newSwitchStateMachine(now time.Time) *switchStateMachine {
	return &switchStateMachine{state: StateWide, entered: now}
}

// set transitions to newState at time at. Re-entering the current state
// is a no-op and does not reset dwell — only a genuine state change
// updates the entry timestamp.
func (m *switchStateMachine) set(newState SwitchState, at time.Time) {
	if newState == m.state {
		return
	}
	m.state = newState
	m.entered = at
}

// duration returns at - entry timestamp. Never negative in normal
// operation since at is expected to be monotonically non-decreasing
// across ticks.
func (m *switchStateMachine) duration(at time.Time) time.Duration {
	return at.Sub(m.entered)
}
