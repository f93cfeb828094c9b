package domain

import "time"

// EdgeState is the per-quantity hysteresis state. A fresh state is armed:
// the next true evaluation is a rising edge and fires one alert. While
// disarmed, further true evaluations are silent; the first false
// evaluation re-arms without emitting anything.
//
// The state only flips to disarmed via Disarm, which callers invoke after
// the alert was confirmed delivered. A failed delivery therefore leaves
// the machine armed and the alert eligible on the next run.
type EdgeState struct {
	Armed      bool       `json:"armed"`
	EventStart *time.Time `json:"event_start,omitempty"`
}

// NewEdgeState returns the initial armed state.
func NewEdgeState() EdgeState {
	return EdgeState{Armed: true}
}

// RisingEdge reports whether a true evaluation should fire: only when the
// machine is still armed.
func (s EdgeState) RisingEdge(active bool) bool {
	return active && s.Armed
}

// Disarm records a fired alert: the machine goes silent and remembers the
// event start until the condition clears.
func (s *EdgeState) Disarm(eventStart time.Time) {
	s.Armed = false
	s.EventStart = &eventStart
}

// Rearm processes a false evaluation. It returns true when the state
// changed (falling edge re-arm), so callers know to persist.
func (s *EdgeState) Rearm() bool {
	if s.Armed {
		return false
	}
	s.Armed = true
	s.EventStart = nil
	return true
}
