package pru

import "sync/atomic"

// CapState is the capture session state shared between the command handler
// and the capture loop of a core.
type CapState int32

const (
	// CapStopped means no capture session is active.
	CapStopped CapState = iota
	// CapPaused means a session is active but the producer is at rest
	// between frames.
	CapPaused
	// CapStarted means units are being produced and streamed.
	CapStarted
)

// String returns the string representation of the capture state.
func (s CapState) String() string {
	switch s {
	case CapStopped:
		return "stopped"
	case CapPaused:
		return "paused"
	case CapStarted:
		return "started"
	default:
		return "unknown"
	}
}

// capStateVar is an atomically updated capture state.
type capStateVar struct {
	v atomic.Int32
}

func (s *capStateVar) get() CapState      { return CapState(s.v.Load()) }
func (s *capStateVar) set(state CapState) { s.v.Store(int32(state)) }

func (s *capStateVar) is(state CapState) bool { return s.get() == state }
