package pru

import "sync/atomic"

// CoreMetrics counts the capture-side events of a core pair. All counters are
// updated atomically and safe to read while the cores run.
type CoreMetrics struct {
	unitsProduced     atomic.Int64
	unitsConsumed     atomic.Int64
	unitsMissed       atomic.Int64
	unitTimeouts      atomic.Int64
	ackTimeouts       atomic.Int64
	framesStreamed    atomic.Int64
	framesInvalidated atomic.Int64
	messagesSent      atomic.Int64
}

func (m *CoreMetrics) incUnitsProduced()      { m.unitsProduced.Add(1) }
func (m *CoreMetrics) incUnitsConsumed()      { m.unitsConsumed.Add(1) }
func (m *CoreMetrics) addUnitsMissed(n int64) { m.unitsMissed.Add(n) }
func (m *CoreMetrics) incUnitTimeouts()       { m.unitTimeouts.Add(1) }
func (m *CoreMetrics) incAckTimeouts()        { m.ackTimeouts.Add(1) }
func (m *CoreMetrics) incFramesStreamed()     { m.framesStreamed.Add(1) }
func (m *CoreMetrics) incFramesInvalidated()  { m.framesInvalidated.Add(1) }
func (m *CoreMetrics) incMessagesSent()       { m.messagesSent.Add(1) }

// UnitsProduced returns the number of capture units published by the
// acquisition core.
func (m *CoreMetrics) UnitsProduced() int64 { return m.unitsProduced.Load() }

// UnitsConsumed returns the number of capture units read by the orchestrator.
func (m *CoreMetrics) UnitsConsumed() int64 { return m.unitsConsumed.Load() }

// UnitsMissed returns the number of units lost to scratch slot overwrites.
func (m *CoreMetrics) UnitsMissed() int64 { return m.unitsMissed.Load() }

// UnitTimeouts returns the number of per-unit wait timeouts.
func (m *CoreMetrics) UnitTimeouts() int64 { return m.unitTimeouts.Load() }

// AckTimeouts returns the number of start/stop handshakes that expired.
func (m *CoreMetrics) AckTimeouts() int64 { return m.ackTimeouts.Load() }

// FramesStreamed returns the number of complete frames sent to the host.
func (m *CoreMetrics) FramesStreamed() int64 { return m.framesStreamed.Load() }

// FramesInvalidated returns the number of frames aborted mid-stream.
func (m *CoreMetrics) FramesInvalidated() int64 { return m.framesInvalidated.Load() }

// MessagesSent returns the number of wire messages written to the host
// channel.
func (m *CoreMetrics) MessagesSent() int64 { return m.messagesSent.Load() }

// ToMap snapshots all counters into a map keyed by counter name.
func (m *CoreMetrics) ToMap() map[string]int64 {
	return map[string]int64{
		"units_produced":     m.UnitsProduced(),
		"units_consumed":     m.UnitsConsumed(),
		"units_missed":       m.UnitsMissed(),
		"unit_timeouts":      m.UnitTimeouts(),
		"ack_timeouts":       m.AckTimeouts(),
		"frames_streamed":    m.FramesStreamed(),
		"frames_invalidated": m.FramesInvalidated(),
		"messages_sent":      m.MessagesSent(),
	}
}
