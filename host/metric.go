package host

import "sync/atomic"

// CameraMetrics counts host-side pipeline events. All counters are updated
// atomically and safe to read concurrently.
type CameraMetrics struct {
	messagesReceived atomic.Int64
	bytesReceived    atomic.Int64
	logsReceived     atomic.Int64
	framesDelivered  atomic.Int64
	framesDropped    atomic.Int64
	framesDiscarded  atomic.Int64
	desyncs          atomic.Int64
}

func (m *CameraMetrics) incMessagesReceived()   { m.messagesReceived.Add(1) }
func (m *CameraMetrics) addBytesReceived(n int) { m.bytesReceived.Add(int64(n)) }
func (m *CameraMetrics) incLogsReceived()       { m.logsReceived.Add(1) }
func (m *CameraMetrics) incFramesDelivered()    { m.framesDelivered.Add(1) }
func (m *CameraMetrics) incFramesDropped()      { m.framesDropped.Add(1) }
func (m *CameraMetrics) incFramesDiscarded()    { m.framesDiscarded.Add(1) }
func (m *CameraMetrics) incDesyncs()            { m.desyncs.Add(1) }

// MessagesReceived returns the number of wire messages read from the channel.
func (m *CameraMetrics) MessagesReceived() int64 { return m.messagesReceived.Load() }

// BytesReceived returns the total wire bytes read from the channel.
func (m *CameraMetrics) BytesReceived() int64 { return m.bytesReceived.Load() }

// LogsReceived returns the number of core log messages forwarded.
func (m *CameraMetrics) LogsReceived() int64 { return m.logsReceived.Load() }

// FramesDelivered returns the number of frames handed to the ring.
func (m *CameraMetrics) FramesDelivered() int64 { return m.framesDelivered.Load() }

// FramesDropped returns the number of frames dropped because the ring was
// full.
func (m *CameraMetrics) FramesDropped() int64 { return m.framesDropped.Load() }

// FramesDiscarded returns the number of frames discarded during reassembly.
func (m *CameraMetrics) FramesDiscarded() int64 { return m.framesDiscarded.Load() }

// Desyncs returns how many times the reassembler gave up hunting for a frame
// start.
func (m *CameraMetrics) Desyncs() int64 { return m.desyncs.Load() }

// ToMap snapshots all counters into a map keyed by counter name.
func (m *CameraMetrics) ToMap() map[string]int64 {
	return map[string]int64{
		"messages_received": m.MessagesReceived(),
		"bytes_received":    m.BytesReceived(),
		"logs_received":     m.LogsReceived(),
		"frames_delivered":  m.FramesDelivered(),
		"frames_dropped":    m.FramesDropped(),
		"frames_discarded":  m.FramesDiscarded(),
		"desyncs":           m.Desyncs(),
	}
}
