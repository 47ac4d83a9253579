package pru

import (
	"sync/atomic"

	"github.com/beaglecam/camlink/bcam"
)

// NumScratchSlots is the number of shared scratch slots the acquisition core
// cycles through. Three slots let the producer stay at most two units ahead
// of the consumer before overwriting unread data.
const NumScratchSlots = 3

// UnitDataSize is the payload size of one capture unit in bytes.
const UnitDataSize = 32

// CoreCmdID identifies a command exchanged between the two cores through the
// shared command registers.
type CoreCmdID uint8

const (
	// CoreCmdNone marks an empty command register.
	CoreCmdNone CoreCmdID = iota
	// CoreCmdAck acknowledges a start or stop command.
	CoreCmdAck
	// CoreCmdCapStart tells the acquisition core to begin producing units.
	CoreCmdCapStart
	// CoreCmdCapStop tells the acquisition core to halt.
	CoreCmdCapStop
)

// CaptureUnit is one fixed-size chunk of frame data handed from the
// acquisition core to the orchestrator. Sequence numbers start at 1 for the
// first unit of a session so an invalidated slot can never be mistaken for a
// fresh unit.
type CaptureUnit struct {
	Seq  uint32
	Data []byte
}

// cmdSlot is a single-entry command register shared by the two cores.
// A command id and argument byte are packed into one atomic word; id zero
// (CoreCmdNone) marks the register empty.
type cmdSlot struct {
	word atomic.Uint32
}

// put publishes a command, overwriting any unconsumed one.
func (s *cmdSlot) put(id CoreCmdID, arg uint8) {
	s.word.Store(uint32(id)<<8 | uint32(arg))
}

// take consumes the pending command, clearing the register. It returns
// CoreCmdNone when the register is empty.
func (s *cmdSlot) take() (CoreCmdID, uint8) {
	w := s.word.Swap(0)
	return CoreCmdID(w >> 8), uint8(w)
}

// SharedMem models the memory shared by the two cores: the scratch slot bank,
// the per-direction command registers, the capture configuration and the
// unit-ready signal the acquisition core raises after publishing a unit.
type SharedMem struct {
	slots  [NumScratchSlots]atomic.Pointer[CaptureUnit]
	toAcq  cmdSlot
	toOrch cmdSlot
	config atomic.Pointer[bcam.CaptureConfig]

	// notify carries the unit-ready signal. Capacity one: signals coalesce
	// exactly like a level-triggered interrupt line.
	notify chan struct{}
}

// NewSharedMem returns shared memory initialized with the default capture
// configuration and empty slots.
func NewSharedMem() *SharedMem {
	m := &SharedMem{notify: make(chan struct{}, 1)}

	cfg := bcam.DefaultCaptureConfig()
	m.config.Store(&cfg)

	return m
}

// PublishUnit stores a unit into the scratch slot selected by its sequence
// number and raises the unit-ready signal. The producer never blocks: if the
// consumer lags behind by a full bank, the oldest unread unit is overwritten.
func (m *SharedMem) PublishUnit(u *CaptureUnit) {
	m.slots[u.Seq%NumScratchSlots].Store(u)

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// PeekUnit returns the unit currently held by the slot that seq maps to, or
// nil if the slot is empty.
func (m *SharedMem) PeekUnit(seq uint32) *CaptureUnit {
	return m.slots[seq%NumScratchSlots].Load()
}

// InvalidateSlots clears every scratch slot. Called on capture start so stale
// units from a previous session cannot satisfy the new session's reads.
func (m *SharedMem) InvalidateSlots() {
	for i := range m.slots {
		m.slots[i].Store(nil)
	}

	// Drop a stale unit-ready signal left over from the previous session.
	select {
	case <-m.notify:
	default:
	}
}

// UnitReady exposes the unit-ready signal for the consumer to select on.
func (m *SharedMem) UnitReady() <-chan struct{} {
	return m.notify
}

// SendToAcquisition publishes a command for the acquisition core.
func (m *SharedMem) SendToAcquisition(id CoreCmdID, arg uint8) {
	m.toAcq.put(id, arg)
}

// TakeAcquisitionCmd consumes the pending command addressed to the
// acquisition core, if any.
func (m *SharedMem) TakeAcquisitionCmd() (CoreCmdID, uint8) {
	return m.toAcq.take()
}

// SendToOrchestrator publishes a command for the orchestrator core.
func (m *SharedMem) SendToOrchestrator(id CoreCmdID, arg uint8) {
	m.toOrch.put(id, arg)
}

// TakeOrchestratorCmd consumes the pending command addressed to the
// orchestrator core, if any.
func (m *SharedMem) TakeOrchestratorCmd() (CoreCmdID, uint8) {
	return m.toOrch.take()
}

// SetConfig publishes a new capture configuration for both cores.
func (m *SharedMem) SetConfig(cfg bcam.CaptureConfig) {
	m.config.Store(&cfg)
}

// Config returns the current capture configuration.
func (m *SharedMem) Config() bcam.CaptureConfig {
	return *m.config.Load()
}
