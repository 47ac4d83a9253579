package pru

import (
	"fmt"

	"github.com/beaglecam/camlink/bcam"
)

// capBatcher coalesces capture units into wire messages so the host channel
// carries a few large writes per frame instead of one per unit.
//
// Units accumulate into a single pending message. The pending message is
// flushed when a unit with a different frame section arrives, when the next
// unit would no longer fit, and immediately after an End or Invalid unit so
// frame completion is never delayed behind batching.
type capBatcher struct {
	flush   func(*bcam.CaptureMessage) error
	pending *bcam.CaptureMessage
	partSeq uint16
}

func newCapBatcher(flush func(*bcam.CaptureMessage) error) *capBatcher {
	return &capBatcher{flush: flush}
}

// Add appends one unit's worth of frame data tagged with its section.
func (b *capBatcher) Add(section bcam.FrameSection, data []byte) error {
	if len(data) > bcam.MaxCapturePayload {
		return fmt.Errorf("%w: unit of %d bytes", bcam.ErrMessageTooLarge, len(data))
	}

	if b.pending != nil &&
		(b.pending.Section != section || len(b.pending.Payload)+len(data) > bcam.MaxCapturePayload) {
		if err := b.Flush(); err != nil {
			return err
		}
	}

	if b.pending == nil {
		// The part sequence restarts with every frame.
		if section == bcam.SectionStart {
			b.partSeq = 0
		}

		b.pending = &bcam.CaptureMessage{
			Section: section,
			PartSeq: b.partSeq,
			Payload: make([]byte, 0, bcam.MaxCapturePayload),
		}
	}

	b.pending.Payload = append(b.pending.Payload, data...)

	if section == bcam.SectionEnd || section == bcam.SectionInvalid ||
		len(b.pending.Payload) == bcam.MaxCapturePayload {
		return b.Flush()
	}

	return nil
}

// Flush sends the pending message, if any, and advances the part sequence.
func (b *capBatcher) Flush() error {
	if b.pending == nil {
		return nil
	}

	msg := b.pending
	b.pending = nil

	if err := b.flush(msg); err != nil {
		return err
	}

	b.partSeq++

	return nil
}

// Reset drops any pending message without sending it.
func (b *capBatcher) Reset() {
	b.pending = nil
	b.partSeq = 0
}
