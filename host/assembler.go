package host

import (
	"fmt"
	"time"

	"github.com/beaglecam/camlink/bcam"
)

// FrameAssembler rebuilds frames from the capture message stream.
//
// A frame is a run of capture messages tagged Start, Body..., End with
// contiguous part sequence numbers starting at 0. Any deviation, a part
// gap, an Invalid section, an over- or undersized frame, discards the
// in-progress frame; the assembler then resynchronizes at the next Start.
// The assembler is not safe for concurrent use; the Camera feeds it from a
// single receiver task.
type FrameAssembler struct {
	imageSize int

	buf      []byte
	inFrame  bool
	nextPart uint16
	nextSeq  uint32

	// strayBytes counts payload consumed while hunting for a Start. Crossing
	// desyncBound means the producer and consumer disagree about the frame
	// geometry rather than a frame boundary having been missed.
	strayBytes  int
	desyncBound int
}

// NewFrameAssembler creates an assembler for frames of imageSize bytes.
func NewFrameAssembler(imageSize int) *FrameAssembler {
	return &FrameAssembler{
		imageSize:   imageSize,
		buf:         make([]byte, 0, imageSize),
		desyncBound: 2 * imageSize,
	}
}

// ImageSize returns the frame size the assembler expects.
func (a *FrameAssembler) ImageSize() int { return a.imageSize }

// Reset discards any in-progress frame and the desync counter. The delivered
// frame sequence is preserved.
func (a *FrameAssembler) Reset() {
	a.buf = a.buf[:0]
	a.inFrame = false
	a.nextPart = 0
	a.strayBytes = 0
}

// Feed consumes one capture message. It returns a completed frame when msg
// carried the final section of a valid frame, or an error describing why the
// in-progress frame was discarded. A nil, nil return means the message was
// absorbed and more are needed.
func (a *FrameAssembler) Feed(msg *bcam.CaptureMessage) (*Frame, error) {
	switch msg.Section {
	case bcam.SectionNone:
		return nil, nil

	case bcam.SectionInvalid:
		if !a.inFrame {
			return nil, nil
		}
		a.discard()

		return nil, bcam.ErrFrameAborted

	case bcam.SectionStart:
		if msg.PartSeq != 0 {
			a.discard()
			return nil, fmt.Errorf("%w: frame start with part %d", bcam.ErrPartSeqMismatch, msg.PartSeq)
		}

		a.buf = a.buf[:0]
		a.inFrame = true
		a.nextPart = 1
		a.strayBytes = 0

		return a.append(msg)

	case bcam.SectionBody, bcam.SectionEnd:
		if !a.inFrame {
			// Mid-frame data while hunting for a Start. Dropped silently up
			// to the desync bound.
			a.strayBytes += len(msg.Payload)
			if a.strayBytes > a.desyncBound {
				a.strayBytes = 0
				return nil, bcam.ErrDesynced
			}

			return nil, nil
		}

		if msg.PartSeq != a.nextPart {
			want := a.nextPart
			a.discard()

			return nil, fmt.Errorf("%w: want part %d, got %d", bcam.ErrPartSeqMismatch, want, msg.PartSeq)
		}
		a.nextPart++

		return a.append(msg)

	default:
		return nil, fmt.Errorf("%w: section %d", bcam.ErrInvalidSection, msg.Section)
	}
}

func (a *FrameAssembler) append(msg *bcam.CaptureMessage) (*Frame, error) {
	if len(a.buf)+len(msg.Payload) > a.imageSize {
		total := len(a.buf) + len(msg.Payload)
		a.discard()

		return nil, fmt.Errorf("%w: %d bytes, image size %d", bcam.ErrFrameTooLarge, total, a.imageSize)
	}

	a.buf = append(a.buf, msg.Payload...)

	// Only an End section completes a frame. A full buffer on Start or Body
	// waits for the End marker.
	if msg.Section != bcam.SectionEnd {
		return nil, nil
	}

	if len(a.buf) < a.imageSize {
		got := len(a.buf)
		a.discard()

		return nil, fmt.Errorf("%w: %d of %d bytes", bcam.ErrFrameIncomplete, got, a.imageSize)
	}

	frame := &Frame{
		Seq:   a.nextSeq,
		Data:  append(make([]byte, 0, a.imageSize), a.buf...),
		Stamp: time.Now(),
	}
	a.nextSeq++
	a.discard()

	return frame, nil
}

func (a *FrameAssembler) discard() {
	a.buf = a.buf[:0]
	a.inFrame = false
	a.nextPart = 0
}
