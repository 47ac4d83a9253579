package bcam

import "errors"

// Codec errors.
var (
	// ErrShortMessage indicates that a message or command is too short to
	// contain its fixed header.
	ErrShortMessage = errors.New("bcam: message too short")

	// ErrBadMagic indicates that an inbound command does not start with the
	// expected magic sentinel.
	ErrBadMagic = errors.New("bcam: bad command magic")

	// ErrUnknownMessage indicates an unrecognized message kind byte.
	ErrUnknownMessage = errors.New("bcam: unknown message kind")

	// ErrInvalidSection indicates a capture message with a frame section tag
	// outside the defined range.
	ErrInvalidSection = errors.New("bcam: invalid frame section")

	// ErrMessageTooLarge indicates an encoded message exceeding the channel's
	// maximum payload size.
	ErrMessageTooLarge = errors.New("bcam: message exceeds channel capacity")

	// ErrInvalidConfig indicates an out-of-range capture configuration.
	ErrInvalidConfig = errors.New("bcam: invalid capture configuration")
)

// Session and handshake errors.
var (
	// ErrAckTimeout indicates that the acquisition core did not acknowledge a
	// start/stop command within the configured timeout. The capture session is
	// forced to the stopped state; re-issuing start is the recovery path.
	ErrAckTimeout = errors.New("bcam: acquisition ack timeout")

	// ErrUnitTimeout indicates that no capture unit arrived within the
	// configured per-unit timeout while a frame was in progress.
	ErrUnitTimeout = errors.New("bcam: capture unit timeout")

	// ErrSeqMismatch indicates that a capture unit was missed: the unit read
	// from the scratch slot carries a sequence number beyond the expected one.
	// The current frame is discarded and capture resumes with the next frame.
	ErrSeqMismatch = errors.New("bcam: capture unit sequence mismatch")
)

// Reassembly errors. All of these are recovered locally: the in-progress
// frame is discarded and the reassembler resynchronizes at the next Start.
var (
	// ErrPartSeqMismatch indicates a capture message with an unexpected part
	// sequence number.
	ErrPartSeqMismatch = errors.New("bcam: frame part sequence mismatch")

	// ErrFrameAborted indicates that the producer marked the in-progress frame
	// invalid (an Invalid section arrived).
	ErrFrameAborted = errors.New("bcam: frame aborted by producer")

	// ErrFrameTooLarge indicates that accumulated frame bytes would exceed the
	// configured image size.
	ErrFrameTooLarge = errors.New("bcam: frame exceeds image size")

	// ErrFrameIncomplete indicates an End section arriving before a full image
	// worth of bytes was accumulated.
	ErrFrameIncomplete = errors.New("bcam: incomplete frame")

	// ErrDesynced indicates that the reassembler consumed more than twice the
	// image size without observing a Start section.
	ErrDesynced = errors.New("bcam: no frame start within bound, desynchronized")
)

// Transport errors.
var (
	// ErrConnClosed indicates that the message channel is closed.
	ErrConnClosed = errors.New("bcam: connection closed")

	// ErrReplyTimeout indicates that no Info reply arrived within the
	// configured reply timeout after sending a Get* command.
	ErrReplyTimeout = errors.New("bcam: command reply timeout")
)
