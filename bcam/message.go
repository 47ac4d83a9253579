package bcam

import (
	"encoding/binary"
	"fmt"
)

// MaxMessageSize is the maximum number of bytes in a single channel write.
// The underlying transport reserves the remainder of its 512-byte buffer for
// its own header, leaving 496 bytes of usable payload per message.
const MaxMessageSize = 496

// CaptureHeaderSize is the size of the Capture message header:
// 1 kind byte, 1 section byte and a 2-byte part sequence number.
const CaptureHeaderSize = 4

// MaxCapturePayload is the pixel payload capacity of one Capture message.
const MaxCapturePayload = MaxMessageSize - CaptureHeaderSize

// MsgType identifies the kind of an orchestrator-to-host message.
type MsgType uint8

const (
	// MsgNone is null data and is ignored by the host.
	MsgNone MsgType = iota
	// MsgInfo carries the response to a GetVersion or GetStatus command.
	MsgInfo
	// MsgLog carries a log entry from the cores.
	MsgLog
	// MsgCapture carries frame data.
	MsgCapture
)

// String returns the string representation of the message kind.
func (t MsgType) String() string {
	switch t {
	case MsgNone:
		return "none"
	case MsgInfo:
		return "info"
	case MsgLog:
		return "log"
	case MsgCapture:
		return "capture"
	default:
		return "unknown"
	}
}

// LogLevel is the severity carried by a Log message.
type LogLevel uint8

const (
	LogFatal LogLevel = iota
	LogError
	LogWarn
	LogInfo
	LogDebug
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogFatal:
		return "fatal"
	case LogError:
		return "error"
	case LogWarn:
		return "warn"
	case LogInfo:
		return "info"
	case LogDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// Message is one orchestrator-to-host wire message.
type Message interface {
	// Type returns the message kind.
	Type() MsgType
	// Encode serializes the message to its wire format. The result is always
	// at most MaxMessageSize bytes; oversized Log text is truncated and the
	// batching layer guarantees Capture payloads fit.
	Encode() []byte
}

// InfoMessage answers a GetVersion or GetStatus command.
//
// Wire format: [kind=1][data...].
type InfoMessage struct {
	Data []byte
}

func (m *InfoMessage) Type() MsgType { return MsgInfo }

func (m *InfoMessage) Encode() []byte {
	data := m.Data
	if len(data) > MaxMessageSize-1 {
		data = data[:MaxMessageSize-1]
	}

	buf := make([]byte, 1+len(data))
	buf[0] = byte(MsgInfo)
	copy(buf[1:], data)

	return buf
}

// LogMessage carries a log entry from the cores to the host.
//
// Wire format: [kind=2][level][utf-8 text...]. Text longer than the channel
// capacity is truncated.
type LogMessage struct {
	Level LogLevel
	Text  string
}

func (m *LogMessage) Type() MsgType { return MsgLog }

func (m *LogMessage) Encode() []byte {
	text := m.Text
	if len(text) > MaxMessageSize-2 {
		text = text[:MaxMessageSize-2]
	}

	buf := make([]byte, 2+len(text))
	buf[0] = byte(MsgLog)
	buf[1] = byte(m.Level)
	copy(buf[2:], text)

	return buf
}

// CaptureMessage carries a batch of frame payload bytes tagged with the frame
// section and the per-frame part sequence number.
//
// Wire format: [kind=3][section][partSeq u16 LE][payload...].
// PartSeq resets to 0 exactly when Section == SectionStart.
type CaptureMessage struct {
	Section FrameSection
	PartSeq uint16
	Payload []byte
}

func (m *CaptureMessage) Type() MsgType { return MsgCapture }

func (m *CaptureMessage) Encode() []byte {
	buf := make([]byte, CaptureHeaderSize, CaptureHeaderSize+len(m.Payload))
	buf[0] = byte(MsgCapture)
	buf[1] = byte(m.Section)
	binary.LittleEndian.PutUint16(buf[2:4], m.PartSeq)

	return append(buf, m.Payload...)
}

// DecodeMessage deserializes one wire message.
//
// It validates the overall size, the kind byte and, for Capture messages,
// the frame section range. The returned message holds copies of no data:
// payload slices alias the input buffer, so the caller must not reuse data
// until the message has been consumed.
func DecodeMessage(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, ErrShortMessage
	}

	if len(data) > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes, maximum %d", ErrMessageTooLarge, len(data), MaxMessageSize)
	}

	switch MsgType(data[0]) {
	case MsgInfo:
		return &InfoMessage{Data: data[1:]}, nil

	case MsgLog:
		if len(data) < 2 {
			return nil, fmt.Errorf("%w: log message without level byte", ErrShortMessage)
		}

		return &LogMessage{Level: LogLevel(data[1]), Text: string(data[2:])}, nil

	case MsgCapture:
		if len(data) < CaptureHeaderSize {
			return nil, fmt.Errorf("%w: capture message header truncated", ErrShortMessage)
		}

		section := FrameSection(data[1])
		if !section.IsValid() {
			return nil, fmt.Errorf("%w: section byte 0x%02x", ErrInvalidSection, data[1])
		}

		return &CaptureMessage{
			Section: section,
			PartSeq: binary.LittleEndian.Uint16(data[2:4]),
			Payload: data[CaptureHeaderSize:],
		}, nil

	default:
		return nil, fmt.Errorf("%w: kind byte 0x%02x", ErrUnknownMessage, data[0])
	}
}
