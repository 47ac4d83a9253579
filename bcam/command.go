package bcam

import (
	"encoding/binary"
	"fmt"
)

// CommandMagic is the sentinel prefix of every host-to-orchestrator command.
// It is transmitted big-endian: high byte first.
const CommandMagic uint16 = 0xBECA

// CmdID identifies a host-to-orchestrator command.
type CmdID uint8

const (
	// CmdNone is an unused command id.
	CmdNone CmdID = iota
	// CmdGetVersion requests the core firmware version string.
	CmdGetVersion
	// CmdGetStatus requests the current capture state.
	CmdGetStatus
	// CmdCapSetup reconfigures the capture parameters. Only accepted while
	// capture is stopped.
	CmdCapSetup
	// CmdCapStart begins frame acquisition and streaming.
	CmdCapStart
	// CmdCapStop halts frame acquisition.
	CmdCapStop
)

// String returns the string representation of the command id.
func (id CmdID) String() string {
	switch id {
	case CmdNone:
		return "none"
	case CmdGetVersion:
		return "get_version"
	case CmdGetStatus:
		return "get_status"
	case CmdCapSetup:
		return "cap_setup"
	case CmdCapStart:
		return "cap_start"
	case CmdCapStop:
		return "cap_stop"
	default:
		return "unknown"
	}
}

// Command is one host-to-orchestrator request.
//
// Wire format: [magic hi][magic lo][id][payload...].
type Command struct {
	ID      CmdID
	Payload []byte
}

// Encode serializes the command to its wire format.
func (c *Command) Encode() []byte {
	buf := make([]byte, 3+len(c.Payload))
	buf[0] = byte(CommandMagic >> 8)
	buf[1] = byte(CommandMagic & 0xFF)
	buf[2] = byte(c.ID)
	copy(buf[3:], c.Payload)

	return buf
}

// DecodeCommand deserializes one command, validating the magic sentinel and
// the id range. The payload aliases the input buffer.
func DecodeCommand(data []byte) (*Command, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("%w: command needs at least 3 bytes, got %d", ErrShortMessage, len(data))
	}

	magic := uint16(data[0])<<8 | uint16(data[1])
	if magic != CommandMagic {
		return nil, fmt.Errorf("%w: 0x%04X", ErrBadMagic, magic)
	}

	id := CmdID(data[2])
	if id == CmdNone || id > CmdCapStop {
		return nil, fmt.Errorf("%w: command id 0x%02x", ErrUnknownMessage, data[2])
	}

	return &Command{ID: id, Payload: data[3:]}, nil
}

// capSetupSize is the encoded size of a CapSetup payload:
// xres u16, yres u16, bpp u8, test mode u8, test clock u8.
const capSetupSize = 7

// EncodeCapSetup serializes a capture configuration into a CapSetup command
// payload. Multi-byte fields are little-endian.
func EncodeCapSetup(cfg CaptureConfig) []byte {
	buf := make([]byte, capSetupSize)
	binary.LittleEndian.PutUint16(buf[0:2], cfg.XRes)
	binary.LittleEndian.PutUint16(buf[2:4], cfg.YRes)
	buf[4] = cfg.BitsPerPixel
	if cfg.TestMode {
		buf[5] = 1
	}
	buf[6] = cfg.TestClockMHz

	return buf
}

// DecodeCapSetup deserializes and validates a CapSetup command payload.
func DecodeCapSetup(payload []byte) (CaptureConfig, error) {
	if len(payload) < capSetupSize {
		return CaptureConfig{}, fmt.Errorf("%w: cap_setup payload needs %d bytes, got %d",
			ErrShortMessage, capSetupSize, len(payload))
	}

	cfg := CaptureConfig{
		XRes:         binary.LittleEndian.Uint16(payload[0:2]),
		YRes:         binary.LittleEndian.Uint16(payload[2:4]),
		BitsPerPixel: payload[4],
		TestMode:     payload[5] != 0,
		TestClockMHz: payload[6],
	}

	if err := cfg.Validate(); err != nil {
		return CaptureConfig{}, err
	}

	return cfg, nil
}
