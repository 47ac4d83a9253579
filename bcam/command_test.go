package bcam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRoundTrip(t *testing.T) {
	cmd := &Command{ID: CmdCapStart}
	encoded := cmd.Encode()

	require.Len(t, encoded, 3)
	// Magic travels high byte first.
	assert.Equal(t, byte(0xBE), encoded[0])
	assert.Equal(t, byte(0xCA), encoded[1])

	decoded, err := DecodeCommand(encoded)
	require.NoError(t, err)
	assert.Equal(t, CmdCapStart, decoded.ID)
	assert.Empty(t, decoded.Payload)
}

func TestCommandWithPayload(t *testing.T) {
	cmd := &Command{ID: CmdCapSetup, Payload: []byte{1, 2, 3}}

	decoded, err := DecodeCommand(cmd.Encode())
	require.NoError(t, err)
	assert.Equal(t, CmdCapSetup, decoded.ID)
	assert.Equal(t, []byte{1, 2, 3}, decoded.Payload)
}

func TestDecodeCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"too short", []byte{0xBE, 0xCA}, ErrShortMessage},
		{"bad magic", []byte{0xDE, 0xAD, byte(CmdCapStart)}, ErrBadMagic},
		{"id none", []byte{0xBE, 0xCA, 0x00}, ErrUnknownMessage},
		{"id out of range", []byte{0xBE, 0xCA, 0x7F}, ErrUnknownMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCommand(tt.data)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestCapSetupRoundTrip(t *testing.T) {
	cfg := CaptureConfig{XRes: 320, YRes: 240, BitsPerPixel: 16, TestMode: true, TestClockMHz: 4}

	payload := EncodeCapSetup(cfg)
	require.Len(t, payload, 7)

	decoded, err := DecodeCapSetup(payload)
	require.NoError(t, err)
	assert.Equal(t, cfg, decoded)
}

func TestDecodeCapSetupInvalid(t *testing.T) {
	_, err := DecodeCapSetup([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrShortMessage)

	// Zero resolution fails validation.
	bad := EncodeCapSetup(CaptureConfig{XRes: 0, YRes: 120, BitsPerPixel: 16, TestClockMHz: 1})
	_, err = DecodeCapSetup(bad)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCmdIDString(t *testing.T) {
	assert.Equal(t, "get_version", CmdGetVersion.String())
	assert.Equal(t, "cap_stop", CmdCapStop.String())
	assert.Equal(t, "unknown", CmdID(42).String())
}
