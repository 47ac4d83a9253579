package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 38400, cfg.CaptureConfig().ImageSize())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad(t *testing.T) {
	content := `
log:
  level: debug
capture:
  x_res: 320
  y_res: 240
  bits_per_pixel: 16
  test_mode: true
  test_clock_mhz: 2
host:
  ring_size: 16
  reply_timeout: 250ms
  max_frames: 5
`
	path := filepath.Join(t.TempDir(), "camlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, uint16(320), cfg.Capture.XRes)
	assert.Equal(t, 16, cfg.Host.RingSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Host.ReplyTimeout)
	assert.Equal(t, 5, cfg.Host.MaxFrames)

	// Unset fields keep their defaults.
	assert.Equal(t, 3, cfg.Log.MaxBackups)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "log: ["},
		{"bad level", "log:\n  level: loud"},
		{"bad capture", "capture:\n  x_res: 0"},
		{"bad ring", "host:\n  ring_size: -1"},
		{"bad timeout", "host:\n  reply_timeout: -5s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "camlink.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := Default()

	log, err := cfg.NewLogger()
	require.NoError(t, err)
	require.NotNil(t, log)

	cfg.Log.File = filepath.Join(t.TempDir(), "camlink.log")
	log, err = cfg.NewLogger()
	require.NoError(t, err)
	require.NotNil(t, log)

	log.Info("rotating logger smoke test")
}

func TestParseLevel(t *testing.T) {
	for _, lvl := range []string{"", "debug", "info", "warn", "error", "fatal"} {
		_, err := parseLevel(lvl)
		assert.NoError(t, err, lvl)
	}

	_, err := parseLevel("verbose")
	assert.Error(t, err)
}
