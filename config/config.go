// Package config loads the camlink application configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/beaglecam/camlink/bcam"
	"github.com/beaglecam/camlink/host"
	"github.com/beaglecam/camlink/logger"
)

// Config is the top-level application configuration.
type Config struct {
	Log     Log     `yaml:"log"`
	Capture Capture `yaml:"capture"`
	Host    Host    `yaml:"host"`
}

// Log configures the application logger. An empty File logs to the console;
// otherwise logs rotate through lumberjack-managed files.
type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Capture configures the frame acquisition parameters.
type Capture struct {
	XRes         uint16 `yaml:"x_res"`
	YRes         uint16 `yaml:"y_res"`
	BitsPerPixel uint8  `yaml:"bits_per_pixel"`
	TestMode     bool   `yaml:"test_mode"`
	TestClockMHz uint8  `yaml:"test_clock_mhz"`
}

// Host configures the host-side consumer.
type Host struct {
	RingSize     int           `yaml:"ring_size"`
	ReplyTimeout time.Duration `yaml:"reply_timeout"`
	MaxFrames    int           `yaml:"max_frames"`
	FrameDumpDir string        `yaml:"frame_dump_dir"`
}

// Default returns the configuration used when no file is given: QQVGA RGB565
// test-mode capture with console logging at info level.
func Default() *Config {
	cc := bcam.DefaultCaptureConfig()

	return &Config{
		Log: Log{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Capture: Capture{
			XRes:         cc.XRes,
			YRes:         cc.YRes,
			BitsPerPixel: cc.BitsPerPixel,
			TestMode:     cc.TestMode,
			TestClockMHz: cc.TestClockMHz,
		},
		Host: Host{
			RingSize:     host.DefaultRingSize,
			ReplyTimeout: 500 * time.Millisecond,
		},
	}
}

// Load reads a YAML configuration file over the defaults and validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}

	if err := c.CaptureConfig().Validate(); err != nil {
		return err
	}

	if c.Host.RingSize < 1 {
		return fmt.Errorf("host ring size must be positive, got %d", c.Host.RingSize)
	}

	if c.Host.ReplyTimeout <= 0 {
		return fmt.Errorf("host reply timeout must be positive, got %v", c.Host.ReplyTimeout)
	}

	return nil
}

// CaptureConfig converts the capture section to the wire-level configuration.
func (c *Config) CaptureConfig() bcam.CaptureConfig {
	return bcam.CaptureConfig{
		XRes:         c.Capture.XRes,
		YRes:         c.Capture.YRes,
		BitsPerPixel: c.Capture.BitsPerPixel,
		TestMode:     c.Capture.TestMode,
		TestClockMHz: c.Capture.TestClockMHz,
	}
}

// NewLogger builds the application logger described by the log section.
func (c *Config) NewLogger() (logger.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	if c.Log.File == "" {
		return logger.NewSlog(level, false), nil
	}

	return logger.NewRotatingSlog(level, c.Log.File, c.Log.MaxSizeMB, c.Log.MaxBackups), nil
}

func parseLevel(s string) (logger.Level, error) {
	switch s {
	case "debug":
		return logger.DebugLevel, nil
	case "", "info":
		return logger.InfoLevel, nil
	case "warn":
		return logger.WarnLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	case "fatal":
		return logger.FatalLevel, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
