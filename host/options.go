package host

import (
	"errors"
	"fmt"
	"time"

	"github.com/beaglecam/camlink/bcam"
	"github.com/beaglecam/camlink/logger"
)

// CameraOption configures a Camera.
type CameraOption func(*Camera) error

// WithCaptureConfig sets the capture configuration sent to the cores on Open.
func WithCaptureConfig(cfg bcam.CaptureConfig) CameraOption {
	return func(c *Camera) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		c.cfg = cfg

		return nil
	}
}

// WithRingSize sets the frame ring size. The ring retains one frame fewer
// than its size.
func WithRingSize(n int) CameraOption {
	return func(c *Camera) error {
		if n < 1 {
			return fmt.Errorf("ring size must be positive, got %d", n)
		}

		c.ringSize = n

		return nil
	}
}

// WithReplyTimeout bounds the wait for an Info reply to a Get* command.
func WithReplyTimeout(d time.Duration) CameraOption {
	return func(c *Camera) error {
		if d <= 0 {
			return fmt.Errorf("reply timeout must be positive, got %v", d)
		}

		c.replyTimeout = d

		return nil
	}
}

// WithCameraLogger replaces the camera's logger.
func WithCameraLogger(l logger.Logger) CameraOption {
	return func(c *Camera) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}

		c.logger = l

		return nil
	}
}
