package bcam

import "fmt"

// MaxImageSize is the largest supported frame, equivalent to 640x480 at
// 16 bits per pixel. Host-side frame buffers are sized against this bound.
const MaxImageSize = 640 * 480 * 2

// CaptureConfig holds the frame acquisition parameters for one capture
// session. It is owned by the orchestrator core and pushed down to the
// acquisition core at session setup.
//
// The image size is always derived via ImageSize and never stored, so the
// three resolution parameters cannot drift out of sync with it.
type CaptureConfig struct {
	// XRes and YRes are the frame resolution in pixels.
	XRes uint16
	YRes uint16

	// BitsPerPixel is the pixel depth. RGB565 capture uses 16.
	BitsPerPixel uint8

	// TestMode selects the synthetic pattern generator instead of sensor data.
	TestMode bool

	// TestClockMHz is the modeled pixel clock frequency for generated frames.
	// Only meaningful when TestMode is set.
	TestClockMHz uint8
}

// DefaultCaptureConfig returns the QQVGA RGB565 test-mode configuration the
// cores boot with before any CapSetup command arrives.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		XRes:         160,
		YRes:         120,
		BitsPerPixel: 16,
		TestMode:     true,
		TestClockMHz: 1,
	}
}

// ImageSize returns the frame size in bytes: XRes * YRes * BitsPerPixel / 8.
func (c CaptureConfig) ImageSize() int {
	return int(c.XRes) * int(c.YRes) * int(c.BitsPerPixel) / 8
}

// Validate checks the configuration against the supported ranges.
func (c CaptureConfig) Validate() error {
	if c.XRes == 0 || c.YRes == 0 {
		return fmt.Errorf("%w: resolution %dx%d", ErrInvalidConfig, c.XRes, c.YRes)
	}

	if c.BitsPerPixel == 0 || c.BitsPerPixel%8 != 0 || c.BitsPerPixel > 32 {
		return fmt.Errorf("%w: bits per pixel %d", ErrInvalidConfig, c.BitsPerPixel)
	}

	if c.ImageSize() > MaxImageSize {
		return fmt.Errorf("%w: image size %d exceeds maximum %d",
			ErrInvalidConfig, c.ImageSize(), MaxImageSize)
	}

	if c.TestMode && c.TestClockMHz == 0 {
		return fmt.Errorf("%w: test clock must be non-zero in test mode", ErrInvalidConfig)
	}

	return nil
}
