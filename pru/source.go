package pru

import "github.com/beaglecam/camlink/bcam"

// UnitSource produces the raw pixel bytes the acquisition core packs into
// capture units. The hardware path reads the parallel sensor bus; the test
// path generates a synthetic pattern.
type UnitSource interface {
	// Reset prepares the source for a new capture session.
	Reset(cfg bcam.CaptureConfig)

	// Rewind realigns the source to the next frame boundary. Called when a
	// capture restarts mid-frame, so bytes already produced past the previous
	// frame's end are discarded rather than replayed.
	Rewind()

	// Fill writes the next len(dst) bytes of frame data into dst. The source
	// tracks its own position within the current frame and wraps to the next
	// frame when a full image has been produced.
	Fill(dst []byte)
}

// PatternSource generates a deterministic synthetic frame pattern. The first
// byte of every frame is the frame marker 0xFF, the first byte of every
// subsequent unit row is 0xEE, and the remaining bytes form a ramp seeded by
// the frame index. The pattern makes reassembly bugs visible in frame dumps.
type PatternSource struct {
	imageSize int
	offset    int
	frame     uint8
}

// NewPatternSource returns a pattern source for the given configuration.
func NewPatternSource(cfg bcam.CaptureConfig) *PatternSource {
	s := &PatternSource{}
	s.Reset(cfg)

	return s
}

func (s *PatternSource) Reset(cfg bcam.CaptureConfig) {
	s.imageSize = cfg.ImageSize()
	s.offset = 0
	s.frame = 0
}

func (s *PatternSource) Rewind() {
	if s.offset != 0 {
		s.offset = 0
		s.frame++
	}
}

func (s *PatternSource) Fill(dst []byte) {
	for i := range dst {
		switch {
		case s.offset == 0:
			dst[i] = 0xFF
		case s.offset%UnitDataSize == 0:
			dst[i] = 0xEE
		default:
			dst[i] = uint8(s.offset) + s.frame
		}

		s.offset++
		if s.offset >= s.imageSize {
			s.offset = 0
			s.frame++
		}
	}
}
