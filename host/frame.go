package host

import (
	"fmt"
	"os"
	"time"
)

// Frame is one complete reassembled image.
type Frame struct {
	// Seq numbers delivered frames from 0, counting only frames that survived
	// reassembly. Discarded frames leave no gap.
	Seq uint32

	// Data holds ImageSize raw pixel bytes. The buffer is owned by the frame.
	Data []byte

	// Stamp records when reassembly completed.
	Stamp time.Time
}

// DumpFrame writes the frame's raw pixel bytes to path. Useful for inspecting
// captures with external viewers.
func DumpFrame(f *Frame, path string) error {
	if err := os.WriteFile(path, f.Data, 0o644); err != nil {
		return fmt.Errorf("dump frame %d: %w", f.Seq, err)
	}

	return nil
}
