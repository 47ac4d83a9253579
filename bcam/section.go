package bcam

// FrameSection classifies the role of a capture payload within a frame.
type FrameSection uint8

const (
	// SectionNone tags a null capture message carrying no frame data.
	SectionNone FrameSection = iota
	// SectionStart tags the first payload of a new frame.
	SectionStart
	// SectionBody tags an intermediate payload of the current frame.
	SectionBody
	// SectionEnd tags the final payload completing the current frame.
	SectionEnd
	// SectionInvalid aborts the current frame; accumulated data must be discarded.
	SectionInvalid
)

// IsValid reports whether s is one of the defined frame sections.
func (s FrameSection) IsValid() bool {
	return s <= SectionInvalid
}

// String returns the string representation of the frame section.
func (s FrameSection) String() string {
	switch s {
	case SectionNone:
		return "none"
	case SectionStart:
		return "start"
	case SectionBody:
		return "body"
	case SectionEnd:
		return "end"
	case SectionInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}
