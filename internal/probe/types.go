package probe

// VideoMetadata describes a video file. Every field is optional; a nil
// field means the probe produced no usable value for it.
type VideoMetadata struct {
	DurationSeconds *float64 `json:"durationSeconds,omitempty"`
	Width           *int     `json:"width,omitempty"`
	Height          *int     `json:"height,omitempty"`
	CodecName       *string  `json:"codecName,omitempty"`
	BitDepth        *int     `json:"bitDepth,omitempty"`
	FPS             *float64 `json:"fps,omitempty"`
}

// Dimensions returns width and height when both are known.
func (m *VideoMetadata) Dimensions() (w, h int, ok bool) {
	if m == nil || m.Width == nil || m.Height == nil {
		return 0, 0, false
	}
	return *m.Width, *m.Height, true
}

// Empty reports whether no field is set.
func (m *VideoMetadata) Empty() bool {
	return m == nil || (m.DurationSeconds == nil && m.Width == nil && m.Height == nil &&
		m.CodecName == nil && m.BitDepth == nil && m.FPS == nil)
}

// BasicInfo holds the stream dimensions and container duration.
type BasicInfo struct {
	Width           *int
	Height          *int
	DurationSeconds *float64
}

// ExtendedInfo holds codec details of the first video stream.
type ExtendedInfo struct {
	CodecName   *string // upper-cased, e.g. "H264"
	PixelFormat string
	BitDepth    *int
}
