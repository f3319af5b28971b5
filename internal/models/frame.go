package models

import (
	"kuwahara/pkg/grid"
	"kuwahara/pkg/quality"
)

// Frame is one decoded image file with metadata
type Frame struct {
	// Pixels holds the decoded samples: H×W for grayscale sources and
	// H×W×3 (BGR) or H×W×4 (BGRA) for colour sources
	Pixels *grid.Image[uint8]

	// Index is the position of this frame in the input sequence
	Index int

	// Filename is the original path of the frame
	Filename string

	// Format is the codec name reported by the decoder (png, jpeg, ...)
	Format string
}

// Outcome is the result of filtering a single frame
type Outcome struct {
	// Frame is the input frame
	Frame *Frame

	// OutputPath is where the filtered image was written
	OutputPath string

	// Filtered holds the filtered samples with the shape of Frame.Pixels
	Filtered *grid.Image[uint8]

	// Selection is the H×W map of winning quadrant indices
	Selection *grid.Image[uint8]

	// Measurement is the H×W channel the variances were computed on
	Measurement *grid.Image[float64]

	// Metrics compares Filtered against Frame.Pixels when requested
	Metrics *quality.Metrics

	// Err is set when filtering or writing failed
	Err error
}
