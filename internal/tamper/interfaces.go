package tamper

import (
	"image"

	"github.com/ugguru/url-fraud-detection/internal/imaging"
)

// MetricAnalyzer scores one normalized frame along a single dimension.
// Implementations are pure functions of the frame: no shared state, no
// randomness, bounded computation. Anomalous findings (missing finder
// patterns, excessive skew) are results, never errors.
type MetricAnalyzer interface {
	Metric() Metric
	Analyze(f *imaging.Frame) MetricResult
}

// PayloadDecoder extracts the embedded payload string from a QR image.
// It is an optional collaborator: the engine produces a full tampering
// verdict with or without one, and a decode failure is not an analysis
// failure.
type PayloadDecoder interface {
	Decode(img image.Image) (string, error)
}
