package tamper

import "time"

// Mode selects how the metric analyzers execute.
type Mode string

const (
	// ModeSequential runs the five analyzers in fixed metric order.
	ModeSequential Mode = "sequential"
	// ModeParallel runs them concurrently; safe because the Frame is
	// immutable.
	ModeParallel Mode = "parallel"
)

// Options configures an Engine.
type Options struct {
	Mode Mode

	// MetricTimeout bounds each analyzer. On overrun the engine records a
	// maximal-anomaly fallback result and continues. Zero disables the
	// bound.
	MetricTimeout time.Duration

	Thresholds Thresholds
}

// Thresholds are the fixed calibration constants the analyzers score
// against. The defaults assume the canonical 512px frame; they are design
// placeholders to be re-tuned against a labeled corpus of genuine and
// tampered codes.
type Thresholds struct {
	// Quality
	SharpnessVarCeiling float64 // Laplacian variance treated as fully sharp
	ContrastRange       float64 // p5..p95 intensity span treated as full contrast

	// Structure
	MaxSkewDegrees      float64 // tilt tolerated before "excessive skew"
	QuietZoneDarkMax    float64 // dark fraction allowed in the border band
	QuietZoneRampSpan   float64 // dark fraction above the max mapping to maximal anomaly
	GridResidualCeiling float64 // mean run residual mapping to maximal grid anomaly

	// Noise
	NoiseRatioThreshold float64 // localized/global ratio where anomaly starts
	NoiseRatioCeiling   float64 // ratio mapping to maximal anomaly
	GlobalNoiseCeiling  float64 // mean residual (0..255) treated as maximal

	// Symmetry
	SymmetryDiffCeiling float64 // quadrant mean abs diff mapping to maximal
	MinDarkMass         float64 // dark fraction below which symmetry is inconclusive

	// Finder patterns
	FinderRatioTolerance float64 // per-run deviation allowed in the 1:1:3:1:1 test
}

// DefaultOptions returns the engine defaults: sequential execution, a 5s
// per-metric budget and the placeholder calibration.
func DefaultOptions() Options {
	return Options{
		Mode:          ModeSequential,
		MetricTimeout: 5 * time.Second,
		Thresholds: Thresholds{
			SharpnessVarCeiling:  500.0,
			ContrastRange:        128.0,
			MaxSkewDegrees:       10.0,
			QuietZoneDarkMax:     0.05,
			QuietZoneRampSpan:    0.25,
			GridResidualCeiling:  0.35,
			NoiseRatioThreshold:  2.0,
			NoiseRatioCeiling:    6.0,
			GlobalNoiseCeiling:   50.0,
			SymmetryDiffCeiling:  96.0,
			MinDarkMass:          0.05,
			FinderRatioTolerance: 0.45,
		},
	}
}

// WithMode returns a copy of the options with the execution mode set.
func (o Options) WithMode(m Mode) Options {
	o.Mode = m
	return o
}

// WithMetricTimeout returns a copy with the per-metric budget set.
func (o Options) WithMetricTimeout(d time.Duration) Options {
	o.MetricTimeout = d
	return o
}
