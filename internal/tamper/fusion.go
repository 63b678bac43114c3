package tamper

import (
	"fmt"

	apperrors "github.com/ugguru/url-fraud-detection/internal/errors"
)

// fusionWeights is the fixed per-metric weighting, summing to 1.0. Finder
// patterns and structure carry the most weight: they are the hardest
// signals to fake and the least sensitive to capture conditions. Noise and
// quality carry the least, since bad lighting or a cheap camera moves them
// on genuine codes too.
var fusionWeights = map[Metric]float64{
	MetricFinder:    0.30,
	MetricStructure: 0.25,
	MetricSymmetry:  0.20,
	MetricNoise:     0.15,
	MetricQuality:   0.10,
}

// missingFinderFloor is the minimum fused score when the finder metric
// reports maximal anomaly. A code whose markers cannot be found at all is
// never less than High, whatever the other metrics say.
const missingFinderFloor = 0.5

// Fuse combines exactly one result per metric into the fused risk score
// and its severity band. It is a pure function: identical inputs always
// produce identical outputs. A missing or duplicated metric is an engine
// bug and surfaces as an internal error, never a defaulted score.
func Fuse(results []MetricResult) (float64, Severity, error) {
	seen := make(map[Metric]bool, MetricCount)
	var fused float64
	var finderScore float64

	for _, r := range results {
		w, ok := fusionWeights[r.Metric]
		if !ok {
			return 0, "", apperrors.NewInternalError(
				fmt.Sprintf("unknown metric %q in fusion input", r.Metric), nil)
		}
		if seen[r.Metric] {
			return 0, "", apperrors.NewInternalError(
				fmt.Sprintf("duplicate result for metric %q", r.Metric), nil)
		}
		seen[r.Metric] = true

		score := clamp01(r.Score)
		fused += w * score
		if r.Metric == MetricFinder {
			finderScore = score
		}
	}

	for _, m := range metricOrder {
		if !seen[m] {
			return 0, "", apperrors.NewInternalError(
				fmt.Sprintf("result for metric %q missing before fusion", m), nil)
		}
	}

	fused = clamp01(fused)
	if finderScore >= 1.0 && fused < missingFinderFloor {
		fused = missingFinderFloor
	}
	return fused, SeverityFor(fused), nil
}
