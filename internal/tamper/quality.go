package tamper

import (
	"fmt"

	"github.com/ugguru/url-fraud-detection/internal/imaging"
)

// qualityAnalyzer measures blur and contrast. Heavily blurred or washed-out
// captures are where screenshot/reprint tampering usually shows first.
type qualityAnalyzer struct {
	th Thresholds
}

func newQualityAnalyzer(th Thresholds) MetricAnalyzer {
	return &qualityAnalyzer{th: th}
}

func (a *qualityAnalyzer) Metric() Metric {
	return MetricQuality
}

func (a *qualityAnalyzer) Analyze(f *imaging.Frame) MetricResult {
	result := MetricResult{
		Metric: MetricQuality,
		Cost:   int64(f.Width) * int64(f.Height) * 2,
	}

	var hist [256]int
	total := 0
	bounds := f.Gray.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[f.Gray.GrayAt(x, y).Y]++
			total++
		}
	}

	// Dynamic range between the 5th and 95th intensity percentiles; robust
	// against a handful of stray pixels.
	spread := percentile(&hist, total, 95) - percentile(&hist, total, 5)
	if spread <= 0 {
		// A flat image has no QR content at all. Maximal anomaly, and no
		// division anywhere near zero.
		result.Score = 1.0
		result.Evidence = append(result.Evidence, NoteUniformImage)
		return result
	}

	lapVar := laplacianVariance(f.Gray)
	sharpAnom := clamp01(1 - lapVar/a.th.SharpnessVarCeiling)
	contrastAnom := clamp01(1 - spread/a.th.ContrastRange)
	result.Score = clamp01(0.6*sharpAnom + 0.4*contrastAnom)

	if sharpAnom > 0.6 {
		result.Evidence = append(result.Evidence,
			fmt.Sprintf("low sharpness: laplacian variance %.1f below calibration %.0f", lapVar, a.th.SharpnessVarCeiling))
	}
	if contrastAnom > 0.6 {
		result.Evidence = append(result.Evidence,
			fmt.Sprintf("low contrast: intensity spread %.0f below calibration %.0f", spread, a.th.ContrastRange))
	}
	return result
}
