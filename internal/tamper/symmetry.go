package tamper

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/ugguru/url-fraud-detection/internal/imaging"
)

// symmetryAnalyzer compares quadrant-level structure of the code region.
// The three finder patterns give a genuine QR code partial reflective
// regularity; a replaced corner or overlaid patch breaks it.
type symmetryAnalyzer struct {
	th Thresholds
}

func newSymmetryAnalyzer(th Thresholds) MetricAnalyzer {
	return &symmetryAnalyzer{th: th}
}

func (a *symmetryAnalyzer) Metric() Metric {
	return MetricSymmetry
}

func (a *symmetryAnalyzer) Analyze(f *imaging.Frame) MetricResult {
	result := MetricResult{
		Metric: MetricSymmetry,
		Cost:   int64(f.Width) * int64(f.Height) * 2,
	}

	threshold := otsuThreshold(f.Gray)
	mask := binarize(f.Gray, threshold)

	// Too little dark mass means there is no module pattern to correlate;
	// forcing a score either way would be false confidence, so such codes
	// get the calibration midpoint with an explicit flag instead.
	if darkFraction(mask) < a.th.MinDarkMass {
		result.Score = 0.5
		result.Evidence = append(result.Evidence, NoteInconclusiveSymmetry)
		return result
	}

	minX, minY, maxX, maxY := darkBounds(mask, f.Width, f.Height)
	regionW, regionH := maxX-minX+1, maxY-minY+1
	if regionW < 16 || regionH < 16 {
		result.Score = 0.5
		result.Evidence = append(result.Evidence, NoteInconclusiveSymmetry)
		return result
	}

	halfW, halfH := regionW/2, regionH/2
	// Pairings follow the finder-pattern layout: top-left matches both
	// top-right and bottom-left structurally; bottom quadrants share the
	// timing-pattern edge.
	diffs := []float64{
		a.quadrantDiff(f, minX, minY, minX+halfW, minY, halfW, halfH),             // TL vs TR
		a.quadrantDiff(f, minX, minY, minX, minY+halfH, halfW, halfH),             // TL vs BL
		a.quadrantDiff(f, minX, minY+halfH, minX+halfW, minY+halfH, halfW, halfH), // BL vs BR
	}

	meanDiff := stat.Mean(diffs, nil)
	result.Score = clamp01(meanDiff / a.th.SymmetryDiffCeiling)
	if result.Score > 0.6 {
		result.Evidence = append(result.Evidence,
			fmt.Sprintf("quadrant structure deviates: mean intensity difference %.1f against calibration %.0f",
				meanDiff, a.th.SymmetryDiffCeiling))
	}
	return result
}

// quadrantDiff is the mean absolute intensity difference between two
// equally sized regions.
func (a *symmetryAnalyzer) quadrantDiff(f *imaging.Frame, x1, y1, x2, y2, w, h int) float64 {
	if w == 0 || h == 0 {
		return 0
	}
	var sum float64
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			p1 := int(f.Gray.GrayAt(x1+dx, y1+dy).Y)
			p2 := int(f.Gray.GrayAt(x2+dx, y2+dy).Y)
			d := p1 - p2
			if d < 0 {
				d = -d
			}
			sum += float64(d)
		}
	}
	return sum / float64(w*h)
}

// darkBounds is the bounding box of all dark pixels.
func darkBounds(mask []bool, w, h int) (minX, minY, maxX, maxY int) {
	minX, minY = w, h
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !mask[y*w+x] {
				continue
			}
			if x < minX {
				minX = x
			}
			if y < minY {
				minY = y
			}
			if x > maxX {
				maxX = x
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if minX > maxX {
		return 0, 0, 0, 0
	}
	return minX, minY, maxX, maxY
}
