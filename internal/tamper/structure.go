package tamper

import (
	"fmt"
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ugguru/url-fraud-detection/internal/imaging"
)

// structureAnalyzer validates the module-grid regularity of the code:
// consistent module size, a present quiet zone and bounded tilt. Pasted-over
// regions break the run-length rhythm of the grid long before they are
// visible to the eye.
type structureAnalyzer struct {
	th Thresholds
}

func newStructureAnalyzer(th Thresholds) MetricAnalyzer {
	return &structureAnalyzer{th: th}
}

func (a *structureAnalyzer) Metric() Metric {
	return MetricStructure
}

func (a *structureAnalyzer) Analyze(f *imaging.Frame) MetricResult {
	result := MetricResult{
		Metric: MetricStructure,
		Cost:   int64(f.Width) * int64(f.Height) * 3,
	}

	threshold := otsuThreshold(f.Gray)
	mask := binarize(f.Gray, threshold)

	runs := a.darkRuns(mask, f.Width, f.Height)
	if len(runs) < 8 {
		result.Score = 1.0
		result.Evidence = append(result.Evidence, "no module grid detected")
		return result
	}

	gridAnom, moduleSize := a.gridResidual(runs)
	quietAnom, borderDark := a.quietZone(mask, f.Width, f.Height)

	skewAnom := 0.0
	if angle := a.estimateSkew(f.Gray); angle != nil {
		skewAnom = clamp01(math.Abs(*angle) / a.th.MaxSkewDegrees)
		if math.Abs(*angle) > a.th.MaxSkewDegrees {
			result.Evidence = append(result.Evidence,
				fmt.Sprintf("%s: tilt %.1f° exceeds %.0f° bound", NoteExcessiveSkew, *angle, a.th.MaxSkewDegrees))
		}
	}

	result.Score = clamp01(0.5*gridAnom + 0.3*quietAnom + 0.2*skewAnom)

	if gridAnom > 0.6 {
		result.Evidence = append(result.Evidence,
			fmt.Sprintf("irregular module spacing around estimated module size %.1fpx", moduleSize))
	}
	if quietAnom > 0.6 {
		result.Evidence = append(result.Evidence,
			fmt.Sprintf("quiet zone violated: %.0f%% of the border band is dark", borderDark*100))
	}
	return result
}

// darkRuns collects dark run lengths along every row and column, dropping
// runs too short (noise) or too long (solid regions) to be modules.
func (a *structureAnalyzer) darkRuns(mask []bool, w, h int) []float64 {
	const minRun, maxRun = 2, 64
	runs := make([]float64, 0, 1024)

	for y := 0; y < h; y++ {
		length := 0
		for x := 0; x < w; x++ {
			if mask[y*w+x] {
				length++
				continue
			}
			if length >= minRun && length <= maxRun {
				runs = append(runs, float64(length))
			}
			length = 0
		}
		if length >= minRun && length <= maxRun {
			runs = append(runs, float64(length))
		}
	}
	for x := 0; x < w; x++ {
		length := 0
		for y := 0; y < h; y++ {
			if mask[y*w+x] {
				length++
				continue
			}
			if length >= minRun && length <= maxRun {
				runs = append(runs, float64(length))
			}
			length = 0
		}
		if length >= minRun && length <= maxRun {
			runs = append(runs, float64(length))
		}
	}
	return runs
}

// gridResidual estimates the module size as the median run length and
// measures how far each run sits from an integer multiple of it.
func (a *structureAnalyzer) gridResidual(runs []float64) (float64, float64) {
	sorted := append([]float64(nil), runs...)
	sort.Float64s(sorted)
	moduleSize := sorted[len(sorted)/2]
	if moduleSize < 1 {
		moduleSize = 1
	}

	residuals := make([]float64, 0, len(runs))
	for _, r := range runs {
		multiple := math.Round(r / moduleSize)
		if multiple < 1 {
			multiple = 1
		}
		residuals = append(residuals, math.Abs(r-multiple*moduleSize)/moduleSize)
	}
	// A perfect grid keeps every run on a multiple of the module size;
	// residuals near 0.5 mean the rhythm is broken.
	return clamp01(stat.Mean(residuals, nil) / a.th.GridResidualCeiling), moduleSize
}

// quietZone checks the mandatory blank border around the module grid.
func (a *structureAnalyzer) quietZone(mask []bool, w, h int) (float64, float64) {
	band := w / 16
	if band < 2 {
		band = 2
	}
	dark, total := 0, 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x >= band && x < w-band && y >= band && y < h-band {
				continue
			}
			if mask[y*w+x] {
				dark++
			}
			total++
		}
	}
	if total == 0 {
		return 0, 0
	}
	frac := float64(dark) / float64(total)
	return clamp01((frac - a.th.QuietZoneDarkMax) / a.th.QuietZoneRampSpan), frac
}

// estimateSkew fits a line through strong Sobel edges and reads the tilt
// from its slope. Returns nil when there are too few edge points to trust.
func (a *structureAnalyzer) estimateSkew(gray *image.Gray) *float64 {
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	var xs, ys []float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := sobelX(gray, x, y)
			gy := sobelY(gray, x, y)
			if math.Sqrt(float64(gx*gx+gy*gy)) > 50 {
				xs = append(xs, float64(x))
				ys = append(ys, float64(y))
			}
		}
	}
	if len(xs) < 10 {
		return nil
	}

	meanX := stat.Mean(xs, nil)
	meanY := stat.Mean(ys, nil)
	var sumXY, sumX2 float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		sumXY += dx * dy
		sumX2 += dx * dx
	}
	if math.Abs(sumX2) < 1e-10 {
		return nil
	}

	angle := math.Atan(sumXY/sumX2) * 180 / math.Pi
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return nil
	}
	for angle > 45 {
		angle -= 90
	}
	for angle < -45 {
		angle += 90
	}
	return &angle
}

func sobelX(gray *image.Gray, x, y int) int {
	return -1*int(gray.GrayAt(x-1, y-1).Y) + 1*int(gray.GrayAt(x+1, y-1).Y) +
		-2*int(gray.GrayAt(x-1, y).Y) + 2*int(gray.GrayAt(x+1, y).Y) +
		-1*int(gray.GrayAt(x-1, y+1).Y) + 1*int(gray.GrayAt(x+1, y+1).Y)
}

func sobelY(gray *image.Gray, x, y int) int {
	return -1*int(gray.GrayAt(x-1, y-1).Y) - 2*int(gray.GrayAt(x, y-1).Y) - 1*int(gray.GrayAt(x+1, y-1).Y) +
		1*int(gray.GrayAt(x-1, y+1).Y) + 2*int(gray.GrayAt(x, y+1).Y) + 1*int(gray.GrayAt(x+1, y+1).Y)
}
