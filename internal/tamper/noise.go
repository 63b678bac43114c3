package tamper

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/ugguru/url-fraud-detection/internal/imaging"
)

// noiseAnalyzer estimates residual pixel noise after a median pass and
// compares how that energy is distributed. Compression noise spreads over
// the whole frame; a pasted sticker or inpainted patch concentrates it in
// module interiors that should be flat.
type noiseAnalyzer struct {
	th Thresholds
}

func newNoiseAnalyzer(th Thresholds) MetricAnalyzer {
	return &noiseAnalyzer{th: th}
}

func (a *noiseAnalyzer) Metric() Metric {
	return MetricNoise
}

func (a *noiseAnalyzer) Analyze(f *imaging.Frame) MetricResult {
	result := MetricResult{
		Metric: MetricNoise,
		Cost:   int64(f.Width) * int64(f.Height) * 10, // median filter dominates
	}

	denoised := median3x3(f.Gray)
	threshold := otsuThreshold(f.Gray)
	mask := binarize(f.Gray, threshold)

	w, h := f.Width, f.Height
	const grid = 8
	blockW, blockH := w/grid, h/grid
	if blockW == 0 || blockH == 0 {
		result.Evidence = append(result.Evidence, "frame too small for noise localization")
		return result
	}

	// Residual energy is sampled only in module interiors: pixels whose
	// 3x3 binarized neighbourhood is uniform. Edges between modules are
	// legitimately noisy and must not count.
	var blockSum [grid * grid]float64
	var blockN [grid * grid]int
	var globalSum float64
	var globalN int

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			if !interiorAt(mask, w, x, y) {
				continue
			}
			d := int(f.Gray.GrayAt(x, y).Y) - int(denoised.GrayAt(x, y).Y)
			if d < 0 {
				d = -d
			}
			bx, by := x/blockW, y/blockH
			if bx >= grid {
				bx = grid - 1
			}
			if by >= grid {
				by = grid - 1
			}
			blockSum[by*grid+bx] += float64(d)
			blockN[by*grid+bx]++
			globalSum += float64(d)
			globalN++
		}
	}

	if globalN == 0 {
		result.Evidence = append(result.Evidence, "no uniform module interiors to sample")
		result.Score = 0.5
		return result
	}

	globalMean := globalSum / float64(globalN)

	var blockMeans []float64
	localized := 0.0
	for i := range blockSum {
		if blockN[i] < 16 {
			continue
		}
		m := blockSum[i] / float64(blockN[i])
		blockMeans = append(blockMeans, m)
		if m > localized {
			localized = m
		}
	}

	globalAnom := clamp01(globalMean / a.th.GlobalNoiseCeiling)

	ratioAnom := 0.0
	if globalMean > 0.5 && len(blockMeans) > 1 {
		ratio := localized / globalMean
		if ratio > a.th.NoiseRatioThreshold {
			ratioAnom = clamp01((ratio - a.th.NoiseRatioThreshold) /
				(a.th.NoiseRatioCeiling - a.th.NoiseRatioThreshold))
			result.Evidence = append(result.Evidence,
				fmt.Sprintf("localized noise concentration: hottest block %.1fx the global residual (spread %.2f)",
					ratio, stat.StdDev(blockMeans, nil)))
		}
	}

	result.Score = clamp01(0.8*ratioAnom + 0.2*globalAnom)
	if globalAnom > 0.8 {
		result.Evidence = append(result.Evidence,
			fmt.Sprintf("high overall residual noise: mean %.1f per interior pixel", globalMean))
	}
	return result
}

// interiorAt reports whether the 3x3 neighbourhood around (x,y) is a single
// colour in the binarized mask.
func interiorAt(mask []bool, w, x, y int) bool {
	v := mask[y*w+x]
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if mask[(y+dy)*w+(x+dx)] != v {
				return false
			}
		}
	}
	return true
}
