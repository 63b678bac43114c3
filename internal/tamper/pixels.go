package tamper

import (
	"image"
	"image/color"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Shared pixel routines used by the metric analyzers. Everything here is
// deterministic: fixed iteration order, no floating-point reductions that
// depend on goroutine scheduling.

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// laplacianVariance measures sharpness with the 4-neighbour Laplacian
// kernel [0 1 0; 1 -4 1; 0 1 0].
func laplacianVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	data := make([]float64, 0, (width-2)*(height-2))
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			top := float64(gray.GrayAt(x, y-1).Y)
			bottom := float64(gray.GrayAt(x, y+1).Y)
			left := float64(gray.GrayAt(x-1, y).Y)
			right := float64(gray.GrayAt(x+1, y).Y)
			data = append(data, -4*center+top+bottom+left+right)
		}
	}
	if len(data) == 0 {
		return 0
	}
	return stat.Variance(data, nil)
}

// otsuThreshold picks the global binarization threshold that maximizes
// between-class variance of the intensity histogram.
func otsuThreshold(gray *image.Gray) uint8 {
	var hist [256]int
	bounds := gray.Bounds()
	total := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[gray.GrayAt(x, y).Y]++
			total++
		}
	}
	if total == 0 {
		return 128
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i) * float64(n)
	}

	var sumB, wB float64
	var best float64
	threshold := 128
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = t
		}
	}
	return uint8(threshold)
}

// binarize returns a row-major dark/light mask: true means dark (module).
// The threshold intensity itself belongs to the dark class, matching how
// otsuThreshold accumulates its background class.
func binarize(gray *image.Gray, threshold uint8) []bool {
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	mask := make([]bool, w*h)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			mask[i] = gray.GrayAt(x, y).Y <= threshold
			i++
		}
	}
	return mask
}

// darkFraction is the share of dark pixels in a mask.
func darkFraction(mask []bool) float64 {
	if len(mask) == 0 {
		return 0
	}
	dark := 0
	for _, d := range mask {
		if d {
			dark++
		}
	}
	return float64(dark) / float64(len(mask))
}

// median3x3 applies a 3x3 median filter; border pixels are copied through.
func median3x3(gray *image.Gray) *image.Gray {
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := image.NewGray(bounds)
	copy(out.Pix, gray.Pix)

	var window [9]int
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			k := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					window[k] = int(gray.GrayAt(x+dx, y+dy).Y)
					k++
				}
			}
			s := window[:]
			sort.Ints(s)
			out.SetGray(x, y, color.Gray{Y: uint8(s[4])})
		}
	}
	return out
}

// percentile returns the p-th percentile (0..100) of sorted histogram data.
func percentile(hist *[256]int, total int, p float64) float64 {
	if total == 0 {
		return 0
	}
	target := p / 100 * float64(total-1)
	cum := 0
	for v := 0; v < 256; v++ {
		cum += hist[v]
		if float64(cum-1) >= target {
			return float64(v)
		}
	}
	return 255
}
