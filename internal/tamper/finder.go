package tamper

import (
	"fmt"
	"math"

	"github.com/ugguru/url-fraud-detection/internal/imaging"
)

// finderAnalyzer locates the three nested-square markers by their
// characteristic 1:1:3:1:1 dark/light run ratio and checks that the found
// set is geometrically consistent. An absent or malformed marker is the
// strongest single forgery signal this engine has, which is why fusion
// weighs this metric highest.
type finderAnalyzer struct {
	th Thresholds
}

func newFinderAnalyzer(th Thresholds) MetricAnalyzer {
	return &finderAnalyzer{th: th}
}

func (a *finderAnalyzer) Metric() Metric {
	return MetricFinder
}

// finderCandidate is a confirmed pattern center with its module size.
type finderCandidate struct {
	x, y   float64
	module float64
	hits   int
}

func (a *finderAnalyzer) Analyze(f *imaging.Frame) MetricResult {
	result := MetricResult{
		Metric: MetricFinder,
		Cost:   int64(f.Width) * int64(f.Height) * 2,
	}

	threshold := otsuThreshold(f.Gray)
	mask := binarize(f.Gray, threshold)
	patterns := a.locate(mask, f.Width, f.Height)

	switch {
	case len(patterns) == 0:
		// Not an analyzer failure: an unlocatable finder set is exactly
		// what an obliterated or fully repainted code looks like.
		result.Score = 1.0
		result.Evidence = append(result.Evidence, NoteNoFinderPattern)
		return result
	case len(patterns) == 1:
		result.Score = 0.8
		result.Evidence = append(result.Evidence, "only 1 of 3 finder patterns located")
		return result
	case len(patterns) == 2:
		result.Score = 0.6
		result.Evidence = append(result.Evidence, "only 2 of 3 finder patterns located")
		return result
	}

	best := strongestThree(patterns)
	score := 0.05

	// Module sizes across the three markers must agree.
	minMod, maxMod := best[0].module, best[0].module
	for _, p := range best[1:] {
		minMod = math.Min(minMod, p.module)
		maxMod = math.Max(maxMod, p.module)
	}
	if modSpread := maxMod/minMod - 1; modSpread > 0.25 {
		score += clamp01((modSpread-0.25)/0.75) * 0.3
		result.Evidence = append(result.Evidence,
			fmt.Sprintf("finder pattern sizes disagree: modules %.1fpx to %.1fpx", minMod, maxMod))
	}

	// The three centers form a right isosceles triangle: two equal legs and
	// a hypotenuse sqrt(2) longer.
	d01 := dist(best[0], best[1])
	d02 := dist(best[0], best[2])
	d12 := dist(best[1], best[2])
	legA, legB, hyp := sortTriangle(d01, d02, d12)
	legDev := math.Abs(legA-legB) / math.Max(legA, 1)
	hypDev := math.Abs(hyp-legB*math.Sqrt2) / math.Max(hyp, 1)
	if legDev > 0.15 || hypDev > 0.15 {
		score += clamp01(math.Max(legDev, hypDev)-0.15) * 2 * 0.3
		result.Evidence = append(result.Evidence,
			fmt.Sprintf("inter-pattern distances inconsistent: legs %.0f/%.0f, hypotenuse %.0f", legA, legB, hyp))
	}

	if len(patterns) > 4 {
		// Genuine codes have exactly three; a forest of marker-like shapes
		// points at a composited image.
		score += 0.15
		result.Evidence = append(result.Evidence,
			fmt.Sprintf("%d finder-like patterns located where 3 are expected", len(patterns)))
	}

	result.Score = clamp01(score)
	return result
}

// locate scans every row for 1:1:3:1:1 run sequences and cross-checks each
// horizontal hit against the vertical runs through its center, then merges
// nearby hits into candidates. Scan work is linear in the pixel count, so
// the search is bounded by construction.
func (a *finderAnalyzer) locate(mask []bool, w, h int) []finderCandidate {
	var candidates []finderCandidate

	for y := 0; y < h; y++ {
		runs, starts := rowRuns(mask, w, y)
		// A pattern needs five consecutive runs starting and ending dark.
		for i := 0; i+4 < len(runs); i++ {
			if !mask[y*w+starts[i]] {
				continue // sequence must start on a dark run
			}
			seg := runs[i : i+5]
			module, ok := a.checkRatios(seg)
			if !ok {
				continue
			}
			centerX := starts[i+2] + runs[i+2]/2
			if !a.verifyVertical(mask, w, h, centerX, y, module) {
				continue
			}
			candidates = mergeCandidate(candidates, finderCandidate{
				x:      float64(centerX),
				y:      float64(y),
				module: module,
				hits:   1,
			})
		}
	}

	// Require repeated confirmation: a real marker is hit on many scan
	// lines, stray texture is not. The minimum of two hits keeps
	// single-line noise out entirely.
	var confirmed []finderCandidate
	for _, c := range candidates {
		if float64(c.hits) >= math.Max(2, c.module*0.75) {
			confirmed = append(confirmed, c)
		}
	}
	return confirmed
}

// checkRatios tests five run lengths against 1:1:3:1:1 within tolerance.
func (a *finderAnalyzer) checkRatios(runs []int) (float64, bool) {
	total := 0
	for _, r := range runs {
		if r == 0 {
			return 0, false
		}
		total += r
	}
	module := float64(total) / 7
	if module < 1.5 {
		return 0, false
	}
	expected := [5]float64{1, 1, 3, 1, 1}
	for i, r := range runs {
		dev := math.Abs(float64(r)-expected[i]*module) / module
		limit := a.th.FinderRatioTolerance
		if expected[i] > 1 {
			limit *= expected[i] // the wide center run tolerates more
		}
		if dev > limit {
			return 0, false
		}
	}
	return module, true
}

// verifyVertical confirms the 1:1:3:1:1 sequence along the column through
// a horizontal hit, centered on the candidate row.
func (a *finderAnalyzer) verifyVertical(mask []bool, w, h, cx, cy int, module float64) bool {
	if !mask[cy*w+cx] {
		return false
	}
	// Walk outwards through the expected dark-light-dark transitions.
	up := countRuns(mask, w, h, cx, cy, -1)
	down := countRuns(mask, w, h, cx, cy, +1)
	if len(up) < 3 || len(down) < 3 {
		return false
	}
	runs := []int{
		up[2], up[1],
		up[0] + down[0] - 1, // center run counted from both directions
		down[1], down[2],
	}
	_, ok := a.checkRatios(runs)
	return ok
}

// countRuns walks vertically from (cx,cy) collecting the first three run
// lengths (dark, light, dark).
func countRuns(mask []bool, w, h, cx, cy, dir int) []int {
	var runs []int
	current := mask[cy*w+cx]
	length := 0
	for y := cy; y >= 0 && y < h; y += dir {
		v := mask[y*w+cx]
		if v == current {
			length++
			continue
		}
		runs = append(runs, length)
		if len(runs) == 3 {
			return runs
		}
		current = v
		length = 1
	}
	runs = append(runs, length)
	if len(runs) < 3 {
		return nil
	}
	return runs[:3]
}

// rowRuns splits one row of the mask into run lengths with start offsets.
func rowRuns(mask []bool, w, y int) ([]int, []int) {
	var runs, starts []int
	current := mask[y*w]
	start := 0
	for x := 1; x < w; x++ {
		if mask[y*w+x] == current {
			continue
		}
		runs = append(runs, x-start)
		starts = append(starts, start)
		current = mask[y*w+x]
		start = x
	}
	runs = append(runs, w-start)
	starts = append(starts, start)
	return runs, starts
}

// mergeCandidate folds a hit into an existing nearby candidate or appends
// a new one. Deterministic: candidates keep first-seen order.
func mergeCandidate(candidates []finderCandidate, c finderCandidate) []finderCandidate {
	for i := range candidates {
		e := &candidates[i]
		if math.Abs(e.x-c.x) < e.module*2 && math.Abs(e.y-c.y) < e.module*4 {
			n := float64(e.hits)
			e.x = (e.x*n + c.x) / (n + 1)
			e.y = (e.y*n + c.y) / (n + 1)
			e.module = (e.module*n + c.module) / (n + 1)
			e.hits++
			return candidates
		}
	}
	return append(candidates, c)
}

// strongestThree picks the three candidates with the most scan-line
// confirmations, preserving deterministic order for ties.
func strongestThree(patterns []finderCandidate) [3]finderCandidate {
	sorted := append([]finderCandidate(nil), patterns...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].hits > sorted[j-1].hits; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return [3]finderCandidate{sorted[0], sorted[1], sorted[2]}
}

func dist(a, b finderCandidate) float64 {
	return math.Hypot(a.x-b.x, a.y-b.y)
}

// sortTriangle orders three side lengths ascending.
func sortTriangle(a, b, c float64) (float64, float64, float64) {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b, c = c, b
	}
	if a > b {
		a, b = b, a
	}
	return a, b, c
}
