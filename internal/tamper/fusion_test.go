package tamper

import (
	"math"
	"testing"

	apperrors "github.com/ugguru/url-fraud-detection/internal/errors"
)

func resultSet(quality, structure, noise, symmetry, finder float64) []MetricResult {
	return []MetricResult{
		{Metric: MetricQuality, Score: quality},
		{Metric: MetricStructure, Score: structure},
		{Metric: MetricNoise, Score: noise},
		{Metric: MetricSymmetry, Score: symmetry},
		{Metric: MetricFinder, Score: finder},
	}
}

func TestFusionWeightsSumToOne(t *testing.T) {
	var sum float64
	for _, w := range fusionWeights {
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-12 {
		t.Errorf("fusion weights sum to %v, want 1.0", sum)
	}
	if len(fusionWeights) != MetricCount {
		t.Errorf("fusion has %d weights, want %d", len(fusionWeights), MetricCount)
	}
}

func TestFuse_WeightedCombination(t *testing.T) {
	fused, severity, err := Fuse(resultSet(0.1, 0.2, 0.3, 0.4, 0.5))
	if err != nil {
		t.Fatalf("Fuse error: %v", err)
	}

	want := 0.10*0.1 + 0.25*0.2 + 0.15*0.3 + 0.20*0.4 + 0.30*0.5
	if math.Abs(fused-want) > 1e-12 {
		t.Errorf("fused = %v, want %v", fused, want)
	}
	if severity != SeverityMedium {
		t.Errorf("severity = %s, want Medium", severity)
	}
}

func TestFuse_AllClean(t *testing.T) {
	fused, severity, err := Fuse(resultSet(0, 0, 0, 0, 0))
	if err != nil {
		t.Fatalf("Fuse error: %v", err)
	}
	if fused != 0 {
		t.Errorf("fused = %v, want 0", fused)
	}
	if severity != SeverityLow {
		t.Errorf("severity = %s, want Low", severity)
	}
}

func TestFuse_MissingFinderFloor(t *testing.T) {
	// Weighted sum alone would be 0.30; the floor lifts it to High.
	fused, severity, err := Fuse(resultSet(0, 0, 0, 0, 1.0))
	if err != nil {
		t.Fatalf("Fuse error: %v", err)
	}
	if fused != 0.5 {
		t.Errorf("fused = %v, want the 0.5 floor", fused)
	}
	if severity != SeverityHigh {
		t.Errorf("severity = %s, want High", severity)
	}

	// A finder score below maximal anomaly is not floored.
	fused, _, err = Fuse(resultSet(0, 0, 0, 0, 0.99))
	if err != nil {
		t.Fatalf("Fuse error: %v", err)
	}
	if fused >= 0.5 {
		t.Errorf("fused = %v, want unfloored weighted sum below 0.5", fused)
	}
}

func TestSeverityBandBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  Severity
	}{
		{0, SeverityLow},
		{0.2499999, SeverityLow},
		{0.25, SeverityMedium},
		{0.4999999, SeverityMedium},
		{0.5, SeverityHigh},
		{0.7499999, SeverityHigh},
		{0.75, SeverityCritical},
		{1.0, SeverityCritical},
	}
	for _, tc := range cases {
		if got := SeverityFor(tc.score); got != tc.want {
			t.Errorf("SeverityFor(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestFuse_RejectsIncompleteInput(t *testing.T) {
	missing := resultSet(0.1, 0.2, 0.3, 0.4, 0.5)[:4]
	if _, _, err := Fuse(missing); err == nil {
		t.Error("expected error for a missing metric")
	} else if !apperrors.IsType(err, apperrors.ErrorTypeInternal) {
		t.Errorf("expected internal error, got %v", err)
	}

	duplicated := append(resultSet(0.1, 0.2, 0.3, 0.4, 0.5),
		MetricResult{Metric: MetricQuality, Score: 0.9})
	if _, _, err := Fuse(duplicated); err == nil {
		t.Error("expected error for a duplicated metric")
	}

	unknown := resultSet(0.1, 0.2, 0.3, 0.4, 0.5)
	unknown[0].Metric = "sharpness"
	if _, _, err := Fuse(unknown); err == nil {
		t.Error("expected error for an unknown metric")
	}
}

func TestFuse_ClampsOutOfRangeScores(t *testing.T) {
	fused, _, err := Fuse(resultSet(-0.5, 2.0, 0, 0, 0))
	if err != nil {
		t.Fatalf("Fuse error: %v", err)
	}
	// Quality clamps to 0, structure to 1.
	want := 0.25
	if math.Abs(fused-want) > 1e-12 {
		t.Errorf("fused = %v, want %v", fused, want)
	}
}

func TestFuse_Deterministic(t *testing.T) {
	in := resultSet(0.11, 0.23, 0.37, 0.41, 0.53)
	a, sa, err := Fuse(in)
	if err != nil {
		t.Fatalf("Fuse error: %v", err)
	}
	b, sb, err := Fuse(in)
	if err != nil {
		t.Fatalf("Fuse error: %v", err)
	}
	if a != b || sa != sb {
		t.Errorf("fusion not deterministic: %v/%s vs %v/%s", a, sa, b, sb)
	}
}
