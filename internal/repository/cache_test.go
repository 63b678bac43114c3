package repository

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/ugguru/url-fraud-detection/internal/dispatch"
	"github.com/ugguru/url-fraud-detection/internal/tamper"
)

func sampleVerdict() *CachedVerdict {
	return &CachedVerdict{
		Report: &tamper.Report{
			Results: []tamper.MetricResult{
				{Metric: tamper.MetricQuality, Score: 0.1},
				{Metric: tamper.MetricStructure, Score: 0.2},
				{Metric: tamper.MetricNoise, Score: 0.3},
				{Metric: tamper.MetricSymmetry, Score: 0.4},
				{Metric: tamper.MetricFinder, Score: 0.5},
			},
			RiskScore:      0.31,
			Severity:       tamper.SeverityMedium,
			Payload:        "https://example.com",
			PayloadPresent: true,
		},
		Content: &dispatch.ContentVerdict{Kind: dispatch.KindURL},
	}
}

func TestMemoryCache_SetGet(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(time.Minute)
	t.Cleanup(func() { _ = cache.Close(ctx) })

	if _, err := cache.Get(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for miss, got %v", err)
	}

	want := sampleVerdict()
	if err := cache.Set(ctx, "digest", want); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	got, err := cache.Get(ctx, "digest")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Report.RiskScore != want.Report.RiskScore {
		t.Errorf("risk score = %v, want %v", got.Report.RiskScore, want.Report.RiskScore)
	}
	if got.Content.Kind != dispatch.KindURL {
		t.Errorf("content kind = %q, want %q", got.Content.Kind, dispatch.KindURL)
	}
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(10 * time.Millisecond)

	if err := cache.Set(ctx, "digest", sampleVerdict()); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	if _, err := cache.Get(ctx, "digest"); err != ErrNotFound {
		t.Fatalf("expected expired entry to miss, got %v", err)
	}
}

func TestRedisCache_Lifecycle(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	cache, err := NewRedisCache(mr.Addr(), "", 0, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisCache error: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close(ctx) })

	if _, err := cache.Get(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for miss, got %v", err)
	}

	want := sampleVerdict()
	if err := cache.Set(ctx, "digest", want); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	got, err := cache.Get(ctx, "digest")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Report.Severity != want.Report.Severity {
		t.Errorf("severity = %q, want %q", got.Report.Severity, want.Report.Severity)
	}
	if len(got.Report.Results) != tamper.MetricCount {
		t.Errorf("cached report has %d results, want %d", len(got.Report.Results), tamper.MetricCount)
	}
	if got.Report.Payload != want.Report.Payload {
		t.Errorf("payload = %q, want %q", got.Report.Payload, want.Report.Payload)
	}
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	cache, err := NewRedisCache(mr.Addr(), "", 0, time.Second)
	if err != nil {
		t.Fatalf("NewRedisCache error: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close(ctx) })

	if err := cache.Set(ctx, "digest", sampleVerdict()); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	mr.FastForward(2 * time.Second)

	if _, err := cache.Get(ctx, "digest"); err != ErrNotFound {
		t.Fatalf("expected expired entry to miss, got %v", err)
	}
}

func TestNewRedisCache_RequiresAddr(t *testing.T) {
	if _, err := NewRedisCache("", "", 0, time.Minute); err == nil {
		t.Fatal("expected error for empty address")
	}
}
