// Package repository caches analysis verdicts keyed by the SHA-256 of the
// submitted image bytes. Reports are deterministic over identical input, so
// a cached verdict is exactly what a fresh analysis would produce.
package repository

import (
	"context"
	"errors"

	"github.com/ugguru/url-fraud-detection/internal/dispatch"
	"github.com/ugguru/url-fraud-detection/internal/tamper"
)

// ErrNotFound reports a cache miss.
var ErrNotFound = errors.New("verdict not found")

// CachedVerdict is the cacheable core of an analysis: the tampering report
// plus the content checks on its payload. Per-request envelope fields (id,
// timestamp, processing time) are never cached.
type CachedVerdict struct {
	Report  *tamper.Report           `json:"report"`
	Content *dispatch.ContentVerdict `json:"content,omitempty"`
}

// VerdictCache stores verdicts by image digest.
type VerdictCache interface {
	Get(ctx context.Context, key string) (*CachedVerdict, error)
	Set(ctx context.Context, key string, verdict *CachedVerdict) error
	Close(ctx context.Context) error
}
