// Package models holds the shared request and response shapes of the API.
package models

import (
	"time"

	"github.com/ugguru/url-fraud-detection/internal/dispatch"
	"github.com/ugguru/url-fraud-detection/internal/tamper"
)

// AnalysisRequest asks for analysis of an image by reference. The handler
// also accepts direct multipart uploads, which bypass this struct.
type AnalysisRequest struct {
	ImageRef string `json:"image_ref" binding:"required,url"`
}

// URLCheckRequest asks for phishing heuristics on one URL.
type URLCheckRequest struct {
	URL string `json:"url" binding:"required"`
}

// UPICheckRequest asks for syntax and provider checks on one UPI handle.
type UPICheckRequest struct {
	Handle string `json:"handle" binding:"required"`
}

// AnalysisResponse is the envelope around a tampering report. The report
// itself is deterministic over identical input bytes; the envelope fields
// are per-request.
type AnalysisResponse struct {
	ID                string                   `json:"id"`
	Timestamp         time.Time                `json:"timestamp"`
	ProcessingTimeSec float64                  `json:"processing_time_sec"`
	ImageDigest       string                   `json:"image_digest"`
	CacheHit          bool                     `json:"cache_hit"`
	Report            *tamper.Report           `json:"report"`
	Content           *dispatch.ContentVerdict `json:"content,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
