// Package storage fetches QR image bytes from remote references. Decoding
// and normalization happen downstream in the imaging package, so fetchers
// hand back raw bytes untouched.
package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/ugguru/url-fraud-detection/internal/errors"
)

// ImageSource resolves an image reference to its raw bytes.
type ImageSource interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// maxImageBytes caps a single fetch. QR submissions are small; anything
// past this is either not an image or not worth analyzing.
const maxImageBytes = 20 << 20

// HTTPImageSource fetches images over HTTP with bounded retries.
type HTTPImageSource struct {
	client *http.Client
}

// NewHTTPImageSource creates an HTTP image source.
func NewHTTPImageSource(timeout time.Duration) ImageSource {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,

		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
	}

	return &HTTPImageSource{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
	}
}

// Fetch downloads the image at ref. Transient failures (network errors and
// 5xx) are retried up to 3 attempts with linear backoff; 4xx responses fail
// immediately.
func (h *HTTPImageSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid image URL", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, */*")
	req.Header.Set("User-Agent", "qr-fraud-detection/1.0")

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, apperrors.NewTimeoutError("image fetch abandoned", ctx.Err())
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		resp, err := h.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
			resp.Body.Close()
			if err != nil {
				lastErr = err
				continue
			}
			if len(data) > maxImageBytes {
				return nil, apperrors.NewValidationError(
					fmt.Sprintf("image exceeds %d byte limit", maxImageBytes), nil)
			}
			return data, nil

		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			resp.Body.Close()
			return nil, apperrors.NewNetworkError(
				fmt.Sprintf("client error: status code %d", resp.StatusCode), nil)

		default:
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: status code %d", resp.StatusCode)
		}
	}

	return nil, apperrors.NewNetworkError("failed to fetch image after 3 attempts", lastErr)
}
