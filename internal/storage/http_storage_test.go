package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "github.com/ugguru/url-fraud-detection/internal/errors"
)

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestHTTPImageSource_RetryLogic(t *testing.T) {
	tests := []struct {
		name           string
		responses      []int
		expectRequests int
		expectError    bool
		errorContains  string
	}{
		{
			name:           "success on first attempt",
			responses:      []int{200},
			expectRequests: 1,
		},
		{
			name:           "success on second attempt after 5xx",
			responses:      []int{500, 200},
			expectRequests: 2,
		},
		{
			name:           "4xx client error is not retried",
			responses:      []int{404},
			expectRequests: 1,
			expectError:    true,
			errorContains:  "client error: status code 404",
		},
		{
			name:           "4xx after 5xx stops retrying",
			responses:      []int{500, 404},
			expectRequests: 2,
			expectError:    true,
			errorContains:  "client error: status code 404",
		},
		{
			name:           "all 5xx exhausts the attempts",
			responses:      []int{500, 502, 503},
			expectRequests: 3,
			expectError:    true,
			errorContains:  "failed to fetch image after 3 attempts",
		},
	}

	payload := tinyPNG(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requestCount := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if requestCount >= len(tt.responses) {
					w.WriteHeader(500)
					return
				}
				status := tt.responses[requestCount]
				requestCount++
				if status == 200 {
					w.Header().Set("Content-Type", "image/png")
					w.Write(payload)
					return
				}
				w.WriteHeader(status)
				fmt.Fprintf(w, "error %d", status)
			}))
			defer server.Close()

			source := NewHTTPImageSource(30 * time.Second)
			data, err := source.Fetch(context.Background(), server.URL)

			if requestCount != tt.expectRequests {
				t.Errorf("expected %d requests, got %d", tt.expectRequests, requestCount)
			}

			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got none")
				}
				if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("expected error containing %q, got %q", tt.errorContains, err.Error())
				}
				if !apperrors.IsType(err, apperrors.ErrorTypeNetwork) {
					t.Errorf("expected network error type, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(data, payload) {
				t.Error("fetched bytes do not match the served payload")
			}
		})
	}
}

func TestHTTPImageSource_NetworkErrorRetry(t *testing.T) {
	requestCount := 0
	payload := tinyPNG(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		if requestCount < 3 {
			hj, ok := w.(http.Hijacker)
			if ok {
				conn, _, _ := hj.Hijack()
				conn.Close()
			}
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	defer server.Close()

	source := NewHTTPImageSource(30 * time.Second)

	start := time.Now()
	_, err := source.Fetch(context.Background(), server.URL)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if requestCount != 3 {
		t.Errorf("expected 3 requests, got %d", requestCount)
	}
	// Linear backoff sleeps 1s then 2s before the retries.
	if elapsed < 3*time.Second {
		t.Errorf("expected at least 3s of backoff, took %v", elapsed)
	}
}

func TestHTTPImageSource_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := NewHTTPImageSource(30 * time.Second)
	_, err := source.Fetch(ctx, server.URL)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
