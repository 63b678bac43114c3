package transport

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ugguru/url-fraud-detection/internal/config"
	"github.com/ugguru/url-fraud-detection/internal/dispatch"
	"github.com/ugguru/url-fraud-detection/internal/observer"
	"github.com/ugguru/url-fraud-detection/internal/service"
	"github.com/ugguru/url-fraud-detection/internal/tamper"
	"github.com/ugguru/url-fraud-detection/pkg/models"
	"github.com/ugguru/url-fraud-detection/pkg/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		RequestTimeout:     30 * time.Second,
		MaxRequestBodySize: 10 << 20,
	}
}

func testHandler(t *testing.T) http.Handler {
	t.Helper()
	engine := tamper.NewEngine(tamper.DefaultOptions(), nil)
	urls := validation.NewURLAnalyzer()
	upis := validation.NewUPIValidator()
	svc := service.NewAnalysisService(engine, nil, nil, dispatch.NewDispatcher(urls, upis), urls, upis, nil)
	return NewHandler(svc, observer.NewMetricsObserver(), testConfig())
}

func qrLikePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if (x/8+y/8)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 0})
			} else {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func multipartImage(t *testing.T, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "qr.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestHealthEndpoint(t *testing.T) {
	handler := testHandler(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "available") {
		t.Errorf("unexpected health body: %s", rec.Body.String())
	}
}

func TestAnalyzeEndpoint_MultipartUpload(t *testing.T) {
	handler := testHandler(t)

	body, contentType := multipartImage(t, qrLikePNG(t))
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp models.AnalysisResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Report == nil || len(resp.Report.Results) != tamper.MetricCount {
		t.Fatalf("response report incomplete: %+v", resp.Report)
	}
	if resp.ImageDigest == "" {
		t.Error("response is missing the image digest")
	}
}

func TestAnalyzeEndpoint_UndecodableUpload(t *testing.T) {
	handler := testHandler(t)

	body, contentType := multipartImage(t, []byte("definitely not an image"))
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
}

func TestAnalyzeEndpoint_RejectsBadJSON(t *testing.T) {
	handler := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"image_ref": "not a url"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCheckURLEndpoint(t *testing.T) {
	handler := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/check/url",
		strings.NewReader(`{"url": "http://bit.ly/claim-free-gift"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var verdict validation.URLVerdict
	if err := json.Unmarshal(rec.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("unmarshal verdict: %v", err)
	}
	if !verdict.Shortened {
		t.Error("expected shortener detection")
	}
}

func TestCheckUPIEndpoint(t *testing.T) {
	handler := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/check/upi",
		strings.NewReader(`{"handle": "merchant@paytm@ybl"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var verdict validation.UPIVerdict
	if err := json.Unmarshal(rec.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("unmarshal verdict: %v", err)
	}
	if verdict.Valid {
		t.Error("doubled-suffix handle must be invalid")
	}
	if verdict.RiskLevel != tamper.SeverityCritical {
		t.Errorf("risk level = %s, want Critical", verdict.RiskLevel)
	}
}

func TestStatsEndpoint(t *testing.T) {
	handler := testHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var stats map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if _, ok := stats["total_analyses"]; !ok {
		t.Error("stats body is missing total_analyses")
	}
}
