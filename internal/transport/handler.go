package transport

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ugguru/url-fraud-detection/internal/config"
	apperrors "github.com/ugguru/url-fraud-detection/internal/errors"
	"github.com/ugguru/url-fraud-detection/internal/logger"
	"github.com/ugguru/url-fraud-detection/internal/observer"
	"github.com/ugguru/url-fraud-detection/internal/service"
	"github.com/ugguru/url-fraud-detection/pkg/models"
)

func validateImageRef(ref string) error {
	parsed, err := url.Parse(ref)
	if err != nil {
		return apperrors.NewValidationError("invalid reference format", err)
	}
	if parsed.Host == "" {
		return apperrors.NewValidationError("reference must have a valid host", nil)
	}
	return nil
}

// NewHandler builds the HTTP surface: analysis, content checks, health and
// stats.
func NewHandler(svc service.AnalysisService, metrics *observer.MetricsObserver, cfg *config.Config) http.Handler {
	r := gin.Default()

	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/health", healthCheck)
	r.GET("/stats", statsHandler(metrics))
	r.POST("/analyze", analyzeImage(svc, cfg))
	r.POST("/check/url", checkURL(svc))
	r.POST("/check/upi", checkUPI(svc))

	return r
}

// analyzeImage accepts either a multipart upload under the image field or a
// JSON body referencing a remote image.
func analyzeImage(svc service.AnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		}).Info("processing analysis request")

		var (
			resp *models.AnalysisResponse
			err  error
		)

		if file, _ := c.FormFile("image"); file != nil {
			var data []byte
			data, err = readUpload(file)
			if err == nil {
				resp, err = svc.AnalyzeBytes(ctx, data, nil)
			}
		} else {
			var req models.AnalysisRequest
			if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
				respondError(c, http.StatusBadRequest, "invalid request format", bindErr)
				return
			}
			if vErr := validateImageRef(req.ImageRef); vErr != nil {
				respondError(c, apperrors.GetStatusCode(vErr), "invalid image reference", vErr)
				return
			}
			resp, err = svc.AnalyzeRef(ctx, req.ImageRef, nil)
		}

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = apperrors.NewTimeoutError("analysis timed out", err)
			}
			respondError(c, apperrors.GetStatusCode(err), "analysis failed", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"digest":     resp.ImageDigest,
			"risk_score": resp.Report.RiskScore,
			"severity":   resp.Report.Severity,
			"cache_hit":  resp.CacheHit,
		}).Info("analysis completed")

		c.JSON(http.StatusOK, resp)
	}
}

func checkURL(svc service.AnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.URLCheckRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}
		c.JSON(http.StatusOK, svc.CheckURL(req.URL))
	}
}

func checkUPI(svc service.AnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UPICheckRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}
		c.JSON(http.StatusOK, svc.CheckUPI(req.Handle))
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func statsHandler(metrics *observer.MetricsObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.JSON(http.StatusOK, metrics.GetMetrics())
	}
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("cannot read upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperrors.NewValidationError("cannot read upload", err)
	}
	return data, nil
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	if appErr, ok := err.(*apperrors.AppError); ok {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("request failed")

	detail := message
	if err != nil {
		detail = message + ": " + err.Error()
	}
	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: detail,
	})
}
