package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ugguru/url-fraud-detection/internal/dispatch"
	apperrors "github.com/ugguru/url-fraud-detection/internal/errors"
	"github.com/ugguru/url-fraud-detection/internal/imaging"
	"github.com/ugguru/url-fraud-detection/internal/logger"
	"github.com/ugguru/url-fraud-detection/internal/observer"
	"github.com/ugguru/url-fraud-detection/internal/repository"
	"github.com/ugguru/url-fraud-detection/internal/storage"
	"github.com/ugguru/url-fraud-detection/internal/tamper"
	"github.com/ugguru/url-fraud-detection/pkg/models"
	"github.com/ugguru/url-fraud-detection/pkg/validation"
)

// AnalysisService is the application-level entry point for QR fraud checks.
type AnalysisService interface {
	// AnalyzeBytes runs the full tampering analysis over raw image bytes.
	AnalyzeBytes(ctx context.Context, data []byte, progress tamper.ProgressFunc) (*models.AnalysisResponse, error)

	// AnalyzeRef fetches the image behind ref and analyzes it.
	AnalyzeRef(ctx context.Context, ref string, progress tamper.ProgressFunc) (*models.AnalysisResponse, error)

	// CheckURL runs the phishing heuristics on one URL.
	CheckURL(rawURL string) *validation.URLVerdict

	// CheckUPI runs the syntax and provider checks on one UPI handle.
	CheckUPI(handle string) *validation.UPIVerdict
}

type analysisService struct {
	engine     *tamper.Engine
	source     storage.ImageSource
	cache      repository.VerdictCache
	dispatcher dispatch.Dispatcher
	urls       *validation.URLAnalyzer
	upis       *validation.UPIValidator
	publisher  observer.Subject
}

// NewAnalysisService wires the engine with its collaborators. cache and
// publisher may be nil; source may be nil when only byte submissions and
// content checks are served.
func NewAnalysisService(
	engine *tamper.Engine,
	source storage.ImageSource,
	cache repository.VerdictCache,
	dispatcher dispatch.Dispatcher,
	urls *validation.URLAnalyzer,
	upis *validation.UPIValidator,
	publisher observer.Subject,
) AnalysisService {
	return &analysisService{
		engine:     engine,
		source:     source,
		cache:      cache,
		dispatcher: dispatcher,
		urls:       urls,
		upis:       upis,
		publisher:  publisher,
	}
}

func (s *analysisService) AnalyzeBytes(ctx context.Context, data []byte, progress tamper.ProgressFunc) (*models.AnalysisResponse, error) {
	start := time.Now()
	digest := imageDigest(data)

	if cached := s.cachedVerdict(ctx, digest); cached != nil {
		s.notify(ctx, observer.AnalysisEvent{
			EventType: observer.CacheHit,
			Timestamp: time.Now(),
			ImageKey:  digest,
			Severity:  cached.Report.Severity,
		})
		return s.envelope(digest, start, cached, true), nil
	}

	// Load fails before any progress event fires, so a callback never sees
	// a partial analysis of undecodable input.
	frame, err := imaging.Load(data)
	if err != nil {
		s.notifyFailure(ctx, digest, err)
		return nil, err
	}

	s.notify(ctx, observer.AnalysisEvent{
		EventType: observer.AnalysisStarted,
		Timestamp: time.Now(),
		ImageKey:  digest,
	})

	report, err := s.engine.Analyze(ctx, frame, s.wrapProgress(ctx, digest, progress))
	if err != nil {
		s.notifyFailure(ctx, digest, err)
		return nil, err
	}

	verdict := &repository.CachedVerdict{Report: report}
	if report.PayloadPresent && s.dispatcher != nil {
		verdict.Content = s.dispatcher.Dispatch(report.Payload)
	}

	s.storeVerdict(ctx, digest, verdict)
	s.notify(ctx, observer.AnalysisEvent{
		EventType:      observer.AnalysisCompleted,
		Timestamp:      time.Now(),
		ImageKey:       digest,
		ProcessingTime: time.Since(start),
		Severity:       report.Severity,
	})

	return s.envelope(digest, start, verdict, false), nil
}

func (s *analysisService) AnalyzeRef(ctx context.Context, ref string, progress tamper.ProgressFunc) (*models.AnalysisResponse, error) {
	if s.source == nil {
		return nil, apperrors.NewInternalError("no image source configured", nil)
	}
	data, err := s.source.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.AnalyzeBytes(ctx, data, progress)
}

func (s *analysisService) CheckURL(rawURL string) *validation.URLVerdict {
	return s.urls.Analyze(rawURL)
}

func (s *analysisService) CheckUPI(handle string) *validation.UPIVerdict {
	return s.upis.Verify(handle)
}

// wrapProgress forwards engine progress to the caller's callback and mirrors
// each completion into the event stream.
func (s *analysisService) wrapProgress(ctx context.Context, digest string, progress tamper.ProgressFunc) tamper.ProgressFunc {
	return func(ev tamper.ProgressEvent) {
		if s.publisher != nil {
			s.publisher.NotifyObservers(ctx, observer.AnalysisEvent{
				EventType: observer.MetricCompleted,
				Timestamp: time.Now(),
				ImageKey:  digest,
				Metadata: map[string]interface{}{
					"metric":   ev.Name,
					"fraction": ev.Fraction,
				},
			})
		}
		if progress != nil {
			progress(ev)
		}
	}
}

func (s *analysisService) cachedVerdict(ctx context.Context, digest string) *repository.CachedVerdict {
	if s.cache == nil {
		return nil
	}
	verdict, err := s.cache.Get(ctx, digest)
	if err != nil {
		if err != repository.ErrNotFound {
			logger.WithError(err).Warn("verdict cache lookup failed")
		}
		return nil
	}
	if verdict == nil || verdict.Report == nil {
		return nil
	}
	return verdict
}

// storeVerdict is best effort: a cache outage degrades to recomputation,
// never to a failed analysis.
func (s *analysisService) storeVerdict(ctx context.Context, digest string, verdict *repository.CachedVerdict) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, digest, verdict); err != nil {
		logger.WithFields(logrus.Fields{
			"digest": digest,
		}).WithError(err).Warn("verdict cache store failed")
	}
}

func (s *analysisService) envelope(digest string, start time.Time, verdict *repository.CachedVerdict, cacheHit bool) *models.AnalysisResponse {
	return &models.AnalysisResponse{
		ID:                uuid.NewString(),
		Timestamp:         time.Now().UTC(),
		ProcessingTimeSec: time.Since(start).Seconds(),
		ImageDigest:       digest,
		CacheHit:          cacheHit,
		Report:            verdict.Report,
		Content:           verdict.Content,
	}
}

func (s *analysisService) notify(ctx context.Context, event observer.AnalysisEvent) {
	if s.publisher != nil {
		s.publisher.NotifyObservers(ctx, event)
	}
}

func (s *analysisService) notifyFailure(ctx context.Context, digest string, err error) {
	s.notify(ctx, observer.AnalysisEvent{
		EventType:    observer.AnalysisFailed,
		Timestamp:    time.Now(),
		ImageKey:     digest,
		ErrorMessage: err.Error(),
	})
}

func imageDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
