// Package observer broadcasts analysis lifecycle events to pluggable
// sinks. The service publishes, observers consume; a slow or panicking
// observer never blocks an analysis.
package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ugguru/url-fraud-detection/internal/tamper"
)

// EventType names an analysis lifecycle event.
type EventType string

const (
	AnalysisStarted   EventType = "analysis_started"
	AnalysisCompleted EventType = "analysis_completed"
	AnalysisFailed    EventType = "analysis_failed"
	MetricCompleted   EventType = "metric_completed"
	CacheHit          EventType = "cache_hit"
)

// AnalysisEvent is one lifecycle event for one submission.
type AnalysisEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	ImageKey       string                 `json:"image_key"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Severity       tamper.Severity        `json:"severity,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Observer consumes analysis events.
type Observer interface {
	OnEvent(ctx context.Context, event AnalysisEvent)
	GetObserverName() string
}

// Subject publishes analysis events to subscribed observers.
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event AnalysisEvent)
}

// LoggingObserver writes each event to the structured log.
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a logging observer.
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{logger: logger}
}

func (o *LoggingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"image_key":       event.ImageKey,
		"processing_time": event.ProcessingTime,
	}
	if event.Severity != "" {
		fields["severity"] = event.Severity
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	switch event.EventType {
	case AnalysisStarted:
		o.logger.WithFields(fields).Info("QR analysis started")
	case AnalysisCompleted:
		o.logger.WithFields(fields).Info("QR analysis completed")
	case AnalysisFailed:
		o.logger.WithFields(fields).Error("QR analysis failed")
	case MetricCompleted:
		o.logger.WithFields(fields).Debug("metric completed")
	case CacheHit:
		o.logger.WithFields(fields).Debug("verdict served from cache")
	default:
		o.logger.WithFields(fields).Info("analysis event occurred")
	}
}

func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver aggregates counters over the event stream.
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalAnalyses       int64
	successfulAnalyses  int64
	failedAnalyses      int64
	cacheHits           int64
	severityCounts      map[tamper.Severity]int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a metrics observer.
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{
		severityCounts: make(map[tamper.Severity]int64),
	}
}

func (o *MetricsObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case AnalysisStarted:
		o.totalAnalyses++
	case AnalysisCompleted:
		o.successfulAnalyses++
		o.totalProcessingTime += event.ProcessingTime
		if event.Severity != "" {
			o.severityCounts[event.Severity]++
		}
	case AnalysisFailed:
		o.failedAnalyses++
	case CacheHit:
		o.cacheHits++
	}
}

func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns a snapshot of the aggregated counters.
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgProcessingTime := time.Duration(0)
	if o.successfulAnalyses > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.successfulAnalyses)
	}

	severities := make(map[string]int64, len(o.severityCounts))
	for s, n := range o.severityCounts {
		severities[string(s)] = n
	}

	return map[string]interface{}{
		"total_analyses":      o.totalAnalyses,
		"successful_analyses": o.successfulAnalyses,
		"failed_analyses":     o.failedAnalyses,
		"cache_hits":          o.cacheHits,
		"severity_counts":     severities,
		"avg_processing_time": avgProcessingTime.String(),
	}
}

// EventPublisher fans events out to all subscribed observers.
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates an empty publisher.
func NewEventPublisher() Subject {
	return &EventPublisher{observers: make([]Observer, 0)}
}

func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers the event to every observer on its own
// goroutine, recovering panics per observer.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event AnalysisEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		go func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}
