// Package container wires the dependency graph of the service.
package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ugguru/url-fraud-detection/internal/config"
	"github.com/ugguru/url-fraud-detection/internal/decoder"
	"github.com/ugguru/url-fraud-detection/internal/dispatch"
	"github.com/ugguru/url-fraud-detection/internal/factory"
	"github.com/ugguru/url-fraud-detection/internal/logger"
	"github.com/ugguru/url-fraud-detection/internal/observer"
	"github.com/ugguru/url-fraud-detection/internal/repository"
	"github.com/ugguru/url-fraud-detection/internal/service"
	"github.com/ugguru/url-fraud-detection/internal/storage"
	"github.com/ugguru/url-fraud-detection/internal/tamper"
	"github.com/ugguru/url-fraud-detection/internal/transport"
	"github.com/ugguru/url-fraud-detection/pkg/validation"
)

// Container holds the application dependencies.
type Container struct {
	config    *config.Config
	source    storage.ImageSource
	cache     repository.VerdictCache
	engine    *tamper.Engine
	service   service.AnalysisService
	metrics   *observer.MetricsObserver
	publisher observer.Subject
	handler   http.Handler
}

// NewContainer builds the full dependency graph from the configuration.
func NewContainer(cfg *config.Config) (*Container, error) {
	opts, err := factory.EngineOptions(cfg)
	if err != nil {
		return nil, fmt.Errorf("engine options: %w", err)
	}

	source, err := factory.NewImageSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("image source: %w", err)
	}

	cache, err := factory.NewVerdictCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("verdict cache: %w", err)
	}

	engine := tamper.NewEngine(opts, decoder.NewZXing())

	urls := validation.NewURLAnalyzer()
	upis := validation.NewUPIValidator()
	dispatcher := dispatch.NewDispatcher(urls, upis)

	metrics := observer.NewMetricsObserver()
	publisher := observer.NewEventPublisher()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)

	svc := service.NewAnalysisService(engine, source, cache, dispatcher, urls, upis, publisher)
	handler := transport.NewHandler(svc, metrics, cfg)

	return &Container{
		config:    cfg,
		source:    source,
		cache:     cache,
		engine:    engine,
		service:   svc,
		metrics:   metrics,
		publisher: publisher,
		handler:   handler,
	}, nil
}

// Handler returns the HTTP handler.
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the analysis service.
func (c *Container) Service() service.AnalysisService {
	return c.service
}

// Close releases held resources.
func (c *Container) Close(ctx context.Context) error {
	if c.cache != nil {
		return c.cache.Close(ctx)
	}
	return nil
}
