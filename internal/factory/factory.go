// Package factory builds the configurable components of the service from
// their configured type names.
package factory

import (
	"fmt"
	"time"

	"github.com/ugguru/url-fraud-detection/internal/config"
	"github.com/ugguru/url-fraud-detection/internal/repository"
	"github.com/ugguru/url-fraud-detection/internal/storage"
	"github.com/ugguru/url-fraud-detection/internal/tamper"
)

// EngineOptions derives the engine options from the configuration.
func EngineOptions(cfg *config.Config) (tamper.Options, error) {
	opts := tamper.DefaultOptions().WithMetricTimeout(cfg.MetricTimeout)

	switch cfg.EngineMode {
	case string(tamper.ModeSequential):
		return opts.WithMode(tamper.ModeSequential), nil
	case string(tamper.ModeParallel):
		return opts.WithMode(tamper.ModeParallel), nil
	default:
		return tamper.Options{}, fmt.Errorf("unsupported engine mode: %s", cfg.EngineMode)
	}
}

// NewImageSource creates the configured remote image source.
func NewImageSource(cfg *config.Config) (storage.ImageSource, error) {
	switch cfg.StorageBackend {
	case "http":
		return storage.NewHTTPImageSource(cfg.FetchTimeout), nil
	case "azure":
		return storage.NewAzureImageSource(cfg.AzureAccountName, cfg.AzureAccountKey)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.StorageBackend)
	}
}

// NewVerdictCache creates the verdict cache: redis when an address is
// configured, in-process memory otherwise.
func NewVerdictCache(cfg *config.Config) (repository.VerdictCache, error) {
	if cfg.RedisAddr != "" {
		return repository.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return repository.NewMemoryCache(ttl), nil
}
