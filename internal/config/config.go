package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config carries all runtime settings for the service.
type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	FetchTimeout       time.Duration
	AnalysisTimeout    time.Duration
	MetricTimeout      time.Duration
	MaxRequestBodySize int64

	// EngineMode selects how the five metric analyzers run: "sequential"
	// or "parallel".
	EngineMode string

	// StorageBackend selects the remote image source: "http" or "azure".
	// Uploaded bytes are always accepted regardless of backend.
	StorageBackend string

	// RedisAddr enables the Redis verdict cache when non-empty; otherwise
	// an in-memory cache is used.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	AzureAccountName string
	AzureAccountKey  string
}

// fileConfig mirrors the optional YAML config file. Environment variables
// override anything set here.
type fileConfig struct {
	Host           string `yaml:"host"`
	Port           string `yaml:"port"`
	EngineMode     string `yaml:"engine_mode"`
	StorageBackend string `yaml:"storage_backend"`
	RedisAddr      string `yaml:"redis_addr"`
	CacheTTL       string `yaml:"cache_ttl"`
}

func (c *Config) ServerAddress() string {
	return net.JoinHostPort(strings.TrimSpace(c.Host), strings.TrimSpace(c.Port))
}

// LoadFromEnv builds the configuration from, in increasing precedence:
// built-in defaults, the optional YAML file named by CONFIG_FILE, a .env
// file in the working directory, and the process environment.
func LoadFromEnv() (*Config, error) {
	// .env is optional; ignore a missing file
	_ = godotenv.Load()

	cfg := &Config{
		Host:               "0.0.0.0",
		Port:               "8080",
		RequestTimeout:     30 * time.Second,
		FetchTimeout:       15 * time.Second,
		AnalysisTimeout:    20 * time.Second,
		MetricTimeout:      5 * time.Second,
		MaxRequestBodySize: 10 * 1024 * 1024,
		EngineMode:         "sequential",
		StorageBackend:     "http",
		CacheTTL:           time.Hour,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.Host = getEnvOrDefault("HOST", cfg.Host)
	cfg.Port = getEnvOrDefault("PORT", cfg.Port)
	cfg.RequestTimeout = parseDurationOrDefault("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.FetchTimeout = parseDurationOrDefault("FETCH_TIMEOUT", cfg.FetchTimeout)
	cfg.AnalysisTimeout = parseDurationOrDefault("ANALYSIS_TIMEOUT", cfg.AnalysisTimeout)
	cfg.MetricTimeout = parseDurationOrDefault("METRIC_TIMEOUT", cfg.MetricTimeout)
	cfg.MaxRequestBodySize = parseIntOrDefault("MAX_REQUEST_BODY_SIZE", cfg.MaxRequestBodySize)
	cfg.EngineMode = getEnvOrDefault("ENGINE_MODE", cfg.EngineMode)
	cfg.StorageBackend = getEnvOrDefault("STORAGE_BACKEND", cfg.StorageBackend)
	cfg.RedisAddr = getEnvOrDefault("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = int(parseIntOrDefault("REDIS_DB", int64(cfg.RedisDB)))
	cfg.CacheTTL = parseDurationOrDefault("CACHE_TTL", cfg.CacheTTL)
	cfg.AzureAccountName = getEnvOrDefault("AZURE_ACCOUNT_NAME", cfg.AzureAccountName)
	cfg.AzureAccountKey = getEnvOrDefault("AZURE_ACCOUNT_KEY", cfg.AzureAccountKey)

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.FetchTimeout <= 0 || c.AnalysisTimeout <= 0 || c.MetricTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, analysis=%s, metric=%s)",
			c.RequestTimeout, c.FetchTimeout, c.AnalysisTimeout, c.MetricTimeout)
	}
	switch c.EngineMode {
	case "sequential", "parallel":
	default:
		return fmt.Errorf("invalid ENGINE_MODE: %q", c.EngineMode)
	}
	switch c.StorageBackend {
	case "http", "azure":
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND: %q", c.StorageBackend)
	}
	if c.StorageBackend == "azure" && (c.AzureAccountName == "" || c.AzureAccountKey == "") {
		return fmt.Errorf("azure storage requires AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY")
	}
	return nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if fc.Host != "" {
		cfg.Host = fc.Host
	}
	if fc.Port != "" {
		cfg.Port = fc.Port
	}
	if fc.EngineMode != "" {
		cfg.EngineMode = fc.EngineMode
	}
	if fc.StorageBackend != "" {
		cfg.StorageBackend = fc.StorageBackend
	}
	if fc.RedisAddr != "" {
		cfg.RedisAddr = fc.RedisAddr
	}
	if fc.CacheTTL != "" {
		d, err := time.ParseDuration(fc.CacheTTL)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid cache_ttl in %s: %q", path, fc.CacheTTL)
		}
		cfg.CacheTTL = d
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
