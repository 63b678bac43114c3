package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HOST", "PORT", "REQUEST_TIMEOUT", "FETCH_TIMEOUT", "ANALYSIS_TIMEOUT",
		"METRIC_TIMEOUT", "MAX_REQUEST_BODY_SIZE", "ENGINE_MODE", "STORAGE_BACKEND",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "CACHE_TTL",
		"AZURE_ACCOUNT_NAME", "AZURE_ACCOUNT_KEY", "CONFIG_FILE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.EngineMode != "sequential" {
		t.Errorf("EngineMode = %q, want sequential", cfg.EngineMode)
	}
	if cfg.StorageBackend != "http" {
		t.Errorf("StorageBackend = %q, want http", cfg.StorageBackend)
	}
	if cfg.MetricTimeout != 5*time.Second {
		t.Errorf("MetricTimeout = %v, want 5s", cfg.MetricTimeout)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty", cfg.RedisAddr)
	}
	if got := cfg.ServerAddress(); got != "0.0.0.0:8080" {
		t.Errorf("ServerAddress = %q, want 0.0.0.0:8080", got)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ENGINE_MODE", "parallel")
	t.Setenv("METRIC_TIMEOUT", "2s")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.EngineMode != "parallel" {
		t.Errorf("EngineMode = %q, want parallel", cfg.EngineMode)
	}
	if cfg.MetricTimeout != 2*time.Second {
		t.Errorf("MetricTimeout = %v, want 2s", cfg.MetricTimeout)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q, want localhost:6379", cfg.RedisAddr)
	}
}

func TestLoadFromEnv_ConfigFileAndPrecedence(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "port: \"7070\"\nengine_mode: parallel\ncache_ttl: 30m\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	// Environment beats the file.
	t.Setenv("PORT", "6060")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}

	if cfg.Port != "6060" {
		t.Errorf("Port = %q, want the env override 6060", cfg.Port)
	}
	if cfg.EngineMode != "parallel" {
		t.Errorf("EngineMode = %q, want parallel from the file", cfg.EngineMode)
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Errorf("CacheTTL = %v, want 30m from the file", cfg.CacheTTL)
	}
}

func TestLoadFromEnv_Validation(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"bad port", "PORT", "not-a-port"},
		{"port out of range", "PORT", "70000"},
		{"bad engine mode", "ENGINE_MODE", "turbo"},
		{"bad storage backend", "STORAGE_BACKEND", "ftp"},
		{"azure without credentials", "STORAGE_BACKEND", "azure"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)

			if _, err := LoadFromEnv(); err == nil {
				t.Errorf("expected validation error for %s=%s", tc.key, tc.value)
			}
		})
	}
}
