package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load with no file: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected default address: %s", cfg.Server.Address)
	}
	if cfg.Sources.Logs.Limit != 100 {
		t.Fatalf("unexpected default log limit: %d", cfg.Sources.Logs.Limit)
	}
	if cfg.Cache.Enabled {
		t.Fatal("cache should default off")
	}
	if cfg.Cache.AnalysisTTL != 15*time.Second {
		t.Fatalf("unexpected analysis TTL: %v", cfg.Cache.AnalysisTTL)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  address: ":9090"
  gracefulTimeout: 30s
sources:
  logs:
    baseURL: http://loki.test:3100
    limit: 250
playbooks:
  path: /etc/vigil/playbooks.yaml
  watch: false
logging:
  level: debug
  json: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":9090" {
		t.Fatalf("file value not applied: %s", cfg.Server.Address)
	}
	if cfg.Server.GracefulTimeout != 30*time.Second {
		t.Fatalf("unexpected graceful timeout: %v", cfg.Server.GracefulTimeout)
	}
	if cfg.Sources.Logs.BaseURL != "http://loki.test:3100" || cfg.Sources.Logs.Limit != 250 {
		t.Fatalf("unexpected log source config: %+v", cfg.Sources.Logs)
	}
	// untouched sections keep their defaults
	if cfg.Server.MetricsAddress != ":2112" {
		t.Fatalf("default metrics address lost: %s", cfg.Server.MetricsAddress)
	}
	if cfg.Playbooks.Watch {
		t.Fatal("watch should be disabled by the file")
	}
	if !cfg.Logging.JSON || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/vigil.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VIGIL_RCA_SERVER_ADDRESS", ":7070")
	t.Setenv("LOKI_URL", "http://localhost:3100")
	t.Setenv("VIGIL_RCA_CACHE_ADDR", "redis:6379")
	t.Setenv("VIGIL_RCA_LOG_FORMAT", "json")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":7070" {
		t.Fatalf("env address not applied: %s", cfg.Server.Address)
	}
	if cfg.Sources.Logs.BaseURL != "http://localhost:3100" {
		t.Fatalf("env loki url not applied: %s", cfg.Sources.Logs.BaseURL)
	}
	if !cfg.Cache.Enabled || cfg.Cache.Addr != "redis:6379" {
		t.Fatalf("cache addr should enable the cache: %+v", cfg.Cache)
	}
	if !cfg.Logging.JSON {
		t.Fatal("env log format not applied")
	}
}
