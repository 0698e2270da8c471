package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the automation engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Sources   SourcesConfig   `yaml:"sources"`
	Playbooks PlaybooksConfig `yaml:"playbooks"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
	CORS      CORSConfig      `yaml:"cors"`
}

// ServerConfig controls the HTTP listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// SourcesConfig groups the evidence source backends.
type SourcesConfig struct {
	Logs    LogSourceConfig    `yaml:"logs"`
	Metrics MetricSourceConfig `yaml:"metrics"`
}

// LogSourceConfig configures the Loki-compatible log backend.
type LogSourceConfig struct {
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout"`
	Limit   int           `yaml:"limit"`
}

// MetricSourceConfig configures the VictoriaMetrics-compatible query backend.
type MetricSourceConfig struct {
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout"`
}

// PlaybooksConfig controls loading of an additional YAML playbook pack on top
// of the built-in rules.
type PlaybooksConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// CacheConfig controls the response cache used for fleet analysis.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	TLS          bool          `yaml:"tls"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	AnalysisTTL  time.Duration `yaml:"analysisTTL"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CORSConfig controls cross-origin access to the HTTP API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("VIGIL_RCA_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Sources: SourcesConfig{
			Logs: LogSourceConfig{
				BaseURL: "http://loki:3100",
				Timeout: 8 * time.Second,
				Limit:   100,
			},
			Metrics: MetricSourceConfig{
				BaseURL: "http://victoria-metrics:8428",
				Timeout: 8 * time.Second,
			},
		},
		Playbooks: PlaybooksConfig{Watch: true},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			AnalysisTTL:  15 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		CORS:    CORSConfig{AllowedOrigins: []string{"*"}},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VIGIL_RCA_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("VIGIL_RCA_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("LOKI_URL"); v != "" {
		cfg.Sources.Logs.BaseURL = v
	}
	if v := os.Getenv("VM_URL"); v != "" {
		cfg.Sources.Metrics.BaseURL = v
	}
	if v := os.Getenv("VIGIL_RCA_PLAYBOOK_PACK"); v != "" {
		cfg.Playbooks.Path = v
	}
	if v := os.Getenv("VIGIL_RCA_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
		cfg.Cache.Enabled = true
	}
	if v := os.Getenv("VIGIL_RCA_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("VIGIL_RCA_CACHE_TLS"); strings.EqualFold(v, "true") || v == "1" {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("VIGIL_RCA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VIGIL_RCA_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("VIGIL_RCA_CORS_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
		cfg.CORS.AllowedOrigins = origins
	}
}
