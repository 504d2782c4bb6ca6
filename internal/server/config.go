package server

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"contentmapper/internal/catalog"
)

// Config holds server configuration
type Config struct {
	HTTPAddr    string
	MetricsAddr string
	GRPCAddr    string

	// Bundles lists ATT&CK STIX sources, file paths or http(s) URLs.
	Bundles  []string
	Catalog  string
	RedisURL string
	LogLevel slog.Level

	Tuning Tuning
}

// Tuning is the optional YAML overlay named by CM_CONFIG.
type Tuning struct {
	FieldWeights    catalog.FieldWeights `yaml:"field_weights"`
	CacheSize       int                  `yaml:"cache_size"`
	CacheTTL        time.Duration        `yaml:"cache_ttl"`
	Workers         int                  `yaml:"workers"`
	BreakerFailures int                  `yaml:"breaker_failures"`
	BreakerTimeout  time.Duration        `yaml:"breaker_timeout"`
}

func defaultTuning() Tuning {
	return Tuning{
		FieldWeights:    catalog.DefaultFieldWeights(),
		CacheSize:       10000,
		CacheTTL:        10 * time.Minute,
		Workers:         4,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// LoadConfig reads environment variables and returns a Config
func LoadConfig() (*Config, error) {
	cfg := &Config{
		HTTPAddr:    getEnv("CM_HTTP_ADDR", ":8080"),
		MetricsAddr: getEnv("CM_METRICS_ADDR", ":9090"),
		GRPCAddr:    getEnv("CM_GRPC_ADDR", ""),
		Bundles:     splitEnv(getEnv("CM_ATTACK_BUNDLE", "")),
		Catalog:     getEnv("CM_CATALOG", ""),
		RedisURL:    getEnv("CM_REDIS_URL", ""),
		Tuning:      defaultTuning(),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("CM_LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("CM_LOG_LEVEL: %w", err)
	}

	if path := getEnv("CM_CONFIG", ""); path != "" {
		if err := cfg.loadOverlay(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadOverlay merges a YAML file over the defaults. Keys absent from the
// file keep their default values.
func (c *Config) loadOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config overlay: %w", err)
	}
	if err := yaml.Unmarshal(data, &c.Tuning); err != nil {
		return fmt.Errorf("parsing config overlay %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if c.Catalog == "" {
		errs = append(errs, errors.New("CM_CATALOG is required"))
	}
	if len(c.Tuning.FieldWeights) == 0 || c.Tuning.FieldWeights.Max() <= 0 {
		errs = append(errs, errors.New("at least one positive field weight is required"))
	}
	for field, w := range c.Tuning.FieldWeights {
		if w < 0 {
			errs = append(errs, fmt.Errorf("field weight %q is negative", field))
		}
	}
	if c.Tuning.CacheSize < 0 {
		errs = append(errs, errors.New("cache size must not be negative"))
	}
	if c.Tuning.CacheSize > 0 && c.Tuning.CacheTTL <= 0 {
		errs = append(errs, errors.New("cache ttl must be positive"))
	}
	if c.Tuning.Workers < 1 {
		errs = append(errs, errors.New("workers must be at least 1"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitEnv(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
