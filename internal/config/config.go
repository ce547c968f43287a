// Package config loads failsift configuration from a YAML file, the
// FAILSIFT_ environment, and built-in defaults, in that order of
// increasing precedence for the environment.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the config file loaded when no --config flag is given.
const DefaultPath = "failsift.yaml"

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Storage    StorageConfig    `koanf:"storage"`
	Detection  DetectionConfig  `koanf:"detection"`
	Clustering ClusteringConfig `koanf:"clustering"`
	Features   FeatureConfig    `koanf:"features"`
	Services   ServiceConfig    `koanf:"services"`
	Notify     NotifyConfig     `koanf:"notify"`
	Retention  RetentionConfig  `koanf:"retention"`
	Logging    LoggingConfig    `koanf:"logging"`
}

type ServerConfig struct {
	Addr    string `koanf:"addr"`
	Timeout string `koanf:"timeout"` // Duration string like "30s"
}

type StorageConfig struct {
	Driver string `koanf:"driver"` // sqlite, postgres, mysql, memory
	DSN    string `koanf:"dsn"`    // Data source name / connection string
}

type DetectionConfig struct {
	WindowHours       int    `koanf:"window_hours"`
	Interval          string `koanf:"interval"` // "0" disables the scheduler
	NotifyServicesMax int    `koanf:"notify_services_max"`
}

type ClusteringConfig struct {
	Endpoint  string  `koanf:"endpoint"` // Remote clustering service; empty disables
	Timeout   string  `koanf:"timeout"`
	Local     bool    `koanf:"local"` // Run local density clustering when no endpoint
	Eps       float64 `koanf:"eps"`
	MinPoints int     `koanf:"min_points"`
	ModelPath string  `koanf:"model_path"` // Persisted vectorizer vocabulary
}

type FeatureConfig struct {
	MaxTerms int `koanf:"max_terms"`
}

type ServiceConfig struct {
	Known []string `koanf:"known"` // One-hot vocabulary for service encoding
}

type NotifyConfig struct {
	Sink    string        `koanf:"sink"` // log, webhook, nats
	Webhook WebhookConfig `koanf:"webhook"`
	NATS    NATSConfig    `koanf:"nats"`
}

type WebhookConfig struct {
	URL     string `koanf:"url"`
	Timeout string `koanf:"timeout"`
}

type NATSConfig struct {
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

type RetentionConfig struct {
	MaxAge        string `koanf:"max_age"` // "0" disables the sweep
	SweepInterval string `koanf:"sweep_interval"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from path (missing file is not an error),
// overlays FAILSIFT_ environment variables, applies defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = DefaultPath
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars and defaults
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Environment variables override file config
	if err := k.Load(env.Provider("FAILSIFT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "FAILSIFT_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Substitute environment variables in secret-bearing fields
	cfg.Storage.DSN = substituteEnvVars(cfg.Storage.DSN)
	cfg.Clustering.Endpoint = substituteEnvVars(cfg.Clustering.Endpoint)
	cfg.Notify.Webhook.URL = substituteEnvVars(cfg.Notify.Webhook.URL)
	cfg.Notify.NATS.URL = substituteEnvVars(cfg.Notify.NATS.URL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"server.addr":                   ":8080",
		"server.timeout":                "30s",
		"storage.driver":                "sqlite",
		"storage.dsn":                   "file:failsift.db",
		"detection.window_hours":        24,
		"detection.interval":            "10m",
		"detection.notify_services_max": 3,
		"clustering.timeout":            "10s",
		"clustering.local":              true,
		"clustering.eps":                0.3,
		"clustering.min_points":         2,
		"features.max_terms":            1000,
		"services.known": []string{
			"api-gateway", "auth-service", "user-service",
			"payment-service", "search-service", "notification-service",
		},
		"notify.sink":              "log",
		"notify.webhook.timeout":   "10s",
		"notify.nats.subject":      "failsift.alerts",
		"retention.max_age":        "168h",
		"retention.sweep_interval": "1h",
		"logging.level":            "info",
		"logging.format":           "json",
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}
}

// Validate checks cross-field consistency. Called by Load; exposed for
// programmatically built configs.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "postgres", "mysql", "memory":
	default:
		return fmt.Errorf("storage.driver %q not supported (sqlite, postgres, mysql, memory)", c.Storage.Driver)
	}

	if c.Detection.WindowHours <= 0 {
		return fmt.Errorf("detection.window_hours must be positive, got %d", c.Detection.WindowHours)
	}
	if c.Detection.NotifyServicesMax <= 0 {
		return fmt.Errorf("detection.notify_services_max must be positive, got %d", c.Detection.NotifyServicesMax)
	}

	if c.Clustering.Eps <= 0 {
		return fmt.Errorf("clustering.eps must be positive, got %v", c.Clustering.Eps)
	}
	if c.Clustering.MinPoints < 2 {
		return fmt.Errorf("clustering.min_points must be at least 2, got %d", c.Clustering.MinPoints)
	}

	if c.Features.MaxTerms <= 0 {
		return fmt.Errorf("features.max_terms must be positive, got %d", c.Features.MaxTerms)
	}

	switch c.Notify.Sink {
	case "log":
	case "webhook":
		if c.Notify.Webhook.URL == "" {
			return fmt.Errorf("notify.webhook.url required for webhook sink")
		}
	case "nats":
		if c.Notify.NATS.URL == "" {
			return fmt.Errorf("notify.nats.url required for nats sink")
		}
	default:
		return fmt.Errorf("notify.sink %q not supported (log, webhook, nats)", c.Notify.Sink)
	}

	return nil
}

// Window returns the detection lookback window.
func (c *Config) Window() time.Duration {
	return time.Duration(c.Detection.WindowHours) * time.Hour
}

// DetectionInterval returns the scheduler tick interval; zero disables
// the scheduler.
func (c *Config) DetectionInterval() time.Duration {
	return parseDuration(c.Detection.Interval, 10*time.Minute)
}

// ServerTimeout returns the per-request HTTP timeout.
func (c *Config) ServerTimeout() time.Duration {
	return parseDuration(c.Server.Timeout, 30*time.Second)
}

// ClusteringTimeout bounds the remote clustering call.
func (c *Config) ClusteringTimeout() time.Duration {
	return parseDuration(c.Clustering.Timeout, 10*time.Second)
}

// WebhookTimeout bounds the webhook notifier call.
func (c *Config) WebhookTimeout() time.Duration {
	return parseDuration(c.Notify.Webhook.Timeout, 10*time.Second)
}

// RetentionMaxAge returns the failure time-to-live; zero disables the sweep.
func (c *Config) RetentionMaxAge() time.Duration {
	return parseDuration(c.Retention.MaxAge, 0)
}

// RetentionSweepInterval returns how often the sweep runs.
func (c *Config) RetentionSweepInterval() time.Duration {
	return parseDuration(c.Retention.SweepInterval, time.Hour)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if s == "0" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
