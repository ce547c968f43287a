package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "failsift.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Detection.WindowHours != 24 {
		t.Errorf("Detection.WindowHours = %d, want 24", cfg.Detection.WindowHours)
	}
	if cfg.Clustering.MinPoints != 2 {
		t.Errorf("Clustering.MinPoints = %d, want 2", cfg.Clustering.MinPoints)
	}
	if cfg.Features.MaxTerms != 1000 {
		t.Errorf("Features.MaxTerms = %d, want 1000", cfg.Features.MaxTerms)
	}
	if cfg.Notify.Sink != "log" {
		t.Errorf("Notify.Sink = %q, want log", cfg.Notify.Sink)
	}
	if len(cfg.Services.Known) == 0 {
		t.Error("Services.Known is empty, want default vocabulary")
	}
	if cfg.Window() != 24*time.Hour {
		t.Errorf("Window() = %v, want 24h", cfg.Window())
	}
	if cfg.DetectionInterval() != 10*time.Minute {
		t.Errorf("DetectionInterval() = %v, want 10m", cfg.DetectionInterval())
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeConfigFile(t, `
server:
  addr: ":9090"
detection:
  window_hours: 48
  interval: "5m"
clustering:
  endpoint: "http://clusterer:8081/api/v1/cluster"
  eps: 0.25
services:
  known:
    - checkout
    - billing
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %q, want :9090", cfg.Server.Addr)
	}
	if cfg.Detection.WindowHours != 48 {
		t.Errorf("Detection.WindowHours = %d, want 48", cfg.Detection.WindowHours)
	}
	if cfg.DetectionInterval() != 5*time.Minute {
		t.Errorf("DetectionInterval() = %v, want 5m", cfg.DetectionInterval())
	}
	if cfg.Clustering.Endpoint != "http://clusterer:8081/api/v1/cluster" {
		t.Errorf("Clustering.Endpoint = %q", cfg.Clustering.Endpoint)
	}
	if cfg.Clustering.Eps != 0.25 {
		t.Errorf("Clustering.Eps = %v, want 0.25", cfg.Clustering.Eps)
	}
	if len(cfg.Services.Known) != 2 || cfg.Services.Known[0] != "checkout" {
		t.Errorf("Services.Known = %v, want [checkout billing]", cfg.Services.Known)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FAILSIFT_DETECTION__WINDOW_HOURS", "6")
	t.Setenv("FAILSIFT_NOTIFY__SINK", "log")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Detection.WindowHours != 6 {
		t.Errorf("Detection.WindowHours = %d, want 6 from env", cfg.Detection.WindowHours)
	}
}

func TestLoad_EnvSubstitution(t *testing.T) {
	t.Setenv("ALERT_HOOK", "http://hooks.internal/failures")
	path := writeConfigFile(t, `
notify:
  sink: webhook
  webhook:
    url: "${ALERT_HOOK}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Notify.Webhook.URL != "http://hooks.internal/failures" {
		t.Errorf("Webhook.URL = %q, want substituted value", cfg.Notify.Webhook.URL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "bad storage driver",
			mutate:  func(c *Config) { c.Storage.Driver = "mongodb" },
			wantErr: true,
		},
		{
			name:    "zero window",
			mutate:  func(c *Config) { c.Detection.WindowHours = 0 },
			wantErr: true,
		},
		{
			name:    "min points below two",
			mutate:  func(c *Config) { c.Clustering.MinPoints = 1 },
			wantErr: true,
		},
		{
			name:    "webhook sink without url",
			mutate:  func(c *Config) { c.Notify.Sink = "webhook" },
			wantErr: true,
		},
		{
			name:    "nats sink without url",
			mutate:  func(c *Config) { c.Notify.Sink = "nats" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.mutate(cfg)

			err = cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseDuration_ZeroDisables(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	cfg.Detection.Interval = "0"
	if got := cfg.DetectionInterval(); got != 0 {
		t.Errorf("DetectionInterval() = %v, want 0 for disabled scheduler", got)
	}

	cfg.Retention.MaxAge = "0"
	if got := cfg.RetentionMaxAge(); got != 0 {
		t.Errorf("RetentionMaxAge() = %v, want 0 for disabled sweep", got)
	}
}
