package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestParseDaemonConfigCUE(t *testing.T) {
	path := writeTempConfig(t, "openmon.cue", `
data_dir: "/var/lib/openmon"
conf_dir: "/etc/openmon/conf.d"
concurrency: 8
starlark_timeout_seconds: 10
policy: {
	enabled: true
	paths: ["/etc/openmon/policy"]
}
telemetry: {
	log_level: "debug"
}
`)

	cfg, err := LoadDaemonConfig(path)
	if err != nil {
		t.Fatalf("LoadDaemonConfig: %v", err)
	}
	if cfg.DataDir != "/var/lib/openmon" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if want := filepath.Join("/var/lib/openmon", "openmon.db"); cfg.DatabasePath != want {
		t.Errorf("DatabasePath = %q, want %q", cfg.DatabasePath, want)
	}
	if cfg.Concurrency != 8 {
		t.Errorf("Concurrency = %d", cfg.Concurrency)
	}
	if got := cfg.StarlarkTimeout(); got != 10*time.Second {
		t.Errorf("StarlarkTimeout() = %v", got)
	}
	if !cfg.Policy.Enabled {
		t.Error("Policy.Enabled = false")
	}
	if cfg.Policy.Mode != "enforcing" {
		t.Errorf("Policy.Mode = %q, want default enforcing", cfg.Policy.Mode)
	}
	if cfg.Telemetry.LogLevel != "debug" {
		t.Errorf("Telemetry.LogLevel = %q", cfg.Telemetry.LogLevel)
	}
}

func TestParseDaemonConfigYAML(t *testing.T) {
	path := writeTempConfig(t, "openmon.yaml", `
data_dir: /var/lib/openmon
database_path: /srv/state/openmon.db
conf_dir: /etc/openmon/conf.d
telemetry:
  log_level: warn
`)

	cfg, err := LoadDaemonConfig(path)
	if err != nil {
		t.Fatalf("LoadDaemonConfig: %v", err)
	}
	if cfg.DatabasePath != "/srv/state/openmon.db" {
		t.Errorf("DatabasePath = %q, want explicit value kept", cfg.DatabasePath)
	}
	if cfg.Telemetry.LogLevel != "warn" {
		t.Errorf("Telemetry.LogLevel = %q", cfg.Telemetry.LogLevel)
	}
}

func TestParseDaemonConfigMissingRequired(t *testing.T) {
	path := writeTempConfig(t, "openmon.cue", `
conf_dir: "/etc/openmon/conf.d"
`)

	if _, err := LoadDaemonConfig(path); err == nil {
		t.Fatal("expected error for missing data_dir")
	}
}

func TestParseDaemonConfigRejectsUnknownLogLevel(t *testing.T) {
	path := writeTempConfig(t, "openmon.cue", `
data_dir: "/var/lib/openmon"
conf_dir: "/etc/openmon/conf.d"
telemetry: {
	log_level: "loud"
}
`)

	_, err := LoadDaemonConfig(path)
	if err == nil {
		t.Fatal("expected schema error for log_level")
	}
	if !strings.Contains(err.Error(), "schema") {
		t.Errorf("error %q does not mention schema", err)
	}
}

func TestParseDaemonConfigUnsupportedExtension(t *testing.T) {
	path := writeTempConfig(t, "openmon.toml", `data_dir = "/var/lib/openmon"`)

	_, err := LoadDaemonConfig(path)
	if err == nil {
		t.Fatal("expected error for .toml config")
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("error %q does not mention unsupported extension", err)
	}
}

func TestParseDaemonConfigInline(t *testing.T) {
	parser := NewCUEParser()
	cfg, err := parser.ParseDaemonConfigInline(`
data_dir: "/var/lib/openmon"
conf_dir: "/etc/openmon/conf.d"
`)
	if err != nil {
		t.Fatalf("ParseDaemonConfigInline: %v", err)
	}
	if got := cfg.StarlarkTimeout(); got != 30*time.Second {
		t.Errorf("default StarlarkTimeout() = %v, want 30s", got)
	}
}

func TestTelemetryConfigMapping(t *testing.T) {
	tc := TelemetryConfig{
		Environment:     "production",
		LogLevel:        "debug",
		LogFormat:       "json",
		MetricsListen:   ":9090",
		TracingExporter: "otlp",
		TracingEndpoint: "collector:4317",
		SamplingRate:    0.25,
	}

	cfg := tc.ToTelemetry("1.2.3")
	if cfg.ServiceName != "openmon" {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}
	if cfg.ServiceVersion != "1.2.3" {
		t.Errorf("ServiceVersion = %q", cfg.ServiceVersion)
	}
	if cfg.Environment != "production" {
		t.Errorf("Environment = %q", cfg.Environment)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.ListenAddress != ":9090" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Exporter != "otlp" || cfg.Tracing.Endpoint != "collector:4317" {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if cfg.Tracing.SamplingRate != 0.25 {
		t.Errorf("SamplingRate = %v", cfg.Tracing.SamplingRate)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("mapped config invalid: %v", err)
	}
}

func TestTelemetryConfigMappingDisablesMetrics(t *testing.T) {
	tc := TelemetryConfig{TracingExporter: "none"}

	cfg := tc.ToTelemetry("dev")
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true without listen address")
	}
	if cfg.Tracing.Enabled {
		t.Error("Tracing.Enabled = true with exporter none")
	}
}
