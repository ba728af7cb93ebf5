package config

import (
	"time"

	"github.com/openmon/openmon/pkg/telemetry"
)

// DaemonConfig is the daemon-wide configuration, parsed from a CUE or YAML
// file at startup.
type DaemonConfig struct {
	// DataDir is the base directory for runtime state.
	DataDir string `json:"data_dir" yaml:"data_dir" validate:"required"`

	// DatabasePath is the sqlite database holding compiled object records.
	// Defaults to <data_dir>/openmon.db.
	DatabasePath string `json:"database_path" yaml:"database_path"`

	// ConfDir is the directory holding declaration manifests.
	ConfDir string `json:"conf_dir" yaml:"conf_dir" validate:"required"`

	// ModAttrsPath is the Starlark file restoring operator-modified
	// attributes during activation. Optional.
	ModAttrsPath string `json:"mod_attrs_path" yaml:"mod_attrs_path"`

	// Concurrency is the commit work queue worker count. Zero selects one
	// worker per CPU.
	Concurrency int `json:"concurrency" yaml:"concurrency" validate:"min=0"`

	// StarlarkTimeoutSeconds bounds declaration script evaluation. Zero
	// selects the default of 30 seconds.
	StarlarkTimeoutSeconds int `json:"starlark_timeout_seconds" yaml:"starlark_timeout_seconds" validate:"min=0"`

	// Policy configures the admission policy engine.
	Policy PolicyConfig `json:"policy" yaml:"policy"`

	// Telemetry configures logging, tracing, metrics and events.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
}

// StarlarkTimeout returns the configured script timeout.
func (c *DaemonConfig) StarlarkTimeout() time.Duration {
	if c.StarlarkTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.StarlarkTimeoutSeconds) * time.Second
}

// PolicyConfig configures admission policy enforcement.
type PolicyConfig struct {
	// Enabled indicates if policy enforcement is enabled.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Paths lists rego policy file paths.
	Paths []string `json:"paths,omitempty" yaml:"paths,omitempty"`

	// Mode is the enforcement mode (advisory, enforcing).
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty" validate:"omitempty,oneof=advisory enforcing"`
}

// TelemetryConfig is the file representation of the telemetry settings.
type TelemetryConfig struct {
	// Environment specifies the deployment environment (dev, staging, prod).
	Environment string `json:"environment,omitempty" yaml:"environment,omitempty"`

	// LogLevel sets the minimum log level.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty" validate:"omitempty,oneof=trace debug info warn error fatal"`

	// LogFormat specifies the log format (console, json).
	LogFormat string `json:"log_format,omitempty" yaml:"log_format,omitempty" validate:"omitempty,oneof=console json"`

	// MetricsListen is the address of the /metrics endpoint. Empty disables
	// the metrics server.
	MetricsListen string `json:"metrics_listen,omitempty" yaml:"metrics_listen,omitempty"`

	// TracingExporter selects the trace exporter (otlp, stdout, none).
	TracingExporter string `json:"tracing_exporter,omitempty" yaml:"tracing_exporter,omitempty" validate:"omitempty,oneof=otlp stdout none"`

	// TracingEndpoint is the OTLP collector endpoint.
	TracingEndpoint string `json:"tracing_endpoint,omitempty" yaml:"tracing_endpoint,omitempty"`

	// SamplingRate is the trace sampling rate (0.0 to 1.0).
	SamplingRate float64 `json:"sampling_rate,omitempty" yaml:"sampling_rate,omitempty" validate:"min=0,max=1"`
}

// ToTelemetry maps the file representation onto a full telemetry
// configuration, starting from the production defaults.
func (tc TelemetryConfig) ToTelemetry(serviceVersion string) *telemetry.Config {
	cfg := telemetry.ProductionConfig()
	cfg.ServiceName = "openmon"
	cfg.ServiceVersion = serviceVersion

	if tc.Environment != "" {
		cfg.Environment = tc.Environment
	}
	if tc.LogLevel != "" {
		cfg.Logging.Level = tc.LogLevel
	}
	if tc.LogFormat != "" {
		cfg.Logging.Format = tc.LogFormat
	}
	if tc.MetricsListen != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddress = tc.MetricsListen
	} else {
		cfg.Metrics.Enabled = false
	}
	if tc.TracingExporter != "" {
		cfg.Tracing.Enabled = tc.TracingExporter != "none"
		cfg.Tracing.Exporter = tc.TracingExporter
	}
	if tc.TracingEndpoint != "" {
		cfg.Tracing.Endpoint = tc.TracingEndpoint
	}
	if tc.SamplingRate > 0 {
		cfg.Tracing.SamplingRate = tc.SamplingRate
	}
	return cfg
}

// DeclarationDoc is one object declaration from a manifest file.
type DeclarationDoc struct {
	// Type is the object type name (e.g., "Host").
	Type string `json:"type" yaml:"type" validate:"required"`

	// Name is the declared object name. May be empty for types with a name
	// composer.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Template marks the declaration as an abstract template.
	Template bool `json:"template,omitempty" yaml:"template,omitempty"`

	// DefaultTemplate marks the declaration as a default template of its
	// type (it implies Template). Default templates are imported when an
	// object of the type is reloaded in place; ordinary commits do not
	// apply them.
	DefaultTemplate bool `json:"default_template,omitempty" yaml:"default_template,omitempty"`

	// IgnoreOnError drops the declaration on commit failure instead of
	// failing the batch.
	IgnoreOnError bool `json:"ignore_on_error,omitempty" yaml:"ignore_on_error,omitempty"`

	// Zone is the zone the declaration belongs to.
	Zone string `json:"zone,omitempty" yaml:"zone,omitempty"`

	// Properties assigns declared fields directly.
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`

	// Script is a Starlark body evaluated against the object under
	// construction. Properties are applied first.
	Script string `json:"script,omitempty" yaml:"script,omitempty"`
}

// ManifestFile is one parsed declaration manifest.
type ManifestFile struct {
	// Path is the source file path.
	Path string `json:"path"`

	// Objects are the declarations in file order.
	Objects []DeclarationDoc `json:"objects"`
}

// ValidationError is a configuration error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the configuration path to the error (e.g., "telemetry.log_level").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning, info).
	Severity string `json:"severity"`
}

// StarlarkResult represents the result of a Starlark execution.
type StarlarkResult struct {
	// Output is the global bindings produced by the script.
	Output map[string]any `json:"output,omitempty"`

	// ExecutionTime is how long the script took to execute.
	ExecutionTime time.Duration `json:"execution_time"`

	// Error is any error that occurred.
	Error string `json:"error,omitempty"`
}
