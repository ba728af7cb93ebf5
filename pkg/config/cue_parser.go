package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// CUEParser parses and validates daemon configuration files. CUE files are
// validated against the built-in daemon schema; YAML files are decoded
// directly and share the struct-tag validation.
type CUEParser struct {
	ctx            *cue.Context
	schemaRegistry *SchemaRegistry
	validator      *validator.Validate
}

// NewCUEParser creates a new parser with the built-in schemas registered.
func NewCUEParser() *CUEParser {
	return &CUEParser{
		ctx:            cuecontext.New(),
		schemaRegistry: NewSchemaRegistry(),
		validator:      validator.New(),
	}
}

// LoadDaemonConfig reads the daemon configuration at path, dispatching on
// the file extension (.cue, .yaml, .yml).
func LoadDaemonConfig(path string) (*DaemonConfig, error) {
	return NewCUEParser().ParseDaemonConfig(path)
}

// ParseDaemonConfig parses and validates the daemon configuration at path.
func (cp *CUEParser) ParseDaemonConfig(path string) (*DaemonConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading daemon config %s: %w", path, err)
	}

	var cfg DaemonConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".cue":
		if err := cp.decodeCUE(string(content), path, &cfg); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parsing daemon config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported daemon config extension %q (want .cue, .yaml or .yml)", ext)
	}

	cp.applyDefaults(&cfg)
	if err := cp.validator.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("daemon config %s invalid: %w", path, err)
	}
	return &cfg, nil
}

// ParseDaemonConfigInline parses inline CUE daemon configuration.
func (cp *CUEParser) ParseDaemonConfigInline(content string) (*DaemonConfig, error) {
	var cfg DaemonConfig
	if err := cp.decodeCUE(content, "inline", &cfg); err != nil {
		return nil, err
	}
	cp.applyDefaults(&cfg)
	if err := cp.validator.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("daemon config invalid: %w", err)
	}
	return &cfg, nil
}

// decodeCUE compiles content, unifies it with the daemon schema and decodes
// the result.
func (cp *CUEParser) decodeCUE(content, filename string, cfg *DaemonConfig) error {
	val := cp.ctx.CompileString(content, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return fmt.Errorf("parsing daemon config %s: %s", filename, formatCUEErrors(err))
	}

	if schema, ok := cp.schemaRegistry.GetSchema("daemon"); ok {
		unified := schema.LookupPath(cue.ParsePath("#Daemon")).Unify(val)
		if err := unified.Validate(cue.Concrete(true)); err != nil {
			return fmt.Errorf("daemon config %s fails schema: %s", filename, formatCUEErrors(err))
		}
		val = unified
	}

	if err := val.Decode(cfg); err != nil {
		return fmt.Errorf("decoding daemon config %s: %w", filename, err)
	}
	return nil
}

// applyDefaults fills derived defaults after decoding.
func (cp *CUEParser) applyDefaults(cfg *DaemonConfig) {
	if cfg.DatabasePath == "" && cfg.DataDir != "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDir, "openmon.db")
	}
	if cfg.Policy.Enabled && cfg.Policy.Mode == "" {
		cfg.Policy.Mode = "enforcing"
	}
}

// SchemaRegistry returns the parser's schema registry.
func (cp *CUEParser) SchemaRegistry() *SchemaRegistry {
	return cp.schemaRegistry
}

// convertCUEErrors converts CUE errors to a ValidationError slice.
func convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	for _, e := range errors.Errors(err) {
		pos := errors.Positions(e)
		var file string
		var line, column int
		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:     file,
			Line:     line,
			Column:   column,
			Message:  errors.Details(e, nil),
			Severity: "error",
		})
	}

	return validationErrors
}

// formatCUEErrors renders CUE errors as a single diagnostic line.
func formatCUEErrors(err error) string {
	converted := convertCUEErrors(err)
	parts := make([]string, 0, len(converted))
	for _, ve := range converted {
		msg := strings.TrimSpace(ve.Message)
		if ve.File != "" {
			msg = fmt.Sprintf("%s:%d:%d: %s", ve.File, ve.Line, ve.Column, msg)
		}
		parts = append(parts, msg)
	}
	if len(parts) == 0 {
		return err.Error()
	}
	return strings.Join(parts, "; ")
}
