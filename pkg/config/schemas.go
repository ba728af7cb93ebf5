package config

import (
	"context"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	sr.registerBuiltInSchemas()
	return sr
}

func (sr *SchemaRegistry) registerBuiltInSchemas() {
	sr.RegisterSchema("daemon", builtinDaemonSchema)
	sr.RegisterSchema("declaration", builtinDeclarationSchema)
}

// RegisterSchema registers a CUE schema under the given name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against the definition defName (for
// example "#Declaration") of the named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName, defName string, data any) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	def := schema.LookupPath(cue.ParsePath(defName))
	if !def.Exists() {
		return fmt.Errorf("definition %s not found in schema %s", defName, schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := def.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %s", formatCUEErrors(err))
	}

	return nil
}

// ListSchemas returns all registered schema names.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	return names
}

// ValidateDeclaration validates a declaration document against the
// declaration schema.
func (sr *SchemaRegistry) ValidateDeclaration(ctx context.Context, doc DeclarationDoc) error {
	return sr.ValidateAgainstSchema(ctx, "declaration", "#Declaration", doc)
}

// Built-in schema definitions

const builtinDaemonSchema = `
// Daemon schema for the openmon daemon configuration
#Daemon: {
	// DataDir is the base directory for runtime state
	data_dir: string & !=""

	// DatabasePath is the sqlite database holding compiled object records
	database_path?: string

	// ConfDir is the directory holding declaration manifests
	conf_dir: string & !=""

	// ModAttrsPath is the modified-attributes Starlark file
	mod_attrs_path?: string

	// Concurrency is the commit work queue worker count
	concurrency?: int & >=0

	// StarlarkTimeoutSeconds bounds declaration script evaluation
	starlark_timeout_seconds?: int & >=0

	// Policy configures admission policy enforcement
	policy?: {
		enabled: bool
		paths?: [...string]
		mode?: "advisory" | "enforcing"
	}

	// Telemetry configures logging, tracing, metrics and events
	telemetry?: {
		environment?:      string
		log_level?:        "trace" | "debug" | "info" | "warn" | "error" | "fatal"
		log_format?:       "console" | "json"
		metrics_listen?:   string
		tracing_exporter?: "otlp" | "stdout" | "none"
		tracing_endpoint?: string
		sampling_rate?:    float & >=0 & <=1
	}
}
`

const builtinDeclarationSchema = `
// Declaration schema for object manifest entries
#Declaration: {
	// Type is the object type name
	type: string & =~"^[A-Z][a-zA-Z0-9]*$"

	// Name is the declared object name
	name?: string

	// Template marks the declaration as an abstract template
	template?: bool

	// DefaultTemplate implies template
	default_template?: bool

	// IgnoreOnError drops the declaration on commit failure
	ignore_on_error?: bool

	// Zone is the zone the declaration belongs to
	zone?: string

	// Properties assigns declared fields directly
	properties?: {[string]: _}

	// Script is a Starlark body evaluated against the object
	script?: string
}
`
