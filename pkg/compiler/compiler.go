package compiler

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/openmon/openmon/pkg/objects"
	"github.com/openmon/openmon/pkg/telemetry"
	"github.com/openmon/openmon/pkg/workqueue"
)

// ModAttrsFunc restores operator-modified attributes during activation.
type ModAttrsFunc func(ctx context.Context) error

// Options configures a Compiler. Zero-valued fields fall back to the
// process-wide defaults.
type Options struct {
	// Registry is the item registry; DefaultRegistry() when nil.
	Registry *ItemRegistry

	// Types resolves object type names. Required.
	Types *objects.TypeRegistry

	// Sink receives one record per committed object. Optional.
	Sink Sink

	// Admission vetoes committed config before load callbacks. Optional.
	Admission Admission

	// Logger is the telemetry logger; a default stdout logger when nil.
	Logger *telemetry.Logger

	// Metrics records compiler counters. Optional.
	Metrics *telemetry.Metrics

	// DependencyGraph tracks runtime object dependencies;
	// objects.SharedDependencyGraph when nil.
	DependencyGraph *objects.DependencyGraph

	// ModAttrs restores modified attributes during activation. Optional.
	ModAttrs ModAttrsFunc
}

// Compiler drives items through commit, all-loaded, activation and reload.
type Compiler struct {
	registry  *ItemRegistry
	types     *objects.TypeRegistry
	sink      Sink
	admission Admission
	logger    *telemetry.Logger
	metrics   *telemetry.Metrics
	depGraph  *objects.DependencyGraph
	modAttrs  ModAttrsFunc
	tracer    trace.Tracer
}

// New creates a compiler from opts.
func New(opts Options) *Compiler {
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = telemetry.FromContext(context.Background())
	}
	if opts.DependencyGraph == nil {
		opts.DependencyGraph = objects.SharedDependencyGraph
	}

	return &Compiler{
		registry:  opts.Registry,
		types:     opts.Types,
		sink:      opts.Sink,
		admission: opts.Admission,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		depGraph:  opts.DependencyGraph,
		modAttrs:  opts.ModAttrs,
		tracer:    otel.Tracer("github.com/openmon/openmon/pkg/compiler"),
	}
}

// Registry returns the compiler's item registry.
func (c *Compiler) Registry() *ItemRegistry { return c.registry }

// Types returns the compiler's type registry.
func (c *Compiler) Types() *objects.TypeRegistry { return c.types }

// DependencyGraph returns the runtime object dependency graph.
func (c *Compiler) DependencyGraph() *objects.DependencyGraph { return c.depGraph }

type compilerContextKey struct{}

// WithCompiler derives a context carrying the compiler so that lifecycle
// hooks can reach it.
func WithCompiler(ctx context.Context, c *Compiler) context.Context {
	return context.WithValue(ctx, compilerContextKey{}, c)
}

// FromContext returns the compiler carried by ctx, or nil.
func FromContext(ctx context.Context) *Compiler {
	c, _ := ctx.Value(compilerContextKey{}).(*Compiler)
	return c
}

// RunWithActivationContext runs fn under a fresh activation context, then
// commits and activates every item fn registered. It is the entry point
// for objects created at runtime, outside a full configuration load.
func (c *Compiler) RunWithActivationContext(ctx context.Context, fn func(ctx context.Context) error) error {
	scoped, actx := NewActivationScope(ctx)
	scoped = WithCompiler(scoped, c)

	if err := fn(scoped); err != nil {
		return err
	}

	wq := workqueue.New("runtime-config", 0, 0)
	defer wq.Close()

	var newItems []*Item
	if err := c.CommitItems(scoped, actx, wq, &newItems, true); err != nil {
		return err
	}
	return c.ActivateItems(scoped, wq, newItems, true, true, false)
}
