package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides a unified telemetry interface combining logging, tracing, metrics, and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Initialize logger
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	// Initialize tracer
	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	// Initialize metrics
	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	// Initialize event publisher
	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	// Shutdown in reverse order of initialization
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}

	if err := t.Tracer.Shutdown(ctx); err != nil {
		return err
	}

	// Metrics server is not explicitly shut down here as it may need to continue
	// serving metrics until the very end of the application lifecycle

	return nil
}

// Flush forces all pending telemetry data to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// Context Helpers for common instrumentation patterns

// InstrumentedContext creates a context with telemetry, logger fields, and a trace span.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins an instrumented operation with logging, tracing, and timing.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &InstrumentedContext{
			Ctx:    ctx,
			Logger: FromContext(ctx),
			Timer:  NewTimer(),
		}
	}

	// Start trace span
	spanCtx, span := tel.Tracer.StartSpan(ctx, operation, attrs...)

	// Create logger with operation field
	logger := tel.Logger.WithField("operation", operation)

	// Add trace context to logger if available
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &InstrumentedContext{
		Ctx:    spanCtx,
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End finishes the instrumented operation, recording success or failure.
func (ic *InstrumentedContext) End(err error) {
	if ic.Span != nil {
		if err != nil {
			RecordError(ic.Span, err)
		} else {
			RecordSuccess(ic.Span)
		}
		ic.Span.End()
	}
}

// WithBatchContext creates a context enriched with commit-batch telemetry.
func WithBatchContext(ctx context.Context, batchID string, itemCount int) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	// Start batch span
	spanCtx, span := tel.Tracer.StartBatchSpan(ctx, batchID)
	span.SetAttributes(AttrBatchSize.Int(itemCount))

	// Create batch-specific logger
	logger := tel.Logger.WithBatchID(batchID)
	spanCtx = logger.WithContext(spanCtx)

	// The batches counter is incremented by the compiler, not here.

	// Publish batch started event
	_ = tel.Events.PublishBatchStarted(batchID, itemCount)

	// Store the span and timer in context for later retrieval
	spanCtx = context.WithValue(spanCtx, batchSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, batchTimerKey{}, NewTimer())

	return spanCtx
}

// batchSpanKey is the context key for batch spans.
type batchSpanKey struct{}

// batchTimerKey is the context key for batch timers.
type batchTimerKey struct{}

// EndBatchContext completes the batch context, recording metrics and events.
func EndBatchContext(ctx context.Context, batchID string, committed int, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	// Get the batch span from context
	if span, ok := ctx.Value(batchSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	// Get the timer from context
	timer, _ := ctx.Value(batchTimerKey{}).(*Timer)
	if timer == nil {
		timer = NewTimer()
	}

	// Publish events
	if err != nil {
		_ = tel.Events.PublishBatchAborted(batchID, err.Error())
	} else {
		_ = tel.Events.PublishBatchCommitted(batchID, committed, timer.Duration())
	}
}

// RecordReloadOperation records a single-object reload with metrics and tracing.
func RecordReloadOperation(ctx context.Context, objectType, objectName string, fn func(ctx context.Context) error) error {
	tel := FromTelemetryContext(ctx)

	// Start span
	var span trace.Span
	if tel != nil {
		ctx, span = tel.Tracer.StartReloadSpan(ctx, objectType, objectName)
		defer span.End()
	}

	// Execute operation
	err := fn(ctx)

	// Record metrics and events
	if tel != nil {
		if err != nil {
			tel.Metrics.IncReloads("failed")
			RecordError(span, err)
			_ = tel.Events.PublishReloadFailed(objectType, objectName, err.Error())
		} else {
			tel.Metrics.IncReloads("succeeded")
			RecordSuccess(span)
		}
	}

	return err
}
