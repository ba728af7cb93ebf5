// Package telemetry provides observability instrumentation for the openmon daemon.
//
// The telemetry package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a unified system
// for monitoring and debugging configuration compilation and activation.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for audit and notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "openmon"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context propagation:
//
//	logger := tel.Logger.NewComponentLogger("ConfigItem")
//	logger = logger.WithBatchID(batchID).WithObject("Host", "web01")
//	logger.Info("Committing configuration items.")
//	logger.WithError(err).Error("Commit failed.")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into commit batches and activation phases:
//
//	ctx, span := tel.Tracer.StartBatchSpan(ctx, batchID)
//	defer span.End()
//
//	span.SetAttributes(
//	    telemetry.AttrObjectType.String("Host"),
//	    telemetry.AttrObjectName.String("web01"),
//	)
//
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development)
//
// # Metrics
//
// Prometheus metrics track compiler behavior:
//
//	tel.Metrics.IncBatches()
//	tel.Metrics.ObservePhaseDuration("commit", seconds)
//	tel.Metrics.IncObjectsCommitted("Host")
//	tel.Metrics.IncObjectsIgnored("Service")
//	tel.Metrics.IncReloads("succeeded")
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	tel.Events.PublishBatchStarted(batchID, itemCount)
//	tel.Events.PublishObjectCommitted(batchID, "Host", "web01")
//
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterByBatchID, FilterByObject
//
// # Configuration
//
// The package provides pre-configured setups for different environments:
//
//	// Development (verbose logging, stdout traces, full sampling)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, OTLP traces, 10% sampling)
//	cfg := telemetry.ProductionConfig()
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
//
// # Common Metrics
//
// Key metrics exposed:
//
//   - openmon_batches_total
//   - openmon_phase_duration_seconds{phase}
//   - openmon_objects_committed_total{type}
//   - openmon_objects_ignored_total{type}
//   - openmon_active_objects
//   - openmon_reloads_total{status}
package telemetry
