package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event in the openmon daemon.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// BatchID is the associated commit batch ID, if applicable.
	BatchID string `json:"batch_id,omitempty"`

	// ObjectType is the associated configuration object type, if applicable.
	ObjectType string `json:"object_type,omitempty"`

	// ObjectName is the associated configuration object name, if applicable.
	ObjectName string `json:"object_name,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeBatchStarted    = "batch.started"
	EventTypeBatchCommitted  = "batch.committed"
	EventTypeBatchAborted    = "batch.aborted"
	EventTypeObjectCommitted = "object.committed"
	EventTypeObjectIgnored   = "object.ignored"
	EventTypeObjectReloaded  = "object.reloaded"
	EventTypeReloadFailed    = "reload.failed"
	EventTypePolicyViolation = "policy.violation"
	EventTypeError           = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		filters:     make([]EventFilter, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	// Start the event processing goroutine
	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	// Set ID and timestamp if not already set
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Apply global filters
	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil // Event filtered out
		}
	}
	ep.mu.RUnlock()

	// Send to buffer if async, otherwise process immediately
	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			// Buffer full, drop event or log warning
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	// Synchronous publishing
	ep.deliverEvent(event)
	return nil
}

// PublishBatchStarted publishes a batch started event.
func (ep *EventPublisher) PublishBatchStarted(batchID string, itemCount int) error {
	return ep.Publish(Event{
		Type:    EventTypeBatchStarted,
		Source:  "compiler",
		BatchID: batchID,
		Message: fmt.Sprintf("Commit batch %s started with %d items", batchID, itemCount),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"item_count": itemCount,
		},
	})
}

// PublishBatchCommitted publishes a batch committed event.
func (ep *EventPublisher) PublishBatchCommitted(batchID string, committed int, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeBatchCommitted,
		Source:  "compiler",
		BatchID: batchID,
		Message: fmt.Sprintf("Commit batch %s committed %d objects", batchID, committed),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"committed": committed,
			"duration":  duration.Seconds(),
		},
	})
}

// PublishBatchAborted publishes a batch aborted event.
func (ep *EventPublisher) PublishBatchAborted(batchID, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeBatchAborted,
		Source:  "compiler",
		BatchID: batchID,
		Message: fmt.Sprintf("Commit batch %s aborted: %s", batchID, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishObjectCommitted publishes an object committed event.
func (ep *EventPublisher) PublishObjectCommitted(batchID, objectType, objectName string) error {
	return ep.Publish(Event{
		Type:       EventTypeObjectCommitted,
		Source:     "compiler",
		BatchID:    batchID,
		ObjectType: objectType,
		ObjectName: objectName,
		Message:    fmt.Sprintf("Object %s of type %s committed", objectName, objectType),
		Level:      EventLevelInfo,
	})
}

// PublishObjectIgnored publishes an object ignored event.
func (ep *EventPublisher) PublishObjectIgnored(batchID, objectType, objectName, reason string) error {
	return ep.Publish(Event{
		Type:       EventTypeObjectIgnored,
		Source:     "compiler",
		BatchID:    batchID,
		ObjectType: objectType,
		ObjectName: objectName,
		Message:    fmt.Sprintf("Object %s of type %s ignored: %s", objectName, objectType, reason),
		Level:      EventLevelWarning,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishObjectReloaded publishes an object reloaded event.
func (ep *EventPublisher) PublishObjectReloaded(objectType, objectName string, dependents int) error {
	return ep.Publish(Event{
		Type:       EventTypeObjectReloaded,
		Source:     "compiler",
		ObjectType: objectType,
		ObjectName: objectName,
		Message:    fmt.Sprintf("Object %s of type %s reloaded (%d dependents)", objectName, objectType, dependents),
		Level:      EventLevelInfo,
		Data: map[string]interface{}{
			"dependents": dependents,
		},
	})
}

// PublishReloadFailed publishes a reload failed event.
func (ep *EventPublisher) PublishReloadFailed(objectType, objectName, reason string) error {
	return ep.Publish(Event{
		Type:       EventTypeReloadFailed,
		Source:     "compiler",
		ObjectType: objectType,
		ObjectName: objectName,
		Message:    fmt.Sprintf("Reload of object %s of type %s failed: %s", objectName, objectType, reason),
		Level:      EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishPolicyViolation publishes a policy violation event.
func (ep *EventPublisher) PublishPolicyViolation(objectType, objectName, policyName, reason string) error {
	return ep.Publish(Event{
		Type:       EventTypePolicyViolation,
		Source:     "policy_engine",
		ObjectType: objectType,
		ObjectName: objectName,
		Message:    fmt.Sprintf("Policy violation on object %s: %s - %s", objectName, policyName, reason),
		Level:      EventLevelError,
		Data: map[string]interface{}{
			"policy": policyName,
			"reason": reason,
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents processes events from the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)

			// Flush batch if it reaches max size
			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-ep.ctx.Done():
			// Flush remaining events before shutting down
			if len(batch) > 0 {
				ep.flushBatch(batch)
			}
			return
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		// Apply subscriber-specific filter
		if entry.filter != nil && !entry.filter(event) {
			continue
		}

		// Call subscriber in a goroutine to avoid blocking
		go entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	// Signal shutdown
	ep.cancel()

	// Wait for processing to complete with timeout
	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByBatchID creates a filter that only allows events for a specific commit batch.
func FilterByBatchID(batchID string) EventFilter {
	return func(event Event) bool {
		return event.BatchID == batchID
	}
}

// FilterByObject creates a filter that only allows events for a specific object.
func FilterByObject(objectType, objectName string) EventFilter {
	return func(event Event) bool {
		return event.ObjectType == objectType && event.ObjectName == objectName
	}
}
