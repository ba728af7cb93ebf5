package stores

import (
	"context"
	"database/sql"
	"time"
)

// ActivationStatus represents the status of an activation batch
type ActivationStatus string

const (
	ActivationStatusPending   ActivationStatus = "pending"
	ActivationStatusRunning   ActivationStatus = "running"
	ActivationStatusCompleted ActivationStatus = "completed"
	ActivationStatusFailed    ActivationStatus = "failed"
)

// EventLevel represents the severity level of an event
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// Activation represents one commit-and-activate batch
type Activation struct {
	ID          string           `json:"id"`
	Status      ActivationStatus `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Error       *string          `json:"error,omitempty"`
	ObjectCount int              `json:"object_count"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ObjectRow is the persisted snapshot of one committed config object
type ObjectRow struct {
	ID         string    `json:"id"`
	ObjectType string    `json:"object_type"`
	ObjectName string    `json:"object_name"`
	Properties string    `json:"properties"`            // JSON blob
	DebugHints *string   `json:"debug_hints,omitempty"` // JSON blob
	SourcePath string    `json:"source_path"`
	FirstLine  int       `json:"first_line"`
	FirstCol   int       `json:"first_column"`
	LastLine   int       `json:"last_line"`
	LastCol    int       `json:"last_column"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Event represents an append-only log event
type Event struct {
	ID           int64      `json:"id"`
	ActivationID *string    `json:"activation_id,omitempty"`
	ObjectType   *string    `json:"object_type,omitempty"`
	ObjectName   *string    `json:"object_name,omitempty"`
	Level        EventLevel `json:"level"`
	Message      string     `json:"message"`
	Details      *string    `json:"details,omitempty"` // JSON blob
	Timestamp    time.Time  `json:"timestamp"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Activation operations
	CreateActivation(ctx context.Context, act *Activation) error
	GetActivation(ctx context.Context, id string) (*Activation, error)
	UpdateActivationStatus(ctx context.Context, id string, status ActivationStatus, objectCount int, err *string) error
	ListActivations(ctx context.Context, limit, offset int) ([]*Activation, error)
	DeleteActivation(ctx context.Context, id string) error

	// Object snapshot operations
	UpsertObject(ctx context.Context, row *ObjectRow) error
	GetObject(ctx context.Context, objectType, objectName string) (*ObjectRow, error)
	ListObjects(ctx context.Context, objectType *string, limit, offset int) ([]*ObjectRow, error)
	DeleteObject(ctx context.Context, objectType, objectName string) error

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, activationID *string, level *EventLevel, limit, offset int) ([]*Event, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
