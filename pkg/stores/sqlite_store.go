package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	path string
	cfg  Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		path: cfg.Path,
		cfg:  cfg,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

// CreateActivation creates a new activation record
func (s *SQLiteStore) CreateActivation(ctx context.Context, act *Activation) error {
	query := `
		INSERT INTO activations (id, status, started_at, completed_at, error, object_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		act.ID,
		act.Status,
		act.StartedAt,
		act.CompletedAt,
		act.Error,
		act.ObjectCount,
		act.CreatedAt,
		act.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create activation: %w", err)
	}

	return nil
}

// GetActivation retrieves an activation by ID
func (s *SQLiteStore) GetActivation(ctx context.Context, id string) (*Activation, error) {
	query := `
		SELECT id, status, started_at, completed_at, error, object_count, created_at, updated_at
		FROM activations
		WHERE id = ?
	`

	act := &Activation{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&act.ID,
		&act.Status,
		&act.StartedAt,
		&act.CompletedAt,
		&act.Error,
		&act.ObjectCount,
		&act.CreatedAt,
		&act.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("activation not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activation: %w", err)
	}

	return act, nil
}

// UpdateActivationStatus updates the status of an activation
func (s *SQLiteStore) UpdateActivationStatus(ctx context.Context, id string, status ActivationStatus, objectCount int, errMsg *string) error {
	query := `
		UPDATE activations
		SET status = ?, object_count = ?, error = ?, completed_at = ?
		WHERE id = ?
	`

	var completedAt *time.Time
	if status == ActivationStatusCompleted || status == ActivationStatusFailed {
		now := time.Now()
		completedAt = &now
	}

	result, err := s.db.ExecContext(ctx, query, status, objectCount, errMsg, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update activation status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("activation not found: %s", id)
	}

	return nil
}

// ListActivations lists activations with pagination
func (s *SQLiteStore) ListActivations(ctx context.Context, limit, offset int) ([]*Activation, error) {
	query := `
		SELECT id, status, started_at, completed_at, error, object_count, created_at, updated_at
		FROM activations
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list activations: %w", err)
	}
	defer rows.Close()

	acts := []*Activation{}
	for rows.Next() {
		act := &Activation{}
		err := rows.Scan(
			&act.ID,
			&act.Status,
			&act.StartedAt,
			&act.CompletedAt,
			&act.Error,
			&act.ObjectCount,
			&act.CreatedAt,
			&act.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activation: %w", err)
		}
		acts = append(acts, act)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activations: %w", err)
	}

	return acts, nil
}

// DeleteActivation deletes an activation by ID
func (s *SQLiteStore) DeleteActivation(ctx context.Context, id string) error {
	query := `DELETE FROM activations WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete activation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("activation not found: %s", id)
	}

	return nil
}

// UpsertObject inserts or updates the snapshot of one committed object
func (s *SQLiteStore) UpsertObject(ctx context.Context, row *ObjectRow) error {
	query := `
		INSERT INTO objects (
			id, object_type, object_name, properties, debug_hints,
			source_path, first_line, first_column, last_line, last_column,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(object_type, object_name) DO UPDATE SET
			properties = excluded.properties,
			debug_hints = excluded.debug_hints,
			source_path = excluded.source_path,
			first_line = excluded.first_line,
			first_column = excluded.first_column,
			last_line = excluded.last_line,
			last_column = excluded.last_column,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		row.ID,
		row.ObjectType,
		row.ObjectName,
		row.Properties,
		row.DebugHints,
		row.SourcePath,
		row.FirstLine,
		row.FirstCol,
		row.LastLine,
		row.LastCol,
		row.CreatedAt,
		row.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert object: %w", err)
	}

	return nil
}

// GetObject retrieves an object snapshot by type and name
func (s *SQLiteStore) GetObject(ctx context.Context, objectType, objectName string) (*ObjectRow, error) {
	query := `
		SELECT id, object_type, object_name, properties, debug_hints,
			   source_path, first_line, first_column, last_line, last_column,
			   created_at, updated_at
		FROM objects
		WHERE object_type = ? AND object_name = ?
	`

	row := &ObjectRow{}
	err := s.db.QueryRowContext(ctx, query, objectType, objectName).Scan(
		&row.ID,
		&row.ObjectType,
		&row.ObjectName,
		&row.Properties,
		&row.DebugHints,
		&row.SourcePath,
		&row.FirstLine,
		&row.FirstCol,
		&row.LastLine,
		&row.LastCol,
		&row.CreatedAt,
		&row.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("object not found: %s/%s", objectType, objectName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	return row, nil
}

// ListObjects lists object snapshots with an optional type filter and pagination
func (s *SQLiteStore) ListObjects(ctx context.Context, objectType *string, limit, offset int) ([]*ObjectRow, error) {
	query := `
		SELECT id, object_type, object_name, properties, debug_hints,
			   source_path, first_line, first_column, last_line, last_column,
			   created_at, updated_at
		FROM objects
		WHERE (? IS NULL OR object_type = ?)
		ORDER BY object_type ASC, object_name ASC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, objectType, objectType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	defer rows.Close()

	objs := []*ObjectRow{}
	for rows.Next() {
		row := &ObjectRow{}
		err := rows.Scan(
			&row.ID,
			&row.ObjectType,
			&row.ObjectName,
			&row.Properties,
			&row.DebugHints,
			&row.SourcePath,
			&row.FirstLine,
			&row.FirstCol,
			&row.LastLine,
			&row.LastCol,
			&row.CreatedAt,
			&row.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		objs = append(objs, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating objects: %w", err)
	}

	return objs, nil
}

// DeleteObject deletes an object snapshot by type and name
func (s *SQLiteStore) DeleteObject(ctx context.Context, objectType, objectName string) error {
	query := `DELETE FROM objects WHERE object_type = ? AND object_name = ?`

	result, err := s.db.ExecContext(ctx, query, objectType, objectName)
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("object not found: %s/%s", objectType, objectName)
	}

	return nil
}

// AppendEvent appends a new event to the log
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO events (activation_id, object_type, object_name, level, message, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		event.ActivationID,
		event.ObjectType,
		event.ObjectName,
		event.Level,
		event.Message,
		event.Details,
		event.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event ID: %w", err)
	}

	event.ID = id
	return nil
}

// GetEvents retrieves events with optional filters and pagination
func (s *SQLiteStore) GetEvents(ctx context.Context, activationID *string, level *EventLevel, limit, offset int) ([]*Event, error) {
	query := `
		SELECT id, activation_id, object_type, object_name, level, message, details, timestamp
		FROM events
		WHERE (? IS NULL OR activation_id = ?)
		  AND (? IS NULL OR level = ?)
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, activationID, activationID, level, level, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		event := &Event{}
		err := rows.Scan(
			&event.ID,
			&event.ActivationID,
			&event.ObjectType,
			&event.ObjectName,
			&event.Level,
			&event.Message,
			&event.Details,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
