// Package stores provides the persistence layer of the openmon daemon.
// It includes SQLite-based storage with WAL mode, connection pooling,
// and CRUD operations for activation batches, committed object snapshots,
// and the append-only event log. ObjectSink adapts the store to the
// commit pipeline's sink interface.
package stores
