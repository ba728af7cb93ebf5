package compiler

import (
	"context"

	"github.com/openmon/openmon/pkg/objects"
)

// ObjectRecord is the persistence snapshot of one committed object.
type ObjectRecord struct {
	// Type and Name identify the object.
	Type string
	Name string

	// Properties holds the serialized config-flagged fields.
	Properties map[string]any

	// DebugHints carries the evaluation breadcrumb tree, if any.
	DebugHints map[string]any

	// DebugInfo locates the declaring item in its source file.
	DebugInfo objects.DebugInfo
}

// Sink receives one record per committed object.
type Sink interface {
	WriteObject(ctx context.Context, rec *ObjectRecord) error
}

// Admission is consulted after validation with the serialized config
// properties of a freshly committed object. A non-nil error vetoes the
// object as a validation failure.
type Admission interface {
	Check(ctx context.Context, typeName, objectName string, props map[string]any) error
}
