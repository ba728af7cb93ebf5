package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openmon/openmon/pkg/compiler"
)

// ObjectSink persists committed objects through a Store. It is handed to the
// commit pipeline, which calls WriteObject once per registered object.
type ObjectSink struct {
	store Store
}

// NewObjectSink creates a sink writing object snapshots to store.
func NewObjectSink(store Store) *ObjectSink {
	return &ObjectSink{store: store}
}

var _ compiler.Sink = (*ObjectSink)(nil)

// WriteObject upserts the record keyed by type and name, so re-commits of
// the same object replace the previous snapshot.
func (s *ObjectSink) WriteObject(ctx context.Context, rec *compiler.ObjectRecord) error {
	props, err := json.Marshal(rec.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal properties for %s %q: %w", rec.Type, rec.Name, err)
	}

	var hints *string
	if len(rec.DebugHints) > 0 {
		raw, err := json.Marshal(rec.DebugHints)
		if err != nil {
			return fmt.Errorf("failed to marshal debug hints for %s %q: %w", rec.Type, rec.Name, err)
		}
		str := string(raw)
		hints = &str
	}

	now := time.Now()
	return s.store.UpsertObject(ctx, &ObjectRow{
		ID:         uuid.NewString(),
		ObjectType: rec.Type,
		ObjectName: rec.Name,
		Properties: string(props),
		DebugHints: hints,
		SourcePath: rec.DebugInfo.Path,
		FirstLine:  rec.DebugInfo.FirstLine,
		FirstCol:   rec.DebugInfo.FirstColumn,
		LastLine:   rec.DebugInfo.LastLine,
		LastCol:    rec.DebugInfo.LastColumn,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}
