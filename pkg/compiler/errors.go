package compiler

import (
	"errors"
	"fmt"

	"github.com/openmon/openmon/pkg/objects"
)

// ErrorKind classifies a compiler error for reporting and recovery logic.
type ErrorKind string

const (
	// ErrorKindTypeNotFound indicates an item referenced an unregistered type.
	ErrorKindTypeNotFound ErrorKind = "type_not_found"

	// ErrorKindDuplicateDeclaration indicates two non-abstract items share a
	// (type, name) pair.
	ErrorKindDuplicateDeclaration ErrorKind = "duplicate_declaration"

	// ErrorKindEmptyName indicates a non-abstract item was declared without
	// a name and its type has no name composer.
	ErrorKindEmptyName ErrorKind = "empty_name"

	// ErrorKindNameComposition indicates a composite name could not be built
	// from the declaration properties.
	ErrorKindNameComposition ErrorKind = "name_composition"

	// ErrorKindValidation indicates field or semantic validation failed.
	ErrorKindValidation ErrorKind = "validation"

	// ErrorKindEvaluation indicates the declaration body failed to evaluate.
	ErrorKindEvaluation ErrorKind = "evaluation"

	// ErrorKindLoadCallback indicates an OnConfigLoaded hook failed.
	ErrorKindLoadCallback ErrorKind = "load_callback"

	// ErrorKindAllLoaded indicates an OnAllConfigLoaded hook or child
	// expansion failed.
	ErrorKindAllLoaded ErrorKind = "all_loaded"

	// ErrorKindChildExpansionDivergence indicates child-object expansion
	// kept producing new items past the recursion cap.
	ErrorKindChildExpansionDivergence ErrorKind = "child_expansion_divergence"

	// ErrorKindReloadFailed indicates a single-object reload could not
	// rebuild the object and was rolled back.
	ErrorKindReloadFailed ErrorKind = "reload_failed"

	// ErrorKindBatchAborted indicates the commit batch stopped because an
	// earlier phase reported errors.
	ErrorKindBatchAborted ErrorKind = "batch_aborted"
)

// Error is a classified compiler error carrying the source location and
// operator hints of the declaration that caused it.
type Error struct {
	// Kind is the error classification.
	Kind ErrorKind

	// Message is the human-readable error message.
	Message string

	// TypeName and ObjectName identify the declaration, when known.
	TypeName   string
	ObjectName string

	// DebugInfo locates the declaration in its source file.
	DebugInfo objects.DebugInfo

	// Hints carries evaluation breadcrumbs gathered while processing the
	// declaration body.
	Hints map[string]any

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var where string
	if e.TypeName != "" && e.ObjectName != "" {
		where = fmt.Sprintf(" (%s %q)", e.TypeName, e.ObjectName)
	} else if e.TypeName != "" {
		where = fmt.Sprintf(" (%s)", e.TypeName)
	}

	msg := fmt.Sprintf("[%s] %s%s", e.Kind, e.Message, where)
	if !e.DebugInfo.IsZero() {
		msg += " at " + e.DebugInfo.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality for errors.Is: two compiler errors match
// when their kinds match.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError creates a classified error.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithObject adds the declaration identity to the error.
func (e *Error) WithObject(typeName, objectName string) *Error {
	e.TypeName = typeName
	e.ObjectName = objectName
	return e
}

// WithDebugInfo adds the source location to the error.
func (e *Error) WithDebugInfo(di objects.DebugInfo) *Error {
	e.DebugInfo = di
	return e
}

// WithHints attaches evaluation breadcrumbs to the error.
func (e *Error) WithHints(hints map[string]any) *Error {
	e.Hints = hints
	return e
}

// KindOf returns the classification of err, or the empty kind when err is
// not a compiler error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsValidation reports whether err is classified as a validation failure.
func IsValidation(err error) bool {
	return KindOf(err) == ErrorKindValidation
}

// ErrChildExpansionDivergence is the sentinel returned when the all-loaded
// pass exceeds the child expansion recursion cap.
var ErrChildExpansionDivergence = &Error{
	Kind:    ErrorKindChildExpansionDivergence,
	Message: "child object expansion did not converge",
}
