package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that should block operations.
	SeverityError Severity = "error"

	// SeverityCritical is for critical violations that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// Mode selects how violations affect object admission.
const (
	// ModeAdvisory logs violations without blocking commits.
	ModeAdvisory = "advisory"

	// ModeEnforcing vetoes objects with blocking violations.
	ModeEnforcing = "enforcing"
)

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// ObjectType and ObjectName identify the violating object.
	ObjectType string `json:"object_type,omitempty"`
	ObjectName string `json:"object_name,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Blocking reports whether the violation should veto the object when the
// engine runs in enforcing mode.
func (v Violation) Blocking() bool {
	return v.Severity == SeverityError || v.Severity == SeverityCritical
}

// Result represents the result of policy evaluation for one object.
type Result struct {
	// Allowed indicates if the object passes all blocking policies.
	Allowed bool `json:"allowed"`

	// Violations lists all policy violations, blocking or not.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists evaluation problems that did not produce a verdict.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedAt is when the evaluation occurred.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Input is the document handed to Rego evaluation for one object.
type Input struct {
	// Type and Name identify the object under evaluation.
	Type string `json:"type"`
	Name string `json:"name"`

	// Properties holds the object's serialized config fields.
	Properties map[string]any `json:"properties"`

	// Context provides additional evaluation context.
	Context *Context `json:"context"`
}

// Context provides context information for policy evaluation.
type Context struct {
	// Environment is the environment (e.g., "production", "staging").
	Environment string `json:"environment,omitempty"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`

	// Operation is the operation being performed.
	Operation string `json:"operation,omitempty"`
}
