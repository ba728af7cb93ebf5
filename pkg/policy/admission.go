package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openmon/openmon/pkg/compiler"
)

// Admission gates object registration on policy evaluation. In enforcing
// mode an object with blocking violations is vetoed; in advisory mode the
// violations are only logged.
type Admission struct {
	engine *Engine
	mode   string
	logger zerolog.Logger
}

var _ compiler.Admission = (*Admission)(nil)

// NewAdmission creates an admission gate in the given mode. Unknown modes
// fall back to advisory.
func NewAdmission(engine *Engine, mode string, logger zerolog.Logger) *Admission {
	if mode != ModeEnforcing {
		mode = ModeAdvisory
	}
	return &Admission{
		engine: engine,
		mode:   mode,
		logger: logger.With().Str("component", "policy-admission").Logger(),
	}
}

// Mode returns the active admission mode.
func (a *Admission) Mode() string {
	return a.mode
}

// Check evaluates all enabled policies against the object. A non-nil error
// vetoes the object's registration.
func (a *Admission) Check(ctx context.Context, typeName, objectName string, props map[string]any) error {
	result, err := a.engine.EvaluateObject(ctx, typeName, objectName, props)
	if err != nil {
		return fmt.Errorf("policy evaluation for %s %q failed: %w", typeName, objectName, err)
	}

	var blocking []string
	for _, v := range result.Violations {
		if v.Blocking() {
			blocking = append(blocking, fmt.Sprintf("%s: %s", v.Policy, v.Message))
			continue
		}
		a.logger.Warn().
			Str("policy", v.Policy).
			Str("object_type", typeName).
			Str("object_name", objectName).
			Str("severity", string(v.Severity)).
			Msg(v.Message)
	}

	if len(blocking) == 0 {
		return nil
	}

	if a.mode == ModeAdvisory {
		a.logger.Warn().
			Str("object_type", typeName).
			Str("object_name", objectName).
			Strs("violations", blocking).
			Msg("Policy violations ignored in advisory mode")
		return nil
	}

	return fmt.Errorf("policy check for %s %q failed: %s", typeName, objectName, strings.Join(blocking, "; "))
}
