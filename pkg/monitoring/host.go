package monitoring

import (
	"context"

	"github.com/openmon/openmon/pkg/objects"
)

const defaultCheckInterval = 60

// Host is a monitored endpoint. Its name is the plain declaration name.
type Host struct {
	objects.ObjectBase

	Address       string         `config:"address,config"`
	Address6      string         `config:"address6,config"`
	CheckCommand  string         `config:"check_command,config" validate:"required"`
	CheckInterval int64          `config:"check_interval,config" validate:"omitempty,gte=1"`
	Groups        []string       `config:"groups,config"`
	Vars          map[string]any `config:"vars,config"`

	LastState       int64   `config:"last_state,state"`
	LastCheck       float64 `config:"last_check,state"`
	LastStateChange float64 `config:"last_state_change,state"`
}

// OnConfigLoaded fills in the default check interval.
func (h *Host) OnConfigLoaded(ctx context.Context) error {
	if h.CheckInterval == 0 {
		h.CheckInterval = defaultCheckInterval
	}
	return nil
}

// State returns the host's last hard state.
func (h *Host) State() HostState {
	return HostState(h.LastState)
}

// ProcessCheckResult folds a check result into the host's state fields.
func (h *Host) ProcessCheckResult(cr *CheckResult) {
	state := int64(cr.State.HostState())
	if h.LastCheck == 0 || state != h.LastState {
		h.LastStateChange = cr.ExecutionEnd
	}
	h.LastState = state
	h.LastCheck = cr.ExecutionEnd
}
