package monitoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/openmon/openmon/pkg/compiler"
	"github.com/openmon/openmon/pkg/objects"
)

// ServiceNameComposer builds service names of the form "host!service".
type ServiceNameComposer struct{}

// MakeName combines the declared service name with its host_name property.
func (ServiceNameComposer) MakeName(shortName string, props map[string]any) (string, error) {
	host, _ := props["host_name"].(string)
	if host == "" {
		return "", fmt.Errorf("service %q has no host_name", shortName)
	}
	if shortName == "" {
		return "", fmt.Errorf("service on host %q has no name", host)
	}
	return host + "!" + shortName, nil
}

// ParseName splits a full service name back into host and service parts.
func (ServiceNameComposer) ParseName(name string) (map[string]any, error) {
	host, short, ok := strings.Cut(name, "!")
	if !ok || host == "" || short == "" {
		return nil, fmt.Errorf("invalid service name %q", name)
	}
	return map[string]any{"host_name": host, "name": short}, nil
}

// Service is a check attached to a host. Its full name is composed as
// "host!service".
type Service struct {
	objects.ObjectBase

	HostName      string         `config:"host_name,config" validate:"required"`
	CheckCommand  string         `config:"check_command,config" validate:"required"`
	CheckInterval int64          `config:"check_interval,config" validate:"omitempty,gte=1"`
	Contacts      []string       `config:"contacts,config"`
	Vars          map[string]any `config:"vars,config"`

	LastState       int64   `config:"last_state,state"`
	LastCheck       float64 `config:"last_check,state"`
	LastStateChange float64 `config:"last_state_change,state"`
}

// OnConfigLoaded fills in the default check interval.
func (s *Service) OnConfigLoaded(ctx context.Context) error {
	if s.CheckInterval == 0 {
		s.CheckInterval = defaultCheckInterval
	}
	return nil
}

// OnAllConfigLoaded resolves the host reference and records the dependency
// edge so that reloading the host tears the service down with it.
func (s *Service) OnAllConfigLoaded(ctx context.Context) error {
	c := compiler.FromContext(ctx)
	host := c.Types().Lookup("Host").Instance(s.HostName)
	if host == nil {
		return fmt.Errorf("service %q references unknown host %q", s.Name(), s.HostName)
	}
	c.DependencyGraph().AddDependency(s, host)
	return nil
}

// Host returns the resolved host object, or nil before the all-loaded pass.
func (s *Service) Host(types *objects.TypeRegistry) *Host {
	t := types.Lookup("Host")
	if t == nil {
		return nil
	}
	host, _ := t.Instance(s.HostName).(*Host)
	return host
}

// CreateChildObjects declares one notification per configured contact.
// Contacts whose notification already exists are skipped.
func (s *Service) CreateChildObjects(ctx context.Context, childType *objects.Type) error {
	if childType.Name() != "Notification" {
		return nil
	}

	c := compiler.FromContext(ctx)
	for _, contact := range s.Contacts {
		fullName := s.Name() + "!" + contact
		if childType.Instance(fullName) != nil {
			continue
		}

		item, err := compiler.NewItemBuilder(c.Types()).
			SetType("Notification").
			SetName(contact).
			SetExpression(setFieldsExpr(map[string]any{
				"host_name":    s.HostName,
				"service_name": s.ShortName(),
				"contact":      contact,
			})).
			SetCreationType("apply").
			SetZone(s.ZoneName()).
			SetPackage(s.Package()).
			SetDebugInfo(s.DebugInfo()).
			Compile()
		if err != nil {
			return err
		}
		if err := c.Registry().Register(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// State returns the service's last state.
func (s *Service) State() ServiceState {
	return ServiceState(s.LastState)
}

// ProcessCheckResult folds a check result into the service's state fields.
func (s *Service) ProcessCheckResult(cr *CheckResult) {
	state := int64(cr.State)
	if s.LastCheck == 0 || state != s.LastState {
		s.LastStateChange = cr.ExecutionEnd
	}
	s.LastState = state
	s.LastCheck = cr.ExecutionEnd
}

func setFieldsExpr(fields map[string]any) compiler.Expression {
	return compiler.ExpressionFunc(func(ctx context.Context, frame *compiler.Frame, hints *compiler.DebugHints) error {
		for name, value := range fields {
			if err := frame.Self.SetField(name, value); err != nil {
				return err
			}
		}
		return nil
	})
}
