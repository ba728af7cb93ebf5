package monitoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/openmon/openmon/pkg/compiler"
	"github.com/openmon/openmon/pkg/objects"
)

// NotificationNameComposer builds notification names of the form
// "host!service!notification", or "host!notification" for host-level
// notifications.
type NotificationNameComposer struct{}

// MakeName combines the declared notification name with its host_name and
// optional service_name properties.
func (NotificationNameComposer) MakeName(shortName string, props map[string]any) (string, error) {
	host, _ := props["host_name"].(string)
	if host == "" {
		return "", fmt.Errorf("notification %q has no host_name", shortName)
	}
	if shortName == "" {
		return "", fmt.Errorf("notification on host %q has no name", host)
	}
	if service, _ := props["service_name"].(string); service != "" {
		return host + "!" + service + "!" + shortName, nil
	}
	return host + "!" + shortName, nil
}

// ParseName splits a full notification name back into its parts.
func (NotificationNameComposer) ParseName(name string) (map[string]any, error) {
	parts := strings.Split(name, "!")
	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("invalid notification name %q", name)
		}
	}
	switch len(parts) {
	case 2:
		return map[string]any{"host_name": parts[0], "name": parts[1]}, nil
	case 3:
		return map[string]any{"host_name": parts[0], "service_name": parts[1], "name": parts[2]}, nil
	default:
		return nil, fmt.Errorf("invalid notification name %q", name)
	}
}

// Notification pairs a host or service with a contact to notify on state
// changes. Service notifications are usually derived from the service's
// contact list during child expansion.
type Notification struct {
	objects.ObjectBase

	HostName    string `config:"host_name,config" validate:"required"`
	ServiceName string `config:"service_name,config"`
	Contact     string `config:"contact,config"`
	Command     string `config:"command,config"`
	Interval    int64  `config:"interval,config" validate:"omitempty,gte=1"`

	LastNotification float64 `config:"last_notification,state"`
}

// OnAllConfigLoaded resolves the host and service references and records
// the dependency edges.
func (n *Notification) OnAllConfigLoaded(ctx context.Context) error {
	c := compiler.FromContext(ctx)

	host := c.Types().Lookup("Host").Instance(n.HostName)
	if host == nil {
		return fmt.Errorf("notification %q references unknown host %q", n.Name(), n.HostName)
	}
	c.DependencyGraph().AddDependency(n, host)

	if n.ServiceName == "" {
		return nil
	}
	serviceFullName := n.HostName + "!" + n.ServiceName
	service := c.Types().Lookup("Service").Instance(serviceFullName)
	if service == nil {
		return fmt.Errorf("notification %q references unknown service %q", n.Name(), serviceFullName)
	}
	c.DependencyGraph().AddDependency(n, service)
	return nil
}
