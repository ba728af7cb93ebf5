package monitoring

import "github.com/openmon/openmon/pkg/objects"

// RegisterTypes adds the monitoring object types to the given registry.
// Services load-depend on hosts, notifications on both.
func RegisterTypes(reg *objects.TypeRegistry) error {
	types := []*objects.Type{
		objects.NewType("Host", func() objects.ConfigObject { return &Host{} }),
		objects.NewType("Service", func() objects.ConfigObject { return &Service{} },
			objects.WithComposer(ServiceNameComposer{}),
			objects.WithLoadDependencies("Host")),
		objects.NewType("Notification", func() objects.ConfigObject { return &Notification{} },
			objects.WithComposer(NotificationNameComposer{}),
			objects.WithLoadDependencies("Host", "Service")),
	}
	for _, t := range types {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}
