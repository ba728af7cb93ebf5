package objects

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Factory produces a fresh, unattached instance of a concrete object type.
type Factory func() ConfigObject

// NameComposer builds the full object name for composite-named types from
// the serialized declaration properties.
type NameComposer interface {
	// MakeName combines shortName with the identifying properties into
	// the full name.
	MakeName(shortName string, props map[string]any) (string, error)
	// ParseName splits a full name back into its identifying properties.
	ParseName(name string) (map[string]any, error)
}

// Type describes a registered object type: its field table, factory,
// naming rules, load dependencies and live instances.
type Type struct {
	name       string
	pluralName string
	factory    Factory
	fields     []Field
	fieldIndex map[string]int
	composer   NameComposer
	loadDeps   []string

	registry *TypeRegistry

	mu        sync.RWMutex
	instances map[string]ConfigObject
}

// TypeOption customizes a type during NewType.
type TypeOption func(*Type)

// WithPluralName overrides the default "<name>s" plural used in log lines.
func WithPluralName(plural string) TypeOption {
	return func(t *Type) { t.pluralName = plural }
}

// WithLoadDependencies declares the type names whose objects must complete
// their all-loaded pass before this type's.
func WithLoadDependencies(typeNames ...string) TypeOption {
	return func(t *Type) { t.loadDeps = append(t.loadDeps, typeNames...) }
}

// WithComposer installs a composite-name builder.
func WithComposer(c NameComposer) TypeOption {
	return func(t *Type) { t.composer = c }
}

// NewType builds a type descriptor by reflecting over the struct the
// factory produces. Field metadata comes from `config` struct tags.
func NewType(name string, factory Factory, opts ...TypeOption) *Type {
	probe := factory()
	rt := reflect.TypeOf(probe)
	if rt.Kind() != reflect.Ptr || rt.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("objects: factory for %s must return a struct pointer", name))
	}

	t := &Type{
		name:       name,
		pluralName: name + "s",
		factory:    factory,
		fields:     collectFields(rt.Elem()),
		instances:  make(map[string]ConfigObject),
	}
	t.fieldIndex = make(map[string]int, len(t.fields))
	for i, f := range t.fields {
		t.fieldIndex[f.Name] = i
	}

	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the type name.
func (t *Type) Name() string { return t.name }

// PluralName returns the plural form used in diagnostics.
func (t *Type) PluralName() string { return t.pluralName }

// Composer returns the composite-name builder, or nil for simple names.
func (t *Type) Composer() NameComposer { return t.composer }

// LoadDependencies returns the type names this type load-depends on.
func (t *Type) LoadDependencies() []string {
	return append([]string(nil), t.loadDeps...)
}

// Fields returns the declared field table in declaration order.
func (t *Type) Fields() []Field {
	return append([]Field(nil), t.fields...)
}

// FieldByName looks a field up by its serialized name.
func (t *Type) FieldByName(name string) (Field, bool) {
	i, ok := t.fieldIndex[name]
	if !ok {
		return Field{}, false
	}
	return t.fields[i], true
}

// Registry returns the type registry this type is registered with, or nil.
func (t *Type) Registry() *TypeRegistry {
	return t.registry
}

// Instantiate produces a fresh instance attached to this type.
func (t *Type) Instantiate() ConfigObject {
	obj := t.factory()
	obj.attach(t, obj)
	return obj
}

// Instance returns the registered object with the given full name, or nil.
func (t *Type) Instance(name string) ConfigObject {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.instances[name]
}

// Instances returns all registered objects sorted by name.
func (t *Type) Instances() []ConfigObject {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.instances))
	for name := range t.instances {
		names = append(names, name)
	}
	sort.Strings(names)

	objs := make([]ConfigObject, 0, len(names))
	for _, name := range names {
		objs = append(objs, t.instances[name])
	}
	return objs
}

// InstanceCount returns the number of registered objects.
func (t *Type) InstanceCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.instances)
}

func (t *Type) registerInstance(name string, obj ConfigObject) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.instances[name]; exists {
		return fmt.Errorf("an object of type %s named %q already exists", t.name, name)
	}
	t.instances[name] = obj
	return nil
}

func (t *Type) unregisterInstance(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.instances, name)
}

// TypeRegistry maps type names to their descriptors.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]*Type
}

// NewTypeRegistry creates an empty type registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[string]*Type)}
}

// Register adds a type. Registering the same name twice is an error.
func (r *TypeRegistry) Register(t *Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[t.name]; exists {
		return fmt.Errorf("type %q is already registered", t.name)
	}
	t.registry = r
	r.types[t.name] = t
	return nil
}

// Lookup returns the type with the given name, or nil.
func (r *TypeRegistry) Lookup(name string) *Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types[name]
}

// All returns every registered type sorted by name.
func (r *TypeRegistry) All() []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)

	types := make([]*Type, 0, len(names))
	for _, name := range names {
		types = append(types, r.types[name])
	}
	return types
}
