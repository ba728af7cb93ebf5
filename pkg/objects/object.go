package objects

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// ConfigObject is the behavior shared by all compiled objects. Concrete
// types obtain it by embedding ObjectBase and may override any lifecycle
// hook by redeclaring the method.
type ConfigObject interface {
	// ReflectType returns the object's registered type descriptor.
	ReflectType() *Type

	// Name returns the full object name, ShortName the declaration-local
	// name (they differ only for composite-named types).
	Name() string
	ShortName() string
	SetName(name string)
	SetShortName(name string)

	ZoneName() string
	SetZoneName(zone string)
	Package() string
	SetPackage(pkg string)
	CreationType() string
	SetCreationType(creation string)

	DebugInfo() DebugInfo
	SetDebugInfo(di DebugInfo)

	// GetExtension and SetExtension attach out-of-band markers to an
	// object instance (for example deletion flags during a reload).
	GetExtension(key string) (any, bool)
	SetExtension(key string, value any)
	ClearExtension(key string)

	// SetField and GetField access declared fields by their serialized
	// name via the type's field table.
	SetField(name string, value any) error
	GetField(name string) (any, error)

	// Register inserts the object into its type's instance registry,
	// Unregister removes it. IsActive reports activation state.
	Register() error
	Unregister()
	IsActive() bool

	// Lifecycle hooks invoked by the commit and activation pipelines.
	OnConfigLoaded(ctx context.Context) error
	OnAllConfigLoaded(ctx context.Context) error
	CreateChildObjects(ctx context.Context, childType *Type) error
	PreActivate(ctx context.Context) error
	Activate(ctx context.Context, runtimeCreated bool) error
	Deactivate(ctx context.Context, runtimeRemoved bool) error

	attach(t *Type, self ConfigObject)
	setActive(active bool)
}

// ObjectBase provides the common state and default lifecycle behavior for
// config objects. It must be embedded by value in every concrete type.
type ObjectBase struct {
	mu sync.Mutex

	rtype *Type
	self  ConfigObject

	name         string
	shortName    string
	zoneName     string
	pkg          string
	creationType string
	debugInfo    DebugInfo
	extensions   map[string]any
	active       bool
}

func (b *ObjectBase) attach(t *Type, self ConfigObject) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rtype = t
	b.self = self
}

// ReflectType returns the type descriptor the object was instantiated from.
func (b *ObjectBase) ReflectType() *Type {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rtype
}

// Name returns the full object name.
func (b *ObjectBase) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.name
}

// SetName sets the full object name.
func (b *ObjectBase) SetName(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.name = name
}

// ShortName returns the declaration-local name, falling back to the full
// name when no short name was set.
func (b *ObjectBase) ShortName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.shortName == "" {
		return b.name
	}
	return b.shortName
}

// SetShortName sets the declaration-local name.
func (b *ObjectBase) SetShortName(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shortName = name
}

// ZoneName returns the zone the object belongs to.
func (b *ObjectBase) ZoneName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.zoneName
}

// SetZoneName sets the zone the object belongs to.
func (b *ObjectBase) SetZoneName(zone string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.zoneName = zone
}

// Package returns the configuration package that declared the object.
func (b *ObjectBase) Package() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pkg
}

// SetPackage sets the declaring configuration package.
func (b *ObjectBase) SetPackage(pkg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pkg = pkg
}

// CreationType records how the object came to be ("object" for static
// declarations, "apply" for rule-generated objects).
func (b *ObjectBase) CreationType() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.creationType
}

// SetCreationType sets the creation type.
func (b *ObjectBase) SetCreationType(creation string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creationType = creation
}

// DebugInfo returns the source location of the declaring item.
func (b *ObjectBase) DebugInfo() DebugInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.debugInfo
}

// SetDebugInfo sets the source location.
func (b *ObjectBase) SetDebugInfo(di DebugInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.debugInfo = di
}

// GetExtension retrieves an out-of-band marker.
func (b *ObjectBase) GetExtension(key string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.extensions[key]
	return v, ok
}

// SetExtension attaches an out-of-band marker.
func (b *ObjectBase) SetExtension(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.extensions == nil {
		b.extensions = make(map[string]any)
	}
	b.extensions[key] = value
}

// ClearExtension removes an out-of-band marker.
func (b *ObjectBase) ClearExtension(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.extensions, key)
}

// IsActive reports whether Activate has run without a subsequent Deactivate.
func (b *ObjectBase) IsActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

func (b *ObjectBase) setActive(active bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = active
}

// SetField assigns a declared field by its serialized name, coercing the
// value to the field's Go type where a lossless conversion exists.
func (b *ObjectBase) SetField(name string, value any) error {
	b.mu.Lock()
	t, self := b.rtype, b.self
	b.mu.Unlock()
	if t == nil {
		return fmt.Errorf("object is not attached to a type")
	}

	f, ok := t.FieldByName(name)
	if !ok {
		return fmt.Errorf("type %s has no field %q", t.Name(), name)
	}

	fv := reflect.ValueOf(self).Elem().FieldByIndex(f.index)
	coerced, err := coerceValue(value, fv.Type())
	if err != nil {
		return fmt.Errorf("field %q: %w", name, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	fv.Set(coerced)
	return nil
}

// GetField reads a declared field by its serialized name.
func (b *ObjectBase) GetField(name string) (any, error) {
	b.mu.Lock()
	t, self := b.rtype, b.self
	b.mu.Unlock()
	if t == nil {
		return nil, fmt.Errorf("object is not attached to a type")
	}

	f, ok := t.FieldByName(name)
	if !ok {
		return nil, fmt.Errorf("type %s has no field %q", t.Name(), name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return reflect.ValueOf(self).Elem().FieldByIndex(f.index).Interface(), nil
}

// Register inserts the object into its type's instance registry.
func (b *ObjectBase) Register() error {
	b.mu.Lock()
	t, self := b.rtype, b.self
	name := b.name
	b.mu.Unlock()
	if t == nil {
		return fmt.Errorf("object is not attached to a type")
	}
	return t.registerInstance(name, self)
}

// Unregister removes the object from its type's instance registry.
func (b *ObjectBase) Unregister() {
	b.mu.Lock()
	t := b.rtype
	name := b.name
	b.mu.Unlock()
	if t != nil {
		t.unregisterInstance(name)
	}
}

// OnConfigLoaded runs after the object's declaration body has been
// evaluated and validated. The default does nothing.
func (b *ObjectBase) OnConfigLoaded(ctx context.Context) error { return nil }

// OnAllConfigLoaded runs once every object of the current batch whose type
// the object load-depends on has been committed. The default does nothing.
func (b *ObjectBase) OnAllConfigLoaded(ctx context.Context) error { return nil }

// CreateChildObjects gives the object a chance to declare derived objects
// of childType during the all-loaded pass. The default declares none.
func (b *ObjectBase) CreateChildObjects(ctx context.Context, childType *Type) error { return nil }

// PreActivate runs before Activate across the whole batch. The default does
// nothing.
func (b *ObjectBase) PreActivate(ctx context.Context) error { return nil }

// Activate marks the object active. Overrides must call through to the
// embedded implementation.
func (b *ObjectBase) Activate(ctx context.Context, runtimeCreated bool) error {
	b.setActive(true)
	return nil
}

// Deactivate marks the object inactive. Overrides must call through to the
// embedded implementation.
func (b *ObjectBase) Deactivate(ctx context.Context, runtimeRemoved bool) error {
	b.setActive(false)
	return nil
}

// ValidationUtils exposes registry lookups to custom validation hooks.
type ValidationUtils struct {
	types *TypeRegistry
}

// ValidateName reports whether an object of the given type name exists.
func (u ValidationUtils) ValidateName(typeName, name string) bool {
	if u.types == nil {
		return false
	}
	t := u.types.Lookup(typeName)
	if t == nil {
		return false
	}
	return t.Instance(name) != nil
}

// ConfigValidator is implemented by object types that need semantic checks
// beyond struct-tag validation.
type ConfigValidator interface {
	ValidateConfig(utils ValidationUtils) error
}

// Validate runs struct-tag validation over the object and, when the object
// implements ConfigValidator, its semantic checks.
func Validate(obj ConfigObject, types *TypeRegistry) error {
	if err := structValidator.Struct(obj); err != nil {
		return err
	}
	if cv, ok := obj.(ConfigValidator); ok {
		return cv.ValidateConfig(ValidationUtils{types: types})
	}
	return nil
}
