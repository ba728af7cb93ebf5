package compiler

import (
	"strings"
	"sync"

	"github.com/openmon/openmon/pkg/objects"
)

// Item is a registered configuration declaration: the recipe from which a
// config object is materialized during commit.
type Item struct {
	itemType        *objects.Type
	name            string
	abstract        bool
	defaultTemplate bool
	ignoreOnError   bool
	expression      Expression
	filter          Expression
	scope           map[string]any
	debugInfo       objects.DebugInfo
	zone            string
	pkg             string
	creationType    string

	actx *ActivationContext

	mu            sync.Mutex
	object        objects.ConfigObject
	ignored       bool
	committedName string
}

// Type returns the declared object type.
func (i *Item) Type() *objects.Type { return i.itemType }

// Name returns the declared (short) name.
func (i *Item) Name() string { return i.name }

// IsAbstract reports whether the item is a template.
func (i *Item) IsAbstract() bool { return i.abstract }

// IsDefaultTemplate reports whether the item is a default template of its
// type. ReloadObject imports the type's default templates into its
// re-declaration of an object; CommitItems does not apply them to other
// items.
func (i *Item) IsDefaultTemplate() bool { return i.defaultTemplate }

// IgnoreOnError reports whether commit failures drop the item instead of
// failing the batch.
func (i *Item) IgnoreOnError() bool { return i.ignoreOnError }

// Expression returns the compiled declaration body.
func (i *Item) Expression() Expression { return i.expression }

// Filter returns the apply-rule filter, or nil for static declarations.
func (i *Item) Filter() Expression { return i.filter }

// Scope returns the declaration's scope variables.
func (i *Item) Scope() map[string]any { return i.scope }

// DebugInfo returns the declaration's source location.
func (i *Item) DebugInfo() objects.DebugInfo { return i.debugInfo }

// Zone returns the zone the declaration belongs to.
func (i *Item) Zone() string { return i.zone }

// Package returns the configuration package the declaration came from.
func (i *Item) Package() string { return i.pkg }

// CreationType records how the declaration came to be ("object" or "apply").
func (i *Item) CreationType() string { return i.creationType }

// ActivationContext returns the batch the item was registered under.
func (i *Item) ActivationContext() *ActivationContext { return i.actx }

// Object returns the committed config object, or nil before commit.
func (i *Item) Object() objects.ConfigObject {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.object
}

func (i *Item) setObject(obj objects.ConfigObject) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.object = obj
}

// CommittedName returns the full object name assigned during commit, or
// the declared name before commit.
func (i *Item) CommittedName() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.committedName != "" {
		return i.committedName
	}
	return i.name
}

func (i *Item) setCommittedName(name string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.committedName = name
}

// IsIgnored reports whether a commit failure dropped the item.
func (i *Item) IsIgnored() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ignored
}

func (i *Item) markIgnored() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ignored = true
}

// ItemBuilder assembles an Item. Type names are resolved against the given
// type registry at Compile time.
type ItemBuilder struct {
	types *objects.TypeRegistry

	typeName        string
	name            string
	abstract        bool
	defaultTemplate bool
	ignoreOnError   bool
	expression      Expression
	filter          Expression
	scope           map[string]any
	debugInfo       objects.DebugInfo
	zone            string
	pkg             string
	creationType    string
}

// NewItemBuilder creates a builder resolving types against types.
func NewItemBuilder(types *objects.TypeRegistry) *ItemBuilder {
	return &ItemBuilder{types: types, creationType: "object"}
}

// SetType sets the object type by name.
func (b *ItemBuilder) SetType(typeName string) *ItemBuilder {
	b.typeName = typeName
	return b
}

// SetName sets the declared (short) object name.
func (b *ItemBuilder) SetName(name string) *ItemBuilder {
	b.name = name
	return b
}

// SetAbstract marks the item as a template.
func (b *ItemBuilder) SetAbstract(abstract bool) *ItemBuilder {
	b.abstract = abstract
	return b
}

// SetDefaultTemplate marks the item as a default template.
func (b *ItemBuilder) SetDefaultTemplate(defaultTemplate bool) *ItemBuilder {
	b.defaultTemplate = defaultTemplate
	if defaultTemplate {
		b.abstract = true
	}
	return b
}

// SetIgnoreOnError makes commit failures drop the item instead of failing
// the batch.
func (b *ItemBuilder) SetIgnoreOnError(ignore bool) *ItemBuilder {
	b.ignoreOnError = ignore
	return b
}

// SetExpression sets the compiled declaration body.
func (b *ItemBuilder) SetExpression(expr Expression) *ItemBuilder {
	b.expression = expr
	return b
}

// SetFilter sets the apply-rule filter.
func (b *ItemBuilder) SetFilter(filter Expression) *ItemBuilder {
	b.filter = filter
	return b
}

// SetScope sets the declaration's scope variables.
func (b *ItemBuilder) SetScope(scope map[string]any) *ItemBuilder {
	b.scope = scope
	return b
}

// SetDebugInfo sets the declaration's source location.
func (b *ItemBuilder) SetDebugInfo(di objects.DebugInfo) *ItemBuilder {
	b.debugInfo = di
	return b
}

// SetZone sets the zone the declaration belongs to.
func (b *ItemBuilder) SetZone(zone string) *ItemBuilder {
	b.zone = zone
	return b
}

// SetPackage sets the configuration package the declaration came from.
func (b *ItemBuilder) SetPackage(pkg string) *ItemBuilder {
	b.pkg = pkg
	return b
}

// SetCreationType records how the declaration came to be.
func (b *ItemBuilder) SetCreationType(creationType string) *ItemBuilder {
	b.creationType = creationType
	return b
}

// Compile validates the builder state and produces the Item.
func (b *ItemBuilder) Compile() (*Item, error) {
	t := b.types.Lookup(b.typeName)
	if t == nil {
		return nil, NewError(ErrorKindTypeNotFound, "unknown object type", nil).
			WithObject(b.typeName, b.name).
			WithDebugInfo(b.debugInfo)
	}

	if !b.abstract && b.name == "" && t.Composer() == nil {
		return nil, NewError(ErrorKindEmptyName, "object name must not be empty", nil).
			WithObject(b.typeName, "").
			WithDebugInfo(b.debugInfo)
	}

	if t.Composer() == nil && strings.Contains(b.name, "!") {
		return nil, NewError(ErrorKindNameComposition, "object name must not contain '!'", nil).
			WithObject(b.typeName, b.name).
			WithDebugInfo(b.debugInfo)
	}

	return &Item{
		itemType:        t,
		name:            b.name,
		abstract:        b.abstract,
		defaultTemplate: b.defaultTemplate,
		ignoreOnError:   b.ignoreOnError,
		expression:      b.expression,
		filter:          b.filter,
		scope:           b.scope,
		debugInfo:       b.debugInfo,
		zone:            b.zone,
		pkg:             b.pkg,
		creationType:    b.creationType,
	}, nil
}
