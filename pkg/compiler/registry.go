package compiler

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/openmon/openmon/pkg/objects"
)

// ItemRegistry indexes registered items by type and name, tracks unnamed
// items awaiting commit, and records the source paths of items dropped by
// ignore_on_error.
type ItemRegistry struct {
	mu               sync.Mutex
	items            map[*objects.Type]map[string]*Item
	defaultTemplates map[*objects.Type]map[string]*Item
	unnamedItems     []*Item
	committedItems   []*Item
	ignoredPaths     []string
}

var defaultRegistry = NewItemRegistry()

// NewItemRegistry creates an empty item registry.
func NewItemRegistry() *ItemRegistry {
	return &ItemRegistry{
		items:            make(map[*objects.Type]map[string]*Item),
		defaultTemplates: make(map[*objects.Type]map[string]*Item),
	}
}

// DefaultRegistry returns the process-wide item registry.
func DefaultRegistry() *ItemRegistry {
	return defaultRegistry
}

// Register inserts an item, binding it to the activation context carried by
// ctx. Registering a second non-abstract item with the same type and name
// is a duplicate declaration error. Items of composite-named types are held
// as unnamed until commit composes their full name.
func (r *ItemRegistry) Register(ctx context.Context, item *Item) error {
	item.actx = ActivationContextFrom(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if item.name == "" || (item.itemType.Composer() != nil && !item.abstract) {
		r.unnamedItems = append(r.unnamedItems, item)
		return nil
	}

	t := item.itemType
	if !item.abstract {
		if existing := r.items[t][item.name]; existing != nil && !existing.abstract {
			msg := fmt.Sprintf("a configuration item of type %s and name %q already exists (declared at %s)",
				t.Name(), item.name, existing.debugInfo)
			return NewError(ErrorKindDuplicateDeclaration, msg, nil).
				WithObject(t.Name(), item.name).
				WithDebugInfo(item.debugInfo)
		}
		if t.Instance(item.name) != nil {
			msg := fmt.Sprintf("an object of type %s and name %q already exists", t.Name(), item.name)
			return NewError(ErrorKindDuplicateDeclaration, msg, nil).
				WithObject(t.Name(), item.name).
				WithDebugInfo(item.debugInfo)
		}
	}

	if r.items[t] == nil {
		r.items[t] = make(map[string]*Item)
	}
	r.items[t][item.name] = item

	if item.defaultTemplate {
		if r.defaultTemplates[t] == nil {
			r.defaultTemplates[t] = make(map[string]*Item)
		}
		r.defaultTemplates[t][item.name] = item
	}

	return nil
}

// Unregister removes an item from the registry.
func (r *ItemRegistry) Unregister(item *Item) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := item.itemType
	for _, key := range []string{item.CommittedName(), item.name} {
		if key == "" {
			continue
		}
		if r.items[t][key] == item {
			delete(r.items[t], key)
		}
		if r.defaultTemplates[t][key] == item {
			delete(r.defaultTemplates[t], key)
		}
	}

	for i, candidate := range r.unnamedItems {
		if candidate == item {
			r.unnamedItems = append(r.unnamedItems[:i], r.unnamedItems[i+1:]...)
			return
		}
	}
}

// GetByTypeAndName returns the named item of the given type, or nil.
func (r *ItemRegistry) GetByTypeAndName(t *objects.Type, name string) *Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[t][name]
}

// Items returns every named item of the given type.
func (r *ItemRegistry) Items(t *objects.Type) []*Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Item, 0, len(r.items[t]))
	for _, item := range r.items[t] {
		out = append(out, item)
	}
	return out
}

// DefaultTemplates returns the default templates of the given type.
func (r *ItemRegistry) DefaultTemplates(t *objects.Type) []*Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Item, 0, len(r.defaultTemplates[t]))
	for _, item := range r.defaultTemplates[t] {
		out = append(out, item)
	}
	return out
}

// adoptNamed indexes a committed item under its full object name so that
// later lookups and reloads can find it. Two items composing to the same
// full name is a duplicate declaration error.
func (r *ItemRegistry) adoptNamed(item *Item, fullName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := item.itemType
	if existing := r.items[t][fullName]; existing != nil && existing != item && !existing.abstract {
		msg := fmt.Sprintf("a configuration item of type %s and name %q already exists (declared at %s)",
			t.Name(), fullName, existing.debugInfo)
		return NewError(ErrorKindDuplicateDeclaration, msg, nil).
			WithObject(t.Name(), fullName).
			WithDebugInfo(item.debugInfo)
	}

	if r.items[t] == nil {
		r.items[t] = make(map[string]*Item)
	}
	r.items[t][fullName] = item
	item.setCommittedName(fullName)

	for i, candidate := range r.unnamedItems {
		if candidate == item {
			r.unnamedItems = append(r.unnamedItems[:i], r.unnamedItems[i+1:]...)
			break
		}
	}
	return nil
}

// pendingFor returns the uncommitted non-abstract items belonging to the
// given activation context, grouped by type. Unnamed items are claimed in
// the process.
func (r *ItemRegistry) pendingFor(actx *ActivationContext) map[*objects.Type][]*Item {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make(map[*objects.Type][]*Item)
	add := func(item *Item) {
		if item.abstract || item.actx != actx {
			return
		}
		item.mu.Lock()
		uncommitted := item.object == nil && !item.ignored
		item.mu.Unlock()
		if uncommitted {
			pending[item.itemType] = append(pending[item.itemType], item)
		}
	}

	for _, byName := range r.items {
		for _, item := range byName {
			add(item)
		}
	}

	var kept []*Item
	for _, item := range r.unnamedItems {
		if item.actx == actx && !item.abstract {
			add(item)
		} else {
			kept = append(kept, item)
		}
	}
	r.unnamedItems = kept

	if len(pending) == 0 {
		return nil
	}
	return pending
}

// hasPending reports whether uncommitted items remain for the given
// activation context.
func (r *ItemRegistry) hasPending(actx *ActivationContext) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	check := func(item *Item) bool {
		if item.abstract || item.actx != actx {
			return false
		}
		item.mu.Lock()
		defer item.mu.Unlock()
		return item.object == nil && !item.ignored
	}

	for _, item := range r.unnamedItems {
		if check(item) {
			return true
		}
	}
	for _, byName := range r.items {
		for _, item := range byName {
			if check(item) {
				return true
			}
		}
	}
	return false
}

// recordCommitted appends an item to the pending all-loaded set.
func (r *ItemRegistry) recordCommitted(item *Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committedItems = append(r.committedItems, item)
}

// takeCommitted removes and returns the pending all-loaded set.
func (r *ItemRegistry) takeCommitted() []*Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := r.committedItems
	r.committedItems = nil
	return items
}

// recordIgnoredPath remembers the source file of an item dropped by
// ignore_on_error.
func (r *ItemRegistry) recordIgnoredPath(path string) {
	if path == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ignoredPaths = append(r.ignoredPaths, path)
}

// IgnoredPaths returns the recorded source paths of dropped items.
func (r *ItemRegistry) IgnoredPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ignoredPaths...)
}

// RemoveIgnoredItems deletes the source files of dropped items whose path
// contains the given fragment and clears the recorded list. Removal is
// best effort.
func (r *ItemRegistry) RemoveIgnoredItems(fragment string) {
	r.mu.Lock()
	paths := r.ignoredPaths
	r.ignoredPaths = nil
	r.mu.Unlock()

	for _, path := range paths {
		if strings.Contains(path, fragment) {
			_ = os.Remove(path)
		}
	}
}
