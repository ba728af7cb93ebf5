package compiler

import (
	"context"

	"github.com/openmon/openmon/pkg/objects"
)

// deletedObjectExtension marks an object that was torn down by a reload.
const deletedObjectExtension = "ConfigObjectDeleted"

type deletedEntry struct {
	obj   objects.ConfigObject
	item  *Item
	state map[string]any
}

// ReloadObject tears down obj together with every object depending on it,
// rebuilds a replacement under a fresh activation context, and migrates
// runtime state into the re-created instances.
//
// With destroyFirst the rebuild callback alone re-creates the object from
// scratch; a nil callback deletes without re-creating. Without destroyFirst
// the compiler re-declares the object itself: the type's default templates
// are imported, the deleted original's config fields are copied over, and
// the callback, if any, runs afterwards. When the rebuild fails or does not
// produce a replacement, every deleted object is restored and the error is
// returned as a reload failure.
func (c *Compiler) ReloadObject(ctx context.Context, obj objects.ConfigObject, destroyFirst bool, rebuild func(ctx context.Context) error) error {
	t := obj.ReflectType()
	name := obj.Name()
	log := c.logger.NewComponentLogger("ReloadObject")

	run := rebuild
	if !destroyFirst {
		run = c.redeclare(obj, rebuild)
	}

	var deleted []deletedEntry
	visited := make(map[objects.ConfigObject]bool)
	c.deleteObjectHelper(ctx, obj, visited, &deleted)

	log.WithField("dependents", len(deleted)-1).
		Infof("Reloading object '%s' of type '%s'.", name, t.Name())

	if run != nil {
		if err := c.RunWithActivationContext(ctx, run); err != nil {
			c.restoreObjects(ctx, deleted, true)
			return NewError(ErrorKindReloadFailed, "rebuild failed, deleted objects were restored", err).
				WithObject(t.Name(), name)
		}
		if t.Instance(name) == nil {
			c.restoreObjects(ctx, deleted, true)
			return NewError(ErrorKindReloadFailed, "rebuild did not produce a replacement object", nil).
				WithObject(t.Name(), name)
		}
	}

	c.restoreObjects(ctx, deleted, false)
	return nil
}

// redeclare builds the in-place rebuild step: a synthetic declaration
// whose body imports the type's default templates, copies the original's
// config fields and then invokes the callback. The snapshots are taken
// before the original is torn down.
func (c *Compiler) redeclare(obj objects.ConfigObject, callback func(ctx context.Context) error) func(ctx context.Context) error {
	t := obj.ReflectType()
	templates := c.registry.DefaultTemplates(t)
	props := objects.Serialize(obj, objects.FieldConfig)

	expr := ExpressionFunc(func(ctx context.Context, frame *Frame, hints *DebugHints) error {
		for _, tpl := range templates {
			if tplExpr := tpl.Expression(); tplExpr != nil {
				if err := tplExpr.Evaluate(ctx, frame, hints); err != nil {
					return err
				}
			}
		}
		if err := objects.Deserialize(frame.Self, props, objects.FieldConfig); err != nil {
			return err
		}
		if callback != nil {
			return callback(ctx)
		}
		return nil
	})

	return func(ctx context.Context) error {
		item, err := NewItemBuilder(c.types).
			SetType(t.Name()).
			SetName(obj.ShortName()).
			SetExpression(expr).
			SetZone(obj.ZoneName()).
			SetPackage(obj.Package()).
			SetCreationType(obj.CreationType()).
			SetDebugInfo(obj.DebugInfo()).
			Compile()
		if err != nil {
			return err
		}
		return c.registry.Register(ctx, item)
	}
}

// deleteObjectHelper records the delete closure of obj. Dependents are torn
// down before the objects they depend on; the visited set keeps diamond
// shaped dependencies from being processed twice.
func (c *Compiler) deleteObjectHelper(ctx context.Context, obj objects.ConfigObject, visited map[objects.ConfigObject]bool, deleted *[]deletedEntry) {
	if visited[obj] {
		return
	}
	visited[obj] = true

	t := obj.ReflectType()
	item := c.registry.GetByTypeAndName(t, obj.Name())
	*deleted = append(*deleted, deletedEntry{
		obj:   obj,
		item:  item,
		state: objects.Serialize(obj, objects.FieldState),
	})

	for _, parent := range c.depGraph.Parents(obj) {
		c.deleteObjectHelper(ctx, parent, visited, deleted)
	}

	obj.SetExtension(deletedObjectExtension, true)
	if err := obj.Deactivate(ctx, true); err != nil {
		c.logger.NewComponentLogger("ReloadObject").
			WithError(err).
			Errorf("Failed to deactivate object '%s' of type '%s'.", obj.Name(), t.Name())
	}
	obj.Unregister()
	if item != nil {
		c.registry.Unregister(item)
	}
}

// restoreObjects runs after a rebuild. Re-created instances inherit the
// runtime state of the objects they replace. Objects that were not
// re-created are resurrected when recoverAll is set, or when they were
// static declarations caught in a cascade.
func (c *Compiler) restoreObjects(ctx context.Context, deleted []deletedEntry, recoverAll bool) {
	log := c.logger.NewComponentLogger("ReloadObject")

	for i, entry := range deleted {
		t := entry.obj.ReflectType()
		name := entry.obj.Name()

		replacement := t.Instance(name)
		if replacement == entry.obj {
			continue
		}
		if replacement != nil {
			if err := objects.Deserialize(replacement, entry.state, objects.FieldState); err != nil {
				log.WithError(err).
					Errorf("Failed to migrate state into object '%s' of type '%s'.", name, t.Name())
			}
			continue
		}

		// Without recoverAll, only cascade victims that were static
		// declarations come back; the reload target stays deleted.
		if !recoverAll && (i == 0 || entry.obj.CreationType() != "object") {
			continue
		}

		entry.obj.ClearExtension(deletedObjectExtension)
		if err := entry.obj.Register(); err != nil {
			log.WithError(err).
				Errorf("Failed to restore object '%s' of type '%s'.", name, t.Name())
			continue
		}
		if entry.item != nil {
			if err := c.registry.adoptNamed(entry.item, name); err == nil {
				entry.item.setObject(entry.obj)
			}
		}
		if err := entry.obj.Activate(ctx, false); err != nil {
			log.WithError(err).
				Errorf("Failed to reactivate object '%s' of type '%s'.", name, t.Name())
		}
	}
}
