package compiler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/openmon/openmon/pkg/objects"
	"github.com/openmon/openmon/pkg/workqueue"
)

// maxChildExpansionDepth caps recursive commits triggered by child-object
// expansion during the all-loaded pass.
const maxChildExpansionDepth = 64

// CommitItems commits every item registered under actx: materialize,
// name, validate, run load callbacks, register, then drive the
// dependency-ordered all-loaded pass including child-object expansion.
// Successfully committed items are appended to newItems. On failure the
// batch's items and objects are unregistered and an error is returned.
func (c *Compiler) CommitItems(ctx context.Context, actx *ActivationContext, wq *workqueue.Queue, newItems *[]*Item, silent bool) error {
	ctx, span := c.tracer.Start(ctx, "compiler.CommitItems")
	defer span.End()

	start := time.Now()
	if c.metrics != nil {
		c.metrics.IncBatches()
	}

	log := c.logger.NewComponentLogger("ConfigItem")
	if !silent {
		log.WithField("batch", actx.ID()).Info("Committing configuration items.")
	}

	if err := c.commitNewItems(ctx, actx, wq, newItems, silent, 0); err != nil {
		return err
	}

	if !silent {
		counts := make(map[*objects.Type]int)
		for _, item := range *newItems {
			counts[item.Type()]++
		}
		for _, t := range c.typesInLoadOrder() {
			n := counts[t]
			if n == 0 {
				continue
			}
			unit := t.PluralName()
			if n == 1 {
				unit = t.Name()
			}
			log.Infof("Instantiated %d %s.", n, unit)
		}
	}

	if c.metrics != nil {
		c.metrics.ObservePhaseDuration("commit", time.Since(start).Seconds())
	}
	return nil
}

func (c *Compiler) commitNewItems(ctx context.Context, actx *ActivationContext, wq *workqueue.Queue, newItems *[]*Item, silent bool, depth int) error {
	if depth > maxChildExpansionDepth {
		c.rollback(*newItems)
		*newItems = nil
		return ErrChildExpansionDivergence
	}

	ctx = WithCompiler(WithActivationContext(ctx, actx), c)
	order := c.typesInLoadOrder()

	pending := c.registry.pendingFor(actx)
	if len(pending) == 0 {
		return nil
	}

	var batch []*Item
	for _, t := range order {
		items := pending[t]
		if len(items) == 0 {
			continue
		}
		for _, item := range items {
			item := item
			wq.Enqueue(func() error { return c.commitItem(ctx, item) })
		}
		wq.Join()

		batch = append(batch, c.registry.takeCommitted()...)
		if wq.HasErrors() {
			if !silent {
				wq.ReportErrors(c.logger.Zerolog(), "config")
			}
			c.rollback(append(append([]*Item(nil), *newItems...), batch...))
			*newItems = nil
			return NewError(ErrorKindBatchAborted, "commit failed, aborting batch", nil)
		}
	}
	*newItems = append(*newItems, batch...)

	byType := make(map[*objects.Type][]*Item)
	for _, item := range batch {
		byType[item.Type()] = append(byType[item.Type()], item)
	}

	for _, t := range order {
		items := byType[t]

		for _, item := range items {
			item := item
			wq.Enqueue(func() error { return c.allConfigLoaded(ctx, item) })
		}
		wq.Join()
		if wq.HasErrors() {
			cause := wq.Errors()[0]
			if !silent {
				wq.ReportErrors(c.logger.Zerolog(), "config")
			}
			c.rollback(*newItems)
			*newItems = nil
			return NewError(ErrorKindBatchAborted, "all-loaded pass failed, aborting batch", cause)
		}

		// Objects committed in this round whose types this type
		// load-depends on get a chance to declare child objects of this
		// type.
		childType := t
		for _, depName := range t.LoadDependencies() {
			depType := c.types.Lookup(depName)
			if depType == nil {
				continue
			}
			for _, depItem := range byType[depType] {
				parent := depItem.Object()
				if parent == nil {
					continue
				}
				wq.Enqueue(func() error {
					if err := parent.CreateChildObjects(ctx, childType); err != nil {
						return NewError(ErrorKindAllLoaded, "child object expansion failed", err).
							WithObject(parent.ReflectType().Name(), parent.Name()).
							WithDebugInfo(parent.DebugInfo())
					}
					return nil
				})
			}
		}
		wq.Join()
		if wq.HasErrors() {
			if !silent {
				wq.ReportErrors(c.logger.Zerolog(), "config")
			}
			c.rollback(*newItems)
			*newItems = nil
			return NewError(ErrorKindBatchAborted, "child object expansion failed, aborting batch", nil)
		}

		if c.registry.hasPending(actx) {
			if err := c.commitNewItems(ctx, actx, wq, newItems, silent, depth+1); err != nil {
				return err
			}
		}
	}

	return nil
}

// commitItem drives one item through materialization, evaluation, name
// composition, validation, admission, the config-loaded callback and
// instance registration.
func (c *Compiler) commitItem(ctx context.Context, item *Item) error {
	t := item.Type()

	obj := t.Instantiate()
	obj.SetDebugInfo(item.DebugInfo())
	obj.SetZoneName(item.Zone())
	obj.SetPackage(item.Package())
	obj.SetCreationType(item.CreationType())
	obj.SetShortName(item.Name())

	hints := &DebugHints{}
	if expr := item.Expression(); expr != nil {
		frame := &Frame{Self: obj, Locals: item.Scope()}
		if err := expr.Evaluate(ctx, frame, hints); err != nil {
			cerr := NewError(ErrorKindEvaluation, "failed to evaluate declaration body", err).
				WithObject(t.Name(), item.Name()).
				WithDebugInfo(item.DebugInfo()).
				WithHints(hints.ToMap())
			if item.IgnoreOnError() {
				c.dropItem(item, nil, cerr)
				return nil
			}
			return cerr
		}
	}

	name := item.Name()
	if composer := t.Composer(); composer != nil {
		props := objects.Serialize(obj, objects.FieldConfig)
		composed, err := composer.MakeName(item.Name(), props)
		if err != nil {
			return NewError(ErrorKindNameComposition, "failed to compose object name", err).
				WithObject(t.Name(), item.Name()).
				WithDebugInfo(item.DebugInfo())
		}
		name = composed
	}
	if name == "" {
		return NewError(ErrorKindEmptyName, "object name must not be empty", nil).
			WithObject(t.Name(), "").
			WithDebugInfo(item.DebugInfo())
	}
	obj.SetName(name)

	if err := objects.Validate(obj, c.types); err != nil {
		cerr := NewError(ErrorKindValidation, "config validation failed", err).
			WithObject(t.Name(), name).
			WithDebugInfo(item.DebugInfo()).
			WithHints(hints.ToMap())
		if item.IgnoreOnError() {
			c.dropItem(item, nil, cerr)
			return nil
		}
		return cerr
	}

	if c.admission != nil {
		props := objects.Serialize(obj, objects.FieldConfig)
		if err := c.admission.Check(ctx, t.Name(), name, props); err != nil {
			cerr := NewError(ErrorKindValidation, "admission policy rejected object", err).
				WithObject(t.Name(), name).
				WithDebugInfo(item.DebugInfo())
			if item.IgnoreOnError() {
				c.dropItem(item, nil, cerr)
				return nil
			}
			return cerr
		}
	}

	if err := obj.OnConfigLoaded(ctx); err != nil {
		cerr := NewError(ErrorKindLoadCallback, "config-loaded callback failed", err).
			WithObject(t.Name(), name).
			WithDebugInfo(item.DebugInfo())
		if item.IgnoreOnError() {
			c.dropItem(item, nil, cerr)
			return nil
		}
		return cerr
	}

	if err := obj.Register(); err != nil {
		return NewError(ErrorKindDuplicateDeclaration, "object registration failed", err).
			WithObject(t.Name(), name).
			WithDebugInfo(item.DebugInfo())
	}

	if err := c.registry.adoptNamed(item, name); err != nil {
		obj.Unregister()
		return err
	}

	item.setObject(obj)
	c.registry.recordCommitted(item)

	if c.sink != nil {
		rec := &ObjectRecord{
			Type:       t.Name(),
			Name:       name,
			Properties: objects.Serialize(obj, objects.FieldConfig),
			DebugHints: hints.ToMap(),
			DebugInfo:  item.DebugInfo(),
		}
		if err := c.sink.WriteObject(ctx, rec); err != nil {
			c.logger.NewComponentLogger("ConfigObject").
				WithError(err).
				Errorf("Failed to persist object '%s' of type '%s'.", name, t.Name())
		}
	}

	if c.metrics != nil {
		c.metrics.IncObjectsCommitted(t.Name())
	}
	return nil
}

// allConfigLoaded runs one object's OnAllConfigLoaded hook, honoring
// ignore_on_error.
func (c *Compiler) allConfigLoaded(ctx context.Context, item *Item) error {
	obj := item.Object()
	if obj == nil {
		return nil
	}

	if err := obj.OnAllConfigLoaded(ctx); err != nil {
		cerr := NewError(ErrorKindAllLoaded, "all-loaded callback failed", err).
			WithObject(item.Type().Name(), obj.Name()).
			WithDebugInfo(item.DebugInfo())
		if item.IgnoreOnError() {
			c.dropItem(item, obj, cerr)
			return nil
		}
		return cerr
	}
	return nil
}

// dropItem removes an item whose commit failed under ignore_on_error,
// recording its source path for later cleanup.
func (c *Compiler) dropItem(item *Item, obj objects.ConfigObject, cause error) {
	name := item.Name()
	if obj != nil {
		name = obj.Name()
		obj.Unregister()
	}

	c.logger.NewComponentLogger("ConfigItem").
		WithField("reason", cause.Error()).
		Debugf("Ignoring config object '%s' of type '%s' due to errors.", name, item.Type().Name())

	c.registry.recordIgnoredPath(item.DebugInfo().Path)
	item.markIgnored()
	item.setObject(nil)
	c.registry.Unregister(item)

	if c.metrics != nil {
		c.metrics.IncObjectsIgnored(item.Type().Name())
	}
}

// rollback unregisters the objects and items of a failed batch.
func (c *Compiler) rollback(items []*Item) {
	for _, item := range items {
		if obj := item.Object(); obj != nil {
			obj.Unregister()
		}
		item.setObject(nil)
		c.registry.Unregister(item)
	}
}

// typesInLoadOrder returns the registered types topologically sorted by
// their load dependencies, ties broken by name.
func (c *Compiler) typesInLoadOrder() []*objects.Type {
	all := c.types.All()

	indegree := make(map[*objects.Type]int, len(all))
	dependents := make(map[*objects.Type][]*objects.Type)
	for _, t := range all {
		indegree[t] += 0
		for _, depName := range t.LoadDependencies() {
			dep := c.types.Lookup(depName)
			if dep == nil {
				continue
			}
			indegree[t]++
			dependents[dep] = append(dependents[dep], t)
		}
	}

	var ready []*objects.Type
	for _, t := range all {
		if indegree[t] == 0 {
			ready = append(ready, t)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].Name() < ready[j].Name() })

	var order []*objects.Type
	for len(ready) > 0 {
		t := ready[0]
		ready = ready[1:]
		order = append(order, t)

		next := dependents[t]
		sort.Slice(next, func(i, j int) bool { return next[i].Name() < next[j].Name() })
		for _, d := range next {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	// A dependency cycle leaves types unsorted; append them so commit
	// still reaches every item.
	if len(order) < len(all) {
		seen := make(map[*objects.Type]bool, len(order))
		for _, t := range order {
			seen[t] = true
		}
		for _, t := range all {
			if !seen[t] {
				order = append(order, t)
			}
		}
	}
	return order
}

// formatCount is used by diagnostics that need "N <unit>" phrasing.
func formatCount(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
