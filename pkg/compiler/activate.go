package compiler

import (
	"context"
	"sync"
	"time"

	"github.com/openmon/openmon/pkg/workqueue"
)

// activationMu serializes activation across the process so that two
// batches never interleave their activate phases.
var activationMu sync.Mutex

// ActivateItems brings the objects of a committed batch live: the
// pre-activate phase runs to completion across the batch before any object
// is activated. Activation is serialized process-wide so two batches never
// interleave.
func (c *Compiler) ActivateItems(ctx context.Context, wq *workqueue.Queue, newItems []*Item, runtimeCreated, silent, withModAttrs bool) error {
	activationMu.Lock()
	defer activationMu.Unlock()

	ctx, span := c.tracer.Start(ctx, "compiler.ActivateItems")
	defer span.End()
	start := time.Now()

	log := c.logger.NewComponentLogger("ConfigItem")
	if !silent {
		log.Info("Triggering PreActivate for newly created objects.")
	}

	for _, item := range newItems {
		obj := item.Object()
		if obj == nil {
			continue
		}
		item := item
		wq.Enqueue(func() error {
			if err := obj.PreActivate(ctx); err != nil {
				return NewError(ErrorKindBatchAborted, "pre-activate failed", err).
					WithObject(item.Type().Name(), obj.Name()).
					WithDebugInfo(item.DebugInfo())
			}
			return nil
		})
	}
	wq.Join()
	if wq.HasErrors() {
		if !silent {
			wq.ReportErrors(c.logger.Zerolog(), "config")
		}
		return NewError(ErrorKindBatchAborted, "pre-activate phase failed, aborting activation", nil)
	}

	if withModAttrs && c.modAttrs != nil {
		if err := c.modAttrs(ctx); err != nil {
			c.logger.NewComponentLogger("config").
				WithError(err).
				Error("Failed to restore modified attributes, activation continues.")
		}
	}

	if !silent {
		log.Info("Triggering Activate for newly created objects.")
	}

	var activated int
	for _, item := range newItems {
		obj := item.Object()
		if obj == nil {
			continue
		}
		activated++
		item := item
		wq.Enqueue(func() error {
			if err := obj.Activate(ctx, runtimeCreated); err != nil {
				return NewError(ErrorKindBatchAborted, "activate failed", err).
					WithObject(item.Type().Name(), obj.Name()).
					WithDebugInfo(item.DebugInfo())
			}
			return nil
		})
	}
	wq.Join()
	if wq.HasErrors() {
		if !silent {
			wq.ReportErrors(c.logger.Zerolog(), "config")
		}
		return NewError(ErrorKindBatchAborted, "activate phase failed", nil)
	}

	if c.metrics != nil {
		c.metrics.AddActiveObjects(float64(activated))
		c.metrics.ObservePhaseDuration("activate", time.Since(start).Seconds())
	}
	if !silent {
		log.Infof("Activated all objects (%s).", formatCount(activated, "object", "objects"))
	}
	return nil
}
