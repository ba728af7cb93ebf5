package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/openmon/openmon/pkg/workqueue"
)

func TestActivateItemsActivatesObjects(t *testing.T) {
	env := newTestEnv(t)

	item := env.item(t, "Host", "web01", setFieldExpr(map[string]any{"address": "192.0.2.1"}))
	newItems := env.commitAndActivate(t, item)
	if len(newItems) != 1 {
		t.Fatalf("expected 1 activated item, got %d", len(newItems))
	}

	host := env.types.Lookup("Host").Instance("web01")
	if host == nil {
		t.Fatal("expected the host instance")
	}
	if !host.IsActive() {
		t.Error("expected the host to be active after activation")
	}
}

func TestActivatePreActivateFailureAborts(t *testing.T) {
	env := newTestEnv(t)

	good := env.item(t, "Flaky", "ok01", setFieldExpr(map[string]any{"address": "192.0.2.1"}))
	bad := env.item(t, "Flaky", "bad01", setFieldExpr(map[string]any{
		"address":           "192.0.2.2",
		"fail_pre_activate": true,
	}))

	newItems, err := env.commit(t, good, bad)
	if err != nil {
		t.Fatalf("CommitItems: %v", err)
	}

	wq := workqueue.New("activate-test", 0, 2)
	defer wq.Close()

	err = env.compiler.ActivateItems(context.Background(), wq, newItems, false, true, false)
	if KindOf(err) != ErrorKindBatchAborted {
		t.Fatalf("expected batch_aborted, got %v", err)
	}
	for _, name := range []string{"ok01", "bad01"} {
		obj := env.types.Lookup("Flaky").Instance(name)
		if obj == nil {
			t.Fatalf("expected committed instance %q", name)
		}
		if obj.IsActive() {
			t.Errorf("expected %q inactive after aborted pre-activate", name)
		}
	}
}

func TestActivateFailureAborts(t *testing.T) {
	env := newTestEnv(t)

	bad := env.item(t, "Flaky", "bad02", setFieldExpr(map[string]any{
		"address":       "192.0.2.3",
		"fail_activate": true,
	}))

	newItems, err := env.commit(t, bad)
	if err != nil {
		t.Fatalf("CommitItems: %v", err)
	}

	wq := workqueue.New("activate-test", 0, 2)
	defer wq.Close()

	err = env.compiler.ActivateItems(context.Background(), wq, newItems, false, true, false)
	if KindOf(err) != ErrorKindBatchAborted {
		t.Fatalf("expected batch_aborted, got %v", err)
	}
	if env.types.Lookup("Flaky").Instance("bad02").IsActive() {
		t.Error("expected the object inactive after a failed activate")
	}
}

func TestActivateModAttrs(t *testing.T) {
	var called bool
	env := newTestEnv(t, func(o *Options) {
		o.ModAttrs = func(ctx context.Context) error {
			called = true
			return nil
		}
	})

	item := env.item(t, "Host", "web01", setFieldExpr(map[string]any{"address": "192.0.2.1"}))
	newItems, err := env.commit(t, item)
	if err != nil {
		t.Fatalf("CommitItems: %v", err)
	}

	wq := workqueue.New("activate-test", 0, 2)
	defer wq.Close()

	if err := env.compiler.ActivateItems(context.Background(), wq, newItems, false, true, true); err != nil {
		t.Fatalf("ActivateItems: %v", err)
	}
	if !called {
		t.Error("expected the mod-attrs callback to run")
	}
}

func TestActivateModAttrsFailureDoesNotAbort(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.ModAttrs = func(ctx context.Context) error {
			return errors.New("state file corrupt")
		}
	})

	item := env.item(t, "Host", "web01", setFieldExpr(map[string]any{"address": "192.0.2.1"}))
	newItems, err := env.commit(t, item)
	if err != nil {
		t.Fatalf("CommitItems: %v", err)
	}

	wq := workqueue.New("activate-test", 0, 2)
	defer wq.Close()

	if err := env.compiler.ActivateItems(context.Background(), wq, newItems, false, true, true); err != nil {
		t.Fatalf("expected activation to continue past a mod-attrs failure, got %v", err)
	}
	if !env.types.Lookup("Host").Instance("web01").IsActive() {
		t.Error("expected the host active despite the mod-attrs failure")
	}
}

func TestActivateModAttrsSkippedWithoutFlag(t *testing.T) {
	var called bool
	env := newTestEnv(t, func(o *Options) {
		o.ModAttrs = func(ctx context.Context) error {
			called = true
			return nil
		}
	})

	item := env.item(t, "Host", "web01", setFieldExpr(map[string]any{"address": "192.0.2.1"}))
	env.commitAndActivate(t, item)
	if called {
		t.Error("expected the mod-attrs callback to be skipped")
	}
}
