package compiler

import (
	"context"
	"errors"
	"testing"
)

func TestReloadInPlaceRebuild(t *testing.T) {
	env := newTestEnv(t)

	tplRan := false
	tpl, err := NewItemBuilder(env.types).
		SetType("Host").
		SetName("default-host").
		SetDefaultTemplate(true).
		SetExpression(ExpressionFunc(func(context.Context, *Frame, *DebugHints) error {
			tplRan = true
			return nil
		})).
		Compile()
	if err != nil {
		t.Fatalf("compiling default template: %v", err)
	}

	hostItem := env.item(t, "Host", "web01", setFieldExpr(map[string]any{"address": "192.0.2.1"}))
	svcItem := env.item(t, "Service", "ping", setFieldExpr(map[string]any{"host": "web01"}))
	env.commitAndActivate(t, tpl, hostItem, svcItem)

	oldHost := env.types.Lookup("Host").Instance("web01").(*testHost)
	oldHost.Uptime = 42

	callbackRan := false
	err = env.compiler.ReloadObject(context.Background(), oldHost, false, func(ctx context.Context) error {
		callbackRan = true
		return nil
	})
	if err != nil {
		t.Fatalf("ReloadObject: %v", err)
	}
	if !tplRan {
		t.Error("expected the default template imported into the re-declared host")
	}
	if !callbackRan {
		t.Error("expected the callback invoked during the rebuild")
	}

	newObj := env.types.Lookup("Host").Instance("web01")
	if newObj == nil {
		t.Fatal("expected a re-declared host instance")
	}
	if newObj == oldHost {
		t.Fatal("expected the reload to replace the host instance")
	}
	newHost := newObj.(*testHost)
	if newHost.Address != "192.0.2.1" {
		t.Errorf("expected the original config migrated, got address %q", newHost.Address)
	}
	if newHost.Uptime != 42 {
		t.Errorf("expected runtime state migrated, got uptime %d", newHost.Uptime)
	}
	if !newHost.IsActive() {
		t.Error("expected the re-declared host active")
	}
	if oldHost.IsActive() {
		t.Error("expected the replaced host deactivated")
	}

	svc := env.types.Lookup("Service").Instance("web01!ping")
	if svc == nil {
		t.Fatal("expected the cascaded service resurrected")
	}
	if !svc.IsActive() {
		t.Error("expected the resurrected service active")
	}
}

func TestReloadRebuildProducesNothing(t *testing.T) {
	env := newTestEnv(t)

	hostItem := env.item(t, "Host", "web01", setFieldExpr(map[string]any{"address": "192.0.2.1"}))
	svcItem := env.item(t, "Service", "ping", setFieldExpr(map[string]any{"host": "web01"}))
	env.commitAndActivate(t, hostItem, svcItem)

	host := env.types.Lookup("Host").Instance("web01")
	err := env.compiler.ReloadObject(context.Background(), host, true, func(ctx context.Context) error {
		return nil
	})
	if KindOf(err) != ErrorKindReloadFailed {
		t.Fatalf("expected reload_failed, got %v", err)
	}

	restored := env.types.Lookup("Host").Instance("web01")
	if restored != host {
		t.Error("expected the original host restored")
	}
	if restored == nil || !restored.IsActive() {
		t.Error("expected the restored host active")
	}
	svc := env.types.Lookup("Service").Instance("web01!ping")
	if svc == nil {
		t.Fatal("expected the service restored")
	}
	if !svc.IsActive() {
		t.Error("expected the restored service active")
	}
}

func TestReloadCascadeRebuild(t *testing.T) {
	env := newTestEnv(t)

	hostItem := env.item(t, "Host", "web01", setFieldExpr(map[string]any{"address": "192.0.2.1"}))
	svcItem := env.item(t, "Service", "ping", setFieldExpr(map[string]any{"host": "web01"}))
	env.commitAndActivate(t, hostItem, svcItem)

	oldHost := env.types.Lookup("Host").Instance("web01").(*testHost)
	oldHost.Uptime = 42

	err := env.compiler.ReloadObject(context.Background(), oldHost, true, func(ctx context.Context) error {
		item, err := NewItemBuilder(env.types).
			SetType("Host").
			SetName("web01").
			SetExpression(setFieldExpr(map[string]any{"address": "192.0.2.10"})).
			Compile()
		if err != nil {
			return err
		}
		return env.registry.Register(ctx, item)
	})
	if err != nil {
		t.Fatalf("ReloadObject: %v", err)
	}

	newObj := env.types.Lookup("Host").Instance("web01")
	if newObj == nil {
		t.Fatal("expected a rebuilt host instance")
	}
	if newObj == oldHost {
		t.Fatal("expected the reload to replace the host instance")
	}
	newHost := newObj.(*testHost)
	if newHost.Address != "192.0.2.10" {
		t.Errorf("expected the rebuilt address, got %q", newHost.Address)
	}
	if newHost.Uptime != 42 {
		t.Errorf("expected runtime state migrated into the rebuilt host, got uptime %d", newHost.Uptime)
	}
	if !newHost.IsActive() {
		t.Error("expected the rebuilt host active")
	}
	if oldHost.IsActive() {
		t.Error("expected the replaced host deactivated")
	}

	// The service was torn down by the cascade and resurrected afterwards.
	svc := env.types.Lookup("Service").Instance("web01!ping")
	if svc == nil {
		t.Fatal("expected the cascaded service resurrected")
	}
	if !svc.IsActive() {
		t.Error("expected the resurrected service active")
	}
}

func TestReloadRebuildFailureRestores(t *testing.T) {
	env := newTestEnv(t)

	hostItem := env.item(t, "Host", "web01", setFieldExpr(map[string]any{"address": "192.0.2.1"}))
	svcItem := env.item(t, "Service", "ping", setFieldExpr(map[string]any{"host": "web01"}))
	env.commitAndActivate(t, hostItem, svcItem)

	host := env.types.Lookup("Host").Instance("web01")
	wantErr := errors.New("rebuild exploded")
	err := env.compiler.ReloadObject(context.Background(), host, true, func(ctx context.Context) error {
		return wantErr
	})
	if KindOf(err) != ErrorKindReloadFailed {
		t.Fatalf("expected reload_failed, got %v", err)
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("expected the rebuild error in the chain, got %v", err)
	}

	restored := env.types.Lookup("Host").Instance("web01")
	if restored != host {
		t.Error("expected the original host restored")
	}
	if restored == nil || !restored.IsActive() {
		t.Error("expected the restored host active")
	}
	svc := env.types.Lookup("Service").Instance("web01!ping")
	if svc == nil {
		t.Fatal("expected the service restored")
	}
	if !svc.IsActive() {
		t.Error("expected the restored service active")
	}
}

func TestReloadPureDelete(t *testing.T) {
	env := newTestEnv(t)

	hostItem := env.item(t, "Host", "web01", setFieldExpr(map[string]any{"address": "192.0.2.1"}))
	svcItem := env.item(t, "Service", "ping", setFieldExpr(map[string]any{"host": "web01"}))
	env.commitAndActivate(t, hostItem, svcItem)

	svc := env.types.Lookup("Service").Instance("web01!ping")
	if err := env.compiler.ReloadObject(context.Background(), svc, true, nil); err != nil {
		t.Fatalf("ReloadObject: %v", err)
	}

	if env.types.Lookup("Service").Instance("web01!ping") != nil {
		t.Error("expected the service deleted")
	}
	if env.registry.GetByTypeAndName(env.types.Lookup("Service"), "web01!ping") != nil {
		t.Error("expected the service item unregistered")
	}
	host := env.types.Lookup("Host").Instance("web01")
	if host == nil || !host.IsActive() {
		t.Error("expected the host unaffected by the service delete")
	}
}
