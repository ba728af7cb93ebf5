package config

import (
	"context"
	"testing"

	"github.com/openmon/openmon/pkg/compiler"
)

func TestScriptExpression(t *testing.T) {
	types := newManifestTypes(t)
	obj := types.Lookup("Host").Instantiate().(*manifestHost)
	obj.SetName("web01")

	evaluator := NewStarlarkEvaluator(0)
	expr := evaluator.ScriptExpression(`
this.address = prefix + ".17"
this.check_command = "ping4"
`, "hosts.yaml")

	frame := &compiler.Frame{
		Self:   obj,
		Locals: map[string]any{"prefix": "192.0.2"},
	}
	hints := &compiler.DebugHints{}
	if err := expr.Evaluate(context.Background(), frame, hints); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if obj.Address != "192.0.2.17" {
		t.Errorf("Address = %q", obj.Address)
	}
	if obj.CheckCommand != "ping4" {
		t.Errorf("CheckCommand = %q", obj.CheckCommand)
	}
	props, _ := hints.ToMap()["properties"].(map[string]any)
	if _, ok := props["address"]; !ok {
		t.Errorf("no breadcrumb for address: %v", hints.ToMap())
	}
}

func TestScriptExpressionReadsFields(t *testing.T) {
	types := newManifestTypes(t)
	obj := types.Lookup("Host").Instantiate().(*manifestHost)
	obj.SetName("web01")
	if err := obj.SetField("check_interval", int64(60)); err != nil {
		t.Fatalf("SetField: %v", err)
	}

	evaluator := NewStarlarkEvaluator(0)
	expr := evaluator.ScriptExpression(`
this.check_command = "check_" + this.name
this.check_interval = this.check_interval * 2
`, "hosts.yaml")

	frame := &compiler.Frame{Self: obj}
	if err := expr.Evaluate(context.Background(), frame, &compiler.DebugHints{}); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if obj.CheckCommand != "check_web01" {
		t.Errorf("CheckCommand = %q", obj.CheckCommand)
	}
	if obj.CheckInterval != 120 {
		t.Errorf("CheckInterval = %d", obj.CheckInterval)
	}
}

func TestScriptExpressionUnknownField(t *testing.T) {
	types := newManifestTypes(t)
	obj := types.Lookup("Host").Instantiate().(*manifestHost)
	obj.SetName("web01")

	evaluator := NewStarlarkEvaluator(0)
	expr := evaluator.ScriptExpression(`this.no_such_field = 1`, "hosts.yaml")

	frame := &compiler.Frame{Self: obj}
	if err := expr.Evaluate(context.Background(), frame, &compiler.DebugHints{}); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestPropertiesExpression(t *testing.T) {
	types := newManifestTypes(t)
	obj := types.Lookup("Host").Instantiate().(*manifestHost)
	obj.SetName("web01")

	expr := PropertiesExpression(map[string]any{
		"address":        "192.0.2.1",
		"check_interval": int64(45),
	})

	hints := &compiler.DebugHints{}
	if err := expr.Evaluate(context.Background(), &compiler.Frame{Self: obj}, hints); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if obj.Address != "192.0.2.1" {
		t.Errorf("Address = %q", obj.Address)
	}
	if obj.CheckInterval != 45 {
		t.Errorf("CheckInterval = %d", obj.CheckInterval)
	}
	props, _ := hints.ToMap()["properties"].(map[string]any)
	if len(props) != 2 {
		t.Errorf("breadcrumbs = %v", props)
	}
}

func TestPropertiesExpressionBadField(t *testing.T) {
	types := newManifestTypes(t)
	obj := types.Lookup("Host").Instantiate().(*manifestHost)

	expr := PropertiesExpression(map[string]any{"bogus": true})
	err := expr.Evaluate(context.Background(), &compiler.Frame{Self: obj}, &compiler.DebugHints{})
	if err == nil {
		t.Error("expected error for unknown property")
	}
}
