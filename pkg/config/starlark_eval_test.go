package config

import (
	"context"
	"testing"
	"time"
)

func TestEvaluateGlobals(t *testing.T) {
	evaluator := NewStarlarkEvaluator(5 * time.Second)
	ctx := context.Background()

	result, err := evaluator.Evaluate(ctx, `
x = 42
name = "web01"
_secret = "hidden"
tags = ["linux", "prod"]
`, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if got := result.Output["x"]; got != int64(42) {
		t.Errorf("x = %v (%T)", got, got)
	}
	if got := result.Output["name"]; got != "web01" {
		t.Errorf("name = %v", got)
	}
	if _, ok := result.Output["_secret"]; ok {
		t.Error("underscore global leaked into output")
	}
	tags, ok := result.Output["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "linux" {
		t.Errorf("tags = %v", result.Output["tags"])
	}
	if result.ExecutionTime <= 0 {
		t.Error("ExecutionTime not recorded")
	}
}

func TestEvaluateInput(t *testing.T) {
	evaluator := NewStarlarkEvaluator(5 * time.Second)
	ctx := context.Background()

	result, err := evaluator.Evaluate(ctx, `greeting = "hello " + target`, map[string]any{
		"target": "web01",
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got := result.Output["greeting"]; got != "hello web01" {
		t.Errorf("greeting = %v", got)
	}
}

func TestEvaluateBuiltins(t *testing.T) {
	evaluator := NewStarlarkEvaluator(5 * time.Second)
	ctx := context.Background()

	tests := []struct {
		name   string
		script string
		check  func(*testing.T, *StarlarkResult)
	}{
		{
			name: "range",
			script: `
def total_of(limit):
    n = 0
    for i in range(1, limit):
        n += i
    return n

total = total_of(5)
`,
			check: func(t *testing.T, r *StarlarkResult) {
				if got := r.Output["total"]; got != int64(10) {
					t.Errorf("total = %v", got)
				}
			},
		},
		{
			name:   "enumerate",
			script: `pairs = enumerate(["a", "b"], 1)`,
			check: func(t *testing.T, r *StarlarkResult) {
				pairs, ok := r.Output["pairs"].([]any)
				if !ok || len(pairs) != 2 {
					t.Fatalf("pairs = %v", r.Output["pairs"])
				}
				first, ok := pairs[0].([]any)
				if !ok || first[0] != int64(1) || first[1] != "a" {
					t.Errorf("pairs[0] = %v", pairs[0])
				}
			},
		},
		{
			name:   "zip",
			script: `zipped = zip(["a", "b"], [1, 2])`,
			check: func(t *testing.T, r *StarlarkResult) {
				zipped, ok := r.Output["zipped"].([]any)
				if !ok || len(zipped) != 2 {
					t.Fatalf("zipped = %v", r.Output["zipped"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := evaluator.Evaluate(ctx, tt.script, nil)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			tt.check(t, result)
		})
	}
}

func TestEvaluateError(t *testing.T) {
	evaluator := NewStarlarkEvaluator(5 * time.Second)
	ctx := context.Background()

	result, err := evaluator.Evaluate(ctx, `x = undefined_name`, nil)
	if err == nil {
		t.Fatal("expected evaluation error")
	}
	if result == nil || result.Error == "" {
		t.Error("result.Error not populated")
	}
}

func TestEvaluateTimeout(t *testing.T) {
	evaluator := NewStarlarkEvaluator(50 * time.Millisecond)
	ctx := context.Background()

	_, err := evaluator.Evaluate(ctx, `
def spin():
    n = 0
    for i in range(1, 20000):
        for j in range(1, 20000):
            n += i * j
    return n

x = spin()
`, nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}
