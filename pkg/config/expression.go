package config

import (
	"context"
	"fmt"
	"sort"

	"go.starlark.net/starlark"

	"github.com/openmon/openmon/pkg/compiler"
	"github.com/openmon/openmon/pkg/objects"
)

// ScriptExpression compiles a Starlark declaration body into an expression
// the commit pipeline can evaluate. The script sees the object under
// construction as `this`; the declaration's scope variables are predeclared
// by name. Field assignments through `this` leave breadcrumbs in the
// evaluation hints.
func (se *StarlarkEvaluator) ScriptExpression(script, source string) compiler.Expression {
	return compiler.ExpressionFunc(func(ctx context.Context, frame *compiler.Frame, hints *compiler.DebugHints) error {
		input := make(map[string]any, len(frame.Locals))
		for key, val := range frame.Locals {
			input[key] = val
		}
		predeclared, err := basePredeclared(input)
		if err != nil {
			return err
		}
		predeclared["this"] = &objectProxy{self: frame.Self, hints: hints}

		filename := source
		if filename == "" {
			filename = "declaration.star"
		}
		_, err = se.run(ctx, filename, script, predeclared)
		return err
	})
}

// PropertiesExpression builds an expression assigning the given fields in
// sorted order.
func PropertiesExpression(props map[string]any) compiler.Expression {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	return compiler.ExpressionFunc(func(ctx context.Context, frame *compiler.Frame, hints *compiler.DebugHints) error {
		for _, name := range names {
			if err := frame.Self.SetField(name, props[name]); err != nil {
				return err
			}
			hints.Child(name).AddMessage("set from declaration properties")
		}
		return nil
	})
}

// objectProxy exposes a config object under construction to Starlark.
type objectProxy struct {
	self  objects.ConfigObject
	hints *compiler.DebugHints
}

var (
	_ starlark.Value       = (*objectProxy)(nil)
	_ starlark.HasAttrs    = (*objectProxy)(nil)
	_ starlark.HasSetField = (*objectProxy)(nil)
)

func (p *objectProxy) String() string {
	return fmt.Sprintf("<%s %q>", p.self.ReflectType().Name(), p.self.Name())
}

func (p *objectProxy) Type() string { return "config_object" }

func (p *objectProxy) Freeze() {}

func (p *objectProxy) Truth() starlark.Bool { return starlark.True }

func (p *objectProxy) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: config_object")
}

// Attr reads a declared field by its serialized name. The object name is
// exposed as `name`.
func (p *objectProxy) Attr(name string) (starlark.Value, error) {
	if name == "name" {
		return starlark.String(p.self.Name()), nil
	}
	val, err := p.self.GetField(name)
	if err != nil {
		return nil, err
	}
	return toStarlarkValue(val)
}

func (p *objectProxy) AttrNames() []string {
	props := objects.Serialize(p.self, objects.FieldConfig|objects.FieldState)
	names := make([]string, 0, len(props)+1)
	names = append(names, "name")
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetField assigns a declared field, recording a breadcrumb.
func (p *objectProxy) SetField(name string, val starlark.Value) error {
	goVal, err := fromStarlarkValue(val)
	if err != nil {
		return fmt.Errorf("field %s: %w", name, err)
	}
	if err := p.self.SetField(name, goVal); err != nil {
		return err
	}
	p.hints.Child(name).AddMessage("set from declaration script")
	return nil
}
