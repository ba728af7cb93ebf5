package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.starlark.net/starlark"

	"github.com/openmon/openmon/pkg/compiler"
	"github.com/openmon/openmon/pkg/objects"
)

// ModAttrsFunc returns an activation callback replaying operator-modified
// attributes from the Starlark file at path. The script calls
// set_attr(type, name, field, value) against live instances; assignments to
// objects that no longer exist evaluate to False and are skipped. A missing
// file is not an error.
func (se *StarlarkEvaluator) ModAttrsFunc(path string, types *objects.TypeRegistry) compiler.ModAttrsFunc {
	return func(ctx context.Context) error {
		content, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading modified attributes %s: %w", path, err)
		}

		predeclared, err := basePredeclared(nil)
		if err != nil {
			return err
		}
		predeclared["set_attr"] = starlark.NewBuiltin("set_attr", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var typeName, objectName, field string
			var value starlark.Value
			if err := starlark.UnpackArgs(b.Name(), args, kwargs,
				"type", &typeName, "name", &objectName, "field", &field, "value", &value); err != nil {
				return nil, err
			}

			t := types.Lookup(typeName)
			if t == nil {
				return nil, fmt.Errorf("set_attr: unknown object type %q", typeName)
			}
			obj := t.Instance(objectName)
			if obj == nil {
				return starlark.False, nil
			}

			goVal, err := fromStarlarkValue(value)
			if err != nil {
				return nil, fmt.Errorf("set_attr %s %q: %w", typeName, objectName, err)
			}
			if err := obj.SetField(field, goVal); err != nil {
				return nil, fmt.Errorf("set_attr %s %q: %w", typeName, objectName, err)
			}
			return starlark.True, nil
		})

		_, err = se.run(ctx, filepath.Base(path), string(content), predeclared)
		return err
	}
}
