package objects

import (
	"fmt"
	"reflect"
)

// Serialize extracts the fields matching the attribute mask into a
// name-to-value map. Zero-valued fields are included so that a
// round-trip reproduces the object exactly.
func Serialize(obj ConfigObject, mask FieldAttribute) map[string]any {
	t := obj.ReflectType()
	if t == nil {
		return nil
	}

	rv := reflect.ValueOf(obj).Elem()
	props := make(map[string]any)
	for _, f := range t.fields {
		if f.Attributes&mask == 0 {
			continue
		}
		props[f.Name] = rv.FieldByIndex(f.index).Interface()
	}
	return props
}

// Deserialize assigns the fields matching the attribute mask from a
// name-to-value map. Unknown property names are skipped; a value that
// cannot be coerced to the field's type is an error.
func Deserialize(obj ConfigObject, props map[string]any, mask FieldAttribute) error {
	t := obj.ReflectType()
	if t == nil {
		return fmt.Errorf("object is not attached to a type")
	}

	rv := reflect.ValueOf(obj).Elem()
	for _, f := range t.fields {
		if f.Attributes&mask == 0 {
			continue
		}
		value, ok := props[f.Name]
		if !ok {
			continue
		}

		fv := rv.FieldByIndex(f.index)
		coerced, err := coerceValue(value, fv.Type())
		if err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
		fv.Set(coerced)
	}
	return nil
}

// coerceValue converts a dynamically typed value to the target type.
// Numeric widening and JSON-style conversions (float64 to int, []any to
// typed slices, map[string]any to typed maps) are supported.
func coerceValue(value any, target reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(target), nil
	}

	rv := reflect.ValueOf(value)
	if rv.Type() == target {
		return rv, nil
	}
	if rv.Type().AssignableTo(target) {
		return rv, nil
	}

	switch target.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Convert(target), nil
		case reflect.Float32, reflect.Float64:
			f := rv.Float()
			if f != float64(int64(f)) {
				return reflect.Value{}, fmt.Errorf("cannot convert %v to %s without loss", value, target)
			}
			return reflect.ValueOf(int64(f)).Convert(target), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return rv.Convert(target), nil
		}
	case reflect.Float32, reflect.Float64:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return rv.Convert(target), nil
		}
	case reflect.String:
		if rv.Kind() == reflect.String {
			return rv.Convert(target), nil
		}
	case reflect.Bool:
		if rv.Kind() == reflect.Bool {
			return rv.Convert(target), nil
		}
	case reflect.Slice:
		if rv.Kind() == reflect.Slice {
			out := reflect.MakeSlice(target, rv.Len(), rv.Len())
			for i := 0; i < rv.Len(); i++ {
				elem, err := coerceValue(rv.Index(i).Interface(), target.Elem())
				if err != nil {
					return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
				}
				out.Index(i).Set(elem)
			}
			return out, nil
		}
	case reflect.Map:
		if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == target.Key().Kind() {
			out := reflect.MakeMapWithSize(target, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				val, err := coerceValue(iter.Value().Interface(), target.Elem())
				if err != nil {
					return reflect.Value{}, fmt.Errorf("key %v: %w", iter.Key(), err)
				}
				out.SetMapIndex(iter.Key().Convert(target.Key()), val)
			}
			return out, nil
		}
	}

	return reflect.Value{}, fmt.Errorf("cannot assign %T to %s", value, target)
}
