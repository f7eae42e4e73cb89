// SPDX-License-Identifier: Apache-2.0

package value

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"time"

	"github.com/goccy/go-yaml"
)

var (
	// ErrCyclicValue indicates native input that refers back to one of its own ancestors.
	ErrCyclicValue = errors.New("cyclic value")
	// ErrUnsupportedType indicates native input that has no Value representation.
	ErrUnsupportedType = errors.New("unsupported type")
)

// ConversionError is returned by [From] when part of the input cannot be converted.
type ConversionError struct {
	// Path is where in the input the problem occurred.
	Path string
	// Err is ErrCyclicValue or ErrUnsupportedType.
	Err error
	// Type is the Go type of the offending input.
	Type reflect.Type
}

func (e *ConversionError) Error() string {
	path := e.Path
	if path == "" {
		path = "(root)"
	}
	return fmt.Sprintf("cannot convert %v at %s: %v", e.Type, path, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// MustFrom is like [From] but panics on error. It is intended for literals in tests and examples.
func MustFrom(x any) Value {
	v, err := From(x)
	if err != nil {
		panic(err)
	}
	return v
}

// From converts a native Go value, as produced by the YAML, JSON and TOML
// decoders, into a Value.
//
// Supported inputs are nil, bool, every integer and float type, string,
// [time.Time] (rendered as RFC 3339), json.Number-like types, slices, arrays,
// maps with string-convertible keys, [yaml.MapSlice] (order preserved) and Value.
// Keys of ordinary Go maps are sorted, since Go maps are unordered.
//
// Input that contains itself returns an error wrapping [ErrCyclicValue].
func From(x any) (Value, error) {
	c := converter{active: map[uintptr]bool{}}
	return c.convert(x, "")
}

type converter struct {
	active map[uintptr]bool
}

type floater interface {
	Float64() (float64, error)
}

func (c *converter) convert(x any, path string) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint64:
		return Number(float64(t)), nil
	case float64:
		return Number(t), nil
	case time.Time:
		return String(t.Format(time.RFC3339Nano)), nil
	case floater:
		f, err := t.Float64()
		if err != nil {
			return Value{}, &ConversionError{Path: path, Err: err, Type: reflect.TypeOf(x)}
		}
		return Number(f), nil
	case yaml.MapSlice:
		fields := make([]Field, 0, len(t))
		for _, item := range t {
			key := fmt.Sprint(item.Key)
			child, err := c.convert(item.Value, joinPath(path, key))
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, Field{Key: key, Value: child})
		}
		return Object(fields...), nil
	}
	return c.convertReflect(reflect.ValueOf(x), path)
}

func (c *converter) convertReflect(rv reflect.Value, path string) (Value, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Number(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Number(rv.Float()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		if rv.Kind() == reflect.Pointer {
			leave, err := c.enter(rv, path)
			if err != nil {
				return Value{}, err
			}
			defer leave()
		}
		return c.convert(rv.Elem().Interface(), path)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice {
			if rv.IsNil() {
				return Null(), nil
			}
			if rv.Len() > 0 {
				leave, err := c.enter(rv, path)
				if err != nil {
					return Value{}, err
				}
				defer leave()
			}
		}
		items := make([]Value, rv.Len())
		for i := range items {
			item, err := c.convert(rv.Index(i).Interface(), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return Value{}, err
			}
			items[i] = item
		}
		return Value{kind: ArrayKind, arr: items}, nil
	case reflect.Map:
		if rv.IsNil() {
			return Null(), nil
		}
		leave, err := c.enter(rv, path)
		if err != nil {
			return Value{}, err
		}
		defer leave()
		byKey := make(map[string]reflect.Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			byKey[fmt.Sprint(iter.Key().Interface())] = iter.Value()
		}
		fields := make([]Field, 0, len(byKey))
		for _, key := range slices.Sorted(maps.Keys(byKey)) {
			child, err := c.convert(byKey[key].Interface(), joinPath(path, key))
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, Field{Key: key, Value: child})
		}
		return Object(fields...), nil
	}
	return Value{}, &ConversionError{Path: path, Err: ErrUnsupportedType, Type: rv.Type()}
}

// enter marks a reference-typed input as being converted. Shared references
// that are not ancestors of each other are allowed.
func (c *converter) enter(rv reflect.Value, path string) (func(), error) {
	ptr := rv.Pointer()
	if c.active[ptr] {
		return nil, &ConversionError{Path: path, Err: ErrCyclicValue, Type: rv.Type()}
	}
	c.active[ptr] = true
	return func() { delete(c.active, ptr) }, nil
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

// Interface converts v to plain Go values: nil, bool, int64 (for integral
// numbers that fit exactly), float64, string, []any and map[string]any.
// Object key order is lost; use the codecs to keep it.
func (v Value) Interface() any {
	switch v.kind {
	case BoolKind:
		return v.b
	case NumberKind:
		if integral(v.n) {
			return int64(v.n)
		}
		return v.n
	case StringKind:
		return v.s
	case ArrayKind:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	case ObjectKind:
		out := make(map[string]any, v.Len())
		for _, f := range v.Fields() {
			out[f.Key] = f.Value.Interface()
		}
		return out
	default:
		return nil
	}
}

// ordered converts v like Interface but represents objects as [yaml.MapSlice]
// so that encoders which understand it keep key order.
func (v Value) ordered() any {
	switch v.kind {
	case ArrayKind:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.ordered()
		}
		return out
	case ObjectKind:
		out := make(yaml.MapSlice, 0, v.Len())
		for _, f := range v.Fields() {
			out = append(out, yaml.MapItem{Key: f.Key, Value: f.Value.ordered()})
		}
		return out
	default:
		return v.Interface()
	}
}
