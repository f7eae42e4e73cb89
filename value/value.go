// SPDX-License-Identifier: Apache-2.0

// Package value defines the closed set of document values handled by datamerge.
//
// A [Value] is a recursive tagged union: null, boolean, number, string, array or
// object. Objects keep their keys in insertion order so that documents round-trip
// through the codecs without reordering, but key order is never significant for
// [Equal].
//
// Values are immutable. Every constructor copies its arguments and every accessor
// that returns a slice returns a copy, so a Value can be shared freely between
// goroutines and can never contain a reference cycle.
//
// The zero Value is null.
package value

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies which member of the union a [Value] holds.
type Kind uint8

const (
	// NullKind is the kind of the null value (and of the zero Value).
	NullKind Kind = iota
	// BoolKind is the kind of true and false.
	BoolKind
	// NumberKind is the kind of all numbers. Numbers are stored as float64.
	NumberKind
	// StringKind is the kind of strings.
	StringKind
	// ArrayKind is the kind of ordered lists of values.
	ArrayKind
	// ObjectKind is the kind of string-keyed maps with ordered keys.
	ObjectKind
)

func (k Kind) String() string {
	switch k {
	case NullKind:
		return "null"
	case BoolKind:
		return "boolean"
	case NumberKind:
		return "number"
	case StringKind:
		return "string"
	case ArrayKind:
		return "array"
	case ObjectKind:
		return "object"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a single document value. See the package documentation.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  *object
}

type object struct {
	keys []string
	vals map[string]Value
}

// Field is one key/value member of an object, used to build objects in order.
type Field struct {
	Key   string
	Value Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: BoolKind, b: b} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{kind: NumberKind, n: n} }

// Int returns a numeric value holding i.
func Int(i int64) Value { return Number(float64(i)) }

// String returns a string value.
func String(s string) Value { return Value{kind: StringKind, s: s} }

// Array returns an array holding a copy of items.
func Array(items ...Value) Value {
	arr := make([]Value, len(items))
	copy(arr, items)
	return Value{kind: ArrayKind, arr: arr}
}

// Object returns an object with the given fields in order.
// When a key repeats, the later value wins but the key keeps its first position.
func Object(fields ...Field) Value {
	o := &object{
		keys: make([]string, 0, len(fields)),
		vals: make(map[string]Value, len(fields)),
	}
	for _, f := range fields {
		if _, exists := o.vals[f.Key]; !exists {
			o.keys = append(o.keys, f.Key)
		}
		o.vals[f.Key] = f.Value
	}
	return Value{kind: ObjectKind, obj: o}
}

// EmptyArray returns an array with no elements.
func EmptyArray() Value { return Array() }

// EmptyObject returns an object with no keys.
func EmptyObject() Value { return Object() }

// Kind reports which member of the union v holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == NullKind }

// IsEmpty reports whether v is an empty array, an empty object or a blank string.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case ArrayKind:
		return len(v.arr) == 0
	case ObjectKind:
		return v.obj == nil || len(v.obj.keys) == 0
	case StringKind:
		return strings.TrimSpace(v.s) == ""
	default:
		return false
	}
}

// AsBool returns the boolean held by v and whether v is a boolean.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == BoolKind }

// AsNumber returns the number held by v and whether v is a number.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == NumberKind }

// AsString returns the string held by v and whether v is a string.
func (v Value) AsString() (string, bool) { return v.s, v.kind == StringKind }

// Len returns the number of elements of an array, keys of an object,
// or bytes of a string. It returns 0 for other kinds.
func (v Value) Len() int {
	switch v.kind {
	case ArrayKind:
		return len(v.arr)
	case ObjectKind:
		if v.obj == nil {
			return 0
		}
		return len(v.obj.keys)
	case StringKind:
		return len(v.s)
	default:
		return 0
	}
}

// Items returns a copy of the elements of an array, or nil for other kinds.
func (v Value) Items() []Value {
	if v.kind != ArrayKind {
		return nil
	}
	out := make([]Value, len(v.arr))
	copy(out, v.arr)
	return out
}

// Index returns the i-th element of an array and whether it exists.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != ArrayKind || i < 0 || i >= len(v.arr) {
		return Value{}, false
	}
	return v.arr[i], true
}

// Keys returns the keys of an object in order, or nil for other kinds.
func (v Value) Keys() []string {
	if v.kind != ObjectKind || v.obj == nil {
		return nil
	}
	out := make([]string, len(v.obj.keys))
	copy(out, v.obj.keys)
	return out
}

// Get returns the member key of an object and whether it exists.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != ObjectKind || v.obj == nil {
		return Value{}, false
	}
	val, ok := v.obj.vals[key]
	return val, ok
}

// Has reports whether v is an object with the member key.
func (v Value) Has(key string) bool {
	_, ok := v.Get(key)
	return ok
}

// Fields returns the members of an object in order, or nil for other kinds.
func (v Value) Fields() []Field {
	if v.kind != ObjectKind || v.obj == nil {
		return nil
	}
	out := make([]Field, len(v.obj.keys))
	for i, k := range v.obj.keys {
		out[i] = Field{Key: k, Value: v.obj.vals[k]}
	}
	return out
}

// With returns a copy of the object v with key set to val.
// An existing key keeps its position; a new key is appended.
// If v is not an object, the result is a single-member object.
func (v Value) With(key string, val Value) Value {
	fields := v.Fields()
	return Object(append(fields, Field{Key: key, Value: val})...)
}

// Append returns a copy of the array v with items appended.
// If v is not an array, the result holds only items.
func (v Value) Append(items ...Value) Value {
	arr := make([]Value, 0, len(v.arr)+len(items))
	if v.kind == ArrayKind {
		arr = append(arr, v.arr...)
	}
	return Value{kind: ArrayKind, arr: append(arr, items...)}
}

// Text renders v for string concatenation: strings are used as-is, null is
// empty, numbers and booleans use their literal form, and containers use their
// canonical encoding.
func (v Value) Text() string {
	switch v.kind {
	case NullKind:
		return ""
	case BoolKind:
		return strconv.FormatBool(v.b)
	case NumberKind:
		return formatNumber(v.n)
	case StringKind:
		return v.s
	default:
		return Canonical(v)
	}
}

// String returns the compact JSON encoding of v with keys in insertion order.
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return "<invalid: " + err.Error() + ">"
	}
	return string(b)
}

// Equal reports whether v and o are structurally equal. See [Equal].
func (v Value) Equal(o Value) bool { return Equal(v, o) }

// integral reports whether n has no fractional part and fits an int64 exactly.
func integral(n float64) bool {
	return n == math.Trunc(n) && math.Abs(n) < 1<<53
}

func formatNumber(n float64) string {
	if integral(n) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}
