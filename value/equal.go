// SPDX-License-Identifier: Apache-2.0

package value

import (
	"cmp"
	"slices"
	"strings"

	"github.com/goccy/go-json"
)

// IdentityFields are the object members consulted, in order, by [IdentityKey].
var IdentityFields = []string{"id", "_id", "key"}

// Equal reports whether a and b are structurally equal.
//
// Arrays are equal when they have the same length and pairwise equal elements.
// Objects are equal when they have the same key set and equal members; key
// order is ignored.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case NullKind:
		return true
	case BoolKind:
		return a.b == b.b
	case NumberKind:
		return a.n == b.n
	case StringKind:
		return a.s == b.s
	case ArrayKind:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case ObjectKind:
		if a.Len() != b.Len() {
			return false
		}
		for _, k := range a.Keys() {
			bv, ok := b.Get(k)
			if !ok {
				return false
			}
			av, _ := a.Get(k)
			if !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// Contains reports whether some element of items is equal to v.
func Contains(items []Value, v Value) bool {
	return IndexOf(items, v) >= 0
}

// IndexOf returns the index of the first element of items equal to v, or -1.
func IndexOf(items []Value, v Value) int {
	return slices.IndexFunc(items, func(it Value) bool { return Equal(it, v) })
}

// Compare returns an integer comparing a and b in a total order.
// Values of different kinds order as null < boolean < number < string < array < object.
// Numbers compare numerically, strings lexicographically, arrays element by
// element, and objects by their canonical encoding.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		return cmp.Compare(a.kind, b.kind)
	}
	switch a.kind {
	case BoolKind:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		default:
			return 1
		}
	case NumberKind:
		return cmp.Compare(a.n, b.n)
	case StringKind:
		return strings.Compare(a.s, b.s)
	case ArrayKind:
		for i := 0; i < min(len(a.arr), len(b.arr)); i++ {
			if c := Compare(a.arr[i], b.arr[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(a.arr), len(b.arr))
	case ObjectKind:
		return strings.Compare(Canonical(a), Canonical(b))
	}
	return 0
}

// Canonical returns a deterministic JSON encoding of v in which object keys are
// sorted. Values that are [Equal] have identical canonical encodings.
func Canonical(v Value) string {
	var b strings.Builder
	writeCanonical(&b, v)
	return b.String()
}

func writeCanonical(b *strings.Builder, v Value) {
	switch v.kind {
	case NullKind:
		b.WriteString("null")
	case BoolKind, NumberKind:
		b.WriteString(v.Text())
	case StringKind:
		b.WriteString(quote(v.s))
	case ArrayKind:
		b.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, item)
		}
		b.WriteByte(']')
	case ObjectKind:
		keys := v.Keys()
		slices.Sort(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(quote(k))
			b.WriteByte(':')
			val, _ := v.Get(k)
			writeCanonical(b, val)
		}
		b.WriteByte('}')
	}
}

func quote(s string) string {
	out, err := json.Marshal(s)
	if err != nil {
		return `"` + s + `"`
	}
	return string(out)
}

// IdentityField returns the first of [IdentityFields] present on the object v,
// along with its value. It returns false when v is not an object or carries none.
func IdentityField(v Value) (string, Value, bool) {
	if v.kind != ObjectKind {
		return "", Value{}, false
	}
	for _, name := range IdentityFields {
		if id, ok := v.Get(name); ok {
			return name, id, true
		}
	}
	return "", Value{}, false
}

// IdentityKey returns the key used to decide whether two array elements are the
// same element: the identity field of an object (see [IdentityField]), or else
// the canonical encoding of the whole element.
func IdentityKey(v Value) string {
	if name, id, ok := IdentityField(v); ok {
		return name + "=" + Canonical(id)
	}
	return Canonical(v)
}
