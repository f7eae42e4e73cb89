// SPDX-License-Identifier: Apache-2.0

package value_test

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/google/go-cmp/cmp"

	"github.com/sam-fredrickson/datamerge/value"
)

func obj(kv ...any) value.Value {
	fields := make([]value.Field, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		fields = append(fields, value.Field{Key: kv[i].(string), Value: value.MustFrom(kv[i+1])})
	}
	return value.Object(fields...)
}

func TestZeroValueIsNull(t *testing.T) {
	var v value.Value
	if !v.IsNull() || v.Kind() != value.NullKind {
		t.Fatalf("zero Value should be null, got %s", v.Kind())
	}
	if v.String() != "null" {
		t.Fatalf("unexpected String: %s", v)
	}
}

func TestObjectOrderAndDuplicates(t *testing.T) {
	v := value.Object(
		value.Field{Key: "b", Value: value.Int(1)},
		value.Field{Key: "a", Value: value.Int(2)},
		value.Field{Key: "b", Value: value.Int(3)},
	)
	if diff := cmp.Diff([]string{"b", "a"}, v.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	if got := v.String(); got != `{"b":3,"a":2}` {
		t.Fatalf("unexpected encoding %s", got)
	}

	w := v.With("c", value.Bool(true)).With("a", value.Null())
	if got := w.String(); got != `{"b":3,"a":null,"c":true}` {
		t.Fatalf("unexpected encoding %s", got)
	}
	if v.Len() != 2 {
		t.Fatal("With must not modify the receiver")
	}
}

func TestImmutability(t *testing.T) {
	items := []value.Value{value.Int(1), value.Int(2)}
	arr := value.Array(items...)
	items[0] = value.String("changed")

	got := arr.Items()
	got[1] = value.String("changed")

	if arr.String() != `[1,2]` {
		t.Fatalf("array was modified: %s", arr)
	}
	appended := arr.Append(value.Int(3))
	if arr.Len() != 2 || appended.String() != `[1,2,3]` {
		t.Fatalf("unexpected append result %s / %s", arr, appended)
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b value.Value
		want bool
	}{
		{"key order ignored", obj("a", 1, "b", 2), obj("b", 2, "a", 1), true},
		{"nested", obj("a", []any{1, obj("x", true)}), obj("a", []any{1, obj("x", true)}), true},
		{"array order matters", value.MustFrom([]any{1, 2}), value.MustFrom([]any{2, 1}), false},
		{"kinds differ", value.Int(1), value.String("1"), false},
		{"missing key", obj("a", 1), obj("a", 1, "b", nil), false},
		{"nulls", value.Null(), value.MustFrom(nil), true},
		{"numbers", value.Int(2), value.Number(2.0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := value.Equal(tt.a, tt.b); got != tt.want {
				t.Fatalf("Equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if tt.want && value.Canonical(tt.a) != value.Canonical(tt.b) {
				t.Fatalf("equal values must share a canonical form: %s vs %s",
					value.Canonical(tt.a), value.Canonical(tt.b))
			}
		})
	}
}

func TestCompare(t *testing.T) {
	ordered := []value.Value{
		value.Null(),
		value.Bool(false),
		value.Bool(true),
		value.Number(-1.5),
		value.Int(2),
		value.String("a"),
		value.String("b"),
		value.MustFrom([]any{1}),
		value.MustFrom([]any{1, 0}),
		obj("a", 1),
	}
	for i := range ordered {
		for j := range ordered {
			got := value.Compare(ordered[i], ordered[j])
			switch {
			case i < j && got >= 0, i > j && got <= 0, i == j && got != 0:
				t.Fatalf("Compare(%v, %v) = %d", ordered[i], ordered[j], got)
			}
		}
	}
}

func TestIdentityKey(t *testing.T) {
	tests := []struct {
		name string
		a, b value.Value
		same bool
	}{
		{"same id", obj("id", 1, "v", "x"), obj("v", "y", "id", 1), true},
		{"different id", obj("id", 1), obj("id", 2), false},
		{"id beats _id", obj("id", 1, "_id", 5), obj("id", 1, "_id", 6), true},
		{"_id vs id", obj("_id", 1), obj("id", 1), false},
		{"key field", obj("key", "k", "n", 1), obj("key", "k"), true},
		{"no identity", obj("n", 1), obj("n", 1), true},
		{"no identity differs", obj("n", 1), obj("n", 2), false},
		{"scalars", value.Int(1), value.Int(1), true},
		{"string vs number", value.String("1"), value.Int(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := value.IdentityKey(tt.a) == value.IdentityKey(tt.b); got != tt.same {
				t.Fatalf("IdentityKey(%v) == IdentityKey(%v) is %v, want %v",
					tt.a, tt.b, got, tt.same)
			}
		})
	}
}

func TestIsEmpty(t *testing.T) {
	for _, v := range []value.Value{value.EmptyArray(), value.EmptyObject(), value.String(" \t")} {
		if !v.IsEmpty() {
			t.Errorf("%v should be empty", v)
		}
	}
	for _, v := range []value.Value{value.Null(), value.Int(0), value.Bool(false), value.String("x")} {
		if v.IsEmpty() {
			t.Errorf("%v should not be empty", v)
		}
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		v    value.Value
		want string
	}{
		{value.Null(), ""},
		{value.String("s"), "s"},
		{value.Int(12), "12"},
		{value.Number(0.5), "0.5"},
		{value.Bool(true), "true"},
		{obj("b", 1, "a", "x"), `{"a":"x","b":1}`},
	}
	for _, tt := range tests {
		if got := tt.v.Text(); got != tt.want {
			t.Errorf("Text(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestFrom(t *testing.T) {
	type named string
	when := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	in := map[string]any{
		"z":     []int{1, 2},
		"a":     named("n"),
		"u":     uint8(7),
		"f":     float32(0.5),
		"when":  when,
		"num":   json.Number("3.25"),
		"nil":   (*int)(nil),
		"inner": map[string]string{"k": "v"},
	}
	got, err := value.From(in)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"a":"n","f":0.5,"inner":{"k":"v"},"nil":null,"num":3.25,"u":7,"when":"2024-01-02T03:04:05Z","z":[1,2]}`
	if got.String() != want {
		t.Fatalf("unexpected conversion:\n%s\nwant:\n%s", got, want)
	}
}

func TestFromKeepsMapSliceOrder(t *testing.T) {
	got := value.MustFrom(yaml.MapSlice{{Key: "z", Value: 1}, {Key: "a", Value: 2}})
	if diff := cmp.Diff([]string{"z", "a"}, got.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestFromRejectsCycles(t *testing.T) {
	m := map[string]any{"a": 1}
	m["self"] = m
	_, err := value.From(m)
	if !errors.Is(err, value.ErrCyclicValue) {
		t.Fatalf("expected ErrCyclicValue, got %v", err)
	}
	var convErr *value.ConversionError
	if !errors.As(err, &convErr) || convErr.Path != "self" {
		t.Fatalf("expected conversion error at self, got %v", err)
	}

	s := []any{nil}
	s[0] = s
	if _, err := value.From(s); !errors.Is(err, value.ErrCyclicValue) {
		t.Fatalf("expected ErrCyclicValue for slice, got %v", err)
	}
}

func TestFromAllowsSharedReferences(t *testing.T) {
	shared := map[string]any{"x": 1}
	got, err := value.From(map[string]any{"a": shared, "b": shared})
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != `{"a":{"x":1},"b":{"x":1}}` {
		t.Fatalf("unexpected conversion %s", got)
	}
}

func TestFromUnsupported(t *testing.T) {
	_, err := value.From(map[string]any{"ch": make(chan int)})
	if !errors.Is(err, value.ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestInterface(t *testing.T) {
	v := obj("i", 3, "f", 1.5, "l", []any{"x", nil})
	want := map[string]any{"i": int64(3), "f": 1.5, "l": []any{"x", nil}}
	if diff := cmp.Diff(want, v.Interface()); diff != "" {
		t.Fatalf("Interface mismatch (-want +got):\n%s", diff)
	}
	if _, err := value.Number(math.NaN()).MarshalJSON(); err == nil {
		t.Fatal("NaN must not encode as JSON")
	}
}

func TestStringEscaping(t *testing.T) {
	v := value.String("a\"b\n<c>")
	var decoded string
	if err := json.Unmarshal([]byte(v.String()), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded != "a\"b\n<c>" {
		t.Fatalf("round trip mismatch: %q", decoded)
	}
	if !strings.HasPrefix(value.Canonical(v), `"a\"b`) {
		t.Fatalf("unexpected canonical form %s", value.Canonical(v))
	}
}
