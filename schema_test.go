// SPDX-License-Identifier: Apache-2.0

package datamerge_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sam-fredrickson/datamerge"
	"github.com/sam-fredrickson/datamerge/value"
)

func TestSchemaRules(t *testing.T) {
	tests := []struct {
		name    string
		rule    datamerge.Rule
		value   value.Value
		pass    bool
		message string
	}{
		{"required missing", datamerge.Rule{Required: true}, value.Null(), false, "required"},
		{"optional missing", datamerge.Rule{Type: "string", Min: datamerge.Float(3)}, value.Null(), true, ""},
		{"type ok", datamerge.Rule{Type: "object"}, js(`{}`), true, ""},
		{"type mismatch", datamerge.Rule{Type: "string"}, js(`1`), false, "expected string, got number"},
		{"integer", datamerge.Rule{Type: "integer"}, js(`4`), true, ""},
		{"not integer", datamerge.Rule{Type: "integer"}, js(`4.5`), false, "expected integer"},
		{"number min", datamerge.Rule{Min: datamerge.Float(10)}, js(`5`), false, "less than minimum"},
		{"number max", datamerge.Rule{Max: datamerge.Float(10)}, js(`50`), false, "greater than maximum"},
		{"string length in runes", datamerge.Rule{Max: datamerge.Float(3)}, value.String("héé"), true, ""},
		{"array length", datamerge.Rule{Min: datamerge.Float(2)}, js(`[1]`), false, "less than minimum"},
		{"pattern", datamerge.Rule{Pattern: `^v\d+$`}, value.String("v12"), true, ""},
		{"pattern mismatch", datamerge.Rule{Pattern: `^v\d+$`}, value.String("x"), false, "does not match"},
		{"enum", datamerge.Rule{Enum: docs(`"a"`, `{"b":1}`)}, js(`{"b":1}`), true, ""},
		{"enum mismatch", datamerge.Rule{Enum: docs(`"a"`)}, value.String("b"), false, "not one of"},
		{"expr", datamerge.Rule{Expr: `value > 0 && value < 65536`}, js(`8080`), true, ""},
		{"expr false", datamerge.Rule{Expr: `value > 0 && value < 65536`}, js(`70000`), false, "value > 0"},
		{"expr path", datamerge.Rule{Expr: `path == "p"`}, js(`1`), true, ""},
		{
			"custom",
			datamerge.Rule{Custom: func(_ context.Context, v value.Value, _ string) (bool, error) {
				return v.Len() == 2, nil
			}},
			js(`[1,2]`), true, "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validators, err := datamerge.Schema{"p": tt.rule}.Compile()
			if err != nil {
				t.Fatal(err)
			}
			ok, err := validators["p"](context.Background(), tt.value, "p")
			if ok != tt.pass {
				t.Fatalf("expected pass=%v, got %v (err %v)", tt.pass, ok, err)
			}
			if tt.message != "" && (err == nil || !strings.Contains(err.Error(), tt.message)) {
				t.Fatalf("expected error containing %q, got %v", tt.message, err)
			}
		})
	}
}

func TestSchemaCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		rule  datamerge.Rule
		field string
	}{
		{"type", datamerge.Rule{Type: "uuid"}, "type"},
		{"bounds", datamerge.Rule{Min: datamerge.Float(2), Max: datamerge.Float(1)}, "min"},
		{"pattern", datamerge.Rule{Pattern: "("}, "pattern"},
		{"expr", datamerge.Rule{Expr: "value >"}, "expr"},
		{"expr not bool", datamerge.Rule{Expr: `"text"`}, "expr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := datamerge.Schema{"x.y": tt.rule}.Compile()
			if !errors.Is(err, datamerge.ErrInvalidSchema) {
				t.Fatalf("expected ErrInvalidSchema, got %v", err)
			}
			var schemaErr *datamerge.SchemaError
			if !errors.As(err, &schemaErr) || schemaErr.Path != "x.y" || schemaErr.Field != tt.field {
				t.Fatalf("unexpected schema error %#v", err)
			}
		})
	}
}

func TestMergeWithValidation(t *testing.T) {
	schema := datamerge.Schema{
		"name":         {Required: true, Type: "string"},
		"port":         {Type: "integer", Min: datamerge.Float(1), Max: datamerge.Float(65535)},
		"tls.required": {Required: true},
	}

	res, err := datamerge.MergeWithValidation(context.Background(),
		docs(`{"name":"api","port":80}`, `{"port":70000}`), schema)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Fatal("expected success=false")
	}
	want := []string{
		"port: validation failed: 70000 is greater than maximum 65535",
		"tls.required: validation failed: required value is missing",
	}
	if strings.Join(res.Metadata.ValidationErrors, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected validation errors:\n%s", strings.Join(res.Metadata.ValidationErrors, "\n"))
	}
	if n, _ := mustGet(t, res.Value, "port").AsNumber(); n != 70000 {
		t.Fatalf("merged value should be kept, got %v", res.Value)
	}
}

func TestMergeWithValidationChainsValidators(t *testing.T) {
	calls := 0
	opts := datamerge.DefaultOptions()
	opts.RegisterValidator("name", func(context.Context, value.Value, string) (bool, error) {
		calls++
		return true, nil
	})
	e := mustEngine(t, opts)

	res, err := e.MergeWithValidation(context.Background(), docs(`{"name":1}`),
		datamerge.Schema{"name": {Type: "string"}})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 || res.Success || len(res.Metadata.ValidationErrors) != 1 {
		t.Fatalf("expected both validators to run once with one failure, got calls=%d %+v", calls, res.Metadata)
	}
}

func TestMergeWithValidationInvalidSchema(t *testing.T) {
	_, err := datamerge.MergeWithValidation(context.Background(), docs(`{}`),
		datamerge.Schema{"a": {Pattern: "["}})
	if !errors.Is(err, datamerge.ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema, got %v", err)
	}
}

func mustGet(t *testing.T, v value.Value, key string) value.Value {
	t.Helper()
	got, ok := v.Get(key)
	if !ok {
		t.Fatalf("missing key %q in %v", key, v)
	}
	return got
}
