// SPDX-License-Identifier: Apache-2.0

package datamerge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/sam-fredrickson/datamerge/value"
	"github.com/sam-fredrickson/datamerge/vpath"
)

// Rule is a minimal set of checks applied to the merged value at one path.
//
// A missing or null value fails when Required is set and otherwise passes
// without further checks.
type Rule struct {
	Required bool
	// Type is a value kind name: "null", "boolean", "number", "string",
	// "array" or "object". "integer" accepts whole numbers.
	Type string
	// Min and Max bound numbers, string lengths in runes, array lengths and
	// object key counts.
	Min *float64
	Max *float64
	// Pattern is a regular expression that strings must match.
	Pattern string
	// Enum lists the allowed values.
	Enum []value.Value
	// Custom is called after every other check passes.
	Custom ValidatorFunc
	// Expr is a boolean expression over value and path, for example
	// "value > 0 && value < 65536".
	Expr string
}

// Schema maps paths to rules.
type Schema map[string]Rule

// SchemaError is returned when a rule cannot be compiled.
type SchemaError struct {
	// Path is the path of the offending rule.
	Path string
	// Field names the rule field at fault, such as "pattern".
	Field string
	// Err is the underlying compile error.
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("rule %s at %s: %v", e.Field, vpath.Display(e.Path), e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrInvalidSchema
}

var errValidation = errors.New("validation failed")

// Float returns a pointer to f, for [Rule.Min] and [Rule.Max].
func Float(f float64) *float64 {
	return &f
}

type ruleEnv struct {
	Value any    `expr:"value"`
	Path  string `expr:"path"`
}

// Compile turns every rule of s into a validator.
func (s Schema) Compile() (map[string]ValidatorFunc, error) {
	out := make(map[string]ValidatorFunc, len(s))
	for _, p := range sortedKeys(s) {
		fn, err := compileRule(p, s[p])
		if err != nil {
			return nil, err
		}
		out[p] = fn
	}
	return out, nil
}

func compileRule(path string, rule Rule) (ValidatorFunc, error) {
	switch rule.Type {
	case "", "null", "boolean", "number", "integer", "string", "array", "object":
	default:
		return nil, &SchemaError{Path: path, Field: "type", Err: fmt.Errorf("unknown type %q", rule.Type)}
	}
	if rule.Min != nil && rule.Max != nil && *rule.Min > *rule.Max {
		return nil, &SchemaError{Path: path, Field: "min", Err: fmt.Errorf("min %v exceeds max %v", *rule.Min, *rule.Max)}
	}
	var re *regexp.Regexp
	if rule.Pattern != "" {
		var err error
		if re, err = regexp.Compile(rule.Pattern); err != nil {
			return nil, &SchemaError{Path: path, Field: "pattern", Err: err}
		}
	}
	var prg *vm.Program
	if rule.Expr != "" {
		var err error
		if prg, err = expr.Compile(rule.Expr, expr.Env(ruleEnv{}), expr.AsBool()); err != nil {
			return nil, &SchemaError{Path: path, Field: "expr", Err: err}
		}
	}

	return func(ctx context.Context, v value.Value, p string) (bool, error) {
		if v.IsNull() {
			if rule.Required {
				return false, fmt.Errorf("%w: required value is missing", errValidation)
			}
			return true, nil
		}
		if rule.Type != "" && !hasType(v, rule.Type) {
			return false, fmt.Errorf("%w: expected %s, got %s", errValidation, rule.Type, v.Kind())
		}
		if size, ok := measure(v); ok {
			if rule.Min != nil && size < *rule.Min {
				return false, fmt.Errorf("%w: %v is less than minimum %v", errValidation, size, *rule.Min)
			}
			if rule.Max != nil && size > *rule.Max {
				return false, fmt.Errorf("%w: %v is greater than maximum %v", errValidation, size, *rule.Max)
			}
		}
		if s, ok := v.AsString(); ok && re != nil && !re.MatchString(s) {
			return false, fmt.Errorf("%w: %q does not match %q", errValidation, s, rule.Pattern)
		}
		if len(rule.Enum) > 0 && !value.Contains(rule.Enum, v) {
			return false, fmt.Errorf("%w: %v is not one of %v", errValidation, v, rule.Enum)
		}
		if rule.Custom != nil {
			if ok, err := rule.Custom(ctx, v, p); err != nil || !ok {
				return ok, err
			}
		}
		if prg != nil {
			out, err := expr.Run(prg, ruleEnv{Value: v.Interface(), Path: p})
			if err != nil {
				return false, err
			}
			if ok, _ := out.(bool); !ok {
				return false, fmt.Errorf("%w: %s", errValidation, rule.Expr)
			}
		}
		return true, nil
	}, nil
}

func hasType(v value.Value, typ string) bool {
	if typ == "integer" {
		n, ok := v.AsNumber()
		return ok && n == math.Trunc(n) && !math.IsInf(n, 0)
	}
	return v.Kind().String() == typ
}

// measure returns the quantity Min and Max apply to.
func measure(v value.Value) (float64, bool) {
	switch v.Kind() {
	case value.NumberKind:
		n, _ := v.AsNumber()
		return n, true
	case value.StringKind:
		s, _ := v.AsString()
		return float64(utf8.RuneCountInString(s)), true
	case value.ArrayKind, value.ObjectKind:
		return float64(v.Len()), true
	default:
		return 0, false
	}
}

// MergeWithValidation compiles schema into validators and merges with them.
// Schema validators run after any validator already registered at the same path.
func (e *Engine) MergeWithValidation(ctx context.Context, sources []value.Value, schema Schema, overrides ...Option) (Result, error) {
	validators, err := schema.Compile()
	if err != nil {
		return Result{}, err
	}
	withSchema := func(o *Options) {
		for p, fn := range validators {
			if prev, ok := o.Validators[p]; ok {
				fn = chainValidators(prev, fn)
			}
			o.RegisterValidator(p, fn)
		}
	}
	overrides = append(overrides[:len(overrides):len(overrides)], withSchema)
	return e.Merge(ctx, sources, overrides...)
}

func chainValidators(fns ...ValidatorFunc) ValidatorFunc {
	return func(ctx context.Context, v value.Value, path string) (bool, error) {
		for _, fn := range fns {
			if ok, err := fn(ctx, v, path); err != nil || !ok {
				return ok, err
			}
		}
		return true, nil
	}
}

// MergeWithValidation merges sources with [DefaultOptions] and the validators
// compiled from schema. See [Engine.MergeWithValidation].
func MergeWithValidation(ctx context.Context, sources []value.Value, schema Schema, overrides ...Option) (Result, error) {
	return (&Engine{opts: DefaultOptions()}).MergeWithValidation(ctx, sources, schema, overrides...)
}
