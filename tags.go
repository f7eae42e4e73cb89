// SPDX-License-Identifier: Apache-2.0

package datamerge

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/sam-fredrickson/datamerge/vpath"
)

// ErrInvalidTag indicates a merge struct tag with an invalid directive or value.
var ErrInvalidTag = errors.New("invalid merge tag")

// TagKind identifies which merge struct tag directive had an error.
type TagKind int

const (
	// UnknownTag indicates an unknown or unsupported directive.
	UnknownTag TagKind = iota
	// ConflictTag indicates an error with a merge:"conflict=..." directive.
	ConflictTag
	// ArrayTag indicates an error with a merge:"array=..." directive.
	ArrayTag
	// AliasTag indicates an error with a merge:"alias=..." directive.
	AliasTag
	// FieldTag indicates an error with a merge:"field=..." directive.
	FieldTag
)

func (k TagKind) String() string {
	switch k {
	case UnknownTag:
		return "unknown"
	case ConflictTag:
		return "conflict"
	case ArrayTag:
		return "array"
	case AliasTag:
		return "alias"
	case FieldTag:
		return "field"
	default:
		return fmt.Sprintf("TagKind(%d)", k)
	}
}

// InvalidTagError is returned when a merge struct tag contains an invalid directive or value.
type InvalidTagError struct {
	// Kind indicates which directive had the error.
	Kind TagKind
	// FieldName is the struct field name where the error occurred.
	FieldName string
	// Value is the invalid value (e.g., the invalid policy name).
	Value string
	// Message provides details about what went wrong.
	Message string
}

func (e *InvalidTagError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("field %s: invalid %s tag: %s (value: %q)",
			e.FieldName, e.Kind.String(), e.Message, e.Value)
	}
	return fmt.Sprintf("field %s: invalid %s tag: %s",
		e.FieldName, e.Kind.String(), e.Message)
}

func (e *InvalidTagError) Is(target error) bool {
	return target == ErrInvalidTag
}

// OptionsFor returns a copy of base extended with the path policies and key
// mappings declared by the struct tags of T.
//
// Struct tag format:
//   - merge:"conflict=<policy>" - conflict resolution at this field's path
//   - merge:"array=<strategy>" - array strategy at this field's path
//   - merge:"alias=<key>" - rename <key> to this field's name in later documents
//   - merge:"field=<name>" - overrides field name detection
//
// Multiple directives can be combined: merge:"array=union,alias=hosts".
//
// Field names are detected from yaml, json and toml struct tags. Nested structs
// and pointers to structs extend the path; slice elements are not inspected,
// since their paths carry array indices.
//
// Example:
//
//	type Config struct {
//		Replicas int      `yaml:"replicas" merge:"conflict=max"`
//		Hosts    []string `yaml:"hosts" merge:"array=union,alias=servers"`
//	}
//
//	opts, _ := OptionsFor[Config](DefaultOptions())
//	engine, _ := New(opts)
func OptionsFor[T any](base Options) (Options, error) {
	opts := base.Clone()
	t := reflect.TypeOf((*T)(nil)).Elem()
	if err := collectTags(t, vpath.Root, &opts, map[reflect.Type]bool{}); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func collectTags(t reflect.Type, path string, opts *Options, active map[reflect.Type]bool) error {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || active[t] {
		return nil
	}
	active[t] = true
	defer delete(active, t)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		fieldName, err := getFieldName(field)
		if err != nil {
			return err
		}
		if fieldName == "" {
			continue
		}
		fieldPath := vpath.Join(path, fieldName)

		if tag := field.Tag.Get("merge"); tag != "" {
			if err := parseMergeTag(tag, field.Name, fieldName, fieldPath, opts); err != nil {
				return err
			}
		}

		if err := collectTags(field.Type, fieldPath, opts, active); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

// getFieldName extracts the serialized field name from struct tags.
// Priority: merge:field override > yaml > json > toml > struct field name.
// It returns an empty name for fields excluded with "-".
func getFieldName(field reflect.StructField) (string, error) {
	if tag := field.Tag.Get("merge"); tag != "" {
		fieldName, err := extractFieldDirective(tag)
		if err != nil {
			return "", fmt.Errorf("field %s: %w", field.Name, err)
		}
		if fieldName != "" {
			return fieldName, nil
		}
	}

	for _, tagName := range []string{"yaml", "json", "toml"} {
		tag := field.Tag.Get(tagName)
		if tag == "-" {
			return "", nil
		}
		if tag == "" {
			continue
		}
		// "name,omitempty" format
		if idx := strings.Index(tag, ","); idx != -1 {
			if tag[:idx] == "" {
				continue
			}
			return tag[:idx], nil
		}
		return tag, nil
	}

	return field.Name, nil
}

// extractFieldDirective extracts the field=name directive from a merge tag.
func extractFieldDirective(tag string) (string, error) {
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if name, ok := strings.CutPrefix(part, "field="); ok {
			if name == "" {
				return "", &InvalidTagError{
					Kind:    FieldTag,
					Value:   part,
					Message: "field name cannot be empty",
				}
			}
			return name, nil
		}
	}
	return "", nil
}

// parseMergeTag applies the directives of one merge tag to opts.
func parseMergeTag(tag, goName, fieldName, path string, opts *Options) error {
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		directive, arg, _ := strings.Cut(part, "=")
		switch directive {
		case "conflict":
			r, err := ParseConflictResolution(arg)
			if err != nil {
				return &InvalidTagError{
					Kind:      ConflictTag,
					FieldName: goName,
					Value:     arg,
					Message:   "valid: " + strings.Join(conflictNames, ", "),
				}
			}
			opts.SetPathPolicy(path, ConflictPolicy(r))
		case "array":
			a, err := ParseArrayMerge(arg)
			if err != nil {
				return &InvalidTagError{
					Kind:      ArrayTag,
					FieldName: goName,
					Value:     arg,
					Message:   "valid: " + strings.Join(arrayNames, ", "),
				}
			}
			opts.SetPathPolicy(path, ArrayPolicy(a))
		case "alias":
			if arg == "" {
				return &InvalidTagError{
					Kind:      AliasTag,
					FieldName: goName,
					Value:     part,
					Message:   "alias cannot be empty",
				}
			}
			opts.RegisterKeyMapping(arg, fieldName)
		case "field":
			// handled by getFieldName
		default:
			return &InvalidTagError{
				Kind:      UnknownTag,
				FieldName: goName,
				Value:     part,
				Message:   "unknown merge tag directive",
			}
		}
	}
	return nil
}
