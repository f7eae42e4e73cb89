// SPDX-License-Identifier: Apache-2.0

package datamerge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sam-fredrickson/datamerge"
)

type tagServer struct {
	Host  string   `yaml:"host" merge:"conflict=preserve"`
	Ports []int    `yaml:"ports,omitempty" merge:"array=union,alias=listen"`
	Tags  []string `json:"tags" merge:"array=override"`
}

type tagConfig struct {
	Name     string     `yaml:"name"`
	Replicas int        `yaml:"replicas" merge:"conflict=max"`
	Server   tagServer  `yaml:"server"`
	Backup   *tagServer `merge:"field=backup"`
	Ignored  string     `yaml:"-" merge:"conflict=min"`
	hidden   string
}

func TestOptionsFor(t *testing.T) {
	opts, err := datamerge.OptionsFor[tagConfig](datamerge.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	policies := map[string]string{}
	for path, p := range opts.PathPolicies {
		switch {
		case p.ConflictResolution != nil && p.ArrayMerge != nil:
			policies[path] = p.ConflictResolution.String() + "+" + p.ArrayMerge.String()
		case p.ConflictResolution != nil:
			policies[path] = p.ConflictResolution.String()
		case p.ArrayMerge != nil:
			policies[path] = p.ArrayMerge.String()
		}
	}
	want := map[string]string{
		"replicas":     "max",
		"server.host":  "preserve",
		"server.ports": "union",
		"server.tags":  "override",
		"backup.host":  "preserve",
		"backup.ports": "union",
		"backup.tags":  "override",
	}
	if diff := cmp.Diff(want, policies); diff != "" {
		t.Fatalf("path policies mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]string{"listen": "ports"}, opts.KeyMappings); diff != "" {
		t.Fatalf("key mappings mismatch (-want +got):\n%s", diff)
	}
}

func TestOptionsForMerge(t *testing.T) {
	opts, err := datamerge.OptionsFor[tagConfig](datamerge.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	e := mustEngine(t, opts)

	res, err := e.Merge(context.Background(), docs(
		`{"name":"a","replicas":5,"server":{"host":"h1","ports":[80],"tags":["x"]}}`,
		`{"name":"b","replicas":3,"server":{"host":"h2","listen":[443,80],"tags":["y"]}}`,
	))
	if err != nil {
		t.Fatal(err)
	}
	want := js(`{"name":"b","replicas":5,"server":{"host":"h1","ports":[80,443],"tags":["y"]}}`)
	if diff := cmp.Diff(want, res.Value); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestOptionsForLeavesBaseUntouched(t *testing.T) {
	base := datamerge.DefaultOptions()
	if _, err := datamerge.OptionsFor[tagConfig](base); err != nil {
		t.Fatal(err)
	}
	if base.PathPolicies != nil || base.KeyMappings != nil {
		t.Fatal("base options must not be modified")
	}
}

func TestOptionsForInvalidTags(t *testing.T) {
	type badConflict struct {
		A int `merge:"conflict=loudest"`
	}
	type badArray struct {
		A []int `merge:"array=shuffle"`
	}
	type badAlias struct {
		A int `merge:"alias="`
	}
	type badField struct {
		A int `merge:"field="`
	}
	type unknown struct {
		A int `merge:"primary"`
	}
	type nested struct {
		Inner badArray `yaml:"inner"`
	}

	tests := []struct {
		name string
		fn   func() error
		kind datamerge.TagKind
	}{
		{"conflict", func() error { _, err := datamerge.OptionsFor[badConflict](datamerge.Options{}); return err }, datamerge.ConflictTag},
		{"array", func() error { _, err := datamerge.OptionsFor[badArray](datamerge.Options{}); return err }, datamerge.ArrayTag},
		{"alias", func() error { _, err := datamerge.OptionsFor[badAlias](datamerge.Options{}); return err }, datamerge.AliasTag},
		{"field", func() error { _, err := datamerge.OptionsFor[badField](datamerge.Options{}); return err }, datamerge.FieldTag},
		{"unknown", func() error { _, err := datamerge.OptionsFor[unknown](datamerge.Options{}); return err }, datamerge.UnknownTag},
		{"nested", func() error { _, err := datamerge.OptionsFor[nested](datamerge.Options{}); return err }, datamerge.ArrayTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			if !errors.Is(err, datamerge.ErrInvalidTag) {
				t.Fatalf("expected ErrInvalidTag, got %v", err)
			}
			var tagErr *datamerge.InvalidTagError
			if !errors.As(err, &tagErr) || tagErr.Kind != tt.kind {
				t.Fatalf("expected %s tag error, got %v", tt.kind, err)
			}
		})
	}
}

func TestTagKindString(t *testing.T) {
	if got := datamerge.TagKind(42).String(); got != "TagKind(42)" {
		t.Fatalf("unexpected String: %s", got)
	}
	if got := datamerge.AliasTag.String(); got != "alias" {
		t.Fatalf("unexpected String: %s", got)
	}
}
