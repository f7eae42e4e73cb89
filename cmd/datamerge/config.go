// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sam-fredrickson/datamerge"
	"github.com/sam-fredrickson/datamerge/value"
)

// defaultConfigNames are looked up in the working directory when no
// --config flag is given.
var defaultConfigNames = []string{"datamerge.yaml", "datamerge.yml"}

// fileConfig is the on-disk merge configuration.
type fileConfig struct {
	Strategy           string `yaml:"strategy,omitempty"`
	ConflictResolution string `yaml:"conflictResolution,omitempty"`
	ArrayMerge         string `yaml:"arrayMerge,omitempty"`

	PreserveOrder    *bool `yaml:"preserveOrder,omitempty"`
	RemoveDuplicates *bool `yaml:"removeDuplicates,omitempty"`
	IgnoreNull       *bool `yaml:"ignoreNull,omitempty"`
	IgnoreEmpty      *bool `yaml:"ignoreEmpty,omitempty"`

	KeyMappings  map[string]string       `yaml:"keyMappings,omitempty"`
	PathPolicies map[string]policyConfig `yaml:"pathPolicies,omitempty"`
	Schema       map[string]ruleConfig   `yaml:"schema,omitempty"`

	// source is the file the config was read from, empty for the zero config.
	source string
}

type policyConfig struct {
	ConflictResolution string `yaml:"conflictResolution,omitempty"`
	ArrayMerge         string `yaml:"arrayMerge,omitempty"`
}

type ruleConfig struct {
	Required bool     `yaml:"required,omitempty"`
	Type     string   `yaml:"type,omitempty"`
	Min      *float64 `yaml:"min,omitempty"`
	Max      *float64 `yaml:"max,omitempty"`
	Pattern  string   `yaml:"pattern,omitempty"`
	Enum     []any    `yaml:"enum,omitempty"`
	Expr     string   `yaml:"expr,omitempty"`
}

// loadConfig reads the config at path. With an empty path it tries the
// default names and returns a zero config, not an error, if none exists.
func loadConfig(path string) (*fileConfig, error) {
	if path != "" {
		return readConfig(path)
	}
	for _, name := range defaultConfigNames {
		cfg, err := readConfig(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return cfg, err
	}
	return &fileConfig{}, nil
}

func readConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.source = path
	return &cfg, nil
}

// apply copies the settings of c into opts.
func (c *fileConfig) apply(opts *datamerge.Options) error {
	if c.Strategy != "" {
		s, err := datamerge.ParseStrategy(c.Strategy)
		if err != nil {
			return err
		}
		opts.Strategy = s
	}
	if c.ConflictResolution != "" {
		r, err := datamerge.ParseConflictResolution(c.ConflictResolution)
		if err != nil {
			return err
		}
		opts.ConflictResolution = r
	}
	if c.ArrayMerge != "" {
		a, err := datamerge.ParseArrayMerge(c.ArrayMerge)
		if err != nil {
			return err
		}
		opts.ArrayMerge = a
	}

	setBool(&opts.PreserveOrder, c.PreserveOrder)
	setBool(&opts.RemoveDuplicates, c.RemoveDuplicates)
	setBool(&opts.IgnoreNull, c.IgnoreNull)
	setBool(&opts.IgnoreEmpty, c.IgnoreEmpty)

	for from, to := range c.KeyMappings {
		opts.RegisterKeyMapping(from, to)
	}

	for path, pc := range c.PathPolicies {
		if pc.ConflictResolution != "" {
			r, err := datamerge.ParseConflictResolution(pc.ConflictResolution)
			if err != nil {
				return fmt.Errorf("path policy %s: %w", path, err)
			}
			opts.SetPathPolicy(path, datamerge.ConflictPolicy(r))
		}
		if pc.ArrayMerge != "" {
			a, err := datamerge.ParseArrayMerge(pc.ArrayMerge)
			if err != nil {
				return fmt.Errorf("path policy %s: %w", path, err)
			}
			opts.SetPathPolicy(path, datamerge.ArrayPolicy(a))
		}
	}
	return nil
}

// schema converts the configured rules. It returns nil when no rules are set.
func (c *fileConfig) schema() (datamerge.Schema, error) {
	if len(c.Schema) == 0 {
		return nil, nil
	}
	s := make(datamerge.Schema, len(c.Schema))
	for path, rc := range c.Schema {
		rule := datamerge.Rule{
			Required: rc.Required,
			Type:     rc.Type,
			Min:      rc.Min,
			Max:      rc.Max,
			Pattern:  rc.Pattern,
			Expr:     rc.Expr,
		}
		for _, e := range rc.Enum {
			v, err := value.From(e)
			if err != nil {
				return nil, fmt.Errorf("schema %s: enum: %w", path, err)
			}
			rule.Enum = append(rule.Enum, v)
		}
		s[path] = rule
	}
	return s, nil
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
