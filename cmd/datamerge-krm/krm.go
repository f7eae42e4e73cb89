// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/sam-fredrickson/datamerge"
	"github.com/sam-fredrickson/datamerge/value"
)

// KRM annotation constants.
const (
	// AnnotationBase is the prefix of every datamerge annotation.
	AnnotationBase = "config.datamerge.io/"

	// AnnotationID groups ConfigMaps that are merged together.
	AnnotationID = AnnotationBase + "id"

	// AnnotationOrder is the position of a ConfigMap in its group. Lower
	// numbers merge first and the ConfigMap with order 0 is the base.
	AnnotationOrder = AnnotationBase + "order"

	// AnnotationFinalName is the metadata.name of the merged ConfigMap.
	// Required on the base.
	AnnotationFinalName = AnnotationBase + "final-name"

	// AnnotationConflictResolution selects the conflict policy used when this
	// ConfigMap is merged onto the ones before it.
	AnnotationConflictResolution = AnnotationBase + "conflict-resolution"

	// AnnotationArrayMerge selects the array strategy used when this
	// ConfigMap is merged onto the ones before it.
	AnnotationArrayMerge = AnnotationBase + "array-merge"

	// AnnotationStrategy selects the merge strategy.
	AnnotationStrategy = AnnotationBase + "strategy"
)

// TypeMeta describes an individual object in a ResourceList.
type TypeMeta struct {
	APIVersion string `yaml:"apiVersion" json:"apiVersion"`
	Kind       string `yaml:"kind" json:"kind"`
}

// ObjectMeta is the subset of resource metadata the function reads and writes.
type ObjectMeta struct {
	Name        string            `yaml:"name,omitempty" json:"name,omitempty"`
	Namespace   string            `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty" json:"annotations,omitempty"`
}

// ConfigMap represents a Kubernetes ConfigMap resource.
type ConfigMap struct {
	TypeMeta   `yaml:",inline" json:",inline"`
	ObjectMeta `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Data       map[string]string `yaml:"data,omitempty" json:"data,omitempty"`
}

// ResourceList is the input and output format of KRM functions.
// See: https://github.com/kubernetes-sigs/kustomize/blob/master/cmd/config/docs/api-conventions/functions-spec.md
type ResourceList struct {
	APIVersion string           `yaml:"apiVersion" json:"apiVersion"`
	Kind       string           `yaml:"kind" json:"kind"`
	Items      []map[string]any `yaml:"items" json:"items"`
}

// group is a set of ConfigMaps sharing an id, sorted by order.
type group struct {
	id      string
	members []*member
}

// member is one ConfigMap of a group with the options its overlay step uses.
type member struct {
	order     int
	configMap ConfigMap
	options   []datamerge.Option
	finalName string
}

// Run reads a ResourceList from in, merges every ConfigMap group and writes
// the resulting ResourceList to out. Resources that are not grouped ConfigMaps
// pass through unchanged, ahead of the merged ConfigMaps.
func Run(ctx context.Context, in io.Reader, out io.Writer) error {
	rl, err := readResourceList(in)
	if err != nil {
		return fmt.Errorf("failed to read ResourceList: %w", err)
	}

	groups, passthrough, err := groupConfigMaps(rl)
	if err != nil {
		return fmt.Errorf("failed to group ConfigMaps: %w", err)
	}

	engine, err := datamerge.New(datamerge.DefaultOptions())
	if err != nil {
		return err
	}

	items := passthrough
	for _, g := range groups {
		merged, err := mergeGroup(ctx, engine, g)
		if err != nil {
			return fmt.Errorf("failed to merge ConfigMap group %q: %w", g.id, err)
		}
		items = append(items, merged)
	}

	return writeResourceList(out, ResourceList{
		APIVersion: "v1",
		Kind:       "ResourceList",
		Items:      items,
	})
}

func readResourceList(r io.Reader) (*ResourceList, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	var rl ResourceList
	if err := yaml.Unmarshal(data, &rl); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ResourceList: %w", err)
	}
	return &rl, nil
}

func writeResourceList(w io.Writer, rl ResourceList) error {
	data, err := yaml.Marshal(rl)
	if err != nil {
		return fmt.Errorf("failed to marshal ResourceList: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// groupConfigMaps separates grouped ConfigMaps from passthrough resources.
// Groups are returned in the order their first member appears.
func groupConfigMaps(rl *ResourceList) ([]*group, []map[string]any, error) {
	var groups []*group
	byID := make(map[string]*group)
	var passthrough []map[string]any

	for _, item := range rl.Items {
		cm, ok, err := parseConfigMap(item)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse resource: %w", err)
		}
		id := cm.Annotations[AnnotationID]
		if !ok || id == "" {
			passthrough = append(passthrough, item)
			continue
		}

		m, err := parseMember(cm)
		if err != nil {
			return nil, nil, fmt.Errorf("ConfigMap %q: %w", cm.Name, err)
		}
		g := byID[id]
		if g == nil {
			g = &group{id: id}
			byID[id] = g
			groups = append(groups, g)
		}
		g.members = append(g.members, m)
	}

	for _, g := range groups {
		if err := g.prepare(); err != nil {
			return nil, nil, fmt.Errorf("ConfigMap group %q: %w", g.id, err)
		}
	}
	return groups, passthrough, nil
}

// parseConfigMap reports whether item is a ConfigMap and decodes it if so.
func parseConfigMap(item map[string]any) (ConfigMap, bool, error) {
	kind, _ := item["kind"].(string)
	if kind != "ConfigMap" {
		return ConfigMap{}, false, nil
	}
	apiVersion, _ := item["apiVersion"].(string)

	data, err := yaml.Marshal(item)
	if err != nil {
		return ConfigMap{}, false, fmt.Errorf("failed to marshal item: %w", err)
	}
	var cm ConfigMap
	if err := yaml.Unmarshal(data, &cm); err != nil {
		return ConfigMap{}, false, fmt.Errorf("failed to unmarshal ConfigMap: %w", err)
	}
	if cm.APIVersion == "" {
		cm.APIVersion = apiVersion
	}
	if cm.Kind == "" {
		cm.Kind = kind
	}
	return cm, true, nil
}

func parseMember(cm ConfigMap) (*member, error) {
	orderStr := cm.Annotations[AnnotationOrder]
	if orderStr == "" {
		return nil, fmt.Errorf("missing required annotation %q", AnnotationOrder)
	}
	order, err := strconv.Atoi(orderStr)
	if err != nil {
		return nil, fmt.Errorf("invalid %q annotation: %w", AnnotationOrder, err)
	}

	opts, err := parseMergeOptions(cm.Annotations)
	if err != nil {
		return nil, err
	}
	return &member{
		order:     order,
		configMap: cm,
		options:   opts,
		finalName: cm.Annotations[AnnotationFinalName],
	}, nil
}

// parseMergeOptions turns the policy annotations into engine overrides.
// Absent annotations keep the engine defaults.
func parseMergeOptions(annotations map[string]string) ([]datamerge.Option, error) {
	var opts []datamerge.Option
	if s := strings.TrimSpace(annotations[AnnotationStrategy]); s != "" {
		strategy, err := datamerge.ParseStrategy(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %q annotation: %w", AnnotationStrategy, err)
		}
		opts = append(opts, datamerge.WithStrategy(strategy))
	}
	if s := strings.TrimSpace(annotations[AnnotationConflictResolution]); s != "" {
		policy, err := datamerge.ParseConflictResolution(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %q annotation: %w", AnnotationConflictResolution, err)
		}
		opts = append(opts, datamerge.WithConflictResolution(policy))
	}
	if s := strings.TrimSpace(annotations[AnnotationArrayMerge]); s != "" {
		mode, err := datamerge.ParseArrayMerge(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %q annotation: %w", AnnotationArrayMerge, err)
		}
		opts = append(opts, datamerge.WithArrayMerge(mode))
	}
	return opts, nil
}

// prepare sorts the group by order and checks its base.
func (g *group) prepare() error {
	if len(g.members) == 0 {
		return errors.New("empty ConfigMap group")
	}
	slices.SortStableFunc(g.members, func(a, b *member) int {
		return a.order - b.order
	})

	base := g.members[0]
	if base.order != 0 {
		return fmt.Errorf("no base ConfigMap with order=0 (lowest order is %d)", base.order)
	}
	if base.finalName == "" {
		return fmt.Errorf("base ConfigMap %q missing required annotation %q", base.configMap.Name, AnnotationFinalName)
	}
	return nil
}

// mergeGroup merges every data key of g and returns the final ConfigMap as a
// ResourceList item.
func mergeGroup(ctx context.Context, engine *datamerge.Engine, g *group) (map[string]any, error) {
	var keys []string
	for _, m := range g.members {
		for key := range m.configMap.Data {
			if !slices.Contains(keys, key) {
				keys = append(keys, key)
			}
		}
	}
	slices.Sort(keys)

	data := make(map[string]string, len(keys))
	for _, key := range keys {
		merged, err := mergeDataKey(ctx, engine, g, key)
		if err != nil {
			return nil, fmt.Errorf("failed to merge data key %q: %w", key, err)
		}
		if merged != "" {
			data[key] = merged
		}
	}

	base := g.members[0]
	result := ConfigMap{
		TypeMeta: TypeMeta{APIVersion: "v1", Kind: "ConfigMap"},
		ObjectMeta: ObjectMeta{
			Name:        base.finalName,
			Namespace:   base.configMap.Namespace,
			Annotations: withoutDatamergeAnnotations(base.configMap.Annotations),
			Labels:      base.configMap.Labels,
		},
		Data: data,
	}

	out, err := yaml.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged ConfigMap: %w", err)
	}
	var item map[string]any
	if err := yaml.Unmarshal(out, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal merged ConfigMap: %w", err)
	}
	return item, nil
}

// mergeDataKey folds one data key across the group. Each step merges the
// next ConfigMap that has the key onto the running result, using that
// ConfigMap's options.
func mergeDataKey(ctx context.Context, engine *datamerge.Engine, g *group, key string) (string, error) {
	var present []*member
	for _, m := range g.members {
		if m.configMap.Data[key] != "" {
			present = append(present, m)
		}
	}
	switch len(present) {
	case 0:
		return "", nil
	case 1:
		return present[0].configMap.Data[key], nil
	}

	codec := codecForKey(key)
	result := []byte(present[0].configMap.Data[key])
	for _, m := range present[1:] {
		out, _, err := engine.With(m.options...).MergeMarshal(ctx, codec, result, []byte(m.configMap.Data[key]))
		if err != nil {
			return "", fmt.Errorf("ConfigMap %q (format: %s): %w", m.configMap.Name, codec.Name(), err)
		}
		result = out
	}
	return string(result), nil
}

// codecForKey picks the codec from the data key's extension. Keys without a
// known extension are treated as YAML, which is common in Kubernetes.
func codecForKey(key string) value.Codec {
	codec, err := value.CodecForFile(key)
	if err != nil {
		return value.YAML
	}
	return codec
}

// withoutDatamergeAnnotations drops the datamerge annotations. It returns nil
// when nothing is left.
func withoutDatamergeAnnotations(annotations map[string]string) map[string]string {
	filtered := make(map[string]string)
	for key, val := range annotations {
		if !strings.HasPrefix(key, AnnotationBase) {
			filtered[key] = val
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return filtered
}
