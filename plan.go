// SPDX-License-Identifier: Apache-2.0

package datamerge

import (
	"context"
	"errors"
	"slices"

	"github.com/sam-fredrickson/datamerge/value"
	"github.com/sam-fredrickson/datamerge/vpath"
)

// Action classifies a planned operation.
type Action string

const (
	// ActionAdd means exactly one source has a value at the path.
	ActionAdd Action = "add"
	// ActionUpdate means several sources agree on the value at the path.
	ActionUpdate Action = "update"
	// ActionConflict means sources disagree on the value at the path.
	ActionConflict Action = "conflict"
	// ActionTransform means a transformer is registered for the path.
	ActionTransform Action = "transform"
)

// Operation is one planned step.
type Operation struct {
	Path   string `json:"path"`
	Action Action `json:"action"`
	// Values are the values involved. An update carries a single representative
	// value and a transform carries none.
	Values []value.Value `json:"values,omitempty"`
	// Resolution is the suggested value of a conflict.
	Resolution *value.Value `json:"resolution,omitempty"`
}

// PlanConflict describes a path on which the sources disagree.
type PlanConflict struct {
	Path                string        `json:"path"`
	Values              []value.Value `json:"values"`
	SuggestedResolution value.Value   `json:"suggestedResolution"`
}

// MergePlan reports what a merge would do without performing it.
type MergePlan struct {
	Operations []Operation    `json:"operations"`
	Conflicts  []PlanConflict `json:"conflicts"`
}

// NewMergePlan returns an empty plan.
func NewMergePlan() *MergePlan {
	return &MergePlan{
		Operations: []Operation{},
		Conflicts:  []PlanConflict{},
	}
}

// AddOperation appends op to the plan.
func (p *MergePlan) AddOperation(op Operation) {
	p.Operations = append(p.Operations, op)
}

// AddConflict appends c to the plan's conflicts.
func (p *MergePlan) AddConflict(c PlanConflict) {
	p.Conflicts = append(p.Conflicts, c)
}

// HasConflicts reports whether the sources disagree anywhere.
func (p *MergePlan) HasConflicts() bool {
	return len(p.Conflicts) > 0
}

// OperationsFor returns the operations planned for path.
func (p *MergePlan) OperationsFor(path string) []Operation {
	var out []Operation
	for _, op := range p.Operations {
		if op.Path == path {
			out = append(out, op)
		}
	}
	return out
}

// CreateMergePlan creates a plan with [DefaultOptions] adjusted by overrides.
// See [Engine.CreateMergePlan] for details.
func CreateMergePlan(ctx context.Context, sources []value.Value, overrides ...Option) (*MergePlan, error) {
	return (&Engine{opts: DefaultOptions()}).CreateMergePlan(ctx, sources, overrides...)
}

// CreateMergePlan classifies every path found in any source.
//
// Sources are filtered as in [Engine.Merge]. Paths are visited in the order
// they are first seen. For each path the values of every source that has it
// are compared: one value is an add, equal values are an update, and differing
// values are a conflict with a suggested resolution. A path with a registered
// transformer gets an extra transform operation.
//
// Planning never fails because of a conflict: under [ResolveError], or when a
// conflict resolver fails, the suggestion is the last value. Only
// cancellation of ctx is returned as an error.
func (e *Engine) CreateMergePlan(ctx context.Context, sources []value.Value, overrides ...Option) (*MergePlan, error) {
	opts := e.callOptions(overrides)
	srcs := opts.filter(sources)

	var order []string
	found := make(map[string][]value.Value)
	for _, src := range srcs {
		err := vpath.Walk(src, func(p string, v value.Value) error {
			if opts.IgnoreNull && v.IsNull() {
				return nil
			}
			if _, ok := found[p]; !ok {
				order = append(order, p)
			}
			found[p] = append(found[p], v)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	plan := NewMergePlan()
	for _, p := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		values := found[p]
		switch {
		case len(values) == 1:
			plan.AddOperation(Operation{Path: p, Action: ActionAdd, Values: values})
		case allEqual(values):
			plan.AddOperation(Operation{Path: p, Action: ActionUpdate, Values: values[:1]})
		default:
			suggested, err := opts.suggest(ctx, p, values)
			if err != nil {
				return nil, err
			}
			plan.AddOperation(Operation{
				Path:       p,
				Action:     ActionConflict,
				Values:     values,
				Resolution: &suggested,
			})
			plan.AddConflict(PlanConflict{Path: p, Values: values, SuggestedResolution: suggested})
		}
		if _, ok := opts.Transformers[p]; ok {
			plan.AddOperation(Operation{Path: p, Action: ActionTransform})
		}
	}
	return plan, nil
}

func (o *Options) suggest(ctx context.Context, path string, values []value.Value) (value.Value, error) {
	policy := o.conflictPolicy(path)
	if policy == ResolveError {
		policy = ResolveOverride
	}
	v, err := o.resolveWith(ctx, policy, path, values)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return value.Value{}, err
		}
		return values[len(values)-1], nil
	}
	return v, nil
}

func allEqual(values []value.Value) bool {
	return !slices.ContainsFunc(values[1:], func(v value.Value) bool {
		return !value.Equal(values[0], v)
	})
}
