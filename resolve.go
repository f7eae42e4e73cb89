// SPDX-License-Identifier: Apache-2.0

package datamerge

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/sam-fredrickson/datamerge/value"
	"github.com/sam-fredrickson/datamerge/vpath"
)

// resolve reconciles differing values at path and records the conflict.
func (r *run) resolve(path string, values []value.Value) (value.Value, error) {
	policy := r.opts.conflictPolicy(path)
	resolved, err := r.opts.resolveWith(r.ctx, policy, path, values)
	if err != nil {
		return value.Value{}, err
	}
	r.conflicts = append(r.conflicts, Conflict{
		Path:     path,
		Values:   slices.Clone(values),
		Resolved: resolved,
	})
	r.log.DebugContext(r.ctx, "resolved conflict",
		slog.String("path", path),
		slog.String("policy", policy.String()),
		slog.Int("values", len(values)))
	return resolved, nil
}

// resolveWith applies policy to values. values must not be empty.
func (o *Options) resolveWith(ctx context.Context, policy ConflictResolution, path string, values []value.Value) (value.Value, error) {
	switch policy {
	case ResolvePreserve:
		return values[0], nil
	case ResolveError:
		return value.Value{}, &ConflictError{Path: path, Values: slices.Clone(values)}
	case ResolveArray:
		return value.Array(values...), nil
	case ResolveConcat:
		var b strings.Builder
		for _, v := range values {
			b.WriteString(v.Text())
		}
		return value.String(b.String()), nil
	case ResolveSum:
		sum, _ := numericSum(values)
		return value.Number(sum), nil
	case ResolveAverage:
		sum, n := numericSum(values)
		if n == 0 {
			return value.Int(0), nil
		}
		return value.Number(sum / float64(n)), nil
	case ResolveMin:
		return slices.MinFunc(values, value.Compare), nil
	case ResolveMax:
		return slices.MaxFunc(values, value.Compare), nil
	case ResolveCustom:
		fn, ok := o.CustomMergers[conflictPrefix+path]
		if !ok {
			return values[len(values)-1], nil
		}
		if err := ctx.Err(); err != nil {
			return value.Value{}, err
		}
		v, err := fn(ctx, slices.Clone(values), path)
		if err != nil {
			return value.Value{}, fmt.Errorf("conflict resolver at %s: %w", vpath.Display(path), err)
		}
		return v, nil
	default: // ResolveOverride
		return values[len(values)-1], nil
	}
}

func numericSum(values []value.Value) (float64, int) {
	var sum float64
	var n int
	for _, v := range values {
		if f, ok := v.AsNumber(); ok {
			sum += f
			n++
		}
	}
	return sum, n
}
