// SPDX-License-Identifier: Apache-2.0

package datamerge

import (
	"slices"

	"github.com/sam-fredrickson/datamerge/value"
	"github.com/sam-fredrickson/datamerge/vpath"
)

// mergeArrays combines two arrays with the strategy in effect at path, then
// removes duplicates and restores source order where configured.
// Intersections are returned as computed.
func (r *run) mergeArrays(base, overlay value.Value, path string) (value.Value, error) {
	mode := r.opts.arrayPolicy(path).normalize()
	a, b := base.Items(), overlay.Items()

	var out []value.Value
	switch mode {
	case ArrayIntersection:
		return value.Array(intersect(a, b)...), nil
	case ArrayUnion:
		out = union(a, b)
	case ArrayOverride:
		out = b
	case ArrayCombine:
		var err error
		out, err = r.combine(a, b, path)
		if err != nil {
			return value.Value{}, err
		}
	case ArrayZip:
		out = zip(a, b)
	default: // ArrayConcat, ArrayUnique
		out = slices.Concat(a, b)
	}

	if r.opts.RemoveDuplicates || mode == ArrayUnique {
		out = dedupe(out)
	}
	if r.opts.PreserveOrder && mode == ArrayUnion {
		out = sourceOrder(out, a, b)
	}
	return value.Array(out...), nil
}

// union returns a followed by the elements of b that are not equal to any
// element already collected.
func union(a, b []value.Value) []value.Value {
	out := slices.Clone(a)
	for _, item := range b {
		if !value.Contains(out, item) {
			out = append(out, item)
		}
	}
	return out
}

func intersect(a, b []value.Value) []value.Value {
	out := make([]value.Value, 0, min(len(a), len(b)))
	for _, item := range a {
		if value.Contains(b, item) {
			out = append(out, item)
		}
	}
	return out
}

// combine merges elements that share an index. The tail of the longer array is kept as-is.
func (r *run) combine(a, b []value.Value, path string) ([]value.Value, error) {
	out := make([]value.Value, max(len(a), len(b)))
	for i := range out {
		switch {
		case i < len(a) && i < len(b):
			merged, err := r.dispatch(a[i], b[i], vpath.Index(path, i))
			if err != nil {
				return nil, err
			}
			out[i] = merged
		case i < len(a):
			out[i] = a[i]
		default:
			out[i] = b[i]
		}
	}
	return out, nil
}

// zip pairs elements by index. Past the end of the shorter array the pairs
// hold a single element.
func zip(a, b []value.Value) []value.Value {
	out := make([]value.Value, max(len(a), len(b)))
	for i := range out {
		switch {
		case i < len(a) && i < len(b):
			out[i] = value.Array(a[i], b[i])
		case i < len(a):
			out[i] = value.Array(a[i])
		default:
			out[i] = value.Array(b[i])
		}
	}
	return out
}

// dedupe keeps the first element for each identity key.
func dedupe(items []value.Value) []value.Value {
	seen := make(map[string]struct{}, len(items))
	out := make([]value.Value, 0, len(items))
	for _, item := range items {
		k := value.IdentityKey(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}

// sourceOrder stably sorts items by where they first appear: positions in a
// come first, then positions in b.
func sourceOrder(items, a, b []value.Value) []value.Value {
	rank := func(v value.Value) int {
		if i := value.IndexOf(a, v); i >= 0 {
			return i
		}
		if i := value.IndexOf(b, v); i >= 0 {
			return len(a) + i
		}
		return len(a) + len(b)
	}
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(x, y value.Value) int {
		return rank(x) - rank(y)
	})
	return out
}
