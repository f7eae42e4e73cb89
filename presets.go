// SPDX-License-Identifier: Apache-2.0

package datamerge

import (
	"context"
	"strings"

	"github.com/sam-fredrickson/datamerge/value"
)

// Paths handled by the engine returned from [NewConfigMerger].
const (
	PoolPath     = "database.pool"
	HeadersPath  = "headers"
	FeaturesPath = "features"
)

// RowsPath is the path handled by the engine returned from [NewTableMerger].
const RowsPath = "rows"

// NewConfigMerger returns an engine for application configuration.
//
// In addition to the defaults adjusted by overrides it merges:
//   - database.pool: numeric settings take the larger value, except settings
//     whose name contains "idle", which take the smaller one
//   - headers: a shallow union where later headers win
//   - features: flags are combined with a logical OR
func NewConfigMerger(overrides ...Option) *Engine {
	opts := DefaultOptions()
	opts.RegisterCustomMerger(PoolPath, mergePool)
	opts.RegisterCustomMerger(HeadersPath, mergeHeaders)
	opts.RegisterCustomMerger(FeaturesPath, mergeFeatures)
	for _, fn := range overrides {
		fn(&opts)
	}
	return &Engine{opts: opts}
}

// NewTableMerger returns an engine for tabular documents. Arrays are combined
// element by element in source order, and the rows array is merged by row
// identity (see [value.IdentityField]): rows with the same identity are
// shallow-merged, the rest are appended.
func NewTableMerger(overrides ...Option) *Engine {
	opts := DefaultOptions()
	opts.ArrayMerge = ArrayCombine
	opts.PreserveOrder = true
	opts.RegisterCustomMerger(RowsPath, mergeRows)
	for _, fn := range overrides {
		fn(&opts)
	}
	return &Engine{opts: opts}
}

// pairOf returns the two values handed to a custom merger. ok is false when
// either side is null, in which case merged holds the non-null side.
func pairOf(values []value.Value) (a, b, merged value.Value, ok bool) {
	switch len(values) {
	case 0:
		return a, b, value.Null(), false
	case 1:
		return a, b, values[0], false
	}
	a, b = values[len(values)-2], values[len(values)-1]
	switch {
	case b.IsNull():
		return a, b, a, false
	case a.IsNull():
		return a, b, b, false
	}
	return a, b, value.Value{}, true
}

func mergePool(_ context.Context, values []value.Value, _ string) (value.Value, error) {
	a, b, merged, ok := pairOf(values)
	if !ok {
		return merged, nil
	}
	if a.Kind() != value.ObjectKind || b.Kind() != value.ObjectKind {
		return b, nil
	}
	return shallowMerge(a, b, func(key string, x, y value.Value) value.Value {
		xn, xok := x.AsNumber()
		yn, yok := y.AsNumber()
		switch {
		case !xok || !yok:
			return y
		case strings.Contains(strings.ToLower(key), "idle"):
			return value.Number(min(xn, yn))
		default:
			return value.Number(max(xn, yn))
		}
	}), nil
}

func mergeHeaders(_ context.Context, values []value.Value, _ string) (value.Value, error) {
	a, b, merged, ok := pairOf(values)
	if !ok {
		return merged, nil
	}
	if a.Kind() != value.ObjectKind || b.Kind() != value.ObjectKind {
		return b, nil
	}
	return shallowMerge(a, b, nil), nil
}

func mergeFeatures(_ context.Context, values []value.Value, _ string) (value.Value, error) {
	a, b, merged, ok := pairOf(values)
	if !ok {
		return merged, nil
	}
	if x, xok := a.AsBool(); xok {
		if y, yok := b.AsBool(); yok {
			return value.Bool(x || y), nil
		}
	}
	if a.Kind() != value.ObjectKind || b.Kind() != value.ObjectKind {
		return b, nil
	}
	return shallowMerge(a, b, func(_ string, x, y value.Value) value.Value {
		xb, xok := x.AsBool()
		yb, yok := y.AsBool()
		if xok && yok {
			return value.Bool(xb || yb)
		}
		return y
	}), nil
}

func mergeRows(_ context.Context, values []value.Value, _ string) (value.Value, error) {
	a, b, merged, ok := pairOf(values)
	if !ok {
		return merged, nil
	}
	if a.Kind() != value.ArrayKind || b.Kind() != value.ArrayKind {
		return b, nil
	}
	rows := a.Items()
	index := make(map[string]int, len(rows))
	for i, row := range rows {
		if _, exists := index[value.IdentityKey(row)]; !exists {
			index[value.IdentityKey(row)] = i
		}
	}
	for _, row := range b.Items() {
		key := value.IdentityKey(row)
		i, exists := index[key]
		if !exists {
			index[key] = len(rows)
			rows = append(rows, row)
			continue
		}
		if rows[i].Kind() == value.ObjectKind && row.Kind() == value.ObjectKind {
			rows[i] = shallowMerge(rows[i], row, nil)
		}
	}
	return value.Array(rows...), nil
}

// shallowMerge returns the members of a overlaid with those of b. For keys in
// both, combine picks the value; a nil combine lets b win.
func shallowMerge(a, b value.Value, combine func(key string, x, y value.Value) value.Value) value.Value {
	fields := a.Fields()
	pos := make(map[string]int, len(fields))
	for i, f := range fields {
		pos[f.Key] = i
	}
	for _, f := range b.Fields() {
		i, exists := pos[f.Key]
		switch {
		case !exists:
			pos[f.Key] = len(fields)
			fields = append(fields, f)
		case combine != nil:
			fields[i].Value = combine(f.Key, fields[i].Value, f.Value)
		default:
			fields[i].Value = f.Value
		}
	}
	return value.Object(fields...)
}
