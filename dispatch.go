// SPDX-License-Identifier: Apache-2.0

package datamerge

import (
	"fmt"

	"github.com/sam-fredrickson/datamerge/value"
	"github.com/sam-fredrickson/datamerge/vpath"
)

// dispatch merges overlay into base at path.
//
// A custom merger registered for the path takes over completely. Otherwise a
// null side yields the other side, values of different kinds conflict, and
// values of the same kind are merged as objects, as arrays, or compared as
// scalars.
func (r *run) dispatch(base, overlay value.Value, path string) (value.Value, error) {
	if fn, ok := r.opts.CustomMergers[path]; ok {
		if err := r.ctx.Err(); err != nil {
			return value.Value{}, err
		}
		v, err := fn(r.ctx, []value.Value{base, overlay}, path)
		if err != nil {
			return value.Value{}, fmt.Errorf("custom merger at %s: %w", vpath.Display(path), err)
		}
		return v, nil
	}

	if overlay.IsNull() {
		return base, nil
	}
	if base.IsNull() {
		return overlay, nil
	}

	if base.Kind() != overlay.Kind() {
		return r.resolve(path, []value.Value{base, overlay})
	}

	switch base.Kind() {
	case value.ObjectKind:
		return r.mergeObjects(base, overlay, path)
	case value.ArrayKind:
		return r.mergeArrays(base, overlay, path)
	default:
		if value.Equal(base, overlay) {
			return base, nil
		}
		return r.resolve(path, []value.Value{base, overlay})
	}
}

// mergeObjects merges the members of two objects. Keys of overlay are renamed
// through the key mappings first. The result holds base's keys in order
// followed by keys only overlay has.
func (r *run) mergeObjects(base, overlay value.Value, path string) (value.Value, error) {
	overlay = r.mapKeys(overlay)

	keys := base.Keys()
	for _, k := range overlay.Keys() {
		if !base.Has(k) {
			keys = append(keys, k)
		}
	}

	fields := make([]value.Field, 0, len(keys))
	for _, k := range keys {
		child := vpath.Join(path, k)
		bv, inBase := base.Get(k)
		ov, inOverlay := overlay.Get(k)

		merged := bv
		switch {
		case inBase && inOverlay:
			var err error
			merged, err = r.dispatch(bv, ov, child)
			if err != nil {
				return value.Value{}, err
			}
		case inOverlay:
			merged = ov
		}
		r.merged.add(child)

		merged, err := r.transform(merged, child)
		if err != nil {
			return value.Value{}, err
		}
		fields = append(fields, value.Field{Key: k, Value: merged})
	}
	return value.Object(fields...), nil
}

func (r *run) mapKeys(obj value.Value) value.Value {
	if len(r.opts.KeyMappings) == 0 {
		return obj
	}
	fields := obj.Fields()
	for i, f := range fields {
		if to, ok := r.opts.KeyMappings[f.Key]; ok {
			fields[i].Key = to
		}
	}
	return value.Object(fields...)
}

func (r *run) transform(v value.Value, path string) (value.Value, error) {
	fn, ok := r.opts.Transformers[path]
	if !ok {
		return v, nil
	}
	if err := r.ctx.Err(); err != nil {
		return value.Value{}, err
	}
	out, err := fn(r.ctx, v, path)
	if err != nil {
		return value.Value{}, fmt.Errorf("transformer at %s: %w", vpath.Display(path), err)
	}
	r.transformed.add(path)
	return out, nil
}
