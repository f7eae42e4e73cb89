// SPDX-License-Identifier: Apache-2.0

// Package vpath implements the path syntax that addresses a location inside a
// [value.Value].
//
// Object members are joined with '.' and array elements are written as a
// bracketed index, so "a.b[2].c" is member c of element 2 of member b of member
// a. The root is the empty path. Paths are compared as plain strings: every
// extension point in datamerge is keyed by the exact text built here, so
// callers should use [Join] and [Index] rather than formatting paths by hand.
//
// Keys are not escaped. A key containing '.' or '[' produces a path that
// [Parse] and [Get] read differently from how it was built; such keys still
// work with every exact-string lookup.
package vpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sam-fredrickson/datamerge/value"
)

// ErrInvalidPath indicates a path that does not follow the dot/bracket syntax.
var ErrInvalidPath = errors.New("invalid path")

// Root is the path of the whole document.
const Root = ""

// Join returns the path of member key of the object at base.
func Join(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

// Index returns the path of element i of the array at base.
func Index(base string, i int) string {
	return base + "[" + strconv.Itoa(i) + "]"
}

// Display returns p, or "(root)" for the root path.
func Display(p string) string {
	if p == Root {
		return "(root)"
	}
	return p
}

// Segment is one step of a parsed path.
type Segment struct {
	// Key is the object member name when IsIndex is false.
	Key string
	// Index is the array position when IsIndex is true.
	Index int
	// IsIndex distinguishes array steps from object steps.
	IsIndex bool
}

func (s Segment) String() string {
	if s.IsIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Key
}

// Parse splits p into segments. The root path parses to no segments.
func Parse(p string) ([]Segment, error) {
	var segs []Segment
	i := 0
	expectKey := true
	for i < len(p) {
		switch c := p[i]; {
		case c == '[':
			end := strings.IndexByte(p[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated index in %q", ErrInvalidPath, p)
			}
			n, err := strconv.Atoi(p[i+1 : i+end])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: bad index %q in %q", ErrInvalidPath, p[i+1:i+end], p)
			}
			segs = append(segs, Segment{Index: n, IsIndex: true})
			i += end + 1
			expectKey = false
		case c == '.':
			if expectKey {
				return nil, fmt.Errorf("%w: empty key in %q", ErrInvalidPath, p)
			}
			i++
			expectKey = true
			if i == len(p) {
				return nil, fmt.Errorf("%w: trailing '.' in %q", ErrInvalidPath, p)
			}
		default:
			if !expectKey {
				return nil, fmt.Errorf("%w: missing '.' before %q in %q", ErrInvalidPath, p[i:], p)
			}
			end := strings.IndexAny(p[i:], ".[")
			if end < 0 {
				end = len(p) - i
			}
			segs = append(segs, Segment{Key: p[i : i+end]})
			i += end
			expectKey = false
		}
	}
	return segs, nil
}

// Get returns the value at p inside v and whether it exists.
// A malformed path is reported as missing.
func Get(v value.Value, p string) (value.Value, bool) {
	segs, err := Parse(p)
	if err != nil {
		return value.Null(), false
	}
	cur := v
	for _, s := range segs {
		var ok bool
		if s.IsIndex {
			cur, ok = cur.Index(s.Index)
		} else {
			cur, ok = cur.Get(s.Key)
		}
		if !ok {
			return value.Null(), false
		}
	}
	return cur, true
}

// WalkFunc is called by [Walk] for each visited location.
type WalkFunc func(path string, v value.Value) error

// Walk calls fn for every location below the root of v in depth-first,
// document order: each object member and each array element is visited before
// its own children. When v itself is not a container, fn is called once with
// the root path. Walk stops at the first error returned by fn.
func Walk(v value.Value, fn WalkFunc) error {
	switch v.Kind() {
	case value.ObjectKind, value.ArrayKind:
		return walkChildren(Root, v, fn)
	default:
		return fn(Root, v)
	}
}

func walkChildren(base string, v value.Value, fn WalkFunc) error {
	switch v.Kind() {
	case value.ObjectKind:
		for _, f := range v.Fields() {
			p := Join(base, f.Key)
			if err := fn(p, f.Value); err != nil {
				return err
			}
			if err := walkChildren(p, f.Value, fn); err != nil {
				return err
			}
		}
	case value.ArrayKind:
		for i, item := range v.Items() {
			p := Index(base, i)
			if err := fn(p, item); err != nil {
				return err
			}
			if err := walkChildren(p, item, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
