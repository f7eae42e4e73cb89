// SPDX-License-Identifier: Apache-2.0

package datamerge

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/sam-fredrickson/datamerge/value"
)

// Strategy is the top-level merge shape. The engine itself only consults it to
// choose the shape of an empty result; callers use it to pick array policies.
type Strategy int

const (
	// StrategyDeep merges objects recursively (default).
	StrategyDeep Strategy = iota
	// StrategyAppend appends sources to each other.
	StrategyAppend
	// StrategyMerge performs a shallow merge.
	StrategyMerge
	// StrategyReplace lets later sources replace earlier ones.
	StrategyReplace
	// StrategyJoin joins sources on an identity.
	StrategyJoin
	// StrategyArray treats the sources as arrays. An empty merge yields an empty array.
	StrategyArray
)

var strategyNames = []string{"deep", "append", "merge", "replace", "join", "array"}

func (s Strategy) String() string {
	if s >= 0 && int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy converts a strategy name to a [Strategy].
func ParseStrategy(s string) (Strategy, error) {
	i, ok := lookupName(strategyNames, s)
	if !ok {
		return 0, fmt.Errorf("%w: unknown strategy %q (valid: %s)",
			ErrInvalidOptions, s, strings.Join(strategyNames, ", "))
	}
	return Strategy(i), nil
}

func (s Strategy) normalize() Strategy {
	if s < 0 || int(s) >= len(strategyNames) {
		return StrategyDeep
	}
	return s
}

// ConflictResolution selects how two differing values at the same path are reconciled.
type ConflictResolution int

const (
	// ResolveOverride takes the last value (default).
	ResolveOverride ConflictResolution = iota
	// ResolveNew is an alias of [ResolveOverride].
	ResolveNew
	// ResolvePreserve takes the first value.
	ResolvePreserve
	// ResolveOriginal is an alias of [ResolvePreserve].
	ResolveOriginal
	// ResolveCustom calls the resolver registered with [Options.RegisterConflictResolver],
	// falling back to [ResolveOverride] when none is registered for the path.
	ResolveCustom
	// ResolveError aborts the merge with a [*ConflictError].
	ResolveError
	// ResolveArray keeps every value as an array.
	ResolveArray
	// ResolveConcat joins the text of every value.
	ResolveConcat
	// ResolveSum adds the numeric values, ignoring the rest.
	ResolveSum
	// ResolveAverage averages the numeric values, ignoring the rest. It yields 0 when none is numeric.
	ResolveAverage
	// ResolveMin takes the smallest value under [value.Compare].
	ResolveMin
	// ResolveMax takes the largest value under [value.Compare].
	ResolveMax
)

var conflictNames = []string{
	"override", "new", "preserve", "original", "custom", "error",
	"array", "concat", "sum", "average", "min", "max",
}

func (r ConflictResolution) String() string {
	if r >= 0 && int(r) < len(conflictNames) {
		return conflictNames[r]
	}
	return fmt.Sprintf("ConflictResolution(%d)", int(r))
}

// ParseConflictResolution converts a policy name to a [ConflictResolution].
func ParseConflictResolution(s string) (ConflictResolution, error) {
	i, ok := lookupName(conflictNames, s)
	if !ok {
		return 0, fmt.Errorf("%w: unknown conflict resolution %q (valid: %s)",
			ErrInvalidOptions, s, strings.Join(conflictNames, ", "))
	}
	return ConflictResolution(i), nil
}

// normalize folds aliases together and maps unknown values to the default.
func (r ConflictResolution) normalize() ConflictResolution {
	switch r {
	case ResolveNew:
		return ResolveOverride
	case ResolveOriginal:
		return ResolvePreserve
	}
	if r < 0 || int(r) >= len(conflictNames) {
		return ResolveOverride
	}
	return r
}

// ArrayMerge selects how two arrays at the same path are combined.
type ArrayMerge int

const (
	// ArrayConcat appends the second array to the first (default).
	ArrayConcat ArrayMerge = iota
	// ArrayReplace is an alias of [ArrayOverride].
	ArrayReplace
	// ArrayMergeElements is an alias of [ArrayCombine].
	ArrayMergeElements
	// ArrayUnique concatenates and always removes duplicates.
	ArrayUnique
	// ArrayUnion appends the elements of the second array that the first lacks.
	ArrayUnion
	// ArrayIntersection keeps the elements of the first array present in the second.
	ArrayIntersection
	// ArrayOverride replaces the first array with the second.
	ArrayOverride
	// ArrayCombine merges elements pairwise by index.
	ArrayCombine
	// ArrayZip pairs elements by index into two-element arrays.
	ArrayZip
)

var arrayNames = []string{
	"concat", "replace", "merge", "unique", "union",
	"intersection", "override", "combine", "zip",
}

func (a ArrayMerge) String() string {
	if a >= 0 && int(a) < len(arrayNames) {
		return arrayNames[a]
	}
	return fmt.Sprintf("ArrayMerge(%d)", int(a))
}

// ParseArrayMerge converts an array strategy name to an [ArrayMerge].
func ParseArrayMerge(s string) (ArrayMerge, error) {
	i, ok := lookupName(arrayNames, s)
	if !ok {
		return 0, fmt.Errorf("%w: unknown array merge %q (valid: %s)",
			ErrInvalidOptions, s, strings.Join(arrayNames, ", "))
	}
	return ArrayMerge(i), nil
}

func (a ArrayMerge) normalize() ArrayMerge {
	switch a {
	case ArrayReplace:
		return ArrayOverride
	case ArrayMergeElements:
		return ArrayCombine
	}
	if a < 0 || int(a) >= len(arrayNames) {
		return ArrayConcat
	}
	return a
}

func lookupName(names []string, s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if n == s {
			return i, true
		}
	}
	return 0, false
}

// MergerFunc merges the values found at path. Custom mergers receive the two
// values being merged, null included; conflict resolvers receive every
// conflicting value.
type MergerFunc func(ctx context.Context, values []value.Value, path string) (value.Value, error)

// TransformerFunc rewrites the merged value at path.
type TransformerFunc func(ctx context.Context, v value.Value, path string) (value.Value, error)

// ValidatorFunc checks the merged value at path. An absent value is passed as null.
// Returning false or an error marks the merge as unsuccessful.
type ValidatorFunc func(ctx context.Context, v value.Value, path string) (bool, error)

// conflictPrefix namespaces conflict resolvers inside Options.CustomMergers.
const conflictPrefix = "conflict:"

// PathPolicy overrides the global policies at one exact path.
// A nil field inherits the global setting.
type PathPolicy struct {
	ConflictResolution *ConflictResolution
	ArrayMerge         *ArrayMerge
}

// ConflictPolicy returns a [PathPolicy] that only sets the conflict resolution.
func ConflictPolicy(r ConflictResolution) PathPolicy {
	return PathPolicy{ConflictResolution: &r}
}

// ArrayPolicy returns a [PathPolicy] that only sets the array strategy.
func ArrayPolicy(a ArrayMerge) PathPolicy {
	return PathPolicy{ArrayMerge: &a}
}

// Options configures an [Engine].
//
// The zero value uses the default strategy and policies but leaves every flag
// off; [DefaultOptions] returns the documented defaults:
//   - [StrategyDeep], [ResolveOverride] and [ArrayConcat]
//   - PreserveOrder, RemoveDuplicates and IgnoreNull enabled
//   - IgnoreEmpty disabled
//
// Enum values outside their declared range fall back to these defaults.
type Options struct {
	Strategy           Strategy
	ConflictResolution ConflictResolution
	ArrayMerge         ArrayMerge

	// PreserveOrder keeps source order when the union strategy is used.
	PreserveOrder bool
	// RemoveDuplicates drops array elements whose identity key was already seen.
	RemoveDuplicates bool
	// IgnoreNull drops null sources before merging.
	IgnoreNull bool
	// IgnoreEmpty drops empty arrays, empty objects and blank strings before merging.
	IgnoreEmpty bool

	// CustomMergers replace all merge logic at a path. Keys prefixed with
	// "conflict:" hold conflict resolvers instead.
	CustomMergers map[string]MergerFunc
	// KeyMappings rename keys of the later object before they are matched.
	KeyMappings map[string]string
	// Transformers rewrite the merged value of an object member.
	Transformers map[string]TransformerFunc
	// Validators check the final result.
	Validators map[string]ValidatorFunc
	// PathPolicies override the conflict and array policies at a path.
	PathPolicies map[string]PathPolicy

	// Logger receives debug and warning records. Nil discards them.
	Logger *slog.Logger
}

// DefaultOptions returns the default merge options.
func DefaultOptions() Options {
	return Options{
		Strategy:           StrategyDeep,
		ConflictResolution: ResolveOverride,
		ArrayMerge:         ArrayConcat,
		PreserveOrder:      true,
		RemoveDuplicates:   true,
		IgnoreNull:         true,
		IgnoreEmpty:        false,
	}
}

// RegisterCustomMerger installs fn as the merger for path.
func (o *Options) RegisterCustomMerger(path string, fn MergerFunc) {
	if o.CustomMergers == nil {
		o.CustomMergers = make(map[string]MergerFunc)
	}
	o.CustomMergers[path] = fn
}

// RegisterConflictResolver installs fn as the [ResolveCustom] resolver for path.
func (o *Options) RegisterConflictResolver(path string, fn MergerFunc) {
	o.RegisterCustomMerger(conflictPrefix+path, fn)
}

// RegisterKeyMapping renames from to to in later objects before keys are matched.
func (o *Options) RegisterKeyMapping(from, to string) {
	if o.KeyMappings == nil {
		o.KeyMappings = make(map[string]string)
	}
	o.KeyMappings[from] = to
}

// RegisterTransformer installs fn as the transformer for path.
func (o *Options) RegisterTransformer(path string, fn TransformerFunc) {
	if o.Transformers == nil {
		o.Transformers = make(map[string]TransformerFunc)
	}
	o.Transformers[path] = fn
}

// RegisterValidator installs fn as the validator for path.
func (o *Options) RegisterValidator(path string, fn ValidatorFunc) {
	if o.Validators == nil {
		o.Validators = make(map[string]ValidatorFunc)
	}
	o.Validators[path] = fn
}

// SetPathPolicy merges p into the policy for path. Nil fields of p leave the
// current setting in place.
func (o *Options) SetPathPolicy(path string, p PathPolicy) {
	if o.PathPolicies == nil {
		o.PathPolicies = make(map[string]PathPolicy)
	}
	cur := o.PathPolicies[path]
	if p.ConflictResolution != nil {
		r := *p.ConflictResolution
		cur.ConflictResolution = &r
	}
	if p.ArrayMerge != nil {
		a := *p.ArrayMerge
		cur.ArrayMerge = &a
	}
	o.PathPolicies[path] = cur
}

// Clone returns a copy of o whose registries can be modified independently.
func (o Options) Clone() Options {
	o.CustomMergers = maps.Clone(o.CustomMergers)
	o.KeyMappings = maps.Clone(o.KeyMappings)
	o.Transformers = maps.Clone(o.Transformers)
	o.Validators = maps.Clone(o.Validators)
	o.PathPolicies = maps.Clone(o.PathPolicies)
	return o
}

func (o Options) validate() error {
	for p, fn := range o.CustomMergers {
		if fn == nil {
			return fmt.Errorf("%w: nil custom merger for %q", ErrInvalidOptions, p)
		}
	}
	for p, fn := range o.Transformers {
		if fn == nil {
			return fmt.Errorf("%w: nil transformer for %q", ErrInvalidOptions, p)
		}
	}
	for p, fn := range o.Validators {
		if fn == nil {
			return fmt.Errorf("%w: nil validator for %q", ErrInvalidOptions, p)
		}
	}
	for from, to := range o.KeyMappings {
		if from == "" || to == "" {
			return fmt.Errorf("%w: empty key in mapping %q -> %q", ErrInvalidOptions, from, to)
		}
	}
	return nil
}

func (o *Options) conflictPolicy(path string) ConflictResolution {
	if p, ok := o.PathPolicies[path]; ok && p.ConflictResolution != nil {
		return p.ConflictResolution.normalize()
	}
	return o.ConflictResolution.normalize()
}

func (o *Options) arrayPolicy(path string) ArrayMerge {
	if p, ok := o.PathPolicies[path]; ok && p.ArrayMerge != nil {
		return *p.ArrayMerge
	}
	return o.ArrayMerge
}

func (o *Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// Option adjusts the options of a single call.
type Option func(*Options)

// WithStrategy sets [Options.Strategy].
func WithStrategy(s Strategy) Option {
	return func(o *Options) { o.Strategy = s }
}

// WithConflictResolution sets [Options.ConflictResolution].
func WithConflictResolution(r ConflictResolution) Option {
	return func(o *Options) { o.ConflictResolution = r }
}

// WithArrayMerge sets [Options.ArrayMerge].
func WithArrayMerge(a ArrayMerge) Option {
	return func(o *Options) { o.ArrayMerge = a }
}

// WithPreserveOrder sets [Options.PreserveOrder].
func WithPreserveOrder(b bool) Option {
	return func(o *Options) { o.PreserveOrder = b }
}

// WithRemoveDuplicates sets [Options.RemoveDuplicates].
func WithRemoveDuplicates(b bool) Option {
	return func(o *Options) { o.RemoveDuplicates = b }
}

// WithIgnoreNull sets [Options.IgnoreNull].
func WithIgnoreNull(b bool) Option {
	return func(o *Options) { o.IgnoreNull = b }
}

// WithIgnoreEmpty sets [Options.IgnoreEmpty].
func WithIgnoreEmpty(b bool) Option {
	return func(o *Options) { o.IgnoreEmpty = b }
}

// WithLogger sets [Options.Logger].
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithPathPolicy sets a policy for path. See [Options.SetPathPolicy].
func WithPathPolicy(path string, p PathPolicy) Option {
	return func(o *Options) { o.SetPathPolicy(path, p) }
}
