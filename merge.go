// SPDX-License-Identifier: Apache-2.0

// Package datamerge folds an ordered list of semi-structured documents into one.
//
// Objects are merged key by key, arrays by one of several array strategies, and
// differing scalars by a conflict-resolution policy. Every decision can be
// overridden for an exact path (see the [vpath] package for the path syntax)
// with custom mergers, transformers, validators and path policies. A merge
// plan describes what a merge would do without performing it.
//
// Documents are [value.Value] trees; the value package converts to and from
// JSON, YAML and TOML.
package datamerge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sam-fredrickson/datamerge/value"
	"github.com/sam-fredrickson/datamerge/vpath"
)

// Sentinel errors for simple error checking with [errors.Is].
// For detailed error information, use [errors.As] with the typed errors below.
var (
	// ErrConflict indicates a conflict under [ResolveError] aborted the merge.
	ErrConflict = errors.New("merge conflict")
	// ErrInvalidSchema indicates a validation rule that cannot be compiled.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrMarshal indicates a decoding or encoding operation failed.
	ErrMarshal = errors.New("marshal error")
	// ErrInvalidOptions indicates invalid merge options were provided.
	ErrInvalidOptions = errors.New("invalid options")
)

// ConflictError is returned when two values conflict under [ResolveError].
type ConflictError struct {
	// Path is where in the document the conflict occurred.
	Path string
	// Values are the conflicting values, earliest source first.
	Values []value.Value
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting values at path %s: %v", vpath.Display(e.Path), e.Values)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// MarshalError is returned when decoding or encoding a document fails.
type MarshalError struct {
	// Err is the underlying error returned by the codec.
	Err error
	// DocIndex tells which document the error occurred in. It is -1 for the merged result.
	DocIndex int
}

func (e *MarshalError) Error() string {
	if e.DocIndex < 0 {
		return fmt.Sprintf("cannot marshal merged document: %v", e.Err)
	}
	return fmt.Sprintf("cannot marshal document at position %d: %v", e.DocIndex, e.Err)
}

func (e *MarshalError) Unwrap() error {
	return e.Err
}

func (e *MarshalError) Is(target error) bool {
	return target == ErrMarshal
}

// Conflict records one reconciliation of differing values.
type Conflict struct {
	Path     string        `json:"path"`
	Values   []value.Value `json:"values"`
	Resolved value.Value   `json:"resolved"`
}

// Metadata describes how a result was produced.
type Metadata struct {
	// SourceCount is the number of sources left after filtering.
	SourceCount int
	// MergedPaths lists every object member visited, in first-visit order.
	MergedPaths []string
	// TransformedPaths lists every path a transformer rewrote, in first-visit order.
	TransformedPaths []string
	// ValidationErrors holds one message per failed validator.
	ValidationErrors []string
}

// Result is the outcome of a completed merge.
type Result struct {
	// Success is false when any validator failed.
	Success bool
	// Value is the merged document.
	Value     value.Value
	Conflicts []Conflict
	Metadata  Metadata
}

// ConflictsAt returns the conflicts recorded at path.
func (r Result) ConflictsAt(path string) []Conflict {
	var out []Conflict
	for _, c := range r.Conflicts {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// Engine merges documents with a fixed configuration.
//
// An Engine never changes after [New] returns, so it is safe for concurrent use.
// Extension functions registered in its options are called from the goroutine
// that invoked the merge.
type Engine struct {
	opts Options
}

// New creates an [Engine] from a private copy of opts.
// Returns an error if a registry holds a nil function or an empty key mapping.
func New(opts Options) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Engine{opts: opts.Clone()}, nil
}

// Options returns a copy of the options configured for this [Engine].
func (e *Engine) Options() Options {
	return e.opts.Clone()
}

// With returns a new [Engine] with overrides applied on top of e's options.
func (e *Engine) With(overrides ...Option) *Engine {
	return &Engine{opts: e.callOptions(overrides)}
}

func (e *Engine) callOptions(overrides []Option) Options {
	if len(overrides) == 0 {
		return e.opts
	}
	o := e.opts.Clone()
	for _, fn := range overrides {
		fn(&o)
	}
	return o
}

// Merge merges sources with [DefaultOptions] adjusted by overrides.
// See [Engine.Merge] for details.
func Merge(ctx context.Context, sources []value.Value, overrides ...Option) (Result, error) {
	return (&Engine{opts: DefaultOptions()}).Merge(ctx, sources, overrides...)
}

// Merge folds sources left to right into one value.
//
// Null sources are dropped when IgnoreNull is set and empty ones when
// IgnoreEmpty is set. With nothing left, the result is an empty object, or an
// empty array under [StrategyArray]. Otherwise each source is merged into the
// running result, so for [ResolveOverride] the last source wins every
// conflict. Validators run on the final value; their failures set
// Success to false but do not discard the result.
//
// An error is returned, and no result, when a conflict occurs under
// [ResolveError] (a [*ConflictError]), when an extension function fails, or
// when ctx is done.
func (e *Engine) Merge(ctx context.Context, sources []value.Value, overrides ...Option) (Result, error) {
	opts := e.callOptions(overrides)
	r := newRun(ctx, &opts)

	srcs := opts.filter(sources)
	if len(srcs) == 0 {
		empty := value.EmptyObject()
		if opts.Strategy.normalize() == StrategyArray {
			empty = value.EmptyArray()
		}
		return Result{Success: true, Value: empty}, nil
	}

	result := srcs[0]
	for _, src := range srcs[1:] {
		var err error
		result, err = r.dispatch(result, src, vpath.Root)
		if err != nil {
			return Result{}, err
		}
	}

	validationErrors, err := r.validate(result)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Success:   len(validationErrors) == 0,
		Value:     result,
		Conflicts: r.conflicts,
		Metadata: Metadata{
			SourceCount:      len(srcs),
			MergedPaths:      r.merged.list(),
			TransformedPaths: r.transformed.list(),
			ValidationErrors: validationErrors,
		},
	}
	r.log.DebugContext(ctx, "merge complete",
		slog.Int("sources", len(srcs)),
		slog.Int("conflicts", len(res.Conflicts)),
		slog.Bool("success", res.Success))
	return res, nil
}

// MergeWith merges a and b under strategy and returns only the merged value.
func (e *Engine) MergeWith(ctx context.Context, a, b value.Value, strategy Strategy, overrides ...Option) (value.Value, error) {
	overrides = append(slices.Clone(overrides), WithStrategy(strategy))
	res, err := e.Merge(ctx, []value.Value{a, b}, overrides...)
	if err != nil {
		return value.Value{}, err
	}
	return res.Value, nil
}

// MergeMarshal decodes docs with codec, merges them with [Engine.Merge], and
// encodes the result with the same codec.
//
// Returns an empty byte slice if docs is empty. Decoding and encoding failures
// are reported as [*MarshalError].
func (e *Engine) MergeMarshal(ctx context.Context, codec value.Codec, docs ...[]byte) ([]byte, Result, error) {
	if len(docs) == 0 {
		return []byte{}, Result{Success: true}, nil
	}

	sources := make([]value.Value, len(docs))
	for i, doc := range docs {
		v, err := codec.Decode(doc)
		if err != nil {
			return nil, Result{}, &MarshalError{Err: err, DocIndex: i}
		}
		sources[i] = v
	}

	res, err := e.Merge(ctx, sources)
	if err != nil {
		return nil, Result{}, err
	}

	out, err := codec.Encode(res.Value)
	if err != nil {
		return nil, Result{}, &MarshalError{Err: err, DocIndex: -1}
	}
	return out, res, nil
}

func (o *Options) filter(sources []value.Value) []value.Value {
	out := make([]value.Value, 0, len(sources))
	for _, s := range sources {
		if o.IgnoreNull && s.IsNull() {
			continue
		}
		if o.IgnoreEmpty && s.IsEmpty() {
			continue
		}
		out = append(out, s)
	}
	return out
}

// run holds the state of a single merge call.
type run struct {
	ctx         context.Context
	opts        *Options
	log         *slog.Logger
	conflicts   []Conflict
	merged      pathSet
	transformed pathSet
}

func newRun(ctx context.Context, opts *Options) *run {
	return &run{ctx: ctx, opts: opts, log: opts.logger()}
}

// pathSet is a set of paths that remembers insertion order.
type pathSet struct {
	seen  map[string]struct{}
	order []string
}

func (s *pathSet) add(p string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[p]; ok {
		return
	}
	s.seen[p] = struct{}{}
	s.order = append(s.order, p)
}

func (s *pathSet) list() []string {
	return slices.Clone(s.order)
}

func (r *run) validate(result value.Value) ([]string, error) {
	if len(r.opts.Validators) == 0 {
		return nil, nil
	}
	var msgs []string
	for _, p := range sortedKeys(r.opts.Validators) {
		if err := r.ctx.Err(); err != nil {
			return nil, err
		}
		v, ok := vpath.Get(result, p)
		if !ok {
			v = value.Null()
		}
		passed, err := r.opts.Validators[p](r.ctx, v, p)
		var msg string
		switch {
		case err != nil:
			msg = fmt.Sprintf("%s: %v", vpath.Display(p), err)
		case !passed:
			msg = fmt.Sprintf("%s: validation failed", vpath.Display(p))
		default:
			continue
		}
		r.log.WarnContext(r.ctx, "validation failed", slog.String("path", p), slog.String("error", msg))
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
