// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/spf13/cobra"

	"github.com/sam-fredrickson/datamerge"
	"github.com/sam-fredrickson/datamerge/value"
)

const (
	emitDocument   = "document"
	emitMergePatch = "merge-patch"
)

type mergeFlags struct {
	out           string
	format        string
	diff          bool
	emit          string
	showConflicts bool
}

func newMergeCmd(g *globalFlags) *cobra.Command {
	f := &mergeFlags{}
	cmd := &cobra.Command{
		Use:   "merge FILE...",
		Short: "Merge files and print the result",
		Long: `Merge folds every FILE into the first one, left to right, and writes the result.

The output format defaults to the format of the first file. When the merge
config declares a schema, the result is validated and the command exits with
status 2 if any rule fails.`,
		Example: `  # merge an environment overlay into a common base
  datamerge merge -o config.yaml base.yaml prod.yaml

  # show what the overlay changes
  datamerge merge --diff base.yaml prod.yaml

  # emit an RFC 7396 merge patch from base to the merged result
  datamerge merge --emit merge-patch -f json base.yaml prod.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cfg, err := g.setup(cmd)
			if err != nil {
				return err
			}
			schema, err := cfg.schema()
			if err != nil {
				return err
			}
			return runMerge(cmd.Context(), e, schema, args, f, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.out, "out", "o", "", "output file path (default: stdout)")
	fl.StringVarP(&f.format, "format", "f", "", "output format [json, yaml, toml] (default: format of the first file)")
	fl.BoolVar(&f.diff, "diff", false, "print a line diff from the first file to the result instead of the result")
	fl.StringVar(&f.emit, "emit", emitDocument, "what to write [document, merge-patch]")
	fl.BoolVar(&f.showConflicts, "show-conflicts", false, "list resolved conflicts on stderr")
	return cmd
}

func runMerge(
	ctx context.Context,
	e *datamerge.Engine,
	schema datamerge.Schema,
	files []string,
	f *mergeFlags,
	stdout, stderr io.Writer,
) error {
	if len(files) == 0 {
		return errors.New("no files to merge")
	}
	if f.emit != emitDocument && f.emit != emitMergePatch {
		return fmt.Errorf("invalid --emit %q (must be %s or %s)", f.emit, emitDocument, emitMergePatch)
	}
	if f.diff && f.emit == emitMergePatch {
		return fmt.Errorf("--diff cannot be combined with --emit %s", emitMergePatch)
	}

	docs, err := loadDocuments(ctx, files)
	if err != nil {
		return err
	}
	codec := docs[0].codec
	if f.format != "" {
		if codec, err = value.CodecFor(f.format); err != nil {
			return err
		}
	}

	sources := documentValues(docs)
	var res datamerge.Result
	if schema != nil {
		res, err = e.MergeWithValidation(ctx, sources, schema)
	} else {
		res, err = e.Merge(ctx, sources)
	}
	if err != nil {
		return fmt.Errorf("merge failed while processing files %v: %w", files, err)
	}

	var out []byte
	switch {
	case f.emit == emitMergePatch:
		out, err = mergePatch(codec, docs[0].value, res.Value)
	case f.diff:
		out, err = diffOutput(codec, docs[0].value, res.Value)
	default:
		out, err = codec.Encode(res.Value)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal result as %s: %w", codec.Name(), err)
	}

	if err := writeOutput(f.out, stdout, out); err != nil {
		return err
	}

	if f.showConflicts {
		printConflicts(stderr, res.Conflicts)
	}
	if !res.Success {
		printValidationErrors(stderr, res.Metadata.ValidationErrors)
		return validationError(len(res.Metadata.ValidationErrors))
	}
	return nil
}

// mergePatch returns the JSON merge patch that turns base into merged,
// re-encoded with codec.
func mergePatch(codec value.Codec, base, merged value.Value) ([]byte, error) {
	original, err := base.MarshalJSON()
	if err != nil {
		return nil, err
	}
	modified, err := merged.MarshalJSON()
	if err != nil {
		return nil, err
	}
	patch, err := jsonpatch.CreateMergePatch(original, modified)
	if err != nil {
		return nil, err
	}
	v, err := value.JSON.Decode(patch)
	if err != nil {
		return nil, err
	}
	return codec.Encode(v)
}

func diffOutput(codec value.Codec, base, merged value.Value) ([]byte, error) {
	before, err := codec.Encode(base)
	if err != nil {
		return nil, err
	}
	after, err := codec.Encode(merged)
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	printDiff(&b, lineDiff(string(before), string(after)))
	return b.Bytes(), nil
}

func writeOutput(path string, stdout io.Writer, data []byte) error {
	if path == "" {
		if _, err := stdout.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
