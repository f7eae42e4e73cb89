// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sam-fredrickson/datamerge"
)

// globalFlags holds the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	verbose    bool
	noColor    bool

	strategy string
	conflict string
	array    string

	preserveOrder    bool
	removeDuplicates bool
	ignoreNull       bool
	ignoreEmpty      bool

	keyMap map[string]string
}

func newRootCmd(version string) *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:     "datamerge",
		Version: version,
		Short:   "Merge structured documents",
		Long: `datamerge folds YAML, JSON and TOML documents left to right into one document.

Objects are merged key by key, arrays with the selected array strategy, and
differing scalars with the selected conflict policy. Later files win by default.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.noColor {
				color.NoColor = true
			}
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "merge config file (default: datamerge.yaml in the working directory, if present)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "log conflicts and merge details to stderr")
	pf.BoolVar(&g.noColor, "no-color", false, "disable colored output")
	pf.StringVar(&g.strategy, "strategy", "", "merge strategy [deep, append, merge, replace, join, array]")
	pf.StringVar(&g.conflict, "conflict", "", "conflict resolution [override, preserve, error, array, concat, sum, average, min, max]")
	pf.StringVar(&g.array, "array", "", "array merge [concat, replace, merge, unique, union, intersection, override, combine, zip]")
	pf.BoolVar(&g.preserveOrder, "preserve-order", true, "keep source order for union arrays")
	pf.BoolVar(&g.removeDuplicates, "remove-duplicates", true, "drop array elements whose identity was already seen")
	pf.BoolVar(&g.ignoreNull, "ignore-null", true, "skip null documents")
	pf.BoolVar(&g.ignoreEmpty, "ignore-empty", false, "skip empty documents")
	pf.StringToStringVar(&g.keyMap, "key-map", nil, "rename keys of later documents, e.g. servers=hosts")

	root.AddCommand(newMergeCmd(g))
	root.AddCommand(newPlanCmd(g))
	return root
}

// setup loads the merge config and builds the engine described by it and by
// any flags set on cmd.
func (g *globalFlags) setup(cmd *cobra.Command) (*datamerge.Engine, *fileConfig, error) {
	cfg, err := loadConfig(g.configPath)
	if err != nil {
		return nil, nil, err
	}

	opts := datamerge.DefaultOptions()
	if err := cfg.apply(&opts); err != nil {
		return nil, nil, fmt.Errorf("config %s: %w", cfg.source, err)
	}
	if err := g.apply(cmd, &opts); err != nil {
		return nil, nil, err
	}
	opts.Logger = newLogger(cmd.ErrOrStderr(), g.verbose)

	e, err := datamerge.New(opts)
	if err != nil {
		return nil, nil, err
	}
	return e, cfg, nil
}

// apply copies explicitly set flags into opts. Flags left at their defaults
// do not override the config file.
func (g *globalFlags) apply(cmd *cobra.Command, opts *datamerge.Options) error {
	flags := cmd.Flags()
	if flags.Changed("strategy") {
		s, err := datamerge.ParseStrategy(g.strategy)
		if err != nil {
			return err
		}
		opts.Strategy = s
	}
	if flags.Changed("conflict") {
		r, err := datamerge.ParseConflictResolution(g.conflict)
		if err != nil {
			return err
		}
		opts.ConflictResolution = r
	}
	if flags.Changed("array") {
		a, err := datamerge.ParseArrayMerge(g.array)
		if err != nil {
			return err
		}
		opts.ArrayMerge = a
	}
	if flags.Changed("preserve-order") {
		opts.PreserveOrder = g.preserveOrder
	}
	if flags.Changed("remove-duplicates") {
		opts.RemoveDuplicates = g.removeDuplicates
	}
	if flags.Changed("ignore-null") {
		opts.IgnoreNull = g.ignoreNull
	}
	if flags.Changed("ignore-empty") {
		opts.IgnoreEmpty = g.ignoreEmpty
	}
	for from, to := range g.keyMap {
		opts.RegisterKeyMapping(from, to)
	}
	return nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
