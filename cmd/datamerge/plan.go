// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/sam-fredrickson/datamerge"
)

var errConflictsFound = errors.New("sources conflict")

type planFlags struct {
	json           bool
	failOnConflict bool
}

func newPlanCmd(g *globalFlags) *cobra.Command {
	f := &planFlags{}
	cmd := &cobra.Command{
		Use:   "plan FILE...",
		Short: "Show what a merge would do without merging",
		Long: `Plan lists every path found in the files and classifies it as an add, an
update or a conflict. Conflicts show the value the merge would pick.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := g.setup(cmd)
			if err != nil {
				return err
			}
			return runPlan(cmd.Context(), e, args, f, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&f.json, "json", false, "print the plan as JSON")
	cmd.Flags().BoolVar(&f.failOnConflict, "fail-on-conflict", false, "exit with an error when any path conflicts")
	return cmd
}

func runPlan(ctx context.Context, e *datamerge.Engine, files []string, f *planFlags, w io.Writer) error {
	docs, err := loadDocuments(ctx, files)
	if err != nil {
		return err
	}
	plan, err := e.CreateMergePlan(ctx, documentValues(docs))
	if err != nil {
		return err
	}

	if f.json {
		data, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal plan: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return err
		}
	} else {
		printPlan(w, plan)
	}

	if f.failOnConflict && plan.HasConflicts() {
		return fmt.Errorf("%w: %s", errConflictsFound,
			countLabel(len(plan.Conflicts), "conflict", "conflicts"))
	}
	return nil
}
