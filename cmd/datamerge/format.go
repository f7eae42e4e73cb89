// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/sam-fredrickson/datamerge"
	"github.com/sam-fredrickson/datamerge/value"
	"github.com/sam-fredrickson/datamerge/vpath"
)

var (
	// fatih/color disables these when stdout is not a terminal.
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	headerColor  = color.New(color.FgBlue, color.Bold)
	dimColor     = color.New(color.FgHiBlack)

	addColor       = color.New(color.FgGreen)
	updateColor    = color.New(color.FgCyan)
	conflictColor  = color.New(color.FgYellow)
	transformColor = color.New(color.FgMagenta)
	removeColor    = color.New(color.FgRed)
)

func actionColor(a datamerge.Action) *color.Color {
	switch a {
	case datamerge.ActionAdd:
		return addColor
	case datamerge.ActionUpdate:
		return updateColor
	case datamerge.ActionConflict:
		return conflictColor
	case datamerge.ActionTransform:
		return transformColor
	default:
		return dimColor
	}
}

// printSection prints a section header.
func printSection(w io.Writer, title string) {
	_, _ = headerColor.Fprintf(w, "▸ %s\n", title)
}

// printPlan prints one line per operation, aligned on the path column.
func printPlan(w io.Writer, plan *datamerge.MergePlan) {
	printSection(w, fmt.Sprintf("plan: %s, %s",
		countLabel(len(plan.Operations), "operation", "operations"),
		countLabel(len(plan.Conflicts), "conflict", "conflicts")))
	if len(plan.Operations) == 0 {
		_, _ = dimColor.Fprintln(w, "  nothing to merge")
		return
	}

	width := 0
	for _, op := range plan.Operations {
		width = max(width, len(vpath.Display(op.Path)))
	}
	for _, op := range plan.Operations {
		_, _ = actionColor(op.Action).Fprintf(w, "  %-9s", op.Action)
		fmt.Fprintf(w, " %-*s", width, vpath.Display(op.Path))
		switch {
		case op.Action == datamerge.ActionConflict && op.Resolution != nil:
			fmt.Fprintf(w, "  %s → %s", joinValues(op.Values), *op.Resolution)
		case len(op.Values) > 0:
			fmt.Fprintf(w, "  %s", joinValues(op.Values))
		}
		fmt.Fprintln(w)
	}
}

// printConflicts prints the conflicts a merge resolved.
func printConflicts(w io.Writer, conflicts []datamerge.Conflict) {
	if len(conflicts) == 0 {
		_, _ = successColor.Fprintln(w, "✓ no conflicts")
		return
	}
	_, _ = warningColor.Fprintf(w, "⚠ %s\n", countLabel(len(conflicts), "conflict", "conflicts"))
	for _, c := range conflicts {
		_, _ = conflictColor.Fprintf(w, "  %s", vpath.Display(c.Path))
		fmt.Fprintf(w, ": %s → %s\n", joinValues(c.Values), c.Resolved)
	}
}

// printValidationErrors prints one line per failed validator.
func printValidationErrors(w io.Writer, errs []string) {
	for _, msg := range errs {
		_, _ = errorColor.Fprintf(w, "✗ %s\n", msg)
	}
}

func joinValues(values []value.Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func countLabel(count int, singular, plural string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}
