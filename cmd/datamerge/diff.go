// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// diffLine is one line of a line-oriented diff. Op is ' ', '-' or '+'.
type diffLine struct {
	Op   byte
	Text string
}

// lineDiff compares before and after line by line.
func lineDiff(before, after string) []diffLine {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out []diffLine
	for _, d := range diffs {
		op := byte(' ')
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = '-'
		case diffmatchpatch.DiffInsert:
			op = '+'
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out = append(out, diffLine{Op: op, Text: strings.TrimSuffix(line, "\n")})
		}
	}
	return out
}

// printDiff renders lines in unified style with colored additions and removals.
func printDiff(w io.Writer, lines []diffLine) {
	for _, l := range lines {
		switch l.Op {
		case '-':
			_, _ = removeColor.Fprintf(w, "-%s\n", l.Text)
		case '+':
			_, _ = addColor.Fprintf(w, "+%s\n", l.Text)
		default:
			_, _ = io.WriteString(w, " "+l.Text+"\n")
		}
	}
}
