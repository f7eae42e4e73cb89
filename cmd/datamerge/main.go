// SPDX-License-Identifier: Apache-2.0

// Command datamerge merges YAML, JSON and TOML documents.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCmd(version)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errValidationFailed) {
			_, _ = errorColor.Fprintf(os.Stderr, "✗ %v\n", err)
		}
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode maps a command error to a process exit status. A merge that
// completed with failed validators exits with 2, every other failure with 1.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errValidationFailed):
		return 2
	default:
		return 1
	}
}

var errValidationFailed = errors.New("validation failed")

func validationError(n int) error {
	return fmt.Errorf("%w: %d error(s)", errValidationFailed, n)
}
