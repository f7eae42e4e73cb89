// SPDX-License-Identifier: Apache-2.0

// Command datamerge-krm is a KRM function that merges groups of annotated
// ConfigMaps into one ConfigMap per group.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := Run(context.Background(), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "datamerge-krm:", err)
		os.Exit(1)
	}
}
