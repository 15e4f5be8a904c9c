// Package main provides the pyblocks command.
package main

import (
	"os"

	"github.com/leapstack-labs/pyblocks/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
