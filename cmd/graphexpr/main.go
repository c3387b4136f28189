// Package main provides the graphexpr command-line tool.
package main

import (
	"os"

	"github.com/randalmurphal/graphexpr/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
