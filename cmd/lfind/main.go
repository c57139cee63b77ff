// Package main provides the entry point for the lfind CLI.
package main

import (
	"os"

	"github.com/dshills/lfind/cmd/lfind/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
