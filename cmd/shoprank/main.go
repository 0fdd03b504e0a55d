// Package main provides the entry point for the shoprank CLI.
package main

import (
	"os"

	"github.com/shoprank/shoprank/cmd/shoprank/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
