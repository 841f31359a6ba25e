// Package main is the entry point for the mindvault CLI.
package main

import (
	"os"

	"github.com/mindvault/mindvault/cmd/mindvault/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
