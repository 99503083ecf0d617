// Package main is the entry point for the enrichgpt CLI.
package main

import (
	"os"

	"github.com/jmylchreest/enrichgpt/cmd/enrichgpt/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
