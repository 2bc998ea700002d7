package main

import (
	"os"

	"github.com/proppilot/indices/cmd/indices/commands"
)

// main is the entry point for the indices CLI: go run ./cmd/indices [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
