package main

import (
	"log/slog"
	"os"

	"github.com/zeuslawyer/remix-simulator/cmd"
)

// Set by goreleaser
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := cmd.NewCommand(version, commit)
	if err := rootCmd.Execute(); err != nil {
		slog.Error("Encountered an error", "error", err.Error())
		os.Exit(1)
	}
}
