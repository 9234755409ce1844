// Package main is the entry point for the rephole CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/twodHQ/rephole/internal/config"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rephole",
		Short: "Semantic code search backend",
		Long: `Rephole indexes Git repositories into a vector store and serves
parent-child semantic retrieval over the indexed code.

The API server accepts ingestion requests and search queries; workers
consume the durable job queue, chunk source files with tree-sitter, and
embed them for retrieval.`,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(workerCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from the .env file and environment.
func loadConfig(envFile string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
