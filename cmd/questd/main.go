// Questd answers data-competition questions by routing each query across
// a registry of specialist agents.
//
// The daemon classifies a query with rule-based matching, scores agents by
// keyword affinity with a semantic tie-break, executes the selected
// topology, and caches stable single-agent answers. Competition corpora
// are materialized lazily into the configured vector store on first use.
//
// Usage:
//
//	# Start the HTTP daemon
//	questd serve
//
//	# Ask a one-shot question from the terminal
//	questd ask --competition titanic "What is the evaluation metric?"
//
//	# Show version information
//	questd version
//
// Configuration is read from ~/.config/questd/config.yaml and overridden
// by environment variables. See internal/config for details.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the --config flag value; empty means the default path.
var configPath string

var rootCmd = &cobra.Command{
	Use:   "questd",
	Short: "Query routing daemon for data-competition assistants",
	Long: `questd classifies competition questions, routes them to specialist
agents, and serves answers over HTTP or the terminal.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("questd by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.config/questd/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
