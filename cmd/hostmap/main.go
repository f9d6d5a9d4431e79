// Package main is the entry point for the hostmap CLI.
//
// HostMap can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	hostmap serve                      # Scan the whole IPv4 space with defaults
//	hostmap serve -c config.yaml       # Start with a config file
//	hostmap validate -c config.yaml    # Validate configuration
//	hostmap version                    # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "hostmap",
	Short: "A live map of reachable hosts on the internet",
	Long: `HostMap samples random IPv4 addresses, pings them, looks up where
they are, and shows the results on a live web map.

Quick start:
  1. Run: hostmap serve
  2. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  concurrency: 32
  range:
    first: 1.0.0.0
    last: 223.255.255.255
    exclude_reserved: true
  storage:
    driver: badger
    path: ./data

Pinging requires the system ping command; on some systems it needs
extra privileges.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this hostmap binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hostmap %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
