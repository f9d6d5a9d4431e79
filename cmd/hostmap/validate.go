package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/hostmap"
	"github.com/jpalmerr/hostmap/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a HostMap configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  hostmap validate -c config.yaml
  hostmap validate --config /etc/hostmap/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	hm, err := hostmap.New(opts...)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	first, last := hm.AddressRange()
	reserved := "included"
	if cfg.Range.ExcludeReserved {
		reserved = "excluded"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:        %d\n", hm.Port())
	fmt.Fprintf(out, "  Concurrency: %d\n", hm.Concurrency())
	fmt.Fprintf(out, "  Range:       %s - %s (reserved blocks %s)\n", first, last, reserved)
	fmt.Fprintf(out, "  Addresses:   %s\n", humanize.Comma(int64(hm.AddressCount())))
	fmt.Fprintf(out, "  Storage:     %s\n", cfg.Storage.Driver)

	return nil
}
