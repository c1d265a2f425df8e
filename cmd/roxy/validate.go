package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"roxy-hq/roxy/pkg/cli"
	"roxy-hq/roxy/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration without starting anything",
	Long: `Load the configuration file, apply defaults and environment overrides,
and run validation. Nothing is started and no registry connection is made.

Examples:
  # Validate the default config file
  roxy validate

  # Validate a specific file
  roxy validate --config /etc/roxy/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}

	fmt.Println("✓ Configuration valid")
	fmt.Printf("  gateway:  %s\n", cfg.Gateway.ListenAddress)
	fmt.Printf("  registry: %s\n", cfg.Registry.Driver)
	fmt.Printf("  ceiling:  %dms\n", cfg.Selector.MaxLatencyMS)
	fmt.Printf("  schedule: %s\n", cfg.Prober.Schedule)
	return nil
}
