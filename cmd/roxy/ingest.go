package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"roxy-hq/roxy/pkg/cli"
	"roxy-hq/roxy/pkg/config"
	"roxy-hq/roxy/pkg/ingest"
	"roxy-hq/roxy/pkg/registry"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Discover provider endpoints and seed the registry",
	Long: `Walk the provider's gateway port range, resolve each port's exit
identity, and register the endpoints.

Newly discovered endpoints start unmeasured and become selectable after the
next latency sweep. Re-running discovery is idempotent: known endpoints are
left untouched.

Examples:
  # Discover with default config
  roxy ingest

  # Discover into a specific registry
  roxy ingest --config /etc/roxy/config.yaml`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	initLogging(cfg)

	ctx := cli.SetupSignalHandler()

	store, err := registry.Open(ctx, &cfg.Registry)
	if err != nil {
		return cli.NewCommandError("ingest", err)
	}
	defer func() { _ = store.Close() }()

	c := ingest.New(store, &cfg.Ingest)
	if err := c.Run(ctx); err != nil {
		return cli.NewCommandError("ingest", err)
	}

	fmt.Println("✓ Discovery finished")
	return nil
}
