package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"roxy-hq/roxy/pkg/cli"
	"roxy-hq/roxy/pkg/config"
	"roxy-hq/roxy/pkg/prober"
	"roxy-hq/roxy/pkg/registry"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one latency sweep and exit",
	Long: `Probe every registered endpoint once and write the measured latencies
back to the registry.

The sweep honors the configured concurrency cap, per-probe timeout, and
overall sweep timeout. Updates committed before the sweep deadline are kept
even when the sweep times out.

Examples:
  # Sweep with default config
  roxy sweep

  # Sweep against a specific registry
  roxy sweep --config /etc/roxy/config.yaml`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	initLogging(cfg)

	ctx := cli.SetupSignalHandler()

	store, err := registry.Open(ctx, &cfg.Registry)
	if err != nil {
		return cli.NewCommandError("sweep", err)
	}
	defer func() { _ = store.Close() }()

	p := prober.New(store, prober.NewSystemPinger(cfg.Prober.PingDeadline), &cfg.Prober, nil)

	start := time.Now()
	if err := p.RunSweep(ctx); err != nil {
		return cli.NewCommandError("sweep", err)
	}

	fmt.Printf("✓ Sweep finished in %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}
