package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"roxy-hq/roxy/pkg/cli"
	"roxy-hq/roxy/pkg/config"
	"roxy-hq/roxy/pkg/gateway"
	"roxy-hq/roxy/pkg/prober"
	"roxy-hq/roxy/pkg/registry"
	"roxy-hq/roxy/pkg/selector"
	"roxy-hq/roxy/pkg/telemetry/health"
	"roxy-hq/roxy/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	noScheduler   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Roxy gateway",
	Long: `Start the Roxy gateway with the specified configuration.

The gateway listens on the configured address, selects one upstream proxy
endpoint per request, and relays the exchange. The latency prober runs on
its configured schedule in the background.

Examples:
  # Start with default config
  roxy run

  # Start with custom config
  roxy run --config /etc/roxy/config.yaml

  # Override listen address
  roxy run --listen 0.0.0.0:8080

  # Serve without the background sweep scheduler
  roxy run --no-scheduler`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.noScheduler, "no-scheduler", false, "disable the background sweep scheduler")
}

func runGateway(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Gateway.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	initLogging(cfg)

	fmt.Printf("Roxy v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	ctx := cli.SetupSignalHandler()

	store, err := registry.Open(ctx, &cfg.Registry)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() { _ = store.Close() }()
	fmt.Printf("✓ Registry opened (%s)\n", cfg.Registry.Driver)

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	sel := selector.New(store, &cfg.Selector, collector)

	p := prober.New(store, prober.NewSystemPinger(cfg.Prober.PingDeadline), &cfg.Prober, collector)
	if !runFlags.noScheduler {
		scheduler := prober.NewScheduler(p, cfg.Prober.Schedule)
		if err := scheduler.Start(ctx); err != nil {
			return cli.NewCommandError("run", err)
		}
		defer scheduler.Stop()
		if scheduler.IsRunning() {
			fmt.Printf("✓ Sweep scheduler started (%s)\n", cfg.Prober.Schedule)
		}
	}

	checker := health.New(0)
	checker.RegisterCheck("registry", store.Ping)

	srv := gateway.NewServer(cfg, sel, collector, checker)

	fmt.Printf("✓ Gateway listening on %s\n", cfg.Gateway.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Gateway.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Println("✓ Gateway stopped")
	return nil
}
