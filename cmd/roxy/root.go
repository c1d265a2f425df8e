package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"roxy-hq/roxy/pkg/config"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "roxy",
	Short: "Roxy - latency-aware proxy gateway",
	Long: `Roxy is a latency-aware HTTP(S) proxy gateway backed by a pool of
upstream proxy endpoints.

Every request is routed through one endpoint of the pool, selected by a
per-request strategy:
  - minlatency: the fastest measured endpoint (default)
  - random:     uniform pick from the fastest 30
  - country:    the fastest endpoint exiting in a given country
  - binance:    uniform pick from the fastest 20 outside JP

A background prober keeps per-endpoint latencies fresh; endpoints slower
than the configured ceiling are never selected.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// initLogging installs the process-wide slog logger from config. The
// --verbose flag lowers the level to debug regardless of config.
func initLogging(cfg *config.Config) {
	var level slog.Level
	switch cfg.Telemetry.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Telemetry.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
