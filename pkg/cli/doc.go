/*
Package cli provides command-line interface utilities for the roxy command.

Error Types:

Commands wrap failures in typed errors so the top level can distinguish
configuration problems from runtime ones:

	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", err.Error())
	}

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	// Use ctx for operations that should be cancelled on shutdown
*/
package cli
