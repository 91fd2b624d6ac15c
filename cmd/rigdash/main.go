// rigdash - console for a remote test rig
//
// This is the main entry point for the rigdash console. It serves a local
// dashboard over the rig's HTTP API: live plots, experiment control, pin
// testing and the rig's error log, and republishes what it sees to MQTT and
// time-series databases when those are configured.
//
//	rigdash serve --config configs/config.yaml
//	rigdash export -f xlsx -o run.xlsx sensor/0 sensor/1
//	rigdash pins read adc 3
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/rigdash/internal/infrastructure/config"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// configEnv names the config file when --config is not given.
const configEnv = "RIGDASH_CONFIG"

func main() {
	// Cancel on Ctrl+C or SIGTERM so every subcommand shuts down cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Each call returns a fresh tree so
// tests can execute commands independently.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "rigdash",
		Short:         "Console for a remote test rig",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default $"+configEnv+", or built-in defaults)")

	load := func() (*config.Config, error) {
		return loadConfig(configPath)
	}

	root.AddCommand(
		newServeCmd(load),
		newExportCmd(load),
		newPinsCmd(load),
	)
	return root
}

// loadConfig reads the config file named by the flag or the environment.
// With neither set, the built-in defaults are used with RIGDASH_*
// overrides applied.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv(configEnv)
	}
	if path == "" {
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validating default config: %w", err)
		}
		return cfg, nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newServeCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}
