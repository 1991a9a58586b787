package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nvandessel/rendezvous/internal/config"
	"github.com/nvandessel/rendezvous/internal/logging"
	"github.com/nvandessel/rendezvous/internal/srt"
	"github.com/spf13/cobra"
)

// Overridden with -ldflags "-X main.version=..." in release builds.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rendezvous",
		Short: "Semantic rendezvous - meet by matching a shared sensory pattern",
		Long: `rendezvous derives a target sensory pattern from a shared secret token and
a context salt, decides from noisy measurements whether two parties are
experiencing that pattern, and estimates how often strangers would match
by accident.`,
		SilenceUsage: true,
	}

	// Global flags
	addGlobalFlags(rootCmd)

	rootCmd.AddCommand(
		newVersionCmd(),
		newTokenCmd(),
		newDeriveCmd(),
		newMatchCmd(),
		newSimulateCmd(),
		newHistoryCmd(),
		newConfigCmd(),
		newWatchCmd(),
		newMCPServerCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	cmd.PersistentFlags().String("log-level", "", "Log level: info, debug, or trace (overrides config)")
	cmd.PersistentFlags().String("config", "", "Config file path (default ~/.rendezvous/config.yaml)")
}

// loadConfig loads configuration honoring --config and --log-level.
func loadConfig(cmd *cobra.Command) (*config.RendezvousConfig, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.RendezvousConfig
		err error
	)
	if path != "" {
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, fmt.Errorf("config file %s: %w", path, statErr)
		}
		cfg, err = config.LoadWithPath(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newCommandLogger returns the stderr logger for a command.
func newCommandLogger(cmd *cobra.Command, cfg *config.RendezvousConfig) *slog.Logger {
	if cfg.Logging.Format == "json" {
		return logging.NewJSONLogger(cfg.Logging.Level, cmd.ErrOrStderr())
	}
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

func jsonOutput(cmd *cobra.Command) bool {
	jsonOut, _ := cmd.Flags().GetBool("json")
	return jsonOut
}

func writeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// addTokenFlags registers --token and --salt.
func addTokenFlags(cmd *cobra.Command) {
	cmd.Flags().String("token", "", "Shared token as 64 hex characters (or set RENDEZVOUS_TOKEN)")
	cmd.Flags().String("salt", "", "Context salt, e.g. a date or place identifier")
}

// resolveToken reads --token, falling back to RENDEZVOUS_TOKEN so the secret
// can stay out of shell history.
func resolveToken(cmd *cobra.Command) (srt.Token, error) {
	hex, _ := cmd.Flags().GetString("token")
	if hex == "" {
		hex = os.Getenv("RENDEZVOUS_TOKEN")
	}
	if hex == "" {
		return srt.Token{}, fmt.Errorf("--token is required (or set RENDEZVOUS_TOKEN)")
	}
	token, err := srt.ParseHex(hex)
	if err != nil {
		return srt.Token{}, fmt.Errorf("invalid token: %w", err)
	}
	return token, nil
}

// signalContext returns a context cancelled on the first shutdown signal.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, shutdownSignals...)
}
