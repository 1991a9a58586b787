package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nvandessel/rendezvous/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage rendezvous configuration",
		Long: `View and modify rendezvous configuration settings.

Configuration is stored in ~/.rendezvous/config.yaml. Environment variables
(RENDEZVOUS_EPSILON, RENDEZVOUS_MQTT_BROKER, ...) override the file.

Examples:
  rendezvous config list                           # Show effective settings
  rendezvous config get matching.epsilon           # Get a specific setting
  rendezvous config set matching.window_size 3     # Set a setting
  rendezvous config set mqtt.password '${MQTT_PASSWORD}'`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

// configKeys lists every key accepted by get and set, in display order.
var configKeys = []string{
	"matching.epsilon",
	"matching.window_size",
	"simulation.num_peers",
	"simulation.num_trials",
	"simulation.apply_geo_filter",
	"simulation.geo_filter_factor",
	"simulation.workers",
	"simulation.seed",
	"logging.level",
	"logging.format",
	"store.dir",
	"mqtt.broker",
	"mqtt.client_id",
	"mqtt.username",
	"mqtt.password",
	"mqtt.topic",
	"mqtt.decision_topic",
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				// Redact password before JSON serialization to prevent leakage
				redacted := *cfg
				redacted.MQTT.Password = cfg.MQTT.RedactedPassword()
				return writeJSON(out, redacted)
			}

			fmt.Fprintln(out, "Configuration (effective, including environment overrides):")
			section := ""
			for _, key := range configKeys {
				prefix, _, _ := strings.Cut(key, ".")
				if prefix != section {
					fmt.Fprintln(out)
					section = prefix
				}
				value, _ := getConfigValue(cfg, key)
				fmt.Fprintf(out, "  %-30s %v\n", key+":", displayValue(value))
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value in the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			path, err := configFilePath(cmd)
			if err != nil {
				return err
			}

			cfg, err := config.EditFile(path, func(c *config.RendezvousConfig) error {
				return setConfigValue(c, key, value)
			})
			if err != nil {
				return fmt.Errorf("failed to update config: %w", err)
			}

			shown, _ := getConfigValue(cfg, key)
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"status": "updated",
					"key":    key,
					"value":  shown,
					"path":   path,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, shown)
			return nil
		},
	}
}

// configFilePath returns --config or ~/.rendezvous/config.yaml.
func configFilePath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	return config.DefaultPath()
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.RendezvousConfig, key string) (any, bool) {
	switch key {
	case "matching.epsilon":
		return cfg.Matching.Epsilon, true
	case "matching.window_size":
		return cfg.Matching.WindowSize, true
	case "simulation.num_peers":
		return cfg.Simulation.NumPeers, true
	case "simulation.num_trials":
		return cfg.Simulation.NumTrials, true
	case "simulation.apply_geo_filter":
		return cfg.Simulation.ApplyGeoFilter, true
	case "simulation.geo_filter_factor":
		return cfg.Simulation.GeoFilterFactor, true
	case "simulation.workers":
		return cfg.Simulation.Workers, true
	case "simulation.seed":
		return cfg.Simulation.Seed, true
	case "logging.level":
		return cfg.Logging.Level, true
	case "logging.format":
		return cfg.Logging.Format, true
	case "store.dir":
		return cfg.Store.Dir, true
	case "mqtt.broker":
		return cfg.MQTT.Broker, true
	case "mqtt.client_id":
		return cfg.MQTT.ClientID, true
	case "mqtt.username":
		return cfg.MQTT.Username, true
	case "mqtt.password":
		return cfg.MQTT.RedactedPassword(), true
	case "mqtt.topic":
		return cfg.MQTT.Topic, true
	case "mqtt.decision_topic":
		return cfg.MQTT.DecisionTopic, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.RendezvousConfig, key, value string) error {
	switch key {
	case "matching.epsilon":
		f, err := parseFloat32(key, value)
		if err != nil {
			return err
		}
		cfg.Matching.Epsilon = f
	case "matching.window_size":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		cfg.Matching.WindowSize = n
	case "simulation.num_peers":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		cfg.Simulation.NumPeers = n
	case "simulation.num_trials":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		cfg.Simulation.NumTrials = n
	case "simulation.apply_geo_filter":
		cfg.Simulation.ApplyGeoFilter = value == "true" || value == "1"
	case "simulation.geo_filter_factor":
		f, err := parseFloat32(key, value)
		if err != nil {
			return err
		}
		cfg.Simulation.GeoFilterFactor = f
	case "simulation.workers":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		cfg.Simulation.Workers = n
	case "simulation.seed":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %s (must be a non-negative integer)", key, value)
		}
		cfg.Simulation.Seed = n
	case "logging.level":
		cfg.Logging.Level = value
	case "logging.format":
		cfg.Logging.Format = value
	case "store.dir":
		cfg.Store.Dir = value
	case "mqtt.broker":
		cfg.MQTT.Broker = value
	case "mqtt.client_id":
		cfg.MQTT.ClientID = value
	case "mqtt.username":
		cfg.MQTT.Username = value
	case "mqtt.password":
		cfg.MQTT.Password = value
	case "mqtt.topic":
		cfg.MQTT.Topic = value
	case "mqtt.decision_topic":
		cfg.MQTT.DecisionTopic = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s (must be an integer)", key, value)
	}
	return n, nil
}

func parseFloat32(key, value string) (float32, error) {
	f, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s (must be a number)", key, value)
	}
	return float32(f), nil
}

// displayValue shows empty strings as "(not set)".
func displayValue(v any) any {
	if s, ok := v.(string); ok && s == "" {
		return "(not set)"
	}
	return v
}
