// Package config provides unified configuration loading for rendezvous.
// It supports loading from YAML files, a .env file, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/nvandessel/rendezvous/internal/constants"
	"github.com/nvandessel/rendezvous/internal/matching"
	"github.com/nvandessel/rendezvous/internal/simulation"
	"gopkg.in/yaml.v3"
)

// RendezvousConfig contains all rendezvous configuration settings.
type RendezvousConfig struct {
	// Matching holds the default threshold and window for match sessions.
	Matching MatchingConfig `json:"matching" yaml:"matching"`

	// Simulation holds defaults for Monte Carlo runs.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Store configures where run history and logs are kept.
	Store StoreConfig `json:"store" yaml:"store"`

	// MQTT configures the sensor measurement feed used by `watch`.
	MQTT MQTTConfig `json:"mqtt" yaml:"mqtt"`
}

// MatchingConfig configures the matcher.
type MatchingConfig struct {
	// Epsilon is the normalized distance threshold. Must be non-negative.
	Epsilon float32 `json:"epsilon" yaml:"epsilon"`

	// WindowSize is the number of consecutive hits needed for a stable match.
	// 0 disables smoothing.
	WindowSize int `json:"window_size" yaml:"window_size"`
}

// SimulationConfig configures simulation defaults.
type SimulationConfig struct {
	NumPeers        int     `json:"num_peers" yaml:"num_peers"`
	NumTrials       int     `json:"num_trials" yaml:"num_trials"`
	ApplyGeoFilter  bool    `json:"apply_geo_filter" yaml:"apply_geo_filter"`
	GeoFilterFactor float32 `json:"geo_filter_factor" yaml:"geo_filter_factor"`

	// Workers is the number of goroutines used for trials. 0 means one per CPU.
	Workers int `json:"workers" yaml:"workers"`

	// Seed makes runs reproducible. 0 picks a random seed per run.
	Seed uint64 `json:"seed" yaml:"seed"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables decision logging to <store.dir>/decisions.jsonl.
	// "trace" additionally logs every observation to stderr.
	Level string `json:"level" yaml:"level"`

	// Format selects the stderr handler: "text" (default) or "json".
	Format string `json:"format" yaml:"format"`
}

// StoreConfig configures persistence.
type StoreConfig struct {
	// Dir holds rendezvous.db, decisions.jsonl and audit.jsonl.
	// Defaults to ~/.rendezvous.
	Dir string `json:"dir" yaml:"dir"`
}

// MQTTConfig configures the broker connection for live measurements.
type MQTTConfig struct {
	Broker   string `json:"broker" yaml:"broker"`
	ClientID string `json:"client_id" yaml:"client_id"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`

	// Password supports ${VAR} syntax for env vars.
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// Topic carries JSON-encoded patterns, one per message.
	Topic string `json:"topic" yaml:"topic"`

	// DecisionTopic, when set, receives one message per matcher decision.
	// {device_id} is replaced by the sending device.
	DecisionTopic string `json:"decision_topic,omitempty" yaml:"decision_topic,omitempty"`
}

// RedactedPassword returns "(set)" when a password is configured.
func (c MQTTConfig) RedactedPassword() string {
	if c.Password == "" {
		return ""
	}
	return "(set)"
}

// String implements fmt.Stringer to prevent accidental password logging.
func (c MQTTConfig) String() string {
	return fmt.Sprintf("MQTTConfig{Broker:%s, ClientID:%s, Username:%s, Password:%s, Topic:%s, DecisionTopic:%s}",
		c.Broker, c.ClientID, c.Username, c.RedactedPassword(), c.Topic, c.DecisionTopic)
}

// Default returns a RendezvousConfig with sensible defaults.
func Default() *RendezvousConfig {
	return &RendezvousConfig{
		Matching: MatchingConfig{
			Epsilon:    constants.DefaultEpsilon,
			WindowSize: constants.DefaultWindowSize,
		},
		Simulation: SimulationConfig{
			NumPeers:        constants.DefaultNumPeers,
			NumTrials:       constants.DefaultNumTrials,
			ApplyGeoFilter:  false,
			GeoFilterFactor: constants.DefaultGeoFilterFactor,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "rendezvous",
			Topic:    "sensor/+/pattern",
		},
	}
}

// DefaultPath returns ~/.rendezvous/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.DirName, "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> .env in the working directory -> ~/.rendezvous/config.yaml
// -> environment variables.
func Load() (*RendezvousConfig, error) {
	path, err := DefaultPath()
	if err != nil {
		path = ""
	}
	return LoadWithPath(path)
}

// LoadWithPath is Load with an explicit config file path. A missing file is
// not an error; an empty path skips the file.
func LoadWithPath(path string) (*RendezvousConfig, error) {
	// .env is optional and never overrides variables already set
	_ = godotenv.Load()

	config := Default()

	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			fileConfig, loadErr := LoadFromFile(path)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)
	config.resolveStoreDir()

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*RendezvousConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.MQTT.Password = expandEnvVars(config.MQTT.Password)

	return config, nil
}

// EditFile applies fn to the configuration stored at path and writes it
// back. Unlike LoadFromFile, ${VAR} references are kept unexpanded so that
// secrets are never written to disk. A missing file starts from defaults.
func EditFile(path string, fn func(*RendezvousConfig) error) (*RendezvousConfig, error) {
	config := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := fn(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := config.Save(path); err != nil {
		return nil, err
	}
	return config, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *RendezvousConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *RendezvousConfig) Validate() error {
	if c.Matching.Epsilon < 0 {
		return fmt.Errorf("epsilon must be non-negative, got %f", c.Matching.Epsilon)
	}
	if c.Matching.WindowSize < 0 {
		return fmt.Errorf("window_size must be non-negative, got %d", c.Matching.WindowSize)
	}
	if c.Simulation.NumPeers < 0 {
		return fmt.Errorf("num_peers must be non-negative, got %d", c.Simulation.NumPeers)
	}
	if c.Simulation.NumTrials < 0 {
		return fmt.Errorf("num_trials must be non-negative, got %d", c.Simulation.NumTrials)
	}
	if c.Simulation.GeoFilterFactor < 0 {
		return fmt.Errorf("geo_filter_factor must be non-negative, got %f", c.Simulation.GeoFilterFactor)
	}
	if c.Simulation.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Simulation.Workers)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if c.Logging.Format != "" && !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.Logging.Format)
	}

	return nil
}

// MatchingParams returns the matcher configuration.
func (c *RendezvousConfig) MatchingParams() matching.Config {
	return matching.NewConfig(c.Matching.Epsilon, c.Matching.WindowSize)
}

// SimulationParams returns the simulation configuration, sharing the
// matching threshold and window.
func (c *RendezvousConfig) SimulationParams() simulation.Config {
	return simulation.Config{
		NumPeers:        c.Simulation.NumPeers,
		NumTrials:       c.Simulation.NumTrials,
		Epsilon:         c.Matching.Epsilon,
		WindowSize:      c.Matching.WindowSize,
		ApplyGeoFilter:  c.Simulation.ApplyGeoFilter,
		GeoFilterFactor: c.Simulation.GeoFilterFactor,
	}
}

// Workers returns the configured worker count, or the CPU count when unset.
func (c *RendezvousConfig) Workers() int {
	if c.Simulation.Workers > 0 {
		return c.Simulation.Workers
	}
	return runtime.NumCPU()
}

// resolveStoreDir fills in ~/.rendezvous when no directory is configured.
func (c *RendezvousConfig) resolveStoreDir() {
	if c.Store.Dir != "" {
		c.Store.Dir = expandHome(c.Store.Dir)
		return
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		c.Store.Dir = filepath.Join(homeDir, constants.DirName)
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *RendezvousConfig) {
	if v := os.Getenv("RENDEZVOUS_EPSILON"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			config.Matching.Epsilon = float32(f)
		}
	}
	if v := os.Getenv("RENDEZVOUS_WINDOW_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Matching.WindowSize = n
		}
	}

	if v := os.Getenv("RENDEZVOUS_NUM_PEERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.NumPeers = n
		}
	}
	if v := os.Getenv("RENDEZVOUS_NUM_TRIALS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.NumTrials = n
		}
	}
	if v := os.Getenv("RENDEZVOUS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.Workers = n
		}
	}
	if v := os.Getenv("RENDEZVOUS_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Simulation.Seed = n
		}
	}
	if v := os.Getenv("RENDEZVOUS_GEO_FILTER"); v != "" {
		config.Simulation.ApplyGeoFilter = v == "true" || v == "1"
	}
	if v := os.Getenv("RENDEZVOUS_GEO_FILTER_FACTOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			config.Simulation.GeoFilterFactor = float32(f)
		}
	}

	if v := os.Getenv("RENDEZVOUS_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("RENDEZVOUS_LOG_FORMAT"); v != "" {
		config.Logging.Format = v
	}

	if v := os.Getenv("RENDEZVOUS_STORE_DIR"); v != "" {
		config.Store.Dir = v
	}

	if v := os.Getenv("RENDEZVOUS_MQTT_BROKER"); v != "" {
		config.MQTT.Broker = v
	}
	if v := os.Getenv("RENDEZVOUS_MQTT_CLIENT_ID"); v != "" {
		config.MQTT.ClientID = v
	}
	if v := os.Getenv("RENDEZVOUS_MQTT_USERNAME"); v != "" {
		config.MQTT.Username = v
	}
	if v := os.Getenv("RENDEZVOUS_MQTT_PASSWORD"); v != "" {
		config.MQTT.Password = v
	}
	if v := os.Getenv("RENDEZVOUS_MQTT_TOPIC"); v != "" {
		config.MQTT.Topic = v
	}
	if v := os.Getenv("RENDEZVOUS_MQTT_DECISION_TOPIC"); v != "" {
		config.MQTT.DecisionTopic = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}

// expandHome replaces a leading ~/ with the user's home directory.
func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(homeDir, p[2:])
}
