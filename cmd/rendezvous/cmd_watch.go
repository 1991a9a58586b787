package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/rendezvous/internal/logging"
	"github.com/nvandessel/rendezvous/internal/sanitize"
	"github.com/nvandessel/rendezvous/internal/sensor"
	"github.com/nvandessel/rendezvous/internal/session"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Match live measurements from MQTT sensors",
		Long: `Subscribe to sensor measurements over MQTT and run one matcher per device
until interrupted. Each device publishes patterns on its own topic, by
default sensor/<device_id>/pattern.

When mqtt.decision_topic is set (e.g. rendezvous/{device_id}/decision),
every decision is published back so the device can react to a match.

Examples:
  rendezvous watch --token <hex> --salt cafe
  rendezvous watch --token <hex> --salt cafe --broker tcp://10.0.0.5:1883 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			token, err := resolveToken(cmd)
			if err != nil {
				return err
			}
			salt, _ := cmd.Flags().GetString("salt")
			if err := sanitize.CheckSalt(salt); err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("broker") {
				cfg.MQTT.Broker, _ = flags.GetString("broker")
			}
			if flags.Changed("topic") {
				cfg.MQTT.Topic, _ = flags.GetString("topic")
			}
			if flags.Changed("decision-topic") {
				cfg.MQTT.DecisionTopic, _ = flags.GetString("decision-topic")
			}
			if flags.Changed("epsilon") {
				cfg.Matching.Epsilon, _ = flags.GetFloat32("epsilon")
			}
			if flags.Changed("window") {
				cfg.Matching.WindowSize, _ = flags.GetInt("window")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			buffer, _ := flags.GetInt("buffer")
			if buffer < 1 {
				return fmt.Errorf("--buffer must be at least 1, got %d", buffer)
			}

			logger := newCommandLogger(cmd, cfg)
			sessionID := "watch-" + uuid.NewString()[:8]
			dl := logging.NewDecisionLogger(cfg.Store.Dir, cfg.Logging.Level, sessionID)
			defer dl.Close()

			client, err := sensor.Connect(sensor.ClientConfig{
				Broker:         cfg.MQTT.Broker,
				ClientID:       cfg.MQTT.ClientID,
				Username:       cfg.MQTT.Username,
				Password:       cfg.MQTT.Password,
				ConnectTimeout: 10 * time.Second,
			}, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			measurements := make(chan sensor.Measurement, buffer)
			sub := sensor.NewSubscriber(client.Native(), cfg.MQTT.Topic, measurements, logger)
			if err := sub.Subscribe(); err != nil {
				return err
			}
			defer func() {
				if err := sub.Unsubscribe(); err != nil {
					logger.Warn("unsubscribe failed", "error", err)
				}
			}()

			var pub decisionPublisher
			if cfg.MQTT.DecisionTopic != "" {
				pub = sensor.NewPublisher(client.Native(), cfg.MQTT.DecisionTopic)
			}

			tracker := session.NewTracker(token, []byte(salt), cfg.MatchingParams(), session.Options{
				ID:        sessionID,
				Logger:    logger,
				Decisions: dl,
			})

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			logger.Info("watching for measurements", "topic", cfg.MQTT.Topic, "token_fingerprint", token.Fingerprint())
			return runWatch(ctx, measurements, tracker, pub, cmd.OutOrStdout(), jsonOutput(cmd), logger)
		},
	}
	addTokenFlags(cmd)
	cmd.Flags().String("broker", "", "MQTT broker URL (overrides config)")
	cmd.Flags().String("topic", "", "Measurement topic filter (overrides config)")
	cmd.Flags().String("decision-topic", "", "Topic template for publishing decisions (overrides config)")
	cmd.Flags().Float32("epsilon", 0, "Normalized distance threshold (overrides config)")
	cmd.Flags().Int("window", 0, "Consecutive hits required (overrides config)")
	cmd.Flags().Int("buffer", 64, "Measurements buffered before slow consumers drop messages")
	return cmd
}

// decisionPublisher sends a decision back to the device it concerns.
type decisionPublisher interface {
	Publish(deviceID string, v any) error
}

// runWatch matches measurements until ctx is done or in is closed, then
// prints a per-device summary.
func runWatch(ctx context.Context, in <-chan sensor.Measurement, tracker *session.Tracker, pub decisionPublisher, out io.Writer, jsonOut bool, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return writeWatchSummary(out, tracker, jsonOut)
		case m, ok := <-in:
			if !ok {
				return writeWatchSummary(out, tracker, jsonOut)
			}

			device := sanitize.Label(m.DeviceID)
			d := tracker.Observe(device, m.Pattern)

			if jsonOut {
				if err := writeJSON(out, d); err != nil {
					return err
				}
			} else if d.FirstMatch {
				fmt.Fprintf(out, "[%s] rendezvous triggered at index %d (distance %.4f)\n", device, d.Index, d.Distance)
			} else if d.Matched {
				fmt.Fprintf(out, "[%s] still matched at index %d\n", device, d.Index)
			} else {
				fmt.Fprintf(out, "[%s] no match at index %d (distance %.4f)\n", device, d.Index, d.Distance)
			}

			if pub != nil {
				if err := pub.Publish(device, d); err != nil {
					logger.Warn("failed to publish decision", "device", device, "error", err)
				}
			}
		}
	}
}

func writeWatchSummary(out io.Writer, tracker *session.Tracker, jsonOut bool) error {
	sums := tracker.Summaries()
	devices := make([]string, 0, len(sums))
	for device := range sums {
		devices = append(devices, device)
	}
	sort.Strings(devices)

	if jsonOut {
		list := make([]session.Summary, 0, len(devices))
		for _, device := range devices {
			list = append(list, sums[device])
		}
		return writeJSON(out, map[string]any{"summaries": list})
	}

	fmt.Fprintf(out, "\n%d devices observed\n", len(devices))
	for _, device := range devices {
		s := sums[device]
		status := "no stable match"
		if s.Matched {
			status = fmt.Sprintf("first match at index %d", s.FirstMatchIndex)
		}
		fmt.Fprintf(out, "  %s: %d observations, %d within threshold, %s\n", device, s.Observations, s.Hits, status)
	}
	return nil
}
