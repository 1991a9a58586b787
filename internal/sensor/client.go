// Package sensor connects to an MQTT broker that carries live pattern
// measurements from sensor devices.
package sensor

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Client manages the MQTT connection. Use Subscriber and Publisher for
// traffic.
type Client struct {
	client mqtt.Client
	config ClientConfig
	logger *slog.Logger
}

// ClientConfig holds MQTT client configuration.
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string

	// ConnectTimeout bounds the initial connection. Zero waits forever.
	ConnectTimeout time.Duration
}

// Connect dials the broker. Lost connections are re-established
// automatically.
func Connect(config ClientConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.Broker == "" {
		return nil, fmt.Errorf("mqtt broker address is required")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("mqtt connection established", "broker", config.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "broker", config.Broker, "error", err)
	})

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if config.ConnectTimeout > 0 {
		if !token.WaitTimeout(config.ConnectTimeout) {
			return nil, fmt.Errorf("timed out connecting to MQTT broker %s", config.Broker)
		}
	} else {
		token.Wait()
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return &Client{client: client, config: config, logger: logger}, nil
}

// Native returns the underlying paho client for Subscriber and Publisher.
func (c *Client) Native() mqtt.Client {
	return c.client
}

// IsConnected reports whether the client is currently connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Close disconnects, allowing 250ms for in-flight work.
func (c *Client) Close() {
	c.client.Disconnect(250)
	c.logger.Info("mqtt disconnected", "broker", c.config.Broker)
}
