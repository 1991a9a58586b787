package sensor

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nvandessel/rendezvous/internal/pattern"
	"github.com/nvandessel/rendezvous/internal/stream"
)

// DefaultDropTimeout is how long a message waits for a slow consumer before
// it is dropped.
const DefaultDropTimeout = time.Second

// Measurement is one decoded pattern received from a device.
type Measurement struct {
	DeviceID   string          `json:"device_id"`
	Topic      string          `json:"topic"`
	Pattern    pattern.Pattern `json:"pattern"`
	ReceivedAt time.Time       `json:"received_at"`
}

// DecodeMeasurement parses a message payload. Payloads use the same
// encodings as a line of a measurement stream.
func DecodeMeasurement(payload []byte) (pattern.Pattern, error) {
	p, err := stream.DecodePattern(payload)
	if err != nil {
		return pattern.Pattern{}, fmt.Errorf("decoding measurement: %w", err)
	}
	return p, nil
}

// Subscriber decodes measurements from a topic and writes them to a channel.
type Subscriber struct {
	client      mqtt.Client
	topic       string
	out         chan<- Measurement
	logger      *slog.Logger
	dropTimeout time.Duration
	nowFunc     func() time.Time
}

// NewSubscriber creates a subscriber for topic, e.g. "sensor/+/pattern".
func NewSubscriber(client mqtt.Client, topic string, out chan<- Measurement, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Subscriber{
		client:      client,
		topic:       topic,
		out:         out,
		logger:      logger,
		dropTimeout: DefaultDropTimeout,
		nowFunc:     time.Now,
	}
}

// Subscribe starts delivery at QoS 1.
func (s *Subscriber) Subscribe() error {
	token := s.client.Subscribe(s.topic, 1, s.handleMessage)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.topic, token.Error())
	}
	s.logger.Info("subscribed", "topic", s.topic)
	return nil
}

// Unsubscribe stops delivery.
func (s *Subscriber) Unsubscribe() error {
	token := s.client.Unsubscribe(s.topic)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to unsubscribe from %s: %w", s.topic, token.Error())
	}
	return nil
}

func (s *Subscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	p, err := DecodeMeasurement(msg.Payload())
	if err != nil {
		s.logger.Warn("dropping malformed measurement", "topic", msg.Topic(), "error", err)
		return
	}

	m := Measurement{
		DeviceID:   DeviceID(msg.Topic()),
		Topic:      msg.Topic(),
		Pattern:    p,
		ReceivedAt: s.nowFunc(),
	}

	select {
	case s.out <- m:
	case <-time.After(s.dropTimeout):
		s.logger.Warn("measurement channel full, dropping message", "device", m.DeviceID)
	}
}

// DeviceID extracts the device segment from a topic such as
// "sensor/{device_id}/pattern". It returns "" for single-segment topics.
func DeviceID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}
