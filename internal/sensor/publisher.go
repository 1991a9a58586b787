package sensor

import (
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher sends JSON messages to a per-device topic.
type Publisher struct {
	client mqtt.Client

	// topicTemplate may contain {device_id}, e.g. "rendezvous/{device_id}/decision".
	topicTemplate string
}

// NewPublisher creates a publisher for topicTemplate.
func NewPublisher(client mqtt.Client, topicTemplate string) *Publisher {
	return &Publisher{client: client, topicTemplate: topicTemplate}
}

// Publish marshals v and sends it at QoS 1 without the retained flag.
func (p *Publisher) Publish(deviceID string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	topic := FormatTopic(p.topicTemplate, deviceID)
	token := p.client.Publish(topic, 1, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}
	return nil
}

// FormatTopic substitutes deviceID for {device_id} in template.
func FormatTopic(template, deviceID string) string {
	return strings.ReplaceAll(template, "{device_id}", deviceID)
}
