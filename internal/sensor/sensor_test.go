package sensor

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nvandessel/rendezvous/internal/pattern"
)

// fakeMessage overrides the parts of mqtt.Message the subscriber reads.
type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

// fakeToken is an already-completed token.
type fakeToken struct {
	mqtt.Token
	err error
}

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient records publishes and subscriptions.
type fakeClient struct {
	mqtt.Client
	published  []published
	subscribed map[string]mqtt.MessageHandler
	err        error
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.published = append(c.published, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return fakeToken{err: c.err}
}

func (c *fakeClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	if c.subscribed == nil {
		c.subscribed = make(map[string]mqtt.MessageHandler)
	}
	c.subscribed[topic] = callback
	return fakeToken{err: c.err}
}

func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token {
	for _, topic := range topics {
		delete(c.subscribed, topic)
	}
	return fakeToken{err: c.err}
}

func TestDeviceID(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"sensor/dev-1/pattern", "dev-1"},
		{"sensor/dev-2", "dev-2"},
		{"sensor", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			if got := DeviceID(tt.topic); got != tt.want {
				t.Errorf("DeviceID(%q) = %q, want %q", tt.topic, got, tt.want)
			}
		})
	}
}

func TestDecodeMeasurement(t *testing.T) {
	p, err := DecodeMeasurement([]byte(`{"brightness":0.25,"color_temp":2000,"focal_distance":0,"volume":0,"tempo":0,"pitch":880,"temperature":10,"movement":0,"arousal":0}`))
	if err != nil {
		t.Fatalf("DecodeMeasurement() error = %v", err)
	}
	if p != (pattern.Pattern{Brightness: 0.25, ColorTemp: 2000, Pitch: 880, Temperature: 10}) {
		t.Errorf("DecodeMeasurement() = %+v", p)
	}

	if _, err := DecodeMeasurement([]byte("22.5")); err == nil {
		t.Error("expected error for scalar payload")
	}
	if _, err := DecodeMeasurement([]byte(`{"brightness":0.25,"pitch":880}`)); err == nil {
		t.Error("expected error for payload missing dimensions")
	}
}

func TestSubscriber_DeliversMeasurements(t *testing.T) {
	client := &fakeClient{}
	out := make(chan Measurement, 1)
	sub := NewSubscriber(client, "sensor/+/pattern", out, nil)
	fixed := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	sub.nowFunc = func() time.Time { return fixed }

	if err := sub.Subscribe(); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	handler, ok := client.subscribed["sensor/+/pattern"]
	if !ok {
		t.Fatal("handler not registered")
	}

	handler(client, fakeMessage{topic: "sensor/lamp-7/pattern", payload: []byte("[0.5,6000,0.5,0.5,120,440,22,0.5,0.5]")})

	select {
	case m := <-out:
		if m.DeviceID != "lamp-7" {
			t.Errorf("DeviceID = %q", m.DeviceID)
		}
		if m.Pattern.Pitch != 440 {
			t.Errorf("Pitch = %v", m.Pattern.Pitch)
		}
		if !m.ReceivedAt.Equal(fixed) {
			t.Errorf("ReceivedAt = %v", m.ReceivedAt)
		}
	default:
		t.Fatal("no measurement delivered")
	}

	if err := sub.Unsubscribe(); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if len(client.subscribed) != 0 {
		t.Error("topic still subscribed")
	}
}

func TestSubscriber_DropsMalformedAndOverflow(t *testing.T) {
	out := make(chan Measurement) // unbuffered, nobody reading
	sub := NewSubscriber(&fakeClient{}, "t", out, nil)
	sub.dropTimeout = time.Millisecond

	done := make(chan struct{})
	go func() {
		sub.handleMessage(nil, fakeMessage{topic: "sensor/a/pattern", payload: []byte("not json")})
		sub.handleMessage(nil, fakeMessage{topic: "sensor/a/pattern", payload: []byte("[1,2000,0,0,0,20,10,0,1]")})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler blocked on a full channel")
	}
}

func TestSubscriber_SubscribeError(t *testing.T) {
	client := &fakeClient{err: errors.New("not authorized")}
	sub := NewSubscriber(client, "sensor/+/pattern", make(chan Measurement), nil)
	if err := sub.Subscribe(); err == nil {
		t.Error("expected subscribe error")
	}
}

func TestPublisher_Publish(t *testing.T) {
	client := &fakeClient{}
	pub := NewPublisher(client, "rendezvous/{device_id}/decision")

	if err := pub.Publish("lamp-7", map[string]bool{"matched": true}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(client.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(client.published))
	}
	msg := client.published[0]
	if msg.topic != "rendezvous/lamp-7/decision" {
		t.Errorf("topic = %s", msg.topic)
	}
	if msg.qos != 1 {
		t.Errorf("qos = %d, want 1", msg.qos)
	}
	var body map[string]bool
	if err := json.Unmarshal(msg.payload, &body); err != nil || !body["matched"] {
		t.Errorf("payload = %s (%v)", msg.payload, err)
	}
}

func TestPublisher_PublishError(t *testing.T) {
	pub := NewPublisher(&fakeClient{err: errors.New("broker gone")}, "x/{device_id}")
	if err := pub.Publish("d", 1); err == nil {
		t.Error("expected publish error")
	}
}

func TestFormatTopic(t *testing.T) {
	if got := FormatTopic("a/{device_id}/b", "dev"); got != "a/dev/b" {
		t.Errorf("FormatTopic() = %s", got)
	}
	if got := FormatTopic("static", "dev"); got != "static" {
		t.Errorf("FormatTopic() without placeholder = %s", got)
	}
}

func TestConnect_RequiresBroker(t *testing.T) {
	if _, err := Connect(ClientConfig{ClientID: "x"}, nil); err == nil {
		t.Error("expected error for empty broker")
	}
}
