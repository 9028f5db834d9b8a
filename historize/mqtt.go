package historize

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures a broker connection and topic layout, grounded on
// yatesdr-warlogix/mqtt.Publisher's config fields.
type MQTTConfig struct {
	Broker    string
	Port      int
	ClientID  string
	Username  string
	Password  string
	UseTLS    bool
	RootTopic string
}

// mqttMessage is the JSON payload published per record, matching the
// shape of yatesdr-warlogix/mqtt.Publisher's TagMessage.
type mqttMessage struct {
	Topic     string    `json:"topic"`
	PLC       string    `json:"plc"`
	Tag       string    `json:"tag"`
	Value     any       `json:"value"`
	Type      string    `json:"type,omitempty"`
	Writable  bool      `json:"writable"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTTSink publishes Records to an MQTT broker with paho.mqtt.golang.
type MQTTSink struct {
	cfg    MQTTConfig
	client pahomqtt.Client
}

// NewMQTTSink connects to cfg.Broker and returns a ready Sink, grounded on
// yatesdr-warlogix/mqtt.Publisher.Start's option-building and connect-with-
// timeout sequence.
func NewMQTTSink(cfg MQTTConfig) (*MQTTSink, error) {
	opts := pahomqtt.NewClientOptions()
	scheme := "tcp"
	if cfg.UseTLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("historize: mqtt connect to %s:%d timed out", cfg.Broker, cfg.Port)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("historize: mqtt connect to %s:%d: %w", cfg.Broker, cfg.Port, err)
	}
	return &MQTTSink{cfg: cfg, client: client}, nil
}

// Publish sends rec as a JSON message to <RootTopic>/<PLC>/tags/<Tag>,
// waiting up to two seconds for broker acknowledgment.
func (s *MQTTSink) Publish(ctx context.Context, rec Record) error {
	msg := mqttMessage{
		Topic: s.cfg.RootTopic, PLC: rec.PLC, Tag: rec.Tag,
		Value: rec.Value, Type: rec.Type, Writable: rec.Writable, Timestamp: rec.Timestamp,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("historize: marshal mqtt record: %w", err)
	}
	topic := fmt.Sprintf("%s/%s/tags/%s", s.cfg.RootTopic, rec.PLC, rec.Tag)
	token := s.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("historize: mqtt publish to %s timed out", topic)
	}
	return token.Error()
}

// Close disconnects from the broker, waiting up to 250ms to flush.
func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
