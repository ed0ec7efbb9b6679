package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// MQTTConfig configures the broker bridge.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
}

// MQTTBridge republishes bus events to an MQTT broker so consumers outside
// the API (WhatsApp gateway, workshop TV boards) can follow job changes.
type MQTTBridge struct {
	client mqtt.Client
	prefix string
	qos    byte
	logger *log.Entry
}

// NewMQTTBridge connects to the broker.
func NewMQTTBridge(cfg MQTTConfig) (*MQTTBridge, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(10 * time.Second)
	logger := log.WithField("component", "mqtt")
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.WithError(err).Warn("mqtt connection lost")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}
	return newBridge(client, cfg), nil
}

func newBridge(client mqtt.Client, cfg MQTTConfig) *MQTTBridge {
	prefix := strings.TrimSuffix(cfg.TopicPrefix, "/")
	if prefix == "" {
		prefix = "bengkel"
	}
	return &MQTTBridge{client: client, prefix: prefix, qos: cfg.QoS, logger: log.WithField("component", "mqtt")}
}

// Topic is where an event is published: {prefix}/{kind}/{documentId}.
func (m *MQTTBridge) Topic(e Event) string {
	return fmt.Sprintf("%s/%s/%s", m.prefix, e.Kind, e.DocumentID)
}

// Forward publishes one event. Broker failures are logged, never returned.
func (m *MQTTBridge) Forward(e Event) {
	body, err := json.Marshal(e)
	if err != nil {
		m.logger.WithError(err).WithField("kind", e.Kind).Error("encode event")
		return
	}
	token := m.client.Publish(m.Topic(e), m.qos, false, body)
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			m.logger.WithError(token.Error()).WithField("topic", m.Topic(e)).Warn("mqtt publish failed")
		}
	}()
}

// Run forwards every event from the bus until the subscription is cancelled.
func (m *MQTTBridge) Run(bus *Bus) func() {
	ch, cancel := bus.Subscribe()
	go func() {
		for e := range ch {
			m.Forward(e)
		}
	}()
	return cancel
}

// Close disconnects from the broker.
func (m *MQTTBridge) Close() {
	m.client.Disconnect(250)
}
