// Package mqtt provides an abstraction for MQTT client functionality.
package mqtt

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/train-spotter/internal/conf"
	"github.com/tphakala/train-spotter/internal/logger"
)

// MessageHandler receives messages from a subscribed topic.
type MessageHandler func(topic string, payload []byte)

// Client defines the interface for MQTT client operations.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error

	// Publish sends a message to the specified topic on the MQTT broker.
	Publish(ctx context.Context, topic string, payload string) error

	// Subscribe registers handler for topic. Subscriptions are restored
	// after a reconnect.
	Subscribe(topic string, handler MessageHandler) error

	// Unsubscribe removes the handler for topic.
	Unsubscribe(topic string) error

	// IsConnected returns true if the client is currently connected to the MQTT broker.
	IsConnected() bool

	// Disconnect closes the connection to the MQTT broker.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	Retain   bool // true to retain messages at the broker

	ReconnectCooldown    time.Duration
	MaxReconnectInterval time.Duration
	ConnectTimeout       time.Duration
	PublishTimeout       time.Duration
	DisconnectTimeout    time.Duration
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		QoS:                  1,
		ReconnectCooldown:    5 * time.Second,
		MaxReconnectInterval: 5 * time.Minute,
		ConnectTimeout:       30 * time.Second,
		PublishTimeout:       10 * time.Second,
		DisconnectTimeout:    250 * time.Millisecond,
	}
}

// ConfigFromSettings builds the client configuration. The client id gets a
// random suffix so several instances can share a broker.
func ConfigFromSettings(settings *conf.Settings) Config {
	cfg := DefaultConfig()
	cfg.Broker = settings.MQTT.Broker
	cfg.Username = settings.MQTT.Username
	cfg.Password = settings.MQTT.Password
	cfg.QoS = settings.MQTT.QoS
	cfg.Retain = settings.MQTT.Retain

	clientID := settings.MQTT.ClientID
	if clientID == "" {
		clientID = settings.Main.Name
	}
	cfg.ClientID = clientID + "-" + uuid.NewString()[:8]
	return cfg
}

// Package-level logger for MQTT related events.
var mqttLogger = logger.Global().Module("mqtt")
