package mqtt

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/train-spotter/internal/conf"
	"github.com/tphakala/train-spotter/internal/errors"
)

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Main.Name = "yard"
	settings.MQTT.Broker = "tcp://broker:1883"
	settings.MQTT.Username = "user"
	settings.MQTT.QoS = 2
	settings.MQTT.Retain = true

	cfg := ConfigFromSettings(settings)
	assert.Equal(t, "tcp://broker:1883", cfg.Broker)
	assert.Equal(t, "user", cfg.Username)
	assert.Equal(t, byte(2), cfg.QoS)
	assert.True(t, cfg.Retain)
	assert.True(t, strings.HasPrefix(cfg.ClientID, "yard-"), cfg.ClientID)
	assert.Len(t, cfg.ClientID, len("yard-")+8)
	assert.Equal(t, DefaultConfig().PublishTimeout, cfg.PublishTimeout)

	settings.MQTT.ClientID = "cam1"
	other := ConfigFromSettings(settings)
	assert.True(t, strings.HasPrefix(other.ClientID, "cam1-"))
}

func TestNewClientRejectsInvalidBroker(t *testing.T) {
	t.Parallel()

	for _, broker := range []string{"", "localhost", "://bad"} {
		cfg := DefaultConfig()
		cfg.Broker = broker
		_, err := NewClient(cfg, nil)
		require.Error(t, err, broker)
		assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration), broker)
	}
}

func TestPublishWhileDisconnected(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Broker = "tcp://127.0.0.1:1"
	c, err := NewClient(cfg, nil)
	require.NoError(t, err)

	assert.False(t, c.IsConnected())
	err = c.Publish(context.Background(), "train-spotter/train_ended", "{}")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTConnection))

	// Subscribing before connecting only records the handler.
	require.NoError(t, c.Subscribe("train-spotter/detections", func(string, []byte) {}))
	require.NoError(t, c.Unsubscribe("train-spotter/detections"))
	assert.Empty(t, c.(*client).subscriptions)
	c.Disconnect()
}

func TestConnectCooldown(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Broker = "tcp://127.0.0.1:1"
	cfg.ConnectTimeout = 200 * time.Millisecond
	c, err := NewClient(cfg, nil)
	require.NoError(t, err)
	defer c.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Nothing listens on port 1; the first attempt fails or times out.
	require.Error(t, c.Connect(ctx))

	err = c.Connect(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too recent")
}

func TestMockClient(t *testing.T) {
	t.Parallel()

	m := NewMockClient()
	require.Error(t, m.Publish(context.Background(), "a", "x"))

	require.NoError(t, m.Connect(context.Background()))
	require.NoError(t, m.Publish(context.Background(), "a", "x"))
	assert.Equal(t, []Message{{Topic: "a", Payload: "x"}}, m.Published())

	var got string
	require.NoError(t, m.Subscribe("in", func(_ string, p []byte) { got = string(p) }))
	assert.True(t, m.Deliver("in", []byte("hello")))
	assert.False(t, m.Deliver("other", nil))
	assert.Equal(t, "hello", got)

	require.NoError(t, m.Unsubscribe("in"))
	assert.False(t, m.Deliver("in", []byte("again")))
	assert.Equal(t, "hello", got)

	m.Disconnect()
	assert.False(t, m.IsConnected())
}
