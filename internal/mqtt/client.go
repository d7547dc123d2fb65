package mqtt

import (
	"context"
	"net"
	"net/url"
	"path"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/train-spotter/internal/errors"
	"github.com/tphakala/train-spotter/internal/logger"
	"github.com/tphakala/train-spotter/internal/observability/metrics"
)

// client implements the Client interface on top of paho.
type client struct {
	config          Config
	internalClient  paho.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	subscriptions   map[string]MessageHandler
	metrics         *metrics.MQTTMetrics
}

// NewClient creates a new MQTT client. A nil metrics uses an unregistered
// collector set.
func NewClient(cfg Config, m *metrics.MQTTMetrics) (Client, error) {
	if _, err := parseBroker(cfg.Broker); err != nil {
		return nil, err
	}
	if m == nil {
		var err error
		if m, err = metrics.NewMQTTMetrics(prometheus.NewRegistry()); err != nil {
			return nil, err
		}
	}
	return &client{
		config:        cfg,
		subscriptions: make(map[string]MessageHandler),
		metrics:       m,
	}, nil
}

func parseBroker(broker string) (*url.URL, error) {
	u, err := url.Parse(broker)
	if err == nil && u.Host == "" {
		err = errors.NewStd("missing host")
	}
	if err != nil {
		return nil, errors.New(err).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Context("broker", broker).
			Build()
	}
	return u, nil
}

// Connect attempts to establish a connection to the MQTT broker.
// It first resolves the broker's hostname and then attempts to connect.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if since := time.Since(c.lastConnAttempt); since < c.config.ReconnectCooldown {
		return errors.Newf("connection attempt too recent, last attempt was %v ago", since).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Build()
	}
	c.lastConnAttempt = time.Now()

	u, err := parseBroker(c.config.Broker)
	if err != nil {
		return err
	}

	if host := u.Hostname(); net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			c.metrics.IncrementErrors("connect")
			return errors.New(err).
				Component("mqtt").
				Category(errors.CategoryNetwork).
				Context("broker", c.config.Broker).
				Context("operation", "resolve").
				Build()
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(c.config.MaxReconnectInterval)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.internalClient = paho.NewClient(opts)

	token := c.internalClient.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		c.metrics.IncrementErrors("connect")
		return errors.New(ctx.Err()).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("broker", c.config.Broker).
			Build()
	}
	if err := token.Error(); err != nil {
		c.metrics.IncrementErrors("connect")
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("broker", c.config.Broker).
			Build()
	}

	c.metrics.UpdateConnectionStatus(true)
	return nil
}

// Publish sends a message to the specified topic on the MQTT broker.
func (c *client) Publish(ctx context.Context, topic, payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.IsConnected() {
		c.metrics.IncrementErrors("publish")
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("topic", topic).
			Build()
	}

	timer := c.metrics.StartPublishTimer()
	defer timer.ObserveDuration()

	token := c.internalClient.Publish(topic, c.config.QoS, c.config.Retain, payload)

	timeout := time.NewTimer(c.config.PublishTimeout)
	defer timeout.Stop()
	select {
	case <-token.Done():
	case <-timeout.C:
		c.metrics.IncrementErrors("publish")
		return errors.Newf("publish timeout").
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := token.Error(); err != nil {
		c.metrics.IncrementErrors("publish")
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	c.metrics.IncrementMessagesDelivered(path.Base(topic))
	c.metrics.ObserveMessageSize(len(payload))
	return nil
}

// Subscribe registers handler for topic and subscribes immediately when
// connected.
func (c *client) Subscribe(topic string, handler MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subscriptions[topic] = handler
	if !c.IsConnected() {
		return nil
	}
	return c.subscribe(c.internalClient, topic, handler)
}

func (c *client) subscribe(pc paho.Client, topic string, handler MessageHandler) error {
	token := pc.Subscribe(topic, c.config.QoS, func(_ paho.Client, msg paho.Message) {
		c.metrics.IncrementMessagesReceived()
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		c.metrics.IncrementErrors("subscribe")
		return errors.Newf("subscribe timeout").
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("topic", topic).
			Build()
	}
	if err := token.Error(); err != nil {
		c.metrics.IncrementErrors("subscribe")
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("topic", topic).
			Build()
	}
	mqttLogger.Info("Subscribed to topic", logger.String("topic", topic))
	return nil
}

// Unsubscribe forgets topic so it is not restored on reconnect and, when
// connected, unsubscribes at the broker.
func (c *client) Unsubscribe(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.subscriptions, topic)
	if !c.IsConnected() {
		return nil
	}

	token := c.internalClient.Unsubscribe(topic)
	if !token.WaitTimeout(c.config.DisconnectTimeout) {
		c.metrics.IncrementErrors("unsubscribe")
		return errors.Newf("unsubscribe timeout").
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("topic", topic).
			Build()
	}
	if err := token.Error(); err != nil {
		c.metrics.IncrementErrors("unsubscribe")
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("topic", topic).
			Build()
	}
	mqttLogger.Info("Unsubscribed from topic", logger.String("topic", topic))
	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
		c.metrics.UpdateConnectionStatus(false)
		mqttLogger.Info("Disconnected from MQTT broker", logger.String("broker", c.config.Broker))
	}
}

// onConnect runs on the paho router goroutine after every (re)connect.
func (c *client) onConnect(pc paho.Client) {
	mqttLogger.Info("Connected to MQTT broker", logger.String("broker", c.config.Broker))
	c.metrics.UpdateConnectionStatus(true)

	c.mu.Lock()
	subs := make(map[string]MessageHandler, len(c.subscriptions))
	for topic, handler := range c.subscriptions {
		subs[topic] = handler
	}
	c.mu.Unlock()

	for topic, handler := range subs {
		go func() {
			if err := c.subscribe(pc, topic, handler); err != nil {
				mqttLogger.Error("Failed to restore subscription",
					logger.String("topic", topic),
					logger.Error(err))
			}
		}()
	}
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	mqttLogger.Warn("Connection to MQTT broker lost",
		logger.String("broker", c.config.Broker),
		logger.Error(err))
	c.metrics.UpdateConnectionStatus(false)
	c.metrics.IncrementErrors("connection_lost")
}

func (c *client) onReconnecting(_ paho.Client, _ *paho.ClientOptions) {
	c.metrics.IncrementReconnectAttempts()
}
