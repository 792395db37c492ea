package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/agrisecure/internal/config"
	"github.com/oshokin/agrisecure/internal/logger"
)

const (
	// operationTimeout bounds subscribe, unsubscribe and publish calls.
	operationTimeout = 5 * time.Second
	// disconnectQuiesce is how long Disconnect waits for in-flight work, in ms.
	disconnectQuiesce = 250
)

// ErrNotConnected is returned by operations issued while offline.
var ErrNotConnected = errors.New("not connected to broker")

// MessageHandler processes one message.
type MessageHandler func(ctx context.Context, topic string, payload []byte) error

// Client is a broker connection with pattern-based routing.
type Client struct {
	// client is the underlying paho client.
	client paho.Client
	// cfg holds the broker settings.
	cfg *config.MQTTConfig
	// ctx is handed to handlers; it carries the component logger.
	ctx context.Context

	// handlers maps subscription patterns to handlers.
	handlers map[string]MessageHandler
	// connected tracks the connection state reported by callbacks.
	connected bool
	// mu protects handlers and connected.
	mu sync.RWMutex
}

// NewClient configures a client without connecting.
func NewClient(ctx context.Context, cfg *config.MQTTConfig) *Client {
	c := &Client{
		cfg:      cfg,
		ctx:      logger.WithName(ctx, "mqtt"),
		handlers: make(map[string]MessageHandler),
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.client = paho.NewClient(opts)

	return c
}

// Connect blocks until the broker accepts the connection or the timeout expires.
func (c *Client) Connect() error {
	logger.InfoKV(c.ctx, "Connecting to MQTT broker", "broker", c.cfg.Broker)

	token := c.client.Connect()
	if !token.WaitTimeout(c.cfg.ConnectTimeout) {
		return fmt.Errorf("connection timeout after %v", c.cfg.ConnectTimeout)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	return nil
}

// Disconnect closes the connection.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.client.Disconnect(disconnectQuiesce)

	logger.Info(c.ctx, "Disconnected from MQTT broker")
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.connected && c.client.IsConnected()
}

// Subscribe registers the handler for a topic pattern and subscribes to it.
func (c *Client) Subscribe(pattern string, handler MessageHandler) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	c.handlers[pattern] = handler
	c.mu.Unlock()

	token := c.client.Subscribe(pattern, c.cfg.QoS, c.onMessage)
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("subscribe timeout for topic: %s", pattern)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe failed for topic %s: %w", pattern, err)
	}

	logger.InfoKV(c.ctx, "Subscribed", "topic", pattern, "qos", c.cfg.QoS)

	return nil
}

// Publish sends a raw payload.
func (c *Client) Publish(topic string, payload []byte) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, c.cfg.QoS, false, payload)
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("publish timeout for topic: %s", topic)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed for topic %s: %w", topic, err)
	}

	logger.DebugKV(c.ctx, "Published", "topic", topic, "bytes", len(payload))

	return nil
}

// PublishJSON marshals data and publishes it.
func (c *Client) PublishJSON(topic string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return c.Publish(topic, payload)
}

func (c *Client) onMessage(_ paho.Client, msg paho.Message) {
	c.dispatch(msg.Topic(), msg.Payload())
}

// dispatch routes a message to the handler of the first matching pattern.
func (c *Client) dispatch(topic string, payload []byte) {
	c.mu.RLock()

	handler, ok := c.handlers[topic]
	if !ok {
		for pattern, h := range c.handlers {
			if MatchTopic(pattern, topic) {
				handler, ok = h, true

				break
			}
		}
	}

	c.mu.RUnlock()

	if !ok {
		logger.WarnKV(c.ctx, "No handler for topic", "topic", topic)

		return
	}

	if err := handler(c.ctx, topic, payload); err != nil {
		logger.ErrorKV(c.ctx, "Handler failed", "topic", topic, "error", err)
	}
}

func (c *Client) onConnect(client paho.Client) {
	c.mu.Lock()
	c.connected = true

	patterns := make([]string, 0, len(c.handlers))
	for pattern := range c.handlers {
		patterns = append(patterns, pattern)
	}

	c.mu.Unlock()

	logger.Info(c.ctx, "MQTT connection established")

	for _, pattern := range patterns {
		token := client.Subscribe(pattern, c.cfg.QoS, c.onMessage)
		if token.WaitTimeout(operationTimeout) && token.Error() != nil {
			logger.ErrorKV(c.ctx, "Failed to re-subscribe", "topic", pattern, "error", token.Error())
		}
	}
}

func (c *Client) onConnectionLost(_ paho.Client, err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	logger.ErrorKV(c.ctx, "MQTT connection lost", "error", err)
}

func (c *Client) onReconnecting(paho.Client, *paho.ClientOptions) {
	logger.Warn(c.ctx, "Reconnecting to MQTT broker")
}

// MatchTopic reports whether topic matches an MQTT subscription pattern with
// + (one level) and # (remaining levels) wildcards.
func MatchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}

	patternParts := strings.Split(pattern, "/")
	topicParts := strings.Split(topic, "/")

	for i, part := range patternParts {
		if part == "#" {
			return true
		}

		if i >= len(topicParts) {
			return false
		}

		if part != "+" && part != topicParts[i] {
			return false
		}
	}

	return len(patternParts) == len(topicParts)
}
