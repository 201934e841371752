package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tmarsden/edgeflow-core/internal/infrastructure/config"
)

// Client wraps the paho client with subscription tracking so subscriptions
// survive a reconnect, plus connection-state callbacks and panic recovery
// around message handlers. Safe for concurrent use.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	mu    sync.RWMutex // guards subs, connected, callbacks, logger
	subs  map[string]subscription
	up    bool
	onUp  func()
	onTip func(err error)
	log   Logger
}

// Logger is the subset of logging.Logger the client needs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler receives inbound messages. Paho invokes handlers on its own
// goroutines; they must not block for long. A returned error is logged and
// does not affect acknowledgement.
type MessageHandler func(topic string, payload []byte) error

// Connect dials the broker, arms the last-will status message and enables
// auto-reconnect. Returns once the initial connection is up or the connect
// timeout expires.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	opts := buildClientOptions(cfg)
	armLastWill(opts, cfg.Broker.ClientID)

	c := &Client{
		cfg:     cfg,
		options: opts,
		subs:    make(map[string]subscription),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) { c.handleUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDown(err) })

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs async and may not have fired yet. Mark
	// connected here so IsConnected is true as soon as Connect returns.
	c.mu.Lock()
	c.up = true
	c.mu.Unlock()

	return c, nil
}

func (c *Client) handleUp() {
	c.mu.Lock()
	c.up = true
	subs := make([]subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	cb := c.onUp
	c.mu.Unlock()

	// Re-arm subscriptions lost with the old session.
	for _, s := range subs {
		c.client.Subscribe(s.topic, s.qos, c.wrapHandler(s.handler))
	}

	c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
		buildOnlinePayload(c.cfg.Broker.ClientID))

	if cb != nil {
		cb()
	}
}

func (c *Client) handleDown(err error) {
	c.mu.Lock()
	c.up = false
	cb := c.onTip
	c.mu.Unlock()

	if cb != nil {
		cb(err)
	}
}

// Close publishes a graceful offline status (distinct from the last-will
// crash status) and disconnects, allowing in-flight publishes to drain.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
			buildOfflinePayload(c.cfg.Broker.ClientID))
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.mu.Lock()
	c.up = false
	c.mu.Unlock()
	return nil
}

// HealthCheck reports whether the broker connection is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reflects the last known connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.up && c.client.IsConnected()
}

// SetOnConnect registers a callback invoked on every successful connect,
// including reconnects.
func (c *Client) SetOnConnect(cb func()) {
	c.mu.Lock()
	c.onUp = cb
	c.mu.Unlock()
}

// SetOnDisconnect registers a callback invoked when the connection drops.
func (c *Client) SetOnDisconnect(cb func(err error)) {
	c.mu.Lock()
	c.onTip = cb
	c.mu.Unlock()
}

// SetLogger attaches a logger for handler errors and recovered panics.
// Without one, handler failures are dropped silently.
func (c *Client) SetLogger(log Logger) {
	c.mu.Lock()
	c.log = log
	c.mu.Unlock()
}

func (c *Client) logger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.log
}

// wrapHandler adapts a MessageHandler to paho's signature, recovering panics
// so one bad handler cannot take down the client's dispatch goroutine.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if log := c.logger(); log != nil {
					log.Error("mqtt handler panic", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if log := c.logger(); log != nil {
				log.Warn("mqtt handler error", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
