// Package mqtt republishes simulation step telemetry to an MQTT broker,
// one JSON message per subscribed object per step.
package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kalifun/tracilink/pkg/telemetry"
)

// Config describes the broker connection and publishing behaviour.
type Config struct {
	Broker         string        `json:"broker" toml:"broker"`
	ClientID       string        `json:"clientId" toml:"client_id"`
	Username       string        `json:"username" toml:"username"`
	Password       string        `json:"password" toml:"password"`
	TopicPrefix    string        `json:"topicPrefix" toml:"topic_prefix"`
	QoS            byte          `json:"qos" toml:"qos"`
	Retain         bool          `json:"retain" toml:"retain"`
	ConnectTimeout time.Duration `json:"connectTimeout" toml:"connect_timeout"`
	PublishTimeout time.Duration `json:"publishTimeout" toml:"publish_timeout"`
	AutoReconnect  bool          `json:"autoReconnect" toml:"auto_reconnect"`
	Logger         *logrus.Logger
}

func (c *Config) validate() error {
	if c.Broker == "" {
		return pkgerrors.New("bridge config: broker URL is required")
	}
	if c.ClientID == "" {
		return pkgerrors.New("bridge config: client ID is required")
	}
	if c.QoS > 2 {
		return pkgerrors.New("bridge config: QoS must be 0, 1, or 2")
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "tracilink"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
	return nil
}

// Bridge is one broker connection publishing step events.
type Bridge struct {
	config  Config
	client  mqtt.Client
	logger  *logrus.Logger
	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	done    sync.WaitGroup
}

// NewBridge validates the configuration and returns an unconnected bridge.
func NewBridge(cfg Config) (*Bridge, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Bridge{config: cfg, logger: cfg.Logger}, nil
}

// Start connects to the broker.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return pkgerrors.New("bridge is already running")
	}

	b.logger.WithFields(logrus.Fields{
		"broker":    b.config.Broker,
		"client_id": b.config.ClientID,
	}).Info("Starting MQTT bridge")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.config.Broker)
	opts.SetClientID(b.config.ClientID)
	opts.SetUsername(b.config.Username)
	opts.SetPassword(b.config.Password)
	opts.SetAutoReconnect(b.config.AutoReconnect)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		b.logger.WithError(err).Error("MQTT connection lost")
	}

	b.client = mqtt.NewClient(opts)
	token := b.client.Connect()
	if !token.WaitTimeout(b.config.ConnectTimeout) {
		return pkgerrors.New("timed out connecting to MQTT broker")
	}
	if err := token.Error(); err != nil {
		return pkgerrors.Wrap(err, "connect to MQTT broker")
	}

	b.running = true
	b.logger.Info("MQTT bridge started")
	return nil
}

// Stop drains the pumps and disconnects from the broker.
func (b *Bridge) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return pkgerrors.New("bridge is not running")
	}
	b.running = false
	if b.cancel != nil {
		b.cancel()
	}
	b.mu.Unlock()

	b.done.Wait()
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(250)
	}
	b.logger.Info("MQTT bridge stopped")
	return nil
}

// Publish sends one step event as JSON to <prefix>/<domain>/<object>.
func (b *Bridge) Publish(ctx context.Context, event *telemetry.StepEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.running {
		return pkgerrors.New("bridge is not running")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return pkgerrors.Wrap(err, "marshal step event")
	}

	topic := b.config.TopicPrefix + "/" + event.Topic()
	token := b.client.Publish(topic, b.config.QoS, b.config.Retain, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			b.logger.WithError(err).WithField("topic", topic).Error("MQTT publish failed")
			return pkgerrors.Wrap(err, "publish step event")
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.config.PublishTimeout):
		return pkgerrors.New("timed out publishing step event")
	}

	b.logger.WithFields(logrus.Fields{
		"topic": topic,
		"bytes": len(payload),
	}).Debug("Published step event")
	return nil
}

// Pump forwards every event from a telemetry-bus subscription to the
// broker until the channel closes or the bridge stops.
func (b *Bridge) Pump(ctx context.Context, events <-chan *telemetry.StepEvent) {
	b.mu.Lock()
	ctx, b.cancel = context.WithCancel(ctx)
	b.done.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.done.Done()
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := b.Publish(ctx, event); err != nil {
					b.logger.WithError(err).Warn("Dropping step event")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
