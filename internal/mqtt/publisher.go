// internal/mqtt/publisher.go
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/tamzrod/provisiond/internal/status"
	"github.com/tamzrod/provisiond/internal/wifi"
)

// Config is the immutable publisher config.
type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
}

// Client is the part of paho.Client the publisher uses.
type Client interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

// Publisher mirrors the status snapshot to a retained topic.
// It connects once the station has an address; paho reconnects after that.
type Publisher struct {
	cfg    Config
	client Client
	log    *slog.Logger

	statusTopic string
	availTopic  string

	mu      sync.Mutex
	started bool
	last    []byte
}

// New builds a paho client. Nothing is dialed until Start.
func New(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker required")
	}

	p := newPublisher(cfg)

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetWill(p.availTopic, "offline", cfg.QoS, true)

	opts.SetOnConnectHandler(func(paho.Client) {
		p.onConnect()
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.log.Warn("mqtt connection lost, will auto-reconnect", "broker", cfg.Broker, "err", err)
	})

	p.client = paho.NewClient(opts)
	return p, nil
}

// NewWithClient wires an existing client (tests).
func NewWithClient(cfg Config, c Client) *Publisher {
	p := newPublisher(cfg)
	p.client = c
	return p
}

func newPublisher(cfg Config) *Publisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Publisher{
		cfg:         cfg,
		log:         slog.With("component", "mqtt"),
		statusTopic: fmt.Sprintf("%s/status", cfg.TopicPrefix),
		availTopic:  fmt.Sprintf("%s/availability", cfg.TopicPrefix),
	}
}

// Start dials the broker in the background. Idempotent.
// Its signature matches wifi.ConnectedHook.
func (p *Publisher) Start(ctx context.Context, info wifi.IPInfo) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.log.Info("connecting to mqtt broker", "broker", p.cfg.Broker, "station_ip", info.IP)

	go func() {
		token := p.client.Connect()
		select {
		case <-token.Done():
			if err := token.Error(); err != nil {
				p.log.Error("mqtt connect failed", "broker", p.cfg.Broker, "err", err)
			}
		case <-ctx.Done():
		}
	}()
}

// Observe is a status monitor Observer. It never waits on the network.
func (p *Publisher) Observe(s status.Snapshot) {
	doc := status.Encode(s)

	p.mu.Lock()
	p.last = doc
	p.mu.Unlock()

	if !p.client.IsConnectionOpen() {
		// published on the next connect
		return
	}
	p.publish(p.statusTopic, doc)
}

// Close publishes nothing further and disconnects.
func (p *Publisher) Close() {
	if p.client.IsConnectionOpen() {
		p.client.Disconnect(250)
	}
}

func (p *Publisher) onConnect() {
	p.log.Info("mqtt connection established", "broker", p.cfg.Broker)

	p.publish(p.availTopic, []byte("online"))

	p.mu.Lock()
	last := p.last
	p.mu.Unlock()
	if last != nil {
		p.publish(p.statusTopic, last)
	}
}

func (p *Publisher) publish(topic string, payload []byte) {
	token := p.client.Publish(topic, p.cfg.QoS, true, payload)
	go func() {
		if !token.WaitTimeout(p.cfg.Timeout) {
			p.log.Warn("mqtt publish timeout", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			p.log.Warn("mqtt publish failed", "topic", topic, "err", err)
		}
	}()
}
