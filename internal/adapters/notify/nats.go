package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
	"github.com/YashwanthDevelops/StampadeShield/pkg/logger"
	"github.com/YashwanthDevelops/StampadeShield/pkg/metrics"
)

const (
	defaultSubject       = "shield.alerts"
	defaultClientName    = "stampede-shield"
	defaultNATSTimeout   = 5 * time.Second
	defaultReconnectWait = 2 * time.Second
	defaultMaxReconnects = 10
	sinkNATS             = "nats"
)

// NATSConfig configures a NATSPublisher.
type NATSConfig struct {
	URL           string
	Subject       string
	Name          string
	Timeout       time.Duration
	ReconnectWait time.Duration
	MaxReconnects int
	Logger        logger.Logger
}

func (c *NATSConfig) defaults() {
	if c.Subject == "" {
		c.Subject = defaultSubject
	}
	if c.Name == "" {
		c.Name = defaultClientName
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultNATSTimeout
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = defaultReconnectWait
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = defaultMaxReconnects
	}
	if c.Logger == nil {
		c.Logger = logger.Get().Named("nats")
	}
}

// NATSPublisher publishes every alert as JSON on one subject.
type NATSPublisher struct {
	cfg  NATSConfig
	mu   sync.Mutex
	conn *nats.Conn
	now  func() time.Time
}

// NewNATSPublisher connects to cfg.URL.
func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	if cfg.URL == "" {
		return nil, ErrNoURL
	}
	cfg.defaults()
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(cfg.Timeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				cfg.Logger.Warn(context.Background(), "nats disconnected", logger.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			cfg.Logger.Info(context.Background(), "nats reconnected", logger.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}
	cfg.Logger.Info(context.Background(), "nats publisher connected",
		logger.String("url", cfg.URL), logger.String("subject", cfg.Subject))
	return &NATSPublisher{cfg: cfg, conn: conn, now: time.Now}, nil
}

// Subject returns the subject alerts are published on.
func (p *NATSPublisher) Subject() string { return p.cfg.Subject }

// Handle publishes a.
func (p *NATSPublisher) Handle(_ context.Context, a model.Alert) error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return ErrClosed
	}
	body, err := Encode(p.cfg.Name, a, p.now())
	if err != nil {
		metrics.RecordPublish(sinkNATS, outcomeError)
		return err
	}
	if err := conn.Publish(p.cfg.Subject, body); err != nil {
		metrics.RecordPublish(sinkNATS, outcomeError)
		return fmt.Errorf("publish %s: %w", p.cfg.Subject, err)
	}
	metrics.RecordPublish(sinkNATS, outcomeOK)
	return nil
}

// Close drains pending messages, falling back to a hard close.
func (p *NATSPublisher) Close() error {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()
	if conn == nil {
		return nil
	}
	if err := conn.Drain(); err != nil {
		conn.Close()
		return fmt.Errorf("drain nats: %w", err)
	}
	return nil
}
