package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
	"github.com/YashwanthDevelops/StampadeShield/pkg/logger"
	"github.com/YashwanthDevelops/StampadeShield/pkg/metrics"
)

const (
	defaultTopic        = "shield-alerts"
	defaultWriteTimeout = 5 * time.Second
	sinkKafka           = "kafka"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures a KafkaPublisher.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	Source       string
	WriteTimeout time.Duration
	Logger       logger.Logger
	// Writer replaces the default kafka.Writer.
	Writer MessageWriter
}

// KafkaPublisher writes every alert to one topic keyed by its level, so all
// alerts of a level land on the same partition in order.
type KafkaPublisher struct {
	cfg    KafkaConfig
	mu     sync.Mutex
	writer MessageWriter
	now    func() time.Time
}

// NewKafkaPublisher builds a synchronous writer. No connection is made until
// the first alert.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if cfg.Topic == "" {
		cfg.Topic = defaultTopic
	}
	if cfg.Source == "" {
		cfg.Source = defaultClientName
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Get().Named("kafka")
	}
	w := cfg.Writer
	if w == nil {
		if len(cfg.Brokers) == 0 {
			return nil, ErrNoBrokers
		}
		w = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: cfg.WriteTimeout,
		}
		cfg.Logger.Info(context.Background(), "kafka publisher ready",
			logger.Any("brokers", cfg.Brokers), logger.String("topic", cfg.Topic))
	}
	return &KafkaPublisher{cfg: cfg, writer: w, now: time.Now}, nil
}

// Topic returns the destination topic.
func (p *KafkaPublisher) Topic() string { return p.cfg.Topic }

// Handle writes a and waits for the broker acknowledgement.
func (p *KafkaPublisher) Handle(ctx context.Context, a model.Alert) error {
	p.mu.Lock()
	w := p.writer
	p.mu.Unlock()
	if w == nil {
		return ErrClosed
	}
	sent := p.now()
	body, err := Encode(p.cfg.Source, a, sent)
	if err != nil {
		metrics.RecordPublish(sinkKafka, outcomeError)
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.WriteTimeout)
	defer cancel()
	msg := kafka.Message{Key: []byte(a.Level.String()), Value: body, Time: sent}
	if err := w.WriteMessages(ctx, msg); err != nil {
		metrics.RecordPublish(sinkKafka, outcomeError)
		return fmt.Errorf("write %s: %w", p.cfg.Topic, err)
	}
	metrics.RecordPublish(sinkKafka, outcomeOK)
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	w := p.writer
	p.writer = nil
	p.mu.Unlock()
	if w == nil {
		return nil
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}
