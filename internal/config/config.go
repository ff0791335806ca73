// Package config defines the service configuration and its loader.
//
// Domain sections reuse the component config types directly, so a field added
// to a component is configurable without touching this package. Adapter
// sections convert to their adapter configs through the methods below.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/YashwanthDevelops/StampadeShield/internal/adapters/notify"
	"github.com/YashwanthDevelops/StampadeShield/internal/adapters/udp"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/alert"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/cluster"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/device"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/passage"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/surge"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/zone"
	"github.com/YashwanthDevelops/StampadeShield/pkg/logger"
)

// Config contains process configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `koanf:"addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// TickInterval is the period of the risk computation.
	TickInterval time.Duration `koanf:"tick_interval"`

	// NodeTimeout drops a node from the tick snapshot once its newest
	// reading is this old.
	NodeTimeout time.Duration `koanf:"node_timeout"`

	QueueSize   int `koanf:"queue_size"`
	WorkerCount int `koanf:"worker_count"`
	DedupeSize  int `koanf:"dedupe_size"`

	// Seed feeds the device position generator.
	Seed int64 `koanf:"seed"`

	UDP      UDPConfig      `koanf:"udp"`
	Commands CommandsConfig `koanf:"commands"`

	Site    model.Site     `koanf:"site"`
	Passage passage.Config `koanf:"passage"`
	Zone    zone.Config    `koanf:"zone"`
	Device  device.Config  `koanf:"device"`
	Cluster cluster.Config `koanf:"cluster"`
	Surge   surge.Config   `koanf:"surge"`
	Alert   alert.Config   `koanf:"alert"`

	NATS  NATSConfig  `koanf:"nats"`
	Kafka KafkaConfig `koanf:"kafka"`
}

// UDPConfig configures datagram ingestion.
type UDPConfig struct {
	// Addr is the listen address. Empty disables the listener.
	Addr        string        `koanf:"addr"`
	ReadBuffer  int           `koanf:"read_buffer"`
	ReadTimeout time.Duration `koanf:"read_timeout"`
}

// CommandsConfig configures the door-node command channel.
type CommandsConfig struct {
	Enabled bool `koanf:"enabled"`
	// Address pins the door node. Empty means learn it from its datagrams.
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// NATSConfig configures the NATS alert publisher. Empty URL disables it.
type NATSConfig struct {
	URL           string        `koanf:"url"`
	Subject       string        `koanf:"subject"`
	Name          string        `koanf:"name"`
	Timeout       time.Duration `koanf:"timeout"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
	MaxReconnects int           `koanf:"max_reconnects"`
}

// KafkaConfig configures the Kafka alert publisher. Empty Brokers disables it.
type KafkaConfig struct {
	// Brokers is a comma separated host:port list.
	Brokers      string        `koanf:"brokers"`
	Topic        string        `koanf:"topic"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// New returns the defaults.
func New() *Config {
	return &Config{
		Addr:         ":8080",
		LogLevel:     "info",
		LogFormat:    "json",
		TickInterval: 500 * time.Millisecond,
		NodeTimeout:  5 * time.Second,
		QueueSize:    1024,
		WorkerCount:  2,
		DedupeSize:   4096,
		Seed:         42,
		UDP: UDPConfig{
			Addr:        ":4444",
			ReadBuffer:  1024,
			ReadTimeout: time.Second,
		},
		Commands: CommandsConfig{Enabled: true, Port: 5006},
		Site:     model.DefaultSite(),
		Passage:  passage.DefaultConfig(),
		Zone:     zone.DefaultConfig(),
		Device:   device.DefaultConfig(),
		Cluster:  cluster.DefaultConfig(),
		Surge:    surge.DefaultConfig(),
		Alert:    alert.DefaultConfig(),
		NATS:     NATSConfig{Subject: "shield.alerts", Name: "stampede-shield"},
		Kafka:    KafkaConfig{Topic: "shield-alerts", WriteTimeout: 5 * time.Second},
	}
}

// Validate checks the process-level fields. Component sections are validated
// by their constructors.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.TickInterval <= 0:
		return fmt.Errorf("%w: tick_interval must be positive", ErrInvalidConfig)
	case c.NodeTimeout <= 0:
		return fmt.Errorf("%w: node_timeout must be positive", ErrInvalidConfig)
	case c.QueueSize < 1 || c.WorkerCount < 1 || c.DedupeSize < 1:
		return fmt.Errorf("%w: queue_size, worker_count and dedupe_size must be positive", ErrInvalidConfig)
	case c.Commands.Port < 1 || c.Commands.Port > 65535:
		return fmt.Errorf("%w: commands.port %d out of range", ErrInvalidConfig, c.Commands.Port)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if err := c.Site.Validate(); err != nil {
		return fmt.Errorf("%w: site: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ListenerConfig converts the udp section.
func (c *Config) ListenerConfig(h udp.Handler, l logger.Logger) udp.ListenerConfig {
	return udp.ListenerConfig{
		Address:     c.UDP.Addr,
		ReadBuffer:  c.UDP.ReadBuffer,
		ReadTimeout: c.UDP.ReadTimeout,
		Handler:     h,
		Logger:      l,
	}
}

// CommanderConfig converts the commands section.
func (c *Config) CommanderConfig(l logger.Logger) udp.CommanderConfig {
	return udp.CommanderConfig{Address: c.Commands.Address, Port: c.Commands.Port, Logger: l}
}

// NATSEnabled reports whether an alert publisher to NATS is configured.
func (c *Config) NATSEnabled() bool { return c.NATS.URL != "" }

// NATSPublisherConfig converts the nats section.
func (c *Config) NATSPublisherConfig(l logger.Logger) notify.NATSConfig {
	return notify.NATSConfig{
		URL:           c.NATS.URL,
		Subject:       c.NATS.Subject,
		Name:          c.NATS.Name,
		Timeout:       c.NATS.Timeout,
		ReconnectWait: c.NATS.ReconnectWait,
		MaxReconnects: c.NATS.MaxReconnects,
		Logger:        l,
	}
}

// KafkaBrokers splits the broker list, dropping blanks.
func (c *Config) KafkaBrokers() []string {
	var out []string
	for _, b := range strings.Split(c.Kafka.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// KafkaPublisherConfig converts the kafka section.
func (c *Config) KafkaPublisherConfig(l logger.Logger) notify.KafkaConfig {
	return notify.KafkaConfig{
		Brokers:      c.KafkaBrokers(),
		Topic:        c.Kafka.Topic,
		WriteTimeout: c.Kafka.WriteTimeout,
		Logger:       l,
	}
}
