package kafka

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProducerOption configures Producer.
type ProducerOption func(*ProducerConfig)

// ProducerConfig holds producer configuration.
type ProducerConfig struct {
	Brokers     []string
	Compression string

	// delivery
	RequiredAcks int
	MaxAttempts  int

	// batching
	BatchSize    int
	BatchBytes   int
	BatchTimeout time.Duration

	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	Async        bool
	// HashByKey routes equal keys to one partition so a symbol's plans stay ordered.
	HashByKey bool

	Registerer prometheus.Registerer
}

func defaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Compression:  "snappy",
		RequiredAcks: -1,
		MaxAttempts:  3,
		BatchSize:    100,
		BatchBytes:   1 << 20,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		HashByKey:    true,
		Registerer:   prometheus.DefaultRegisterer,
	}
}

func (c ProducerConfig) validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka producer: brokers are required")
	}
	if c.RequiredAcks < -1 || c.RequiredAcks > 1 {
		return errors.New("kafka producer: required acks must be -1, 0 or 1")
	}
	return nil
}

func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) { c.Brokers = brokers }
}

// WithCompression accepts gzip, snappy, lz4, zstd or none.
func WithCompression(compression string) ProducerOption {
	return func(c *ProducerConfig) {
		if compression != "" {
			c.Compression = compression
		}
	}
}

// WithDelivery sets required acks (-1 = all) and writer retry attempts.
func WithDelivery(acks, maxAttempts int) ProducerOption {
	return func(c *ProducerConfig) {
		c.RequiredAcks = acks
		if maxAttempts > 0 {
			c.MaxAttempts = maxAttempts
		}
	}
}

// WithBatching sets how many messages, bytes or how long the writer buffers
// before flushing. Zero values keep the defaults.
func WithBatching(size, bytes int, linger time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		if size > 0 {
			c.BatchSize = size
		}
		if bytes > 0 {
			c.BatchBytes = bytes
		}
		if linger > 0 {
			c.BatchTimeout = linger
		}
	}
}

func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.WriteTimeout = write
		c.ReadTimeout = read
	}
}

// WithAsync makes writes fire-and-forget.
func WithAsync(async bool) ProducerOption {
	return func(c *ProducerConfig) { c.Async = async }
}

func WithHashByKey(hash bool) ProducerOption {
	return func(c *ProducerConfig) { c.HashByKey = hash }
}

// ConsumerConfig configures a Consumer. Zero values fall back to defaults.
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	// FromLatest starts a new group at the log end instead of the beginning.
	FromLatest bool

	// Workers is the number of ordered lanes; a key always maps to one lane.
	Workers   int
	QueueSize int

	// Retries is the number of extra attempts for a transient handler error.
	Retries    int
	BackoffMin time.Duration
	BackoffMax time.Duration
	// DLQTopic receives messages that exhausted retries or failed permanently.
	DLQTopic string

	MinBytes int
	MaxBytes int

	// Registerer receives consumer metrics; nil means the default registry.
	Registerer prometheus.Registerer
}

func (c *ConsumerConfig) fill() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka consumer: brokers are required")
	}
	if c.GroupID == "" {
		c.GroupID = "strat-engine"
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.QueueSize < 1 {
		c.QueueSize = 64
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = 100 * time.Millisecond
	}
	if c.BackoffMax < c.BackoffMin {
		c.BackoffMax = c.BackoffMin
	}
	if c.MinBytes <= 0 {
		c.MinBytes = 1
	}
	if c.MaxBytes < c.MinBytes {
		c.MaxBytes = 10 << 20
	}
	if c.Registerer == nil {
		c.Registerer = prometheus.DefaultRegisterer
	}
	return nil
}
