package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

// Producer publishes JSON records with a kafka-go writer.
type Producer struct {
	writer  *kafka.Writer
	comp    string
	metrics *producerMetrics

	closeOnce sync.Once
	closeErr  error
}

// NewProducer creates a new Kafka producer.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var bal kafka.Balancer = &kafka.LeastBytes{}
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     bal,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  parseCompression(cfg.Compression),
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.BatchTimeout,
		Async:        cfg.Async,
	}

	return &Producer{writer: writer, comp: cfg.Compression, metrics: newProducerMetrics(cfg.Registerer)}, nil
}

// Record is one outgoing message. Value is sent as-is when it is a string or
// []byte and JSON-encoded otherwise.
type Record struct {
	Key   []byte
	Type  string
	Value interface{}
}

func encodeValue(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	default:
		return json.Marshal(v)
	}
}

// buildMessage stamps the record type and the context trace id as headers.
func buildMessage(ctx context.Context, topic string, r Record, now time.Time) (kafka.Message, error) {
	v, err := encodeValue(r.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s: %w", topic, err)
	}
	msg := kafka.Message{Topic: topic, Key: r.Key, Value: v, Time: now}
	if r.Type != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: HeaderMsgType, Value: []byte(r.Type)})
	}
	if id := TraceIDFrom(ctx); id != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: HeaderTraceID, Value: []byte(id)})
	}
	return msg, nil
}

// Send writes records to topic in one call.
func (p *Producer) Send(ctx context.Context, topic string, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	start := time.Now()
	msgs := make([]kafka.Message, 0, len(records))
	var size int64
	for _, r := range records {
		m, err := buildMessage(ctx, topic, r, start)
		if err != nil {
			return err
		}
		size += int64(len(m.Value))
		msgs = append(msgs, m)
	}
	err := p.writer.WriteMessages(ctx, msgs...)
	p.metrics.observe(topic, p.comp, size, len(msgs), time.Since(start), err)
	return err
}

// PublishMessage sends an unkeyed payload. It lets the producer back the
// log collector.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.Send(ctx, topic, Record{Type: "strat.logs", Value: payload})
}

// Close flushes and closes the writer. Later calls return the first result.
func (p *Producer) Close() error {
	p.closeOnce.Do(func() {
		if p.writer != nil {
			p.closeErr = p.writer.Close()
		}
	})
	return p.closeErr
}

var codecs = map[string]kafka.Compression{
	"gzip":   kafka.Gzip,
	"snappy": kafka.Snappy,
	"lz4":    kafka.Lz4,
	"zstd":   kafka.Zstd,
	"none":   0,
	"":       0,
}

// parseCompression maps a codec name to kafka-go; unknown names get snappy.
func parseCompression(s string) kafka.Compression {
	if c, ok := codecs[s]; ok {
		return c
	}
	return kafka.Snappy
}

type producerMetrics struct {
	sent    *prometheus.CounterVec
	bytes   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func newProducerMetrics(reg prometheus.Registerer) *producerMetrics {
	return &producerMetrics{
		sent: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strat_kafka_producer_messages_total",
			Help: "Records handed to the writer, by outcome.",
		}, []string{"topic", "result"})),
		bytes: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strat_kafka_producer_bytes_total",
			Help: "Uncompressed value bytes written.",
		}, []string{"topic", "compression"})),
		latency: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "strat_kafka_producer_publish_seconds",
			Help: "WriteMessages call duration.",
		}, []string{"topic"})),
	}
}

func (m *producerMetrics) observe(topic, comp string, size int64, n int, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sent.WithLabelValues(topic, result).Add(float64(n))
	if err == nil {
		m.bytes.WithLabelValues(topic, comp).Add(float64(size))
	}
	m.latency.WithLabelValues(topic).Observe(took.Seconds())
}
