package kafka

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"

	"StratEngine/pkg/logger"
)

// MessageHandler processes the payloads of one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as unfixable by retrying. The consumer sends such
// messages straight to the DLQ.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type consumerMetrics struct {
	depth    *prometheus.GaugeVec
	failures *prometheus.CounterVec
	handle   *prometheus.HistogramVec
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func newConsumerMetrics(reg prometheus.Registerer) *consumerMetrics {
	return &consumerMetrics{
		depth: register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "strat_kafka_consumer_queue_depth",
			Help: "Messages waiting in a worker lane.",
		}, []string{"topic"})),
		failures: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strat_kafka_consumer_failures_total",
			Help: "Messages given up on after retries.",
		}, []string{"topic"})),
		handle: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "strat_kafka_consumer_handle_seconds",
			Help: "Time from dequeue to commit, retries included.",
		}, []string{"topic"})),
	}
}

type delivery struct {
	topic   string
	msg     kafka.Message
	reader  *kafka.Reader
	handler MessageHandler
}

// Consumer fetches every registered topic and fans messages out to ordered
// lanes keyed by message key, so one symbol is never handled concurrently.
// Offsets are committed after success or after the message reached the DLQ.
type Consumer struct {
	cfg      ConsumerConfig
	log      *logger.Logger
	hook     ConsumerHook
	metrics  *consumerMetrics
	handlers map[string]MessageHandler
	readers  []*kafka.Reader
	lanes    []chan delivery
	dlq      *kafka.Writer

	ctx      context.Context
	cancel   context.CancelFunc
	fetchers sync.WaitGroup
	workers  sync.WaitGroup
	stopOnce sync.Once
}

func NewConsumer(cfg ConsumerConfig, l *logger.Logger) (*Consumer, error) {
	if err := cfg.fill(); err != nil {
		return nil, err
	}
	if l == nil {
		l = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		cfg:      cfg,
		log:      l,
		hook:     NoopHook{},
		metrics:  newConsumerMetrics(cfg.Registerer),
		handlers: make(map[string]MessageHandler),
		lanes:    make([]chan delivery, cfg.Workers),
		ctx:      ctx,
		cancel:   cancel,
	}
	for i := range c.lanes {
		c.lanes[i] = make(chan delivery, cfg.QueueSize)
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.DLQTopic,
			Balancer: &kafka.Hash{},
		}
	}
	return c, nil
}

// Use installs the lifecycle hook. Call before Start.
func (c *Consumer) Use(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler subscribes h to its topic. A second handler for the same
// topic is ignored.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	topic := h.Topic()
	if _, dup := c.handlers[topic]; dup {
		c.log.Warn("kafka consumer: duplicate handler ignored", logger.String("topic", topic))
		return
	}
	c.handlers[topic] = h
}

// Start opens one reader per topic and launches the lanes. It does not block.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}
	start := kafka.FirstOffset
	if c.cfg.FromLatest {
		start = kafka.LastOffset
	}

	for i := range c.lanes {
		c.workers.Add(1)
		go c.drain(c.lanes[i])
	}
	for topic, h := range c.handlers {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			GroupID:     c.cfg.GroupID,
			Topic:       topic,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
			StartOffset: start,
		})
		c.readers = append(c.readers, r)
		c.fetchers.Add(1)
		go c.fetch(topic, r, h)
	}

	c.log.Info("kafka consumer: started",
		logger.Int("lanes", len(c.lanes)),
		logger.Int("topics", len(c.handlers)),
		logger.String("group_id", c.cfg.GroupID))
	return nil
}

// Stop halts fetching, lets the lanes finish what is already queued, then
// closes readers. It returns early with an error if ctx expires first.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		c.cancel()
		c.fetchers.Wait()
		for _, lane := range c.lanes {
			close(lane)
		}

		done := make(chan struct{})
		go func() {
			c.workers.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer: lanes still busy: %w", ctx.Err())
		}

		for _, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.log.Warn("kafka consumer: close reader", logger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.log.Warn("kafka consumer: close dlq writer", logger.Error(cerr))
			}
		}
		c.log.Info("kafka consumer: stopped")
	})
	return err
}

// laneOf hashes the key so equal keys share a lane. Keyless messages follow
// their partition.
func laneOf(km kafka.Message, lanes int) int {
	if lanes <= 1 {
		return 0
	}
	if len(km.Key) == 0 {
		return km.Partition % lanes
	}
	h := fnv.New32a()
	_, _ = h.Write(km.Key)
	return int(h.Sum32() % uint32(lanes))
}

func (c *Consumer) fetch(topic string, r *kafka.Reader, h MessageHandler) {
	defer c.fetchers.Done()
	for {
		km, err := r.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Error("kafka consumer: fetch", logger.String("topic", topic), logger.Error(err))
			select {
			case <-time.After(c.cfg.BackoffMin):
				continue
			case <-c.ctx.Done():
				return
			}
		}

		lane := c.lanes[laneOf(km, len(c.lanes))]
		select {
		case lane <- delivery{topic: topic, msg: km, reader: r, handler: h}:
			c.metrics.depth.WithLabelValues(topic).Set(float64(len(lane)))
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) drain(lane <-chan delivery) {
	defer c.workers.Done()
	for d := range lane {
		c.process(d)
	}
}

func (c *Consumer) retryPolicy() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.BackoffMin
	eb.MaxInterval = c.cfg.BackoffMax
	eb.RandomizationFactor = 0.5
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.cfg.Retries)), c.ctx)
}

// attempt runs the hooks and the handler once. Permanent failures and
// panics stop the retry loop.
func (c *Consumer) attempt(d delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = backoff.Permanent(Permanent(fmt.Errorf("handler panic: %v", r)))
		}
	}()
	ctx, km, data, err := c.hook.BeforeHandle(context.Background(), d.topic, d.msg, d.msg.Value)
	if err != nil {
		return backoff.Permanent(Permanent(err))
	}
	err = d.handler.Handle(ctx, data)
	c.hook.AfterHandle(ctx, d.topic, km, data, err)
	if IsPermanent(err) {
		return backoff.Permanent(err)
	}
	return err
}

func (c *Consumer) process(d delivery) {
	start := time.Now()
	tries := 0
	err := backoff.RetryNotify(func() error {
		tries++
		return c.attempt(d)
	}, c.retryPolicy(), func(err error, wait time.Duration) {
		c.hook.OnError(context.Background(), d.topic, d.msg, d.msg.Value, err)
		c.log.Debug("kafka consumer: retrying",
			logger.String("topic", d.topic),
			logger.Duration("wait", wait),
			logger.Error(err))
	})

	if err != nil {
		if c.ctx.Err() != nil && errors.Is(err, c.ctx.Err()) {
			// stopped mid-retry; leave the offset for redelivery
			return
		}
		c.hook.OnError(context.Background(), d.topic, d.msg, d.msg.Value, err)
		c.log.Warn("kafka consumer: message failed",
			logger.String("topic", d.topic),
			logger.Int("attempts", tries),
			logger.Bool("permanent", IsPermanent(err)),
			logger.Error(err))
		c.metrics.failures.WithLabelValues(d.topic).Inc()
		if !c.deadLetter(d, err) {
			return
		}
	}

	c.commit(d)
	c.metrics.handle.WithLabelValues(d.topic).Observe(time.Since(start).Seconds())
}

// deadLetter reports whether the message is safe to commit.
func (c *Consumer) deadLetter(d delivery, cause error) bool {
	if c.dlq == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	headers := make([]kafka.Header, 0, len(d.msg.Headers)+2)
	headers = append(headers, d.msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "source_topic", Value: []byte(d.topic)},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
	)
	err := c.dlq.WriteMessages(ctx, kafka.Message{Key: d.msg.Key, Value: d.msg.Value, Headers: headers})
	if err != nil {
		c.log.Error("kafka consumer: write dlq",
			logger.String("dlq_topic", c.cfg.DLQTopic),
			logger.Error(err))
		return false
	}
	return true
}

func (c *Consumer) commit(d delivery) {
	err := backoff.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return d.reader.CommitMessages(ctx, d.msg)
	}, backoff.WithMaxRetries(backoff.NewConstantBackOff(100*time.Millisecond), 2))
	if err != nil {
		c.log.Error("kafka consumer: commit", logger.String("topic", d.topic), logger.Error(err))
	}
}
