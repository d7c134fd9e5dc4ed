package logger

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships a digest batch. The Kafka producer satisfies it.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush period, default 30s
	CountThreshold int           // flush early once this many distinct entries are pending
	Topic          string
	Publisher      Publisher
	CollectWarn    bool // also digest warn entries
}

// DigestEntry is one distinct log line with its repeat count.
type DigestEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector folds repeated error entries into counted digests and
// publishes them periodically.
type LogCollector struct {
	config  *CollectionConfig
	mu      sync.Mutex
	pending map[uint64]*DigestEntry
	stop    chan struct{}
	done    sync.WaitGroup
	once    sync.Once
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	if config.TimeInterval <= 0 {
		config.TimeInterval = 30 * time.Second
	}
	c := &LogCollector{
		config:  config,
		pending: make(map[uint64]*DigestEntry),
		stop:    make(chan struct{}),
	}
	c.done.Add(1)
	go c.loop()
	return c
}

// digestKey identifies an entry by level, call site, message and field values.
func digestKey(level, message, caller string, fields map[string]interface{}) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%s", level, caller, message)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "\x00%s=%v", k, fields[k])
	}
	return h.Sum64()
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := digestKey(level, message, caller, fields)

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.pending[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		c.pending[key] = &DigestEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	if c.config.CountThreshold > 0 && len(c.pending) >= c.config.CountThreshold {
		c.publish(c.drainLocked(), false)
	}
}

// Pending returns the number of distinct entries waiting for the next flush.
func (c *LogCollector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *LogCollector) drainLocked() []DigestEntry {
	if len(c.pending) == 0 {
		return nil
	}
	out := make([]DigestEntry, 0, len(c.pending))
	for _, e := range c.pending {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSeen.Before(out[j].FirstSeen) })
	c.pending = make(map[uint64]*DigestEntry)
	return out
}

func (c *LogCollector) flush(wait bool) {
	c.mu.Lock()
	batch := c.drainLocked()
	c.mu.Unlock()
	c.publish(batch, wait)
}

// publish sends batch in the background unless wait is set. Failures go to
// stderr since the logger cannot log about itself.
func (c *LogCollector) publish(batch []DigestEntry, wait bool) {
	if len(batch) == 0 || c.config.Publisher == nil {
		return
	}
	send := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, batch); err != nil {
			fmt.Fprintf(os.Stderr, "log digest: publish %d entries: %v\n", len(batch), err)
		}
	}
	if wait {
		send()
		return
	}
	go send()
}

func (c *LogCollector) loop() {
	defer c.done.Done()
	t := time.NewTicker(c.config.TimeInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.flush(false)
		case <-c.stop:
			c.flush(true)
			return
		}
	}
}

// Close publishes what is pending and stops the flush loop.
func (c *LogCollector) Close() {
	c.once.Do(func() { close(c.stop) })
	c.done.Wait()
}
