package logger

import (
	"context"
	"testing"
	"time"
)

type chanPublisher struct {
	ch chan []DigestEntry
}

func (p *chanPublisher) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	p.ch <- payload.([]DigestEntry)
	return nil
}

func TestCollectorAggregatesDuplicates(t *testing.T) {
	pub := &chanPublisher{ch: make(chan []DigestEntry, 1)}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Topic: "logs", Publisher: pub})
	defer c.Close()

	c.AddLog("error", "sink failed", map[string]interface{}{"symbol": "SPY"}, "x.go:1")
	c.AddLog("error", "sink failed", map[string]interface{}{"symbol": "SPY"}, "x.go:1")
	if got := c.Pending(); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}

	c.AddLog("error", "audit failed", nil, "y.go:2")

	select {
	case logs := <-pub.ch:
		if len(logs) != 2 {
			t.Fatalf("flushed %d entries, want 2", len(logs))
		}
		for _, l := range logs {
			if l.Message == "sink failed" && l.Count != 2 {
				t.Fatalf("count = %d, want 2", l.Count)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not flush on threshold")
	}
	if got := c.Pending(); got != 0 {
		t.Fatalf("pending after flush = %d", got)
	}
}

func TestLoggerCollectsErrors(t *testing.T) {
	pub := &chanPublisher{ch: make(chan []DigestEntry, 1)}
	l := NewNop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Publisher: pub})
	defer l.RemoveCollector()

	l.Error("boom", String("symbol", "QQQ"), Float64("price", 1.5))
	l.Warn("ignored")
	if got := l.collector.Pending(); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}
}

func TestCloseFlushesPending(t *testing.T) {
	pub := &chanPublisher{ch: make(chan []DigestEntry, 1)}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, Topic: "logs", Publisher: pub})
	c.AddLog("error", "audit failed", map[string]interface{}{"backend": "sqlite"}, "repository/sqlite_audit_store.go:90")
	c.Close()
	c.Close()

	select {
	case logs := <-pub.ch:
		if len(logs) != 1 || logs[0].Fields["backend"] != "sqlite" {
			t.Fatalf("flushed %+v", logs)
		}
	default:
		t.Fatal("close did not flush synchronously")
	}
}

func TestDigestKeyIgnoresFieldOrder(t *testing.T) {
	a := digestKey("error", "m", "c", map[string]interface{}{"a": 1, "b": "x"})
	b := digestKey("error", "m", "c", map[string]interface{}{"b": "x", "a": 1})
	if a != b {
		t.Fatal("keys differ for equal fields")
	}
	if a == digestKey("warn", "m", "c", map[string]interface{}{"a": 1, "b": "x"}) {
		t.Fatal("level not part of key")
	}
}
