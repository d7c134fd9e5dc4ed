package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

type stubHandler struct {
	calls int
	fn    func(call int) error
}

func (h *stubHandler) Topic() string { return "bars" }

func (h *stubHandler) Handle(context.Context, []byte) error {
	h.calls++
	return h.fn(h.calls)
}

func newTestConsumer(t *testing.T, retries int) *Consumer {
	t.Helper()
	c, err := NewConsumer(ConsumerConfig{
		Brokers:    []string{"localhost:9092"},
		Workers:    4,
		Retries:    retries,
		BackoffMin: time.Millisecond,
		BackoffMax: 2 * time.Millisecond,
		Registerer: prometheus.NewRegistry(),
	}, nil)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	return c
}

func TestConsumerConfigFill(t *testing.T) {
	var cfg ConsumerConfig
	if err := cfg.fill(); err == nil {
		t.Fatal("expected missing brokers error")
	}
	cfg = ConsumerConfig{Brokers: []string{"b:9092"}, BackoffMin: time.Second, BackoffMax: time.Millisecond}
	if err := cfg.fill(); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if cfg.Workers != 1 || cfg.GroupID != "strat-engine" || cfg.BackoffMax != time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLaneOfKeepsKeysTogether(t *testing.T) {
	a := laneOf(kafka.Message{Key: []byte("SPY"), Partition: 0}, 8)
	b := laneOf(kafka.Message{Key: []byte("SPY"), Partition: 5}, 8)
	if a != b {
		t.Fatalf("same key on lanes %d and %d", a, b)
	}
	if got := laneOf(kafka.Message{Partition: 11}, 8); got != 3 {
		t.Fatalf("keyless lane = %d, want 3", got)
	}
	if got := laneOf(kafka.Message{Key: []byte("QQQ")}, 1); got != 0 {
		t.Fatalf("single lane = %d", got)
	}
}

func TestAttemptRetries(t *testing.T) {
	transient := errors.New("redis down")
	cases := []struct {
		name      string
		retries   int
		fn        func(call int) error
		wantCalls int
		wantErr   bool
		permanent bool
	}{
		{"succeeds after transient", 3, func(call int) error {
			if call < 3 {
				return transient
			}
			return nil
		}, 3, false, false},
		{"exhausts retries", 2, func(int) error { return transient }, 3, true, false},
		{"permanent stops at once", 5, func(int) error { return Permanent(errors.New("bad bar")) }, 1, true, true},
		{"panic is permanent", 5, func(int) error { panic("boom") }, 1, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestConsumer(t, tc.retries)
			h := &stubHandler{fn: tc.fn}
			err := backoff.Retry(func() error {
				return c.attempt(delivery{topic: "bars", handler: h})
			}, c.retryPolicy())
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if h.calls != tc.wantCalls {
				t.Fatalf("calls = %d, want %d", h.calls, tc.wantCalls)
			}
			if IsPermanent(err) != tc.permanent {
				t.Fatalf("permanent = %v, want %v", IsPermanent(err), tc.permanent)
			}
		})
	}
}

func TestStartWithoutHandlers(t *testing.T) {
	c := newTestConsumer(t, 0)
	if err := c.Start(); err == nil {
		t.Fatal("expected error without handlers")
	}
	c.RegisterHandler(&stubHandler{})
	c.RegisterHandler(&stubHandler{})
	if len(c.handlers) != 1 {
		t.Fatalf("handlers = %d, want 1", len(c.handlers))
	}
}
