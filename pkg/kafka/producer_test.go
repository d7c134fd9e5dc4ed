package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestBuildMessage(t *testing.T) {
	now := time.Unix(1723450800, 0)
	ctx := ContextWithTraceID(context.Background(), "abc123")

	msg, err := buildMessage(ctx, "strat.plans", Record{
		Key:   []byte("SPY"),
		Type:  "strat.plan",
		Value: map[string]float64{"entry": 101.5},
	}, now)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if string(msg.Value) != `{"entry":101.5}` || string(msg.Key) != "SPY" || !msg.Time.Equal(now) {
		t.Fatalf("message = %+v", msg)
	}
	if header(msg, HeaderMsgType) != "strat.plan" || header(msg, HeaderTraceID) != "abc123" {
		t.Fatalf("headers = %+v", msg.Headers)
	}

	raw, err := buildMessage(context.Background(), "t", Record{Value: "plain"}, now)
	if err != nil || string(raw.Value) != "plain" || len(raw.Headers) != 0 {
		t.Fatalf("raw = %+v err=%v", raw, err)
	}

	if _, err := buildMessage(context.Background(), "t", Record{Value: make(chan int)}, now); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestProducerConfig(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatal("expected error without brokers")
	}
	if _, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithDelivery(5, 0)); err == nil {
		t.Fatal("expected error for invalid acks")
	}

	cfg := defaultProducerConfig()
	WithBatching(0, 2048, 0)(&cfg)
	if cfg.BatchSize != 100 || cfg.BatchBytes != 2048 || cfg.BatchTimeout != 10*time.Millisecond {
		t.Fatalf("batching = %+v", cfg)
	}
	if parseCompression("none") != 0 || parseCompression("zstd") != kafka.Zstd {
		t.Fatal("compression mapping")
	}
}

func TestTraceHookCarriesHeader(t *testing.T) {
	km := kafka.Message{Headers: []kafka.Header{{Key: HeaderTraceID, Value: []byte("t-1")}}}
	var lag time.Duration
	hooks := Hooks{
		LagHook{Observe: func(_ string, d time.Duration) { lag = d }},
		TraceHook{},
	}
	km.Time = time.Now().Add(-2 * time.Second)
	ctx, _, _, err := hooks.BeforeHandle(context.Background(), "strat.bars", km, nil)
	if err != nil {
		t.Fatalf("before: %v", err)
	}
	if TraceIDFrom(ctx) != "t-1" {
		t.Fatalf("trace id = %q", TraceIDFrom(ctx))
	}
	if lag < 2*time.Second {
		t.Fatalf("lag = %v", lag)
	}
	hooks.AfterHandle(ctx, "strat.bars", km, nil, nil)
}

type panicHook struct{ NoopHook }

func (panicHook) BeforeHandle(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
	panic("boom")
}

func TestHooksRecoverPanics(t *testing.T) {
	_, _, _, err := Hooks{panicHook{}}.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}
}
