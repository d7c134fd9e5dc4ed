package queue

import (
	"encoding/json"
	"testing"
	"time"
)

type samplePayload struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func TestMessageRoundTripAndParsePayload(t *testing.T) {
	raw, _ := json.Marshal(samplePayload{Symbol: "SPY", Price: 101.5})
	in := Message{ID: "m1", Type: "plan", Payload: raw, Timestamp: time.Unix(1723450800, 0).UTC()}
	b, err := EncodeMessage(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeMessage(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ID != "m1" || out.Type != "plan" || !out.Timestamp.Equal(in.Timestamp) {
		t.Fatalf("unexpected message: %+v", out)
	}
	p, err := ParsePayload[samplePayload](out)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if p.Symbol != "SPY" || p.Price != 101.5 {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	if _, err := DecodeMessage([]byte("not json")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestQueueKeyUsesPrefix(t *testing.T) {
	q := NewRedisPublisher(nil, nil, WithKeyPrefix("strat:plans"))
	if got := q.QueueKey(); got != "strat:plans:messages" {
		t.Fatalf("key = %q", got)
	}
	q = NewRedisPublisher(nil, nil, WithKeyPrefix(""))
	if got := q.QueueKey(); got != "strat:queue:messages" {
		t.Fatalf("default key = %q", got)
	}
}
