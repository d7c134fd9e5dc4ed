package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"StratEngine/pkg/logger"
)

// Header keys stamped by Producer and read back by TraceHook.
const (
	HeaderTraceID = "trace_id"
	HeaderMsgType = "msg_type"
)

// ConsumerHook runs around every handler invocation. An error from
// BeforeHandle skips the handler and is treated like a handler failure.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
	OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
}

type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	return ctx, km, data, nil
}

func (NoopHook) AfterHandle(context.Context, string, kafka.Message, []byte, error) {}

func (NoopHook) OnError(context.Context, string, kafka.Message, []byte, error) {}

// Hooks runs several hooks as one. Before hooks run in order, after hooks in
// reverse. A panicking hook is turned into an error or ignored.
type Hooks []ConsumerHook

func (hs Hooks) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	for _, h := range hs {
		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("hook panic: %v", r)
				}
			}()
			ctx, km, data, err = h.BeforeHandle(ctx, topic, km, data)
		}()
		if err != nil {
			return ctx, km, data, err
		}
	}
	return ctx, km, data, nil
}

func (hs Hooks) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	for i := len(hs) - 1; i >= 0; i-- {
		h := hs[i]
		guard(func() { h.AfterHandle(ctx, topic, km, data, err) })
	}
}

func (hs Hooks) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	for _, h := range hs {
		guard(func() { h.OnError(ctx, topic, km, data, err) })
	}
}

func guard(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

type ctxKey int

const (
	startKey ctxKey = iota
	traceKey
)

// ContextWithTraceID attaches a trace id that Producer copies into message headers.
func ContextWithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, traceKey, id)
}

// TraceIDFrom returns the trace id carried by ctx, if any.
func TraceIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(traceKey).(string)
	return id
}

func header(km kafka.Message, key string) string {
	for _, h := range km.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// TraceHook carries the upstream trace id into the handler context so plans
// published while handling a bar keep it. Slow messages and failures are logged.
type TraceHook struct {
	Logger *logger.Logger
	Slow   time.Duration
}

func (h TraceHook) BeforeHandle(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	ctx = context.WithValue(ctx, startKey, time.Now())
	return ContextWithTraceID(ctx, header(km, HeaderTraceID)), km, data, nil
}

func (h TraceHook) AfterHandle(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
	if h.Logger == nil || h.Slow <= 0 || err != nil {
		return
	}
	start, ok := ctx.Value(startKey).(time.Time)
	if !ok {
		return
	}
	if d := time.Since(start); d > h.Slow {
		h.Logger.Warn("kafka consumer: slow bar",
			logger.String("topic", topic),
			logger.String("symbol", string(km.Key)),
			logger.String("trace_id", TraceIDFrom(ctx)),
			logger.Duration("elapsed", d))
	}
}

func (h TraceHook) OnError(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
	if h.Logger == nil {
		return
	}
	h.Logger.Debug("kafka consumer: attempt failed",
		logger.String("topic", topic),
		logger.Int("partition", km.Partition),
		logger.Int64("offset", km.Offset),
		logger.String("trace_id", TraceIDFrom(ctx)),
		logger.Error(err))
}

// LagHook reports how far behind the broker timestamp each message is handled.
type LagHook struct {
	Observe func(topic string, lag time.Duration)
}

func (h LagHook) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	if h.Observe != nil && !km.Time.IsZero() {
		h.Observe(topic, time.Since(km.Time))
	}
	return ctx, km, data, nil
}

func (LagHook) AfterHandle(context.Context, string, kafka.Message, []byte, error) {}

func (LagHook) OnError(context.Context, string, kafka.Message, []byte, error) {}
