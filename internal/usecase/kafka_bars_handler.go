package usecase

import (
	"context"
	"errors"
	"time"

	"StratEngine/internal/domain/models"
	domrepo "StratEngine/internal/domain/repository"
	mid "StratEngine/internal/middleware"
	pkgkafka "StratEngine/pkg/kafka"
)

// KafkaBarsHandler consumes bar messages and feeds them through the ingest pipeline.
type KafkaBarsHandler struct {
	topic   string
	pipe    mid.Proc
	metrics domrepo.Metrics
}

func NewKafkaBarsHandler(topic string, pipe mid.Proc, metrics domrepo.Metrics) *KafkaBarsHandler {
	return &KafkaBarsHandler{topic: topic, pipe: pipe, metrics: metrics}
}

func (h *KafkaBarsHandler) Topic() string { return h.topic }

// Handle decodes one message. Undecodable or malformed bars are permanent
// failures; bars with an unknown timeframe are dropped and counted.
func (h *KafkaBarsHandler) Handle(ctx context.Context, b []byte) error {
	bar, err := DecodeBar(b)
	if err != nil {
		if errors.Is(err, models.ErrUnknownTimeframe) {
			h.metrics.RecordDropped("unknown_timeframe")
			return nil
		}
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(err)
	}
	// feed lag from bar open to now (approx)
	h.metrics.RecordLatency("ingest_lag_seconds", time.Since(bar.OpenTime).Seconds())

	if err := h.pipe.Process(ctx, bar); err != nil {
		if errors.Is(err, models.ErrInvalidBarGeometry) || errors.Is(err, models.ErrUnknownTimeframe) {
			return pkgkafka.Permanent(err)
		}
		h.metrics.RecordError("consumer_ingest")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaBarsHandler)(nil)
