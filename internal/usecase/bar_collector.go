package usecase

import (
	"context"
	"time"

	"StratEngine/internal/domain/models"
	drepo "StratEngine/internal/domain/repository"
	mid "StratEngine/internal/middleware"
	"StratEngine/pkg/logger"
)

// BarCollector pulls bars from a streaming feed into the ingest pipeline.
type BarCollector struct {
	stream  drepo.BarStream
	pipe    mid.Proc
	metrics drepo.Metrics
	logger  *logger.Logger
}

// NewBarCollector creates a new BarCollector instance.
func NewBarCollector(stream drepo.BarStream, pipe mid.Proc, metrics drepo.Metrics, log *logger.Logger) *BarCollector {
	return &BarCollector{stream: stream, pipe: pipe, metrics: metrics, logger: log}
}

// IsConnected returns true if the bar stream is connected.
func (c *BarCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *BarCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	barCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, barCh, errCh)
	return nil
}

func (c *BarCollector) consume(ctx context.Context, barCh <-chan *models.Bar, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err == nil {
				continue
			}
			c.metrics.RecordError("stream")
			c.logger.Warn("bar stream error, reconnecting", logger.Error(err))
			if rerr := c.stream.Reconnect(ctx); rerr != nil {
				c.logger.Error("bar stream reconnect failed", logger.Error(rerr))
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
			}
		case b, ok := <-barCh:
			if !ok {
				return
			}
			if b == nil {
				continue
			}
			if err := c.pipe.Process(ctx, b); err != nil {
				c.logger.Debug("bar rejected", logger.String("symbol", b.Symbol), logger.Error(err))
			}
		}
	}
}

// Shutdown closes the stream.
func (c *BarCollector) Shutdown(ctx context.Context) error {
	return c.stream.Close()
}
