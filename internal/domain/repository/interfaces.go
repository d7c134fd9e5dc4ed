package repository

import (
	"context"
	"time"

	"StratEngine/internal/domain/models"
)

type BarStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Bar, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// PlanSink receives emitted trade plans and exit signals.
type PlanSink interface {
	PublishPlan(ctx context.Context, p *models.TradePlan) error
	PublishExit(ctx context.Context, e *models.ExitSignal) error
	Close() error
}

type AuditStore interface {
	Init(ctx context.Context) error // ensure tables
	Append(ctx context.Context, events []models.AuditEvent) error
	StorePlans(ctx context.Context, plans []models.TradePlan) error
	RecentPlans(ctx context.Context, symbol string, limit int) ([]models.TradePlan, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
	Health(ctx context.Context) error
	Close() error
}

type SnapshotCache interface {
	SetContinuity(ctx context.Context, snap *models.ContinuitySnapshot) error
	GetContinuity(ctx context.Context, symbol string) (*models.ContinuitySnapshot, error)
}

type Metrics interface {
	RecordBar(symbol string, tf models.Timeframe)
	RecordDropped(reason string)
	RecordTransition(kind models.PatternKind, to models.PatternStatus)
	RecordPlan(accepted bool, reason models.RejectionReason)
	RecordAlignment(symbol string, aligned int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
