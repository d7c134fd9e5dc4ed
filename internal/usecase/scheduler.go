package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	drepo "StratEngine/internal/domain/repository"
	"StratEngine/pkg/logger"
)

// SchedulerConfig holds cron specs (six fields, seconds first).
type SchedulerConfig struct {
	RefreshCron   string
	RetentionCron string
	Retention     time.Duration
}

// Scheduler runs periodic maintenance: continuity cache refresh and audit retention.
type Scheduler struct {
	cron    *cron.Cron
	engine  *Engine
	audit   drepo.AuditStore
	cfg     SchedulerConfig
	logger  *logger.Logger
	metrics drepo.Metrics
	ctx     context.Context
	now     func() time.Time
}

func NewScheduler(ctx context.Context, cfg SchedulerConfig, engine *Engine, audit drepo.AuditStore, metrics drepo.Metrics, log *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		engine:  engine,
		audit:   audit,
		cfg:     cfg,
		logger:  log,
		metrics: metrics,
		ctx:     ctx,
		now:     time.Now,
	}
}

// RegisterAll registers the configured tasks. Empty specs are skipped.
func (s *Scheduler) RegisterAll() error {
	if s.cfg.RefreshCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.RefreshCron, s.refreshTask); err != nil {
			return fmt.Errorf("register refresh task: %w", err)
		}
	}
	if s.cfg.RetentionCron != "" && s.audit != nil && s.cfg.Retention > 0 {
		if _, err := s.cron.AddFunc(s.cfg.RetentionCron, s.retentionTask); err != nil {
			return fmt.Errorf("register retention task: %w", err)
		}
	}
	return nil
}

// Entries returns the number of registered tasks.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", logger.Int("tasks", s.Entries()))
}

// Stop waits for running tasks to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) refreshTask() {
	start := time.Now()
	n, err := s.engine.RefreshCache(s.ctx)
	s.metrics.RecordLatency("scheduler_refresh", time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordError("scheduler_refresh")
		s.logger.Error("continuity refresh failed", logger.Error(err))
		return
	}
	s.logger.Debug("continuity refreshed", logger.Int("symbols", n))
}

func (s *Scheduler) retentionTask() {
	cutoff := s.now().Add(-s.cfg.Retention)
	removed, err := s.audit.Purge(s.ctx, cutoff)
	if err != nil {
		s.metrics.RecordError("scheduler_retention")
		s.logger.Error("audit purge failed", logger.Error(err))
		return
	}
	s.logger.Info("audit purged", logger.Int64("rows", removed), logger.Time("before", cutoff))
}
