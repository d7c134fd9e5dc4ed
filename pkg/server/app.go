package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"StratEngine/internal/usecase"
	"StratEngine/pkg/config"
	xhttp "StratEngine/pkg/http"
	pkgkafka "StratEngine/pkg/kafka"
	applogger "StratEngine/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	engine     *usecase.Engine
	consumer   *pkgkafka.Consumer
	collector  *usecase.BarCollector
	scheduler  *usecase.Scheduler
	httpServer *xhttp.Server
}

// New creates a new App instance. consumer and collector may be nil when
// the corresponding feed is disabled.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	engine *usecase.Engine,
	consumer *pkgkafka.Consumer,
	collector *usecase.BarCollector,
	scheduler *usecase.Scheduler,
	httpServer *xhttp.Server,
) *App {
	return &App{
		cfg:        cfg,
		logger:     l,
		engine:     engine,
		consumer:   consumer,
		collector:  collector,
		scheduler:  scheduler,
		httpServer: httpServer,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Start launches the HTTP server, the scheduler and the bar feeds.
func (a *App) Start(ctx context.Context) error {
	if err := a.httpServer.Start(); err != nil {
		return err
	}
	a.scheduler.Start()

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.logger.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.logger.Info("kafka consumer started", applogger.String("topic", a.cfg.Feed.KafkaTopic))
	}

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			// only the first dial is fatal; later drops reconnect
			return err
		}
		a.logger.Info("bar stream started", applogger.Strings("symbols", a.cfg.Engine.Symbols))
	}

	a.logger.Info("strat engine running",
		applogger.String("env", a.cfg.Environment),
		applogger.String("feed", a.cfg.Feed.Mode),
		applogger.String("sink", a.cfg.Sink.Backend),
		applogger.String("audit", a.cfg.Audit.Backend),
		applogger.Strings("timeframes", a.cfg.Engine.Timeframes),
	)
	return nil
}

// Shutdown stops feeds first so no bar is processed after the final cache
// refresh, then the scheduler and the HTTP server.
func (a *App) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout+5*time.Second)
	defer cancel()

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.logger.Warn("bar stream stop error", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.scheduler.Stop()

	if n, err := a.engine.RefreshCache(ctx); err != nil {
		a.logger.Warn("final cache refresh failed", applogger.Error(err))
	} else {
		a.logger.Info("final cache refresh", applogger.Int("symbols", n))
	}

	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	a.logger.Info("shutdown complete")
	return nil
}
