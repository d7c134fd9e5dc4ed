package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StratEngine/internal/domain/models"
	"StratEngine/internal/domain/repository"
	"StratEngine/internal/handler/api"
	mid "StratEngine/internal/middleware"
	internalrepo "StratEngine/internal/repository"
	"StratEngine/internal/service/barstream"
	"StratEngine/internal/services/pattern"
	"StratEngine/internal/services/planner"
	"StratEngine/internal/usecase"
	"StratEngine/pkg/cache"
	pkgch "StratEngine/pkg/clickhouse"
	"StratEngine/pkg/config"
	xhttp "StratEngine/pkg/http"
	pkgkafka "StratEngine/pkg/kafka"
	"StratEngine/pkg/logger"
	"StratEngine/pkg/metrics"
	"StratEngine/pkg/queue"
	"StratEngine/pkg/server"
)

func noop() {}

func feedUsesKafka(cfg *config.Config) bool {
	return cfg.Feed.Mode == "kafka" || cfg.Feed.Mode == "both"
}

func feedUsesWebSocket(cfg *config.Config) bool {
	return cfg.Feed.Mode == "websocket" || cfg.Feed.Mode == "both"
}

// ProvideKafkaProducer creates the producer used by the plan sink and the log
// collector. Returns nil when neither needs Kafka.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, noop, nil
	}
	if cfg.Sink.Backend != "kafka" && cfg.Logging.CollectorTopic == "" {
		return nil, noop, nil
	}
	p, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return p, func() { _ = p.Close() }, nil
}

// ProvideLogger builds the application logger. When a collector topic is
// configured, error entries are aggregated and published through the producer.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, func(), error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, nil, err
	}
	if producer == nil || cfg.Logging.CollectorTopic == "" {
		return l, noop, nil
	}
	l.AddCollector(&logger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: cfg.Logging.CollectorThreshold,
		Topic:          cfg.Logging.CollectorTopic,
		Publisher:      producer,
		CollectWarn:    cfg.Environment != "production",
	})
	return l, l.RemoveCollector, nil
}

// ProvideMetrics creates the Prometheus recorder on the default registry.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient connects to ClickHouse when it backs the audit trail.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if cfg.Audit.Backend != "clickhouse" {
		return nil, noop, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideAuditStore opens the configured audit backend and ensures its schema.
func ProvideAuditStore(cfg *config.Config, ch *pkgch.Client, l *logger.Logger) (repository.AuditStore, func(), error) {
	var store repository.AuditStore
	switch cfg.Audit.Backend {
	case "clickhouse":
		if ch == nil {
			return nil, nil, errors.New("audit: clickhouse client not configured")
		}
		store = internalrepo.NewClickHouseAuditStore(ch, cfg.ClickHouse.Database, l)
	case "sqlite":
		s, err := internalrepo.NewSQLiteAuditStore(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite audit: %w", err)
		}
		store = s
	default:
		return nil, noop, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("audit schema: %w", err)
	}
	l.Info("audit store ready", logger.String("backend", cfg.Audit.Backend))
	return store, func() { _ = store.Close() }, nil
}

// ProvideRedisCache connects to Redis when the sink or the snapshot cache uses it.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, func(), error) {
	if cfg.Sink.Backend != "redis" && cfg.Cache.Backend != "redis" {
		return nil, noop, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideSnapshotCache selects the continuity snapshot cache.
func ProvideSnapshotCache(cfg *config.Config, rc *cache.RedisCache) (repository.SnapshotCache, func()) {
	switch cfg.Cache.Backend {
	case "redis":
		if rc == nil {
			return nil, noop
		}
		lc := cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(4096))
		return internalrepo.NewCachedSnapshotStore(lc, cfg.Redis.SnapshotTTL), noop
	case "memory":
		mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(4096))
		return internalrepo.NewCachedSnapshotStore(mc, cfg.Redis.SnapshotTTL), func() { _ = mc.Close() }
	default:
		return nil, noop
	}
}

// ProvidePlanSink wraps the configured publisher in a retrying dispatcher.
func ProvidePlanSink(
	cfg *config.Config,
	producer *pkgkafka.Producer,
	rc *cache.RedisCache,
	m repository.Metrics,
	l *logger.Logger,
) (repository.PlanSink, error) {
	var sink repository.PlanSink
	switch cfg.Sink.Backend {
	case "kafka":
		if producer == nil {
			return nil, errors.New("sink: kafka producer not configured")
		}
		sink = internalrepo.NewKafkaPlanPublisher(producer, cfg.Sink.KafkaTopic, cfg.Sink.ExitTopic)
	case "redis":
		if rc == nil {
			return nil, errors.New("sink: redis not configured")
		}
		q := queue.NewRedisPublisher(l, rc.Client(),
			queue.WithKeyPrefix(cfg.Redis.Prefix+":plans"),
			queue.WithMaxLen(cfg.Redis.QueueMaxLen),
		)
		sink = internalrepo.NewRedisPlanQueue(q)
	default:
		return nil, nil
	}
	return usecase.NewPlanDispatcher(sink, m, l, cfg.Sink.Backend, cfg.Sink.MaxElapsed), nil
}

// ProvidePipelineConfig translates engine and risk settings into pipeline wiring.
func ProvidePipelineConfig(cfg *config.Config) (usecase.PipelineConfig, error) {
	tfs, err := cfg.ParsedTimeframes()
	if err != nil {
		return usecase.PipelineConfig{}, err
	}
	kinds, err := cfg.ParsedPatterns()
	if err != nil {
		return usecase.PipelineConfig{}, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return usecase.PipelineConfig{}, err
	}

	opts := []pattern.Option{
		pattern.WithTick(cfg.Engine.TickSize),
		pattern.WithTier(models.ConfirmationTier(cfg.Engine.ConfirmationTier)),
		pattern.WithMaxPendingBars(cfg.Engine.MaxPendingBars),
		pattern.WithRecentLimit(cfg.Engine.RecentLimit),
	}
	if len(kinds) > 0 {
		opts = append(opts, pattern.WithKinds(kinds...))
	}

	pl := planner.New(planner.Config{
		Tick:               cfg.Engine.TickSize,
		BufferTicks:        cfg.Risk.BufferTicks,
		AccountValue:       cfg.Risk.AccountValue,
		RiskPercentFull:    cfg.Risk.RiskPercentFull,
		RiskPercentPartial: cfg.Risk.RiskPercentPartial,
		MaxRiskReward:      cfg.Risk.MaxRiskReward,
		MinConfidence:      cfg.Risk.MinConfidence,
		BaseConfidence:     cfg.Risk.BaseConfidence,
	})

	return usecase.PipelineConfig{
		Timeframes:     tfs,
		Rollup:         cfg.Engine.Rollup,
		Window:         cfg.Engine.Window,
		Location:       loc,
		PatternOptions: opts,
		Planner:        pl,
	}, nil
}

// ProvideEngine assembles the per-symbol engine with its adapters.
func ProvideEngine(
	cfg *config.Config,
	pc usecase.PipelineConfig,
	m repository.Metrics,
	l *logger.Logger,
	sink repository.PlanSink,
	audit repository.AuditStore,
	snaps repository.SnapshotCache,
) *usecase.Engine {
	return usecase.NewEngine(pc, m, l.With(logger.String("component", "engine")),
		usecase.WithPlanSink(sink),
		usecase.WithAuditStore(audit),
		usecase.WithSnapshotCache(snaps),
		usecase.WithSymbols(cfg.Engine.Symbols...),
	)
}

// ProvideIngestPipeline puts rate limiting and symbol normalization in front of the engine.
func ProvideIngestPipeline(cfg *config.Config, engine *usecase.Engine, m repository.Metrics) *mid.IngestPipeline {
	return mid.NewIngestPipeline(engine, m,
		mid.WithMaxRPS(cfg.Feed.MaxRPS),
		mid.WithBurst(cfg.Feed.Burst),
		mid.WithTransform(mid.NormalizeSymbol),
	)
}

// ProvideKafkaConsumer subscribes the bars handler when the feed includes Kafka.
func ProvideKafkaConsumer(
	cfg *config.Config,
	pipe *mid.IngestPipeline,
	m repository.Metrics,
	l *logger.Logger,
) (*pkgkafka.Consumer, error) {
	if !feedUsesKafka(cfg) {
		return nil, nil
	}
	kc := cfg.Kafka.Consumer
	c, err := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:    cfg.Kafka.Brokers,
		GroupID:    kc.GroupID,
		Workers:    kc.Workers,
		QueueSize:  kc.BufferSize,
		Retries:    kc.RetryMax,
		BackoffMin: kc.BackoffMin,
		BackoffMax: kc.BackoffMax,
		DLQTopic:   kc.DLQTopic,
		MinBytes:   kc.MinBytes,
		MaxBytes:   kc.MaxBytes,
	}, l)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	c.Use(pkgkafka.Hooks{
		pkgkafka.LagHook{Observe: func(_ string, lag time.Duration) {
			m.RecordLatency("kafka_lag", lag.Seconds())
		}},
		pkgkafka.TraceHook{Logger: l, Slow: 250 * time.Millisecond},
	})
	c.RegisterHandler(usecase.NewKafkaBarsHandler(cfg.Feed.KafkaTopic, pipe, m))
	return c, nil
}

// ProvideBarCollector connects the WebSocket bar feed when configured.
func ProvideBarCollector(
	cfg *config.Config,
	pipe *mid.IngestPipeline,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.BarCollector {
	if !feedUsesWebSocket(cfg) {
		return nil
	}
	stream := barstream.New(barstream.Config{
		URL:            cfg.Feed.WebSocketURL,
		Token:          cfg.Feed.Token,
		Symbols:        cfg.Engine.Symbols,
		Timeframes:     cfg.Engine.Timeframes,
		ReconnectDelay: cfg.Feed.ReconnectDelay,
		PingInterval:   cfg.Feed.PingInterval,
	}, l.With(logger.String("component", "barstream")))
	return usecase.NewBarCollector(stream, pipe, m, l)
}

// ProvideScheduler registers the cache refresh and retention jobs.
func ProvideScheduler(
	cfg *config.Config,
	engine *usecase.Engine,
	audit repository.AuditStore,
	m repository.Metrics,
	l *logger.Logger,
) (*usecase.Scheduler, error) {
	s := usecase.NewScheduler(context.Background(), usecase.SchedulerConfig{
		RefreshCron:   cfg.Scheduler.RefreshCron,
		RetentionCron: cfg.Scheduler.RetentionCron,
		Retention:     cfg.Scheduler.Retention,
	}, engine, audit, m, l.With(logger.String("component", "scheduler")))
	if err := s.RegisterAll(); err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return s, nil
}

// ProvideHTTPServer exposes the query API, health and metrics.
func ProvideHTTPServer(
	cfg *config.Config,
	l *logger.Logger,
	engine *usecase.Engine,
	snaps repository.SnapshotCache,
	audit repository.AuditStore,
	rc *cache.RedisCache,
	collector *usecase.BarCollector,
) *xhttp.Server {
	checks := map[string]api.HealthCheck{}
	if audit != nil {
		checks["audit"] = audit.Health
	}
	if rc != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rc.Client().Ping(ctx).Err()
		}
	}
	if collector != nil {
		checks["feed"] = func(context.Context) error {
			if !collector.IsConnected() {
				return errors.New("bar stream disconnected")
			}
			return nil
		}
	}

	h := api.NewStratEchoHandler(l, engine, snaps, checks)
	return xhttp.NewServer(h, l, xhttp.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORS:            cfg.Server.CORS,
		DisableMetrics:  cfg.Metrics.Disabled,
	})
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	engine *usecase.Engine,
	consumer *pkgkafka.Consumer,
	collector *usecase.BarCollector,
	scheduler *usecase.Scheduler,
	httpServer *xhttp.Server,
) *server.App {
	return server.New(cfg, l, engine, consumer, collector, scheduler, httpServer)
}
