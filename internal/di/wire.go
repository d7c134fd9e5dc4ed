//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"StratEngine/pkg/config"
	"StratEngine/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideRedisCache,

		// Adapters
		ProvideAuditStore,
		ProvideSnapshotCache,
		ProvidePlanSink,

		// Engine and ingestion
		ProvidePipelineConfig,
		ProvideEngine,
		ProvideIngestPipeline,
		ProvideKafkaConsumer,
		ProvideBarCollector,
		ProvideScheduler,

		// Application server
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
