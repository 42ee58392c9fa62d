//go:build wireinject
// +build wireinject

package di

import (
	"VendorLink/pkg/config"
	"VendorLink/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideDecisionSink,
		ProvideDecisionPublisher,

		// Vendor role
		ProvideModel,
		ProvideRecordWriter,
		ProvideInferenceService,
		ProvideHeartbeatSender,
		ProvideHeartbeatEmitter,

		// Infra role
		ProvideDeploymentTracker,
		ProvideIngestor,
		ProvideKafkaHeartbeatHandler,

		// Transport
		ProvideHandlers,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
