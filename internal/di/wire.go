//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"TradeCast/pkg/config"
	"TradeCast/pkg/logger"
	"TradeCast/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config, l *logger.Logger) (*server.App, func(), error) {
	wire.Build(
		// Metrics
		ProvideMetrics,

		// Infrastructure clients
		ProvideTables,
		ProvideBackend,
		ProvideRedis,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideCatalog,
		ProvideVersionStore,

		// Forecasting
		ProvideForecaster,
		ProvidePipeline,
		ProvideDispatcher,
		ProvideKafkaForecastHandler,

		// Transport and application server
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil, nil
}
