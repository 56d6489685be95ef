package di

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"TradeCast/internal/domain"
	domrepo "TradeCast/internal/domain/repository"
	domsvc "TradeCast/internal/domain/service"
	"TradeCast/internal/handler/api"
	"TradeCast/internal/repository"
	"TradeCast/internal/service/ratelimit"
	"TradeCast/internal/services/forecast"
	"TradeCast/internal/usecase"
	"TradeCast/pkg/cache"
	pkgch "TradeCast/pkg/clickhouse"
	"TradeCast/pkg/config"
	xhttp "TradeCast/pkg/http"
	pkgkafka "TradeCast/pkg/kafka"
	"TradeCast/pkg/logger"
	"TradeCast/pkg/metrics"
	pkgpg "TradeCast/pkg/postgres"
	"TradeCast/pkg/server"
)

// Backend bundles the read-only store, its raw catalog and lifecycle hooks
// for whichever database store.backend selects.
type Backend struct {
	Store   domrepo.TradeFlowStore
	Catalog domrepo.Catalog
	Health  xhttp.HealthCheck
	Close   func() error
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New(nil)
}

// ProvideTables validates the configured table names.
func ProvideTables(cfg *config.Config) (repository.Tables, error) {
	t := repository.Tables{
		Facts:     cfg.Store.Tables.Facts,
		Products:  cfg.Store.Tables.Products,
		Countries: cfg.Store.Tables.Countries,
	}
	if err := t.Validate(); err != nil {
		return repository.Tables{}, fmt.Errorf("store tables: %w", err)
	}
	return t, nil
}

// backendOpener connects one kind of store.backend.
type backendOpener func(cfg *config.Config, tables repository.Tables, l *logger.Logger) (*Backend, error)

var backends = map[string]backendOpener{
	"postgres":   providePostgresBackend,
	"clickhouse": provideClickHouseBackend,
}

// ProvideBackend connects to the configured trade-flow database. The cleanup
// closes the store and its connection pool.
func ProvideBackend(cfg *config.Config, tables repository.Tables, l *logger.Logger) (*Backend, func(), error) {
	open, ok := backends[cfg.Store.Backend]
	if !ok {
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	b, err := open(cfg, tables, l)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := b.Store.Close(); err != nil {
			l.Warn("close error", logger.String("resource", "store"), logger.Error(err))
		}
		if err := b.Close(); err != nil {
			l.Warn("close error", logger.String("resource", "database"), logger.Error(err))
		}
	}
	return b, cleanup, nil
}

func providePostgresBackend(cfg *config.Config, tables repository.Tables, l *logger.Logger) (*Backend, error) {
	client, err := pkgpg.NewClient(context.Background(),
		pkgpg.WithDSN(cfg.Postgres.DSN),
		pkgpg.WithPool(cfg.Postgres.MaxConns, cfg.Postgres.MinConns, cfg.Postgres.MaxConnLifetime),
		pkgpg.WithConnectTimeout(cfg.Postgres.ConnectTimeout),
		pkgpg.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}
	store, err := repository.NewPostgresTradeStore(client.Pool(), tables, l)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	catalog, err := repository.NewPostgresCatalog(client.Pool(), tables)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Backend{Store: store, Catalog: catalog, Health: client.Health, Close: client.Close}, nil
}

func provideClickHouseBackend(cfg *config.Config, tables repository.Tables, l *logger.Logger) (*Backend, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithReadOnly(true),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithMaxResultRows(cfg.ClickHouse.MaxResultRows),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	store, err := repository.NewCHTradeStore(client, tables, l)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	catalog, err := repository.NewCHCatalog(client, tables)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Backend{Store: store, Catalog: catalog, Health: client.Health, Close: client.Close}, nil
}

// ProvideRedis returns nil when Redis is disabled.
func ProvideRedis(cfg *config.Config, l *logger.Logger) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPoolSize(cfg.Redis.PoolSize),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	cleanup := func() {
		if err := rc.Close(); err != nil {
			l.Warn("close error", logger.String("resource", "redis"), logger.Error(err))
		}
	}
	return rc, cleanup, nil
}

// ProvideCatalog caches selector lists in memory, backed by Redis when enabled.
func ProvideCatalog(b *Backend, rc *cache.RedisCache, cfg *config.Config) domrepo.Catalog {
	var c cache.Service
	if rc != nil {
		c = cache.NewLayeredCache(rc, cache.WithLayeredMemoryTTL(cfg.Catalog.MemoryTTL))
	} else {
		c = cache.NewMemoryCache(cache.WithMemoryDefaultTTL(cfg.Catalog.TTL))
	}
	return repository.NewCachedCatalog(b.Catalog, c, cfg.Catalog.TTL)
}

// ProvideVersionStore counts request versions in Redis so several replicas
// agree on the latest request, or in process memory otherwise.
func ProvideVersionStore(rc *cache.RedisCache) domrepo.VersionStore {
	if rc != nil {
		return repository.NewCacheVersionStore(rc, 0)
	}
	return repository.NewCacheVersionStore(cache.NewMemoryCache(), 0)
}

// ProvideForecaster picks the local engine or the remote model service.
func ProvideForecaster(cfg *config.Config) domsvc.Forecaster {
	fc := cfg.Forecast
	if fc.Backend == forecast.RemoteName {
		return forecast.NewRemoteForecaster(fc.RemoteURL, fc.Timeout, fc.Attempts, forecast.WithRemoteMaxHorizon(fc.MaxHorizon))
	}
	opts := []forecast.Option{forecast.WithMaxHorizon(fc.MaxHorizon)}
	if fc.Uncertainty == string(forecast.UncertaintySampled) {
		opts = append(opts, forecast.WithSampling(fc.Samples, fc.Seed))
	}
	return forecast.NewEngine(opts...)
}

func ProvidePipeline(b *Backend, f domsvc.Forecaster, m domrepo.Metrics, cfg *config.Config, l *logger.Logger) *usecase.ForecastPipeline {
	return usecase.NewForecastPipeline(usecase.NewAggregator(b.Store), f, m,
		usecase.WithFitTimeout(cfg.Forecast.FitTimeout),
		usecase.WithMaxHorizon(cfg.Forecast.MaxHorizon),
		usecase.WithPipelineLogger(l.With(logger.String("component", "pipeline"))),
	)
}

func ProvideDispatcher(p *usecase.ForecastPipeline, v domrepo.VersionStore, m domrepo.Metrics, cfg *config.Config, l *logger.Logger) *usecase.Dispatcher {
	return usecase.NewDispatcher(p, v, m, l.With(logger.String("component", "dispatcher")),
		cfg.Dispatcher.Workers, cfg.Dispatcher.QueueSize)
}

// ProvideKafkaProducer returns nil when Kafka is disabled. The cleanup flushes
// pending messages.
func ProvideKafkaProducer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	p := cfg.Kafka.Producer
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(p.BatchSize, p.BatchBytes, p.Linger),
		pkgkafka.WithTimeouts(p.WriteTimeout, p.ReadTimeout),
		pkgkafka.WithMaxAttempts(p.MaxAttempts),
		pkgkafka.WithAsync(p.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	cleanup := func() {
		if err := producer.Close(); err != nil {
			l.Warn("close error", logger.String("resource", "kafka producer"), logger.Error(err))
		}
	}
	return producer, cleanup, nil
}

// ProvideKafkaConsumer returns nil when Kafka is disabled. Only data-source
// failures are retried; the rest go straight to the DLQ.
func ProvideKafkaConsumer(cfg *config.Config, m domrepo.Metrics, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	c := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(c.GroupID),
		pkgkafka.WithConsumerWorkers(c.Workers),
		pkgkafka.WithConsumerBufferSize(c.BufferSize),
		pkgkafka.WithConsumerRetry(c.RetryMax, c.BackoffMin, c.BackoffMax),
		pkgkafka.WithConsumerRetryPolicy(domain.IsRetryable),
		pkgkafka.WithConsumerDLQ(c.DLQTopic),
		pkgkafka.WithConsumerFetch(c.MinBytes, c.MaxBytes),
		pkgkafka.WithConsumerLogger(l.With(logger.String("component", "kafka"))),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(consumerHooks(m, l))
	return consumer, nil
}

// consumerHooks times every handled request and logs failures with the
// message key, which carries the session.
func consumerHooks(m domrepo.Metrics, l *logger.Logger) pkgkafka.ConsumerHook {
	return pkgkafka.NewHookChain(
		pkgkafka.TimingHook(),
		pkgkafka.HookFuncs{
			After: func(ctx context.Context, topic string, _ kafka.Message, _ error) {
				if start, ok := pkgkafka.StartTime(ctx); ok {
					m.RecordLatency("kafka_handle", time.Since(start).Seconds())
				}
			},
			Err: func(ctx context.Context, topic string, _ kafka.Message, err error) {
				l.Warn("kafka request failed",
					logger.String("topic", topic),
					logger.String("key", pkgkafka.MessageKey(ctx)),
					logger.Error(err))
			},
		},
	)
}

// ProvideKafkaForecastHandler returns nil when Kafka is disabled.
func ProvideKafkaForecastHandler(cfg *config.Config, producer *pkgkafka.Producer, d *usecase.Dispatcher, m domrepo.Metrics, l *logger.Logger) *usecase.KafkaForecastHandler {
	if producer == nil {
		return nil
	}
	results := repository.NewKafkaResultPublisher(producer, cfg.Kafka.ResultsTopic)
	return usecase.NewKafkaForecastHandler(cfg.Kafka.RequestsTopic, d, results, m, l)
}

// ProvideHTTPServer assembles routes, middleware and health checks.
func ProvideHTTPServer(cfg *config.Config, l *logger.Logger, d *usecase.Dispatcher, catalog domrepo.Catalog, b *Backend, rc *cache.RedisCache) *xhttp.Server {
	handlers := []xhttp.Handler{
		api.NewForecastEchoHandler(l, d, catalog),
		api.NewWSHandler(l, d, catalog, cfg.Server.AllowOrigins),
	}

	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithAllowOrigins(cfg.Server.AllowOrigins),
		xhttp.WithLogger(l),
		xhttp.WithHealthCheck("store", b.Health),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path))
	}
	if rl := cfg.Server.RateLimit; rl.Enabled {
		opts = append(opts, xhttp.WithRateLimit(ratelimit.New(rl.RPS, rl.Burst)))
	}
	if rc != nil {
		opts = append(opts, xhttp.WithHealthCheck("redis", rc.Ping))
	}
	return xhttp.NewServer(handlers, opts...)
}

// ProvideApp creates the application server and attaches the Kafka log
// digest collector when a topic is configured. Infrastructure is released by
// the injector's cleanup, not here.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	srv *xhttp.Server,
	d *usecase.Dispatcher,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaForecastHandler,
	producer *pkgkafka.Producer,
) *server.App {
	app := server.New(cfg, l, srv, d)

	if consumer != nil && kh != nil {
		app.WithConsumer(consumer, kh)
	}
	if producer != nil && cfg.Logging.CollectTopic != "" {
		l.AttachCollector(logger.NewCollector(logger.CollectorConfig{
			Interval:  cfg.Logging.CollectEvery,
			Topic:     cfg.Logging.CollectTopic,
			Source:    "tradecast",
			GroupBy:   []string{"kind", "stage", "component"},
			Publisher: producer,
		}))
	}
	return app
}
