package repository

import (
	"context"
	"time"

	"TradeCast/internal/domain/models"
)

// TradeFlowStore is the read-only trade-flow record store.
type TradeFlowStore interface {
	// QueryVolumes returns rows grouped by period with summed volume,
	// ordered by period ascending. The filter is fully populated.
	QueryVolumes(ctx context.Context, filter models.SeriesFilter) ([]models.VolumeRow, error)
	Health(ctx context.Context) error
	Close() error
}

// Catalog lists the values available to the UI selectors.
type Catalog interface {
	ListProducts(ctx context.Context) ([]models.CatalogEntry, error)
	ListCountries(ctx context.Context) ([]models.CatalogEntry, error)
}

// VersionStore hands out monotonically increasing request tokens per session.
type VersionStore interface {
	Next(ctx context.Context, session string) (int64, error)
	Latest(ctx context.Context, session string) (int64, error)
}

// ResultPublisher delivers finished envelopes to asynchronous consumers.
type ResultPublisher interface {
	Publish(ctx context.Context, env *models.ForecastEnvelope) error
	Close() error
}

type Metrics interface {
	RecordStage(stage string, d time.Duration)
	RecordError(kind string)
	RecordForecast(forecaster string, horizon int)
	RecordSuperseded(transport string)
	RecordQueueDepth(depth int)
	RecordLatency(op string, seconds float64)
}
