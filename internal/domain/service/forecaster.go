package service

import (
	"context"

	"TradeCast/internal/domain/models"
)

// Model is an opaque fitted model owned by a single request.
type Model interface {
	// Info reports fit metadata for diagnostics.
	Info() models.FitInfo
	// Last is the final observed timestamp the model was fitted on.
	Last() models.TimeSeriesPoint
}

// Forecaster fits a series and projects it forward. Implementations must not
// keep state between calls.
type Forecaster interface {
	Name() string
	Fit(ctx context.Context, series models.Series, cfg models.FitConfig) (Model, error)
	Project(ctx context.Context, model Model, horizon int) ([]models.ForecastPoint, error)
}
