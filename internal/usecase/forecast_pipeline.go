package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TradeCast/internal/domain"
	"TradeCast/internal/domain/models"
	domrepo "TradeCast/internal/domain/repository"
	domsvc "TradeCast/internal/domain/service"
	"TradeCast/internal/services/forecast"
	"TradeCast/pkg/logger"
)

// ForecastPipeline runs validate, fetch, normalize, fit, project and package
// for one request. It holds no per-request state and is safe for concurrent use.
type ForecastPipeline struct {
	agg        *Aggregator
	forecaster domsvc.Forecaster
	metrics    domrepo.Metrics
	log        *logger.Logger
	fitTimeout time.Duration
	maxHorizon int
	now        func() time.Time
}

// PipelineOption configures a ForecastPipeline.
type PipelineOption func(*ForecastPipeline)

// WithFitTimeout bounds the fitting stage.
func WithFitTimeout(d time.Duration) PipelineOption {
	return func(p *ForecastPipeline) { p.fitTimeout = d }
}

// WithMaxHorizon caps the number of projected periods.
func WithMaxHorizon(h int) PipelineOption {
	return func(p *ForecastPipeline) { p.maxHorizon = h }
}

func WithPipelineLogger(l *logger.Logger) PipelineOption {
	return func(p *ForecastPipeline) { p.log = l }
}

func NewForecastPipeline(agg *Aggregator, f domsvc.Forecaster, m domrepo.Metrics, opts ...PipelineOption) *ForecastPipeline {
	p := &ForecastPipeline{
		agg:        agg,
		forecaster: f,
		metrics:    m,
		log:        logger.Nop(),
		fitTimeout: 30 * time.Second,
		maxHorizon: 24,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Forecaster exposes the active forecaster name for diagnostics and health output.
func (p *ForecastPipeline) Forecaster() string { return p.forecaster.Name() }

// Forecast produces the history and projection for filter. Errors are always
// *domain.Error values.
func (p *ForecastPipeline) Forecast(ctx context.Context, filter models.SeriesFilter, horizon int, cfg models.FitConfig) (*models.ForecastResult, error) {
	res, _, err := p.ForecastWithStats(ctx, filter, horizon, cfg)
	return res, err
}

// ForecastWithStats is Forecast plus the stage timings of this run. Stats are
// returned even when the run fails.
func (p *ForecastPipeline) ForecastWithStats(ctx context.Context, filter models.SeriesFilter, horizon int, cfg models.FitConfig) (*models.ForecastResult, *models.RunStats, error) {
	start := p.now()
	stats := &models.RunStats{Timings: make(map[string]time.Duration, 6), CreatedAt: start.UTC()}
	log := p.log.With(logger.String("filter", filter.Key()), logger.Int("horizon", horizon))

	res, err := p.run(ctx, filter, horizon, cfg, stats.Timings)
	if err != nil {
		kind := domain.KindOf(err)
		p.metrics.RecordError(string(kind))
		switch kind {
		case domain.KindDataSource, domain.KindModelFit:
			log.Error("forecast failed", logger.String("kind", string(kind)), logger.Error(err))
		default:
			log.Info("forecast rejected", logger.String("kind", string(kind)), logger.Error(err))
		}
		return nil, stats, err
	}

	p.metrics.RecordForecast(p.forecaster.Name(), horizon)
	p.metrics.RecordLatency("forecast", p.now().Sub(start).Seconds())
	log.Debug("forecast done",
		logger.Int("observations", len(res.History)),
		logger.Bool("converged", res.Diagnostics.Converged),
		logger.Duration("elapsed_ms", p.now().Sub(start)))
	return res, stats, nil
}

func (p *ForecastPipeline) run(ctx context.Context, filter models.SeriesFilter, horizon int, cfg models.FitConfig, timings map[string]time.Duration) (*models.ForecastResult, error) {
	var (
		rows   []models.VolumeRow
		series models.Series
		model  domsvc.Model
		points []models.ForecastPoint
	)

	stage := func(name domain.Stage, fn func() error) error {
		t0 := p.now()
		err := fn()
		d := p.now().Sub(t0)
		timings[string(name)] = d
		p.metrics.RecordStage(string(name), d)
		return err
	}

	if err := stage(domain.StageValidate, func() error {
		return p.validate(filter, horizon, cfg)
	}); err != nil {
		return nil, err
	}

	if err := stage(domain.StageFetch, func() (err error) {
		rows, err = p.agg.Aggregate(ctx, filter)
		return err
	}); err != nil {
		return nil, err
	}

	if err := stage(domain.StageNormalize, func() (err error) {
		series, err = forecast.Normalize(rows)
		return err
	}); err != nil {
		return nil, err
	}

	if err := stage(domain.StageFit, func() error {
		fitCtx, cancel := context.WithTimeout(ctx, p.fitTimeout)
		defer cancel()
		var err error
		model, err = p.forecaster.Fit(fitCtx, series, cfg)
		if err == nil {
			return nil
		}
		if errors.Is(fitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return domain.ModelFit(fmt.Sprintf("fit exceeded %s", p.fitTimeout), err)
		}
		return asDomain(domain.StageFit, err)
	}); err != nil {
		return nil, err
	}

	if err := stage(domain.StageProject, func() (err error) {
		points, err = p.forecaster.Project(ctx, model, horizon)
		return asDomain(domain.StageProject, err)
	}); err != nil {
		return nil, err
	}

	var res *models.ForecastResult
	err := stage(domain.StagePackage, func() (err error) {
		res, err = Package(filter, horizon, series, points, models.Diagnostics{
			FitInfo:    model.Info(),
			Forecaster: p.forecaster.Name(),
		})
		return err
	})
	return res, err
}

func (p *ForecastPipeline) validate(filter models.SeriesFilter, horizon int, cfg models.FitConfig) error {
	if err := ValidateFilter(filter); err != nil {
		return err
	}
	if horizon < 1 || horizon > p.maxHorizon {
		e := domain.InvalidHorizon(horizon, p.maxHorizon)
		e.Stage = domain.StageValidate
		return e
	}
	if cfg.YearlySeasonality != "" && !cfg.YearlySeasonality.Valid() {
		return domain.InvalidFilter("yearly", fmt.Sprintf("unknown seasonality mode %q", cfg.YearlySeasonality))
	}
	if cfg.WeeklySeasonality != "" && !cfg.WeeklySeasonality.Valid() {
		return domain.InvalidFilter("weekly", fmt.Sprintf("unknown seasonality mode %q", cfg.WeeklySeasonality))
	}
	return nil
}

// asDomain wraps foreign errors from a Forecaster so callers only ever see
// the domain taxonomy.
func asDomain(stage domain.Stage, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	e := domain.ModelFit("forecaster failed", err)
	e.Stage = stage
	return e
}
