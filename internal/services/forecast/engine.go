package forecast

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"TradeCast/internal/domain"
	"TradeCast/internal/domain/models"
	domsvc "TradeCast/internal/domain/service"
)

// EngineName identifies the local engine in diagnostics and config.
const EngineName = "local"

// activeDelta is the scaled slope change above which a changepoint counts as
// visible in diagnostics.
const activeDelta = 1e-3

// Engine fits an additive piecewise-linear trend plus Fourier seasonality by
// MAP regression and projects it with widening intervals. It is stateless;
// every Fit returns a fresh model.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine with defaults overridden by opts.
func NewEngine(opts ...Option) *Engine {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.fillDefaults()
	return &Engine{cfg: cfg}
}

func (e *Engine) Name() string { return EngineName }

// Config returns the effective engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// model is the fitted parameter set. It never leaves the request that made it.
type model struct {
	design *design
	freq   Frequency
	yScale float64
	sol    *solution
	last   models.TimeSeriesPoint
	nObs   int
	info   models.FitInfo
}

func (m *model) Info() models.FitInfo          { return m.info }
func (m *model) Last() models.TimeSeriesPoint { return m.last }

// Fit estimates trend and seasonal parameters for series.
func (e *Engine) Fit(ctx context.Context, series models.Series, cfg models.FitConfig) (domsvc.Model, error) {
	if len(series) < 2 {
		return nil, domain.InsufficientData(fmt.Sprintf("need at least 2 observations, got %d", len(series)))
	}
	for i := 1; i < len(series); i++ {
		if !series[i].Timestamp.After(series[i-1].Timestamp) {
			return nil, domain.InsufficientData("timestamps are not strictly increasing")
		}
	}
	span := series.Span()
	if span <= 0 {
		return nil, domain.InsufficientData("degenerate time span")
	}
	if !cfg.YearlySeasonality.Valid() && cfg.YearlySeasonality != "" {
		return nil, domain.ModelFit(fmt.Sprintf("unknown yearly seasonality mode %q", cfg.YearlySeasonality), nil)
	}
	if !cfg.WeeklySeasonality.Valid() && cfg.WeeklySeasonality != "" {
		return nil, domain.ModelFit(fmt.Sprintf("unknown weekly seasonality mode %q", cfg.WeeklySeasonality), nil)
	}

	ts := make([]float64, len(series))
	stamps := series.Timestamps()
	d := &design{origin: series[0].Timestamp, span: span}
	for i, at := range stamps {
		ts[i] = d.scaled(at)
	}
	freq := InferFrequency(stamps)
	d.changepoints = placeChangepoints(ts, e.cfg.ChangepointRange, e.cfg.MaxChangepoints)
	d.seasonalities = selectSeasonalities(cfg, span, freq, e.cfg.YearlyOrder, e.cfg.WeeklyOrder)

	yScale := 0.0
	for _, p := range series {
		yScale = math.Max(yScale, math.Abs(p.Value))
	}
	if yScale == 0 {
		yScale = 1
	}

	n, w := len(series), d.width()
	x := mat.NewDense(n, w, nil)
	y := mat.NewVecDense(n, nil)
	row := make([]float64, w)
	for i, p := range series {
		x.SetRow(i, d.row(p.Timestamp, row))
		y.SetVec(i, p.Value/yScale)
	}

	lay := layout{changepoints: len(d.changepoints), seasonal: w - d.trendCols()}
	sol, err := solveMAP(ctx, x, y, lay, e.cfg)
	if err != nil {
		return nil, err
	}

	active := 0
	for _, delta := range lay.deltas(sol.beta) {
		if math.Abs(delta) >= activeDelta {
			active++
		}
	}
	names := make([]string, 0, len(d.seasonalities))
	for _, s := range d.seasonalities {
		names = append(names, fmt.Sprintf("%s(%d)", s.name, s.order))
	}

	return &model{
		design: d,
		freq:   freq,
		yScale: yScale,
		sol:    sol,
		last:   series.Last(),
		nObs:   n,
		info: models.FitInfo{
			Observations:       n,
			Frequency:          freq.Name,
			Changepoints:       len(d.changepoints),
			ActiveChangepoints: active,
			Seasonalities:      names,
			Iterations:         sol.iterations,
			Converged:          sol.converged,
			NoiseScale:         math.Sqrt(sol.sigma2) * yScale,
			Uncertainty:        string(e.cfg.Uncertainty),
		},
	}, nil
}

var _ domsvc.Forecaster = (*Engine)(nil)
