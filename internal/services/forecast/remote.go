package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"TradeCast/internal/domain"
	"TradeCast/internal/domain/models"
	domsvc "TradeCast/internal/domain/service"
	xhttp "TradeCast/pkg/http"
)

// RemoteName identifies the HTTP-backed forecaster.
const RemoteName = "remote"

// RemoteForecaster delegates fitting and projection to an external model
// service speaking JSON over HTTP. Fit only validates and captures the
// series; the service does the work in Project.
type RemoteForecaster struct {
	baseURL    string
	attempts   int
	maxHorizon int
	client     *xhttp.Client
}

// RemoteOption configures a RemoteForecaster.
type RemoteOption func(*RemoteForecaster)

// WithRemoteMaxHorizon caps the periods requested from the model service.
func WithRemoteMaxHorizon(h int) RemoteOption {
	return func(f *RemoteForecaster) {
		if h > 0 {
			f.maxHorizon = h
		}
	}
}

// NewRemoteForecaster builds a client for the model service at baseURL.
func NewRemoteForecaster(baseURL string, timeout time.Duration, attempts int, opts ...RemoteOption) *RemoteForecaster {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if attempts <= 0 {
		attempts = 1
	}
	f := &RemoteForecaster{
		baseURL:    baseURL,
		attempts:   attempts,
		maxHorizon: DefaultConfig().MaxHorizon,
		client:     xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *RemoteForecaster) Name() string { return RemoteName }

type remoteModel struct {
	series models.Series
	freq   Frequency
	cfg    models.FitConfig
}

func (m *remoteModel) Info() models.FitInfo {
	return models.FitInfo{
		Observations: len(m.series),
		Frequency:    m.freq.Name,
	}
}

func (m *remoteModel) Last() models.TimeSeriesPoint { return m.series.Last() }

func (f *RemoteForecaster) Fit(_ context.Context, series models.Series, cfg models.FitConfig) (domsvc.Model, error) {
	if len(series) < 2 {
		return nil, domain.InsufficientData(fmt.Sprintf("need at least 2 observations, got %d", len(series)))
	}
	if series.Span() <= 0 {
		return nil, domain.InsufficientData("degenerate time span")
	}
	return &remoteModel{series: series, freq: InferFrequency(series.Timestamps()), cfg: cfg}, nil
}

type remoteRequest struct {
	Series            models.Series `json:"series"`
	Horizon           int           `json:"horizon"`
	Frequency         string        `json:"frequency"`
	YearlySeasonality string        `json:"yearly_seasonality"`
	WeeklySeasonality string        `json:"weekly_seasonality"`
}

type remoteResponse struct {
	Forecast []models.ForecastPoint `json:"forecast"`
	Error    string                 `json:"error,omitempty"`
}

func (f *RemoteForecaster) Project(ctx context.Context, m domsvc.Model, horizon int) ([]models.ForecastPoint, error) {
	if horizon <= 0 || horizon > f.maxHorizon {
		return nil, domain.InvalidHorizon(horizon, f.maxHorizon)
	}
	rm, ok := m.(*remoteModel)
	if !ok {
		return nil, domain.ModelFit(fmt.Sprintf("model of type %T was not produced by the remote forecaster", m), nil)
	}

	req := remoteRequest{
		Series:            rm.series,
		Horizon:           horizon,
		Frequency:         rm.Info().Frequency,
		YearlySeasonality: string(rm.cfg.YearlySeasonality),
		WeeklySeasonality: string(rm.cfg.WeeklySeasonality),
	}
	var resp remoteResponse
	if err := f.postWithRetry(ctx, "/forecast", req, &resp); err != nil {
		return nil, domain.ModelFit("remote forecaster", err)
	}
	if resp.Error != "" {
		return nil, domain.ModelFit("remote forecaster: "+resp.Error, nil)
	}
	if len(resp.Forecast) != horizon {
		return nil, domain.ModelFit(fmt.Sprintf("remote forecaster returned %d points, want %d", len(resp.Forecast), horizon), nil)
	}

	last := rm.Last().Timestamp
	for i := range resp.Forecast {
		p := &resp.Forecast[i]
		p.Timestamp = p.Timestamp.UTC()
		if want := rm.freq.At(last, i+1); !p.Timestamp.Equal(want) {
			return nil, domain.ModelFit(fmt.Sprintf("remote forecaster returned %s for period %d, want %s (%s)",
				p.Timestamp.Format(time.DateOnly), i+1, want.Format(time.DateOnly), rm.freq.Name), nil)
		}
		*p = clampPoint(*p)
	}
	return resp.Forecast, nil
}

func (f *RemoteForecaster) postWithRetry(ctx context.Context, path string, payload, dest interface{}) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second

	op := func() error {
		err := f.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodPost,
			URL:     f.baseURL + path,
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    payload,
		}, dest)
		var se *xhttp.StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(f.attempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

var _ domsvc.Forecaster = (*RemoteForecaster)(nil)
