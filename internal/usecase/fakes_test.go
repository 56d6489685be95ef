package usecase

import (
	"context"
	"sync"
	"time"

	"TradeCast/internal/domain/models"
	domsvc "TradeCast/internal/domain/service"
	"TradeCast/internal/repository"
	"TradeCast/pkg/cache"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fakeStore struct {
	mu    sync.Mutex
	rows  []models.VolumeRow
	err   error
	calls int
	got   []models.SeriesFilter
}

func (s *fakeStore) QueryVolumes(_ context.Context, f models.SeriesFilter) ([]models.VolumeRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.got = append(s.got, f)
	return s.rows, s.err
}

func (s *fakeStore) Health(context.Context) error { return nil }
func (s *fakeStore) Close() error                 { return nil }

func (s *fakeStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func quarterRows() []models.VolumeRow {
	return []models.VolumeRow{
		{Period: date(2023, 1, 1), Volume: 100},
		{Period: date(2023, 2, 1), Volume: 110},
		{Period: date(2023, 3, 1), Volume: 120},
	}
}

type fakeModel struct{ last models.TimeSeriesPoint }

func (m fakeModel) Info() models.FitInfo          { return models.FitInfo{Observations: 1} }
func (m fakeModel) Last() models.TimeSeriesPoint { return m.last }

// fakeForecaster projects a flat line one month apart, or fails on demand.
type fakeForecaster struct {
	fitErr     error
	projectErr error
	block      chan struct{}
	points     func(last time.Time, h int) []models.ForecastPoint
}

func (f *fakeForecaster) Name() string { return "fake" }

func (f *fakeForecaster) Fit(ctx context.Context, s models.Series, _ models.FitConfig) (domsvc.Model, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fitErr != nil {
		return nil, f.fitErr
	}
	return fakeModel{last: s.Last()}, nil
}

func (f *fakeForecaster) Project(_ context.Context, m domsvc.Model, h int) ([]models.ForecastPoint, error) {
	if f.projectErr != nil {
		return nil, f.projectErr
	}
	last := m.Last()
	if f.points != nil {
		return f.points(last.Timestamp, h), nil
	}
	out := make([]models.ForecastPoint, h)
	for i := range out {
		out[i] = models.ForecastPoint{
			Timestamp: last.Timestamp.AddDate(0, i+1, 0),
			Estimate:  last.Value,
			Lower:     last.Value,
			Upper:     last.Value,
		}
	}
	return out, nil
}

func newVersions() *repository.CacheVersionStore {
	return repository.NewCacheVersionStore(cache.NewMemoryCache(), time.Hour)
}

func validFilter() models.SeriesFilter {
	return models.NewSeriesFilter("Пшеница", "Казахстан", models.DirectionExport)
}
