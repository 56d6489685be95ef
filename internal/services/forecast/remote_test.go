package forecast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeCast/internal/domain"
	"TradeCast/internal/domain/models"
)

func TestRemoteForecasterProject(t *testing.T) {
	var got remoteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forecast", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(remoteResponse{Forecast: []models.ForecastPoint{
			{Timestamp: date(2023, 4, 1), Estimate: 130, Lower: 125, Upper: 135},
			{Timestamp: date(2023, 5, 1), Estimate: -2, Lower: -8, Upper: 4},
		}})
	}))
	defer srv.Close()

	f := NewRemoteForecaster(srv.URL, time.Second, 1)
	m, err := f.Fit(context.Background(), quarterSeries(), noSeasonality())
	require.NoError(t, err)

	points, err := f.Project(context.Background(), m, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, got.Horizon)
	assert.Equal(t, "monthly", got.Frequency)
	assert.Equal(t, "off", got.YearlySeasonality)
	assert.Len(t, got.Series, 3)

	require.Len(t, points, 2)
	assert.Equal(t, 130.0, points[0].Estimate)
	assert.Equal(t, 0.0, points[1].Estimate)
	assert.Equal(t, 0.0, points[1].Lower)
	assert.Equal(t, 4.0, points[1].Upper)
}

func TestRemoteForecasterRetriesThenFails(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewRemoteForecaster(srv.URL, time.Second, 3)
	m, err := f.Fit(context.Background(), quarterSeries(), noSeasonality())
	require.NoError(t, err)

	_, err = f.Project(context.Background(), m, 1)
	assert.ErrorIs(t, err, domain.ErrModelFit)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRemoteForecasterRejectsShortResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(remoteResponse{})
	}))
	defer srv.Close()

	f := NewRemoteForecaster(srv.URL, time.Second, 1)
	m, err := f.Fit(context.Background(), quarterSeries(), noSeasonality())
	require.NoError(t, err)

	_, err = f.Project(context.Background(), m, 3)
	assert.ErrorIs(t, err, domain.ErrModelFit)
}

func TestRemoteForecasterValidatesInput(t *testing.T) {
	f := NewRemoteForecaster("http://127.0.0.1:0", time.Second, 1)

	_, err := f.Fit(context.Background(), quarterSeries()[:1], noSeasonality())
	assert.ErrorIs(t, err, domain.ErrInsufficientData)

	m, err := f.Fit(context.Background(), quarterSeries(), noSeasonality())
	require.NoError(t, err)
	_, err = f.Project(context.Background(), m, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidHorizon)
}

func TestRemoteForecasterDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unknown frequency", http.StatusBadRequest)
	}))
	defer srv.Close()

	f := NewRemoteForecaster(srv.URL, time.Second, 3)
	m, err := f.Fit(context.Background(), quarterSeries(), noSeasonality())
	require.NoError(t, err)

	_, err = f.Project(context.Background(), m, 1)
	assert.ErrorIs(t, err, domain.ErrModelFit)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRemoteForecasterHonoursMaxHorizon(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var req remoteRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		out := make([]models.ForecastPoint, req.Horizon)
		for i := range out {
			out[i] = models.ForecastPoint{Timestamp: date(2023, time.Month(4+i), 1), Estimate: 1, Upper: 1}
		}
		_ = json.NewEncoder(w).Encode(remoteResponse{Forecast: out})
	}))
	defer srv.Close()

	f := NewRemoteForecaster(srv.URL, time.Second, 1, WithRemoteMaxHorizon(36))
	m, err := f.Fit(context.Background(), quarterSeries(), noSeasonality())
	require.NoError(t, err)

	points, err := f.Project(context.Background(), m, 30)
	require.NoError(t, err)
	assert.Len(t, points, 30)
	assert.Equal(t, date(2025, 9, 1), points[29].Timestamp)

	_, err = f.Project(context.Background(), m, 37)
	assert.ErrorIs(t, err, domain.ErrInvalidHorizon)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRemoteForecasterRejectsOffGridTimestamps(t *testing.T) {
	cases := map[string][]models.ForecastPoint{
		"skipped month": {
			{Timestamp: date(2023, 4, 1), Estimate: 1},
			{Timestamp: date(2023, 6, 1), Estimate: 1},
		},
		"mid month": {
			{Timestamp: date(2023, 4, 15), Estimate: 1},
			{Timestamp: date(2023, 5, 15), Estimate: 1},
		},
		"repeated": {
			{Timestamp: date(2023, 4, 1), Estimate: 1},
			{Timestamp: date(2023, 4, 1), Estimate: 1},
		},
	}
	for name, points := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(remoteResponse{Forecast: points})
			}))
			defer srv.Close()

			f := NewRemoteForecaster(srv.URL, time.Second, 1)
			m, err := f.Fit(context.Background(), quarterSeries(), noSeasonality())
			require.NoError(t, err)

			_, err = f.Project(context.Background(), m, 2)
			assert.ErrorIs(t, err, domain.ErrModelFit)
		})
	}
}
