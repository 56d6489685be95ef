package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeCast/internal/domain"
	"TradeCast/internal/domain/models"
	"TradeCast/internal/repository"
	"TradeCast/internal/usecase"
	"TradeCast/pkg/cache"
	xlogger "TradeCast/pkg/logger"
	"TradeCast/pkg/metrics"
)

type svcFunc func(ctx context.Context, f models.SeriesFilter, h int, cfg models.FitConfig) (*models.ForecastResult, error)

func (fn svcFunc) Forecast(ctx context.Context, f models.SeriesFilter, h int, cfg models.FitConfig) (*models.ForecastResult, error) {
	return fn(ctx, f, h, cfg)
}

// flat validates like the real pipeline, then projects a constant.
func flat(ctx context.Context, f models.SeriesFilter, h int, _ models.FitConfig) (*models.ForecastResult, error) {
	if err := usecase.ValidateFilter(f); err != nil {
		return nil, err
	}
	if h < 1 || h > 24 {
		return nil, domain.InvalidHorizon(h, 24)
	}
	last := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.ForecastPoint, h)
	for i := range out {
		out[i] = models.ForecastPoint{Timestamp: last.AddDate(0, i+1, 0), Estimate: 120, Lower: 110, Upper: 130}
	}
	return &models.ForecastResult{
		Filter:   f,
		Horizon:  h,
		History:  models.Series{{Timestamp: last, Value: 120}},
		Forecast: out,
	}, nil
}

type fakeCatalog struct {
	products  []models.CatalogEntry
	countries []models.CatalogEntry
	err       error
}

func (c *fakeCatalog) ListProducts(context.Context) ([]models.CatalogEntry, error) {
	return c.products, c.err
}

func (c *fakeCatalog) ListCountries(context.Context) ([]models.CatalogEntry, error) {
	return c.countries, c.err
}

func sampleCatalog() *fakeCatalog {
	return &fakeCatalog{
		products:  []models.CatalogEntry{{Code: "1001", Name: "Пшеница"}},
		countries: []models.CatalogEntry{{Code: "398", Name: "Казахстан"}, {Code: "156", Name: "Китай"}},
	}
}

func newRunner(t *testing.T, svc usecase.ForecastService, versions *repository.CacheVersionStore) *usecase.Dispatcher {
	t.Helper()
	if versions == nil {
		versions = repository.NewCacheVersionStore(cache.NewMemoryCache(), time.Hour)
	}
	d := usecase.NewDispatcher(svc, versions, metrics.Nop{}, xlogger.Nop(), 2, 8)
	d.Start(context.Background())
	t.Cleanup(func() { _ = d.Stop(context.Background()) })
	return d
}

type apiBody struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

func get(t *testing.T, e *echo.Echo, target string) (*httptest.ResponseRecorder, apiBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body apiBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func newEcho(h *ForecastEchoHandler) *echo.Echo {
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func TestForecastEndpoint(t *testing.T) {
	e := newEcho(NewForecastEchoHandler(xlogger.Nop(), newRunner(t, svcFunc(flat), nil), sampleCatalog()))

	rec, body := get(t, e, "/api/forecast?product=wheat&country=China&direction=import&horizon=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get(echo.HeaderCacheControl))

	var res models.ForecastResult
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.Len(t, res.Forecast, 2)
	assert.Equal(t, "China", *res.Filter.Country)
}

func TestForecastEndpointDefaultsHorizon(t *testing.T) {
	e := newEcho(NewForecastEchoHandler(xlogger.Nop(), newRunner(t, svcFunc(flat), nil), sampleCatalog()))

	rec, body := get(t, e, "/api/forecast?product=a&country=b&direction=export")
	require.Equal(t, http.StatusOK, rec.Code)

	var res models.ForecastResult
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.Equal(t, 3, res.Horizon)
}

func TestForecastEndpointRejectsZeroHorizon(t *testing.T) {
	e := newEcho(NewForecastEchoHandler(xlogger.Nop(), newRunner(t, svcFunc(flat), nil), sampleCatalog()))

	rec, body := get(t, e, "/api/forecast?product=a&country=b&direction=export&horizon=0")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(body.Errors), "ERR_INVALID_HORIZON")
}

func TestForecastEndpointErrorStatus(t *testing.T) {
	failWith := func(err error) svcFunc {
		return func(context.Context, models.SeriesFilter, int, models.FitConfig) (*models.ForecastResult, error) {
			return nil, err
		}
	}
	cases := map[string]struct {
		svc    svcFunc
		query  string
		status int
		code   string
	}{
		"missing country":   {svcFunc(flat), "product=a&direction=import", http.StatusBadRequest, "ERR_INVALID_FILTER"},
		"bad seasonality":   {svcFunc(flat), "product=a&country=b&direction=import&yearly=maybe", http.StatusBadRequest, ""},
		"empty result":      {failWith(domain.EmptyResult(domain.StageFetch, "no rows")), "product=a&country=b&direction=import", http.StatusNotFound, "ERR_EMPTY_RESULT"},
		"insufficient data": {failWith(domain.InsufficientData("one point")), "product=a&country=b&direction=import", http.StatusUnprocessableEntity, "ERR_INSUFFICIENT_DATA"},
		"invalid horizon":   {failWith(domain.InvalidHorizon(-1, 24)), "product=a&country=b&direction=import&horizon=-1", http.StatusBadRequest, "ERR_INVALID_HORIZON"},
		"model fit":         {failWith(domain.ModelFit("singular", nil)), "product=a&country=b&direction=import", http.StatusInternalServerError, "ERR_MODEL_FIT"},
		"data source":       {failWith(domain.DataSource("query", errors.New("password=hunter2"))), "product=a&country=b&direction=import", http.StatusServiceUnavailable, "ERR_DATA_SOURCE"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEcho(NewForecastEchoHandler(xlogger.Nop(), newRunner(t, tc.svc, nil), sampleCatalog()))

			rec, body := get(t, e, "/api/forecast?"+tc.query)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.status, body.Status)
			assert.NotContains(t, rec.Body.String(), "hunter2")
			if tc.code != "" {
				assert.Contains(t, string(body.Errors), tc.code)
			}
		})
	}
}

func TestForecastEndpointSupersededIsConflict(t *testing.T) {
	versions := repository.NewCacheVersionStore(cache.NewMemoryCache(), time.Hour)
	svc := svcFunc(func(ctx context.Context, f models.SeriesFilter, h int, cfg models.FitConfig) (*models.ForecastResult, error) {
		_, err := versions.Next(ctx, "tab-1")
		if err != nil {
			return nil, err
		}
		return flat(ctx, f, h, cfg)
	})
	e := newEcho(NewForecastEchoHandler(xlogger.Nop(), newRunner(t, svc, versions), sampleCatalog()))

	rec, body := get(t, e, "/api/forecast?product=a&country=b&direction=import&session=tab-1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, string(body.Errors), "ERR_SUPERSEDED")
}

func TestCatalogEndpoints(t *testing.T) {
	e := newEcho(NewForecastEchoHandler(xlogger.Nop(), newRunner(t, svcFunc(flat), nil), sampleCatalog()))

	rec, body := get(t, e, "/api/catalog/countries")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Rows  []models.CatalogEntry `json:"rows"`
		Total int64                 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &list))
	assert.Equal(t, int64(2), list.Total)
	assert.Equal(t, "Казахстан", list.Rows[0].Name)

	rec, _ = get(t, e, "/api/catalog/products")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCatalogEndpointUnavailable(t *testing.T) {
	e := newEcho(NewForecastEchoHandler(xlogger.Nop(), newRunner(t, svcFunc(flat), nil), &fakeCatalog{err: errors.New("dial tcp")}))

	rec, _ := get(t, e, "/api/catalog/products")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "dial tcp")
}
