package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeCast/internal/domain/models"
	"TradeCast/internal/repository"
	"TradeCast/internal/usecase"
	"TradeCast/pkg/cache"
	"TradeCast/pkg/config"
	xhttp "TradeCast/pkg/http"
	applogger "TradeCast/pkg/logger"
	"TradeCast/pkg/metrics"
)

type noopService struct{}

func (noopService) Forecast(context.Context, models.SeriesFilter, int, models.FitConfig) (*models.ForecastResult, error) {
	return &models.ForecastResult{}, nil
}

func TestAppShutsDownInReverseOrder(t *testing.T) {
	cfg := &config.Config{Environment: "test"}
	cfg.Server.ShutdownTimeout = time.Second

	d := usecase.NewDispatcher(noopService{}, repository.NewCacheVersionStore(cache.NewMemoryCache(), time.Minute),
		metrics.Nop{}, applogger.Nop(), 1, 1)
	srv := xhttp.NewServer(nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(18089))
	app := New(cfg, applogger.Nop(), srv, d)

	var order []string
	app.AddCloser("first", func() error { order = append(order, "first"); return nil })
	app.AddCloser("second", func() error { order = append(order, "second"); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	require.Eventually(t, func() bool {
		_, err := d.Do(context.Background(), usecase.Job{Horizon: 1})
		return err == nil
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop")
	}

	assert.Equal(t, []string{"second", "first"}, order)
	assert.ErrorIs(t, d.Submit(context.Background(), usecase.Job{}), usecase.ErrDispatcherStopped)
}
