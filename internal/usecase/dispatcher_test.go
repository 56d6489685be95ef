package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeCast/internal/domain"
	"TradeCast/internal/domain/models"
	"TradeCast/pkg/logger"
	"TradeCast/pkg/metrics"
)

type serviceFunc func(ctx context.Context, f models.SeriesFilter, h int, cfg models.FitConfig) (*models.ForecastResult, error)

func (fn serviceFunc) Forecast(ctx context.Context, f models.SeriesFilter, h int, cfg models.FitConfig) (*models.ForecastResult, error) {
	return fn(ctx, f, h, cfg)
}

func startDispatcher(t *testing.T, svc ForecastService, m *metrics.Recorder) *Dispatcher {
	t.Helper()
	d := NewDispatcher(svc, newVersions(), m, logger.Nop(), 2, 8)
	d.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = d.Stop(ctx)
	})
	return d
}

func TestDispatcherDoUnversioned(t *testing.T) {
	p := newPipeline(&fakeStore{rows: quarterRows()}, &fakeForecaster{})
	d := startDispatcher(t, p, metrics.New(prometheus.NewRegistry()))

	env, err := d.Do(context.Background(), Job{Filter: validFilter(), Horizon: 2, Config: models.DefaultFitConfig()})
	require.NoError(t, err)
	require.Nil(t, env.Error)
	require.NotNil(t, env.Result)
	assert.Len(t, env.Result.Forecast, 2)
	assert.Zero(t, env.Version)
	require.NotNil(t, env.Stats)
	assert.Contains(t, env.Stats.Timings, string(domain.StageFit))
	assert.False(t, env.Stats.CreatedAt.IsZero())
}

func TestDispatcherDeliversErrorsAsEnvelopes(t *testing.T) {
	p := newPipeline(&fakeStore{}, &fakeForecaster{})
	d := startDispatcher(t, p, metrics.New(prometheus.NewRegistry()))

	env, err := d.Do(context.Background(), Job{Filter: validFilter(), Horizon: 2})
	require.NoError(t, err)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(domain.KindEmptyResult), env.Error.Kind)
	assert.Nil(t, env.Result)
}

func TestDispatcherDropsSupersededBeforeRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := &fakeStore{rows: quarterRows()}
	d := startDispatcher(t, newPipeline(store, &fakeForecaster{}), metrics.New(reg))
	ctx := context.Background()

	v1, err := d.Issue(ctx, "s1")
	require.NoError(t, err)
	v2, err := d.Issue(ctx, "s1")
	require.NoError(t, err)
	require.Greater(t, v2, v1)

	stale, err := d.Do(ctx, Job{Session: "s1", Version: v1, Transport: "ws", Filter: validFilter(), Horizon: 2})
	require.NoError(t, err)
	assert.True(t, IsSuperseded(stale))
	assert.Zero(t, store.Calls())

	fresh, err := d.Do(ctx, Job{Session: "s1", Version: v2, Transport: "ws", Filter: validFilter(), Horizon: 2})
	require.NoError(t, err)
	require.NotNil(t, fresh.Result)
	assert.Equal(t, v2, fresh.Version)
	assert.Equal(t, "s1", fresh.Session)

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "tradecast_superseded_results_total"))
}

func TestDispatcherDropsResultSupersededDuringRun(t *testing.T) {
	versions := newVersions()
	svc := serviceFunc(func(ctx context.Context, f models.SeriesFilter, h int, cfg models.FitConfig) (*models.ForecastResult, error) {
		// A newer request lands while this one is being computed.
		_, err := versions.Next(ctx, "s1")
		assert.NoError(t, err)
		return &models.ForecastResult{Filter: f, Horizon: h}, nil
	})
	d := NewDispatcher(svc, versions, metrics.Nop{}, logger.Nop(), 1, 1)
	d.Start(context.Background())
	defer func() { _ = d.Stop(context.Background()) }()

	v, err := d.Issue(context.Background(), "s1")
	require.NoError(t, err)

	env, err := d.Do(context.Background(), Job{Session: "s1", Version: v, Filter: validFilter(), Horizon: 1})
	require.NoError(t, err)
	assert.True(t, IsSuperseded(env))
	assert.Nil(t, env.Result)
}

func TestDispatcherRunsJobsConcurrently(t *testing.T) {
	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	release := make(chan struct{})
	svc := serviceFunc(func(ctx context.Context, f models.SeriesFilter, h int, cfg models.FitConfig) (*models.ForecastResult, error) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
		<-release
		mu.Lock()
		running--
		mu.Unlock()
		return &models.ForecastResult{Horizon: h}, nil
	})
	d := NewDispatcher(svc, newVersions(), metrics.Nop{}, logger.Nop(), 2, 4)
	d.Start(context.Background())
	defer func() { _ = d.Stop(context.Background()) }()

	var wg sync.WaitGroup
	results := make(chan *models.ForecastEnvelope, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		require.NoError(t, d.Submit(context.Background(), Job{Horizon: i + 1, Deliver: func(env *models.ForecastEnvelope) {
			results <- env
			wg.Done()
		}}))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return running == 2
	}, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Len(t, results, 4)
	assert.Equal(t, 2, peak)
}

func TestDispatcherRefusesJobsAfterStop(t *testing.T) {
	d := NewDispatcher(serviceFunc(nil), newVersions(), metrics.Nop{}, logger.Nop(), 1, 1)
	d.Start(context.Background())
	require.NoError(t, d.Stop(context.Background()))

	err := d.Submit(context.Background(), Job{})
	assert.ErrorIs(t, err, ErrDispatcherStopped)
}

func TestDispatcherRecoversFromPanickingService(t *testing.T) {
	var calls int
	var mu sync.Mutex
	svc := serviceFunc(func(ctx context.Context, f models.SeriesFilter, h int, cfg models.FitConfig) (*models.ForecastResult, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			var m map[string]int
			m["boom"]++
		}
		return &models.ForecastResult{Horizon: h}, nil
	})
	d := NewDispatcher(svc, newVersions(), metrics.Nop{}, logger.Nop(), 1, 1)
	d.Start(context.Background())
	defer func() { _ = d.Stop(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	env, err := d.Do(ctx, Job{Session: "s1", Version: 1, Horizon: 2})
	require.NoError(t, err)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(domain.KindModelFit), env.Error.Kind)
	assert.Equal(t, "s1", env.Session)
	assert.Nil(t, env.Result)

	// The worker survives and serves the next job.
	env, err = d.Do(ctx, Job{Horizon: 3})
	require.NoError(t, err)
	require.NotNil(t, env.Result)
	assert.Equal(t, 3, env.Result.Horizon)
}

func TestDispatcherStopAnswersQueuedJobs(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	svc := serviceFunc(func(ctx context.Context, f models.SeriesFilter, h int, cfg models.FitConfig) (*models.ForecastResult, error) {
		close(started)
		<-release
		return &models.ForecastResult{Horizon: h}, nil
	})
	d := NewDispatcher(svc, newVersions(), metrics.Nop{}, logger.Nop(), 1, 2)
	d.Start(context.Background())
	defer close(release)

	running := make(chan *models.ForecastEnvelope, 1)
	require.NoError(t, d.Submit(context.Background(), Job{Horizon: 1, Deliver: func(env *models.ForecastEnvelope) { running <- env }}))
	<-started

	queued := make(chan *models.ForecastEnvelope, 1)
	go func() {
		env, err := d.Do(context.Background(), Job{Session: "s1", Version: 7, Horizon: 2})
		assert.NoError(t, err)
		queued <- env
	}()
	require.Eventually(t, func() bool { return len(d.queue) == 1 }, time.Second, time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, d.Stop(stopCtx), "running job still holds the worker")

	select {
	case env := <-queued:
		require.NotNil(t, env)
		require.NotNil(t, env.Error)
		assert.Equal(t, string(domain.KindDataSource), env.Error.Kind)
		assert.Equal(t, int64(7), env.Version)
	case <-time.After(time.Second):
		t.Fatal("queued job was never answered")
	}
}

func TestDispatcherIssueRequiresSession(t *testing.T) {
	d := NewDispatcher(serviceFunc(nil), newVersions(), metrics.Nop{}, logger.Nop(), 1, 1)

	_, err := d.Issue(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrDataSource)
}
