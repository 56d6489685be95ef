package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeCast/internal/domain"
	"TradeCast/internal/domain/models"
	"TradeCast/pkg/logger"
	"TradeCast/pkg/metrics"
)

type fakePublisher struct {
	mu   sync.Mutex
	envs []*models.ForecastEnvelope
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, env *models.ForecastEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.envs = append(p.envs, env)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func newKafkaHandler(t *testing.T, store *fakeStore, pub *fakePublisher) *KafkaForecastHandler {
	t.Helper()
	p := newPipeline(store, &fakeForecaster{})
	d := NewDispatcher(p, newVersions(), metrics.Nop{}, logger.Nop(), 1, 4)
	d.Start(context.Background())
	t.Cleanup(func() { _ = d.Stop(context.Background()) })
	return NewKafkaForecastHandler("forecast.requests", d, pub, metrics.Nop{}, logger.Nop())
}

func TestKafkaHandlerPublishesResult(t *testing.T) {
	pub := &fakePublisher{}
	h := newKafkaHandler(t, &fakeStore{rows: quarterRows()}, pub)
	assert.Equal(t, "forecast.requests", h.Topic())

	msg := `{"product":"Пшеница","country":"Казахстан","direction":"ЭК","horizon":2,"session":"abc"}`
	require.NoError(t, h.Handle(context.Background(), []byte(msg)))

	require.Len(t, pub.envs, 1)
	env := pub.envs[0]
	assert.Equal(t, "abc", env.Session)
	assert.Equal(t, int64(1), env.Version)
	require.NotNil(t, env.Result)
	assert.Len(t, env.Result.Forecast, 2)
	assert.Equal(t, models.DirectionExport, *env.Result.Filter.Direction)
}

func TestKafkaHandlerPublishesDomainErrors(t *testing.T) {
	pub := &fakePublisher{}
	h := newKafkaHandler(t, &fakeStore{rows: quarterRows()}, pub)

	require.NoError(t, h.Handle(context.Background(), []byte(`{"product":"Пшеница","direction":"import","horizon":2}`)))

	require.Len(t, pub.envs, 1)
	require.NotNil(t, pub.envs[0].Error)
	assert.Equal(t, string(domain.KindInvalidFilter), pub.envs[0].Error.Kind)
	assert.Equal(t, "country", pub.envs[0].Error.Field)
}

func TestKafkaHandlerKeepsExplicitZeroHorizon(t *testing.T) {
	pub := &fakePublisher{}
	h := newKafkaHandler(t, &fakeStore{rows: quarterRows()}, pub)

	require.NoError(t, h.Handle(context.Background(), []byte(`{"product":"Пшеница","country":"Казахстан","direction":"export","horizon":0}`)))
	require.Len(t, pub.envs, 1)
	require.NotNil(t, pub.envs[0].Error)
	assert.Equal(t, string(domain.KindInvalidHorizon), pub.envs[0].Error.Kind)

	require.NoError(t, h.Handle(context.Background(), []byte(`{"product":"Пшеница","country":"Казахстан","direction":"export"}`)))
	require.Len(t, pub.envs, 2)
	require.NotNil(t, pub.envs[1].Result)
	assert.Len(t, pub.envs[1].Result.Forecast, models.DefaultHorizon)
}

func TestKafkaHandlerRejectsInvalidPayload(t *testing.T) {
	pub := &fakePublisher{}
	h := newKafkaHandler(t, &fakeStore{rows: quarterRows()}, pub)

	require.NoError(t, h.Handle(context.Background(), []byte(`{"product":"a","country":"b","direction":"import","yearly":"maybe"}`)))
	require.Len(t, pub.envs, 1)
	assert.Equal(t, string(domain.KindInvalidFilter), pub.envs[0].Error.Kind)
	assert.Equal(t, "yearly", pub.envs[0].Error.Field)

	err := h.Handle(context.Background(), []byte(`{not json`))
	require.Error(t, err)
	assert.False(t, domain.IsRetryable(err))
}

func TestKafkaHandlerReturnsDataSourceErrorsForRetry(t *testing.T) {
	pub := &fakePublisher{}
	h := newKafkaHandler(t, &fakeStore{err: errors.New("db down")}, pub)

	err := h.Handle(context.Background(), []byte(`{"product":"a","country":"b","direction":"import","horizon":1}`))
	assert.True(t, domain.IsRetryable(err))
	assert.Empty(t, pub.envs)
}

func TestKafkaHandlerPublishFailureIsRetryable(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	h := newKafkaHandler(t, &fakeStore{rows: quarterRows()}, pub)

	err := h.Handle(context.Background(), []byte(`{"product":"a","country":"b","direction":"import","horizon":1}`))
	assert.True(t, domain.IsRetryable(err))
}
