package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeCast/internal/domain/models"
)

type recordingProducer struct {
	topic   string
	key     []byte
	value   interface{}
	headers map[string]string
	closed  bool
}

func (p *recordingProducer) PublishWithHeaders(_ context.Context, topic string, key []byte, value interface{}, headers map[string]string) error {
	p.topic, p.key, p.value, p.headers = topic, key, value, headers
	return nil
}

func (p *recordingProducer) Close() error {
	p.closed = true
	return nil
}

func TestKafkaResultPublisherKeysBySession(t *testing.T) {
	rp := &recordingProducer{}
	pub := NewKafkaResultPublisher(rp, "forecast.results")

	env := &models.ForecastEnvelope{Session: "tab-7", Version: 4}
	require.NoError(t, pub.Publish(context.Background(), env))

	assert.Equal(t, "forecast.results", rp.topic)
	assert.Equal(t, []byte("tab-7"), rp.key)
	assert.Same(t, env, rp.value)
	assert.Equal(t, map[string]string{"outcome": "result", "version": "4"}, rp.headers)

	require.NoError(t, pub.Close())
	assert.True(t, rp.closed)
}

func TestKafkaResultPublisherFallsBackToFilterKey(t *testing.T) {
	rp := &recordingProducer{}
	pub := NewKafkaResultPublisher(rp, "forecast.results")

	filter := models.NewSeriesFilter("Пшеница", "Китай", models.DirectionImport)
	require.NoError(t, pub.Publish(context.Background(), &models.ForecastEnvelope{
		Result: &models.ForecastResult{Filter: filter},
	}))
	assert.Equal(t, []byte(filter.Key()), rp.key)
}

func TestKafkaResultPublisherTagsErrors(t *testing.T) {
	rp := &recordingProducer{}
	pub := NewKafkaResultPublisher(rp, "forecast.results")

	require.NoError(t, pub.Publish(context.Background(), &models.ForecastEnvelope{
		Session: "tab-1",
		Error:   &models.ErrorPayload{Kind: "empty_result", Message: "no trade records"},
	}))
	assert.Equal(t, "error", rp.headers["outcome"])
	assert.Equal(t, "empty_result", rp.headers["error-kind"])
	assert.NotContains(t, rp.headers, "version")
}
