package repository

import (
	"context"
	"fmt"
	"strconv"

	"TradeCast/internal/domain/models"
	domrepo "TradeCast/internal/domain/repository"
)

// producer is satisfied by *pkg/kafka.Producer.
type producer interface {
	PublishWithHeaders(ctx context.Context, topic string, key []byte, value interface{}, headers map[string]string) error
	Close() error
}

// KafkaResultPublisher writes envelopes to the results topic keyed by
// session, so one session's results land on one partition in order.
// Headers let consumers route on outcome without decoding the body.
type KafkaResultPublisher struct {
	producer producer
	topic    string
}

func NewKafkaResultPublisher(p producer, topic string) *KafkaResultPublisher {
	return &KafkaResultPublisher{producer: p, topic: topic}
}

func (p *KafkaResultPublisher) Publish(ctx context.Context, env *models.ForecastEnvelope) error {
	key := env.Session
	if key == "" && env.Result != nil {
		key = env.Result.Filter.Key()
	}

	headers := map[string]string{"outcome": "result"}
	if env.Error != nil {
		headers["outcome"] = "error"
		headers["error-kind"] = env.Error.Kind
	}
	if env.Version > 0 {
		headers["version"] = strconv.FormatInt(env.Version, 10)
	}

	if err := p.producer.PublishWithHeaders(ctx, p.topic, []byte(key), env, headers); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}
	return nil
}

func (p *KafkaResultPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.ResultPublisher = (*KafkaResultPublisher)(nil)
