package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"TradeCast/internal/domain"
	"TradeCast/internal/domain/models"
	domrepo "TradeCast/internal/domain/repository"
	xhttp "TradeCast/pkg/http"
	pkgkafka "TradeCast/pkg/kafka"
	"TradeCast/pkg/logger"
)

// KafkaForecastHandler serves forecast requests arriving on a Kafka topic and
// publishes envelopes to the results topic. Only data-source failures are
// returned to the consumer for retry; everything else is answered with an
// error envelope.
type KafkaForecastHandler struct {
	topic      string
	dispatcher *Dispatcher
	results    domrepo.ResultPublisher
	metrics    domrepo.Metrics
	log        *logger.Logger
}

func NewKafkaForecastHandler(topic string, d *Dispatcher, results domrepo.ResultPublisher, m domrepo.Metrics, l *logger.Logger) *KafkaForecastHandler {
	if l == nil {
		l = logger.Nop()
	}
	return &KafkaForecastHandler{topic: topic, dispatcher: d, results: results, metrics: m, log: l}
}

func (h *KafkaForecastHandler) Topic() string { return h.topic }

// incoming message schema: models.ForecastRequest as JSON
func (h *KafkaForecastHandler) Handle(ctx context.Context, b []byte) error {
	var req models.ForecastRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode forecast request: %w", err)
	}

	if verrs := xhttp.ValidateStruct(ctx, &req); len(verrs) > 0 {
		v := verrs[0]
		return h.publish(ctx, &models.ForecastEnvelope{
			Session: req.Session,
			Trigger: "kafka",
			Error:   NewErrorPayload(domain.InvalidFilter(v.Field, v.Message)),
		})
	}

	job := Job{
		Session:   req.Session,
		Trigger:   "kafka",
		Transport: "kafka",
		Filter:    req.Filter(),
		Horizon:   req.Periods(),
		Config:    req.FitConfig(),
	}
	if req.Session != "" {
		v, err := h.dispatcher.Issue(ctx, req.Session)
		if err != nil {
			return err
		}
		job.Version = v
	}

	env, err := h.dispatcher.Do(ctx, job)
	if err != nil {
		return domain.DataSource("dispatch forecast", err)
	}
	if IsSuperseded(env) {
		return nil
	}
	if env.Error != nil && env.Error.Kind == string(domain.KindDataSource) {
		return &domain.Error{Kind: domain.KindDataSource, Stage: domain.Stage(env.Error.Stage), Msg: env.Error.Message}
	}
	return h.publish(ctx, env)
}

func (h *KafkaForecastHandler) publish(ctx context.Context, env *models.ForecastEnvelope) error {
	if err := h.results.Publish(ctx, env); err != nil {
		h.log.Warn("publish forecast result failed", logger.String("session", env.Session), logger.Error(err))
		return domain.DataSource("publish forecast result", err)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaForecastHandler)(nil)
