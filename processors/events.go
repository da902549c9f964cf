package processors

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/brpix/pix-processor/config/kafka"
	"github.com/brpix/pix-processor/models"
	"github.com/brpix/pix-processor/utils"
)

// ChargeEventService publishes lifecycle records to the charge events topic.
// The producer is optional; a nil service or producer turns publishing into
// a no-op so the reconciliation path never depends on Kafka being up.
type ChargeEventService struct {
	producer kafka.MessageProducer
	logger   *slog.Logger
}

func NewChargeEventService(producer kafka.MessageProducer, logger *slog.Logger) *ChargeEventService {
	return &ChargeEventService{
		producer: producer,
		logger:   logger.With("component", "charge-events"),
	}
}

func (s *ChargeEventService) Publish(ctx context.Context, event string, charge *models.Charge, occurredAt time.Time) {
	if s == nil || s.producer == nil {
		return
	}

	record := models.ChargeLifecycleEvent{
		Event:         event,
		ChargeID:      charge.ID,
		OwnerID:       charge.OwnerID,
		SettledAmount: charge.SettledAmount,
		Status:        charge.Status,
		OccurredAt:    occurredAt,
	}

	value, err := json.Marshal(record)
	if err != nil {
		s.logger.Error("error while marshaling charge lifecycle event", slog.String("error", err.Error()))
		utils.CaptureError(err)
		return
	}

	s.producer.Produce(ctx, &kafka.ProducerMessage{
		Key:   []byte(charge.ID),
		Value: value,
	})
}
