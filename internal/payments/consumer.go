package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/chopnow/chopnow-backend/pkg/enums"
	"github.com/chopnow/chopnow-backend/pkg/logger"
	"github.com/chopnow/chopnow-backend/pkg/outbox"
	"github.com/chopnow/chopnow-backend/pkg/outbox/payloads"
)

const consumerName = "payments"

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer opens checkout sessions when orders enter awaiting_payment.
type Consumer struct {
	initiation InitiationService
	manager    idempotencyChecker
	logg       *logger.Logger
}

// NewConsumer builds the payments consumer.
func NewConsumer(initiation InitiationService, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if initiation == nil {
		return nil, fmt.Errorf("initiation service required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{initiation: initiation, manager: manager, logg: logg}, nil
}

// Process handles one outbox envelope.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	if eventType != enums.EventOrderAwaitingPayment {
		c.logg.Info(logCtx, "event not handled by payments consumer")
		return nil
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	var payload payloads.OrderAwaitingPaymentEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		_ = c.manager.Delete(ctx, consumerName, eventID)
		return fmt.Errorf("decode order.awaiting_payment payload: %w", err)
	}

	if _, err := c.initiation.Initiate(ctx, payload); err != nil {
		c.logg.Error(logCtx, "payment initiation failed", err)
		_ = c.manager.Delete(ctx, consumerName, eventID)
		return err
	}

	c.logg.Info(logCtx, "checkout session opened")
	return nil
}
