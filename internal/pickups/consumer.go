package pickups

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/chopnow/chopnow-backend/pkg/enums"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
	"github.com/chopnow/chopnow-backend/pkg/logger"
	"github.com/chopnow/chopnow-backend/pkg/outbox"
	"github.com/chopnow/chopnow-backend/pkg/outbox/payloads"
)

const consumerName = "pickups"

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer issues pickup credentials once payment settles.
type Consumer struct {
	pickups Service
	manager idempotencyChecker
	logg    *logger.Logger
}

// NewConsumer builds the pickups consumer.
func NewConsumer(pickups Service, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if pickups == nil {
		return nil, fmt.Errorf("pickup service required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{pickups: pickups, manager: manager, logg: logg}, nil
}

// Process handles one outbox envelope.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	if eventType != enums.EventPaymentSuccess {
		c.logg.Info(logCtx, "event not handled by pickups consumer")
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

	var payload payloads.PaymentSuccessEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		_ = c.manager.Delete(ctx, consumerName, eventID)
		return fmt.Errorf("decode payment.success payload: %w", err)
	}

	if _, err := c.pickups.Issue(ctx, payload.OrderID); err != nil {
		// A replayed event after the credential was already redeemed is
		// settled state, not a failure worth redelivering.
		if pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
			c.logg.Info(logCtx, "pickup already settled; dropping replay")
			return nil
		}
		c.logg.Error(logCtx, "pickup issuance failed", err)
		_ = c.manager.Delete(ctx, consumerName, eventID)
		return err
	}

	c.logg.Info(logCtx, "pickup credential issued")
	return nil
}
