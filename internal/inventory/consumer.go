package inventory

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

const consumerName = "inventory"

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer applies confirmed-order deductions and cancellation restocks.
// Replays are caught first by the Redis guard and then by the ledger's
// per-order reference dedup once the guard key expires.
type Consumer struct {
	ledger  Service
	manager idempotencyChecker
	logg    *logger.Logger
}

// NewConsumer builds the inventory consumer.
func NewConsumer(ledger Service, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{ledger: ledger, manager: manager, logg: logg}, nil
}

// Process handles one outbox envelope.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	if eventType != enums.EventOrderConfirmed && eventType != enums.EventOrderCancelled {
		c.logg.Info(logCtx, "event not handled by inventory consumer")
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

	if err := c.dispatch(ctx, eventType, envelope.Data); err != nil {
		c.logg.Error(logCtx, "inventory event handling failed", err)
		_ = c.manager.Delete(ctx, consumerName, eventID)
		return err
	}

	c.logg.Info(logCtx, "inventory event applied")
	return nil
}

func (c *Consumer) dispatch(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage) error {
	switch eventType {
	case enums.EventOrderConfirmed:
		var payload payloads.OrderConfirmedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("decode order.confirmed payload: %w", err)
		}
		return c.ledger.DeductForOrder(ctx, payload.OrderID, toAdjustments(payload.Items))
	case enums.EventOrderCancelled:
		var payload payloads.OrderCancelledEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("decode order.cancelled payload: %w", err)
		}
		if len(payload.RestockItems) == 0 {
			return nil
		}
		return c.ledger.RestockForOrder(ctx, payload.OrderID, toAdjustments(payload.RestockItems))
	default:
		return nil
	}
}

func toAdjustments(items []payloads.OrderItemSnapshot) []Adjustment {
	out := make([]Adjustment, 0, len(items))
	for _, item := range items {
		out = append(out, Adjustment{MenuItemID: item.MenuItemID, Quantity: item.Quantity})
	}
	return out
}
