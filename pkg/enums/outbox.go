package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder      OutboxAggregateType = "order"
	AggregatePayment    OutboxAggregateType = "payment"
	AggregateInventory  OutboxAggregateType = "inventory"
	AggregatePickup     OutboxAggregateType = "pickup"
	AggregatePayoutItem OutboxAggregateType = "payout_item"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregatePayment,
	AggregateInventory,
	AggregatePickup,
	AggregatePayoutItem,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated         OutboxEventType = "order.created"
	EventOrderConfirmed       OutboxEventType = "order.confirmed"
	EventOrderAwaitingPayment OutboxEventType = "order.awaiting_payment"
	EventOrderDeclined        OutboxEventType = "order.declined"
	EventOrderPaid            OutboxEventType = "order.paid"
	EventOrderCancelled       OutboxEventType = "order.cancelled"
	EventOrderCompleted       OutboxEventType = "order.completed"
	EventOrderPickupCreated   OutboxEventType = "order.pickup_created"
	EventPaymentInitiated     OutboxEventType = "payment.initiated"
	EventPaymentSuccess       OutboxEventType = "payment.success"
	EventPaymentFailed        OutboxEventType = "payment.failed"
	EventPayoutBatchCreated   OutboxEventType = "payout.batch_created"
	EventPayoutBatchSettled   OutboxEventType = "payout.batch_settled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderConfirmed,
	EventOrderAwaitingPayment,
	EventOrderDeclined,
	EventOrderPaid,
	EventOrderCancelled,
	EventOrderCompleted,
	EventOrderPickupCreated,
	EventPaymentInitiated,
	EventPaymentSuccess,
	EventPaymentFailed,
	EventPayoutBatchCreated,
	EventPayoutBatchSettled,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
