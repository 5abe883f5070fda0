package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chopnow/chopnow-backend/pkg/enums"
)

// CreateItemInput is one requested line in a new order.
type CreateItemInput struct {
	MenuItemID uuid.UUID `json:"menu_item_id" validate:"required"`
	Quantity   int       `json:"quantity" validate:"required,gt=0"`
}

// CreateInput carries everything needed to place an order.
type CreateInput struct {
	CustomerID   uuid.UUID
	RestaurantID uuid.UUID
	Items        []CreateItemInput
	PromoCode    string
}

// Decision is the restaurant owner's response to a pending order.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

// OwnerDecisionInput captures the owner's accept/decline call.
type OwnerDecisionInput struct {
	OrderID     uuid.UUID
	Decision    Decision
	Reason      string
	ActorUserID uuid.UUID
}

// CancelInput captures a customer cancellation.
type CancelInput struct {
	OrderID     uuid.UUID
	Reason      string
	ActorUserID uuid.UUID
}

// ProgressInput moves a paid order along the fulfillment path.
type ProgressInput struct {
	OrderID     uuid.UUID
	Target      enums.OrderStatus
	ActorUserID uuid.UUID
}

// OrderView is the API-facing projection of an order.
type OrderView struct {
	ID               uuid.UUID           `json:"id"`
	CustomerID       uuid.UUID           `json:"customer_id"`
	RestaurantID     uuid.UUID           `json:"restaurant_id"`
	Status           enums.OrderStatus   `json:"status"`
	PaymentStatus    enums.PaymentStatus `json:"payment_status"`
	Total            decimal.Decimal     `json:"total"`
	Currency         enums.Currency      `json:"currency"`
	PromoCode        *string             `json:"promo_code,omitempty"`
	CheckoutURL      *string             `json:"checkout_url,omitempty"`
	PaymentExpiresAt *time.Time          `json:"payment_expires_at,omitempty"`
	Items            []OrderItemView     `json:"items"`
	CreatedAt        time.Time           `json:"created_at"`
}

// OrderItemView is the snapshot line projection.
type OrderItemView struct {
	MenuItemID uuid.UUID       `json:"menu_item_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// EventView is one audit trail row.
type EventView struct {
	Action    string     `json:"action"`
	ActorID   *uuid.UUID `json:"actor_id,omitempty"`
	Metadata  any        `json:"metadata,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
