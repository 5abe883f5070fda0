package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chopnow/chopnow-backend/pkg/enums"
)

// OrderCreatedEvent signals a freshly placed order awaiting restaurant review.
type OrderCreatedEvent struct {
	OrderID      uuid.UUID       `json:"order_id"`
	RestaurantID uuid.UUID       `json:"restaurant_id"`
	CustomerID   uuid.UUID       `json:"customer_id"`
	Total        decimal.Decimal `json:"total"`
	Currency     enums.Currency  `json:"currency"`
	PromoCode    string          `json:"promo_code,omitempty"`
}

// OrderItemSnapshot carries the line items a confirmation deducts from stock.
type OrderItemSnapshot struct {
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Quantity   int       `json:"quantity"`
}

// OrderConfirmedEvent is emitted when the restaurant accepts an order.
type OrderConfirmedEvent struct {
	OrderID      uuid.UUID           `json:"order_id"`
	RestaurantID uuid.UUID           `json:"restaurant_id"`
	Items        []OrderItemSnapshot `json:"items"`
}

// OrderAwaitingPaymentEvent carries the priced split once stock is reserved.
type OrderAwaitingPaymentEvent struct {
	OrderID         uuid.UUID       `json:"order_id"`
	RestaurantID    uuid.UUID       `json:"restaurant_id"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	Total           decimal.Decimal `json:"total"`
	Currency        enums.Currency  `json:"currency"`
	RestaurantShare decimal.Decimal `json:"restaurant_share"`
	PlatformShare   decimal.Decimal `json:"platform_share"`
	PlatformTopup   decimal.Decimal `json:"platform_topup"`
	PromoCode       string          `json:"promo_code,omitempty"`
}

// OrderDeclinedEvent is emitted when the restaurant rejects an order.
type OrderDeclinedEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	CustomerID   uuid.UUID `json:"customer_id"`
	Reason       string    `json:"reason,omitempty"`
}

// OrderCancelledEvent signals a cancellation before payment settled.
type OrderCancelledEvent struct {
	OrderID      uuid.UUID           `json:"order_id"`
	RestaurantID uuid.UUID           `json:"restaurant_id"`
	CustomerID   uuid.UUID           `json:"customer_id"`
	CancelledAt  time.Time           `json:"cancelled_at"`
	Reason       string              `json:"reason,omitempty"`
	RestockItems []OrderItemSnapshot `json:"restock_items,omitempty"`
}

// OrderCompletedEvent marks successful handover to the customer.
type OrderCompletedEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	CompletedAt  time.Time `json:"completed_at"`
}

// PaymentInitiatedEvent records a checkout link handed to the customer.
type PaymentInitiatedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	PaymentID   uuid.UUID       `json:"payment_id"`
	TxRef       string          `json:"tx_ref"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    enums.Currency  `json:"currency"`
	CheckoutURL string          `json:"checkout_url"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// PaymentSuccessEvent is emitted after a verified successful charge.
type PaymentSuccessEvent struct {
	OrderID       uuid.UUID       `json:"order_id"`
	PaymentID     uuid.UUID       `json:"payment_id"`
	RestaurantID  uuid.UUID       `json:"restaurant_id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	TxRef         string          `json:"tx_ref"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      enums.Currency  `json:"currency"`
	PlatformTopup decimal.Decimal `json:"platform_topup"`
	PaidAt        time.Time       `json:"paid_at"`
}

// PaymentFailedEvent is emitted after a verified failed charge.
type PaymentFailedEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	PaymentID    uuid.UUID `json:"payment_id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	TxRef        string    `json:"tx_ref"`
	Reason       string    `json:"reason,omitempty"`
}

// OrderPaidEvent confirms the order transitioned to paid.
type OrderPaidEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	CustomerID   uuid.UUID `json:"customer_id"`
	PaidAt       time.Time `json:"paid_at"`
}

// PickupCreatedEvent announces pickup credentials without leaking the code.
type PickupCreatedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	PickupID   uuid.UUID `json:"pickup_id"`
	CodeHint   string    `json:"code_hint"`
	ExpiresAt  time.Time `json:"expires_at"`
	CustomerID uuid.UUID `json:"customer_id"`
}

// PayoutBatchCreatedEvent reports obligations grouped for transfer.
type PayoutBatchCreatedEvent struct {
	BatchID      uuid.UUID       `json:"batch_id"`
	RestaurantID uuid.UUID       `json:"restaurant_id"`
	ItemCount    int             `json:"item_count"`
	Total        decimal.Decimal `json:"total"`
}

// PayoutBatchSettledEvent reports the terminal result of a batch transfer.
type PayoutBatchSettledEvent struct {
	BatchID      uuid.UUID               `json:"batch_id"`
	RestaurantID uuid.UUID               `json:"restaurant_id"`
	Status       enums.PayoutBatchStatus `json:"status"`
	TransferID   string                  `json:"transfer_id,omitempty"`
	SettledAt    time.Time               `json:"settled_at"`
}
