package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chopnow/chopnow-backend/pkg/enums"
)

// Order is the saga's root aggregate. Mutated only through state-machine
// transitions; immutable once in a terminal state.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID       uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	RestaurantID     uuid.UUID           `gorm:"column:restaurant_id;type:uuid;not null"`
	Status           enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:order_payment_status;not null;default:'none'"`
	Total            decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	Currency         enums.Currency      `gorm:"column:currency;type:text;not null;default:'NGN'"`
	PromoCode        *string             `gorm:"column:promo_code"`
	TxRef            *string             `gorm:"column:tx_ref;uniqueIndex:ux_orders_tx_ref"`
	CheckoutURL      *string             `gorm:"column:checkout_url"`
	PaymentExpiresAt *time.Time          `gorm:"column:payment_expires_at"`
	DeclineReason    *string             `gorm:"column:decline_reason"`
	CancelledAt      *time.Time          `gorm:"column:cancelled_at"`
	CompletedAt      *time.Time          `gorm:"column:completed_at"`
	Items            []OrderItem         `gorm:"foreignKey:OrderID"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
