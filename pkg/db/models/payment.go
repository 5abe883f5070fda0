package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chopnow/chopnow-backend/pkg/enums"
)

// PaymentMeta is persisted at initiation time and is the authoritative source
// for deferred obligations at webhook time; the gateway's metadata echo is
// never trusted.
type PaymentMeta struct {
	OrderID         uuid.UUID       `json:"order_id"`
	RestaurantID    uuid.UUID       `json:"restaurant_id"`
	RestaurantShare decimal.Decimal `json:"restaurant_share"`
	PlatformShare   decimal.Decimal `json:"platform_share"`
	PlatformTopup   decimal.Decimal `json:"platform_topup_needed"`
	SubaccountID    string          `json:"subaccount_id,omitempty"`
	CustomerID      uuid.UUID       `json:"customer_id"`
}

// Payment is one row per order, unique on order_id and on tx_ref.
// Transitions initiated -> paid|failed exactly once.
type Payment struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_payments_order_id"`
	TxRef       string              `gorm:"column:tx_ref;not null;uniqueIndex:ux_payments_tx_ref"`
	Amount      decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency    enums.Currency      `gorm:"column:currency;type:text;not null"`
	Status      enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'initiated'"`
	GatewayTxID *string             `gorm:"column:gateway_tx_id"`
	CheckoutURL *string             `gorm:"column:checkout_url"`
	RawResponse json.RawMessage     `gorm:"column:raw_response;type:jsonb"`
	Meta        PaymentMeta         `gorm:"column:meta;type:jsonb;serializer:json"`
	PaidAt      *time.Time          `gorm:"column:paid_at"`
	ExpiresAt   *time.Time          `gorm:"column:expires_at"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
