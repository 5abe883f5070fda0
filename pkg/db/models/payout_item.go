package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chopnow/chopnow-backend/pkg/enums"
)

// PayoutItem is a deferred platform-to-restaurant obligation. Aggregate rows
// have a nil OrderID and carry the summed amount of their children.
type PayoutItem struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID  uuid.UUID              `gorm:"column:restaurant_id;type:uuid;not null;index"`
	OrderID       *uuid.UUID             `gorm:"column:order_id;type:uuid;uniqueIndex:ux_payout_items_order_reason"`
	Reason        string                 `gorm:"column:reason;not null;uniqueIndex:ux_payout_items_order_reason"`
	Amount        decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency      enums.Currency         `gorm:"column:currency;type:text;not null"`
	Status        enums.PayoutItemStatus `gorm:"column:status;type:payout_item_status;not null;default:'pending'"`
	ParentItemID  *uuid.UUID             `gorm:"column:parent_item_id;type:uuid;index"`
	PayoutBatchID *uuid.UUID             `gorm:"column:payout_batch_id;type:uuid;index"`
	AttemptCount  int                    `gorm:"column:attempt_count;not null;default:0"`
	NextAttemptAt *time.Time             `gorm:"column:next_attempt_at"`
	LockedAt      *time.Time             `gorm:"column:locked_at"`
	TransferID    *string                `gorm:"column:transfer_id"`
	LastError     *string                `gorm:"column:last_error"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// PayoutReasonPlatformTopup tags deferred shared-promo obligations.
const PayoutReasonPlatformTopup = "platform_topup"
