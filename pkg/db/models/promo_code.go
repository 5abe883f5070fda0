package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chopnow/chopnow-backend/pkg/enums"
)

// PromoCode holds discount configuration. uses_count is incremented in the
// same transaction as order creation.
type PromoCode struct {
	ID                  uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code                string                  `gorm:"column:code;not null;uniqueIndex:ux_promo_codes_code"`
	DiscountType        enums.PromoDiscountType `gorm:"column:discount_type;type:promo_discount_type;not null"`
	Value               decimal.Decimal         `gorm:"column:value;type:numeric(12,2);not null"`
	Scope               enums.PromoScope        `gorm:"column:scope;type:promo_scope;not null"`
	RestaurantID        *uuid.UUID              `gorm:"column:restaurant_id;type:uuid"`
	RestaurantSharePct  decimal.Decimal         `gorm:"column:restaurant_share_pct;type:numeric(5,2);not null;default:0"`
	MaxUses             int                     `gorm:"column:max_uses;not null;default:0"`
	UsesCount           int                     `gorm:"column:uses_count;not null;default:0"`
	Active              bool                    `gorm:"column:active;not null;default:true"`
	ExpiresAt           *time.Time              `gorm:"column:expires_at"`
	CreatedAt           time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
