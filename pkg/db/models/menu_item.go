package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MenuItem is owned by the excluded menu subsystem; the core reads price and
// availability and only flips IsAvailable through the inventory ledger.
type MenuItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID uuid.UUID       `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Name         string          `gorm:"column:name;not null"`
	Price        decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	IsAvailable  bool            `gorm:"column:is_available;not null;default:true"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
