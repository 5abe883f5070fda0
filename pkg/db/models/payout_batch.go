package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chopnow/chopnow-backend/pkg/enums"
)

// PayoutBatch groups per-restaurant aggregate payout items created by one
// sweep. Total equals the sum of included aggregates.
type PayoutBatch struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Total       decimal.Decimal         `gorm:"column:total;type:numeric(12,2);not null"`
	ItemCount   int                     `gorm:"column:item_count;not null"`
	Status      enums.PayoutBatchStatus `gorm:"column:status;type:payout_batch_status;not null;default:'processing'"`
	CompletedAt *time.Time              `gorm:"column:completed_at"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
