package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/chopnow/chopnow-backend/pkg/enums"
)

// InventoryLog is the append-only ledger of stock deltas. The sum of deltas
// for an item since creation equals current stock minus initial stock.
type InventoryLog struct {
	ID         uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MenuItemID uuid.UUID                 `gorm:"column:menu_item_id;type:uuid;not null;index"`
	Delta      int                       `gorm:"column:delta;not null"`
	ChangeType enums.InventoryChangeType `gorm:"column:change_type;type:inventory_change_type;not null"`
	Reference  *string                   `gorm:"column:reference;index"`
	ActorID    *uuid.UUID                `gorm:"column:actor_id;type:uuid"`
	CreatedAt  time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
