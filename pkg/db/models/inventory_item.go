package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem holds the stock counter for a menu item. Mutated exclusively
// by the ledger under a row lock.
type InventoryItem struct {
	MenuItemID       uuid.UUID `gorm:"column:menu_item_id;type:uuid;primaryKey"`
	RestaurantID     uuid.UUID `gorm:"column:restaurant_id;type:uuid;not null;index"`
	StockQty         int       `gorm:"column:stock_qty;not null;default:0"`
	ReorderThreshold int       `gorm:"column:reorder_threshold;not null;default:0"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
