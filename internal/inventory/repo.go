package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chopnow/chopnow-backend/pkg/db/models"
	"github.com/chopnow/chopnow-backend/pkg/enums"
)

// Repository exposes the stock persistence operations the ledger needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindForUpdate(ctx context.Context, menuItemIDs []uuid.UUID) ([]models.InventoryItem, error)
	UpdateStock(ctx context.Context, menuItemID uuid.UUID, stockQty int) error
	AppendLog(ctx context.Context, entry models.InventoryLog) error
	LogExists(ctx context.Context, changeType enums.InventoryChangeType, reference string) (bool, error)
	SetMenuItemAvailability(ctx context.Context, menuItemID uuid.UUID, available bool) error
	FindAvailabilityDrift(ctx context.Context, limit int) ([]AvailabilityDrift, error)
	ListBelowThreshold(ctx context.Context, restaurantID uuid.UUID) ([]models.InventoryItem, error)
}

// AvailabilityDrift is a menu item whose availability flag disagrees with its
// stock counter.
type AvailabilityDrift struct {
	MenuItemID  uuid.UUID
	StockQty    int
	IsAvailable bool
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository builds the gorm-backed inventory repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{db: tx}
}

// FindForUpdate locks the stock rows in menu_item_id order so concurrent
// deductions always acquire locks in the same sequence.
func (r *gormRepository) FindForUpdate(ctx context.Context, menuItemIDs []uuid.UUID) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("menu_item_id IN ?", menuItemIDs).
		Order("menu_item_id").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *gormRepository) UpdateStock(ctx context.Context, menuItemID uuid.UUID, stockQty int) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("menu_item_id = ?", menuItemID).
		Update("stock_qty", stockQty).Error
}

func (r *gormRepository) AppendLog(ctx context.Context, entry models.InventoryLog) error {
	return r.db.WithContext(ctx).Create(&entry).Error
}

func (r *gormRepository) LogExists(ctx context.Context, changeType enums.InventoryChangeType, reference string) (bool, error) {
	var entry models.InventoryLog
	err := r.db.WithContext(ctx).
		Where("change_type = ? AND reference = ?", changeType, reference).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *gormRepository) SetMenuItemAvailability(ctx context.Context, menuItemID uuid.UUID, available bool) error {
	return r.db.WithContext(ctx).
		Model(&models.MenuItem{}).
		Where("id = ?", menuItemID).
		Update("is_available", available).Error
}

// FindAvailabilityDrift returns menu items whose is_available flag disagrees
// with the sign of their stock counter.
func (r *gormRepository) FindAvailabilityDrift(ctx context.Context, limit int) ([]AvailabilityDrift, error) {
	var rows []AvailabilityDrift
	err := r.db.WithContext(ctx).
		Table("inventory_items").
		Select("inventory_items.menu_item_id, inventory_items.stock_qty, menu_items.is_available").
		Joins("JOIN menu_items ON menu_items.id = inventory_items.menu_item_id").
		Where("(inventory_items.stock_qty > 0) <> menu_items.is_available").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *gormRepository) ListBelowThreshold(ctx context.Context, restaurantID uuid.UUID) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ? AND stock_qty <= reorder_threshold", restaurantID).
		Order("stock_qty").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
