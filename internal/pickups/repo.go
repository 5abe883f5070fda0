package pickups

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chopnow/chopnow-backend/pkg/db/models"
)

// Repository exposes pickup credential persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreatePickup(ctx context.Context, pickup *models.OrderPickup) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.OrderPickup, error)
	FindByOrderIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.OrderPickup, error)
	UpdatePickup(ctx context.Context, id uuid.UUID, updates map[string]any) error
	DeletePickup(ctx context.Context, id uuid.UUID) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository builds the gorm-backed pickups repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{db: tx}
}

func (r *gormRepository) CreatePickup(ctx context.Context, pickup *models.OrderPickup) error {
	return r.db.WithContext(ctx).Create(pickup).Error
}

func (r *gormRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.OrderPickup, error) {
	var pickup models.OrderPickup
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&pickup).Error
	if err != nil {
		return nil, err
	}
	return &pickup, nil
}

func (r *gormRepository) FindByOrderIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.OrderPickup, error) {
	var pickup models.OrderPickup
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID).
		First(&pickup).Error
	if err != nil {
		return nil, err
	}
	return &pickup, nil
}

func (r *gormRepository) UpdatePickup(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderPickup{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *gormRepository) DeletePickup(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.OrderPickup{}, "id = ?", id).Error
}

func (r *gormRepository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}
