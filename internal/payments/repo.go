package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chopnow/chopnow-backend/pkg/db/models"
)

// Repository exposes payment and payout-item persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindByTxRef(ctx context.Context, txRef string) (*models.Payment, error)
	FindByTxRefForUpdate(ctx context.Context, txRef string) (*models.Payment, error)
	UpdatePayment(ctx context.Context, id uuid.UUID, updates map[string]any) error
	InsertPayoutItem(ctx context.Context, item *models.PayoutItem) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository builds the gorm-backed payments repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{db: tx}
}

func (r *gormRepository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *gormRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormRepository) FindByTxRef(ctx context.Context, txRef string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("tx_ref = ?", txRef).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormRepository) FindByTxRefForUpdate(ctx context.Context, txRef string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tx_ref = ?", txRef).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormRepository) UpdatePayment(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *gormRepository) InsertPayoutItem(ctx context.Context, item *models.PayoutItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}
