package promos

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chopnow/chopnow-backend/pkg/db/models"
)

// Repository exposes the promo operations the saga needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCodeForUpdate(ctx context.Context, code string) (*models.PromoCode, error)
	IncrementUses(ctx context.Context, id string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a promo repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByCodeForUpdate(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", code).
		First(&promo).Error
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

func (r *repository) IncrementUses(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&models.PromoCode{}).
		Where("id = ?", id).
		UpdateColumn("uses_count", gorm.Expr("uses_count + 1")).Error
}
