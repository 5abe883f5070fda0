package restaurants

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chopnow/chopnow-backend/pkg/db/models"
)

// Repository exposes restaurant persistence.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Restaurant, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository builds the gorm-backed restaurants repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&restaurant).Error; err != nil {
		return nil, err
	}
	return &restaurant, nil
}

func (r *gormRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Restaurant{}).
		Where("id = ?", id).
		Updates(updates).Error
}
