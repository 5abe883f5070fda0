package promos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chopnow/chopnow-backend/pkg/db/models"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
)

// Service redeems promo codes inside the caller's order-creation transaction.
type Service interface {
	Redeem(ctx context.Context, tx *gorm.DB, code string, restaurantID uuid.UUID) (*models.PromoCode, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a promo service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("promos repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// Redeem locks the promo row, applies the fail-closed validation rules, and
// increments uses_count. Runs in the caller's transaction so two concurrent
// orders cannot both consume a promo's last use.
func (s *service) Redeem(ctx context.Context, tx *gorm.DB, code string, restaurantID uuid.UUID) (*models.PromoCode, error) {
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}

	repo := s.repo.WithTx(tx)
	promo, err := repo.FindByCodeForUpdate(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promo code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promo code")
	}

	if err := Validate(promo, restaurantID, s.now()); err != nil {
		return nil, err
	}

	if err := repo.IncrementUses(ctx, promo.ID.String()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment promo uses")
	}
	promo.UsesCount++
	return promo, nil
}
