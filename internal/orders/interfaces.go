package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chopnow/chopnow-backend/pkg/db/models"
	"github.com/chopnow/chopnow-backend/pkg/enums"
)

// Repository exposes the order persistence operations the state machine needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	AppendEvent(ctx context.Context, event models.OrderEvent) error
	ListEvents(ctx context.Context, orderID uuid.UUID, limit int) ([]models.OrderEvent, error)
	FindMenuItems(ctx context.Context, ids []uuid.UUID) ([]models.MenuItem, error)
	FindPromoByCode(ctx context.Context, code string) (*models.PromoCode, error)
	FindExpiredAwaitingPayment(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// OwnerLookup resolves the owning user of a restaurant. Implemented by the
// restaurants package; the state machine never mutates restaurant data.
type OwnerLookup interface {
	OwnerUserID(ctx context.Context, restaurantID uuid.UUID) (uuid.UUID, error)
}

// StatusChange is the audit record of one transition.
type StatusChange struct {
	From enums.OrderStatus
	To   enums.OrderStatus
}
