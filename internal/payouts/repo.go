package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chopnow/chopnow-backend/pkg/db/models"
	"github.com/chopnow/chopnow-backend/pkg/enums"
)

// Repository exposes payout persistence for the aggregator and the worker.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindPendingTopups(ctx context.Context, olderThan time.Time, restaurantIDs []uuid.UUID) ([]models.PayoutItem, error)
	CreateBatch(ctx context.Context, batch *models.PayoutBatch) error
	CreateAggregate(ctx context.Context, item *models.PayoutItem) error
	AttachChildren(ctx context.Context, childIDs []uuid.UUID, parentID, batchID uuid.UUID) (int64, error)
	ClaimDueAggregates(ctx context.Context, now time.Time, limit int) ([]models.PayoutItem, error)
	RequeueStalled(ctx context.Context, stalledBefore time.Time) (int, error)
	UpdateItem(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateChildrenStatus(ctx context.Context, parentID uuid.UUID, status enums.PayoutItemStatus) error
	CountUnsettledInBatch(ctx context.Context, batchID uuid.UUID) (int64, error)
	CountFailedInBatch(ctx context.Context, batchID uuid.UUID) (int64, error)
	UpdateBatch(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindBatch(ctx context.Context, id uuid.UUID) (*models.PayoutBatch, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository builds the gorm-backed payouts repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{db: tx}
}

func (r *gormRepository) FindPendingTopups(ctx context.Context, olderThan time.Time, restaurantIDs []uuid.UUID) ([]models.PayoutItem, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", enums.PayoutItemStatusPending).
		Where("reason = ?", models.PayoutReasonPlatformTopup).
		Where("order_id IS NOT NULL").
		Where("created_at < ?", olderThan)
	if len(restaurantIDs) > 0 {
		query = query.Where("restaurant_id IN ?", restaurantIDs)
	}
	var items []models.PayoutItem
	if err := query.Order("restaurant_id, created_at").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *gormRepository) CreateBatch(ctx context.Context, batch *models.PayoutBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *gormRepository) CreateAggregate(ctx context.Context, item *models.PayoutItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// AttachChildren re-points still-pending children at their aggregate. The
// status guard plus the returned row count let the caller detect children
// claimed by a concurrent sweep.
func (r *gormRepository) AttachChildren(ctx context.Context, childIDs []uuid.UUID, parentID, batchID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PayoutItem{}).
		Where("id IN ? AND status = ?", childIDs, enums.PayoutItemStatusPending).
		Updates(map[string]any{
			"parent_item_id":  parentID,
			"payout_batch_id": batchID,
			"status":          enums.PayoutItemStatusBatched,
		})
	return result.RowsAffected, result.Error
}

// ClaimDueAggregates locks up to limit due aggregate rows, skipping ones
// already held by another worker, and stamps them processing.
func (r *gormRepository) ClaimDueAggregates(ctx context.Context, now time.Time, limit int) ([]models.PayoutItem, error) {
	var claimed []models.PayoutItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items []models.PayoutItem
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("order_id IS NULL AND parent_item_id IS NULL").
			Where("status = ?", enums.PayoutItemStatusBatched).
			Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
			Order("created_at").
			Limit(limit).
			Find(&items).Error
		if err != nil {
			return err
		}
		for i := range items {
			update := map[string]any{
				"status":    enums.PayoutItemStatusProcessing,
				"locked_at": now,
			}
			if err := tx.Model(&models.PayoutItem{}).Where("id = ?", items[i].ID).Updates(update).Error; err != nil {
				return err
			}
			items[i].Status = enums.PayoutItemStatusProcessing
			lockedAt := now
			items[i].LockedAt = &lockedAt
		}
		claimed = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// RequeueStalled returns processing aggregates whose lock outlived the
// visibility timeout to the queue.
func (r *gormRepository) RequeueStalled(ctx context.Context, stalledBefore time.Time) (int, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PayoutItem{}).
		Where("order_id IS NULL AND parent_item_id IS NULL").
		Where("status = ?", enums.PayoutItemStatusProcessing).
		Where("locked_at IS NOT NULL AND locked_at < ?", stalledBefore).
		Updates(map[string]any{
			"status":    enums.PayoutItemStatusBatched,
			"locked_at": nil,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

func (r *gormRepository) UpdateItem(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.PayoutItem{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *gormRepository) UpdateChildrenStatus(ctx context.Context, parentID uuid.UUID, status enums.PayoutItemStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.PayoutItem{}).
		Where("parent_item_id = ?", parentID).
		Update("status", status).Error
}

func (r *gormRepository) CountUnsettledInBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PayoutItem{}).
		Where("payout_batch_id = ? AND order_id IS NULL AND parent_item_id IS NULL", batchID).
		Where("status NOT IN ?", []enums.PayoutItemStatus{enums.PayoutItemStatusPaid, enums.PayoutItemStatusFailed}).
		Count(&count).Error
	return count, err
}

func (r *gormRepository) CountFailedInBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PayoutItem{}).
		Where("payout_batch_id = ? AND order_id IS NULL AND parent_item_id IS NULL", batchID).
		Where("status = ?", enums.PayoutItemStatusFailed).
		Count(&count).Error
	return count, err
}

func (r *gormRepository) UpdateBatch(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.PayoutBatch{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *gormRepository) FindBatch(ctx context.Context, id uuid.UUID) (*models.PayoutBatch, error) {
	var batch models.PayoutBatch
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}
