package payouts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/chopnow/chopnow-backend/pkg/db/models"
	"github.com/chopnow/chopnow-backend/pkg/enums"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
	"github.com/chopnow/chopnow-backend/pkg/logger"
	"github.com/chopnow/chopnow-backend/pkg/outbox"
	"github.com/chopnow/chopnow-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type restaurantReader interface {
	Get(ctx context.Context, restaurantID uuid.UUID) (*models.Restaurant, error)
}

// SweepFilters narrows which pending obligations a sweep picks up.
type SweepFilters struct {
	MinItemAge    time.Duration
	RestaurantIDs []uuid.UUID
	MinTotal      decimal.Decimal
}

// SweepResult summarizes one aggregation run.
type SweepResult struct {
	BatchID     *uuid.UUID
	Aggregates  int
	ItemsSwept  int
	SkippedRest int
}

// Aggregator groups pending platform-topup items into per-restaurant
// aggregates inside one batch.
type Aggregator interface {
	Sweep(ctx context.Context, filters SweepFilters) (*SweepResult, error)
}

// AggregatorParams collects the aggregator's collaborators.
type AggregatorParams struct {
	Repo        Repository
	Tx          txRunner
	Restaurants restaurantReader
	Outbox      outboxPublisher
	Logger      *logger.Logger
	Now         func() time.Time
}

type aggregator struct {
	repo        Repository
	tx          txRunner
	restaurants restaurantReader
	outbox      outboxPublisher
	logg        *logger.Logger
	now         func() time.Time
}

// NewAggregator builds the payout batch aggregator.
func NewAggregator(params AggregatorParams) (Aggregator, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Restaurants == nil {
		return nil, fmt.Errorf("restaurant reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &aggregator{
		repo:        params.Repo,
		tx:          params.Tx,
		restaurants: params.Restaurants,
		outbox:      params.Outbox,
		logg:        params.Logger,
		now:         params.Now,
	}, nil
}

type restaurantGroup struct {
	restaurantID uuid.UUID
	childIDs     []uuid.UUID
	total        decimal.Decimal
	currency     enums.Currency
}

// Sweep collects eligible pending items, groups them per restaurant, and
// commits the batch, its aggregates, and the child re-pointing in one tx.
// Restaurants below the minimum total or without bank details are left
// pending for a later sweep.
func (a *aggregator) Sweep(ctx context.Context, filters SweepFilters) (*SweepResult, error) {
	now := a.now()
	cutoff := now.Add(-filters.MinItemAge)

	items, err := a.repo.FindPendingTopups(ctx, cutoff, filters.RestaurantIDs)
	if err != nil {
		return nil, fmt.Errorf("find pending payout items: %w", err)
	}
	if len(items) == 0 {
		return &SweepResult{}, nil
	}

	groups := groupByRestaurant(items)
	result := &SweepResult{}
	eligible := make([]restaurantGroup, 0, len(groups))
	for _, group := range groups {
		if !filters.MinTotal.IsZero() && group.total.LessThan(filters.MinTotal) {
			continue
		}
		restaurant, err := a.restaurants.Get(ctx, group.restaurantID)
		if err != nil {
			return nil, fmt.Errorf("lookup restaurant %s: %w", group.restaurantID, err)
		}
		if !restaurant.HasBankDetails() {
			result.SkippedRest++
			if a.logg != nil {
				logCtx := a.logg.WithField(ctx, "restaurant_id", group.restaurantID.String())
				a.logg.Warn(logCtx, "restaurant missing bank details, payout deferred")
			}
			continue
		}
		eligible = append(eligible, group)
	}
	if len(eligible) == 0 {
		return result, nil
	}

	batchTotal := decimal.Zero
	for _, group := range eligible {
		batchTotal = batchTotal.Add(group.total)
	}

	err = a.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := a.repo.WithTx(tx)
		batch := &models.PayoutBatch{
			Total:     batchTotal,
			ItemCount: len(eligible),
			Status:    enums.PayoutBatchStatusProcessing,
		}
		if err := repo.CreateBatch(ctx, batch); err != nil {
			return fmt.Errorf("create payout batch: %w", err)
		}
		for _, group := range eligible {
			batchID := batch.ID
			aggregate := &models.PayoutItem{
				RestaurantID:  group.restaurantID,
				Reason:        models.PayoutReasonPlatformTopup,
				Amount:        group.total,
				Currency:      group.currency,
				Status:        enums.PayoutItemStatusBatched,
				PayoutBatchID: &batchID,
			}
			if err := repo.CreateAggregate(ctx, aggregate); err != nil {
				return fmt.Errorf("create aggregate for restaurant %s: %w", group.restaurantID, err)
			}
			attached, err := repo.AttachChildren(ctx, group.childIDs, aggregate.ID, batch.ID)
			if err != nil {
				return fmt.Errorf("attach children for restaurant %s: %w", group.restaurantID, err)
			}
			if attached != int64(len(group.childIDs)) {
				// A concurrent sweep claimed some of these items after
				// our unlocked read. Abort so no obligation is paid
				// twice; the next sweep picks up whatever is left.
				return pkgerrors.New(pkgerrors.CodeConflict, "pending payout items claimed concurrently")
			}
			if err := a.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPayoutBatchCreated,
				AggregateType: enums.AggregatePayoutItem,
				AggregateID:   aggregate.ID,
				Data: payloads.PayoutBatchCreatedEvent{
					BatchID:      batch.ID,
					RestaurantID: group.restaurantID,
					ItemCount:    len(group.childIDs),
					Total:        group.total,
				},
			}); err != nil {
				return err
			}
			result.ItemsSwept += len(group.childIDs)
		}
		batchID := batch.ID
		result.BatchID = &batchID
		result.Aggregates = len(eligible)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func groupByRestaurant(items []models.PayoutItem) []restaurantGroup {
	index := make(map[uuid.UUID]int)
	var groups []restaurantGroup
	for _, item := range items {
		pos, ok := index[item.RestaurantID]
		if !ok {
			pos = len(groups)
			index[item.RestaurantID] = pos
			groups = append(groups, restaurantGroup{
				restaurantID: item.RestaurantID,
				total:        decimal.Zero,
				currency:     item.Currency,
			})
		}
		groups[pos].childIDs = append(groups[pos].childIDs, item.ID)
		groups[pos].total = groups[pos].total.Add(item.Amount)
	}
	return groups
}
