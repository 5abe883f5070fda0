package payouts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/chopnow/chopnow-backend/pkg/config"
	"github.com/chopnow/chopnow-backend/pkg/db/models"
	"github.com/chopnow/chopnow-backend/pkg/enums"
	"github.com/chopnow/chopnow-backend/pkg/flutterwave"
	"github.com/chopnow/chopnow-backend/pkg/logger"
	"github.com/chopnow/chopnow-backend/pkg/metrics"
	"github.com/chopnow/chopnow-backend/pkg/outbox"
	"github.com/chopnow/chopnow-backend/pkg/outbox/payloads"
)

const backoffBase = time.Minute

type transferGateway interface {
	InitiateTransfer(ctx context.Context, params flutterwave.TransferParams) (*flutterwave.Transfer, error)
}

// Worker drains due payout aggregates: claim, transfer, propagate.
type Worker struct {
	repo        Repository
	tx          txRunner
	gateway     transferGateway
	restaurants restaurantReader
	outbox      outboxPublisher
	logg        *logger.Logger
	metrics     *metrics.PayoutWorkerMetrics
	cfg         config.PayoutConfig
	now         func() time.Time
}

// WorkerParams collects the worker's collaborators.
type WorkerParams struct {
	Repo        Repository
	Tx          txRunner
	Gateway     transferGateway
	Restaurants restaurantReader
	Outbox      outboxPublisher
	Logger      *logger.Logger
	Metrics     *metrics.PayoutWorkerMetrics
	Config      config.PayoutConfig
	Now         func() time.Time
}

// NewWorker builds the payout queue worker.
func NewWorker(params WorkerParams) (*Worker, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("transfer gateway required")
	}
	if params.Restaurants == nil {
		return nil, fmt.Errorf("restaurant reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Config.WorkerConcurrency <= 0 {
		params.Config.WorkerConcurrency = 4
	}
	if params.Config.MaxAttempts <= 0 {
		params.Config.MaxAttempts = 5
	}
	if params.Config.VisibilityTimeout <= 0 {
		params.Config.VisibilityTimeout = 5 * time.Minute
	}
	if params.Config.PollInterval <= 0 {
		params.Config.PollInterval = 10 * time.Second
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Worker{
		repo:        params.Repo,
		tx:          params.Tx,
		gateway:     params.Gateway,
		restaurants: params.Restaurants,
		outbox:      params.Outbox,
		logg:        params.Logger,
		metrics:     params.Metrics,
		cfg:         params.Config,
		now:         params.Now,
	}, nil
}

// Run polls for due aggregates until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				if w.logg != nil {
					w.logg.Error(ctx, "payout worker pass failed", err)
				}
			}
		}
	}
}

// RunOnce requeues stalled aggregates, claims the due ones, and settles them
// with bounded concurrency. Returns how many aggregates were processed.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	now := w.now()

	requeued, err := w.repo.RequeueStalled(ctx, now.Add(-w.cfg.VisibilityTimeout))
	if err != nil {
		return 0, fmt.Errorf("requeue stalled aggregates: %w", err)
	}
	if requeued > 0 {
		w.metrics.AddRequeued(requeued)
		if w.logg != nil {
			w.logg.Warn(w.logg.WithField(ctx, "count", requeued), "stalled payout aggregates requeued")
		}
	}

	claimed, err := w.repo.ClaimDueAggregates(ctx, now, w.cfg.WorkerConcurrency*2)
	if err != nil {
		return 0, fmt.Errorf("claim due aggregates: %w", err)
	}
	if len(claimed) == 0 {
		return 0, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(w.cfg.WorkerConcurrency)
	errs := make([]error, len(claimed))
	for i := range claimed {
		item := claimed[i]
		idx := i
		group.Go(func() error {
			errs[idx] = w.processAggregate(groupCtx, item)
			return nil
		})
	}
	_ = group.Wait()

	var combined error
	for _, err := range errs {
		combined = multierr.Append(combined, err)
	}
	return len(claimed), combined
}

func (w *Worker) processAggregate(ctx context.Context, item models.PayoutItem) error {
	started := w.now()
	logCtx := ctx
	if w.logg != nil {
		logCtx = w.logg.WithFields(ctx, map[string]any{
			"payout_item_id": item.ID.String(),
			"restaurant_id":  item.RestaurantID.String(),
		})
	}

	restaurant, err := w.restaurants.Get(ctx, item.RestaurantID)
	if err != nil {
		return w.handleFailure(ctx, item, fmt.Errorf("lookup restaurant: %w", err))
	}
	if !restaurant.HasBankDetails() {
		return w.handleFailure(ctx, item, fmt.Errorf("restaurant %s missing bank details", item.RestaurantID))
	}

	transfer, err := w.gateway.InitiateTransfer(ctx, flutterwave.TransferParams{
		BankCode:      *restaurant.BankCode,
		AccountNumber: *restaurant.AccountNumber,
		Amount:        item.Amount,
		Currency:      string(item.Currency),
		Reference:     transferReference(item.ID),
		Narration:     "ChopNow promo settlement",
	})
	if err != nil {
		return w.handleFailure(ctx, item, err)
	}

	if err := w.settlePaid(ctx, item, transfer); err != nil {
		return err
	}
	w.metrics.IncProcessed(string(enums.PayoutItemStatusPaid))
	w.metrics.ObserveBatchDuration(w.now().Sub(started))
	if w.logg != nil {
		w.logg.Info(logCtx, "payout aggregate settled")
	}
	return nil
}

// transferReference derives the idempotency reference the gateway sees, so a
// retried aggregate reuses the same transfer.
func transferReference(aggregateID uuid.UUID) string {
	return "payout-" + aggregateID.String()
}

func (w *Worker) settlePaid(ctx context.Context, item models.PayoutItem, transfer *flutterwave.Transfer) error {
	transferID := fmt.Sprintf("%d", transfer.ID)
	return w.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := w.repo.WithTx(tx)
		if err := repo.UpdateItem(ctx, item.ID, map[string]any{
			"status":      enums.PayoutItemStatusPaid,
			"transfer_id": transferID,
			"locked_at":   nil,
		}); err != nil {
			return fmt.Errorf("mark aggregate paid: %w", err)
		}
		if err := repo.UpdateChildrenStatus(ctx, item.ID, enums.PayoutItemStatusPaid); err != nil {
			return fmt.Errorf("propagate paid to children: %w", err)
		}
		if err := w.emitSettled(ctx, tx, item, enums.PayoutBatchStatusCompleted, transferID); err != nil {
			return err
		}
		return w.finalizeBatch(ctx, repo, item.PayoutBatchID)
	})
}

func (w *Worker) handleFailure(ctx context.Context, item models.PayoutItem, cause error) error {
	attempts := item.AttemptCount + 1
	terminal := attempts >= w.cfg.MaxAttempts
	lastError := cause.Error()
	if len(lastError) > 1024 {
		lastError = lastError[:1024]
	}

	err := w.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := w.repo.WithTx(tx)
		if terminal {
			if err := repo.UpdateItem(ctx, item.ID, map[string]any{
				"status":        enums.PayoutItemStatusFailed,
				"attempt_count": attempts,
				"last_error":    lastError,
				"locked_at":     nil,
			}); err != nil {
				return fmt.Errorf("mark aggregate failed: %w", err)
			}
			if err := repo.UpdateChildrenStatus(ctx, item.ID, enums.PayoutItemStatusFailed); err != nil {
				return fmt.Errorf("propagate failed to children: %w", err)
			}
			if err := w.emitSettled(ctx, tx, item, enums.PayoutBatchStatusFailed, ""); err != nil {
				return err
			}
			return w.finalizeBatch(ctx, repo, item.PayoutBatchID)
		}

		nextAttempt := w.now().Add(backoffBase << uint(attempts-1))
		return repo.UpdateItem(ctx, item.ID, map[string]any{
			"status":          enums.PayoutItemStatusBatched,
			"attempt_count":   attempts,
			"last_error":      lastError,
			"next_attempt_at": nextAttempt,
			"locked_at":       nil,
		})
	})
	if err != nil {
		return err
	}

	if terminal {
		w.metrics.IncProcessed(string(enums.PayoutItemStatusFailed))
	}
	if w.logg != nil {
		logCtx := w.logg.WithFields(ctx, map[string]any{
			"payout_item_id": item.ID.String(),
			"attempt":        attempts,
			"terminal":       terminal,
		})
		w.logg.Error(logCtx, "payout transfer failed", cause)
	}
	return cause
}

func (w *Worker) emitSettled(ctx context.Context, tx *gorm.DB, item models.PayoutItem, status enums.PayoutBatchStatus, transferID string) error {
	batchID := uuid.Nil
	if item.PayoutBatchID != nil {
		batchID = *item.PayoutBatchID
	}
	return w.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPayoutBatchSettled,
		AggregateType: enums.AggregatePayoutItem,
		AggregateID:   item.ID,
		Data: payloads.PayoutBatchSettledEvent{
			BatchID:      batchID,
			RestaurantID: item.RestaurantID,
			Status:       status,
			TransferID:   transferID,
			SettledAt:    w.now(),
		},
	})
}

// finalizeBatch closes the batch once every aggregate is terminal. Completed
// only when none failed.
func (w *Worker) finalizeBatch(ctx context.Context, repo Repository, batchID *uuid.UUID) error {
	if batchID == nil {
		return nil
	}
	unsettled, err := repo.CountUnsettledInBatch(ctx, *batchID)
	if err != nil {
		return fmt.Errorf("count unsettled in batch: %w", err)
	}
	if unsettled > 0 {
		return nil
	}
	failed, err := repo.CountFailedInBatch(ctx, *batchID)
	if err != nil {
		return fmt.Errorf("count failed in batch: %w", err)
	}
	status := enums.PayoutBatchStatusCompleted
	if failed > 0 {
		status = enums.PayoutBatchStatusFailed
	}
	return repo.UpdateBatch(ctx, *batchID, map[string]any{
		"status":       status,
		"completed_at": w.now(),
	})
}
