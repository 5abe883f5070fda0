package cron

import (
	"context"
	"fmt"

	"github.com/chopnow/chopnow-backend/pkg/logger"
)

const reconcileBatchSize = 500

// InventoryReconcileJobParams configure the availability drift repair job.
type InventoryReconcileJobParams struct {
	Logger    *logger.Logger
	Inventory availabilityReconciler
	BatchSize int
}

type availabilityReconciler interface {
	ReconcileAvailability(ctx context.Context, limit int) (int, error)
}

// NewInventoryReconcileJob builds the job that realigns menu item
// availability flags with their actual stock counts.
func NewInventoryReconcileJob(params InventoryReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = reconcileBatchSize
	}
	return &inventoryReconcileJob{
		logg:      params.Logger,
		inventory: params.Inventory,
		batchSize: batchSize,
	}, nil
}

type inventoryReconcileJob struct {
	logg      *logger.Logger
	inventory availabilityReconciler
	batchSize int
}

func (j *inventoryReconcileJob) Name() string { return "inventory-reconcile" }

func (j *inventoryReconcileJob) Run(ctx context.Context) error {
	fixed, err := j.inventory.ReconcileAvailability(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("reconcile availability: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": fixed})
	j.logg.Info(logCtx, "inventory availability reconcile complete")
	return nil
}
