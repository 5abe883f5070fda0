package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/chopnow/chopnow-backend/pkg/logger"
)

func TestInventoryReconcileJobRunsWithBatchSize(t *testing.T) {
	svc := &fakeReconciler{fixed: 4}
	jobIface, err := NewInventoryReconcileJob(InventoryReconcileJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Inventory: svc,
		BatchSize: 25,
	})
	if err != nil {
		t.Fatalf("NewInventoryReconcileJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if svc.lastLimit != 25 {
		t.Fatalf("expected limit 25, got %d", svc.lastLimit)
	}
}

func TestInventoryReconcileJobDefaultsBatchSize(t *testing.T) {
	svc := &fakeReconciler{}
	jobIface, err := NewInventoryReconcileJob(InventoryReconcileJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Inventory: svc,
	})
	if err != nil {
		t.Fatalf("NewInventoryReconcileJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if svc.lastLimit != reconcileBatchSize {
		t.Fatalf("expected default limit %d, got %d", reconcileBatchSize, svc.lastLimit)
	}
}

func TestInventoryReconcileJobPropagatesError(t *testing.T) {
	svc := &fakeReconciler{err: errors.New("boom")}
	jobIface, err := NewInventoryReconcileJob(InventoryReconcileJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Inventory: svc,
	})
	if err != nil {
		t.Fatalf("NewInventoryReconcileJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeReconciler struct {
	fixed     int
	lastLimit int
	err       error
}

func (f *fakeReconciler) ReconcileAvailability(ctx context.Context, limit int) (int, error) {
	f.lastLimit = limit
	if f.err != nil {
		return 0, f.err
	}
	return f.fixed, nil
}
