package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chopnow/chopnow-backend/internal/payouts"
	"github.com/chopnow/chopnow-backend/pkg/config"
	"github.com/chopnow/chopnow-backend/pkg/logger"
)

func TestPayoutSweepJobBuildsFiltersFromConfig(t *testing.T) {
	batchID := uuid.New()
	svc := &fakeSweeper{result: &payouts.SweepResult{BatchID: &batchID, Aggregates: 2, ItemsSwept: 5}}
	jobIface, err := NewPayoutSweepJob(PayoutSweepJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Payouts: svc,
		Config: config.PayoutConfig{
			MinItemAge:    2 * time.Hour,
			MinBatchTotal: "10.50",
		},
	})
	if err != nil {
		t.Fatalf("NewPayoutSweepJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if svc.lastFilters.MinItemAge != 2*time.Hour {
		t.Fatalf("expected min item age 2h, got %s", svc.lastFilters.MinItemAge)
	}
	if !svc.lastFilters.MinTotal.Equal(decimal.RequireFromString("10.50")) {
		t.Fatalf("expected min total 10.50, got %s", svc.lastFilters.MinTotal)
	}
}

func TestPayoutSweepJobRejectsBadMinTotal(t *testing.T) {
	_, err := NewPayoutSweepJob(PayoutSweepJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Payouts: &fakeSweeper{},
		Config:  config.PayoutConfig{MinBatchTotal: "garbage"},
	})
	if err == nil {
		t.Fatal("expected error for unparseable min batch total")
	}
}

func TestPayoutSweepJobPropagatesError(t *testing.T) {
	svc := &fakeSweeper{err: errors.New("boom")}
	jobIface, err := NewPayoutSweepJob(PayoutSweepJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Payouts: svc,
		Config:  config.PayoutConfig{MinBatchTotal: "0"},
	})
	if err != nil {
		t.Fatalf("NewPayoutSweepJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeSweeper struct {
	result      *payouts.SweepResult
	lastFilters payouts.SweepFilters
	err         error
}

func (f *fakeSweeper) Sweep(ctx context.Context, filters payouts.SweepFilters) (*payouts.SweepResult, error) {
	f.lastFilters = filters
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &payouts.SweepResult{}, nil
}
