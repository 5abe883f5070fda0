package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/chopnow/chopnow-backend/pkg/logger"
)

const unpaidCancelBatchSize = 200

// UnpaidOrderCancelJobParams configure the payment-deadline sweeper.
type UnpaidOrderCancelJobParams struct {
	Logger    *logger.Logger
	Orders    expiredOrderCanceler
	BatchSize int
}

type expiredOrderCanceler interface {
	CancelExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// NewUnpaidOrderCancelJob builds the job that cancels orders whose payment
// window lapsed, releasing their reserved stock.
func NewUnpaidOrderCancelJob(params UnpaidOrderCancelJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = unpaidCancelBatchSize
	}
	return &unpaidOrderCancelJob{
		logg:      params.Logger,
		orders:    params.Orders,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type unpaidOrderCancelJob struct {
	logg      *logger.Logger
	orders    expiredOrderCanceler
	batchSize int
	now       func() time.Time
}

func (j *unpaidOrderCancelJob) Name() string { return "unpaid-order-cancel" }

func (j *unpaidOrderCancelJob) Run(ctx context.Context) error {
	cancelled, err := j.orders.CancelExpired(ctx, j.now().UTC(), j.batchSize)
	if err != nil {
		return fmt.Errorf("cancel expired orders: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": cancelled})
	j.logg.Info(logCtx, "unpaid order cancellation loop complete")
	return nil
}
