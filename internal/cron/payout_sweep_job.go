package cron

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/chopnow/chopnow-backend/internal/payouts"
	"github.com/chopnow/chopnow-backend/pkg/config"
	"github.com/chopnow/chopnow-backend/pkg/logger"
)

// PayoutSweepJobParams configure the payout aggregation job.
type PayoutSweepJobParams struct {
	Logger  *logger.Logger
	Payouts payoutSweeper
	Config  config.PayoutConfig
}

type payoutSweeper interface {
	Sweep(ctx context.Context, filters payouts.SweepFilters) (*payouts.SweepResult, error)
}

// NewPayoutSweepJob builds the job that groups pending top-up obligations
// into a payout batch.
func NewPayoutSweepJob(params PayoutSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout aggregator required")
	}
	minTotal, err := decimal.NewFromString(params.Config.MinBatchTotal)
	if err != nil {
		return nil, fmt.Errorf("parse payout min batch total %q: %w", params.Config.MinBatchTotal, err)
	}
	return &payoutSweepJob{
		logg:    params.Logger,
		payouts: params.Payouts,
		filters: payouts.SweepFilters{
			MinItemAge: params.Config.MinItemAge,
			MinTotal:   minTotal,
		},
	}, nil
}

type payoutSweepJob struct {
	logg    *logger.Logger
	payouts payoutSweeper
	filters payouts.SweepFilters
}

func (j *payoutSweepJob) Name() string { return "payout-sweep" }

func (j *payoutSweepJob) Run(ctx context.Context) error {
	result, err := j.payouts.Sweep(ctx, j.filters)
	if err != nil {
		return fmt.Errorf("payout sweep: %w", err)
	}
	fields := map[string]any{
		"aggregates":          result.Aggregates,
		"items_swept":         result.ItemsSwept,
		"restaurants_skipped": result.SkippedRest,
	}
	if result.BatchID != nil {
		fields["batch_id"] = result.BatchID.String()
	}
	logCtx := j.logg.WithFields(ctx, fields)
	j.logg.Info(logCtx, "payout sweep complete")
	return nil
}
