package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chopnow/chopnow-backend/api/responses"
	"github.com/chopnow/chopnow-backend/api/validators"
	paymentsvc "github.com/chopnow/chopnow-backend/internal/payments"
	payoutsvc "github.com/chopnow/chopnow-backend/internal/payouts"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
	"github.com/chopnow/chopnow-backend/pkg/logger"
)

type sweepPayoutsRequest struct {
	RestaurantIDs []uuid.UUID `json:"restaurant_ids,omitempty"`
	MinItemAgeMin *int        `json:"min_item_age_minutes,omitempty" validate:"omitempty,min=0"`
	MinTotal      *string     `json:"min_total,omitempty"`
}

// SweepPayouts triggers a payout aggregation run outside the cron schedule.
func SweepPayouts(agg payoutsvc.Aggregator, defaults payoutsvc.SweepFilters, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload sweepPayoutsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := defaults
		filters.RestaurantIDs = payload.RestaurantIDs
		if payload.MinItemAgeMin != nil {
			filters.MinItemAge = time.Duration(*payload.MinItemAgeMin) * time.Minute
		}
		if payload.MinTotal != nil {
			minTotal, err := decimal.NewFromString(*payload.MinTotal)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid min_total"))
				return
			}
			filters.MinTotal = minTotal
		}

		result, err := agg.Sweep(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PayoutBatchDetail returns one payout batch.
func PayoutBatchDetail(repo payoutsvc.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID, err := pathUUID(r, "batchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batch, err := repo.FindBatch(r.Context(), batchID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "payout batch not found"))
			return
		}
		responses.WriteSuccess(w, batch)
	}
}

// RefundOrder submits a gateway refund for a paid order.
func RefundOrder(reconciler paymentsvc.Reconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refund, err := reconciler.Refund(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, refund)
	}
}
