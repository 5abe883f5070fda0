package controllers

import (
	"net/http"

	"github.com/chopnow/chopnow-backend/api/middleware"
	"github.com/chopnow/chopnow-backend/api/responses"
	"github.com/chopnow/chopnow-backend/api/validators"
	restaurantsvc "github.com/chopnow/chopnow-backend/internal/restaurants"
	"github.com/chopnow/chopnow-backend/pkg/enums"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
	"github.com/chopnow/chopnow-backend/pkg/logger"
)

type bankDetailsRequest struct {
	BankCode      string `json:"bank_code" validate:"required,min=3,max=10"`
	AccountNumber string `json:"account_number" validate:"required,min=10,max=10,numeric"`
}

// SetBankDetails stores settlement bank details and provisions the gateway
// split subaccount. Owners may only update their own restaurant.
func SetBankDetails(svc restaurantsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		restaurantID, err := pathUUID(r, "restaurantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if middleware.RoleFromContext(r.Context()) != string(enums.ActorRoleAdmin) {
			owner, err := svc.OwnerUserID(r.Context(), restaurantID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if owner != actor {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeForbidden, "not the restaurant owner"))
				return
			}
		}

		var payload bankDetailsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		restaurant, err := svc.SetBankDetails(r.Context(), restaurantsvc.BankDetailsInput{
			RestaurantID:  restaurantID,
			BankCode:      payload.BankCode,
			AccountNumber: payload.AccountNumber,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"restaurant_id": restaurant.ID,
			"subaccount_id": restaurant.SubaccountID,
		})
	}
}
