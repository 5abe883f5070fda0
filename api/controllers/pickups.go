package controllers

import (
	"net/http"

	"github.com/chopnow/chopnow-backend/api/responses"
	"github.com/chopnow/chopnow-backend/api/validators"
	pickupsvc "github.com/chopnow/chopnow-backend/internal/pickups"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
	"github.com/chopnow/chopnow-backend/pkg/logger"
)

// IssuePickup mints a pickup credential for a paid order. Issuance normally
// happens from the payment.success consumer; this endpoint covers reissue
// after expiry.
func IssuePickup(svc pickupsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		credential, err := svc.Issue(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, credential)
	}
}

type verifyPickupRequest struct {
	Code  string `json:"code,omitempty" validate:"omitempty,len=6,numeric"`
	Token string `json:"token,omitempty"`
}

// VerifyPickup checks a presented code or token and marks the pickup
// verified on success.
func VerifyPickup(svc pickupsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload verifyPickupRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Code == "" && payload.Token == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "code or token required"))
			return
		}

		err = svc.Verify(r.Context(), pickupsvc.VerifyInput{
			OrderID: orderID,
			ActorID: actor,
			Code:    payload.Code,
			Token:   payload.Token,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "verified"})
	}
}
