package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/chopnow/chopnow-backend/api/responses"
	"github.com/chopnow/chopnow-backend/api/validators"
	ordersvc "github.com/chopnow/chopnow-backend/internal/orders"
	"github.com/chopnow/chopnow-backend/pkg/enums"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
	"github.com/chopnow/chopnow-backend/pkg/logger"
)

type createOrderRequest struct {
	RestaurantID uuid.UUID                `json:"restaurant_id" validate:"required"`
	Items        []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
	PromoCode    string                   `json:"promo_code,omitempty" validate:"omitempty,max=64"`
}

type createOrderItemRequest struct {
	MenuItemID uuid.UUID `json:"menu_item_id" validate:"required"`
	Quantity   int       `json:"quantity" validate:"required,gt=0"`
}

// CreateOrder places a new order for the authenticated customer.
func CreateOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := ordersvc.CreateInput{
			CustomerID:   customer,
			RestaurantID: payload.RestaurantID,
			PromoCode:    validators.SanitizeString(payload.PromoCode, 64),
		}
		for _, item := range payload.Items {
			input.Items = append(input.Items, ordersvc.CreateItemInput{
				MenuItemID: item.MenuItemID,
				Quantity:   item.Quantity,
			})
		}

		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// OrderDetail returns one order visible to the caller.
func OrderDetail(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		order, err := svc.Get(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// OrderEvents lists the order's audit trail.
func OrderEvents(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
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
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		events, err := svc.ListEvents(r.Context(), orderID, actor, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, events)
	}
}

type orderDecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=accept decline"`
	Reason   string `json:"reason,omitempty" validate:"omitempty,max=255"`
}

// OrderDecision records the restaurant owner's accept or decline.
func OrderDecision(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload orderDecisionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.OwnerDecision(r.Context(), ordersvc.OwnerDecisionInput{
			OrderID:     orderID,
			Decision:    ordersvc.Decision(payload.Decision),
			Reason:      validators.SanitizeString(payload.Reason, 255),
			ActorUserID: actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "recorded"})
	}
}

type cancelOrderRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=255"`
}

// CancelOrder cancels an order that has not been paid yet.
func CancelOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload cancelOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.Cancel(r.Context(), ordersvc.CancelInput{
			OrderID:     orderID,
			Reason:      validators.SanitizeString(payload.Reason, 255),
			ActorUserID: actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

type progressOrderRequest struct {
	Target string `json:"target" validate:"required"`
}

// ProgressOrder moves a paid order along the fulfillment path.
func ProgressOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload progressOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParseOrderStatus(strings.TrimSpace(payload.Target))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target status"))
			return
		}

		err = svc.Progress(r.Context(), ordersvc.ProgressInput{
			OrderID:     orderID,
			Target:      target,
			ActorUserID: actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": string(target)})
	}
}
