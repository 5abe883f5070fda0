package controllers

import (
	"net/http"

	"github.com/chopnow/chopnow-backend/api/responses"
	"github.com/chopnow/chopnow-backend/api/validators"
	inventorysvc "github.com/chopnow/chopnow-backend/internal/inventory"
	"github.com/chopnow/chopnow-backend/pkg/logger"
)

type updateStockRequest struct {
	StockQty int `json:"stock_qty" validate:"min=0"`
}

// UpdateStock sets a menu item's absolute stock count.
func UpdateStock(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		menuItemID, err := pathUUID(r, "menuItemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ManualUpdate(r.Context(), menuItemID, payload.StockQty, &actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"menu_item_id": menuItemID, "stock_qty": payload.StockQty})
	}
}

// LowStock lists a restaurant's items at or below their reorder threshold.
func LowStock(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		restaurantID, err := pathUUID(r, "restaurantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.LowStock(r.Context(), restaurantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}
