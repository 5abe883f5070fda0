package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chopnow/chopnow-backend/pkg/db/models"
	"github.com/chopnow/chopnow-backend/pkg/enums"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
	"github.com/chopnow/chopnow-backend/pkg/logger"
)

// Adjustment is one line of a stock mutation.
type Adjustment struct {
	MenuItemID uuid.UUID
	Quantity   int
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the inventory ledger. Every stock mutation goes through it so
// the InventoryLog stays the single source of truth for deltas.
type Service interface {
	DeductForOrder(ctx context.Context, orderID uuid.UUID, items []Adjustment) error
	RestockForOrder(ctx context.Context, orderID uuid.UUID, items []Adjustment) error
	Replenish(ctx context.Context, menuItemID uuid.UUID, quantity int, actorID *uuid.UUID) error
	ManualUpdate(ctx context.Context, menuItemID uuid.UUID, stockQty int, actorID *uuid.UUID) error
	ReconcileAvailability(ctx context.Context, limit int) (int, error)
	LowStock(ctx context.Context, restaurantID uuid.UUID) ([]models.InventoryItem, error)
}

// ServiceParams collects the ledger's collaborators.
type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Logger *logger.Logger
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
}

// NewService builds the inventory ledger.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: params.Repo, tx: params.Tx, logg: params.Logger}, nil
}

func orderReference(orderID uuid.UUID) string {
	return "order:" + orderID.String()
}

// DeductForOrder applies an accepted order's line items against stock. The
// whole batch commits or none of it does; a single short row aborts every
// deduction. Replays keyed on the order reference are no-ops.
func (s *service) DeductForOrder(ctx context.Context, orderID uuid.UUID, items []Adjustment) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if err := validateAdjustments(items); err != nil {
		return err
	}
	reference := orderReference(orderID)

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		applied, err := repo.LogExists(ctx, enums.InventoryChangeOrderDeduction, reference)
		if err != nil {
			return fmt.Errorf("deduction dedup check: %w", err)
		}
		if applied {
			if s.logg != nil {
				s.logg.Info(s.logg.WithField(ctx, "order_id", orderID.String()), "order deduction already applied")
			}
			return nil
		}

		locked, err := lockRows(ctx, repo, items)
		if err != nil {
			return err
		}

		for _, adj := range items {
			row := locked[adj.MenuItemID]
			if row.StockQty < adj.Quantity {
				return pkgerrors.New(pkgerrors.CodeExhausted,
					fmt.Sprintf("insufficient stock for menu item %s", adj.MenuItemID))
			}
		}

		for _, adj := range items {
			row := locked[adj.MenuItemID]
			newQty := row.StockQty - adj.Quantity
			if err := applyDelta(ctx, repo, row, newQty, models.InventoryLog{
				MenuItemID: adj.MenuItemID,
				Delta:      -adj.Quantity,
				ChangeType: enums.InventoryChangeOrderDeduction,
				Reference:  &reference,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// RestockForOrder returns a cancelled order's deducted quantities to stock.
func (s *service) RestockForOrder(ctx context.Context, orderID uuid.UUID, items []Adjustment) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if err := validateAdjustments(items); err != nil {
		return err
	}
	reference := orderReference(orderID)

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		applied, err := repo.LogExists(ctx, enums.InventoryChangeRestock, reference)
		if err != nil {
			return fmt.Errorf("restock dedup check: %w", err)
		}
		if applied {
			return nil
		}

		locked, err := lockRows(ctx, repo, items)
		if err != nil {
			return err
		}

		for _, adj := range items {
			row := locked[adj.MenuItemID]
			if err := applyDelta(ctx, repo, row, row.StockQty+adj.Quantity, models.InventoryLog{
				MenuItemID: adj.MenuItemID,
				Delta:      adj.Quantity,
				ChangeType: enums.InventoryChangeRestock,
				Reference:  &reference,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Replenish adds stock received outside the order flow.
func (s *service) Replenish(ctx context.Context, menuItemID uuid.UUID, quantity int, actorID *uuid.UUID) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "replenish quantity must be positive")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := lockRow(ctx, repo, menuItemID)
		if err != nil {
			return err
		}
		return applyDelta(ctx, repo, row, row.StockQty+quantity, models.InventoryLog{
			MenuItemID: menuItemID,
			Delta:      quantity,
			ChangeType: enums.InventoryChangeRestock,
			ActorID:    actorID,
		})
	})
}

// ManualUpdate sets the counter to an absolute value, recording the implied
// delta so stock remains auditable from the log alone.
func (s *service) ManualUpdate(ctx context.Context, menuItemID uuid.UUID, stockQty int, actorID *uuid.UUID) error {
	if stockQty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock quantity cannot be negative")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := lockRow(ctx, repo, menuItemID)
		if err != nil {
			return err
		}
		if row.StockQty == stockQty {
			return nil
		}
		return applyDelta(ctx, repo, row, stockQty, models.InventoryLog{
			MenuItemID: menuItemID,
			Delta:      stockQty - row.StockQty,
			ChangeType: enums.InventoryChangeManualUpdate,
			ActorID:    actorID,
		})
	})
}

// ReconcileAvailability repairs menu items whose availability flag drifted
// from the stock counter, returning how many rows were corrected.
func (s *service) ReconcileAvailability(ctx context.Context, limit int) (int, error) {
	drifted, err := s.repo.FindAvailabilityDrift(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("find availability drift: %w", err)
	}
	fixed := 0
	for _, row := range drifted {
		shouldBeAvailable := row.StockQty > 0
		if err := s.repo.SetMenuItemAvailability(ctx, row.MenuItemID, shouldBeAvailable); err != nil {
			return fixed, fmt.Errorf("reconcile menu item %s: %w", row.MenuItemID, err)
		}
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"menu_item_id": row.MenuItemID.String(),
				"stock_qty":    row.StockQty,
				"is_available": shouldBeAvailable,
			})
			s.logg.Info(logCtx, "availability drift corrected")
		}
		fixed++
	}
	return fixed, nil
}

func (s *service) LowStock(ctx context.Context, restaurantID uuid.UUID) ([]models.InventoryItem, error) {
	if restaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id required")
	}
	return s.repo.ListBelowThreshold(ctx, restaurantID)
}

func validateAdjustments(items []Adjustment) error {
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}
	seen := make(map[uuid.UUID]struct{}, len(items))
	for _, adj := range items {
		if adj.MenuItemID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "menu item id required")
		}
		if adj.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		if _, dup := seen[adj.MenuItemID]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate menu item in adjustment batch")
		}
		seen[adj.MenuItemID] = struct{}{}
	}
	return nil
}

func lockRows(ctx context.Context, repo Repository, items []Adjustment) (map[uuid.UUID]models.InventoryItem, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, adj := range items {
		ids = append(ids, adj.MenuItemID)
	}
	rows, err := repo.FindForUpdate(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("lock inventory rows: %w", err)
	}
	locked := make(map[uuid.UUID]models.InventoryItem, len(rows))
	for _, row := range rows {
		locked[row.MenuItemID] = row
	}
	for _, adj := range items {
		if _, ok := locked[adj.MenuItemID]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("no inventory row for menu item %s", adj.MenuItemID))
		}
	}
	return locked, nil
}

func lockRow(ctx context.Context, repo Repository, menuItemID uuid.UUID) (models.InventoryItem, error) {
	locked, err := lockRows(ctx, repo, []Adjustment{{MenuItemID: menuItemID, Quantity: 1}})
	if err != nil {
		return models.InventoryItem{}, err
	}
	return locked[menuItemID], nil
}

// applyDelta writes the new counter value, appends the ledger entry, and
// flips menu item availability when the counter crosses zero.
func applyDelta(ctx context.Context, repo Repository, row models.InventoryItem, newQty int, entry models.InventoryLog) error {
	if err := repo.UpdateStock(ctx, row.MenuItemID, newQty); err != nil {
		return fmt.Errorf("update stock for %s: %w", row.MenuItemID, err)
	}
	if err := repo.AppendLog(ctx, entry); err != nil {
		return fmt.Errorf("append inventory log for %s: %w", row.MenuItemID, err)
	}
	wasAvailable := row.StockQty > 0
	nowAvailable := newQty > 0
	if wasAvailable != nowAvailable {
		if err := repo.SetMenuItemAvailability(ctx, row.MenuItemID, nowAvailable); err != nil {
			return fmt.Errorf("flip availability for %s: %w", row.MenuItemID, err)
		}
	}
	return nil
}
