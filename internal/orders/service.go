package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/chopnow/chopnow-backend/internal/promos"
	"github.com/chopnow/chopnow-backend/pkg/db/models"
	"github.com/chopnow/chopnow-backend/pkg/enums"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
	"github.com/chopnow/chopnow-backend/pkg/logger"
	"github.com/chopnow/chopnow-backend/pkg/outbox"
	"github.com/chopnow/chopnow-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type promoRedeemer interface {
	Redeem(ctx context.Context, tx *gorm.DB, code string, restaurantID uuid.UUID) (*models.PromoCode, error)
}

// Service is the order state machine. Every transition runs in one
// transaction that updates the order, appends an audit event, and queues the
// outbox row; the publisher delivers the event only after commit.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*OrderView, error)
	Get(ctx context.Context, orderID, actorUserID uuid.UUID) (*OrderView, error)
	ListEvents(ctx context.Context, orderID, actorUserID uuid.UUID, limit int) ([]EventView, error)
	OwnerDecision(ctx context.Context, input OwnerDecisionInput) error
	Cancel(ctx context.Context, input CancelInput) error
	Progress(ctx context.Context, input ProgressInput) error

	// Reconciler and initiation hooks. These run inside the caller's
	// transaction so payment state and order state commit together.
	SetPaymentInitiated(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, txRef, checkoutURL string, expiresAt time.Time) error
	MarkPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paidAt time.Time) error
	MarkPaymentFailed(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error

	CancelExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// ServiceParams collects the state machine's collaborators.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Promos  promoRedeemer
	Owners  OwnerLookup
	Logger  *logger.Logger
	FeeRate decimal.Decimal
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	promos  promoRedeemer
	owners  OwnerLookup
	logg    *logger.Logger
	feeRate decimal.Decimal
}

// NewService builds the order state machine.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Promos == nil {
		return nil, fmt.Errorf("promo redeemer required")
	}
	if params.Owners == nil {
		return nil, fmt.Errorf("owner lookup required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		promos:  params.Promos,
		owners:  params.Owners,
		logg:    params.Logger,
		feeRate: params.FeeRate,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*OrderView, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	if input.RestaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	ids := make([]uuid.UUID, 0, len(input.Items))
	seen := make(map[uuid.UUID]bool, len(input.Items))
	for _, item := range input.Items {
		if item.MenuItemID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "menu item id required")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if seen[item.MenuItemID] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate menu item in order")
		}
		seen[item.MenuItemID] = true
		ids = append(ids, item.MenuItemID)
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		menuItems, err := repo.FindMenuItems(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load menu items")
		}
		byID := make(map[uuid.UUID]models.MenuItem, len(menuItems))
		for _, mi := range menuItems {
			byID[mi.ID] = mi
		}

		gross := decimal.Zero
		snapshots := make([]models.OrderItem, 0, len(input.Items))
		for _, item := range input.Items {
			mi, ok := byID[item.MenuItemID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "menu item not found")
			}
			if mi.RestaurantID != input.RestaurantID {
				return pkgerrors.New(pkgerrors.CodeValidation, "menu item belongs to a different restaurant")
			}
			if !mi.IsAvailable {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("menu item %q is unavailable", mi.Name))
			}
			subtotal := mi.Price.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
			gross = gross.Add(subtotal)
			snapshots = append(snapshots, models.OrderItem{
				MenuItemID: mi.ID,
				Name:       mi.Name,
				UnitPrice:  mi.Price,
				Quantity:   item.Quantity,
				Subtotal:   subtotal,
			})
		}

		total := gross
		var promoCode *string
		if input.PromoCode != "" {
			promo, err := s.promos.Redeem(ctx, tx, input.PromoCode, input.RestaurantID)
			if err != nil {
				return err
			}
			split, err := promos.Split(gross, promo, s.feeRate)
			if err != nil {
				return err
			}
			total = split.CustomerPays
			promoCode = &promo.Code
		}

		order := &models.Order{
			CustomerID:    input.CustomerID,
			RestaurantID:  input.RestaurantID,
			Status:        enums.OrderStatusPending,
			PaymentStatus: enums.PaymentStatusNone,
			Total:         total,
			Currency:      enums.CurrencyNGN,
			PromoCode:     promoCode,
		}
		if _, err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		for i := range snapshots {
			snapshots[i].OrderID = order.ID
		}
		if err := repo.CreateItems(ctx, snapshots); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		order.Items = snapshots

		if err := s.appendEvent(ctx, repo, order.ID, "order.created", &input.CustomerID, map[string]any{
			"total":      order.Total.String(),
			"item_count": len(snapshots),
		}); err != nil {
			return err
		}

		created = order
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         customerActor(input.CustomerID),
			Data: payloads.OrderCreatedEvent{
				OrderID:      order.ID,
				RestaurantID: order.RestaurantID,
				CustomerID:   order.CustomerID,
				Total:        order.Total,
				Currency:     order.Currency,
				PromoCode:    input.PromoCode,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	view := toView(created)
	return &view, nil
}

func (s *service) Get(ctx context.Context, orderID, actorUserID uuid.UUID) (*OrderView, error) {
	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, order, actorUserID); err != nil {
		return nil, err
	}
	view := toView(order)
	return &view, nil
}

func (s *service) ListEvents(ctx context.Context, orderID, actorUserID uuid.UUID, limit int) ([]EventView, error) {
	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, order, actorUserID); err != nil {
		return nil, err
	}
	events, err := s.repo.ListEvents(ctx, orderID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order events")
	}
	views := make([]EventView, 0, len(events))
	for _, event := range events {
		var metadata any
		if len(event.Metadata) > 0 {
			_ = json.Unmarshal(event.Metadata, &metadata)
		}
		views = append(views, EventView{
			Action:    event.Action,
			ActorID:   event.ActorID,
			Metadata:  metadata,
			CreatedAt: event.CreatedAt,
		})
	}
	return views, nil
}

func (s *service) OwnerDecision(ctx context.Context, input OwnerDecisionInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Decision != DecisionAccept && input.Decision != DecisionDecline {
		return pkgerrors.New(pkgerrors.CodeValidation, "decision must be accept or decline")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrderForUpdate(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if err := s.requireOwner(ctx, order.RestaurantID, input.ActorUserID); err != nil {
			return err
		}

		if input.Decision == DecisionDecline {
			if order.Status == enums.OrderStatusDeclined {
				return nil
			}
			if order.Status != enums.OrderStatusPending {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order already processed")
			}
			updates := map[string]any{"status": enums.OrderStatusDeclined}
			if input.Reason != "" {
				updates["decline_reason"] = input.Reason
			}
			if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decline order")
			}
			if err := s.appendEvent(ctx, repo, order.ID, "order.declined", &input.ActorUserID, map[string]any{
				"reason": input.Reason,
			}); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderDeclined,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Actor:         ownerActor(input.ActorUserID, order.RestaurantID),
				Data: payloads.OrderDeclinedEvent{
					OrderID:      order.ID,
					RestaurantID: order.RestaurantID,
					CustomerID:   order.CustomerID,
					Reason:       input.Reason,
				},
			})
		}

		// Accept: PENDING → ACCEPTED → AWAITING_PAYMENT in one transaction,
		// emitting both the inventory trigger and the payment trigger.
		if order.Status == enums.OrderStatusAwaitingPayment {
			return nil
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already processed")
		}

		items, err := repo.FindItemsByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		gross := decimal.Zero
		snapshots := make([]payloads.OrderItemSnapshot, 0, len(items))
		for _, item := range items {
			gross = gross.Add(item.Subtotal)
			snapshots = append(snapshots, payloads.OrderItemSnapshot{
				MenuItemID: item.MenuItemID,
				Quantity:   item.Quantity,
			})
		}

		var promo *models.PromoCode
		if order.PromoCode != nil {
			promo, err = repo.FindPromoByCode(ctx, *order.PromoCode)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promo code")
			}
		}
		split, err := promos.Split(gross, promo, s.feeRate)
		if err != nil {
			return err
		}

		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"status": enums.OrderStatusAwaitingPayment,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept order")
		}
		if err := s.appendEvent(ctx, repo, order.ID, "order.accepted", &input.ActorUserID, nil); err != nil {
			return err
		}
		if err := s.appendEvent(ctx, repo, order.ID, "order.awaiting_payment", &input.ActorUserID, map[string]any{
			"restaurant_share": split.RestaurantShare.String(),
			"platform_share":   split.PlatformShare.String(),
			"platform_topup":   split.PlatformTopup.String(),
		}); err != nil {
			return err
		}

		actor := ownerActor(input.ActorUserID, order.RestaurantID)
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.OrderConfirmedEvent{
				OrderID:      order.ID,
				RestaurantID: order.RestaurantID,
				Items:        snapshots,
			},
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderAwaitingPayment,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.OrderAwaitingPaymentEvent{
				OrderID:         order.ID,
				RestaurantID:    order.RestaurantID,
				CustomerID:      order.CustomerID,
				Total:           order.Total,
				Currency:        order.Currency,
				RestaurantShare: split.RestaurantShare,
				PlatformShare:   split.PlatformShare,
				PlatformTopup:   split.PlatformTopup,
				PromoCode:       stringValue(order.PromoCode),
			},
		})
	})
}

func (s *service) Cancel(ctx context.Context, input CancelInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrderForUpdate(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.CustomerID != input.ActorUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer")
		}
		if order.Status == enums.OrderStatusCancelled {
			return nil
		}
		if !canCancel(order.Status, order.PaymentStatus) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled")
		}
		return s.cancelLocked(ctx, tx, repo, order, input.Reason, &input.ActorUserID)
	})
}

// cancelLocked finishes a cancellation on an order already locked in tx.
func (s *service) cancelLocked(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, reason string, actorID *uuid.UUID) error {
	now := time.Now()
	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
		"status":       enums.OrderStatusCancelled,
		"cancelled_at": now,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}
	if err := s.appendEvent(ctx, repo, order.ID, "order.cancelled", actorID, map[string]any{
		"reason": reason,
	}); err != nil {
		return err
	}

	// Stock was deducted when the order was confirmed; hand the lines back to
	// the inventory consumer for replenishment.
	var restock []payloads.OrderItemSnapshot
	if order.Status == enums.OrderStatusAwaitingPayment {
		items, err := repo.FindItemsByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		for _, item := range items {
			restock = append(restock, payloads.OrderItemSnapshot{
				MenuItemID: item.MenuItemID,
				Quantity:   item.Quantity,
			})
		}
	}

	var actor *outbox.ActorRef
	if actorID != nil {
		actor = customerActor(*actorID)
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actor,
		Data: payloads.OrderCancelledEvent{
			OrderID:      order.ID,
			RestaurantID: order.RestaurantID,
			CustomerID:   order.CustomerID,
			CancelledAt:  now,
			Reason:       reason,
			RestockItems: restock,
		},
	})
}

func (s *service) Progress(ctx context.Context, input ProgressInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	ownerTarget := ownerProgressTargets[input.Target]
	customerTarget := customerProgressTargets[input.Target]
	if !ownerTarget && !customerTarget {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported progress target")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrderForUpdate(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if ownerTarget {
			if err := s.requireOwner(ctx, order.RestaurantID, input.ActorUserID); err != nil {
				return err
			}
		} else if order.CustomerID != input.ActorUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer")
		}

		if order.Status == input.Target {
			return nil
		}
		if !canTransition(order.Status, input.Target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move order from %s to %s", order.Status, input.Target))
		}

		updates := map[string]any{"status": input.Target}
		now := time.Now()
		if input.Target == enums.OrderStatusCompleted {
			updates["completed_at"] = now
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "progress order")
		}
		if err := s.appendEvent(ctx, repo, order.ID, "order."+input.Target.String(), &input.ActorUserID, nil); err != nil {
			return err
		}
		if input.Target != enums.OrderStatusCompleted {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCompleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         ownerActor(input.ActorUserID, order.RestaurantID),
			Data: payloads.OrderCompletedEvent{
				OrderID:      order.ID,
				RestaurantID: order.RestaurantID,
				CompletedAt:  now,
			},
		})
	})
}

func (s *service) SetPaymentInitiated(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, txRef, checkoutURL string, expiresAt time.Time) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)
	order, err := s.loadOrderForUpdate(ctx, repo, orderID)
	if err != nil {
		return err
	}
	if order.PaymentStatus == enums.PaymentStatusInitiated && order.TxRef != nil {
		return nil
	}
	if order.Status != enums.OrderStatusAwaitingPayment {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment")
	}
	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
		"payment_status":     enums.PaymentStatusInitiated,
		"tx_ref":             txRef,
		"checkout_url":       checkoutURL,
		"payment_expires_at": expiresAt,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment initiation")
	}
	return s.appendEvent(ctx, repo, order.ID, "payment.initiated", nil, map[string]any{
		"tx_ref": txRef,
	})
}

func (s *service) MarkPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paidAt time.Time) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)
	order, err := s.loadOrderForUpdate(ctx, repo, orderID)
	if err != nil {
		return err
	}
	if order.Status == enums.OrderStatusPaid && order.PaymentStatus == enums.PaymentStatusPaid {
		return nil
	}
	if !canTransition(order.Status, enums.OrderStatusPaid) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be marked paid in current state")
	}
	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
		"status":         enums.OrderStatusPaid,
		"payment_status": enums.PaymentStatusPaid,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}
	if err := s.appendEvent(ctx, repo, order.ID, "order.paid", nil, map[string]any{
		"paid_at": paidAt.Format(time.RFC3339),
	}); err != nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.OrderPaidEvent{
			OrderID:      order.ID,
			RestaurantID: order.RestaurantID,
			CustomerID:   order.CustomerID,
			PaidAt:       paidAt,
		},
	})
}

func (s *service) MarkPaymentFailed(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)
	order, err := s.loadOrderForUpdate(ctx, repo, orderID)
	if err != nil {
		return err
	}
	if order.Status == enums.OrderStatusDeclined && order.PaymentStatus == enums.PaymentStatusFailed {
		return nil
	}
	if !canTransition(order.Status, enums.OrderStatusDeclined) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be declined in current state")
	}
	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
		"status":         enums.OrderStatusDeclined,
		"payment_status": enums.PaymentStatusFailed,
		"decline_reason": reason,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
	}
	return s.appendEvent(ctx, repo, order.ID, "payment.failed", nil, map[string]any{
		"reason": reason,
	})
}

// CancelExpired sweeps orders stuck in AWAITING_PAYMENT past their payment
// expiry. Safe to run concurrently with in-flight webhooks: each order is
// re-checked under its row lock.
func (s *service) CancelExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	candidates, err := s.repo.FindExpiredAwaitingPayment(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find expired orders")
	}

	cancelled := 0
	var errs error
	for _, candidate := range candidates {
		orderID := candidate.ID
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := s.loadOrderForUpdate(ctx, repo, orderID)
			if err != nil {
				return err
			}
			if order.Status != enums.OrderStatusAwaitingPayment || order.PaymentStatus == enums.PaymentStatusPaid {
				return nil
			}
			if order.PaymentExpiresAt == nil || order.PaymentExpiresAt.After(now) {
				return nil
			}
			if err := s.cancelLocked(ctx, tx, repo, order, "payment window expired", nil); err != nil {
				return err
			}
			cancelled++
			return nil
		})
		if err != nil {
			if s.logg != nil {
				logCtx := s.logg.WithField(ctx, "order_id", orderID.String())
				s.logg.Error(logCtx, "expired order cancellation failed", err)
			}
			errs = multierr.Append(errs, err)
		}
	}
	return cancelled, errs
}

func (s *service) loadOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) loadOrderForUpdate(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByIDForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) requireOwner(ctx context.Context, restaurantID, actorUserID uuid.UUID) error {
	ownerID, err := s.owners.OwnerUserID(ctx, restaurantID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve restaurant owner")
	}
	if ownerID != actorUserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to restaurant")
	}
	return nil
}

func (s *service) authorizeRead(ctx context.Context, order *models.Order, actorUserID uuid.UUID) error {
	if actorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if order.CustomerID == actorUserID {
		return nil
	}
	ownerID, err := s.owners.OwnerUserID(ctx, order.RestaurantID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve restaurant owner")
	}
	if ownerID == actorUserID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "order is not visible to this user")
}

func (s *service) appendEvent(ctx context.Context, repo Repository, orderID uuid.UUID, action string, actorID *uuid.UUID, metadata map[string]any) error {
	var raw json.RawMessage
	if metadata != nil {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode event metadata")
		}
		raw = encoded
	}
	if err := repo.AppendEvent(ctx, models.OrderEvent{
		OrderID:  orderID,
		Action:   action,
		ActorID:  actorID,
		Metadata: raw,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order event")
	}
	return nil
}

func customerActor(userID uuid.UUID) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: userID, Role: "customer"}
}

func ownerActor(userID, restaurantID uuid.UUID) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: userID, RestaurantID: &restaurantID, Role: "owner"}
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func toView(order *models.Order) OrderView {
	items := make([]OrderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemView{
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
			Subtotal:   item.Subtotal,
		})
	}
	return OrderView{
		ID:               order.ID,
		CustomerID:       order.CustomerID,
		RestaurantID:     order.RestaurantID,
		Status:           order.Status,
		PaymentStatus:    order.PaymentStatus,
		Total:            order.Total,
		Currency:         order.Currency,
		PromoCode:        order.PromoCode,
		CheckoutURL:      order.CheckoutURL,
		PaymentExpiresAt: order.PaymentExpiresAt,
		Items:            items,
		CreatedAt:        order.CreatedAt,
	}
}
