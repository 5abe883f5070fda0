package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chopnow/chopnow-backend/pkg/db"
	"github.com/chopnow/chopnow-backend/pkg/db/models"
	"github.com/chopnow/chopnow-backend/pkg/enums"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
	"github.com/chopnow/chopnow-backend/pkg/flutterwave"
	"github.com/chopnow/chopnow-backend/pkg/logger"
	"github.com/chopnow/chopnow-backend/pkg/outbox"
	"github.com/chopnow/chopnow-backend/pkg/outbox/payloads"
)

type checkoutGateway interface {
	InitializeTransaction(ctx context.Context, params flutterwave.ChargeParams) (*flutterwave.CheckoutSession, error)
	RedirectURL() string
}

type orderPaymentHook interface {
	SetPaymentInitiated(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, txRef, checkoutURL string, expiresAt time.Time) error
}

type restaurantReader interface {
	Get(ctx context.Context, restaurantID uuid.UUID) (*models.Restaurant, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// InitiationService opens checkout sessions for orders awaiting payment.
type InitiationService interface {
	Initiate(ctx context.Context, input payloads.OrderAwaitingPaymentEvent) (*models.Payment, error)
}

// InitiationParams collects the initiation service's collaborators.
type InitiationParams struct {
	Repo        Repository
	Tx          txRunner
	Gateway     checkoutGateway
	Orders      orderPaymentHook
	Restaurants restaurantReader
	Outbox      outboxPublisher
	Logger      *logger.Logger
	PaymentTTL  time.Duration
}

type initiationService struct {
	repo        Repository
	tx          txRunner
	gateway     checkoutGateway
	orders      orderPaymentHook
	restaurants restaurantReader
	outbox      outboxPublisher
	logg        *logger.Logger
	paymentTTL  time.Duration
}

// NewInitiationService builds the payment initiation service.
func NewInitiationService(params InitiationParams) (InitiationService, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order payment hook required")
	}
	if params.Restaurants == nil {
		return nil, fmt.Errorf("restaurant reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.PaymentTTL <= 0 {
		params.PaymentTTL = 30 * time.Minute
	}
	return &initiationService{
		repo:        params.Repo,
		tx:          params.Tx,
		gateway:     params.Gateway,
		orders:      params.Orders,
		restaurants: params.Restaurants,
		outbox:      params.Outbox,
		logg:        params.Logger,
		paymentTTL:  params.PaymentTTL,
	}, nil
}

// TxRefForOrder derives the gateway reference for an order. Deterministic so
// redelivered events collide on the existing payment instead of double
// charging.
func TxRefForOrder(orderID uuid.UUID) string {
	return "cn-" + orderID.String()
}

// Initiate opens a checkout session for the order and records the payment.
// One payment per order; a replayed event returns the existing row.
func (s *initiationService) Initiate(ctx context.Context, input payloads.OrderAwaitingPaymentEvent) (*models.Payment, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Total.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}

	existing, err := s.repo.FindByOrderID(ctx, input.OrderID)
	if err == nil {
		s.logInfo(ctx, input.OrderID, "payment already initiated for order")
		return existing, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("lookup payment for order %s: %w", input.OrderID, err)
	}

	restaurant, err := s.restaurants.Get(ctx, input.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("lookup restaurant %s: %w", input.RestaurantID, err)
	}

	txRef := TxRefForOrder(input.OrderID)
	expiresAt := time.Now().Add(s.paymentTTL)

	params := flutterwave.ChargeParams{
		TxRef:       txRef,
		Amount:      input.Total,
		Currency:    string(input.Currency),
		RedirectURL: s.gateway.RedirectURL(),
		Customer:    customerAlias(input.CustomerID),
		Meta: map[string]any{
			"order_id":       input.OrderID.String(),
			"restaurant_id":  input.RestaurantID.String(),
			"platform_topup": input.PlatformTopup.String(),
		},
	}
	subaccountID := ""
	if restaurant.SubaccountID != nil && *restaurant.SubaccountID != "" {
		subaccountID = *restaurant.SubaccountID
		if input.RestaurantShare.IsPositive() {
			params.Subaccounts = []flutterwave.ChargeSplit{
				flutterwave.FlatSplit(subaccountID, input.RestaurantShare),
			}
		}
	} else {
		s.logInfo(ctx, input.OrderID, "restaurant has no subaccount, settling without split")
	}

	session, err := s.gateway.InitializeTransaction(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("initialize checkout for order %s: %w", input.OrderID, err)
	}

	payment := &models.Payment{
		OrderID:     input.OrderID,
		TxRef:       txRef,
		Amount:      input.Total,
		Currency:    input.Currency,
		Status:      enums.PaymentStatusInitiated,
		CheckoutURL: &session.Link,
		ExpiresAt:   &expiresAt,
		Meta: models.PaymentMeta{
			OrderID:         input.OrderID,
			RestaurantID:    input.RestaurantID,
			RestaurantShare: input.RestaurantShare,
			PlatformShare:   input.PlatformShare,
			PlatformTopup:   input.PlatformTopup,
			SubaccountID:    subaccountID,
			CustomerID:      input.CustomerID,
		},
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return err
		}
		if err := s.orders.SetPaymentInitiated(ctx, tx, input.OrderID, txRef, session.Link, expiresAt); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentInitiated,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data: payloads.PaymentInitiatedEvent{
				OrderID:     input.OrderID,
				PaymentID:   payment.ID,
				TxRef:       txRef,
				Amount:      input.Total,
				Currency:    input.Currency,
				CheckoutURL: session.Link,
				ExpiresAt:   expiresAt,
			},
		})
	})
	if err != nil {
		if db.IsUniqueViolation(err, "ux_payments_order_id") || db.IsUniqueViolation(err, "ux_payments_tx_ref") {
			s.logInfo(ctx, input.OrderID, "concurrent initiation lost the race, reusing existing payment")
			return s.repo.FindByOrderID(ctx, input.OrderID)
		}
		return nil, err
	}
	return payment, nil
}

// customerAlias hands the gateway a stable contact for checkout. Customer
// profiles live outside the core, so the alias is derived from the id.
func customerAlias(customerID uuid.UUID) flutterwave.ChargeCustomer {
	short := strings.ReplaceAll(customerID.String(), "-", "")
	return flutterwave.ChargeCustomer{
		Email: fmt.Sprintf("customer-%s@chopnow.app", short[:12]),
		Name:  "ChopNow Customer",
	}
}

func (s *initiationService) logInfo(ctx context.Context, orderID uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithField(ctx, "order_id", orderID.String()), msg)
}
