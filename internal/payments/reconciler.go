package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
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

type verifyGateway interface {
	VerifyTransactionByRef(ctx context.Context, txRef string) (*flutterwave.Transaction, error)
	RefundTransaction(ctx context.Context, transactionID int64, params flutterwave.RefundParams) (*flutterwave.Refund, error)
}

type orderSettlementHook interface {
	MarkPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paidAt time.Time) error
	MarkPaymentFailed(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error
}

// Reconciler settles payments against the gateway's word, never the
// webhook body's.
type Reconciler interface {
	HandleWebhook(ctx context.Context, txRef string) error
	Refund(ctx context.Context, orderID uuid.UUID) (*flutterwave.Refund, error)
}

// ReconcilerParams collects the reconciler's collaborators.
type ReconcilerParams struct {
	Repo    Repository
	Tx      txRunner
	Gateway verifyGateway
	Orders  orderSettlementHook
	Outbox  outboxPublisher
	Logger  *logger.Logger
}

type reconciler struct {
	repo    Repository
	tx      txRunner
	gateway verifyGateway
	orders  orderSettlementHook
	outbox  outboxPublisher
	logg    *logger.Logger
}

// NewReconciler builds the payment reconciler.
func NewReconciler(params ReconcilerParams) (Reconciler, error) {
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
		return nil, fmt.Errorf("order settlement hook required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &reconciler{
		repo:    params.Repo,
		tx:      params.Tx,
		gateway: params.Gateway,
		orders:  params.Orders,
		outbox:  params.Outbox,
		logg:    params.Logger,
	}, nil
}

// HandleWebhook settles the payment referenced by a verified webhook. The
// caller has already checked the signature; the charge outcome is re-fetched
// from the gateway by reference.
func (r *reconciler) HandleWebhook(ctx context.Context, txRef string) error {
	if txRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "tx_ref required")
	}

	payment, err := r.repo.FindByTxRef(ctx, txRef)
	if err != nil {
		if isNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no payment for reference")
		}
		return fmt.Errorf("lookup payment %s: %w", txRef, err)
	}
	if payment.Status.IsTerminal() {
		r.logInfo(ctx, txRef, "payment already settled")
		return nil
	}

	txn, err := r.gateway.VerifyTransactionByRef(ctx, txRef)
	if err != nil {
		return fmt.Errorf("verify transaction %s: %w", txRef, err)
	}

	switch txn.Status {
	case flutterwave.TransactionStatusSuccessful:
		return r.settleSuccess(ctx, txRef, txn)
	case flutterwave.TransactionStatusFailed:
		return r.settleFailure(ctx, txRef, txn)
	default:
		r.logInfo(ctx, txRef, "transaction still pending at gateway")
		return nil
	}
}

func (r *reconciler) settleSuccess(ctx context.Context, txRef string, txn *flutterwave.Transaction) error {
	rawResponse := gatewayRawResponse(txn)
	var lateSettlement bool
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.repo.WithTx(tx)
		payment, err := repo.FindByTxRefForUpdate(ctx, txRef)
		if err != nil {
			return fmt.Errorf("lock payment %s: %w", txRef, err)
		}
		if payment.Status.IsTerminal() {
			return nil
		}

		paidAt := time.Now()
		gatewayTxID := strconv.FormatInt(txn.ID, 10)

		if err := r.orders.MarkPaid(ctx, tx, payment.OrderID, paidAt); err != nil {
			if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
				return err
			}
			// The order closed before the charge settled. Park the
			// payment as failed so the webhook stops redelivering and
			// refund the charge after commit.
			if err := repo.UpdatePayment(ctx, payment.ID, map[string]any{
				"status":        enums.PaymentStatusFailed,
				"gateway_tx_id": gatewayTxID,
				"raw_response":  rawResponse,
			}); err != nil {
				return fmt.Errorf("park late settlement: %w", err)
			}
			if err := r.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentFailed,
				AggregateType: enums.AggregatePayment,
				AggregateID:   payment.ID,
				Data: payloads.PaymentFailedEvent{
					OrderID:      payment.OrderID,
					PaymentID:    payment.ID,
					RestaurantID: payment.Meta.RestaurantID,
					TxRef:        txRef,
					Reason:       "order closed before charge settled",
				},
			}); err != nil {
				return err
			}
			lateSettlement = true
			return nil
		}

		updates := map[string]any{
			"status":        enums.PaymentStatusPaid,
			"gateway_tx_id": gatewayTxID,
			"paid_at":       paidAt,
			"raw_response":  rawResponse,
		}
		if err := repo.UpdatePayment(ctx, payment.ID, updates); err != nil {
			return fmt.Errorf("mark payment paid: %w", err)
		}

		if err := r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentSuccess,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data: payloads.PaymentSuccessEvent{
				OrderID:       payment.OrderID,
				PaymentID:     payment.ID,
				RestaurantID:  payment.Meta.RestaurantID,
				CustomerID:    payment.Meta.CustomerID,
				TxRef:         txRef,
				Amount:        payment.Amount,
				Currency:      payment.Currency,
				PlatformTopup: payment.Meta.PlatformTopup,
				PaidAt:        paidAt,
			},
		}); err != nil {
			return err
		}

		return r.recordTopup(ctx, repo, payment)
	})
	if err != nil {
		return err
	}
	if lateSettlement {
		if _, err := r.gateway.RefundTransaction(ctx, txn.ID, flutterwave.RefundParams{}); err != nil {
			// The payment row is already parked; the charge stays
			// refundable at the gateway for manual follow-up.
			if r.logg != nil {
				r.logg.Error(r.logg.WithField(ctx, "tx_ref", txRef), "late settlement refund failed", err)
			}
			return nil
		}
		r.logInfo(ctx, txRef, "late settlement refunded")
	}
	return nil
}

// recordTopup defers the platform's obligation to the restaurant when the
// customer's payment did not cover the restaurant's entitlement. Amounts come
// from the payment row persisted at initiation, not from the gateway echo.
func (r *reconciler) recordTopup(ctx context.Context, repo Repository, payment *models.Payment) error {
	if !payment.Meta.PlatformTopup.IsPositive() {
		return nil
	}
	orderID := payment.OrderID
	item := &models.PayoutItem{
		RestaurantID: payment.Meta.RestaurantID,
		OrderID:      &orderID,
		Reason:       models.PayoutReasonPlatformTopup,
		Amount:       payment.Meta.PlatformTopup,
		Currency:     payment.Currency,
		Status:       enums.PayoutItemStatusPending,
	}
	if err := repo.InsertPayoutItem(ctx, item); err != nil {
		if db.IsUniqueViolation(err, "ux_payout_items_order_reason") {
			return nil
		}
		return fmt.Errorf("record platform topup: %w", err)
	}
	return nil
}

func (r *reconciler) settleFailure(ctx context.Context, txRef string, txn *flutterwave.Transaction) error {
	return r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.repo.WithTx(tx)
		payment, err := repo.FindByTxRefForUpdate(ctx, txRef)
		if err != nil {
			return fmt.Errorf("lock payment %s: %w", txRef, err)
		}
		if payment.Status == enums.PaymentStatusPaid || payment.Status == enums.PaymentStatusFailed {
			return nil
		}

		reason := txn.ProcessorResponse
		updates := map[string]any{
			"status":        enums.PaymentStatusFailed,
			"gateway_tx_id": strconv.FormatInt(txn.ID, 10),
			"raw_response":  gatewayRawResponse(txn),
		}
		if err := repo.UpdatePayment(ctx, payment.ID, updates); err != nil {
			return fmt.Errorf("mark payment failed: %w", err)
		}

		if err := r.orders.MarkPaymentFailed(ctx, tx, payment.OrderID, reason); err != nil {
			return err
		}

		return r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data: payloads.PaymentFailedEvent{
				OrderID:      payment.OrderID,
				PaymentID:    payment.ID,
				RestaurantID: payment.Meta.RestaurantID,
				TxRef:        txRef,
				Reason:       reason,
			},
		})
	})
}

// Refund pushes a full refund for a settled payment back through the gateway.
func (r *reconciler) Refund(ctx context.Context, orderID uuid.UUID) (*flutterwave.Refund, error) {
	payment, err := r.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment for order")
		}
		return nil, fmt.Errorf("lookup payment for order %s: %w", orderID, err)
	}
	if payment.Status != enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only settled payments can be refunded")
	}
	if payment.GatewayTxID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment missing gateway transaction id")
	}
	transactionID, err := strconv.ParseInt(*payment.GatewayTxID, 10, 64)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "malformed gateway transaction id")
	}

	refund, err := r.gateway.RefundTransaction(ctx, transactionID, flutterwave.RefundParams{})
	if err != nil {
		return nil, err
	}
	r.logInfo(ctx, payment.TxRef, "refund submitted to gateway")
	return refund, nil
}

func (r *reconciler) logInfo(ctx context.Context, txRef, msg string) {
	if r.logg == nil {
		return
	}
	r.logg.Info(r.logg.WithField(ctx, "tx_ref", txRef), msg)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// gatewayRawResponse keeps the verified gateway payload alongside the
// settlement for audits and dispute handling.
func gatewayRawResponse(txn *flutterwave.Transaction) json.RawMessage {
	raw, err := json.Marshal(txn)
	if err != nil {
		return nil
	}
	return raw
}
