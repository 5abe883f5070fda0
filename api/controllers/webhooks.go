package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/chopnow/chopnow-backend/api/responses"
	paymentsvc "github.com/chopnow/chopnow-backend/internal/payments"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
	"github.com/chopnow/chopnow-backend/pkg/flutterwave"
	"github.com/chopnow/chopnow-backend/pkg/logger"
)

const (
	webhookSignatureHeader = "verif-hash"
	webhookMaxBodyBytes    = 1 << 20
)

// FlutterwaveWebhook authenticates a gateway notification and hands the
// transaction reference to the reconciler. The signature covers the raw
// body, so the body is read before any JSON decoding.
func FlutterwaveWebhook(secret string, reconciler paymentsvc.Reconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, webhookMaxBodyBytes))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}

		signature := r.Header.Get(webhookSignatureHeader)
		if !flutterwave.VerifyWebhookSignature(secret, body, signature) {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		var notification flutterwave.WebhookNotification
		if err := json.Unmarshal(body, &notification); err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook body"))
			return
		}
		if notification.Data.TxRef == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "webhook missing tx_ref"))
			return
		}

		if logg != nil {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"event":  notification.Event,
				"tx_ref": notification.Data.TxRef,
			})
			logg.Info(ctx, "gateway webhook received")
		}

		if err := reconciler.HandleWebhook(r.Context(), notification.Data.TxRef); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}
