package flutterwave

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/chopnow/chopnow-backend/pkg/config"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
	"github.com/chopnow/chopnow-backend/pkg/logger"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	logg := logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard})

	client, err := NewClient(context.Background(), config.FlutterwaveConfig{
		BaseURL:       serverURL,
		SecretKey:     "sk-test",
		WebhookSecret: "wh-test",
		Timeout:       2 * time.Second,
		MaxAttempts:   3,
	}, logg)
	require.NoError(t, err)
	return client
}

func TestInitializeTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/payments", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","message":"Hosted Link","data":{"link":"https://checkout.flutterwave.com/v3/hosted/pay/abc"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	session, err := client.InitializeTransaction(context.Background(), ChargeParams{
		TxRef:    "chop-ord-1",
		Amount:   decimal.NewFromInt(5000),
		Currency: "NGN",
		Customer: ChargeCustomer{Email: "buyer@example.com"},
		Subaccounts: []ChargeSplit{
			FlatSplit("RS_123", decimal.NewFromInt(4500)),
		},
	})
	require.NoError(t, err)
	require.Equal(t, "https://checkout.flutterwave.com/v3/hosted/pay/abc", session.Link)
}

func TestInitializeTransactionRequiresTxRef(t *testing.T) {
	client := newTestClient(t, "http://localhost:0")
	_, err := client.InitializeTransaction(context.Background(), ChargeParams{})
	require.Error(t, err)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestVerifyTransactionByRef(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transactions/verify_by_reference", r.URL.Path)
		require.Equal(t, "chop-ord-2", r.URL.Query().Get("tx_ref"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","message":"ok","data":{"id":42,"tx_ref":"chop-ord-2","amount":5000,"currency":"NGN","status":"successful","meta":{"order_id":"o-1"}}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	txn, err := client.VerifyTransactionByRef(context.Background(), "chop-ord-2")
	require.NoError(t, err)
	require.True(t, txn.Successful())
	require.Equal(t, int64(42), txn.ID)
	require.True(t, txn.Amount.Equal(decimal.NewFromInt(5000)))
}

func TestDoRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","message":"ok","data":{"id":7,"reference":"ref-1","status":"NEW"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	transfer, err := client.InitiateTransfer(context.Background(), TransferParams{
		BankCode:      "044",
		AccountNumber: "0690000040",
		Amount:        decimal.NewFromInt(4500),
		Currency:      "NGN",
		Reference:     "ref-1",
	})
	require.NoError(t, err)
	require.Equal(t, int32(3), calls.Load())
	require.Equal(t, "ref-1", transfer.Reference)
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"error","message":"Invalid subaccount id"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.CreateSubaccount(context.Background(), SubaccountParams{
		BusinessName:  "Mama Cass Kitchen",
		BankCode:      "044",
		AccountNumber: "0690000040",
		Country:       "NG",
	})
	require.Error(t, err)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	require.Equal(t, int32(1), calls.Load())
}

func TestRedact(t *testing.T) {
	c := &Client{}
	if out := c.redact("account_number", "0690000040"); out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	if v := c.redact("status", "ok"); v != "ok" {
		t.Fatalf("unexpected redaction for safe key")
	}
}

func TestDomainCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{http.StatusForbidden, pkgerrors.CodeForbidden},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusTooManyRequests, pkgerrors.CodeExhausted},
		{http.StatusBadRequest, pkgerrors.CodeValidation},
		{http.StatusUnprocessableEntity, pkgerrors.CodeStateConflict},
		{http.StatusInternalServerError, pkgerrors.CodeDependency},
	}
	for _, tt := range tests {
		if got := domainCodeForStatus(tt.status); got != tt.code {
			t.Fatalf("status %d expected %s got %s", tt.status, tt.code, got)
		}
	}
}
