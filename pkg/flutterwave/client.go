package flutterwave

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/chopnow/chopnow-backend/pkg/config"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
	"github.com/chopnow/chopnow-backend/pkg/logger"
)

var (
	errSecretKeyRequired     = errors.New("flutterwave secret key is required")
	errWebhookSecretRequired = errors.New("flutterwave webhook secret is required")
	errLoggerRequired        = errors.New("flutterwave logger is required")
)

const retryBaseDelay = 500 * time.Millisecond

// Client wraps the Flutterwave REST API with centralized auth, logging,
// retries, and error mapping.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	secretKey     string
	webhookSecret string
	redirectURL   string
	maxAttempts   int
	logger        *logger.Logger
}

// NewClient initializes the Flutterwave wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.FlutterwaveConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errSecretKeyRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		redirectURL:   cfg.RedirectURL,
		maxAttempts:   maxAttempts,
		logger:        logg,
	}

	logg.Info(ctx, "flutterwave client initialized")
	return c, nil
}

// SigningSecret returns the webhook verification secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// RedirectURL returns the configured post-checkout redirect target.
func (c *Client) RedirectURL() string {
	if c == nil {
		return ""
	}
	return c.redirectURL
}

// InitializeTransaction creates a hosted checkout session for the given charge.
func (c *Client) InitializeTransaction(ctx context.Context, params ChargeParams) (*CheckoutSession, error) {
	if strings.TrimSpace(params.TxRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tx_ref is required")
	}
	if params.RedirectURL == "" {
		params.RedirectURL = c.redirectURL
	}
	c.log(ctx, "request", "initialize_transaction", map[string]any{
		"tx_ref":   params.TxRef,
		"amount":   params.Amount.String(),
		"currency": params.Currency,
		"splits":   len(params.Subaccounts),
	})

	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/payments", params, &session); err != nil {
		c.log(ctx, "error", "initialize_transaction", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "initialize_transaction", map[string]any{"tx_ref": params.TxRef})
	return &session, nil
}

// VerifyTransactionByRef fetches the authoritative charge state for a tx_ref.
func (c *Client) VerifyTransactionByRef(ctx context.Context, txRef string) (*Transaction, error) {
	if strings.TrimSpace(txRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tx_ref is required")
	}
	path := "/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(txRef)
	c.log(ctx, "request", "verify_transaction", map[string]any{"tx_ref": txRef})

	var txn Transaction
	if err := c.do(ctx, http.MethodGet, path, nil, &txn); err != nil {
		c.log(ctx, "error", "verify_transaction", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "verify_transaction", map[string]any{
		"tx_ref": txn.TxRef,
		"status": txn.Status,
	})
	return &txn, nil
}

// RefundTransaction reverses a settled charge.
func (c *Client) RefundTransaction(ctx context.Context, transactionID int64, params RefundParams) (*Refund, error) {
	path := fmt.Sprintf("/transactions/%d/refund", transactionID)
	c.log(ctx, "request", "refund_transaction", map[string]any{"transaction_id": transactionID})

	var refund Refund
	if err := c.do(ctx, http.MethodPost, path, params, &refund); err != nil {
		c.log(ctx, "error", "refund_transaction", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "refund_transaction", map[string]any{
		"transaction_id": transactionID,
		"status":         refund.Status,
	})
	return &refund, nil
}

// CreateSubaccount registers a settlement destination for a restaurant.
func (c *Client) CreateSubaccount(ctx context.Context, params SubaccountParams) (*Subaccount, error) {
	c.log(ctx, "request", "create_subaccount", map[string]any{
		"business_name": params.BusinessName,
		"bank":          params.BankCode,
	})

	var sub Subaccount
	if err := c.do(ctx, http.MethodPost, "/subaccounts", params, &sub); err != nil {
		c.log(ctx, "error", "create_subaccount", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_subaccount", map[string]any{"subaccount_id": sub.SubaccountID})
	return &sub, nil
}

// InitiateTransfer disburses funds to a bank account.
func (c *Client) InitiateTransfer(ctx context.Context, params TransferParams) (*Transfer, error) {
	if strings.TrimSpace(params.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer reference is required")
	}
	c.log(ctx, "request", "initiate_transfer", map[string]any{
		"reference": params.Reference,
		"amount":    params.Amount.String(),
		"currency":  params.Currency,
	})

	var transfer Transfer
	if err := c.do(ctx, http.MethodPost, "/transfers", params, &transfer); err != nil {
		c.log(ctx, "error", "initiate_transfer", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "initiate_transfer", map[string]any{
		"reference": transfer.Reference,
		"status":    transfer.Status,
	})
	return &transfer, nil
}

// do executes a request with retries and decodes the data payload into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding flutterwave request")
		}
	}

	backoff := retry.WithMaxRetries(uint64(c.maxAttempts-1), retry.NewFibonacci(retryBaseDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		var reader io.Reader
		if encoded != nil {
			reader = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building flutterwave request")
		}
		req.Header.Set("Authorization", "Bearer "+c.secretKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flutterwave request failed"))
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading flutterwave response"))
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			return retry.RetryableError(c.statusError(resp.StatusCode, raw))
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return c.statusError(resp.StatusCode, raw)
		}

		var envelope apiResponse
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding flutterwave response")
		}
		if envelope.Status != statusSuccess {
			return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("flutterwave rejected request: %s", envelope.Message))
		}
		if out == nil || len(envelope.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding flutterwave payload")
		}
		return nil
	})
}

func (c *Client) statusError(status int, raw []byte) error {
	message := "flutterwave request failed"
	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Message != "" {
		message = envelope.Message
	}
	return pkgerrors.New(domainCodeForStatus(status), message)
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeExhausted
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("flutterwave %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("flutterwave %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"secret", "token", "account_number", "email", "phone", "card"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
