package flutterwave

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	statusSuccess = "success"

	// TransactionStatusSuccessful is the gateway's terminal success state.
	TransactionStatusSuccessful = "successful"
	// TransactionStatusFailed is the gateway's terminal failure state.
	TransactionStatusFailed = "failed"
	// TransactionStatusPending means the charge has not settled yet.
	TransactionStatusPending = "pending"
)

// apiResponse is the envelope every Flutterwave endpoint returns.
type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// CheckoutSession is the hosted payment link returned by payment initialization.
type CheckoutSession struct {
	Link string `json:"link"`
}

// TransactionCustomer identifies the paying customer on a verified charge.
type TransactionCustomer struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Transaction is the gateway's record of a charge.
type Transaction struct {
	ID                int64               `json:"id"`
	TxRef             string              `json:"tx_ref"`
	FlwRef            string              `json:"flw_ref"`
	Amount            decimal.Decimal     `json:"amount"`
	ChargedAmount     decimal.Decimal     `json:"charged_amount"`
	AmountSettled     decimal.Decimal     `json:"amount_settled"`
	Currency          string              `json:"currency"`
	Status            string              `json:"status"`
	PaymentType       string              `json:"payment_type"`
	ProcessorResponse string              `json:"processor_response"`
	Customer          TransactionCustomer `json:"customer"`
	Meta              map[string]any      `json:"meta"`
	CreatedAt         time.Time           `json:"created_at"`
}

// Successful reports whether the charge settled successfully.
func (t Transaction) Successful() bool {
	return t.Status == TransactionStatusSuccessful
}

// Subaccount is a settlement destination registered with the gateway.
type Subaccount struct {
	ID            int64       `json:"id"`
	SubaccountID  string      `json:"subaccount_id"`
	BusinessName  string      `json:"business_name"`
	AccountNumber string      `json:"account_number"`
	BankCode      string      `json:"account_bank"`
	SplitType     string      `json:"split_type"`
	SplitValue    json.Number `json:"split_value"`
}

// Transfer is a disbursement to a bank account.
type Transfer struct {
	ID            int64           `json:"id"`
	Reference     string          `json:"reference"`
	AccountNumber string          `json:"account_number"`
	BankCode      string          `json:"bank_code"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	CompleteMsg   string          `json:"complete_message"`
}

// Refund is the gateway's record of a reversal.
type Refund struct {
	ID             int64           `json:"id"`
	TxID           int64           `json:"tx_id"`
	FlwRef         string          `json:"flw_ref"`
	AmountRefunded decimal.Decimal `json:"amount_refunded"`
	Status         string          `json:"status"`
}
