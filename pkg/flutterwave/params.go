package flutterwave

import (
	"github.com/shopspring/decimal"
)

// ChargeCustomer describes the payer on a checkout session.
type ChargeCustomer struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phonenumber,omitempty"`
}

// ChargeSplit routes a flat share of the charge to a subaccount.
type ChargeSplit struct {
	SubaccountID string          `json:"id"`
	ChargeType   string          `json:"transaction_charge_type"`
	Charge       decimal.Decimal `json:"transaction_charge"`
}

// ChargeParams configures a hosted checkout session.
type ChargeParams struct {
	TxRef       string          `json:"tx_ref"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	RedirectURL string          `json:"redirect_url,omitempty"`
	Customer    ChargeCustomer  `json:"customer"`
	Subaccounts []ChargeSplit   `json:"subaccounts,omitempty"`
	Meta        map[string]any  `json:"meta,omitempty"`
}

// FlatSplit builds the subaccount entry that settles a fixed amount to the restaurant.
func FlatSplit(subaccountID string, amount decimal.Decimal) ChargeSplit {
	return ChargeSplit{
		SubaccountID: subaccountID,
		ChargeType:   "flat_subaccount",
		Charge:       amount,
	}
}

// SubaccountParams registers a settlement destination.
type SubaccountParams struct {
	BusinessName   string `json:"business_name"`
	BankCode       string `json:"account_bank"`
	AccountNumber  string `json:"account_number"`
	Country        string `json:"country"`
	SplitType      string `json:"split_type"`
	SplitValue     string `json:"split_value"`
	BusinessEmail  string `json:"business_email,omitempty"`
	BusinessMobile string `json:"business_mobile,omitempty"`
}

// TransferParams configures a disbursement.
type TransferParams struct {
	BankCode      string          `json:"account_bank"`
	AccountNumber string          `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reference     string          `json:"reference"`
	Narration     string          `json:"narration,omitempty"`
}

// RefundParams reverses part or all of a settled charge.
type RefundParams struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
}
