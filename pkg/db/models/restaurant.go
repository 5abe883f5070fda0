package models

import (
	"time"

	"github.com/google/uuid"
)

// Restaurant is owned by the excluded restaurant subsystem; the core reads
// ownership and bank details, and records the gateway subaccount id after
// provisioning.
type Restaurant struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerUserID   uuid.UUID `gorm:"column:owner_user_id;type:uuid;not null;index"`
	Name          string    `gorm:"column:name;not null"`
	BankCode      *string   `gorm:"column:bank_code"`
	AccountNumber *string   `gorm:"column:account_number"`
	SubaccountID  *string   `gorm:"column:subaccount_id"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// HasBankDetails reports whether the restaurant can receive transfers.
func (r *Restaurant) HasBankDetails() bool {
	return r != nil &&
		r.BankCode != nil && *r.BankCode != "" &&
		r.AccountNumber != nil && *r.AccountNumber != ""
}
