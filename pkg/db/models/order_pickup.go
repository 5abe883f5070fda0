package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderPickup stores a hash of the pickup code, never the plaintext.
// verified flips false -> true exactly once, before expiry and within the
// attempt cap.
type OrderPickup struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID  `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_order_pickups_order_id"`
	CodeHash      string     `gorm:"column:code_hash;not null"`
	Token         string     `gorm:"column:token;not null"`
	ExpiresAt     time.Time  `gorm:"column:expires_at;not null"`
	Verified      bool       `gorm:"column:verified;not null;default:false"`
	VerifiedBy    *uuid.UUID `gorm:"column:verified_by;type:uuid"`
	VerifiedAt    *time.Time `gorm:"column:verified_at"`
	AttemptsCount int        `gorm:"column:attempts_count;not null;default:0"`
	MaxAttempts   int        `gorm:"column:max_attempts;not null;default:5"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
